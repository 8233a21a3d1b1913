package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mwantia/illustag/internal/estimation"
	"github.com/mwantia/illustag/internal/library"
	"github.com/mwantia/illustag/pkg/db/store"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// fail maps err to a status code. Unexpected errors are logged and hidden.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
		respondError(w, status, "internal error")
		return
	}
	if status == http.StatusBadGateway {
		s.log.Warn("%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	respondError(w, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case store.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, estimation.ErrInvalidMode),
		errors.Is(err, library.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, estimation.ErrOracleFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func idParam(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// page reads limit and offset, defaulting to the first 50 entries.
func page(r *http.Request) (int, int) {
	limit, offset := 50, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
