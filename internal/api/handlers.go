package api

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwantia/illustag/internal/estimation"
	"github.com/mwantia/illustag/internal/library"
	"github.com/mwantia/illustag/pkg/db/models"
)

type imageResponse struct {
	ID           uint      `json:"id"`
	Path         string    `json:"path"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ChecksumID   uint      `json:"checksum_id"`
	Checksum     string    `json:"checksum,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newImageResponse(img *models.Image) imageResponse {
	resp := imageResponse{
		ID:           img.ID,
		Path:         img.Path,
		OriginalName: img.OriginalName,
		Size:         img.Size,
		ChecksumID:   img.ChecksumID,
		CreatedAt:    img.CreatedAt,
	}
	if img.Checksum != nil {
		resp.Checksum = img.Checksum.Value
	}
	return resp
}

type uploadResponse struct {
	imageResponse
	Duplicate bool `json:"duplicate"`
}

type estimationsResponse struct {
	ImageID     uint                   `json:"image_id"`
	ChecksumID  uint                   `json:"checksum_id"`
	Checksum    string                 `json:"checksum"`
	Mode        models.Mode            `json:"mode"`
	Estimations estimation.Estimations `json:"estimations"`
}

type checksumEstimation struct {
	Mode       models.Mode `json:"mode"`
	Tag        string      `json:"tag"`
	Confidence float64     `json:"confidence"`
}

type checksumResponse struct {
	CreatedAt      time.Time            `json:"created_at"`
	ID             uint                 `json:"id"`
	Value          string               `json:"value"`
	TagEstimations []checksumEstimation `json:"tag_estimations"`
}

type statusResponse struct {
	ChecksumID uint          `json:"checksum_id"`
	TagID      uint          `json:"tag_id"`
	Status     models.Status `json:"status"`
}

type tagResponse struct {
	ID        uint   `json:"id"`
	Value     string `json:"value"`
	Namespace string `json:"namespace,omitempty"`
	Fullname  string `json:"fullname"`
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	images, err := s.library.List(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := make([]imageResponse, 0, len(images))
	for i := range images {
		resp = append(resp, newImageResponse(&images[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadSize > 0 {
		// Leave room for the multipart envelope; the library enforces the file limit.
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize+1<<20)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fail(w, r, library.ErrTooLarge)
			return
		}
		respondError(w, http.StatusBadRequest, "missing form file 'image'")
		return
	}
	defer file.Close()

	upload, err := s.library.Add(r.Context(), header.Filename, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	status := http.StatusCreated
	if upload.Duplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, uploadResponse{
		imageResponse: newImageResponse(upload.Image),
		Duplicate:     upload.Duplicate,
	})
}

func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	img, err := s.library.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newImageResponse(img))
}

func (s *Server) getImageFile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	file, img, err := s.library.Open(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer file.Close()

	if ct := mime.TypeByExtension(filepath.Ext(img.Path)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if img.Checksum != nil {
		// Content under a fingerprint never changes.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("ETag", fmt.Sprintf("%q", img.Checksum.Value))
	}
	http.ServeContent(w, r, img.OriginalName, img.CreatedAt, file)
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	if err := s.library.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getEstimations answers ?mode=plausible|top|all (default plausible). With
// ?format=simple the bare (tag, confidence) pairs are returned.
func (s *Server) getEstimations(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	mode := models.ModePlausible
	if v := r.URL.Query().Get("mode"); v != "" {
		parsed, err := models.ParseMode(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = parsed
	}

	img, err := s.library.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Inference keeps running when the client goes away so the result is cached.
	ctx := context.WithoutCancel(r.Context())
	est, err := s.cache.GetEstimations(ctx, img.Checksum, mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "simple" {
		respondJSON(w, http.StatusOK, est.Simple())
		return
	}

	if err := s.ledger.Overlay(r.Context(), img.ChecksumID, est); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, estimationsResponse{
		ImageID:     img.ID,
		ChecksumID:  img.ChecksumID,
		Checksum:    img.Checksum.Value,
		Mode:        mode,
		Estimations: est,
	})
}

func (s *Server) getChecksum(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid checksum id")
		return
	}

	checksum, err := s.store.GetChecksum(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondChecksum(w, r, checksum)
}

// findChecksum looks up a checksum by fingerprint, so clients can check for
// known content without uploading it.
func (s *Server) findChecksum(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		respondError(w, http.StatusBadRequest, "query parameter 'value' is required")
		return
	}

	checksum, err := s.store.GetChecksumByValue(r.Context(), strings.ToLower(value))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondChecksum(w, r, checksum)
}

func (s *Server) respondChecksum(w http.ResponseWriter, r *http.Request, checksum *models.Checksum) {
	rows, err := s.store.ListChecksumEstimations(r.Context(), checksum.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := checksumResponse{
		CreatedAt:      checksum.CreatedAt,
		ID:             checksum.ID,
		Value:          checksum.Value,
		TagEstimations: make([]checksumEstimation, 0, len(rows)),
	}
	for _, row := range rows {
		resp.TagEstimations = append(resp.TagEstimations, checksumEstimation{
			Mode:       row.Mode,
			Tag:        row.Fullname(),
			Confidence: row.Value,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	checksumID, tagID, ok := curationParams(w, r)
	if !ok {
		return
	}

	status, err := s.ledger.Classify(r.Context(), checksumID, tagID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{ChecksumID: checksumID, TagID: tagID, Status: status})
}

// curate wraps a ledger action and answers with the resulting status.
func (s *Server) curate(name string, action func(ctx context.Context, checksumID, tagID uint) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checksumID, tagID, ok := curationParams(w, r)
		if !ok {
			return
		}

		if err := action(r.Context(), checksumID, tagID); err != nil {
			s.fail(w, r, err)
			return
		}
		s.log.Info("Curator '%s' applied %s for tag %d on checksum %d", curatorFrom(r.Context()), name, tagID, checksumID)

		status, err := s.ledger.Classify(r.Context(), checksumID, tagID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, statusResponse{ChecksumID: checksumID, TagID: tagID, Status: status})
	}
}

func curationParams(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	checksumID, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid checksum id")
		return 0, 0, false
	}
	tagID, ok := idParam(r, "tagID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid tag id")
		return 0, 0, false
	}
	return checksumID, tagID, true
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	tags, err := s.store.ListTags(r.Context(), r.URL.Query().Get("namespace"), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := make([]tagResponse, 0, len(tags))
	for i := range tags {
		resp = append(resp, tagResponse{
			ID:        tags[i].ID,
			Value:     tags[i].Value,
			Namespace: tags[i].Namespace,
			Fullname:  tags[i].Fullname(),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
