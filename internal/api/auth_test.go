package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_IssueVerify(t *testing.T) {
	auth := NewAuthenticator("s3cret")

	token, err := auth.Issue("alice", time.Hour)
	require.NoError(t, err)

	curator, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", curator)

	_, err = NewAuthenticator("other").Verify(token)
	assert.Error(t, err)

	expired, err := auth.Issue("alice", -time.Minute)
	require.NoError(t, err)
	// A negative ttl is treated as no expiry.
	_, err = auth.Verify(expired)
	assert.NoError(t, err)

	_, err = auth.Issue("", time.Hour)
	assert.Error(t, err)
}

func TestAuthenticator_RejectsForeignTokens(t *testing.T) {
	auth := NewAuthenticator("s3cret")

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  "someone-else",
		Subject: "alice",
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = auth.Verify(wrongIssuer)
	assert.Error(t, err)

	stale, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = auth.Verify(stale)
	assert.Error(t, err)
}

func TestNewAuthenticator_EmptySecretDisables(t *testing.T) {
	assert.Nil(t, NewAuthenticator(""))
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthenticator("s3cret")
	f := setup(t, Config{Auth: auth})

	resp, _ := f.upload(t, "a.png", pngBytes(t))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.Issue("alice", time.Hour)
	require.NoError(t, err)
	f.token = token

	resp, up := f.upload(t, "a.png", pngBytes(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Reads stay public.
	f.token = ""
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, fmt.Sprintf("/api/images/%d", up.ID), nil))
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodDelete, fmt.Sprintf("/api/images/%d", up.ID), nil))

	f.token = "garbage"
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodDelete, fmt.Sprintf("/api/images/%d", up.ID), nil))

	f.token = token
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, fmt.Sprintf("/api/images/%d", up.ID), nil))
}
