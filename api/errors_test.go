package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/n0remac/visionguard/apperr"
)

func TestWriteErrorMapsKindToStatus(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, apperr.New(apperr.NotFound, "stream not found"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body errorBody
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "stream not found")
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, map[string]string{"ok": "true"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestBearerTokenFromHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", bearerToken(r))
}

func TestBearerTokenFromQueryFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?"+url.Values{"token": {"xyz"}}.Encode(), nil)
	assert.Equal(t, "xyz", bearerToken(r))
}

func TestBearerTokenMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", bearerToken(r))
}
