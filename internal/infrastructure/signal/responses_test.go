package signal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteNotFound(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/missing.html", nil)
	w := httptest.NewRecorder()

	WriteNotFound(w, r, "/missing.html")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "text/html", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/missing.html")
}

func TestWriteBadRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()

	WriteBadRequest(w, r, "POST /")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "text/html", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "POST /")
}

func TestWriteServerError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	WriteServerError(w, r, "disk on fire")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "disk on fire")
}

func TestWriteErrorPage_KeepAliveMirrored(t *testing.T) {
	// HTTP/1.1 defaults to keep-alive.
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	WriteNotFound(w, r, "/x")
	assert.Equal(t, "keep-alive", w.Header().Get("Connection"))

	// An explicit close is mirrored back.
	r = httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Connection", "close")
	w = httptest.NewRecorder()
	WriteNotFound(w, r, "/x")
	assert.Equal(t, "close", w.Header().Get("Connection"))

	// HTTP/1.0 without the header means close.
	r = httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ProtoMajor, r.ProtoMinor = 1, 0
	w = httptest.NewRecorder()
	WriteNotFound(w, r, "/x")
	assert.Equal(t, "close", w.Header().Get("Connection"))
}
