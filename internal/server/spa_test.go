package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSPA() http.Handler {
	return newSPAHandler(fstest.MapFS{
		"index.html":         {Data: []byte("<html>wizard</html>")},
		"assets/app-abc.js":  {Data: []byte("console.log('app')")},
		"assets/app-abc.css": {Data: []byte("body{}")},
	})
}

func TestSPAServesStaticAsset(t *testing.T) {
	h := newTestSPA()

	req := httptest.NewRequest(http.MethodGet, "/assets/app-abc.js", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=31536000, immutable", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "console.log")
}

func TestSPAFallsBackToIndex(t *testing.T) {
	h := newTestSPA()

	for _, p := range []string{"/", "/setup/database", "/no-such-page"} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, p)
		assert.Contains(t, rec.Body.String(), "wizard", p)
		assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"), p)
	}
}

func TestSPAUnknownAPIRouteIs404(t *testing.T) {
	h := newTestSPA()

	req := httptest.NewRequest(http.MethodGet, "/install/no-such-endpoint", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
}

func TestSPABlocksPathTraversal(t *testing.T) {
	h := newTestSPA()

	req := httptest.NewRequest(http.MethodGet, "/assets/../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// Cleaned path escapes the tree, so the handler serves index.html.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wizard")
}
