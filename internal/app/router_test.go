package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadsAreServedSandboxed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old-logo.svg"), []byte(`<svg xmlns="http://www.w3.org/2000/svg" onload="alert(1)"/>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), []byte("png"), 0o644))

	h := staticCacheHandler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir))))
	for _, name := range []string{"old-logo.svg", "logo.png"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil))

		require.Equal(t, http.StatusOK, rr.Code, name)
		assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "sandbox", name)
		assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "default-src 'none'", name)
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"), name)
		assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"), name)
	}
}
