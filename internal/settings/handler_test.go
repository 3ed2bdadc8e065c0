package settings

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

func newTestRouter(t *testing.T, repo *mockRepository, perms ...string) http.Handler {
	svc, _ := newTestService(t, repo, false)
	h := NewHandler(quietLogger(), svc, rbac.Middleware{})
	p := rbac.Principal{UserID: 1, Guard: shared.GuardWeb, Permissions: rbac.NewPermissionSet(perms...)}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(rbac.ContextWithPrincipal(req.Context(), p)))
		})
	})
	r.Route("/settings", h.MountRoutes)
	return r
}

func TestHandlerShowAndUpdate(t *testing.T) {
	repo := newMockRepository()
	router := newTestRouter(t, repo, shared.PermSettingsView, shared.PermSettingsUpdate)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var props struct {
		Settings map[string]string `json:"settings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &props))
	assert.Equal(t, "Odyssey Admin", props.Settings[KeyAppName])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"app_name":"Acme"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme", repo.values[KeyAppName])
}

func TestHandlerUpdateNeedsPermission(t *testing.T) {
	router := newTestRouter(t, newMockRepository(), shared.PermSettingsView)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"app_name":"Acme"}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerUpload(t *testing.T) {
	repo := newMockRepository()
	router := newTestRouter(t, repo, shared.PermSettingsUpdate)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "favicon.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/settings/files/site_favicon", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(repo.values[KeySiteFavicon], "/uploads/"))

	req = httptest.NewRequest(http.MethodPost, "/settings/files/site_favicon", strings.NewReader("no form"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Contains(t, problem.Errors, "file")
}
