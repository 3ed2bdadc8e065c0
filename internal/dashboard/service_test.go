package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

type stubRepo struct {
	users, roles, perms int
	recent              []RecentUser
	err                 error
}

func (s stubRepo) CountUsers(context.Context) (int, error) { return s.users, nil }

func (s stubRepo) CountRoles(context.Context) (int, error) { return s.roles, s.err }

func (s stubRepo) CountPermissions(context.Context) (int, error) { return s.perms, nil }

func (s stubRepo) RecentUsers(context.Context, int) ([]RecentUser, error) { return s.recent, nil }

func TestSummary(t *testing.T) {
	svc := NewService(stubRepo{users: 4, roles: 3, perms: 14}, func() string { return "Acme" })
	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{AppName: "Acme", TotalUsers: 4, TotalRoles: 3, TotalPermissions: 14, RecentUsers: []RecentUser{}}, got)
}

func TestSummaryError(t *testing.T) {
	svc := NewService(stubRepo{err: errors.New("boom")}, nil)
	_, err := svc.Summary(context.Background())
	assert.ErrorContains(t, err, "count roles")
}

func TestHandlerRequiresAuth(t *testing.T) {
	h := NewHandler(nil, NewService(stubRepo{users: 1}, func() string { return "Acme" }), rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/dashboard", h.MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), rbac.Principal{UserID: 1, Guard: shared.GuardWeb}))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Dashboard Summary `json:"dashboard"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Acme", body.Dashboard.AppName)
	assert.Equal(t, 1, body.Dashboard.TotalUsers)
}
