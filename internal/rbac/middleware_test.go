package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

type stubResolver struct {
	principal Principal
	err       error
	calls     int
}

func (s *stubResolver) ResolvePrincipal(_ context.Context, userID int64, guard shared.Guard) (Principal, error) {
	s.calls++
	if s.err != nil {
		return Principal{}, s.err
	}
	p := s.principal
	p.UserID = userID
	p.Guard = guard
	return p, nil
}

type countingObserver struct {
	allowed, denied int
}

func (o *countingObserver) ObserveAuthzDecision(allowed bool) {
	if allowed {
		o.allowed++
		return
	}
	o.denied++
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User", p.Roles[0])
		w.WriteHeader(http.StatusNoContent)
	})
}

func authedRequest(userID int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	if userID == 0 {
		return req
	}
	return req.WithContext(shared.ContextWithIdentity(req.Context(), shared.Identity{UserID: userID, Guard: shared.GuardWeb}))
}

func TestRequireAnyAndAll(t *testing.T) {
	resolver := &stubResolver{principal: Principal{Roles: []string{"admin"}, Permissions: NewPermissionSet("user.view")}}
	observer := &countingObserver{}
	mw := Middleware{Resolver: resolver, Observer: observer}

	rec := httptest.NewRecorder()
	mw.RequireAny("user.view", "user.delete")(okHandler(t)).ServeHTTP(rec, authedRequest(3))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "admin", rec.Header().Get("X-User"))

	rec = httptest.NewRecorder()
	mw.RequireAll("user.view", "user.delete")(okHandler(t)).ServeHTTP(rec, authedRequest(3))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, ReasonUnauthorized, problem.Detail)

	assert.Equal(t, 1, observer.allowed)
	assert.Equal(t, 1, observer.denied)
}

func TestRequireWithoutIdentity(t *testing.T) {
	mw := Middleware{Resolver: &stubResolver{}}
	rec := httptest.NewRecorder()
	mw.RequireAny("user.view")(okHandler(t)).ServeHTTP(rec, authedRequest(0))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireResolverFailure(t *testing.T) {
	mw := Middleware{Resolver: &stubResolver{err: errors.New("db down")}}
	rec := httptest.NewRecorder()
	mw.RequireAny("user.view")(okHandler(t)).ServeHTTP(rec, authedRequest(3))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoadPrincipalResolvesOnce(t *testing.T) {
	resolver := &stubResolver{principal: Principal{Roles: []string{"user"}, Permissions: NewPermissionSet("user.view")}}
	mw := Middleware{Resolver: resolver}

	chain := mw.LoadPrincipal(mw.RequireAny("user.view")(mw.RequireAll("user.view")(okHandler(t))))
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, authedRequest(8))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, resolver.calls)

	rec = httptest.NewRecorder()
	mw.LoadPrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := PrincipalFromContext(r.Context())
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, authedRequest(0))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthAllowsAnyPrincipal(t *testing.T) {
	mw := Middleware{Resolver: &stubResolver{principal: Principal{Roles: []string{"user"}}}}
	rec := httptest.NewRecorder()
	mw.RequireAuth(okHandler(t)).ServeHTTP(rec, authedRequest(2))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeactivatedUserLosesAccessOnNextRequest(t *testing.T) {
	store := seededStore()
	store.rolePerms[2] = []int64{10}
	store.userRoles[1] = []int64{2}
	mw := Middleware{Resolver: NewService(store)}
	chain := mw.LoadPrincipal(mw.RequireAny("user.view")(okHandler(t)))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, authedRequest(1))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	store.inactive[1] = true
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, authedRequest(1))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireAny("user.view")(okHandler(t)).ServeHTTP(rec, authedRequest(42))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
