package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// PrincipalResolver loads a principal for an authenticated identity.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID int64, guard shared.Guard) (Principal, error)
}

// DecisionObserver is notified of every middleware decision.
type DecisionObserver interface {
	ObserveAuthzDecision(allowed bool)
}

type principalContextKey struct{}

// ContextWithPrincipal stores p in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal resolved for the request.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver PrincipalResolver
	Logger   *slog.Logger
	Observer DecisionObserver
}

// LoadPrincipal resolves the principal of the authenticated identity once per
// request. Unauthenticated requests pass through untouched.
func (m Middleware) LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		id, ok := shared.IdentityFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		p, err := m.Resolver.ResolvePrincipal(r.Context(), id.UserID, id.Guard)
		if err != nil {
			m.logError("rbac resolve principal", err)
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireAuth rejects requests without an authenticated principal.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return m.require(MatchAny, nil)(next)
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(MatchAny, normalizePermissions(perms))
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(MatchAll, normalizePermissions(perms))
}

func (m Middleware) require(mode MatchMode, perms []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok, err := m.principal(r)
			if err != nil {
				m.logError("rbac load principal", err)
				httpx.RespondError(w, err)
				return
			}
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			decision := Authorize(p, mode, perms...)
			if m.Observer != nil {
				m.Observer.ObserveAuthzDecision(decision.Allowed)
			}
			if !decision.Allowed {
				if m.Logger != nil {
					m.Logger.Debug("rbac deny", slog.Int64("user_id", p.UserID), slog.Any("required", perms))
				}
				httpx.RespondError(w, decision.Err())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

func (m Middleware) principal(r *http.Request) (Principal, bool, error) {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return p, true, nil
	}
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		return Principal{}, false, nil
	}
	p, err := m.Resolver.ResolvePrincipal(r.Context(), id.UserID, id.Guard)
	if err != nil {
		return Principal{}, false, err
	}
	return p, true, nil
}

func (m Middleware) logError(msg string, err error) {
	if errors.Is(err, shared.ErrUnauthorized) {
		return
	}
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = normalizePermission(p)
		if p == "" {
			continue
		}
		if _, seen := unique[p]; seen {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
