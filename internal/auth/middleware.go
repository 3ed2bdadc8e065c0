package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

var errNoBearer = errors.New("no bearer token")

// Authenticator attaches the request identity: a bearer token selects the
// api guard, otherwise the signed-in session selects the web guard.
type Authenticator struct {
	Tokens *TokenManager
}

// Middleware resolves the identity and passes anonymous requests through.
// An invalid bearer token is rejected with 401.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := BearerToken(r)
		switch {
		case err == nil:
			claims, err := a.Tokens.Parse(raw)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			ctx := shared.ContextWithIdentity(r.Context(), shared.Identity{UserID: claims.UserID, Guard: shared.GuardAPI})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		case !errors.Is(err, errNoBearer):
			httpx.RespondError(w, err)
			return
		}

		if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.UserID() > 0 {
			ctx := shared.ContextWithIdentity(r.Context(), shared.Identity{UserID: sess.UserID(), Guard: shared.GuardWeb})
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errNoBearer
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", shared.ErrUnauthorized
	}
	return strings.TrimSpace(token), nil
}

// HasBearer reports whether the request authenticates with a bearer token.
func HasBearer(r *http.Request) bool {
	_, err := BearerToken(r)
	return !errors.Is(err, errNoBearer)
}
