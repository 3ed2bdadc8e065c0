package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// loginAttemptsPerMinute bounds credential checks per client IP.
const loginAttemptsPerMinute = 10

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	tokens         *TokenManager
	rbac           rbac.Middleware
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, tokens *TokenManager, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		tokens:         tokens,
		rbac:           rbac,
		validator:      shared.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.csrfToken)
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(loginAttemptsPerMinute, time.Minute))
		r.Post("/login", h.handleLogin)
		r.Post("/token", h.issueToken)
	})
	r.Post("/logout", h.handleLogout)
	r.With(h.rbac.RequireAuth).Get("/me", h.me)
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfManager.EnsureToken(shared.SessionFromContext(r.Context()))
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) credentials(r *http.Request) (*User, error) {
	var in Credentials
	if err := httpx.DecodeJSON(r, &in); err != nil {
		return nil, shared.NewValidationError("body", err.Error())
	}
	if err := shared.ValidateStruct(h.validator, in); err != nil {
		return nil, err
	}
	return h.service.Authenticate(r.Context(), in.Email, in.Password)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	user, err := h.credentials(r)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}

	h.sessionManager.Regenerate(sess)
	sess.SetUser(user.ID)
	csrfToken, err := h.csrfManager.RotateToken(sess)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	rec := SessionRecord{
		ID:        sess.ID,
		UserID:    user.ID,
		Guard:     shared.GuardWeb,
		ExpiresAt: time.Now().Add(h.sessionManager.TTL()),
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
	if err := h.service.RegisterSession(r.Context(), rec); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	httpx.Success(w, r, http.StatusOK, "Welcome back", map[string]any{
		"user":       user.Profile(),
		"csrf_token": csrfToken,
	})
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	user, err := h.credentials(r)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	rec := SessionRecord{UserID: user.ID, Guard: shared.GuardAPI, IP: r.RemoteAddr}
	if err := h.service.RegisterSession(r.Context(), rec); err != nil {
		h.logger.Warn("audit token login", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, token)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID, sess.UserID()); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Message: "Signed out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal, _ := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.CurrentUser(r.Context(), principal.UserID)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Props(w, r, map[string]any{
		"auth": map[string]any{
			"user":        user.Profile(),
			"guard":       principal.Guard,
			"roles":       principal.Roles,
			"permissions": principal.Permissions.Names(),
		},
	})
}
