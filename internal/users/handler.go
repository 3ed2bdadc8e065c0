package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// RoleOptions lists the roles offered on user forms.
type RoleOptions interface {
	Options(ctx context.Context, actor rbac.Principal, guard shared.Guard) ([]rbac.Role, error)
}

// PageSize returns the configured default page size of the users listing.
type PageSize func() int

// Handler manages user management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	roles    RoleOptions
	pageSize PageSize
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roles RoleOptions, pageSize PageSize, rbac rbac.Middleware) *Handler {
	if pageSize == nil {
		pageSize = func() int { return shared.DefaultPerPage }
	}
	return &Handler{logger: logger, service: service, roles: roles, pageSize: pageSize, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUserView))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.showUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUserCreate))
		r.Post("/", h.createUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUserUpdate))
		r.Put("/{id}", h.updateUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUserDelete))
		r.Delete("/{id}", h.deleteUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paging := shared.ParsePageRequest(q, h.pageSize())
	role := strings.TrimSpace(q.Get("role"))
	filters := ListFilters{
		Search:  strings.TrimSpace(q.Get("search")),
		Page:    paging.Page,
		PerPage: paging.PerPage,
	}
	if role != "" && role != "all" {
		id, err := strconv.ParseInt(role, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, shared.NewValidationError("role", "The selected role is invalid."))
			return
		}
		filters.RoleID = id
	}
	if role == "" {
		role = "all"
	}

	actor, _ := rbac.PrincipalFromContext(r.Context())
	users, pagination, err := h.service.ListUsers(r.Context(), actor, filters)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	roles, err := h.roles.Options(r.Context(), actor, shared.GuardWeb)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Props(w, r, map[string]any{
		"users": shared.NewPage(users, pagination, r.URL),
		"roles": roles,
		"filters": map[string]string{
			"search": filters.Search,
			"role":   role,
		},
	})
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.GetUser(r.Context(), actor, id)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Props(w, r, map[string]any{"user": user})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in UserInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", err.Error()))
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.CreateUser(r.Context(), actor, in)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusCreated, "User created successfully", user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UserInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", err.Error()))
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.UpdateUser(r.Context(), actor, id, in)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusOK, "User updated successfully", user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.DeleteUser(r.Context(), actor, id); err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusOK, "User deleted successfully", nil)
}
