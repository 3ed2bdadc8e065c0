package roles

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// PermissionCatalog supplies the grouped permissions offered on role forms.
type PermissionCatalog interface {
	Grouped(ctx context.Context, guard shared.Guard) ([]rbac.PermissionGroup, error)
}

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	catalog PermissionCatalog
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, catalog PermissionCatalog, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, catalog: catalog, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRoleView))
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.showRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRoleCreate))
		r.Post("/", h.createRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRoleUpdate))
		r.Put("/{id}", h.updateRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRoleDelete))
		r.Delete("/{id}", h.deleteRole)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paging := shared.ParsePageRequest(q, shared.DefaultPerPage)
	filters := RoleListFilters{
		Search:  strings.TrimSpace(q.Get("search")),
		Guard:   shared.Guard(strings.TrimSpace(q.Get("guard"))),
		Page:    paging.Page,
		PerPage: paging.PerPage,
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	roles, pagination, err := h.service.ListRoles(r.Context(), actor, filters)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	groups, err := h.catalog.Grouped(r.Context(), filters.Guard)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Props(w, r, map[string]any{
		"roles":       shared.NewPage(roles, pagination, r.URL),
		"permissions": groups,
		"filters": map[string]string{
			"search": filters.Search,
			"guard":  string(filters.Guard),
		},
	})
}

func (h *Handler) showRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	role, err := h.service.GetRole(r.Context(), actor, id)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	groups, err := h.catalog.Grouped(r.Context(), role.GuardName)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Props(w, r, map[string]any{"role": role, "permissions": groups})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in RoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", err.Error()))
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	role, err := h.service.CreateRole(r.Context(), actor, in)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusCreated, "Role created successfully", role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in RoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", err.Error()))
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	role, err := h.service.UpdateRole(r.Context(), actor, id, in)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusOK, "Role updated successfully", role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.DeleteRole(r.Context(), actor, id); err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusOK, "Role deleted successfully", nil)
}
