package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// PermissionsHandler exposes the permission catalogue over HTTP.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *PermissionsService
	rbac    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *PermissionsService, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermPermissionView))
		r.Get("/", h.listPermissions)
		r.Get("/{id}", h.showPermission)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPermissionCreate))
		r.Post("/", h.createPermission)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPermissionUpdate))
		r.Put("/{id}", h.updatePermission)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPermissionDelete))
		r.Delete("/{id}", h.deletePermission)
	})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paging := shared.ParsePageRequest(q, shared.DefaultPerPage)
	filters := PermissionFilters{
		Search:  strings.TrimSpace(q.Get("search")),
		Guard:   shared.Guard(strings.TrimSpace(q.Get("guard"))),
		Group:   strings.TrimSpace(q.Get("group")),
		Page:    paging.Page,
		PerPage: paging.PerPage,
	}
	perms, pagination, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	groups, err := h.service.Grouped(r.Context(), filters.Guard)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Props(w, r, map[string]any{
		"permissions": shared.NewPage(perms, pagination, r.URL),
		"groups":      groups,
		"filters": map[string]string{
			"search": filters.Search,
			"guard":  string(filters.Guard),
			"group":  filters.Group,
		},
	})
}

func (h *PermissionsHandler) showPermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perm, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Props(w, r, map[string]any{"permission": perm})
}

func (h *PermissionsHandler) createPermission(w http.ResponseWriter, r *http.Request) {
	var in PermissionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", err.Error()))
		return
	}
	actor, _ := PrincipalFromContext(r.Context())
	perm, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusCreated, "Permission created successfully", perm)
}

func (h *PermissionsHandler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in PermissionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", err.Error()))
		return
	}
	actor, _ := PrincipalFromContext(r.Context())
	perm, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusOK, "Permission updated successfully", perm)
}

func (h *PermissionsHandler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusOK, "Permission deleted successfully", nil)
}
