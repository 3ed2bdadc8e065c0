package settings

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// maxUploadBytes bounds logo and icon uploads.
const maxUploadBytes = 5 << 20

// Handler exposes the general settings screen.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermSettingsView)).Get("/", h.show)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSettingsUpdate))
		r.Put("/", h.update)
		r.Post("/files/{key}", h.upload)
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	httpx.Props(w, r, map[string]any{
		"settings":  h.service.Snapshot().Values(),
		"file_keys": FileKeys(),
		"demo_mode": h.service.DemoMode(),
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in map[string]string
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", err.Error()))
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	snap, err := h.service.SetMany(r.Context(), actor, in)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusOK, "Settings updated successfully!", snap.Values())
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, shared.NewValidationError("file", "The file must not be greater than 5 MB."))
			return
		}
		httpx.RespondError(w, shared.NewValidationError("file", "The file field is required."))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, shared.NewValidationError("file", "The file field is required."))
		return
	}
	defer file.Close()

	actor, _ := rbac.PrincipalFromContext(r.Context())
	snap, err := h.service.SetFile(r.Context(), actor, key, header.Filename, file, header.Header.Get("Content-Type"))
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, err)
		return
	}
	httpx.Success(w, r, http.StatusOK, "Settings updated successfully!", snap.Values())
}
