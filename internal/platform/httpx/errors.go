// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	RespondErrorLog(w, nil, err)
}

// RespondErrorLog is RespondError that also logs unexpected failures.
func RespondErrorLog(w http.ResponseWriter, logger *slog.Logger, err error) {
	var validErr *shared.ValidationError
	switch {
	case errors.As(err, &validErr):
		JSON(w, http.StatusUnprocessableEntity, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: "The given data was invalid.",
			Errors: validErr.Fields,
		})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrConflict):
		var conflictErr *shared.ConflictError
		detail := shared.UserSafeMessage(err)
		if errors.As(err, &conflictErr) && conflictErr.Field != "" {
			JSON(w, http.StatusConflict, ProblemDetail{
				Title:  "Conflict",
				Status: http.StatusConflict,
				Detail: detail,
				Errors: map[string]string{conflictErr.Field: detail},
			})
			return
		}
		Problem(w, http.StatusConflict, "Conflict", detail)
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Problem(w, http.StatusForbidden, "Forbidden", "invalid csrf token")
	default:
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
	}
}
