package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ticketdesk/auth-service/internal/http/response"
	"github.com/ticketdesk/auth-service/internal/service"
)

// writeServiceError maps the service error taxonomy onto HTTP. Anything
// outside the taxonomy is an infrastructure failure: logged, answered with a
// generic 500, detail never exposed.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", service.ErrInvalidCredentials.Error(), nil)
	case errors.Is(err, service.ErrAccountLocked):
		response.Error(w, r, http.StatusForbidden, "ACCOUNT_LOCKED", service.ErrAccountLocked.Error(), nil)
	case errors.Is(err, service.ErrAccountInactive):
		response.Error(w, r, http.StatusForbidden, "ACCOUNT_INACTIVE", service.ErrAccountInactive.Error(), nil)
	case errors.Is(err, service.ErrWrongTokenType):
		response.Error(w, r, http.StatusUnauthorized, "WRONG_TOKEN_TYPE", service.ErrWrongTokenType.Error(), nil)
	case errors.Is(err, service.ErrInvalidToken):
		// Reuse detection also lands here: the response must not tell a thief
		// they were noticed.
		response.Error(w, r, http.StatusUnauthorized, "INVALID_TOKEN", service.ErrInvalidToken.Error(), nil)
	case errors.Is(err, service.ErrDuplicateUser):
		response.Error(w, r, http.StatusConflict, "DUPLICATE_USER", err.Error(), nil)
	case errors.Is(err, service.ErrWeakPassword):
		response.Error(w, r, http.StatusUnprocessableEntity, "WEAK_PASSWORD", err.Error(), nil)
	case errors.Is(err, service.ErrValidation):
		response.Error(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), nil)
	case errors.Is(err, service.ErrPermissionDenied):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", service.ErrPermissionDenied.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", service.ErrNotFound.Error(), nil)
	default:
		slog.Error("internal error", "path", r.URL.Path, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
