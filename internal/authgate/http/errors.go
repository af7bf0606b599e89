package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/lumeos/authgate/internal/authgate/service"
	"github.com/lumeos/authgate/pkg/httpx"
)

// ErrorResponse is the wire shape of every error body this service emits.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// writeServiceError maps orchestrator errors onto transport status codes.
// Anything unclassified is a 500 with a generic body; provider internals are
// logged, never surfaced.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		log.Warn("login rejected", "err", err)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, service.ErrInvalidMFACode):
		log.Warn("mfa code rejected", "err", err)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_code", "invalid MFA code")
	case errors.Is(err, service.ErrUserNotFound):
		log.Warn("user record missing", "err", err)
		httpx.WriteError(w, http.StatusNotFound, "user_not_found", "user record not found")
	default:
		log.Error("auth operation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}
