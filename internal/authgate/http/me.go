package http

import (
	"net/http"

	"github.com/lumeos/authgate/internal/authgate/service"
	"github.com/lumeos/authgate/pkg/httpx"
	"github.com/lumeos/authgate/pkg/slogx"
)

// MeHandler handles GET /auth/me, the session-introspection endpoint.
type MeHandler struct {
	Auth *service.AuthService
}

// ServeHTTP resolves the identity behind the caller's bearer token.
//
//	@Summary		Current identity
//	@Description	Resolves the provider identity for the presented bearer token.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	domain.Identity
//	@Failure		401	{object}	ErrorResponse	"missing token"
//	@Failure		500	{object}	ErrorResponse	"provider failure"
//	@Router			/auth/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	identity, err := h.Auth.GetIdentity(ctx, userClientFromContext(ctx))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, identity)
}
