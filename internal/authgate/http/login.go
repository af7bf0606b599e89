package http

import (
	"encoding/json"
	"net/http"

	"github.com/lumeos/authgate/internal/authgate/service"
	"github.com/lumeos/authgate/pkg/httpx"
	"github.com/lumeos/authgate/pkg/slogx"
)

// LoginHandler handles POST /auth/login.
type LoginHandler struct {
	Auth *service.AuthService
}

// LoginRequest carries primary credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ServeHTTP runs the primary-credential login.
//
//	@Summary		Authenticate with primary credentials
//	@Description	Verifies credentials against the identity provider. When the user has an active
//	@Description	TOTP factor the response is a partial session (isMfaValidated=false, factorId set)
//	@Description	and the caller must complete POST /auth/mfa/verify next.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"credentials"
//	@Success		200		{object}	domain.Session	"full or partial session"
//	@Failure		400		{object}	ErrorResponse	"malformed body"
//	@Failure		401		{object}	ErrorResponse	"invalid credentials"
//	@Failure		404		{object}	ErrorResponse	"no local record for this identity"
//	@Failure		500		{object}	ErrorResponse	"provider or store failure"
//	@Router			/auth/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	session, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, session)
}
