package http

import (
	"encoding/json"
	"net/http"

	"github.com/lumeos/authgate/internal/authgate/service"
	"github.com/lumeos/authgate/pkg/httpx"
	"github.com/lumeos/authgate/pkg/slogx"
)

// MFAHandler handles all MFA endpoints. Every route behind it requires the
// session guard, so a bound provider client is always on the context.
type MFAHandler struct {
	Auth *service.AuthService
}

// MFAVerifyRequest carries the factor and the TOTP code to verify.
type MFAVerifyRequest struct {
	FactorID string `json:"factorId"`
	Code     string `json:"code"`
}

// MFAUnenrollRequest names the factor to remove.
type MFAUnenrollRequest struct {
	FactorID string `json:"factorId"`
}

// HandleVerify handles POST /auth/mfa/verify.
//
//	@Summary		Verify a TOTP code
//	@Description	Opens a fresh challenge for the factor and submits the code. The first
//	@Description	successful verification activates MFA on the user record.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MFAVerifyRequest	true	"factor id and code"
//	@Success		200		{object}	domain.Session		"full session"
//	@Failure		400		{object}	ErrorResponse		"malformed body"
//	@Failure		401		{object}	ErrorResponse		"invalid code or missing token"
//	@Failure		404		{object}	ErrorResponse		"no local record for this identity"
//	@Failure		500		{object}	ErrorResponse		"provider or store failure"
//	@Router			/auth/mfa/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req MFAVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.FactorID == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "factorId and code are required")
		return
	}

	session, err := h.Auth.VerifyMFA(ctx, userClientFromContext(ctx), req.FactorID, req.Code)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, session)
}

// HandleEnroll handles POST /auth/mfa/enroll.
//
//	@Summary		Enroll a TOTP factor
//	@Description	Replaces any factor previously enrolled by this service and returns the new
//	@Description	shared secret and provisioning URI. MFA only activates after the first verify.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	domain.MFAEnrollment	"enrollment material, shown once"
//	@Failure		401	{object}	ErrorResponse			"missing token"
//	@Failure		500	{object}	ErrorResponse			"provider failure"
//	@Router			/auth/mfa/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	enrollment, err := h.Auth.EnrollMFA(ctx, userClientFromContext(ctx))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, enrollment)
}

// HandleUnenroll handles DELETE /auth/mfa/unenroll.
//
//	@Summary		Remove a TOTP factor
//	@Description	Removes the factor at the provider and clears the local MFA flags.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MFAUnenrollRequest	true	"factor id"
//	@Success		200		{object}	map[string]bool		"{success: true}"
//	@Failure		400		{object}	ErrorResponse		"malformed body"
//	@Failure		401		{object}	ErrorResponse		"missing token"
//	@Failure		404		{object}	ErrorResponse		"no local record for this identity"
//	@Failure		500		{object}	ErrorResponse		"provider or store failure"
//	@Router			/auth/mfa/unenroll [delete].
func (h *MFAHandler) HandleUnenroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req MFAUnenrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.FactorID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "factorId is required")
		return
	}

	if err := h.Auth.UnenrollMFA(ctx, userClientFromContext(ctx), req.FactorID); err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleListFactors handles GET /auth/mfa/factors.
//
//	@Summary		List MFA factors
//	@Description	Returns the provider's factor list for the authenticated user.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		domain.MFAFactor
//	@Failure		401	{object}	ErrorResponse	"missing token"
//	@Failure		500	{object}	ErrorResponse	"provider failure"
//	@Router			/auth/mfa/factors [get].
func (h *MFAHandler) HandleListFactors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	factors, err := h.Auth.ListMFAFactors(ctx, userClientFromContext(ctx))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, factors)
}
