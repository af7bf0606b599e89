package idpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Provider error codes this façade knows how to classify. Anything else is
// treated by callers as an upstream failure.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidGrant       = "invalid_grant" // some providers use this for bad logins
	CodeVerificationFailed = "mfa_verification_failed"
	CodeFactorNotFound     = "mfa_factor_not_found"
	CodeNotFound           = "not_found"
	CodeServerError        = "server_error"
)

// APIError is a classified provider failure. Status is the upstream HTTP
// status, Code the provider's machine-readable error code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("idp: %s (%d): %s", e.Code, e.Status, e.Message)
}

// IsInvalidCredentials reports whether err is a primary-credential rejection.
func IsInvalidCredentials(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == CodeInvalidCredentials || ae.Code == CodeInvalidGrant
}

// IsInvalidCode reports whether err is an MFA code rejection.
func IsInvalidCode(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == CodeVerificationFailed
}

// IsFactorNotFound reports whether err means the referenced factor no longer
// exists at the provider. Callers treat this as benign during unenroll.
func IsFactorNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == CodeFactorNotFound
}

// IsNotFound reports whether err is a generic provider-side absence,
// including the factor-not-found case.
func IsNotFound(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == CodeNotFound || ae.Code == CodeFactorNotFound || ae.Status == http.StatusNotFound
}

// parseAPIError turns a non-2xx provider response into an APIError. The
// provider emits {"error_code": ..., "msg": ...}; older deployments use
// {"error": ..., "error_description": ...}. A body we cannot parse still
// yields a classified error from the status code alone.
func parseAPIError(status int, body []byte) *APIError {
	var wire struct {
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &wire)

	code := wire.ErrorCode
	if code == "" {
		code = wire.Error
	}
	if code == "" {
		code = CodeServerError
	}

	msg := wire.Msg
	if msg == "" {
		msg = wire.ErrorDescription
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	return &APIError{Status: status, Code: code, Message: msg}
}
