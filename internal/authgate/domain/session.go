package domain

// Session is the login/verify result handed to callers. It is never persisted
// server-side; the token is provider-issued and opaque to this service.
//
// A partial session (IsMFAValidated false, FactorID set) authorizes only the
// MFA endpoints; the caller must complete verification to obtain a full one.
type Session struct {
	Token string      `json:"token"`
	User  SessionUser `json:"user"`
}

// SessionUser combines the local user record with the provider-sourced email.
type SessionUser struct {
	ID               string `json:"id"`
	ExternalID       string `json:"externalId"`
	Email            string `json:"email"`
	HasMFA           bool   `json:"hasMFA"`
	IsMFAValidated   bool   `json:"isMfaValidated"`
	IsFirstMFAAccess bool   `json:"isFirstMfaAccess"`
	FactorID         string `json:"factorId,omitempty"` // set on partial sessions only
}

// Identity is the provider identity behind a bearer token, used by
// session-introspection endpoints.
type Identity struct {
	ID    string `json:"id"` // provider user id
	Email string `json:"email"`
}
