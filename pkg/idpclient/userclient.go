package idpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// UserClient is a provider client bound to one user's bearer token. It is
// constructed per request by the auth middleware and must not outlive the
// request that produced it.
type UserClient struct {
	client      *Client
	accessToken string
}

// AccessToken returns the bearer token this client is bound to.
func (u *UserClient) AccessToken() string { return u.accessToken }

// GetUser resolves the identity behind the bound token.
func (u *UserClient) GetUser(ctx context.Context) (Identity, error) {
	resp, err := u.client.do(ctx, http.MethodGet, "/user", nil, u.accessToken)
	if err != nil {
		return Identity{}, err
	}

	var out userResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return Identity{}, err
	}
	return Identity{ExternalID: out.ID, Email: out.Email}, nil
}

// ListFactors returns the user's registered factors, with the TOTP subset
// split out.
func (u *UserClient) ListFactors(ctx context.Context) (FactorList, error) {
	resp, err := u.client.do(ctx, http.MethodGet, "/factors", nil, u.accessToken)
	if err != nil {
		return FactorList{}, err
	}

	var out factorsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return FactorList{}, err
	}
	return FactorList{All: out.All, TOTP: out.TOTP}, nil
}

// Enroll registers a new unverified TOTP factor and returns its enrollment
// material. The factor only becomes active after a successful Verify.
func (u *UserClient) Enroll(ctx context.Context, friendlyName string) (Enrollment, error) {
	body, err := json.Marshal(enrollRequest{
		FactorType:   FactorTypeTOTP,
		FriendlyName: friendlyName,
		Issuer:       friendlyName,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("idpclient: marshal enroll request: %w", err)
	}

	resp, err := u.client.do(ctx, http.MethodPost, "/factors", bytes.NewReader(body), u.accessToken)
	if err != nil {
		return Enrollment{}, err
	}

	var out enrollResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return Enrollment{}, err
	}
	return Enrollment{
		FactorID:        out.ID,
		Secret:          out.TOTP.Secret,
		ProvisioningURI: out.TOTP.URI,
	}, nil
}

// Challenge opens a fresh short-lived challenge for the factor. Each
// verification attempt gets its own challenge; challenge ids are never reused.
func (u *UserClient) Challenge(ctx context.Context, factorID string) (string, error) {
	path := "/factors/" + url.PathEscape(factorID) + "/challenge"
	resp, err := u.client.do(ctx, http.MethodPost, path, nil, u.accessToken)
	if err != nil {
		return "", err
	}

	var out challengeResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Verify submits a TOTP code against an open challenge. On success the
// provider issues a new session token with the MFA claim satisfied.
func (u *UserClient) Verify(ctx context.Context, factorID, challengeID, code string) (string, error) {
	body, err := json.Marshal(verifyRequest{ChallengeID: challengeID, Code: code})
	if err != nil {
		return "", fmt.Errorf("idpclient: marshal verify request: %w", err)
	}

	path := "/factors/" + url.PathEscape(factorID) + "/verify"
	resp, err := u.client.do(ctx, http.MethodPost, path, bytes.NewReader(body), u.accessToken)
	if err != nil {
		return "", err
	}

	var out verifyResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Unenroll removes a factor at the provider. Callers decide whether a
// factor-not-found answer is benign (see IsFactorNotFound).
func (u *UserClient) Unenroll(ctx context.Context, factorID string) error {
	path := "/factors/" + url.PathEscape(factorID)
	resp, err := u.client.do(ctx, http.MethodDelete, path, nil, u.accessToken)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}
