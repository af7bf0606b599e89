// Package service holds the authentication orchestration logic: deciding per
// login attempt whether to issue a session, start an MFA challenge, or demand
// enrollment, and how MFA operations mutate the local user record.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumeos/authgate/internal/authgate/domain"
	"github.com/lumeos/authgate/internal/authgate/store"
	"github.com/lumeos/authgate/pkg/idpclient"
	"github.com/lumeos/authgate/pkg/slogx"
)

var (
	// ErrInvalidCredentials is a provider rejection of the primary
	// credentials. User-correctable, maps to 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidMFACode is a provider rejection of a TOTP code. Maps to 401.
	ErrInvalidMFACode = errors.New("invalid MFA code")

	// ErrUserNotFound means the provider identity has no local record. This
	// signals data drift between the provider and the store; it is surfaced,
	// not repaired.
	ErrUserNotFound = errors.New("user record not found")
)

// AuthService orchestrates primary authentication and the MFA factor
// lifecycle against the identity provider and the local user-record store.
// One logical state-machine run per call; no state is shared between calls
// beyond the store.
type AuthService struct {
	IdP   *idpclient.Client
	Store store.Store

	// FriendlyName is the reserved factor name this service manages. Enroll
	// replaces any factor carrying it, which keeps at most one active TOTP
	// factor per user.
	FriendlyName string
}

// Login runs the primary-credential step of the state machine.
//
// With MFA disabled on the record it returns a full session in one provider
// round trip. With MFA enabled it opens a challenge and returns a partial
// session (IsMFAValidated false, FactorID set) whose token authorizes only
// the MFA endpoints. If the record claims MFA but the provider has no
// verified TOTP factor, the record is healed in place (hasMFA cleared,
// persisted) and the attempt proceeds as a no-MFA login. This is the only
// operation that silently repairs state.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.Session, error) {
	signIn, err := s.IdP.SignIn(ctx, email, password)
	if err != nil {
		if idpclient.IsInvalidCredentials(err) {
			return domain.Session{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return domain.Session{}, fmt.Errorf("sign in: %w", err)
	}

	rec, err := s.Store.Users().FindByExternalID(ctx, signIn.ExternalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, fmt.Errorf("%w: external id %s", ErrUserNotFound, signIn.ExternalID)
		}
		return domain.Session{}, fmt.Errorf("load user record: %w", err)
	}

	if rec.HasMFA {
		bound := s.IdP.Bind(signIn.AccessToken)

		factors, err := bound.ListFactors(ctx)
		if err != nil {
			return domain.Session{}, fmt.Errorf("list factors: %w", err)
		}

		if len(factors.TOTP) == 0 {
			// The record says MFA but the provider disagrees. Trust the
			// provider and heal the record before continuing the attempt.
			rec.HasMFA = false
			if err := s.Store.Users().Save(ctx, rec); err != nil {
				return domain.Session{}, fmt.Errorf("heal mfa drift: %w", err)
			}
			slogx.FromContext(ctx).Warn("healed mfa drift", "user_id", rec.ID)
		} else {
			factor := factors.TOTP[0]
			if _, err := bound.Challenge(ctx, factor.ID); err != nil {
				return domain.Session{}, fmt.Errorf("start mfa challenge: %w", err)
			}

			return domain.Session{
				Token: signIn.AccessToken,
				User: domain.SessionUser{
					ID:               rec.ID,
					ExternalID:       rec.ExternalID,
					Email:            signIn.Email,
					HasMFA:           true,
					IsMFAValidated:   false,
					IsFirstMFAAccess: !rec.IsMFASetupComplete,
					FactorID:         factor.ID,
				},
			}, nil
		}
	}

	return domain.Session{
		Token: signIn.AccessToken,
		User: domain.SessionUser{
			ID:               rec.ID,
			ExternalID:       rec.ExternalID,
			Email:            signIn.Email,
			HasMFA:           rec.HasMFA,
			IsMFAValidated:   true,
			IsFirstMFAAccess: !rec.IsMFASetupComplete,
		},
	}, nil
}

// VerifyMFA completes the MFA step. A fresh challenge is opened for every
// attempt so a stale challenge id can never be replayed. The first successful
// verification activates MFA on the record; later ones leave it untouched.
func (s *AuthService) VerifyMFA(ctx context.Context, user *idpclient.UserClient, factorID, code string) (domain.Session, error) {
	challengeID, err := user.Challenge(ctx, factorID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create mfa challenge: %w", err)
	}

	token, err := user.Verify(ctx, factorID, challengeID, code)
	if err != nil {
		if idpclient.IsInvalidCode(err) {
			return domain.Session{}, fmt.Errorf("%w: %w", ErrInvalidMFACode, err)
		}
		return domain.Session{}, fmt.Errorf("verify mfa code: %w", err)
	}

	identity, err := user.GetUser(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("resolve identity: %w", err)
	}

	rec, err := s.Store.Users().FindByExternalID(ctx, identity.ExternalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, fmt.Errorf("%w: external id %s", ErrUserNotFound, identity.ExternalID)
		}
		return domain.Session{}, fmt.Errorf("load user record: %w", err)
	}

	if !rec.IsMFASetupComplete {
		rec.HasMFA = true
		rec.IsMFASetupComplete = true
		if err := s.Store.Users().Save(ctx, rec); err != nil {
			return domain.Session{}, fmt.Errorf("activate mfa: %w", err)
		}
	}

	return domain.Session{
		Token: token,
		User: domain.SessionUser{
			ID:               rec.ID,
			ExternalID:       rec.ExternalID,
			Email:            identity.Email,
			HasMFA:           rec.HasMFA,
			IsMFAValidated:   true,
			IsFirstMFAAccess: false,
		},
	}, nil
}

// EnrollMFA (re-)enrolls the caller's TOTP factor. Any existing factor with
// the reserved friendly name is removed first, so repeated enrollment leaves
// at most one factor. The returned material is shown to the user once.
//
// Activation is deliberately deferred: hasMFA and isMfaSetupComplete only
// flip on the first successful VerifyMFA.
func (s *AuthService) EnrollMFA(ctx context.Context, user *idpclient.UserClient) (domain.MFAEnrollment, error) {
	log := slogx.FromContext(ctx)

	factors, err := user.ListFactors(ctx)
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("list factors: %w", err)
	}

	for _, f := range factors.All {
		if f.FriendlyName != s.FriendlyName {
			continue
		}
		if err := user.Unenroll(ctx, f.ID); err != nil && !idpclient.IsFactorNotFound(err) {
			return domain.MFAEnrollment{}, fmt.Errorf("remove stale factor: %w", err)
		}
	}

	enrollment, err := user.Enroll(ctx, s.FriendlyName)
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("enroll factor: %w", err)
	}

	// Remember the factor id locally, best effort: the provider factor is
	// already created, so a failure here must not fail the enrollment. The
	// login drift check reconciles any mismatch later.
	if identity, err := user.GetUser(ctx); err != nil {
		log.Warn("enroll: identity resolution failed, factor id not persisted", "err", err)
	} else if rec, err := s.Store.Users().FindByExternalID(ctx, identity.ExternalID); err != nil {
		log.Warn("enroll: user record not found, factor id not persisted",
			"external_id", identity.ExternalID, "err", err)
	} else {
		rec.MFAFactorID = enrollment.FactorID
		if err := s.Store.Users().Save(ctx, rec); err != nil {
			log.Warn("enroll: persisting factor id failed", "user_id", rec.ID, "err", err)
		}
	}

	return domain.MFAEnrollment{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
		FactorID:        enrollment.FactorID,
	}, nil
}

// UnenrollMFA removes the factor at the provider and, only on success, clears
// every local MFA field. A failed provider call leaves the record untouched.
func (s *AuthService) UnenrollMFA(ctx context.Context, user *idpclient.UserClient, factorID string) error {
	if err := user.Unenroll(ctx, factorID); err != nil {
		return fmt.Errorf("unenroll factor: %w", err)
	}

	identity, err := user.GetUser(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	rec, err := s.Store.Users().FindByExternalID(ctx, identity.ExternalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: external id %s", ErrUserNotFound, identity.ExternalID)
		}
		return fmt.Errorf("load user record: %w", err)
	}

	rec.HasMFA = false
	rec.IsMFASetupComplete = false
	rec.MFAFactorID = ""
	if err := s.Store.Users().Save(ctx, rec); err != nil {
		return fmt.Errorf("clear mfa state: %w", err)
	}
	return nil
}

// ListMFAFactors projects the provider's factor list. No local state is read
// or written.
func (s *AuthService) ListMFAFactors(ctx context.Context, user *idpclient.UserClient) ([]domain.MFAFactor, error) {
	factors, err := user.ListFactors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list factors: %w", err)
	}

	out := make([]domain.MFAFactor, 0, len(factors.All))
	for _, f := range factors.All {
		out = append(out, domain.MFAFactor{
			ID:     f.ID,
			Type:   f.Type,
			Name:   f.FriendlyName,
			Status: f.Status,
		})
	}
	return out, nil
}

// GetIdentity resolves the provider identity behind the bound token.
func (s *AuthService) GetIdentity(ctx context.Context, user *idpclient.UserClient) (domain.Identity, error) {
	identity, err := user.GetUser(ctx)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("resolve identity: %w", err)
	}
	return domain.Identity{ID: identity.ExternalID, Email: identity.Email}, nil
}
