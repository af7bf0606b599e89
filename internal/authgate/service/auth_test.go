package service

import (
	"context"
	"testing"

	"github.com/lumeos/authgate/internal/authgate/domain"
	"github.com/lumeos/authgate/internal/authgate/store/drivers/sqlite"
	"github.com/lumeos/authgate/pkg/idpclient"
	"github.com/lumeos/authgate/pkg/idpclient/idptest"
	"github.com/lumeos/authgate/pkg/idx"
	"github.com/stretchr/testify/require"
)

const friendlyName = "authgate-test"

type env struct {
	idp   *idptest.Server
	store *sqlite.Store
	auth  *AuthService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	srv := idptest.New(t)

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	return &env{
		idp:   srv,
		store: st,
		auth: &AuthService{
			IdP:          idpclient.New(srv.URL(), idptest.ServiceKey),
			Store:        st,
			FriendlyName: friendlyName,
		},
	}
}

// seedUser registers an identity at the provider and mirrors it locally.
func (e *env) seedUser(t *testing.T, email, password string, rec domain.UserRecord) (idptest.User, domain.UserRecord) {
	t.Helper()

	u := e.idp.AddUser(email, password)
	rec.ID = idx.New().String()
	rec.ExternalID = u.ID
	require.NoError(t, e.store.Users().Create(context.Background(), rec))
	return u, rec
}

// bind mints a token for the user and wraps it in a bound client, the way the
// auth middleware does for incoming requests.
func (e *env) bind(t *testing.T, userID string) *idpclient.UserClient {
	t.Helper()
	return e.auth.IdP.Bind(e.idp.TokenFor(t, userID))
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid credentials", func(t *testing.T) {
		e := newEnv(t)
		e.seedUser(t, "alice@example.com", "hunter2", domain.UserRecord{})

		_, err := e.auth.Login(ctx, "alice@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = e.auth.Login(ctx, "nobody@example.com", "hunter2")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("surfaces missing local record", func(t *testing.T) {
		e := newEnv(t)
		e.idp.AddUser("ghost@example.com", "hunter2")

		_, err := e.auth.Login(ctx, "ghost@example.com", "hunter2")
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("no mfa issues a full session", func(t *testing.T) {
		e := newEnv(t)
		_, rec := e.seedUser(t, "alice@example.com", "hunter2", domain.UserRecord{})

		session, err := e.auth.Login(ctx, "alice@example.com", "hunter2")
		require.NoError(t, err)

		require.NotEmpty(t, session.Token)
		require.Equal(t, rec.ID, session.User.ID)
		require.Equal(t, rec.ExternalID, session.User.ExternalID)
		require.Equal(t, "alice@example.com", session.User.Email)
		require.False(t, session.User.HasMFA)
		require.True(t, session.User.IsMFAValidated)
		require.Empty(t, session.User.FactorID)
	})

	t.Run("mfa enabled issues a partial session with a pending challenge", func(t *testing.T) {
		e := newEnv(t)
		u, _ := e.seedUser(t, "bob@example.com", "hunter2", domain.UserRecord{
			HasMFA:             true,
			IsMFASetupComplete: true,
		})
		factor := e.idp.SeedVerifiedFactor(u.ID, friendlyName)

		session, err := e.auth.Login(ctx, "bob@example.com", "hunter2")
		require.NoError(t, err)

		require.NotEmpty(t, session.Token)
		require.True(t, session.User.HasMFA)
		require.False(t, session.User.IsMFAValidated)
		require.False(t, session.User.IsFirstMFAAccess)
		require.Equal(t, factor.ID, session.User.FactorID)
	})

	t.Run("heals drift when the provider lost the factor", func(t *testing.T) {
		e := newEnv(t)
		u, rec := e.seedUser(t, "carol@example.com", "hunter2", domain.UserRecord{
			HasMFA:             true,
			IsMFASetupComplete: true,
			MFAFactorID:        "stale-factor-id",
		})
		// The record claims MFA but the provider has no factor at all.
		e.idp.RemoveFactors(u.ID)

		session, err := e.auth.Login(ctx, "carol@example.com", "hunter2")
		require.NoError(t, err)
		require.False(t, session.User.HasMFA)
		require.True(t, session.User.IsMFAValidated)

		healed, err := e.store.Users().FindByExternalID(ctx, rec.ExternalID)
		require.NoError(t, err)
		require.False(t, healed.HasMFA)

		// A second login takes the plain no-MFA path, no further writes.
		session, err = e.auth.Login(ctx, "carol@example.com", "hunter2")
		require.NoError(t, err)
		require.False(t, session.User.HasMFA)
		require.True(t, session.User.IsMFAValidated)
	})

	t.Run("provider outage is not reported as bad credentials", func(t *testing.T) {
		e := newEnv(t)
		e.seedUser(t, "dave@example.com", "hunter2", domain.UserRecord{})
		e.idp.FailWith(500)

		_, err := e.auth.Login(ctx, "dave@example.com", "hunter2")
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestVerifyMFA(t *testing.T) {
	ctx := context.Background()

	t.Run("first verification activates mfa on the record", func(t *testing.T) {
		e := newEnv(t)
		u, rec := e.seedUser(t, "alice@example.com", "hunter2", domain.UserRecord{
			HasMFA: true,
		})
		factor := e.idp.SeedVerifiedFactor(u.ID, friendlyName)

		user := e.bind(t, u.ID)
		session, err := e.auth.VerifyMFA(ctx, user, factor.ID, e.idp.CurrentCode(t, factor.ID))
		require.NoError(t, err)

		require.NotEmpty(t, session.Token)
		require.NotEqual(t, user.AccessToken(), session.Token)
		require.True(t, session.User.IsMFAValidated)
		require.False(t, session.User.IsFirstMFAAccess)

		updated, err := e.store.Users().FindByExternalID(ctx, rec.ExternalID)
		require.NoError(t, err)
		require.True(t, updated.HasMFA)
		require.True(t, updated.IsMFASetupComplete)
	})

	t.Run("later verifications leave the record untouched", func(t *testing.T) {
		e := newEnv(t)
		u, rec := e.seedUser(t, "bob@example.com", "hunter2", domain.UserRecord{
			HasMFA:             true,
			IsMFASetupComplete: true,
			MFAFactorID:        "known-factor",
		})
		factor := e.idp.SeedVerifiedFactor(u.ID, friendlyName)

		_, err := e.auth.VerifyMFA(ctx, e.bind(t, u.ID), factor.ID, e.idp.CurrentCode(t, factor.ID))
		require.NoError(t, err)

		updated, err := e.store.Users().FindByExternalID(ctx, rec.ExternalID)
		require.NoError(t, err)
		require.Equal(t, rec.HasMFA, updated.HasMFA)
		require.Equal(t, rec.IsMFASetupComplete, updated.IsMFASetupComplete)
		require.Equal(t, rec.MFAFactorID, updated.MFAFactorID)
	})

	t.Run("wrong code is rejected without touching the record", func(t *testing.T) {
		e := newEnv(t)
		u, rec := e.seedUser(t, "carol@example.com", "hunter2", domain.UserRecord{
			HasMFA: true,
		})
		factor := e.idp.SeedVerifiedFactor(u.ID, friendlyName)

		_, err := e.auth.VerifyMFA(ctx, e.bind(t, u.ID), factor.ID, "000000")
		require.ErrorIs(t, err, ErrInvalidMFACode)

		updated, err := e.store.Users().FindByExternalID(ctx, rec.ExternalID)
		require.NoError(t, err)
		require.False(t, updated.IsMFASetupComplete)
	})

	t.Run("unknown factor is an upstream error, not a bad code", func(t *testing.T) {
		e := newEnv(t)
		u, _ := e.seedUser(t, "dave@example.com", "hunter2", domain.UserRecord{})

		_, err := e.auth.VerifyMFA(ctx, e.bind(t, u.ID), "no-such-factor", "123456")
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrInvalidMFACode)
	})
}

func TestEnrollMFA(t *testing.T) {
	ctx := context.Background()

	t.Run("returns material and remembers the factor id", func(t *testing.T) {
		e := newEnv(t)
		u, rec := e.seedUser(t, "alice@example.com", "hunter2", domain.UserRecord{})

		enrollment, err := e.auth.EnrollMFA(ctx, e.bind(t, u.ID))
		require.NoError(t, err)
		require.NotEmpty(t, enrollment.Secret)
		require.NotEmpty(t, enrollment.ProvisioningURI)
		require.NotEmpty(t, enrollment.FactorID)

		updated, err := e.store.Users().FindByExternalID(ctx, rec.ExternalID)
		require.NoError(t, err)
		require.Equal(t, enrollment.FactorID, updated.MFAFactorID)

		// Activation is deferred to the first verification.
		require.False(t, updated.HasMFA)
		require.False(t, updated.IsMFASetupComplete)
	})

	t.Run("re-enrolling replaces the abandoned factor", func(t *testing.T) {
		e := newEnv(t)
		u, _ := e.seedUser(t, "bob@example.com", "hunter2", domain.UserRecord{})

		first, err := e.auth.EnrollMFA(ctx, e.bind(t, u.ID))
		require.NoError(t, err)

		second, err := e.auth.EnrollMFA(ctx, e.bind(t, u.ID))
		require.NoError(t, err)
		require.NotEqual(t, first.FactorID, second.FactorID)

		factors := e.idp.FactorsFor(u.ID)
		require.Len(t, factors, 1)
		require.Equal(t, second.FactorID, factors[0].ID)
	})

	t.Run("factors under other names are left alone", func(t *testing.T) {
		e := newEnv(t)
		u, _ := e.seedUser(t, "carol@example.com", "hunter2", domain.UserRecord{})
		foreign := e.idp.SeedVerifiedFactor(u.ID, "some-other-app")

		_, err := e.auth.EnrollMFA(ctx, e.bind(t, u.ID))
		require.NoError(t, err)

		var ids []string
		for _, f := range e.idp.FactorsFor(u.ID) {
			ids = append(ids, f.ID)
		}
		require.Contains(t, ids, foreign.ID)
		require.Len(t, ids, 2)
	})
}

func TestUnenrollMFA(t *testing.T) {
	ctx := context.Background()

	t.Run("clears every mfa field on success", func(t *testing.T) {
		e := newEnv(t)
		u, rec := e.seedUser(t, "alice@example.com", "hunter2", domain.UserRecord{
			HasMFA:             true,
			IsMFASetupComplete: true,
		})
		factor := e.idp.SeedVerifiedFactor(u.ID, friendlyName)

		require.NoError(t, e.auth.UnenrollMFA(ctx, e.bind(t, u.ID), factor.ID))

		require.Empty(t, e.idp.FactorsFor(u.ID))

		updated, err := e.store.Users().FindByExternalID(ctx, rec.ExternalID)
		require.NoError(t, err)
		require.False(t, updated.HasMFA)
		require.False(t, updated.IsMFASetupComplete)
		require.Empty(t, updated.MFAFactorID)
	})

	t.Run("provider failure leaves the record untouched", func(t *testing.T) {
		e := newEnv(t)
		u, rec := e.seedUser(t, "bob@example.com", "hunter2", domain.UserRecord{
			HasMFA:             true,
			IsMFASetupComplete: true,
			MFAFactorID:        "factor-1",
		})

		err := e.auth.UnenrollMFA(ctx, e.bind(t, u.ID), "no-such-factor")
		require.Error(t, err)

		updated, err := e.store.Users().FindByExternalID(ctx, rec.ExternalID)
		require.NoError(t, err)
		require.True(t, updated.HasMFA)
		require.True(t, updated.IsMFASetupComplete)
		require.Equal(t, "factor-1", updated.MFAFactorID)
	})
}

func TestListMFAFactors(t *testing.T) {
	ctx := context.Background()

	e := newEnv(t)
	u, _ := e.seedUser(t, "alice@example.com", "hunter2", domain.UserRecord{})
	seeded := e.idp.SeedVerifiedFactor(u.ID, friendlyName)

	factors, err := e.auth.ListMFAFactors(ctx, e.bind(t, u.ID))
	require.NoError(t, err)
	require.Len(t, factors, 1)
	require.Equal(t, seeded.ID, factors[0].ID)
	require.Equal(t, "totp", factors[0].Type)
	require.Equal(t, friendlyName, factors[0].Name)
	require.Equal(t, "verified", factors[0].Status)
}

func TestGetIdentity(t *testing.T) {
	ctx := context.Background()

	e := newEnv(t)
	u, _ := e.seedUser(t, "alice@example.com", "hunter2", domain.UserRecord{})

	identity, err := e.auth.GetIdentity(ctx, e.bind(t, u.ID))
	require.NoError(t, err)
	require.Equal(t, u.ID, identity.ID)
	require.Equal(t, "alice@example.com", identity.Email)
}

// TestEnrollToLoginLifecycle walks a fresh user through enrollment, first
// verification and the subsequent challenged login.
func TestEnrollToLoginLifecycle(t *testing.T) {
	ctx := context.Background()

	e := newEnv(t)
	_, rec := e.seedUser(t, "alice@example.com", "hunter2", domain.UserRecord{})

	// Login before enrollment: plain full session.
	session, err := e.auth.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	require.False(t, session.User.HasMFA)
	require.True(t, session.User.IsMFAValidated)

	// Enroll, then prove possession of the authenticator.
	user := e.auth.IdP.Bind(session.Token)
	enrollment, err := e.auth.EnrollMFA(ctx, user)
	require.NoError(t, err)

	session, err = e.auth.VerifyMFA(ctx, user, enrollment.FactorID, e.idp.CurrentCode(t, enrollment.FactorID))
	require.NoError(t, err)
	require.True(t, session.User.HasMFA)
	require.True(t, session.User.IsMFAValidated)

	// The next login demands a challenge against the enrolled factor.
	session, err = e.auth.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	require.False(t, session.User.IsMFAValidated)
	require.Equal(t, enrollment.FactorID, session.User.FactorID)

	// Completing the challenge upgrades to a full session.
	session, err = e.auth.VerifyMFA(ctx, e.auth.IdP.Bind(session.Token), session.User.FactorID, e.idp.CurrentCode(t, session.User.FactorID))
	require.NoError(t, err)
	require.True(t, session.User.IsMFAValidated)
	require.Equal(t, rec.ID, session.User.ID)

	// And unenrollment returns the user to plain logins.
	require.NoError(t, e.auth.UnenrollMFA(ctx, e.auth.IdP.Bind(session.Token), enrollment.FactorID))

	session, err = e.auth.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	require.False(t, session.User.HasMFA)
	require.True(t, session.User.IsMFAValidated)
}
