package sqlite

import (
	"context"
	"testing"

	"github.com/lumeos/authgate/internal/authgate/domain"
	"github.com/lumeos/authgate/internal/authgate/store"
	"github.com/lumeos/authgate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func TestUsersRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	rec := domain.UserRecord{
		ID:         idx.New().String(),
		ExternalID: "ext-0001",
	}
	require.NoError(t, st.Users().Create(ctx, rec))

	got, err := st.Users().FindByExternalID(ctx, "ext-0001")
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, rec.ExternalID, got.ExternalID)
	require.False(t, got.HasMFA)
	require.False(t, got.IsMFASetupComplete)
	require.Empty(t, got.MFAFactorID)
	require.False(t, got.CreatedAt.IsZero())

	got.HasMFA = true
	got.IsMFASetupComplete = true
	got.MFAFactorID = "factor-1"
	require.NoError(t, st.Users().Save(ctx, got))

	updated, err := st.Users().FindByExternalID(ctx, "ext-0001")
	require.NoError(t, err)
	require.True(t, updated.HasMFA)
	require.True(t, updated.IsMFASetupComplete)
	require.Equal(t, "factor-1", updated.MFAFactorID)

	// Clearing the factor id persists as NULL and reads back empty.
	updated.HasMFA = false
	updated.IsMFASetupComplete = false
	updated.MFAFactorID = ""
	require.NoError(t, st.Users().Save(ctx, updated))

	cleared, err := st.Users().FindByExternalID(ctx, "ext-0001")
	require.NoError(t, err)
	require.Empty(t, cleared.MFAFactorID)
}

func TestUsersNotFound(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.Users().FindByExternalID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	err = st.Users().Save(ctx, domain.UserRecord{ID: idx.New().String()})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsersDuplicateExternalID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	rec := domain.UserRecord{ID: idx.New().String(), ExternalID: "ext-0001"}
	require.NoError(t, st.Users().Create(ctx, rec))

	dup := domain.UserRecord{ID: idx.New().String(), ExternalID: "ext-0001"}
	require.ErrorIs(t, st.Users().Create(ctx, dup), store.ErrAlreadyExists)
}
