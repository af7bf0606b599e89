package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lumeos/authgate/internal/authgate/domain"
	"github.com/lumeos/authgate/internal/authgate/store"
)

type usersRepo struct {
	db *sql.DB
}

func (r *usersRepo) FindByExternalID(ctx context.Context, externalID string) (domain.UserRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, external_id, has_mfa, is_mfa_setup_complete, mfa_factor_id, created_at, updated_at
		FROM users
		WHERE external_id = ?`, externalID)

	var rec domain.UserRecord
	var factorID sql.NullString
	err := row.Scan(
		&rec.ID,
		&rec.ExternalID,
		&rec.HasMFA,
		&rec.IsMFASetupComplete,
		&factorID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return domain.UserRecord{}, mapNotFound(err)
	}
	if factorID.Valid {
		rec.MFAFactorID = factorID.String
	}
	return rec, nil
}

// Save writes the MFA fields in one statement so concurrent operations on the
// same record never observe a partial update.
func (r *usersRepo) Save(ctx context.Context, rec domain.UserRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET has_mfa = ?, is_mfa_setup_complete = ?, mfa_factor_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		rec.HasMFA,
		rec.IsMFASetupComplete,
		nullString(rec.MFAFactorID),
		rec.ID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) Create(ctx context.Context, rec domain.UserRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, external_id, has_mfa, is_mfa_setup_complete, mfa_factor_id)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID,
		rec.ExternalID,
		rec.HasMFA,
		rec.IsMFASetupComplete,
		nullString(rec.MFAFactorID),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
