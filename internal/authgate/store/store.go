// Package store defines the data access interfaces for the gateway's durable
// state. Concrete drivers live under drivers/.
package store

import (
	"context"
	"errors"

	"github.com/lumeos/authgate/internal/authgate/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

// Users is the user-record repository. Records are created out-of-band when
// an identity first registers; the auth service only reads and mutates them.
type Users interface {
	// FindByExternalID returns the record projected for a provider user id,
	// or ErrNotFound.
	FindByExternalID(ctx context.Context, externalID string) (domain.UserRecord, error)

	// Save writes the record's MFA fields back in a single atomic update
	// keyed by id, bumping updated_at. Returns ErrNotFound if the record
	// vanished.
	Save(ctx context.Context, rec domain.UserRecord) error

	// Create inserts a new record (id provided by the caller via ULID).
	Create(ctx context.Context, rec domain.UserRecord) error
}
