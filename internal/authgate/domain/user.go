package domain

import "time"

// UserRecord is the local projection of an identity-provider user. It owns
// the MFA state flags; the email lives at the provider and is resolved at
// read time, never persisted here.
//
// Invariants maintained by the auth service: IsMFASetupComplete implies
// HasMFA, and MFAFactorID is only meaningful while HasMFA is true.
type UserRecord struct {
	ID                 string // local id, ULID
	ExternalID         string // provider user id, unique and immutable
	HasMFA             bool   // an active TOTP factor exists
	IsMFASetupComplete bool   // the factor has been verified at least once
	MFAFactorID        string // last-known provider factor id, "" when unenrolled
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
