package authcore

import (
	"context"
	"time"
)

// UserStore persists accounts. Lookups report a missing record as (nil, nil).
// Emails are passed normalized (see NormalizeEmail).
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByFederatedID(ctx context.Context, federatedID string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)

	// Insert atomically creates a user. It fails with ErrEmailTaken or
	// ErrFederatedIDTaken when a unique field is already in use.
	Insert(ctx context.Context, user *User) error

	// UpdateFields applies a partial update and returns the stored result,
	// or (nil, nil) when no user has the id.
	UpdateFields(ctx context.Context, id string, update UserUpdate) (*User, error)
}

// RecordKind tells consumed single-use tokens apart from revoked sessions.
type RecordKind string

const (
	RecordConsumed RecordKind = "consumed"
	RecordRevoked  RecordKind = "revoked"
)

// TokenRecord is the server side trace of a token, keyed by its jti.
// It lives until ExpiresAt, the expiry of the token itself.
type TokenRecord struct {
	ID        string     `json:"id"`
	Kind      RecordKind `json:"kind"`
	Purpose   Purpose    `json:"purpose"`
	UserID    string     `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// TokenLedger keeps consumption and revocation records.
type TokenLedger interface {
	// Consume records a single-use token as spent. It is an atomic
	// insert-if-absent and fails with ErrTokenAlreadyUsed on the second call.
	Consume(ctx context.Context, record TokenRecord) error

	// Revoke marks a session token as logged out. Repeated calls are fine.
	Revoke(ctx context.Context, record TokenRecord) error

	IsRevoked(ctx context.Context, id string) (bool, error)

	// PurgeExpired deletes records whose ExpiresAt is strictly before the cutoff
	// and returns how many were removed.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Store is a backend that holds both users and token records.
type Store interface {
	UserStore
	TokenLedger
}
