//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	ac "github.com/interviewhub/authcore"
)

// UserEntity is the Datastore entity for users
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Email        string         `datastore:"email"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	Role         string         `datastore:"role"`
	Verified     bool           `datastore:"verified"`
	FederatedID  string         `datastore:"federated_id"`
	SessionEpoch int64          `datastore:"session_epoch,noindex"`
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
}

func (e *UserEntity) ToUser() *ac.User {
	return &ac.User{
		ID:           e.Key.Name,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		Role:         ac.Role(e.Role),
		Verified:     e.Verified,
		FederatedID:  e.FederatedID,
		SessionEpoch: e.SessionEpoch,
		CreatedAt:    e.CreatedAt.UTC(),
		UpdatedAt:    e.UpdatedAt.UTC(),
	}
}

func UserToEntity(u *ac.User, key *datastore.Key) *UserEntity {
	return &UserEntity{
		Key:          key,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Verified:     u.Verified,
		FederatedID:  u.FederatedID,
		SessionEpoch: u.SessionEpoch,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// IndexEntity maps a unique value (email or federated subject) to its owner.
// The value itself is the key name.
type IndexEntity struct {
	UserID    string    `datastore:"user_id"`
	CreatedAt time.Time `datastore:"created_at,noindex"`
}

// TokenRecordEntity is the Datastore entity for ledger entries
type TokenRecordEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Kind      string         `datastore:"kind"`
	Purpose   string         `datastore:"purpose,noindex"`
	UserID    string         `datastore:"user_id"`
	ExpiresAt time.Time      `datastore:"expires_at"`
	CreatedAt time.Time      `datastore:"created_at,noindex"`
}

func RecordToEntity(r ac.TokenRecord, key *datastore.Key) *TokenRecordEntity {
	return &TokenRecordEntity{
		Key:       key,
		Kind:      string(r.Kind),
		Purpose:   string(r.Purpose),
		UserID:    r.UserID,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}
