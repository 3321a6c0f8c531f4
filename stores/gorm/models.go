//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	ac "github.com/interviewhub/authcore"
)

// UserModel is the GORM model for users. FederatedID is nullable so that the
// unique index only covers linked accounts.
type UserModel struct {
	ID           string  `gorm:"primaryKey;size:64"`
	Email        string  `gorm:"uniqueIndex;size:320;not null"`
	PasswordHash string  `gorm:"size:128"`
	Role         string  `gorm:"size:16;not null;default:user"`
	Verified     bool    `gorm:"not null;default:false"`
	FederatedID  *string `gorm:"uniqueIndex;size:255"`
	SessionEpoch int64   `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func userModelFrom(u *ac.User) *UserModel {
	m := &UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Verified:     u.Verified,
		SessionEpoch: u.SessionEpoch,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
	if u.FederatedID != "" {
		fid := u.FederatedID
		m.FederatedID = &fid
	}
	return m
}

func (m *UserModel) ToUser() *ac.User {
	u := &ac.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         ac.Role(m.Role),
		Verified:     m.Verified,
		SessionEpoch: m.SessionEpoch,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if m.FederatedID != nil {
		u.FederatedID = *m.FederatedID
	}
	return u
}

// TokenRecordModel is the GORM model for ledger entries
type TokenRecordModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Kind      string    `gorm:"size:16;not null"`
	Purpose   string    `gorm:"size:32"`
	UserID    string    `gorm:"size:64;index"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

func (TokenRecordModel) TableName() string {
	return "token_records"
}

func recordModelFrom(r ac.TokenRecord) *TokenRecordModel {
	return &TokenRecordModel{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Purpose:   string(r.Purpose),
		UserID:    r.UserID,
		ExpiresAt: r.ExpiresAt.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
	}
}
