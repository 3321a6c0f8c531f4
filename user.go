package authcore

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a stored or submitted role name onto a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account record as held by a UserStore.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Verified     bool      `json:"verified"`
	FederatedID  string    `json:"federated_id,omitempty"`
	SessionEpoch int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Validate checks the invariants every store enforces on insert.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id required")
	}
	if u.Email == "" {
		return ErrInvalidEmail
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	if u.PasswordHash == "" && u.FederatedID == "" {
		return ErrNoCredentials
	}
	return nil
}

// UserUpdate is a partial update applied by UserStore.UpdateFields.
// Verification can only be switched on.
type UserUpdate struct {
	PasswordHash     *string
	Role             *Role
	MarkVerified     bool
	FederatedID      *string
	BumpSessionEpoch bool
}

// IsEmpty reports whether the update changes nothing. Stores answer an empty
// update with a plain lookup and write nothing.
func (p UserUpdate) IsEmpty() bool {
	return p.PasswordHash == nil && p.Role == nil && !p.MarkVerified && p.FederatedID == nil && !p.BumpSessionEpoch
}

// Apply writes the update onto u. Stores without native partial updates use it.
func (p UserUpdate) Apply(u *User, now time.Time) {
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.MarkVerified {
		u.Verified = true
	}
	if p.FederatedID != nil {
		u.FederatedID = *p.FederatedID
	}
	if p.BumpSessionEpoch {
		u.SessionEpoch++
	}
	u.UpdatedAt = now
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail lower-cases and trims an address. Emails compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the format of an already normalized address.
func ValidateEmail(email string) error {
	if len(email) > 320 || !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}
