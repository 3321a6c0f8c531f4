package authcore

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the only component that touches raw password bytes.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext matches digest. An empty digest never
	// matches but still costs a full comparison.
	Verify(plaintext, digest string) bool
}

// BcryptHasher hashes with bcrypt. The zero value uses bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int

	dummyOnce sync.Once
	dummy     []byte
}

func (h *BcryptHasher) cost() int {
	if h.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return h.Cost
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost())
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	if digest == "" {
		// keep unknown accounts as slow as wrong passwords
		_ = bcrypt.CompareHashAndPassword(h.dummyHash(), []byte(plaintext))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

func (h *BcryptHasher) dummyHash() []byte {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("authcore-dummy-password"), h.cost())
	})
	return h.dummy
}

// bcrypt ignores every byte past the 72nd
const maxBcryptPasswordLength = 72

// PasswordPolicy bounds the length, in bytes, of passwords accepted at
// registration and reset. The zero value accepts any non-empty password
// bcrypt can hash in full.
type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

// GetMinLength returns the minimum length, at least 1.
func (p PasswordPolicy) GetMinLength() int {
	if p.MinLength < 1 {
		return 1
	}
	return p.MinLength
}

// GetMaxLength returns the maximum length, capped at 72.
func (p PasswordPolicy) GetMaxLength() int {
	if p.MaxLength <= 0 || p.MaxLength > maxBcryptPasswordLength {
		return maxBcryptPasswordLength
	}
	return p.MaxLength
}

// Validate fails with ErrWeakPassword when password falls outside the bounds.
func (p PasswordPolicy) Validate(password string) error {
	if n := len(password); n < p.GetMinLength() || n > p.GetMaxLength() {
		return fmt.Errorf("%w: must be %d to %d characters", ErrWeakPassword, p.GetMinLength(), p.GetMaxLength())
	}
	return nil
}
