package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose tags what a token may be used for.
type Purpose string

const (
	PurposeSession       Purpose = "session"
	PurposeVerifyEmail   Purpose = "verify-email"
	PurposeResetPassword Purpose = "reset-password"
)

// SingleUse reports whether tokens of this purpose are consumed on first use.
func (p Purpose) SingleUse() bool {
	return p == PurposeVerifyEmail || p == PurposeResetPassword
}

// Default token lifetimes
const (
	TokenExpirySession       = 7 * 24 * time.Hour
	TokenExpiryVerifyEmail   = 24 * time.Hour
	TokenExpiryResetPassword = 1 * time.Hour
)

// TTLPolicy holds the default lifetime per purpose.
type TTLPolicy struct {
	Session       time.Duration
	VerifyEmail   time.Duration
	ResetPassword time.Duration
}

func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Session:       TokenExpirySession,
		VerifyEmail:   TokenExpiryVerifyEmail,
		ResetPassword: TokenExpiryResetPassword,
	}
}

func (t TTLPolicy) For(p Purpose) time.Duration {
	switch p {
	case PurposeSession:
		return t.Session
	case PurposeVerifyEmail:
		return t.VerifyEmail
	case PurposeResetPassword:
		return t.ResetPassword
	}
	return 0
}

// Claims is the payload of every token.
type Claims struct {
	Purpose Purpose `json:"pur"`
	Epoch   int64   `json:"sep,omitempty"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns the iat claim, or the zero time.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns the exp claim, or the zero time.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssueOption customizes a token at issue time.
type IssueOption func(*Claims)

// WithEpoch stamps the user's session epoch on a session token.
func WithEpoch(epoch int64) IssueOption {
	return func(c *Claims) { c.Epoch = epoch }
}

const minSecretLength = 16

// TokenCodec signs and verifies HS256 tokens with one process-wide secret.
type TokenCodec struct {
	secret []byte
	issuer string

	// TTL holds the lifetimes used when Issue is called with ttl <= 0.
	TTL TTLPolicy

	// Now is the clock used for iat/exp and for verification. Defaults to time.Now.
	Now func() time.Time
}

// NewTokenCodec copies the secret; later changes to the slice do not affect the codec.
func NewTokenCodec(secret []byte, issuer string) (*TokenCodec, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLength)
	}
	if issuer == "" {
		issuer = "authcore"
	}
	return &TokenCodec{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		TTL:    DefaultTTLPolicy(),
		Now:    time.Now,
	}, nil
}

func (c *TokenCodec) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Issue creates a signed token for subject. A ttl <= 0 selects the policy default.
func (c *TokenCodec) Issue(subject string, purpose Purpose, ttl time.Duration, opts ...IssueOption) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("token subject required")
	}
	if ttl <= 0 {
		ttl = c.TTL.For(purpose)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("no lifetime configured for purpose %q", purpose)
	}

	now := c.now()
	claims := &Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	for _, opt := range opts {
		opt(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry, then the purpose.
func (c *TokenCodec) Verify(tokenString string, expected Purpose) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Purpose != expected {
		return nil, ErrPurposeMismatch
	}
	return claims, nil
}
