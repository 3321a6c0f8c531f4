package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/interviewhub/authcore/logging"
)

// Auth is the credential and session core. Fields are set by the caller;
// EnsureDefaults fills in the optional ones.
type Auth struct {
	// Stores
	Users  UserStore
	Ledger TokenLedger

	// Signs and verifies every token. Required.
	Codec *TokenCodec

	// Defaults to a BcryptHasher with bcrypt.DefaultCost
	Hasher PasswordHasher

	// Receives verification and reset links. Defaults to a LogMailer.
	Mailer Mailer

	// Optional federated identity provider (Google)
	Provider IdentityProvider

	// Policy used by Authorize and SetRole
	Policy Policy

	// Rejects password login for unverified accounts
	RequireVerifiedLogin bool

	// Length bounds for new passwords
	Passwords PasswordPolicy

	Logger logging.Logger

	// Now is the clock used for timestamps and maintenance. Defaults to time.Now.
	Now func() time.Time
}

// NewAuth builds an Auth over a Store that holds both users and token records.
func NewAuth(store Store, codec *TokenCodec) *Auth {
	a := &Auth{
		Users:                store,
		Ledger:               store,
		Codec:                codec,
		Policy:               DefaultPolicy(),
		RequireVerifiedLogin: true,
	}
	a.EnsureDefaults()
	return a
}

// EnsureDefaults fills unset optional fields.
func (a *Auth) EnsureDefaults() {
	if a.Logger == nil {
		a.Logger = logging.Discard()
	}
	if a.Hasher == nil {
		a.Hasher = &BcryptHasher{}
	}
	if a.Mailer == nil {
		a.Mailer = &LogMailer{Logger: a.Logger}
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.Policy.Public == nil && a.Policy.RequireVerified == nil {
		a.Policy = DefaultPolicy()
	}
}

func (a *Auth) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now().UTC()
}

// Register creates an unverified password account and mails a verification link.
func (a *Auth) Register(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := a.Passwords.Validate(password); err != nil {
		return nil, err
	}

	digest, err := a.Hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := a.now()
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: digest,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.Users.Insert(ctx, user); err != nil {
		return nil, err
	}

	a.sendVerification(ctx, user)
	a.Logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// sendVerification issues a verify-email token and hands it to the mailer.
// Failures are logged only.
func (a *Auth) sendVerification(ctx context.Context, user *User) {
	token, err := a.Codec.Issue(user.ID, PurposeVerifyEmail, 0)
	if err != nil {
		a.Logger.Error(ctx, "failed to issue verification token", "user_id", user.ID, "error", err)
		return
	}
	if err := a.Mailer.SendVerificationLink(ctx, user.Email, token); err != nil {
		a.Logger.Warn(ctx, "failed to send verification email", "user_id", user.ID, "error", err)
	}
}

// Login checks a password and issues a session token.
func (a *Auth) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := a.Users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", nil, err
	}

	digest := ""
	if user != nil {
		digest = user.PasswordHash
	}
	// unknown and federated-only accounts still pay for a comparison
	ok := a.Hasher.Verify(password, digest)
	if user == nil || !ok {
		return "", nil, ErrInvalidCredentials
	}

	if a.RequireVerifiedLogin && !user.Verified {
		return "", nil, ErrAccountUnverified
	}

	token, err := a.issueSession(user)
	if err != nil {
		return "", nil, err
	}
	a.Logger.Info(ctx, "user logged in", "user_id", user.ID)
	return token, user, nil
}

func (a *Auth) issueSession(user *User) (string, error) {
	return a.Codec.Issue(user.ID, PurposeSession, 0, WithEpoch(user.SessionEpoch))
}

// SessionTTL is the lifetime of session tokens, used for the cookie Max-Age.
func (a *Auth) SessionTTL() time.Duration {
	return a.Codec.TTL.For(PurposeSession)
}

// Logout revokes a session token until its natural expiry.
func (a *Auth) Logout(ctx context.Context, token string) error {
	claims, err := a.Codec.Verify(token, PurposeSession)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return nil
	case err != nil:
		return ErrSessionInvalid
	}

	err = a.Ledger.Revoke(ctx, TokenRecord{
		ID:        claims.ID,
		Kind:      RecordRevoked,
		Purpose:   PurposeSession,
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAtTime(),
		CreatedAt: a.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	a.Logger.Info(ctx, "user logged out", "user_id", claims.Subject)
	return nil
}

// CurrentUser resolves a session token to its user.
func (a *Auth) CurrentUser(ctx context.Context, token string) (*User, error) {
	claims, err := a.Codec.Verify(token, PurposeSession)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return nil, ErrSessionExpired
	case err != nil:
		return nil, ErrSessionInvalid
	}

	revoked, err := a.Ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrSessionInvalid
	}

	user, err := a.Users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrSessionInvalid
	}
	if claims.Epoch < user.SessionEpoch {
		return nil, ErrSessionExpired
	}
	return user, nil
}
