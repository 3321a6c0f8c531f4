package authcore

import (
	"context"
	"errors"
)

// ConfirmVerification spends a verify-email token and marks its user verified.
// Verification only moves from false to true.
func (a *Auth) ConfirmVerification(ctx context.Context, token string) (*User, error) {
	claims, err := a.Codec.Verify(token, PurposeVerifyEmail)
	switch {
	case errors.Is(err, ErrPurposeMismatch):
		return nil, ErrTokenInvalid
	case err != nil:
		return nil, err
	}

	user, err := a.Users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrTokenInvalid
	}
	if user.Verified {
		return nil, ErrAlreadyVerified
	}

	err = a.Ledger.Consume(ctx, a.consumedRecord(claims))
	if errors.Is(err, ErrTokenAlreadyUsed) {
		return nil, ErrAlreadyVerified
	}
	if err != nil {
		return nil, err
	}

	user, err = a.updateExisting(ctx, user.ID, UserUpdate{MarkVerified: true})
	if err != nil {
		return nil, err
	}
	a.Logger.Info(ctx, "email verified", "user_id", user.ID)
	return user, nil
}

// ResendVerification mails a fresh link to an existing unverified account.
// The result never reveals whether the address is registered.
func (a *Auth) ResendVerification(ctx context.Context, email string) error {
	user, err := a.Users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		a.Logger.Error(ctx, "resend verification lookup failed", "error", err)
		return nil
	}
	if user == nil || user.Verified {
		return nil
	}
	a.sendVerification(ctx, user)
	return nil
}

// RequireVerified gates actions that need a verified account.
func RequireVerified(user *User) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if !user.Verified {
		return ErrVerificationRequired
	}
	return nil
}

func (a *Auth) consumedRecord(claims *Claims) TokenRecord {
	return TokenRecord{
		ID:        claims.ID,
		Kind:      RecordConsumed,
		Purpose:   claims.Purpose,
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAtTime(),
		CreatedAt: a.now(),
	}
}
