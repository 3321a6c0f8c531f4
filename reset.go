package authcore

import (
	"context"
	"errors"
)

// RequestReset mails a reset link when the address belongs to an account.
// It always returns nil so callers cannot discover registered emails.
func (a *Auth) RequestReset(ctx context.Context, email string) error {
	user, err := a.Users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		a.Logger.Error(ctx, "reset lookup failed", "error", err)
		return nil
	}
	if user == nil {
		return nil
	}

	token, err := a.Codec.Issue(user.ID, PurposeResetPassword, 0)
	if err != nil {
		a.Logger.Error(ctx, "failed to issue reset token", "user_id", user.ID, "error", err)
		return nil
	}
	if err := a.Mailer.SendResetLink(ctx, user.Email, token); err != nil {
		a.Logger.Warn(ctx, "failed to send reset email", "user_id", user.ID, "error", err)
	}
	return nil
}

// CompleteReset spends a reset token, stores the new password and ends every
// session issued before it.
func (a *Auth) CompleteReset(ctx context.Context, token, newPassword string) error {
	claims, err := a.Codec.Verify(token, PurposeResetPassword)
	switch {
	case errors.Is(err, ErrPurposeMismatch):
		return ErrTokenInvalid
	case err != nil:
		return err
	}

	// a rejected password must not burn the token
	if err := a.Passwords.Validate(newPassword); err != nil {
		return err
	}

	user, err := a.Users.FindByID(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrTokenInvalid
	}

	if err := a.Ledger.Consume(ctx, a.consumedRecord(claims)); err != nil {
		return err
	}

	digest, err := a.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	_, err = a.updateExisting(ctx, user.ID, UserUpdate{PasswordHash: &digest, BumpSessionEpoch: true})
	if err != nil {
		return err
	}
	a.Logger.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}
