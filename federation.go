package authcore

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// FederatedIdentity is what a provider asserts about the signed-in user.
type FederatedIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// IdentityProvider runs the authorization code flow against an external provider.
type IdentityProvider interface {
	// AuthCodeURL returns the provider consent URL carrying nonce as state.
	AuthCodeURL(nonce string) string

	// Exchange trades an authorization code for the caller's identity.
	Exchange(ctx context.Context, code string) (*FederatedIdentity, error)
}

const nonceBytes = 16

// NewNonce returns 16 random bytes, base64url encoded without padding.
func NewNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// BeginFederatedLogin returns the provider redirect and the nonce the caller must
// bind to the browser session.
func (a *Auth) BeginFederatedLogin(ctx context.Context) (string, string, error) {
	if a.Provider == nil {
		return "", "", fmt.Errorf("%w: no identity provider configured", ErrFederationError)
	}
	nonce, err := NewNonce()
	if err != nil {
		return "", "", err
	}
	return a.Provider.AuthCodeURL(nonce), nonce, nil
}

// CompleteFederatedLogin finishes the callback leg: it checks state against the
// bound nonce, exchanges the code, then finds, links or creates the account.
func (a *Auth) CompleteFederatedLogin(ctx context.Context, code, state, expectedNonce string) (string, *User, error) {
	if expectedNonce == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedNonce)) != 1 {
		return "", nil, ErrNonceMismatch
	}
	if a.Provider == nil {
		return "", nil, fmt.Errorf("%w: no identity provider configured", ErrFederationError)
	}

	identity, err := a.Provider.Exchange(ctx, code)
	if err != nil {
		a.Logger.Warn(ctx, "federated code exchange failed", "error", err)
		return "", nil, fmt.Errorf("%w: %v", ErrFederationError, err)
	}
	if identity == nil || identity.Subject == "" || identity.Email == "" {
		return "", nil, fmt.Errorf("%w: incomplete identity", ErrFederationError)
	}
	if !identity.EmailVerified {
		return "", nil, fmt.Errorf("%w: provider email not verified", ErrFederationError)
	}

	user, err := a.resolveFederated(ctx, identity)
	if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrFederatedIDTaken) {
		// lost an insert race with a concurrent callback for the same identity
		user, err = a.resolveFederated(ctx, identity)
	}
	if err != nil {
		return "", nil, err
	}

	token, err := a.issueSession(user)
	if err != nil {
		return "", nil, err
	}
	a.Logger.Info(ctx, "federated login", "user_id", user.ID)
	return token, user, nil
}

func (a *Auth) resolveFederated(ctx context.Context, identity *FederatedIdentity) (*User, error) {
	user, err := a.Users.FindByFederatedID(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if user.Verified {
			return user, nil
		}
		return a.updateExisting(ctx, user.ID, UserUpdate{MarkVerified: true})
	}

	email := NormalizeEmail(identity.Email)
	user, err = a.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if user.FederatedID != "" {
			return nil, fmt.Errorf("%w: email linked to another account", ErrFederationError)
		}
		subject := identity.Subject
		linked, err := a.updateExisting(ctx, user.ID, UserUpdate{FederatedID: &subject, MarkVerified: true})
		if err != nil {
			return nil, err
		}
		a.Logger.Info(ctx, "linked federated identity", "user_id", linked.ID)
		return linked, nil
	}

	now := a.now()
	user = &User{
		ID:          uuid.NewString(),
		Email:       email,
		Role:        RoleUser,
		Verified:    true,
		FederatedID: identity.Subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.Users.Insert(ctx, user); err != nil {
		return nil, err
	}
	a.Logger.Info(ctx, "user registered via federated login", "user_id", user.ID)
	return user, nil
}

func (a *Auth) updateExisting(ctx context.Context, id string, update UserUpdate) (*User, error) {
	user, err := a.Users.UpdateFields(ctx, id, update)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
