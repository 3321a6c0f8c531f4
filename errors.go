package authcore

import "errors"

// Credential and session errors. Callers match them with errors.Is.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailTaken           = errors.New("email already registered")
	ErrAccountUnverified    = errors.New("account not verified")
	ErrVerificationRequired = errors.New("verification required")
	ErrAlreadyVerified      = errors.New("already verified")

	ErrTokenInvalid     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenAlreadyUsed = errors.New("token already used")
	ErrPurposeMismatch  = errors.New("token purpose mismatch")

	ErrSessionInvalid = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")

	ErrNonceMismatch   = errors.New("nonce mismatch")
	ErrFederationError = errors.New("federated login failed")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// Input and store errors.
	ErrInvalidEmail     = errors.New("invalid email")
	ErrWeakPassword     = errors.New("password does not meet the length policy")
	ErrFederatedIDTaken = errors.New("federated identity already linked")
	ErrNoCredentials    = errors.New("user needs a password or a federated identity")
	ErrInvalidRole      = errors.New("invalid role")
	ErrUserNotFound     = errors.New("user not found")
)
