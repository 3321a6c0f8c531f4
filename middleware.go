package authcore

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type userContextKey struct{}

// SessionResolver turns a session token into a user. *Auth implements it.
type SessionResolver interface {
	CurrentUser(ctx context.Context, token string) (*User, error)
}

// Middleware resolves the session token on a request and exposes the user
// to downstream handlers through UserFromContext.
type Middleware struct {
	Resolver SessionResolver

	// Cookie carrying the session token. Defaults to "token".
	AuthTokenCookieName string

	// Header carrying "Bearer <token>". Defaults to "Authorization".
	AuthTokenHeaderName string

	// Writes error responses. Defaults to WriteError.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// EnsureReasonableDefaults fills unset fields.
func (m *Middleware) EnsureReasonableDefaults() {
	if m.AuthTokenCookieName == "" {
		m.AuthTokenCookieName = "token"
	}
	if m.AuthTokenHeaderName == "" {
		m.AuthTokenHeaderName = "Authorization"
	}
	if m.OnError == nil {
		m.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
			WriteError(w, err)
		}
	}
}

// TokenFromRequest returns the bearer token from the header, or else the cookie.
func (m *Middleware) TokenFromRequest(r *http.Request) string {
	m.EnsureReasonableDefaults()
	for _, h := range r.Header.Values(m.AuthTokenHeaderName) {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok && token != "" {
			return strings.TrimSpace(token)
		}
	}
	for _, cookie := range r.CookiesNamed(m.AuthTokenCookieName) {
		if cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

func (m *Middleware) resolve(r *http.Request) (*User, error) {
	token := m.TokenFromRequest(r)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	return m.Resolver.CurrentUser(r.Context(), token)
}

// ExtractUser loads the user when a valid session is present and passes the
// request on either way.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := m.resolve(r); err == nil {
			r = WithUser(r, user)
		}
		next.ServeHTTP(w, r)
	})
}

// EnsureUser rejects requests without a valid session.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.resolve(r)
		if err != nil {
			m.OnError(w, r, err)
			return
		}
		next.ServeHTTP(w, WithUser(r, user))
	})
}

// OwnerFunc extracts the owner id of the resource a request targets.
type OwnerFunc func(r *http.Request) string

// RequireAction lets a request through only when policy allows action.
// owner may be nil for actions on resources without an owner.
func (m *Middleware) RequireAction(policy Policy, action Action, owner OwnerFunc) func(http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				resolved, err := m.resolve(r)
				if err != nil && !errors.Is(err, ErrUnauthenticated) {
					m.OnError(w, r, err)
					return
				}
				user = resolved
			}
			ownerID := ""
			if owner != nil {
				ownerID = owner(r)
			}
			if err := policy.Authorize(user, action, ownerID); err != nil {
				m.OnError(w, r, err)
				return
			}
			next.ServeHTTP(w, WithUser(r, user))
		})
	}
}

// WithUser stores user in the request context.
func WithUser(r *http.Request, user *User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey{}, user))
}

// UserFromContext returns the user placed by the middleware, or nil.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey{}).(*User)
	return user
}
