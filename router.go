package authcore

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"

	"github.com/interviewhub/authcore/logging"
)

// AuthPathPrefix is where the auth routes are mounted.
const AuthPathPrefix = "/api/user/auth"

// Router exposes an Auth over HTTP.
type Router struct {
	Auth *Auth

	// Holds the federated login nonce between the redirect and the callback
	Session *scs.SessionManager

	Cookie     CookieConfig
	Middleware Middleware

	// Where the browser lands after federated login
	ClientURL string

	Logger logging.Logger
}

func NewRouter(auth *Auth) *Router {
	return (&Router{Auth: auth}).EnsureDefaults()
}

func (h *Router) EnsureDefaults() *Router {
	if h.Logger == nil {
		h.Logger = h.Auth.Logger
	}
	if h.Logger == nil {
		h.Logger = logging.Discard()
	}
	if h.Session == nil {
		h.Session = scs.New()
		h.Session.Cookie.Name = "authcore_session"
		h.Session.Cookie.HttpOnly = true
		h.Session.Cookie.SameSite = http.SameSiteLaxMode
	}
	h.Cookie.EnsureDefaults()
	h.Session.Cookie.Secure = *h.Cookie.Secure
	if h.Middleware.Resolver == nil {
		h.Middleware.Resolver = h.Auth
	}
	if h.Middleware.AuthTokenCookieName == "" {
		h.Middleware.AuthTokenCookieName = h.Cookie.Name
	}
	h.Middleware.EnsureReasonableDefaults()
	return h
}

// Handler returns a fresh router with every auth route registered.
func (h *Router) Handler() http.Handler {
	r := mux.NewRouter()
	h.Register(r)
	return r
}

// Register adds the auth routes to an existing router.
func (h *Router) Register(r *mux.Router) {
	h.EnsureDefaults()

	auth := r.PathPrefix(AuthPathPrefix).Subrouter()
	auth.HandleFunc("/signup", h.onSignup).Methods(http.MethodPost)
	auth.HandleFunc("/login", h.onLogin).Methods(http.MethodPost)
	auth.HandleFunc("/logout", h.onLogout).Methods(http.MethodPost)
	auth.Handle("/me", h.Middleware.EnsureUser(http.HandlerFunc(h.onMe))).Methods(http.MethodGet)
	auth.HandleFunc("/verify-email", h.onVerifyEmail).Methods(http.MethodGet)
	auth.HandleFunc("/resend-verification", h.onResendVerification).Methods(http.MethodPost)
	auth.HandleFunc("/forgot-password", h.onForgotPassword).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password", h.onResetPassword).Methods(http.MethodPost)
	auth.Handle("/google", h.Session.LoadAndSave(http.HandlerFunc(h.onGoogleLogin))).Methods(http.MethodGet)
	auth.Handle("/google/callback", h.Session.LoadAndSave(http.HandlerFunc(h.onGoogleCallback))).Methods(http.MethodGet)

	r.Handle("/api/user/{id}/role", h.Middleware.EnsureUser(http.HandlerFunc(h.onSetRole))).Methods(http.MethodPut)
}
