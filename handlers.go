package authcore

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
)

// HTTPError is the JSON error body: the offending field, a message and a code.
type HTTPError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Status  int    `json:"-"`
}

func (e *HTTPError) Error() string { return e.Message }

type errorMapping struct {
	target error
	status int
	code   string
	path   string
}

// errorTable maps core errors to responses. Order matters only for wrapped errors.
var errorTable = []errorMapping{
	{ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "password"},
	{ErrEmailTaken, http.StatusConflict, "email_taken", "email"},
	{ErrAccountUnverified, http.StatusForbidden, "account_unverified", "email"},
	{ErrVerificationRequired, http.StatusForbidden, "verification_required", ""},
	{ErrAlreadyVerified, http.StatusConflict, "already_verified", "token"},
	{ErrTokenInvalid, http.StatusBadRequest, "token_invalid", "token"},
	{ErrTokenExpired, http.StatusBadRequest, "token_expired", "token"},
	{ErrTokenAlreadyUsed, http.StatusBadRequest, "token_already_used", "token"},
	{ErrPurposeMismatch, http.StatusBadRequest, "token_invalid", "token"},
	{ErrSessionInvalid, http.StatusUnauthorized, "session_invalid", ""},
	{ErrSessionExpired, http.StatusUnauthorized, "session_expired", ""},
	{ErrNonceMismatch, http.StatusBadRequest, "nonce_mismatch", "state"},
	{ErrFederationError, http.StatusBadGateway, "federation_error", ""},
	{ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", ""},
	{ErrForbidden, http.StatusForbidden, "forbidden", ""},
	{ErrInvalidEmail, http.StatusBadRequest, "invalid_email", "email"},
	{ErrWeakPassword, http.StatusBadRequest, "weak_password", "password"},
	{ErrFederatedIDTaken, http.StatusConflict, "federated_id_taken", ""},
	{ErrInvalidRole, http.StatusBadRequest, "invalid_role", "role"},
	{ErrUserNotFound, http.StatusNotFound, "user_not_found", "id"},
}

// ToHTTPError translates err into a response. Errors outside the core
// taxonomy become a bare 500 so internals never reach the client.
func ToHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return &HTTPError{Path: m.path, Message: m.target.Error(), Code: m.code, Status: m.status}
		}
	}
	return &HTTPError{Message: "internal error", Code: "internal", Status: http.StatusInternalServerError}
}

// ErrorForCode returns the core error behind a response code, or nil for
// codes outside the taxonomy.
func ErrorForCode(code string) error {
	for _, m := range errorTable {
		if m.code == code {
			return m.target
		}
	}
	return nil
}

// WriteError writes err as a JSON error body.
func WriteError(w http.ResponseWriter, err error) {
	httpErr := ToHTTPError(err)
	writeJSON(w, httpErr.Status, httpErr)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func badRequest(message, path string) *HTTPError {
	return &HTTPError{Path: path, Message: message, Code: "invalid_request", Status: http.StatusBadRequest}
}

// UserData is the public view of a user returned by the API.
type UserData struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Verified bool   `json:"verified"`
	Linked   bool   `json:"googleLinked"`
}

func NewUserData(u *User) *UserData {
	return &UserData{ID: u.ID, Email: u.Email, Role: u.Role, Verified: u.Verified, Linked: u.FederatedID != ""}
}

type userResponse struct {
	Message  string    `json:"message,omitempty"`
	UserData *UserData `json:"userData,omitempty"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type roleRequest struct {
	Role string `json:"role"`
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(dst); err != nil {
		return badRequest("invalid request body", "")
	}
	return nil
}

func (h *Router) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := ToHTTPError(err)
	if httpErr.Status >= http.StatusInternalServerError {
		h.Logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, httpErr.Status, httpErr)
}

func (h *Router) onSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.Auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{
		Message:  "Registered. Check your email to verify your account.",
		UserData: NewUserData(user),
	})
}

func (h *Router) onLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	token, user, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Cookie.SetSession(w, token, h.Auth.SessionTTL())
	writeJSON(w, http.StatusOK, userResponse{Message: "Logged in", UserData: NewUserData(user)})
}

func (h *Router) onLogout(w http.ResponseWriter, r *http.Request) {
	if token := h.Middleware.TokenFromRequest(r); token != "" {
		if err := h.Auth.Logout(r.Context(), token); err != nil && !errors.Is(err, ErrSessionInvalid) {
			h.fail(w, r, err)
			return
		}
	}
	h.Cookie.ClearSession(w)
	writeJSON(w, http.StatusOK, userResponse{Message: "Logged out"})
}

func (h *Router) onMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userResponse{UserData: NewUserData(UserFromContext(r.Context()))})
}

func (h *Router) onVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.fail(w, r, badRequest("token is required", "token"))
		return
	}
	user, err := h.Auth.ConfirmVerification(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "Email verified", UserData: NewUserData(user)})
}

func (h *Router) onResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	_ = h.Auth.ResendVerification(r.Context(), req.Email)
	writeJSON(w, http.StatusOK, userResponse{
		Message: "If that account exists and is unverified, a new link is on its way.",
	})
}

func (h *Router) onForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	_ = h.Auth.RequestReset(r.Context(), req.Email)
	writeJSON(w, http.StatusOK, userResponse{
		Message: "If that account exists, a reset link is on its way.",
	})
}

func (h *Router) onResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Auth.CompleteReset(r.Context(), req.Token, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Cookie.ClearSession(w)
	writeJSON(w, http.StatusOK, userResponse{Message: "Password updated. Please log in again."})
}

const nonceSessionKey = "federatedNonce"

func (h *Router) onGoogleLogin(w http.ResponseWriter, r *http.Request) {
	redirect, nonce, err := h.Auth.BeginFederatedLogin(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Session.Put(r.Context(), nonceSessionKey, nonce)
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (h *Router) onGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// the nonce is popped so a callback can be replayed at most once
	expected := h.Session.PopString(r.Context(), nonceSessionKey)

	if providerErr := q.Get("error"); providerErr != "" {
		h.Logger.Warn(r.Context(), "provider returned an error", "error", providerErr)
		h.redirectToClient(w, r, "error", "federation_error")
		return
	}

	token, user, err := h.Auth.CompleteFederatedLogin(r.Context(), q.Get("code"), q.Get("state"), expected)
	if err != nil {
		httpErr := ToHTTPError(err)
		if httpErr.Status >= http.StatusInternalServerError && !errors.Is(err, ErrFederationError) {
			h.Logger.Error(r.Context(), "federated login failed", "error", err)
		}
		h.redirectToClient(w, r, "error", httpErr.Code)
		return
	}
	h.Cookie.SetSession(w, token, h.Auth.SessionTTL())
	h.Logger.Info(r.Context(), "federated session issued", "user_id", user.ID)
	h.redirectToClient(w, r, "", "")
}

// redirectToClient sends the browser back to the client app, optionally with one query parameter.
func (h *Router) redirectToClient(w http.ResponseWriter, r *http.Request, key, value string) {
	target := h.ClientURL
	if target == "" {
		target = "/"
	}
	if key != "" {
		if u, err := url.Parse(target); err == nil {
			q := u.Query()
			q.Set(key, value)
			u.RawQuery = q.Encode()
			target = u.String()
		}
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Router) onSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.Auth.SetRole(r.Context(), UserFromContext(r.Context()), mux.Vars(r)["id"], req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "Role updated", UserData: NewUserData(user)})
}
