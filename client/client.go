package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	ac "github.com/interviewhub/authcore"
)

// APIError is an error response from the server. It unwraps to the matching
// authcore error, so errors.Is(err, authcore.ErrInvalidCredentials) works.
type APIError struct {
	Status  int
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authcore: %s (HTTP %d, %s)", e.Message, e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	return ac.ErrorForCode(e.Code)
}

type userResponse struct {
	Message  string       `json:"message"`
	UserData *ac.UserData `json:"userData"`
}

// AuthClient talks to one authcore server
type AuthClient struct {
	mu            sync.Mutex
	serverURL     string
	store         CredentialStore
	httpClient    *http.Client
	baseTransport http.RoundTripper
	cookieName    string
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithHTTPClient copies timeout and redirect settings from client and wraps its transport.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.baseTransport = client.Transport
		}
		c.httpClient.Timeout = client.Timeout
		c.httpClient.CheckRedirect = client.CheckRedirect
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

// WithCookieName matches a server that renamed its session cookie.
func WithCookieName(name string) ClientOption {
	return func(c *AuthClient) {
		c.cookieName = name
	}
}

// NewAuthClient creates a client for the server at serverURL. Only the
// scheme and host of serverURL are kept.
func NewAuthClient(serverURL string, store CredentialStore, opts ...ClientOption) *AuthClient {
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}

	c := &AuthClient{
		serverURL:     serverURL,
		store:         store,
		httpClient:    &http.Client{},
		baseTransport: http.DefaultTransport,
		cookieName:    "token",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.Transport = &sessionTransport{client: c, base: c.baseTransport}
	return c
}

// HTTPClient returns a client that authenticates every request with the
// stored session. Use it for the rest of the application's API.
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// Token returns the stored, unexpired session token or "".
func (c *AuthClient) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil || cred == nil || cred.IsExpired() {
		return ""
	}
	return cred.Token
}

func (c *AuthClient) GetCredential() (*ServerCredential, error) {
	return c.store.GetCredential(c.serverURL)
}

func (c *AuthClient) IsLoggedIn() bool {
	return c.Token() != ""
}

// forget drops the credential if it still holds token.
func (c *AuthClient) forget(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil || cred == nil || cred.Token != token {
		return
	}
	if c.store.RemoveCredential(c.serverURL) == nil {
		c.store.Save()
	}
}

// Signup registers an account. The server mails a verification link.
func (c *AuthClient) Signup(ctx context.Context, email, password string) (*ac.UserData, error) {
	var out userResponse
	if _, err := c.call(ctx, http.MethodPost, "/signup", map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	return out.UserData, nil
}

// Login authenticates with email and password and stores the session.
func (c *AuthClient) Login(ctx context.Context, email, password string) (*ServerCredential, error) {
	var out userResponse
	resp, err := c.call(ctx, http.MethodPost, "/login", map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}

	var session *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == c.cookieName && cookie.Value != "" {
			session = cookie
		}
	}
	if session == nil {
		return nil, fmt.Errorf("login response carried no %q cookie", c.cookieName)
	}

	now := time.Now()
	cred := &ServerCredential{
		Token:     session.Value,
		UserEmail: email,
		CreatedAt: now,
	}
	if session.MaxAge > 0 {
		cred.ExpiresAt = now.Add(time.Duration(session.MaxAge) * time.Second)
	}
	if out.UserData != nil {
		cred.UserID = out.UserData.ID
		cred.UserEmail = out.UserData.Email
		cred.Role = out.UserData.Role
		cred.Verified = out.UserData.Verified
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.SetCredential(c.serverURL, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	if err := c.store.Save(); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	return cred, nil
}

// Logout ends the session on the server and removes the local credential.
// The credential is removed even when the server cannot be reached.
func (c *AuthClient) Logout(ctx context.Context) error {
	_, callErr := c.call(ctx, http.MethodPost, "/logout", nil, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.RemoveCredential(c.serverURL); err != nil {
		return err
	}
	if err := c.store.Save(); err != nil {
		return err
	}
	return callErr
}

// Me returns the user behind the stored session.
func (c *AuthClient) Me(ctx context.Context) (*ac.UserData, error) {
	var out userResponse
	if _, err := c.call(ctx, http.MethodGet, "/me", nil, &out); err != nil {
		return nil, err
	}
	return out.UserData, nil
}

// VerifyEmail confirms an address with the token from the mailed link.
func (c *AuthClient) VerifyEmail(ctx context.Context, token string) (*ac.UserData, error) {
	var out userResponse
	if _, err := c.call(ctx, http.MethodGet, "/verify-email?token="+url.QueryEscape(token), nil, &out); err != nil {
		return nil, err
	}
	return out.UserData, nil
}

func (c *AuthClient) ResendVerification(ctx context.Context, email string) error {
	_, err := c.call(ctx, http.MethodPost, "/resend-verification", map[string]string{"email": email}, nil)
	return err
}

func (c *AuthClient) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.call(ctx, http.MethodPost, "/forgot-password", map[string]string{"email": email}, nil)
	return err
}

// ResetPassword sets a new password. Every existing session, including the
// stored one, stops working.
func (c *AuthClient) ResetPassword(ctx context.Context, token, password string) error {
	_, err := c.call(ctx, http.MethodPost, "/reset-password", map[string]string{"token": token, "password": password}, nil)
	if err == nil {
		c.mu.Lock()
		c.store.RemoveCredential(c.serverURL)
		c.store.Save()
		c.mu.Unlock()
	}
	return err
}

// call sends a JSON request to an auth route and decodes the reply into out.
func (c *AuthClient) call(ctx context.Context, method, path string, body, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+ac.AuthPathPrefix+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return resp, apiErr
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp, fmt.Errorf("invalid response from server: %w", err)
		}
	}
	return resp, nil
}
