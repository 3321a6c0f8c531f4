package authcore_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ac "github.com/interviewhub/authcore"
)

type httpEnv struct {
	*testEnv
	Server *httptest.Server
	Client *http.Client
}

func newHTTPEnv(t *testing.T) *httpEnv {
	env, _ := newFederatedEnv(t)
	insecure := false
	router := &ac.Router{
		Auth:      env.Auth,
		Cookie:    ac.CookieConfig{Secure: &insecure},
		ClientURL: "http://client.test/",
	}
	srv := httptest.NewServer(router.EnsureDefaults().Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &httpEnv{testEnv: env, Server: srv, Client: client}
}

func (e *httpEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.Server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

func TestHTTP_SignupVerifyLoginMeLogout(t *testing.T) {
	env := newHTTPEnv(t)
	creds := map[string]string{"email": "alice@x.com", "password": "password123"}

	resp, body := env.do(t, http.MethodPost, "/api/user/auth/signup", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userData := body["userData"].(map[string]any)
	assert.Equal(t, "alice@x.com", userData["email"])
	assert.Equal(t, false, userData["verified"])
	assert.NotContains(t, userData, "password_hash")

	resp, body = env.do(t, http.MethodPost, "/api/user/auth/signup", creds)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "email_taken", body["code"])
	assert.Equal(t, "email", body["path"])

	resp, body = env.do(t, http.MethodPost, "/api/user/auth/login", creds)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "account_unverified", body["code"])

	token := env.Mailer.last(t, "verify", "alice@x.com")
	resp, _ = env.do(t, http.MethodGet, "/api/user/auth/verify-email?token="+url.QueryEscape(token), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/user/auth/verify-email?token="+url.QueryEscape(token), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_verified", body["code"])

	resp, _ = env.do(t, http.MethodPost, "/api/user/auth/login", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int(ac.TokenExpirySession.Seconds()), cookie.MaxAge)

	resp, body = env.do(t, http.MethodGet, "/api/user/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice@x.com", body["userData"].(map[string]any)["email"])

	resp, _ = env.do(t, http.MethodPost, "/api/user/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := sessionCookie(resp)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	resp, body = env.do(t, http.MethodGet, "/api/user/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", body["code"])

	// the old token is revoked even when presented directly
	req, _ := http.NewRequest(http.MethodGet, env.Server.URL+"/api/user/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	direct, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	direct.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, direct.StatusCode)
}

func TestHTTP_LoginErrorsLookAlike(t *testing.T) {
	env := newHTTPEnv(t)
	env.registerVerified(t, "alice@x.com", "password123")

	wrongResp, wrong := env.do(t, http.MethodPost, "/api/user/auth/login",
		map[string]string{"email": "alice@x.com", "password": "nope-nope"})
	unknownResp, unknown := env.do(t, http.MethodPost, "/api/user/auth/login",
		map[string]string{"email": "ghost@x.com", "password": "nope-nope"})

	assert.Equal(t, http.StatusUnauthorized, wrongResp.StatusCode)
	assert.Equal(t, wrongResp.StatusCode, unknownResp.StatusCode)
	assert.Equal(t, wrong, unknown)
}

func TestHTTP_BadBody(t *testing.T) {
	env := newHTTPEnv(t)
	req, _ := http.NewRequest(http.MethodPost, env.Server.URL+"/api/user/auth/login", bytes.NewBufferString("{"))
	resp, err := env.Client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTP_ForgotAndResetPassword(t *testing.T) {
	env := newHTTPEnv(t)
	env.registerVerified(t, "alice@x.com", "password123")

	resp, known := env.do(t, http.MethodPost, "/api/user/auth/forgot-password", map[string]string{"email": "alice@x.com"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, unknown := env.do(t, http.MethodPost, "/api/user/auth/forgot-password", map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, known, unknown)

	token := env.Mailer.last(t, "reset", "alice@x.com")
	resp, body := env.do(t, http.MethodPost, "/api/user/auth/reset-password", map[string]string{"token": token, "password": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "weak_password", body["code"])

	resp, _ = env.do(t, http.MethodPost, "/api/user/auth/reset-password", map[string]string{"token": token, "password": "brand-new-pass"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/user/auth/reset-password", map[string]string{"token": token, "password": "another-pass"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "token_already_used", body["code"])

	resp, _ = env.do(t, http.MethodPost, "/api/user/auth/login", map[string]string{"email": "alice@x.com", "password": "brand-new-pass"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_ResendVerification(t *testing.T) {
	env := newHTTPEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/api/user/auth/resend-verification", map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, env.Mailer.count())
}

func TestHTTP_GoogleFlow(t *testing.T) {
	env := newHTTPEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/user/auth/google", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	resp, _ = env.do(t, http.MethodGet, "/api/user/auth/google/callback?code=code-bob&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://client.test/", resp.Header.Get("Location"))
	require.NotNil(t, sessionCookie(resp))

	resp, body := env.do(t, http.MethodGet, "/api/user/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	userData := body["userData"].(map[string]any)
	assert.Equal(t, "bob@x.com", userData["email"])
	assert.Equal(t, true, userData["verified"])
	assert.Equal(t, true, userData["googleLinked"])

	// the nonce was popped, so replaying the callback fails
	resp, _ = env.do(t, http.MethodGet, "/api/user/auth/google/callback?code=code-bob&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://client.test/?error=nonce_mismatch", resp.Header.Get("Location"))
}

func TestHTTP_GoogleCallbackForgedState(t *testing.T) {
	env := newHTTPEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/api/user/auth/google", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/user/auth/google/callback?code=code-bob&state=forged", nil)
	assert.Equal(t, "http://client.test/?error=nonce_mismatch", resp.Header.Get("Location"))
	assert.Nil(t, sessionCookie(resp))
}

func TestHTTP_SetRole(t *testing.T) {
	env := newHTTPEnv(t)
	alice := env.registerVerified(t, "alice@x.com", "password123")
	bob := env.registerVerified(t, "bob@x.com", "password123")

	resp, _ := env.do(t, http.MethodPut, "/api/user/"+bob.ID+"/role", map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/user/auth/login", map[string]string{"email": "alice@x.com", "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodPut, "/api/user/"+bob.ID+"/role", map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["code"])

	admin := ac.RoleAdmin
	_, err := env.Store.UpdateFields(t.Context(), alice.ID, ac.UserUpdate{Role: &admin})
	require.NoError(t, err)

	resp, body = env.do(t, http.MethodPut, "/api/user/"+bob.ID+"/role", map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "admin", body["userData"].(map[string]any)["role"])

	resp, body = env.do(t, http.MethodPut, "/api/user/"+bob.ID+"/role", map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_role", body["code"])
}

func TestToHTTPError_Unknown(t *testing.T) {
	httpErr := ac.ToHTTPError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Equal(t, "internal error", httpErr.Message)
}

func TestErrorForCode(t *testing.T) {
	for _, err := range []error{ac.ErrEmailTaken, ac.ErrTokenAlreadyUsed, ac.ErrSessionExpired} {
		code := ac.ToHTTPError(err).Code
		assert.Equal(t, err, ac.ErrorForCode(code), code)
	}
	assert.Nil(t, ac.ErrorForCode("internal"))
	assert.Nil(t, ac.ErrorForCode(""))
}
