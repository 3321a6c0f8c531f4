package authcore

import (
	"net/http"
	"slices"
	"strings"
	"time"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	// Defaults to "token"
	Name string

	// Defaults to true. Turn off only for plain http development.
	Secure *bool

	// Defaults to http.SameSiteLaxMode
	SameSite http.SameSite

	// All the domains the cookie is set on and cleared from. The request host
	// (empty domain) is always included.
	Domains []string
}

func (c *CookieConfig) EnsureDefaults() *CookieConfig {
	if c.Name == "" {
		c.Name = "token"
	}
	if c.Secure == nil {
		secure := true
		c.Secure = &secure
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

// ParseSameSite maps a config value ("lax", "strict", "none") to http.SameSite.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (c *CookieConfig) domains() []string {
	domains := c.Domains
	if slices.Index(domains, "") < 0 { // default domain
		domains = append(slices.Clone(domains), "")
	}
	return domains
}

// SetSession writes the session cookie on every configured domain.
func (c *CookieConfig) SetSession(w http.ResponseWriter, token string, ttl time.Duration) {
	c.EnsureDefaults()
	for _, domain := range c.domains() {
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    token,
			Domain:   domain,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			Expires:  time.Now().Add(ttl),
			HttpOnly: true,
			Secure:   *c.Secure,
			SameSite: c.SameSite,
		})
	}
}

// ClearSession expires the session cookie on every configured domain.
func (c *CookieConfig) ClearSession(w http.ResponseWriter) {
	c.EnsureDefaults()
	for _, domain := range c.domains() {
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    "",
			Domain:   domain,
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   *c.Secure,
			SameSite: c.SameSite,
		})
	}
}
