// Package config builds the server configuration from defaults, a .env file,
// the environment, an optional JSON file and command-line flags, in that order.
package config

import (
	"fmt"
	"time"
)

// Store drivers
const (
	DriverFS        = "fs"
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverDatastore = "datastore"
)

// Mailer drivers. The console driver logs full links with their tokens and
// is meant for local development.
const (
	MailerLog     = "log"
	MailerConsole = "console"
)

// Config holds runtime settings for the auth server.
type Config struct {
	HTTPAddr  string
	GRPCAddr  string
	ClientURL string // CORS origin and post-login redirect target
	BaseURL   string // public URL of this server, used in mailed links

	JWTSecret        string
	JWTIssuer        string
	SessionTTL       time.Duration
	VerifyEmailTTL   time.Duration
	ResetPasswordTTL time.Duration

	RequireVerifiedLogin bool
	PasswordMinLength    int

	Mailer string

	StoreDriver        string
	DatabaseDSN        string // postgres DSN or sqlite file
	StoragePath        string // fs driver root
	DatastoreProject   string
	DatastoreNamespace string

	CookieName     string
	CookieSecure   bool
	CookieSameSite string

	MaintenanceInterval time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

// LoadDefaults populates Config with development defaults.
// The JWT secret is left empty and must be supplied.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":3000"
	c.GRPCAddr = ":50051"
	c.ClientURL = "http://localhost:5173"
	c.BaseURL = "http://localhost:3000"
	c.JWTIssuer = "authcore"
	c.SessionTTL = 7 * 24 * time.Hour
	c.VerifyEmailTTL = 24 * time.Hour
	c.ResetPasswordTTL = time.Hour
	c.RequireVerifiedLogin = true
	c.Mailer = MailerLog
	c.StoreDriver = DriverFS
	c.StoragePath = "./data"
	c.CookieName = "token"
	c.CookieSecure = true
	c.CookieSameSite = "lax"
	c.MaintenanceInterval = time.Hour
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("jwt secret must be at least 16 bytes (set AUTHCORE_JWT_SECRET)")
	}
	for name, ttl := range map[string]time.Duration{
		"session ttl":        c.SessionTTL,
		"verify email ttl":   c.VerifyEmailTTL,
		"reset password ttl": c.ResetPasswordTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.PasswordMinLength < 0 || c.PasswordMinLength > 72 {
		return fmt.Errorf("password min length must be between 0 and 72")
	}
	switch c.Mailer {
	case MailerLog, MailerConsole:
	default:
		return fmt.Errorf("unknown mailer %q", c.Mailer)
	}
	switch c.StoreDriver {
	case DriverFS, DriverSQLite, DriverPostgres, DriverDatastore:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.StoreDriver == DriverPostgres && c.DatabaseDSN == "" {
		return fmt.Errorf("postgres driver needs DATABASE_DSN")
	}
	if c.StoreDriver == DriverDatastore && c.DatastoreProject == "" {
		return fmt.Errorf("datastore driver needs DATASTORE_PROJECT")
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("maintenance interval must be positive")
	}
	return nil
}

// LoadConfig applies every layer to the defaults. args are the command-line
// arguments without the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
