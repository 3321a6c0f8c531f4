package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/interviewhub/authcore/internal/flagx"
)

// JsonConfig is the file form of Config. Pointer fields distinguish "absent"
// from a zero value, so a file only overrides what it mentions.
type JsonConfig struct {
	HTTPAddr             *string   `json:"http_addr"`
	GRPCAddr             *string   `json:"grpc_addr"`
	ClientURL            *string   `json:"client_url"`
	BaseURL              *string   `json:"base_url"`
	JWTSecret            *string   `json:"jwt_secret"`
	JWTIssuer            *string   `json:"jwt_issuer"`
	SessionTTL           *Duration `json:"session_ttl"`
	VerifyEmailTTL       *Duration `json:"verify_email_ttl"`
	ResetPasswordTTL     *Duration `json:"reset_password_ttl"`
	RequireVerifiedLogin *bool     `json:"require_verified_login"`
	PasswordMinLength    *int      `json:"password_min_length"`
	Mailer               *string   `json:"mailer"`
	StoreDriver          *string   `json:"store_driver"`
	DatabaseDSN          *string   `json:"database_dsn"`
	StoragePath          *string   `json:"storage_path"`
	DatastoreProject     *string   `json:"datastore_project"`
	DatastoreNamespace   *string   `json:"datastore_namespace"`
	CookieName           *string   `json:"cookie_name"`
	CookieSecure         *bool     `json:"cookie_secure"`
	CookieSameSite       *string   `json:"cookie_samesite"`
	MaintenanceInterval  *Duration `json:"maintenance_interval"`
	GoogleClientID       *string   `json:"google_client_id"`
	GoogleClientSecret   *string   `json:"google_client_secret"`
	GoogleCallbackURL    *string   `json:"google_callback_url"`
}

// parseJson overlays the file named by -c/-config, if any.
func parseJson(c *Config, args []string) error {
	path := flagx.JsonConfigFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	str := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	dur := func(dst *time.Duration, v *Duration) {
		if v != nil {
			*dst = v.Duration
		}
	}
	boolean := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}

	str(&c.HTTPAddr, jc.HTTPAddr)
	str(&c.GRPCAddr, jc.GRPCAddr)
	str(&c.ClientURL, jc.ClientURL)
	str(&c.BaseURL, jc.BaseURL)
	str(&c.JWTSecret, jc.JWTSecret)
	str(&c.JWTIssuer, jc.JWTIssuer)
	dur(&c.SessionTTL, jc.SessionTTL)
	dur(&c.VerifyEmailTTL, jc.VerifyEmailTTL)
	dur(&c.ResetPasswordTTL, jc.ResetPasswordTTL)
	boolean(&c.RequireVerifiedLogin, jc.RequireVerifiedLogin)
	if jc.PasswordMinLength != nil {
		c.PasswordMinLength = *jc.PasswordMinLength
	}
	str(&c.Mailer, jc.Mailer)
	str(&c.StoreDriver, jc.StoreDriver)
	str(&c.DatabaseDSN, jc.DatabaseDSN)
	str(&c.StoragePath, jc.StoragePath)
	str(&c.DatastoreProject, jc.DatastoreProject)
	str(&c.DatastoreNamespace, jc.DatastoreNamespace)
	str(&c.CookieName, jc.CookieName)
	boolean(&c.CookieSecure, jc.CookieSecure)
	str(&c.CookieSameSite, jc.CookieSameSite)
	dur(&c.MaintenanceInterval, jc.MaintenanceInterval)
	str(&c.GoogleClientID, jc.GoogleClientID)
	str(&c.GoogleClientSecret, jc.GoogleClientSecret)
	str(&c.GoogleCallbackURL, jc.GoogleCallbackURL)
	return nil
}
