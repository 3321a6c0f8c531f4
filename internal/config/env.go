package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv loads dotenvPath (a missing file is fine) and then overlays the
// process environment. Variables already set in the environment win over
// the file.
func parseEnv(c *Config, dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		if strings.Contains(port, ":") {
			c.HTTPAddr = port
		} else {
			c.HTTPAddr = ":" + port
		}
	}
	setString(&c.GRPCAddr, "GRPC_ADDR")
	setString(&c.ClientURL, "CLIENT_URL")
	setString(&c.BaseURL, "BASE_URL")
	setString(&c.JWTSecret, "AUTHCORE_JWT_SECRET")
	setString(&c.JWTIssuer, "AUTHCORE_JWT_ISSUER")
	setString(&c.StoreDriver, "STORE_DRIVER")
	setString(&c.DatabaseDSN, "DATABASE_DSN")
	setString(&c.StoragePath, "STORAGE_PATH")
	setString(&c.DatastoreProject, "DATASTORE_PROJECT")
	setString(&c.DatastoreNamespace, "DATASTORE_NAMESPACE")
	setString(&c.CookieName, "COOKIE_NAME")
	setString(&c.CookieSameSite, "COOKIE_SAMESITE")
	setString(&c.Mailer, "MAILER")
	setString(&c.GoogleClientID, "OAUTH2_GOOGLE_CLIENT_ID")
	setString(&c.GoogleClientSecret, "OAUTH2_GOOGLE_CLIENT_SECRET")
	setString(&c.GoogleCallbackURL, "OAUTH2_GOOGLE_CALLBACK_URL")

	if err := setBool(&c.RequireVerifiedLogin, "REQUIRE_VERIFIED_LOGIN"); err != nil {
		return err
	}
	if err := setBool(&c.CookieSecure, "COOKIE_SECURE"); err != nil {
		return err
	}
	if err := setInt(&c.PasswordMinLength, "PASSWORD_MIN_LENGTH"); err != nil {
		return err
	}
	for key, dst := range map[string]*time.Duration{
		"SESSION_TTL":          &c.SessionTTL,
		"VERIFY_EMAIL_TTL":     &c.VerifyEmailTTL,
		"RESET_PASSWORD_TTL":   &c.ResetPasswordTTL,
		"MAINTENANCE_INTERVAL": &c.MaintenanceInterval,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
