// Package authcore is the credential and session core of the interview
// community site.
//
// It owns accounts, signed tokens and the rules around them: password
// registration and login, Google sign-in with account linking, email
// verification, password reset, logout and the role/ownership policy that
// route handlers consult before touching content.
//
// # Tokens
//
// Every bearer value is an HS256 JWT carrying a purpose (session,
// verify-email or reset-password). Single-use tokens are recorded in a
// TokenLedger when spent, logged-out sessions are recorded as revoked, and
// RunMaintenance drops records once the token they describe has expired.
// A password reset bumps the user's session epoch, which ends every session
// issued before it.
//
// # Basic Usage
//
//	store := stores.NewFSStore("/var/lib/authcore")
//	codec, err := authcore.NewTokenCodec(secret, "interviewhub")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	auth := authcore.NewAuth(store, codec)
//	auth.Mailer = &authcore.ConsoleMailer{BaseURL: "http://localhost:3000"}
//
//	router := authcore.NewRouter(auth)
//	http.ListenAndServe(":3000", router.Handler())
//
// # Stores
//
// Backends live in subpackages: stores (JSON files), stores/gorm (SQLite and
// other gorm dialects), stores/pgsql (PostgreSQL with goose migrations) and
// stores/gae (Cloud Datastore). All of them implement Store.
package authcore
