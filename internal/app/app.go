// Package app wires the auth core to its store, the HTTP and gRPC servers and
// the maintenance loop, and runs them until a shutdown signal.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	ac "github.com/interviewhub/authcore"
	"github.com/interviewhub/authcore/internal/config"
	"github.com/interviewhub/authcore/logging"
	"github.com/interviewhub/authcore/oauth2"
)

type App struct {
	config *config.Config
	logger *logging.SlogLogger
	auth   *ac.Auth
	router *ac.Router
	mailer *ac.AsyncMailer
	store  ac.Store
	close  func() error
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	auth, err := newAuth(cfg, store, logger)
	if err != nil {
		closer()
		return nil, err
	}
	mailer := auth.Mailer.(*ac.AsyncMailer)

	secure := cfg.CookieSecure
	router := &ac.Router{
		Auth: auth,
		Cookie: ac.CookieConfig{
			Name:     cfg.CookieName,
			Secure:   &secure,
			SameSite: ac.ParseSameSite(cfg.CookieSameSite),
		},
		ClientURL: cfg.ClientURL,
		Logger:    logger.With("module", "http"),
	}

	return &App{
		config: cfg,
		logger: logger,
		auth:   auth,
		router: router.EnsureDefaults(),
		mailer: mailer,
		store:  store,
		close:  closer,
	}, nil
}

// newAuth builds the core from cfg. Mail is dispatched asynchronously to the
// configured mailer driver.
func newAuth(cfg *config.Config, store ac.Store, logger logging.Logger) (*ac.Auth, error) {
	codec, err := ac.NewTokenCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}
	codec.TTL = ac.TTLPolicy{
		Session:       cfg.SessionTTL,
		VerifyEmail:   cfg.VerifyEmailTTL,
		ResetPassword: cfg.ResetPasswordTTL,
	}

	auth := ac.NewAuth(store, codec)
	auth.Logger = logger.With("module", "auth")
	auth.RequireVerifiedLogin = cfg.RequireVerifiedLogin
	auth.Passwords = ac.PasswordPolicy{MinLength: cfg.PasswordMinLength}

	mailLogger := logger.With("module", "mail")
	var mailer ac.Mailer = &ac.LogMailer{Logger: mailLogger}
	if cfg.Mailer == config.MailerConsole {
		mailLogger.Warn(context.Background(), "console mailer writes live tokens to the log, do not use in production")
		mailer = &ac.ConsoleMailer{BaseURL: cfg.BaseURL, ClientURL: cfg.ClientURL, Logger: mailLogger}
	}
	auth.Mailer = ac.NewAsyncMailer(mailer, mailLogger)

	if cfg.GoogleClientID != "" {
		auth.Provider = oauth2.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	} else {
		logger.Warn(context.Background(), "Google sign-in disabled, OAUTH2_GOOGLE_CLIENT_ID not set")
	}
	return auth, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a signal arrives or one of the servers fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreDriver)
	app.initSignalHandler(cancelFunc)

	if err := checkStore(ctx, app.store); err != nil {
		app.close()
		return err
	}

	httpSrv := newHTTPServer(app.config.HTTPAddr,
		newHTTPHandler(app.router, app.config.ClientURL, app.logger.With("module", "http")), app.logger)
	grpcSrv, health := newGRPCServer(app.auth)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		if err == nil {
			return
		}
		errOnce.Do(func() { firstErr = err })
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		fail(serveHTTP(ctx, httpSrv, app.logger))
	}()
	go func() {
		defer wg.Done()
		fail(serveGRPC(ctx, grpcSrv, health, app.config.GRPCAddr, app.logger.With("module", "grpc")))
	}()
	go func() {
		defer wg.Done()
		runMaintenance(ctx, app.auth, app.config.MaintenanceInterval, app.logger.With("module", "maintenance"))
	}()

	wg.Wait()
	app.mailer.Wait()
	if err := app.close(); err != nil {
		app.logger.Error(context.Background(), "closing store", "error", err)
	}
	app.logger.Info(context.Background(), "Stopped")
	return firstErr
}
