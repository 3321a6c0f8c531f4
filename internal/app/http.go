package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	ac "github.com/interviewhub/authcore"
	"github.com/interviewhub/authcore/logging"
)

// newHTTPServer routes net/http's own error output (TLS handshakes, bad
// requests, handler write failures) through the app logger.
func newHTTPServer(addr string, handler http.Handler, logger *logging.SlogLogger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Slog().With("module", "http").Handler(), slog.LevelError),
	}
}

// newHTTPHandler mounts the auth routes and wraps them in CORS, request
// logging and panic recovery.
func newHTTPHandler(router *ac.Router, clientURL string, logger logging.Logger) http.Handler {
	r := mux.NewRouter()
	router.Register(r)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	}).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{strings.TrimSuffix(clientURL, "/")}),
		handlers.AllowCredentials(),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(handlers.CustomLoggingHandler(io.Discard, cors(r), requestLogFormatter(logger)))
}

// requestLogFormatter writes one structured line per request, like morgan "tiny".
func requestLogFormatter(logger logging.Logger) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Info(p.Request.Context(), "http request",
			"method", p.Request.Method,
			"path", p.URL.Path,
			"status", p.StatusCode,
			"size", p.Size,
			"duration", time.Since(p.TimeStamp).String(),
		)
	}
}

type recoveryLogger struct {
	logger logging.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error(context.Background(), "panic in handler", "error", fmt.Sprint(v...))
}

// serveHTTP runs srv until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server, logger logging.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
