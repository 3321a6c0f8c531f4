package authcore

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/interviewhub/authcore/logging"
)

// Mailer delivers verification and reset links. Delivery is fire-and-forget:
// an error is logged by the caller and never undoes token issuance.
type Mailer interface {
	SendVerificationLink(ctx context.Context, email, token string) error
	SendResetLink(ctx context.Context, email, token string) error
}

// Link paths appended to the base URL of mailed links.
const (
	VerifyEmailPath   = "/api/user/auth/verify-email"
	ResetPasswordPath = "/reset-password"
)

// BuildLink joins base, path and the token query parameter.
func BuildLink(base, path, token string) string {
	return strings.TrimSuffix(base, "/") + path + "?token=" + url.QueryEscape(token)
}

// LogMailer records that a message was due, with its recipient and kind
// only. Links carry live tokens and never reach the log.
type LogMailer struct {
	Logger logging.Logger
}

func (l *LogMailer) logger() logging.Logger {
	if l.Logger == nil {
		return logging.Discard()
	}
	return l.Logger
}

func (l *LogMailer) SendVerificationLink(ctx context.Context, email, token string) error {
	l.logger().Info(ctx, "email not delivered, no mail transport configured", "to", email, "kind", "verification")
	return nil
}

func (l *LogMailer) SendResetLink(ctx context.Context, email, token string) error {
	l.logger().Info(ctx, "email not delivered, no mail transport configured", "to", email, "kind", "reset")
	return nil
}

// ConsoleMailer writes the full links, tokens included, to the log.
// Local development only.
type ConsoleMailer struct {
	// BaseURL for verification links (the API) and reset links (the client app).
	BaseURL   string
	ClientURL string
	Logger    logging.Logger
}

func (c *ConsoleMailer) logger() logging.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger
}

func (c *ConsoleMailer) SendVerificationLink(ctx context.Context, email, token string) error {
	c.logger().Info(ctx, "email: verify your email address",
		"to", email, "link", BuildLink(c.BaseURL, VerifyEmailPath, token))
	return nil
}

func (c *ConsoleMailer) SendResetLink(ctx context.Context, email, token string) error {
	base := c.ClientURL
	if base == "" {
		base = c.BaseURL
	}
	c.logger().Info(ctx, "email: reset your password",
		"to", email, "link", BuildLink(base, ResetPasswordPath, token))
	return nil
}

// AsyncMailer hands each message to Next on its own goroutine.
type AsyncMailer struct {
	Next   Mailer
	Logger logging.Logger

	wg sync.WaitGroup
}

func NewAsyncMailer(next Mailer, logger logging.Logger) *AsyncMailer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AsyncMailer{Next: next, Logger: logger}
}

func (m *AsyncMailer) SendVerificationLink(ctx context.Context, email, token string) error {
	m.dispatch(ctx, "verification", func(ctx context.Context) error {
		return m.Next.SendVerificationLink(ctx, email, token)
	})
	return nil
}

func (m *AsyncMailer) SendResetLink(ctx context.Context, email, token string) error {
	m.dispatch(ctx, "reset", func(ctx context.Context) error {
		return m.Next.SendResetLink(ctx, email, token)
	})
	return nil
}

func (m *AsyncMailer) dispatch(ctx context.Context, kind string, send func(context.Context) error) {
	// the request context is cancelled once the response is written
	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := send(ctx); err != nil {
			m.Logger.Error(ctx, "mail delivery failed", "kind", kind, "error", err)
		}
	}()
}

// Wait blocks until every dispatched message has been handed off.
func (m *AsyncMailer) Wait() {
	m.wg.Wait()
}
