package authcore_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ac "github.com/interviewhub/authcore"
	"github.com/interviewhub/authcore/logging"
)

func TestBuildLink(t *testing.T) {
	assert.Equal(t, "http://api.test/api/user/auth/verify-email?token=a%2Bb",
		ac.BuildLink("http://api.test/", ac.VerifyEmailPath, "a+b"))
}

func TestConsoleMailer(t *testing.T) {
	var buf bytes.Buffer
	m := &ac.ConsoleMailer{
		BaseURL:   "http://api.test",
		ClientURL: "http://app.test",
		Logger:    logging.NewJSONLogger(&buf, slog.LevelInfo),
	}
	ctx := context.Background()

	require.NoError(t, m.SendVerificationLink(ctx, "alice@x.com", "tok1"))
	require.NoError(t, m.SendResetLink(ctx, "alice@x.com", "tok2"))

	out := buf.String()
	assert.Contains(t, out, "http://api.test/api/user/auth/verify-email?token=tok1")
	assert.Contains(t, out, "http://app.test/reset-password?token=tok2")
	assert.Equal(t, 2, strings.Count(out, "alice@x.com"))
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := &ac.LogMailer{Logger: logging.NewJSONLogger(&buf, slog.LevelInfo)}
	ctx := context.Background()

	require.NoError(t, m.SendVerificationLink(ctx, "alice@x.com", "secret-tok1"))
	require.NoError(t, m.SendResetLink(ctx, "alice@x.com", "secret-tok2"))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "alice@x.com"))
	assert.Contains(t, out, `"kind":"verification"`)
	assert.Contains(t, out, `"kind":"reset"`)
	assert.NotContains(t, out, "secret-tok")
}

func TestAuth_DefaultMailerLogsNoTokens(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t)
	env.Auth.Mailer = nil
	env.Auth.Logger = logging.NewJSONLogger(&buf, slog.LevelDebug)
	env.Auth.EnsureDefaults()
	assert.IsType(t, &ac.LogMailer{}, env.Auth.Mailer)

	ctx := context.Background()
	_, err := env.Auth.Register(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)
	require.NoError(t, env.Auth.RequestReset(ctx, "alice@x.com"))

	assert.Contains(t, buf.String(), `"kind":"reset"`)
	assert.NotContains(t, buf.String(), "eyJ")
}

func TestAsyncMailer(t *testing.T) {
	rec := &recordingMailer{}
	m := ac.NewAsyncMailer(rec, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, m.SendVerificationLink(ctx, "alice@x.com", "tok1"))
	require.NoError(t, m.SendResetLink(ctx, "bob@x.com", "tok2"))
	cancel()
	m.Wait()

	assert.Equal(t, 2, rec.count())
	assert.Equal(t, "tok2", rec.last(t, "reset", "bob@x.com"))
}

func TestAsyncMailer_ErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingMailer{err: errors.New("smtp down")}
	m := ac.NewAsyncMailer(rec, logging.NewJSONLogger(&buf, slog.LevelInfo))

	require.NoError(t, m.SendResetLink(context.Background(), "alice@x.com", "tok"))
	m.Wait()
	assert.Contains(t, buf.String(), "smtp down")
	assert.NotContains(t, buf.String(), "tok\"")
}
