package authcore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	ac "github.com/interviewhub/authcore"
	"github.com/interviewhub/authcore/stores"
)

var testSecret = []byte("test-secret-0123456789abcdef")

// fakeClock is a settable clock shared by the codec and the core.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	Kind  string
	Email string
	Token string
}

// recordingMailer keeps every message so tests can pull tokens out of "mail".
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) SendVerificationLink(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{"verify", email, token})
	return m.err
}

func (m *recordingMailer) SendResetLink(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{"reset", email, token})
	return m.err
}

// last returns the most recent token of kind sent to email.
func (m *recordingMailer) last(t *testing.T, kind, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind && m.sent[i].Email == email {
			return m.sent[i].Token
		}
	}
	t.Fatalf("no %s mail sent to %s", kind, email)
	return ""
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testEnv struct {
	Auth   *ac.Auth
	Store  *stores.FSStore
	Clock  *fakeClock
	Mailer *recordingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()

	codec, err := ac.NewTokenCodec(testSecret, "authcore-test")
	require.NoError(t, err)
	codec.Now = clock.Now

	store := stores.NewFSStore(t.TempDir())
	store.Now = clock.Now

	mailer := &recordingMailer{}
	auth := &ac.Auth{
		Users:                store,
		Ledger:               store,
		Codec:                codec,
		Hasher:               &ac.BcryptHasher{Cost: bcrypt.MinCost},
		Mailer:               mailer,
		Policy:               ac.DefaultPolicy(),
		RequireVerifiedLogin: true,
		Now:                  clock.Now,
	}
	auth.EnsureDefaults()

	return &testEnv{Auth: auth, Store: store, Clock: clock, Mailer: mailer}
}

// registerVerified registers and verifies an account, returning it.
func (e *testEnv) registerVerified(t *testing.T, email, password string) *ac.User {
	t.Helper()
	ctx := context.Background()
	_, err := e.Auth.Register(ctx, email, password)
	require.NoError(t, err)
	user, err := e.Auth.ConfirmVerification(ctx, e.Mailer.last(t, "verify", email))
	require.NoError(t, err)
	return user
}

// login logs in and fails the test on error.
func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	token, _, err := e.Auth.Login(context.Background(), email, password)
	require.NoError(t, err)
	return token
}
