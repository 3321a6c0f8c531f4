//go:build !wasm
// +build !wasm

package gae_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ac "github.com/interviewhub/authcore"
	"github.com/interviewhub/authcore/stores/gae"
)

// newStore needs a running emulator, e.g.
//
//	gcloud beta emulators datastore start --host-port=localhost:8081
//	export DATASTORE_EMULATOR_HOST=localhost:8081
func newStore(t *testing.T) *gae.Store {
	t.Helper()
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		t.Skip("DATASTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := datastore.NewClient(ctx, "authcore-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	// a fresh namespace per test keeps runs independent
	return gae.NewStore(client, fmt.Sprintf("test-%d", time.Now().UnixNano()))
}

func newUser(id, email string) *ac.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &ac.User{
		ID:           id,
		Email:        email,
		PasswordHash: "$2a$04$hash",
		Role:         ac.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStore_InsertFindAndUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	fed := newUser("u1", "alice@x.com")
	fed.FederatedID = "google-1"
	require.NoError(t, s.Insert(ctx, fed))

	u, err := s.FindByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)

	u, err = s.FindByFederatedID(ctx, "google-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice@x.com", u.Email)

	assert.ErrorIs(t, s.Insert(ctx, newUser("u2", "alice@x.com")), ac.ErrEmailTaken)

	dup := newUser("u3", "bob@x.com")
	dup.FederatedID = "google-1"
	assert.ErrorIs(t, s.Insert(ctx, dup), ac.ErrFederatedIDTaken)

	missing, err := s.FindByEmail(ctx, "bob@x.com")
	require.NoError(t, err)
	assert.Nil(t, missing, "failed insert must not leave an email index behind")
}

func TestStore_UpdateFieldsMovesFederatedIndex(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Insert(ctx, newUser("u1", "alice@x.com")))

	first, second := "google-1", "google-2"
	_, err := s.UpdateFields(ctx, "u1", ac.UserUpdate{FederatedID: &first, MarkVerified: true})
	require.NoError(t, err)
	updated, err := s.UpdateFields(ctx, "u1", ac.UserUpdate{FederatedID: &second, BumpSessionEpoch: true})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.Verified)
	assert.Equal(t, int64(1), updated.SessionEpoch)

	old, err := s.FindByFederatedID(ctx, "google-1")
	require.NoError(t, err)
	assert.Nil(t, old)

	none, err := s.UpdateFields(ctx, "missing", ac.UserUpdate{MarkVerified: true})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStore_Ledger(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	expiry := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	rec := ac.TokenRecord{ID: "jti-1", Purpose: ac.PurposeVerifyEmail, UserID: "u1", ExpiresAt: expiry}
	require.NoError(t, s.Consume(ctx, rec))
	assert.ErrorIs(t, s.Consume(ctx, rec), ac.ErrTokenAlreadyUsed)

	require.NoError(t, s.Revoke(ctx, ac.TokenRecord{ID: "sess-1", Purpose: ac.PurposeSession, ExpiresAt: expiry}))
	revoked, err := s.IsRevoked(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := s.PurgeExpired(ctx, expiry.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_ConsumeRace(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	rec := ac.TokenRecord{ID: "jti-race", Purpose: ac.PurposeResetPassword, UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}

	const n = 4
	var wg sync.WaitGroup
	var ok, used atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Consume(ctx, rec)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ac.ErrTokenAlreadyUsed):
				used.Add(1)
			default:
				t.Errorf("consume: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), used.Load())
}
