//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	ac "github.com/interviewhub/authcore"
)

// Kind constants for Datastore entities
const (
	KindUser           = "User"
	KindEmailIndex     = "EmailIndex"
	KindFederatedIndex = "FederatedIndex"
	KindTokenRecord    = "TokenRecord"
)

// DeleteMulti accepts at most 500 keys per call
const purgeBatchSize = 500

// racing Consume calls on one jti contend on a single entity
const consumeAttempts = 10

// Store implements ac.Store using Google Cloud Datastore
type Store struct {
	client    *datastore.Client
	namespace string

	// Now stamps UpdatedAt on updates. Defaults to time.Now.
	Now func() time.Time
}

var _ ac.Store = (*Store)(nil)

// NewStore creates a Datastore-backed store in the given namespace
func NewStore(client *datastore.Client, namespace string) *Store {
	return &Store{
		client:    client,
		namespace: namespace,
		Now:       time.Now,
	}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *Store) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) FindByID(ctx context.Context, id string) (*ac.User, error) {
	if id == "" {
		return nil, nil
	}
	var entity UserEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindUser, id), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, nil
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*ac.User, error) {
	return s.findByIndex(ctx, KindEmailIndex, email)
}

func (s *Store) FindByFederatedID(ctx context.Context, federatedID string) (*ac.User, error) {
	return s.findByIndex(ctx, KindFederatedIndex, federatedID)
}

func (s *Store) findByIndex(ctx context.Context, kind, value string) (*ac.User, error) {
	if value == "" {
		return nil, nil
	}
	var idx IndexEntity
	if err := s.client.Get(ctx, s.namespacedKey(kind, value), &idx); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, nil
		}
		return nil, err
	}
	return s.FindByID(ctx, idx.UserID)
}

// claimIndex reserves value for userID inside tx. It reports false when a
// different user already holds it.
func (s *Store) claimIndex(tx *datastore.Transaction, kind, value, userID string, now time.Time) (bool, error) {
	key := s.namespacedKey(kind, value)
	var existing IndexEntity
	err := tx.Get(key, &existing)
	switch {
	case err == nil:
		return existing.UserID == userID, nil
	case !errors.Is(err, datastore.ErrNoSuchEntity):
		return false, err
	}
	_, err = tx.Put(key, &IndexEntity{UserID: userID, CreatedAt: now})
	return err == nil, err
}

func (s *Store) Insert(ctx context.Context, user *ac.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		ok, err := s.claimIndex(tx, KindEmailIndex, user.Email, user.ID, user.CreatedAt)
		if err != nil {
			return err
		}
		if !ok {
			return ac.ErrEmailTaken
		}
		if user.FederatedID != "" {
			ok, err := s.claimIndex(tx, KindFederatedIndex, user.FederatedID, user.ID, user.CreatedAt)
			if err != nil {
				return err
			}
			if !ok {
				return ac.ErrFederatedIDTaken
			}
		}
		key := s.namespacedKey(KindUser, user.ID)
		_, err = tx.Put(key, UserToEntity(user, key))
		return err
	})
	return err
}

func (s *Store) UpdateFields(ctx context.Context, id string, update ac.UserUpdate) (*ac.User, error) {
	if update.IsEmpty() {
		return s.FindByID(ctx, id)
	}
	key := s.namespacedKey(KindUser, id)
	var result *ac.User

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		result = nil
		var entity UserEntity
		if err := tx.Get(key, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return nil
			}
			return err
		}
		user := entity.ToUser()
		now := s.now()

		if update.FederatedID != nil && *update.FederatedID != user.FederatedID {
			if *update.FederatedID != "" {
				ok, err := s.claimIndex(tx, KindFederatedIndex, *update.FederatedID, user.ID, now)
				if err != nil {
					return err
				}
				if !ok {
					return ac.ErrFederatedIDTaken
				}
			}
			if user.FederatedID != "" {
				if err := tx.Delete(s.namespacedKey(KindFederatedIndex, user.FederatedID)); err != nil {
					return err
				}
			}
		}

		update.Apply(user, now)
		if _, err := tx.Put(key, UserToEntity(user, key)); err != nil {
			return err
		}
		result = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ============================================================================
// TokenLedger
// ============================================================================

func (s *Store) Consume(ctx context.Context, record ac.TokenRecord) error {
	record.Kind = ac.RecordConsumed
	key := s.namespacedKey(KindTokenRecord, record.ID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing TokenRecordEntity
		err := tx.Get(key, &existing)
		if err == nil {
			return ac.ErrTokenAlreadyUsed
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		_, err = tx.Put(key, RecordToEntity(record, key))
		return err
	}, datastore.MaxAttempts(consumeAttempts))
	return err
}

func (s *Store) Revoke(ctx context.Context, record ac.TokenRecord) error {
	record.Kind = ac.RecordRevoked
	key := s.namespacedKey(KindTokenRecord, record.ID)
	_, err := s.client.Put(ctx, key, RecordToEntity(record, key))
	return err
}

func (s *Store) IsRevoked(ctx context.Context, id string) (bool, error) {
	var entity TokenRecordEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindTokenRecord, id), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return false, nil
		}
		return false, err
	}
	return entity.Kind == string(ac.RecordRevoked), nil
}

func (s *Store) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	query := datastore.NewQuery(KindTokenRecord).
		FilterField("expires_at", "<", before).
		KeysOnly()
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	var purged int64
	var batch []*datastore.Key
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.client.DeleteMulti(ctx, batch); err != nil {
			return err
		}
		purged += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	it := s.client.Run(ctx, query)
	for {
		key, err := it.Next(nil)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return purged, err
		}
		batch = append(batch, key)
		if len(batch) == purgeBatchSize {
			if err := flush(); err != nil {
				return purged, err
			}
		}
	}
	if err := flush(); err != nil {
		return purged, err
	}
	return purged, nil
}
