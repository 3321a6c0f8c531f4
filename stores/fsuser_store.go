package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	ac "github.com/interviewhub/authcore"
)

// fsUser is the on-disk form of a user. Unlike ac.User it keeps the hash and epoch.
type fsUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Role         ac.Role   `json:"role"`
	Verified     bool      `json:"verified"`
	FederatedID  string    `json:"federated_id,omitempty"`
	SessionEpoch int64     `json:"session_epoch"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func fromUser(u *ac.User) *fsUser {
	return &fsUser{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Verified:     u.Verified,
		FederatedID:  u.FederatedID,
		SessionEpoch: u.SessionEpoch,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (f *fsUser) toUser() *ac.User {
	return &ac.User{
		ID:           f.ID,
		Email:        f.Email,
		PasswordHash: f.PasswordHash,
		Role:         f.Role,
		Verified:     f.Verified,
		FederatedID:  f.FederatedID,
		SessionEpoch: f.SessionEpoch,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

type indexEntry struct {
	UserID string `json:"user_id"`
}

// FSStore stores users and token records as JSON files under StoragePath:
//
//	users/<id>.json          user documents
//	emails/<hash>.json       email uniqueness index
//	federated/<hash>.json    federated subject index
//	ledger/<hash>.json       consumed and revoked token records
//
// Index and ledger files are created with O_EXCL, which makes the unique
// checks atomic even across processes sharing the directory.
type FSStore struct {
	StoragePath string

	// Now stamps UpdatedAt on updates. Defaults to time.Now.
	Now func() time.Time

	// serializes read-modify-write of user documents
	mu sync.Mutex
}

func NewFSStore(storagePath string) *FSStore {
	return &FSStore{StoragePath: storagePath, Now: time.Now}
}

func (s *FSStore) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *FSStore) getUserPath(id string) string {
	return filepath.Join(s.StoragePath, "users", filepath.Base(id)+".json")
}

func (s *FSStore) getEmailIndexPath(email string) string {
	return filepath.Join(s.StoragePath, "emails", safeName(email))
}

func (s *FSStore) getFederatedIndexPath(subject string) string {
	return filepath.Join(s.StoragePath, "federated", safeName(subject))
}

func (s *FSStore) FindByID(ctx context.Context, id string) (*ac.User, error) {
	if id == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.getUserPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var user fsUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("corrupt user file %s: %w", id, err)
	}
	return user.toUser(), nil
}

func (s *FSStore) FindByEmail(ctx context.Context, email string) (*ac.User, error) {
	return s.findByIndex(ctx, s.getEmailIndexPath(email))
}

func (s *FSStore) FindByFederatedID(ctx context.Context, federatedID string) (*ac.User, error) {
	if federatedID == "" {
		return nil, nil
	}
	return s.findByIndex(ctx, s.getFederatedIndexPath(federatedID))
}

func (s *FSStore) findByIndex(ctx context.Context, path string) (*ac.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entry indexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt index file %s: %w", path, err)
	}
	return s.FindByID(ctx, entry.UserID)
}

// claimIndex creates an index file pointing at userID. It reports false when
// the key is already taken.
func (s *FSStore) claimIndex(path, userID string) (bool, error) {
	data, err := json.Marshal(indexEntry{UserID: userID})
	if err != nil {
		return false, err
	}
	return createExclusive(path, data)
}

func (s *FSStore) Insert(ctx context.Context, user *ac.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	emailPath := s.getEmailIndexPath(user.Email)
	ok, err := s.claimIndex(emailPath, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ac.ErrEmailTaken
	}

	var fedPath string
	if user.FederatedID != "" {
		fedPath = s.getFederatedIndexPath(user.FederatedID)
		ok, err := s.claimIndex(fedPath, user.ID)
		if err != nil || !ok {
			os.Remove(emailPath)
			if err != nil {
				return err
			}
			return ac.ErrFederatedIDTaken
		}
	}

	if err := s.writeUser(user); err != nil {
		os.Remove(emailPath)
		if fedPath != "" {
			os.Remove(fedPath)
		}
		return err
	}
	return nil
}

func (s *FSStore) UpdateFields(ctx context.Context, id string, update ac.UserUpdate) (*ac.User, error) {
	if update.IsEmpty() {
		return s.FindByID(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.FindByID(ctx, id)
	if err != nil || user == nil {
		return nil, err
	}

	oldFederatedID := user.FederatedID
	if update.FederatedID != nil && *update.FederatedID != oldFederatedID {
		if *update.FederatedID != "" {
			ok, err := s.claimIndex(s.getFederatedIndexPath(*update.FederatedID), user.ID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ac.ErrFederatedIDTaken
			}
		}
		if oldFederatedID != "" {
			os.Remove(s.getFederatedIndexPath(oldFederatedID))
		}
	}

	update.Apply(user, s.now())
	if err := s.writeUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *FSStore) writeUser(user *ac.User) error {
	data, err := json.MarshalIndent(fromUser(user), "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(s.getUserPath(user.ID), data)
}
