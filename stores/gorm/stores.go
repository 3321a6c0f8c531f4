//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ac "github.com/interviewhub/authcore"
)

// AutoMigrate creates or updates the authcore tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&TokenRecordModel{},
	)
}

// Store implements ac.Store using GORM
type Store struct {
	db *gorm.DB

	// Now stamps UpdatedAt on updates. Defaults to time.Now.
	Now func() time.Time
}

var _ ac.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// =============================================================================
// UserStore
// =============================================================================

func (s *Store) findOne(ctx context.Context, query string, arg any) (*ac.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*ac.User, error) {
	if id == "" {
		return nil, nil
	}
	return s.findOne(ctx, "id = ?", id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*ac.User, error) {
	return s.findOne(ctx, "email = ?", email)
}

func (s *Store) FindByFederatedID(ctx context.Context, federatedID string) (*ac.User, error) {
	if federatedID == "" {
		return nil, nil
	}
	return s.findOne(ctx, "federated_id = ?", federatedID)
}

func (s *Store) Insert(ctx context.Context, user *ac.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	model := userModelFrom(user)
	err := s.db.WithContext(ctx).Create(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.duplicateCause(ctx, user)
	}
	return err
}

// duplicateCause works out which unique index rejected an insert.
func (s *Store) duplicateCause(ctx context.Context, user *ac.User) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ac.ErrEmailTaken
	}
	if user.FederatedID != "" {
		return ac.ErrFederatedIDTaken
	}
	// primary key clash; ids are random so treat it like a taken email
	return ac.ErrEmailTaken
}

func (s *Store) UpdateFields(ctx context.Context, id string, update ac.UserUpdate) (*ac.User, error) {
	if update.IsEmpty() {
		return s.FindByID(ctx, id)
	}
	var result *ac.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model UserModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		changes := map[string]any{"updated_at": s.now()}
		if update.PasswordHash != nil {
			changes["password_hash"] = *update.PasswordHash
		}
		if update.Role != nil {
			changes["role"] = string(*update.Role)
		}
		if update.MarkVerified {
			changes["verified"] = true
		}
		if update.FederatedID != nil {
			if *update.FederatedID == "" {
				changes["federated_id"] = nil
			} else {
				changes["federated_id"] = *update.FederatedID
			}
		}
		if update.BumpSessionEpoch {
			changes["session_epoch"] = gorm.Expr("session_epoch + 1")
		}

		if err := tx.Model(&model).Updates(changes).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ac.ErrFederatedIDTaken
			}
			return err
		}

		var updated UserModel
		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			return err
		}
		result = updated.ToUser()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// TokenLedger
// =============================================================================

func (s *Store) Consume(ctx context.Context, record ac.TokenRecord) error {
	record.Kind = ac.RecordConsumed
	err := s.db.WithContext(ctx).Create(recordModelFrom(record)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ac.ErrTokenAlreadyUsed
	}
	return err
}

func (s *Store) Revoke(ctx context.Context, record ac.TokenRecord) error {
	record.Kind = ac.RecordRevoked
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "expires_at"}),
	}).Create(recordModelFrom(record)).Error
}

func (s *Store) IsRevoked(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&TokenRecordModel{}).
		Where("id = ? AND kind = ?", id, string(ac.RecordRevoked)).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&TokenRecordModel{}, "expires_at < ?", before.UTC())
	return result.RowsAffected, result.Error
}
