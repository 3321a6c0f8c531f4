package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	ac "github.com/interviewhub/authcore"
)

const (
	uniqueViolation = "23505"

	constraintEmail     = "users_email_key"
	constraintFederated = "users_federated_id_key"
)

const userColumns = `id, email, password_hash, role, verified, federated_id, session_epoch, created_at, updated_at`

// Store implements ac.Store on PostgreSQL.
type Store struct {
	db DBTX

	// Now stamps UpdatedAt on updates. Defaults to time.Now.
	Now func() time.Time
}

var _ ac.Store = (*Store)(nil)

func NewStore(db DBTX) *Store {
	return &Store{db: db, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// mapUniqueViolation turns a unique violation into the matching domain error.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case constraintFederated:
			return ac.ErrFederatedIDTaken
		default:
			return ac.ErrEmailTaken
		}
	}
	return fmt.Errorf("db error: %w", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*ac.User, error) {
	var (
		u         ac.User
		role      string
		federated sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.Verified, &federated,
		&u.SessionEpoch, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = ac.Role(role)
	u.FederatedID = federated.String
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (s *Store) findOne(ctx context.Context, where string, arg any) (*ac.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*ac.User, error) {
	if id == "" {
		return nil, nil
	}
	return s.findOne(ctx, `id = $1`, id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*ac.User, error) {
	return s.findOne(ctx, `email = $1`, email)
}

func (s *Store) FindByFederatedID(ctx context.Context, federatedID string) (*ac.User, error) {
	if federatedID == "" {
		return nil, nil
	}
	return s.findOne(ctx, `federated_id = $1`, federatedID)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) Insert(ctx context.Context, user *ac.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	query :=
		`INSERT INTO users (` + userColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, string(user.Role), user.Verified,
		nullString(user.FederatedID), user.SessionEpoch, user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// UpdateFields applies the whole update in one statement, so concurrent
// epoch bumps never get lost.
func (s *Store) UpdateFields(ctx context.Context, id string, update ac.UserUpdate) (*ac.User, error) {
	if update.IsEmpty() {
		return s.FindByID(ctx, id)
	}
	var (
		hash     sql.NullString
		role     sql.NullString
		setFed   bool
		fed      string
		epochInc int64
	)
	if update.PasswordHash != nil {
		hash = sql.NullString{String: *update.PasswordHash, Valid: true}
	}
	if update.Role != nil {
		role = sql.NullString{String: string(*update.Role), Valid: true}
	}
	if update.FederatedID != nil {
		setFed, fed = true, *update.FederatedID
	}
	if update.BumpSessionEpoch {
		epochInc = 1
	}

	query :=
		`UPDATE users SET
		     password_hash = COALESCE($2, password_hash),
		     role = COALESCE($3, role),
		     verified = verified OR $4,
		     federated_id = CASE WHEN $5 THEN NULLIF($6, '') ELSE federated_id END,
		     session_epoch = session_epoch + $7,
		     updated_at = $8
		 WHERE id = $1
		 RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		id, hash, role, update.MarkVerified, setFed, fed, epochInc, s.now()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapUniqueViolation(err)
	}
	return user, nil
}

func (s *Store) Consume(ctx context.Context, record ac.TokenRecord) error {
	query :=
		`INSERT INTO token_records (id, kind, purpose, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, record.ID, string(ac.RecordConsumed), string(record.Purpose),
		record.UserID, record.ExpiresAt.UTC(), record.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ac.ErrTokenAlreadyUsed
	}
	return nil
}

func (s *Store) Revoke(ctx context.Context, record ac.TokenRecord) error {
	query :=
		`INSERT INTO token_records (id, kind, purpose, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET kind = EXCLUDED.kind, expires_at = EXCLUDED.expires_at`

	_, err := s.db.ExecContext(ctx, query, record.ID, string(ac.RecordRevoked), string(record.Purpose),
		record.UserID, record.ExpiresAt.UTC(), record.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) IsRevoked(ctx context.Context, id string) (bool, error) {
	var kind string
	err := s.db.QueryRowContext(ctx, `SELECT kind FROM token_records WHERE id = $1`, id).Scan(&kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return kind == string(ac.RecordRevoked), nil
}

func (s *Store) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM token_records WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
