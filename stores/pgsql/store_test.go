package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	ac "github.com/interviewhub/authcore"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	s := NewStore(db)
	s.Now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s, mock, db
}

var userCols = []string{"id", "email", "password_hash", "role", "verified", "federated_id", "session_epoch", "created_at", "updated_at"}

func testUser() *ac.User {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &ac.User{ID: "u1", Email: "alice@x.com", PasswordHash: "$2a$04$hash", Role: ac.RoleUser, CreatedAt: now, UpdatedAt: now}
}

const insertUserQ = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,.*\)\s*VALUES\s*\(\$1,.*\$9\)\s*$`

func TestInsert_Success(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	u := testUser()
	mock.ExpectExec(insertUserQ).
		WithArgs("u1", "alice@x.com", "$2a$04$hash", "user", false, nil, int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Insert(context.Background(), u); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsert_UniqueViolations(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{constraintEmail, ac.ErrEmailTaken},
		{constraintFederated, ac.ErrFederatedIDTaken},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			s, mock, db := newStoreWithMock(t)
			defer db.Close()

			mock.ExpectExec(insertUserQ).
				WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: tc.constraint})

			u := testUser()
			u.FederatedID = "google-1"
			if err := s.Insert(context.Background(), u); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestInsert_DBError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertUserQ).WillReturnError(errors.New("db down"))

	err := s.Insert(context.Background(), testUser())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByEmail(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`
	now := time.Now().UTC()
	mock.ExpectQuery(q).
		WithArgs("alice@x.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "alice@x.com", "", "admin", true, "google-1", int64(2), now, now))
	mock.ExpectQuery(q).
		WithArgs("ghost@x.com").
		WillReturnError(sql.ErrNoRows)

	got, err := s.FindByEmail(context.Background(), "alice@x.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	if got.ID != "u1" || got.Role != ac.RoleAdmin || got.FederatedID != "google-1" || got.SessionEpoch != 2 {
		t.Fatalf("unexpected user: %+v", got)
	}

	missing, err := s.FindByEmail(context.Background(), "ghost@x.com")
	if err != nil || missing != nil {
		t.Fatalf("want (nil, nil), got (%v, %v)", missing, err)
	}
}

func TestUpdateFields(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET.*session_epoch\s*=\s*session_epoch\s*\+\s*\$7.*WHERE\s+id\s*=\s*\$1\s+RETURNING`
	now := time.Now().UTC()
	hash := "$2a$04$new"

	mock.ExpectQuery(q).
		WithArgs("u1", hash, nil, false, false, "", int64(1), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "alice@x.com", hash, "user", true, nil, int64(1), now, now))

	got, err := s.UpdateFields(context.Background(), "u1", ac.UserUpdate{PasswordHash: &hash, BumpSessionEpoch: true})
	if err != nil {
		t.Fatalf("UpdateFields error: %v", err)
	}
	if got.PasswordHash != hash || got.SessionEpoch != 1 || got.FederatedID != "" {
		t.Fatalf("unexpected user: %+v", got)
	}

	mock.ExpectQuery(q).WillReturnError(sql.ErrNoRows)
	none, err := s.UpdateFields(context.Background(), "missing", ac.UserUpdate{MarkVerified: true})
	if err != nil || none != nil {
		t.Fatalf("want (nil, nil), got (%v, %v)", none, err)
	}

	sub := "google-1"
	mock.ExpectQuery(q).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintFederated})
	if _, err := s.UpdateFields(context.Background(), "u2", ac.UserUpdate{FederatedID: &sub}); !errors.Is(err, ac.ErrFederatedIDTaken) {
		t.Fatalf("want ErrFederatedIDTaken, got %v", err)
	}
}

func TestUpdateFields_EmptyIsLookup(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)^SELECT\s.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "alice@x.com", "$2a$04$hash", "user", false, nil, int64(0), now, now))

	got, err := s.UpdateFields(context.Background(), "u1", ac.UserUpdate{})
	if err != nil {
		t.Fatalf("UpdateFields error: %v", err)
	}
	if got == nil || got.ID != "u1" || got.SessionEpoch != 0 {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConsume(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+token_records.*ON\s+CONFLICT\s+\(id\)\s+DO\s+NOTHING\s*$`
	rec := ac.TokenRecord{ID: "jti-1", Purpose: ac.PurposeResetPassword, UserID: "u1", ExpiresAt: time.Now()}

	mock.ExpectExec(q).
		WithArgs("jti-1", "consumed", "reset-password", "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Consume(context.Background(), rec); err != nil {
		t.Fatalf("first Consume: %v", err)
	}
	if err := s.Consume(context.Background(), rec); !errors.Is(err, ac.ErrTokenAlreadyUsed) {
		t.Fatalf("want ErrTokenAlreadyUsed, got %v", err)
	}
}

func TestRevokeAndIsRevoked(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+token_records.*DO\s+UPDATE\s+SET\s+kind\s*=\s*EXCLUDED\.kind`).
		WithArgs("sess-1", "revoked", "session", "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := `(?s)^SELECT\s+kind\s+FROM\s+token_records\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("revoked"))
	mock.ExpectQuery(q).WithArgs("other").
		WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	if err := s.Revoke(ctx, ac.TokenRecord{ID: "sess-1", Purpose: ac.PurposeSession, UserID: "u1", ExpiresAt: time.Now()}); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok, err := s.IsRevoked(ctx, "sess-1"); err != nil || !ok {
		t.Fatalf("want revoked, got %v %v", ok, err)
	}
	if ok, err := s.IsRevoked(ctx, "other"); err != nil || ok {
		t.Fatalf("want not revoked, got %v %v", ok, err)
	}
}

func TestPurgeExpired(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+token_records\s+WHERE\s+expires_at\s*<\s*\$1\s*$`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.PurgeExpired(context.Background(), cutoff)
	if err != nil || n != 3 {
		t.Fatalf("want 3 purged, got %d %v", n, err)
	}
}
