package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jdholdren/clearly/internal/clearly"
)

var (
	_ clearly.ListRepo         = (*Repo)(nil)
	_ clearly.SubscriptionRepo = (*Repo)(nil)
	_ clearly.EventRepo        = (*Repo)(nil)
	_ clearly.BatchRepo        = (*Repo)(nil)
)

type Repo struct {
	db  *sqlx.DB
	now func() time.Time
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db, now: time.Now}
}

// Open connects to the sqlite database at path with foreign keys enforced.
func Open(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	dbx, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}

	return dbx, nil
}

func (r Repo) stamp() clearly.Timestamp {
	return clearly.At(r.now())
}

func isUniqueViolation(err error) bool {
	sqliteErr := &sqlite.Error{}
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// Run against a single row update: no rows changed means the row wasn't there
// (or didn't match the update's guard).
func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %s", err)
	}

	return n > 0, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func get[T any](ctx context.Context, db *sqlx.DB, q string, args ...any) (T, error) {
	var t T
	err := db.GetContext(ctx, &t, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return t, clearly.ErrNotFound
	}

	return t, err
}
