package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"imanconnect/backend"
)

// ConnProvider lends connections and transactions. *dbpool.Pool implements it.
type ConnProvider interface {
	WithConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// querier is the subset shared by *sqlx.Conn and *sqlx.Tx.
type querier interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Backend implements backend.Store on SQLite
type Backend struct {
	pool ConnProvider
	now  func() time.Time
}

// Option configures a Backend
type Option func(*Backend)

// WithClock overrides the time source used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// New creates a SQLite store on top of a connection provider
func New(pool ConnProvider, opts ...Option) *Backend {
	b := &Backend{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ backend.Store = (*Backend)(nil)

// conn runs fn with a borrowed connection and maps driver errors.
func (b *Backend) conn(ctx context.Context, fn func(q querier) error) error {
	return mapErr(b.pool.WithConn(ctx, func(c *sqlx.Conn) error {
		return fn(c)
	}))
}

// tx runs fn in a transaction and maps driver errors.
func (b *Backend) tx(ctx context.Context, fn func(q querier) error) error {
	return mapErr(b.pool.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(tx)
	}))
}

func (b *Backend) stamp() string {
	return backend.FormatTime(b.now())
}

// mapErr converts driver errors into the backend sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return backend.ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", backend.ErrDuplicate, err)
	}
	if isBusy(err) {
		return fmt.Errorf("%w: %v", backend.ErrBusy, err)
	}
	return err
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// requireAffected turns an UPDATE that touched no rows into ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
