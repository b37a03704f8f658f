package backend

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write violates a uniqueness rule.
	ErrDuplicate = errors.New("already exists")
	// ErrInvalidState is returned when a row is not in the state an update requires.
	ErrInvalidState = errors.New("invalid state")
	// ErrBusy is returned when another writer held the database past busy_timeout.
	ErrBusy = errors.New("database busy")
	// ErrPoolExhausted is returned when no connection frees up within the acquire timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrPoolClosed is returned by Acquire after shutdown.
	ErrPoolClosed = errors.New("connection pool closed")
)

// ConnectionError reports that the database could not be reached.
type ConnectionError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is or wraps a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"

// legacyTimestamp is what SQLite's CURRENT_TIMESTAMP produces.
const legacyTimestamp = "2006-01-02 15:04:05"

// FormatTime formats a timestamp for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a stored timestamp. Unparseable values yield the zero time.
func ParseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(legacyTimestamp, s); err == nil {
		return t
	}
	return time.Time{}
}

// FormatDate formats a calendar day for storage.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
