// Package async runs data access work off the caller's goroutine and
// delivers typed results through futures.
package async

import (
	"errors"
	"fmt"
)

// Status is the outcome of an operation
type Status int

const (
	// StatusOK means the operation succeeded and Value is meaningful.
	StatusOK Status = iota
	// StatusEmpty means the operation succeeded but found nothing.
	StatusEmpty
	// StatusFailed means the operation failed; Kind and Err say why.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrorKind classifies a failure so callers can branch on it
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindConnection ErrorKind = "connection"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation"
	KindCanceled   ErrorKind = "canceled"
	KindInternal   ErrorKind = "internal"
)

// ErrExecutorClosed is the error of work submitted after Shutdown.
var ErrExecutorClosed = errors.New("executor is shut down")

// Result is what a future resolves to
type Result[T any] struct {
	Value  T
	Status Status
	Kind   ErrorKind
	Err    error
}

// OK wraps a successful value
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

// Empty is a successful lookup that matched nothing
func Empty[T any]() Result[T] {
	return Result[T]{Status: StatusEmpty}
}

// Failure is a failed operation. A nil err is replaced with a generic one so
// a failed result always carries an error.
func Failure[T any](kind ErrorKind, err error) Result[T] {
	if kind == KindNone {
		kind = KindInternal
	}
	if err == nil {
		err = fmt.Errorf("%s failure", kind)
	}
	return Result[T]{Status: StatusFailed, Kind: kind, Err: err}
}

// IsOK reports whether the result carries a value
func (r Result[T]) IsOK() bool { return r.Status == StatusOK }

// IsEmpty reports whether the operation succeeded without a value
func (r Result[T]) IsEmpty() bool { return r.Status == StatusEmpty }

// Failed reports whether the operation failed
func (r Result[T]) Failed() bool { return r.Status == StatusFailed }

// Unwrap returns the value and the error, for callers that prefer Go's
// two-value style. Empty results return the zero value and a nil error.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

func (r Result[T]) String() string {
	if r.Failed() {
		return fmt.Sprintf("failed (%s): %v", r.Kind, r.Err)
	}
	return r.Status.String()
}
