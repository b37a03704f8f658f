// Package service is the asynchronous data access façade. Every operation
// runs on the executor, borrows a connection through the store and resolves a
// future to a typed result.
package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"imanconnect/backend"
	"imanconnect/backend/flatfile"
	"imanconnect/internal/async"
	"imanconnect/internal/notification"
	"imanconnect/internal/utils"
)

// DefaultBcryptCost is the work factor for stored secrets.
const DefaultBcryptCost = 12

// Notifier receives fatwa notifications. NotificationManager satisfies it.
type Notifier interface {
	SendAsync(n notification.Notification)
}

// OperationObserver records each operation's outcome. metrics.Registry satisfies it.
type OperationObserver interface {
	ObserveOperation(op, status string, elapsed time.Duration)
}

// Option configures a Service
type Option func(*Service)

// WithPrayerFile mirrors today's prayer saves into the daily prayer file.
func WithPrayerFile(p *flatfile.PrayerStore) Option {
	return func(s *Service) { s.prayers = p }
}

// WithTasbihFile mirrors today's dhikr saves into the daily tasbih file.
func WithTasbihFile(t *flatfile.TasbihStore) Option {
	return func(s *Service) { s.tasbih = t }
}

// WithNotifier sends fatwa notifications through n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithObserver reports every operation to o.
func WithObserver(o OperationObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithClock sets the clock used to stamp scholar presence.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service implements the façade over a backend.Store
type Service struct {
	store      backend.Store
	exec       *async.Executor
	prayers    *flatfile.PrayerStore
	tasbih     *flatfile.TasbihStore
	notifier   Notifier
	observer   OperationObserver
	bcryptCost int
	now        func() time.Time
	log        *utils.Logger
}

// New creates a Service that runs its work on exec.
func New(store backend.Store, exec *async.Executor, opts ...Option) *Service {
	s := &Service{
		store:      store,
		exec:       exec,
		bcryptCost: DefaultBcryptCost,
		now:        time.Now,
		log:        utils.GetLogger().Component("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bcryptCost < bcrypt.MinCost || s.bcryptCost > bcrypt.MaxCost {
		s.bcryptCost = DefaultBcryptCost
	}
	return s
}

// Shutdown stops accepting operations and waits for queued ones to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.exec.Shutdown(ctx)
}

// run submits fn as operation op. A not-found error is a failure.
func run[T any](ctx context.Context, s *Service, op string, fn func(ctx context.Context) (T, error)) *async.Future[T] {
	return submit(ctx, s, op, false, fn)
}

// lookup submits fn as operation op. A not-found error resolves as Empty.
func lookup[T any](ctx context.Context, s *Service, op string, fn func(ctx context.Context) (T, error)) *async.Future[T] {
	return submit(ctx, s, op, true, fn)
}

func submit[T any](ctx context.Context, s *Service, op string, emptyOnNotFound bool, fn func(ctx context.Context) (T, error)) *async.Future[T] {
	return async.Submit(ctx, s.exec, func(ctx context.Context) async.Result[T] {
		started := time.Now()
		v, err := fn(ctx)

		var res async.Result[T]
		switch {
		case err == nil:
			res = async.OK(v)
		case emptyOnNotFound && errors.Is(err, backend.ErrNotFound):
			res = async.Empty[T]()
			err = nil
		default:
			res = async.Failure[T](Classify(err), err)
		}

		s.log.Op(op, started, err)
		if s.observer != nil {
			s.observer.ObserveOperation(op, res.Status.String(), time.Since(started))
		}
		return res
	})
}

// Classify maps an error from the store or the façade to an ErrorKind.
func Classify(err error) async.ErrorKind {
	var verr *utils.ValidationError
	switch {
	case err == nil:
		return async.KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return async.KindCanceled
	case errors.As(err, &verr):
		return async.KindValidation
	case errors.Is(err, backend.ErrDuplicate), errors.Is(err, backend.ErrInvalidState),
		errors.Is(err, backend.ErrBusy):
		return async.KindConflict
	case errors.Is(err, backend.ErrNotFound):
		return async.KindNotFound
	case backend.IsConnectionError(err),
		errors.Is(err, backend.ErrPoolExhausted),
		errors.Is(err, backend.ErrPoolClosed):
		return async.KindConnection
	default:
		return async.KindInternal
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, backend.ErrNotFound)
}

// invalid builds a validation error for a single field.
func invalid(field, reason string) error {
	return &utils.ValidationError{Fields: []string{field + " " + reason}}
}

func (s *Service) notify(n notification.Notification) {
	if s.notifier != nil {
		s.notifier.SendAsync(n)
	}
}
