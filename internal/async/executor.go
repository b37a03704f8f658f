package async

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"imanconnect/internal/utils"
)

// Executor runs submitted work on a conc goroutine pool. With MaxWorkers
// zero the pool grows without bound; otherwise Submit blocks while all
// workers are busy.
type Executor struct {
	pool *pool.Pool
	log  *utils.Logger

	mu         sync.Mutex
	closed     bool
	submitting sync.WaitGroup

	shutdownOnce sync.Once
	done         chan struct{}
}

// NewExecutor creates an executor. maxWorkers <= 0 means unbounded.
func NewExecutor(maxWorkers int) *Executor {
	p := pool.New()
	if maxWorkers > 0 {
		p = p.WithMaxGoroutines(maxWorkers)
	}
	return &Executor{
		pool: p,
		log:  utils.GetLogger().Component("executor"),
		done: make(chan struct{}),
	}
}

// Submit schedules fn and returns a future for its result. Work submitted
// after Shutdown resolves immediately as canceled. A panic in fn resolves the
// future as an internal failure.
func Submit[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) Result[T]) *Future[T] {
	f := newFuture[T]()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		f.resolve(Failure[T](KindCanceled, ErrExecutorClosed))
		return f
	}
	e.submitting.Add(1)
	e.mu.Unlock()

	e.pool.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("task panicked: %v", r)
				f.resolve(Failure[T](KindInternal, fmt.Errorf("panic: %v", r)))
			}
		}()
		if err := ctx.Err(); err != nil {
			f.resolve(Failure[T](KindCanceled, err))
			return
		}
		f.resolve(fn(ctx))
	})
	e.submitting.Done()
	return f
}

// Shutdown rejects new work and waits for queued and running work to finish,
// or for ctx to expire. Safe to call more than once.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		go func() {
			e.submitting.Wait()
			e.pool.Wait()
			close(e.done)
		}()
	})

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		e.log.Warn("shutdown timed out with work still running")
		return ctx.Err()
	}
}
