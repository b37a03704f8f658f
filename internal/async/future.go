package async

import (
	"context"
	"sync"
)

// Future is a result that becomes available once its task finishes. It is
// safe for concurrent use and makes no assumption about which goroutine
// consumes it.
type Future[T any] struct {
	once   sync.Once
	done   chan struct{}
	result Result[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved[T any](r Result[T]) *Future[T] {
	f := newFuture[T]()
	f.resolve(r)
	return f
}

// resolve completes the future. Only the first call has an effect.
func (f *Future[T]) resolve(r Result[T]) {
	f.once.Do(func() {
		f.result = r
		close(f.done)
	})
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx ends. When ctx ends
// first the returned result is a canceled failure; the task keeps running.
func (f *Future[T]) Await(ctx context.Context) Result[T] {
	select {
	case <-f.done:
		return f.result
	case <-ctx.Done():
		return Failure[T](KindCanceled, ctx.Err())
	}
}

// Then calls fn with the result on a new goroutine once it is available.
// The returned channel is closed after fn returns.
func (f *Future[T]) Then(fn func(Result[T])) <-chan struct{} {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		<-f.done
		fn(f.result)
	}()
	return finished
}
