package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNewExecutor(t *testing.T, maxWorkers int) *Executor {
	t.Helper()
	e := NewExecutor(maxWorkers)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	return e
}

// TestResultConstructors verifies status and kind of each constructor
func TestResultConstructors(t *testing.T) {
	ok := OK(42)
	assert.True(t, ok.IsOK())
	assert.Equal(t, 42, ok.Value)
	assert.Equal(t, KindNone, ok.Kind)

	empty := Empty[string]()
	assert.True(t, empty.IsEmpty())
	assert.NoError(t, empty.Err)

	failed := Failure[int](KindConflict, errors.New("taken"))
	assert.True(t, failed.Failed())
	assert.Equal(t, KindConflict, failed.Kind)
	assert.Contains(t, failed.String(), "conflict")

	bare := Failure[int](KindNone, nil)
	assert.Equal(t, KindInternal, bare.Kind)
	assert.Error(t, bare.Err)
}

// TestSubmitRunsOffCallerGoroutine verifies the caller is not blocked by the task
func TestSubmitRunsOffCallerGoroutine(t *testing.T) {
	e := mustNewExecutor(t, 0)
	release := make(chan struct{})

	f := Submit(context.Background(), e, func(ctx context.Context) Result[string] {
		<-release
		return OK("done")
	})

	select {
	case <-f.Done():
		t.Fatal("future completed before the task was released")
	default:
	}
	close(release)

	r := f.Await(context.Background())
	require.True(t, r.IsOK())
	assert.Equal(t, "done", r.Value)
}

// TestAwaitCanceled verifies Await honours its own context
func TestAwaitCanceled(t *testing.T) {
	e := mustNewExecutor(t, 0)
	release := make(chan struct{})
	defer close(release)

	f := Submit(context.Background(), e, func(ctx context.Context) Result[int] {
		<-release
		return OK(1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r := f.Await(ctx)
	assert.True(t, r.Failed())
	assert.Equal(t, KindCanceled, r.Kind)
}

// TestSubmitCanceledContext verifies work whose context is already done never runs
func TestSubmitCanceledContext(t *testing.T) {
	e := mustNewExecutor(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	r := Submit(ctx, e, func(context.Context) Result[int] {
		ran.Store(true)
		return OK(1)
	}).Await(context.Background())

	assert.Equal(t, KindCanceled, r.Kind)
	assert.False(t, ran.Load())
}

// TestSubmitPanic verifies a panicking task resolves as an internal failure
func TestSubmitPanic(t *testing.T) {
	e := mustNewExecutor(t, 0)

	r := Submit(context.Background(), e, func(context.Context) Result[int] {
		panic("boom")
	}).Await(context.Background())

	assert.True(t, r.Failed())
	assert.Equal(t, KindInternal, r.Kind)
	assert.Contains(t, r.Err.Error(), "boom")
}

// TestMaxWorkers verifies the worker bound is respected
func TestMaxWorkers(t *testing.T) {
	e := mustNewExecutor(t, 2)
	var running, peak atomic.Int32

	futures := make([]*Future[int], 0, 6)
	for i := 0; i < 6; i++ {
		futures = append(futures, Submit(context.Background(), e, func(context.Context) Result[int] {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return OK(int(n))
		}))
	}
	for _, f := range futures {
		require.True(t, f.Await(context.Background()).IsOK())
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

// TestShutdownDrainsAndRejects verifies queued work finishes and new work is refused
func TestShutdownDrainsAndRejects(t *testing.T) {
	e := NewExecutor(0)
	var finished atomic.Int32

	var futures []*Future[bool]
	for i := 0; i < 5; i++ {
		futures = append(futures, Submit(context.Background(), e, func(context.Context) Result[bool] {
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
			return OK(true)
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(ctx))
	assert.Equal(t, int32(5), finished.Load())
	for _, f := range futures {
		assert.True(t, f.Await(ctx).IsOK())
	}

	late := Submit(context.Background(), e, func(context.Context) Result[bool] { return OK(true) }).Await(ctx)
	assert.Equal(t, KindCanceled, late.Kind)
	assert.ErrorIs(t, late.Err, ErrExecutorClosed)

	assert.NoError(t, e.Shutdown(ctx), "second Shutdown")
}

// TestShutdownBounded verifies Shutdown returns when its context expires
func TestShutdownBounded(t *testing.T) {
	e := NewExecutor(0)
	release := make(chan struct{})
	Submit(context.Background(), e, func(context.Context) Result[int] {
		<-release
		return OK(1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, e.Shutdown(context.Background()))
}

// TestThen verifies callbacks receive the result
func TestThen(t *testing.T) {
	f := Resolved(OK("salaam"))

	var mu sync.Mutex
	var got string
	<-f.Then(func(r Result[string]) {
		mu.Lock()
		defer mu.Unlock()
		got = r.Value
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "salaam", got)
}
