// Package shutdown coordinates process shutdown: signal handling, cleanup
// registration and a bounded wait for the cleanups to finish.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"imanconnect/internal/utils"
)

// CleanupFunc performs cleanup on shutdown. ctx expires when the shutdown
// wait times out.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager handles graceful shutdown coordination.
type Manager struct {
	mu         sync.Mutex
	cleanups   []cleanupEntry
	shutdown   bool
	shutdownCh chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	log        *utils.Logger

	runOnce sync.Once
	runDone chan struct{}
	runErr  error
}

// NewManager creates a new shutdown manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		log:        utils.GetLogger().Component("shutdown"),
		runDone:    make(chan struct{}),
	}
}

// RegisterCleanup registers a cleanup. Cleanups run in LIFO order, so a
// component registered after its dependencies is torn down before them.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// Shutdown marks the manager as shutting down and cancels Context. Safe to
// call multiple times.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()

		m.cancel()
		close(m.shutdownCh)
	})
}

// NotifyOnSignals calls Shutdown on the first SIGINT or SIGTERM. The returned
// function stops listening.
func (m *Manager) NotifyOnSignals() (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-sigs:
			m.log.Info("received %s, shutting down", sig)
			m.Shutdown()
		case <-quit:
		}
	}()
	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(sigs)
			close(quit)
		})
	}
}

// Done is closed once shutdown has been initiated.
func (m *Manager) Done() <-chan struct{} {
	return m.shutdownCh
}

func (m *Manager) runCleanups(ctx context.Context) {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		c := cleanups[i]
		started := time.Now()
		if err := c.fn(ctx); err != nil {
			m.log.Warn("cleanup %s failed: %v", c.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		m.log.Debug("cleanup %s done in %s", c.name, time.Since(started))
	}
	m.runErr = errors.Join(errs...)
}

// Wait runs the cleanups once and waits for them within ctx. It returns the
// joined cleanup errors, or ctx.Err() when the wait times out.
func (m *Manager) Wait(ctx context.Context) error {
	m.runOnce.Do(func() {
		go func() {
			m.runCleanups(ctx)
			close(m.runDone)
		}()
	})

	select {
	case <-m.runDone:
		return m.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown returns true if shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Context returns a context that is cancelled when shutdown is initiated.
func (m *Manager) Context() context.Context {
	return m.ctx
}
