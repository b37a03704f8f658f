package backup

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs Rotator.BackupNow once after the initial delay and then on
// every interval until stopped.
type Scheduler struct {
	r            *Rotator
	initialDelay time.Duration
	interval     time.Duration

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewScheduler schedules backups with r using cfg's delay and interval.
func NewScheduler(r *Rotator, cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		r:            r,
		initialDelay: cfg.InitialDelay,
		interval:     cfg.Interval,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the schedule. Later calls are no-ops. Cancelling ctx aborts a
// running backup and ends the schedule.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.loop(runCtx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			// errors are logged, observed and notified by the rotator
			_, _ = s.r.BackupNow(ctx)
			timer.Reset(s.interval)
		}
	}
}

// Stop ends the schedule. A backup already running gets until ctx is done to
// finish; after that it is cancelled and ctx's error is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}

	s.stopOnce.Do(func() { close(s.stop) })
	defer s.cancel()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-s.done
		return ctx.Err()
	}
}
