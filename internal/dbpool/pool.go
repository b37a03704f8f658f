// Package dbpool owns the pooled connection to the embedded database file.
package dbpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"imanconnect/backend"
	"imanconnect/internal/utils"
)

// Config holds pool settings
type Config struct {
	Path           string
	MaxOpenConns   int
	AcquireTimeout time.Duration
	BusyTimeout    time.Duration
}

// Initializer prepares the schema on the first borrowed connection.
type Initializer func(ctx context.Context, conn *sqlx.Conn) error

// Observer receives pool events. metrics.Registry implements it.
type Observer interface {
	ObserveAcquire(wait time.Duration, err error)
	SetConnectionsInUse(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveAcquire(time.Duration, error) {}
func (nopObserver) SetConnectionsInUse(int)             {}

// Option configures a Pool
type Option func(*Pool)

// WithInitializer runs init on the first Acquire. A run that fails with a
// context error is retried on the next Acquire.
func WithInitializer(init Initializer) Option {
	return func(p *Pool) {
		p.init = init
	}
}

// WithObserver reports acquire latency and in-use counts.
func WithObserver(o Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.observer = o
		}
	}
}

// Pool hands out connections to one SQLite file
type Pool struct {
	db       *sqlx.DB
	cfg      Config
	init     Initializer
	observer Observer
	log      *utils.Logger

	initMu   sync.Mutex
	initDone bool
	initErr  error

	mu       sync.Mutex
	closed   bool
	borrowed sync.WaitGroup
	inUse    atomic.Int64

	shutdownOnce sync.Once
	shutdownErr  error
}

// dsn builds a modernc.org/sqlite DSN whose pragmas apply to every pooled
// connection. Transactions begin IMMEDIATE so a writer waits for the lock at
// BEGIN, under busy_timeout, instead of failing on its first write.
func dsn(cfg Config) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Open creates the pool. The database file and its directory are created if
// missing; an unreachable file yields a *backend.ConnectionError.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Pool, error) {
	if cfg.Path == "" {
		return nil, &backend.ConnectionError{Op: "open", Err: errors.New("database path is empty")}
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 30 * time.Second
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, &backend.ConnectionError{Op: "open", Err: err}
	}

	db, err := sqlx.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, &backend.ConnectionError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &backend.ConnectionError{Op: "open", Err: err}
	}

	p := &Pool{
		db:       db,
		cfg:      cfg,
		observer: nopObserver{},
		log:      utils.GetLogger().Component("dbpool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log.Debug("opened %s (max %d connections)", cfg.Path, cfg.MaxOpenConns)
	return p, nil
}

// Acquire borrows a connection. The first call runs the schema initializer.
// Every successful Acquire must be paired with Release.
func (p *Pool) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &backend.ConnectionError{Op: "acquire", Err: backend.ErrPoolClosed}
	}
	p.borrowed.Add(1)
	p.mu.Unlock()

	conn, err := p.acquire(ctx)
	if err != nil {
		p.borrowed.Done()
		return nil, err
	}
	p.observer.SetConnectionsInUse(int(p.inUse.Add(1)))
	return conn, nil
}

func (p *Pool) acquire(ctx context.Context) (*sqlx.Conn, error) {
	started := time.Now()
	actx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	conn, err := p.db.Connx(actx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = backend.ErrPoolExhausted
		}
		err = &backend.ConnectionError{Op: "acquire", Err: err}
		p.observer.ObserveAcquire(time.Since(started), err)
		return nil, err
	}
	p.observer.ObserveAcquire(time.Since(started), nil)

	// Schema failures are logged and kept for SchemaErr; the connection is
	// still handed out so tables that did get created remain usable.
	if p.init != nil {
		p.runInit(ctx, conn)
	}
	return conn, nil
}

// runInit runs the initializer until it has completed once. It is detached
// from the caller's cancellation, and a run that still ends in a context error
// is retried by the next Acquire.
func (p *Pool) runInit(ctx context.Context, conn *sqlx.Conn) {
	p.initMu.Lock()
	defer p.initMu.Unlock()
	if p.initDone {
		return
	}

	err := p.init(context.WithoutCancel(ctx), conn)
	if err != nil {
		p.log.Error("schema setup reported errors: %v", err)
	}
	p.initDone = !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)

	p.mu.Lock()
	p.initErr = err
	p.mu.Unlock()
}

// SchemaErr returns the error reported by the initializer, if it has run and failed.
func (p *Pool) SchemaErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initErr
}

// Release returns a borrowed connection to the pool.
func (p *Pool) Release(conn *sqlx.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		p.log.Warn("release connection: %v", err)
	}
	p.observer.SetConnectionsInUse(int(p.inUse.Add(-1)))
	p.borrowed.Done()
}

// WithConn borrows a connection for the duration of fn and always releases it.
func (p *Pool) WithConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn)
}

// WithTx runs fn inside a transaction on a borrowed connection. The
// transaction commits when fn returns nil and rolls back otherwise, including
// when fn panics.
func (p *Pool) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return p.WithConn(ctx, func(conn *sqlx.Conn) (err error) {
		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r)
			}
			if err != nil {
				if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
					p.log.Warn("rollback: %v", rbErr)
				}
			}
		}()
		if err = fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Shutdown stops new acquisitions, waits for borrowed connections within ctx
// and closes the database. Safe to call more than once.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		drained := make(chan struct{})
		go func() {
			p.borrowed.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-ctx.Done():
			p.log.Warn("closing with %d connections still borrowed", p.inUse.Load())
		}
		p.shutdownErr = p.db.Close()
		p.log.Debug("closed %s", p.cfg.Path)
	})
	return p.shutdownErr
}

// Stats reports pool usage
type Stats struct {
	MaxOpen  int
	Open     int
	InUse    int
	Idle     int
	Waits    int64
	Borrowed int64
}

// Stats returns a snapshot of pool usage.
func (p *Pool) Stats() Stats {
	s := p.db.Stats()
	return Stats{
		MaxOpen:  s.MaxOpenConnections,
		Open:     s.OpenConnections,
		InUse:    s.InUse,
		Idle:     s.Idle,
		Waits:    s.WaitCount,
		Borrowed: p.inUse.Load(),
	}
}

// Path returns the database file path.
func (p *Pool) Path() string {
	return p.cfg.Path
}

// DB exposes the underlying handle for whole-database maintenance such as backups.
func (p *Pool) DB() *sqlx.DB {
	return p.db
}
