// Package backup takes verified copies of the live database and keeps only the
// newest few.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"imanconnect/internal/config"
	"imanconnect/internal/notification"
	"imanconnect/internal/utils"
)

const (
	// DefaultRetention is how many backups are kept when Config.Retention is unset.
	DefaultRetention = 5
	// DefaultInterval is the time between scheduled backups.
	DefaultInterval = 24 * time.Hour
	// DefaultInitialDelay is the wait before the first scheduled backup.
	DefaultInitialDelay = time.Hour

	namePrefix  = "backup_"
	stampLayout = "20060102_150405"
)

// Config holds rotation and scheduling settings
type Config struct {
	Dir          string
	Retention    int
	Interval     time.Duration
	InitialDelay time.Duration
}

// ConfigFrom converts the application's backup section, parsing its durations.
func ConfigFrom(c config.BackupConfig) (Config, error) {
	interval, err := time.ParseDuration(c.Interval)
	if err != nil {
		return Config{}, fmt.Errorf("backup interval %q: %w", c.Interval, err)
	}
	delay, err := time.ParseDuration(c.InitialDelay)
	if err != nil {
		return Config{}, fmt.Errorf("backup initial delay %q: %w", c.InitialDelay, err)
	}
	return Config{Dir: c.Dir, Retention: c.Retention, Interval: interval, InitialDelay: delay}, nil
}

func (c Config) withDefaults() Config {
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	return c
}

// Source is the live database being backed up. *dbpool.Pool satisfies it.
type Source interface {
	Path() string
	WithConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error
}

// Observer receives backup outcomes, typically the metrics registry.
type Observer interface {
	ObserveBackup(elapsed time.Duration, err error)
	SetBackupCount(n int)
}

// Notifier receives backup notifications. NotificationManager satisfies it.
type Notifier interface {
	SendAsync(n notification.Notification)
}

// Info describes one backup file
type Info struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Option configures a Rotator
type Option func(*Rotator)

// WithClock sets the clock that names and stamps backups.
func WithClock(now func() time.Time) Option {
	return func(r *Rotator) { r.now = now }
}

// WithObserver reports every backup attempt to o.
func WithObserver(o Observer) Option {
	return func(r *Rotator) { r.observer = o }
}

// WithNotifier sends a notification after every backup attempt.
func WithNotifier(n Notifier) Option {
	return func(r *Rotator) { r.notifier = n }
}

// Rotator takes backups of a Source into Config.Dir
type Rotator struct {
	src      Source
	cfg      Config
	now      func() time.Time
	observer Observer
	notifier Notifier
	log      *utils.Logger

	// mu serialises backups so manual and scheduled runs never overlap.
	mu sync.Mutex
}

// NewRotator creates a rotator for src.
func NewRotator(src Source, cfg Config, opts ...Option) *Rotator {
	r := &Rotator{
		src: src,
		cfg: cfg.withDefaults(),
		now: time.Now,
		log: utils.GetLogger().Component("backup"),
	}
	if r.cfg.Dir == "" {
		r.cfg.Dir = filepath.Join(filepath.Dir(src.Path()), "backups")
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the backup directory.
func (r *Rotator) Dir() string { return r.cfg.Dir }

// Retention returns how many backups are kept.
func (r *Rotator) Retention() int { return r.cfg.Retention }

// BackupNow writes a verified backup, stamps it with the backup time and
// prunes everything but the newest Retention backups.
func (r *Rotator) BackupNow(ctx context.Context) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	info, kept, err := r.backup(ctx)
	if r.observer != nil {
		r.observer.ObserveBackup(time.Since(started), err)
		if kept >= 0 {
			r.observer.SetBackupCount(kept)
		}
	}
	r.notify(info, kept, err)
	if err != nil {
		r.log.Error("backup failed: %v", err)
		return Info{}, err
	}
	r.log.Info("backup written to %s (%d kept)", info.Path, kept)
	return info, nil
}

func (r *Rotator) backup(ctx context.Context) (Info, int, error) {
	at := r.now()
	if err := os.MkdirAll(r.cfg.Dir, 0755); err != nil {
		return Info{}, -1, fmt.Errorf("create backup directory: %w", err)
	}
	path, err := r.nextPath(at)
	if err != nil {
		return Info{}, -1, err
	}

	err = r.src.WithConn(ctx, func(conn *sqlx.Conn) error {
		_, err := conn.ExecContext(ctx, "VACUUM INTO ?", path)
		return err
	})
	if err != nil {
		_ = os.Remove(path)
		return Info{}, -1, fmt.Errorf("vacuum into %s: %w", path, err)
	}
	if err := Verify(ctx, path); err != nil {
		_ = os.Remove(path)
		return Info{}, -1, err
	}
	if err := os.Chtimes(path, at, at); err != nil {
		return Info{}, -1, fmt.Errorf("stamp %s: %w", path, err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return Info{}, -1, err
	}
	info := Info{Name: st.Name(), Path: path, Size: st.Size(), ModTime: st.ModTime()}

	kept, err := r.prune()
	if err != nil {
		return info, kept, fmt.Errorf("prune old backups: %w", err)
	}
	return info, kept, nil
}

// nextPath names a backup backup_YYYYMMDD_HHMMSS_<dbfile>, adding a counter
// when a backup with that name already exists.
func (r *Rotator) nextPath(at time.Time) (string, error) {
	base := filepath.Base(r.src.Path())
	stamp := at.Format(stampLayout)
	for i := 1; i < 100; i++ {
		name := namePrefix + stamp + "_" + base
		if i > 1 {
			name = fmt.Sprintf("%s%s-%d_%s", namePrefix, stamp, i, base)
		}
		path := filepath.Join(r.cfg.Dir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
	}
	return "", fmt.Errorf("no free backup name for %s", stamp)
}

// List returns the backups of this database, newest first.
func (r *Rotator) List() ([]Info, error) {
	entries, err := os.ReadDir(r.cfg.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	suffix := "_" + filepath.Base(r.src.Path())
	var out []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			Name:    name,
			Path:    filepath.Join(r.cfg.Dir, name),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// prune deletes all but the newest Retention backups and returns how many remain.
func (r *Rotator) prune() (int, error) {
	list, err := r.List()
	if err != nil {
		return -1, err
	}
	if len(list) <= r.cfg.Retention {
		return len(list), nil
	}

	var errs []error
	kept := r.cfg.Retention
	for _, old := range list[r.cfg.Retention:] {
		if err := os.Remove(old.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			kept++
			continue
		}
		r.log.Debug("removed old backup %s", old.Name)
	}
	return kept, errors.Join(errs...)
}

func (r *Rotator) notify(info Info, kept int, err error) {
	if r.notifier == nil {
		return
	}
	if err != nil {
		r.notifier.SendAsync(notification.Notification{
			Type:    notification.NotifyBackupFailed,
			Title:   "Backup failed",
			Message: err.Error(),
		})
		return
	}
	r.notifier.SendAsync(notification.Notification{
		Type:     notification.NotifyBackupCompleted,
		Title:    "Backup completed",
		Message:  fmt.Sprintf("Saved %s (%d kept)", info.Name, kept),
		Metadata: map[string]string{"path": info.Path},
	})
}

// Verify runs PRAGMA integrity_check against an existing backup file. The
// file must already exist and the connection is query-only.
func Verify(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("verify %s: is a directory", path)
	}
	db, err := sqlx.Open("sqlite", "file:"+path+"?_pragma=query_only(1)")
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.GetContext(ctx, &result, "PRAGMA integrity_check"); err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if result != "ok" {
		return fmt.Errorf("verify %s: integrity check reported %s", path, result)
	}
	return nil
}
