package backup_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imanconnect/internal/backup"
	"imanconnect/internal/config"
	"imanconnect/internal/dbpool"
	"imanconnect/internal/notification"
)

// stepClock returns start, then start+step, start+2*step and so on
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func newStepClock(start time.Time, step time.Duration) *stepClock {
	return &stepClock{next: start, step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

type recordingObserver struct {
	mu     sync.Mutex
	runs   int
	errs   int
	counts []int
}

func (o *recordingObserver) ObserveBackup(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	if err != nil {
		o.errs++
	}
}

func (o *recordingObserver) SetBackupCount(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts = append(o.counts, n)
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notification.Notification
}

func (n *recordingNotifier) SendAsync(note notification.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, note)
}

func (n *recordingNotifier) types() []notification.NotificationType {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.NotificationType
	for _, note := range n.got {
		out = append(out, note.Type)
	}
	return out
}

// mustOpenSource opens a pooled database with one row of data in it
func mustOpenSource(t *testing.T) *dbpool.Pool {
	t.Helper()
	p, err := dbpool.Open(context.Background(), dbpool.Config{
		Path:           filepath.Join(t.TempDir(), "iman.db"),
		MaxOpenConns:   2,
		AcquireTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	err = p.WithConn(context.Background(), func(conn *sqlx.Conn) error {
		if _, err := conn.ExecContext(context.Background(), `CREATE TABLE notes (body TEXT)`); err != nil {
			return err
		}
		_, err := conn.ExecContext(context.Background(), `INSERT INTO notes (body) VALUES ('bismillah')`)
		return err
	})
	require.NoError(t, err)
	return p
}

// blockingSource never finishes a backup until its context ends
type blockingSource struct {
	path    string
	started chan struct{}
	once    sync.Once
}

func (s *blockingSource) Path() string { return s.path }

func (s *blockingSource) WithConn(ctx context.Context, _ func(*sqlx.Conn) error) error {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	return ctx.Err()
}

type failingSource struct{ path string }

func (s failingSource) Path() string { return s.path }

func (s failingSource) WithConn(context.Context, func(*sqlx.Conn) error) error {
	return errors.New("pool exhausted")
}

var start = time.Date(2026, 3, 15, 2, 0, 0, 0, time.Local)

// =============================================================================
// Rotator
// =============================================================================

func TestBackupNowWritesVerifiedCopy(t *testing.T) {
	src := mustOpenSource(t)
	dir := filepath.Join(t.TempDir(), "backups")
	r := backup.NewRotator(src, backup.Config{Dir: dir}, backup.WithClock(newStepClock(start, time.Hour).Now))

	info, err := r.BackupNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "backup_20260315_020000_iman.db", info.Name)
	assert.Equal(t, filepath.Join(dir, info.Name), info.Path)
	assert.True(t, info.ModTime.Equal(start), "mod time %v, want %v", info.ModTime, start)
	assert.Positive(t, info.Size)

	copyDB, err := sqlx.Open("sqlite", info.Path)
	require.NoError(t, err)
	defer func() { _ = copyDB.Close() }()
	var body string
	require.NoError(t, copyDB.Get(&body, `SELECT body FROM notes`))
	assert.Equal(t, "bismillah", body)
}

// TestRetentionKeepsNewest writes more backups than the retention allows and
// expects exactly the newest five to remain
func TestRetentionKeepsNewest(t *testing.T) {
	src := mustOpenSource(t)
	obs := &recordingObserver{}
	r := backup.NewRotator(src, backup.Config{Dir: filepath.Join(t.TempDir(), "backups")},
		backup.WithClock(newStepClock(start, 24*time.Hour).Now),
		backup.WithObserver(obs),
	)

	for i := 0; i < 7; i++ {
		_, err := r.BackupNow(context.Background())
		require.NoError(t, err)
	}

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, backup.DefaultRetention)

	want := []string{
		"backup_20260321_020000_iman.db",
		"backup_20260320_020000_iman.db",
		"backup_20260319_020000_iman.db",
		"backup_20260318_020000_iman.db",
		"backup_20260317_020000_iman.db",
	}
	for i, b := range list {
		assert.Equal(t, want[i], b.Name)
	}

	assert.Equal(t, 7, obs.runs)
	assert.Zero(t, obs.errs)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 5, 5}, obs.counts)
}

func TestRetentionOrdersByModTimeNotName(t *testing.T) {
	src := mustOpenSource(t)
	dir := filepath.Join(t.TempDir(), "backups")
	r := backup.NewRotator(src, backup.Config{Dir: dir, Retention: 2},
		backup.WithClock(newStepClock(start, time.Hour).Now))

	// a stray backup whose name sorts last but whose file is oldest
	require.NoError(t, os.MkdirAll(dir, 0755))
	stray := filepath.Join(dir, "backup_99991231_000000_iman.db")
	require.NoError(t, os.WriteFile(stray, []byte("old"), 0644))
	old := start.Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stray, old, old))

	for i := 0; i < 2; i++ {
		_, err := r.BackupNow(context.Background())
		require.NoError(t, err)
	}

	_, err := os.Stat(stray)
	assert.True(t, errors.Is(err, os.ErrNotExist), "expected the oldest file to be pruned")
	list, err := r.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSameSecondBackupsGetDistinctNames(t *testing.T) {
	src := mustOpenSource(t)
	r := backup.NewRotator(src, backup.Config{Dir: filepath.Join(t.TempDir(), "backups")},
		backup.WithClock(func() time.Time { return start }))

	first, err := r.BackupNow(context.Background())
	require.NoError(t, err)
	second, err := r.BackupNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "backup_20260315_020000_iman.db", first.Name)
	assert.Equal(t, "backup_20260315_020000-2_iman.db", second.Name)
}

func TestBackupFailureNotifies(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	obs := &recordingObserver{}
	notes := &recordingNotifier{}
	r := backup.NewRotator(failingSource{path: filepath.Join(t.TempDir(), "iman.db")}, backup.Config{Dir: dir},
		backup.WithObserver(obs), backup.WithNotifier(notes))

	_, err := r.BackupNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool exhausted")

	assert.Equal(t, 1, obs.errs)
	assert.Equal(t, []notification.NotificationType{notification.NotifyBackupFailed}, notes.types())

	list, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, list, "a failed backup must not leave a file behind")
}

func TestBackupSuccessNotifies(t *testing.T) {
	notes := &recordingNotifier{}
	r := backup.NewRotator(mustOpenSource(t), backup.Config{Dir: filepath.Join(t.TempDir(), "backups")},
		backup.WithNotifier(notes))

	_, err := r.BackupNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []notification.NotificationType{notification.NotifyBackupCompleted}, notes.types())
}

func TestListIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	r := backup.NewRotator(failingSource{path: "/data/iman.db"}, backup.Config{Dir: dir})

	for _, name := range []string{"notes.txt", "backup_20260101_000000_other.db", "backup_20260101_000000_iman.db"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "backup_dir_iman.db"), 0755))

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "backup_20260101_000000_iman.db", list[0].Name)
}

func TestListMissingDir(t *testing.T) {
	r := backup.NewRotator(failingSource{path: "/data/iman.db"}, backup.Config{Dir: filepath.Join(t.TempDir(), "none")})
	list, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDefaultDirNextToDatabase(t *testing.T) {
	r := backup.NewRotator(failingSource{path: "/data/iman.db"}, backup.Config{})
	assert.Equal(t, filepath.Join("/data", "backups"), r.Dir())
	assert.Equal(t, backup.DefaultRetention, r.Retention())
}

func TestVerifyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_20260101_000000_iman.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database file at all, not even close"), 0644))
	assert.Error(t, backup.Verify(context.Background(), path))
}

func TestVerifyMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_20260101_000000_typo.db")

	err := backup.Verify(context.Background(), path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "verify must not create the file")
}

func TestVerifyRejectsDirectory(t *testing.T) {
	assert.Error(t, backup.Verify(context.Background(), t.TempDir()))
}

func TestConfigFrom(t *testing.T) {
	cfg, err := backup.ConfigFrom(config.DefaultConfig().Backup)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Interval)
	assert.Equal(t, time.Hour, cfg.InitialDelay)
	assert.Equal(t, 5, cfg.Retention)

	_, err = backup.ConfigFrom(config.BackupConfig{Interval: "daily", InitialDelay: "1h"})
	assert.Error(t, err)
}

// =============================================================================
// Scheduler
// =============================================================================

func TestSchedulerRunsAfterDelayThenOnInterval(t *testing.T) {
	cfg := backup.Config{
		Dir:          filepath.Join(t.TempDir(), "backups"),
		InitialDelay: 5 * time.Millisecond,
		Interval:     10 * time.Millisecond,
	}
	r := backup.NewRotator(mustOpenSource(t), cfg, backup.WithClock(newStepClock(start, time.Hour).Now))
	s := backup.NewScheduler(r, cfg)
	s.Start(context.Background())
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		list, err := r.List()
		return err == nil && len(list) >= 2
	}, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestSchedulerStopBeforeStart(t *testing.T) {
	r := backup.NewRotator(failingSource{path: "/data/iman.db"}, backup.Config{})
	s := backup.NewScheduler(r, backup.Config{})
	assert.NoError(t, s.Stop(context.Background()))
}

// TestSchedulerStopCancelsRunningBackup checks that Stop waits only as long as
// its context allows before cancelling an in-flight backup
func TestSchedulerStopCancelsRunningBackup(t *testing.T) {
	src := &blockingSource{path: filepath.Join(t.TempDir(), "iman.db"), started: make(chan struct{})}
	notes := &recordingNotifier{}
	cfg := backup.Config{Dir: filepath.Join(t.TempDir(), "backups"), InitialDelay: time.Millisecond}
	r := backup.NewRotator(src, cfg, backup.WithNotifier(notes))
	s := backup.NewScheduler(r, cfg)
	s.Start(context.Background())

	select {
	case <-src.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled backup never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	began := time.Now()
	err := s.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(began), 5*time.Second)
	assert.Equal(t, []notification.NotificationType{notification.NotifyBackupFailed}, notes.types())
}
