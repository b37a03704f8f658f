package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"imanconnect/backend"
	"imanconnect/backend/flatfile"
	"imanconnect/backend/sqlite"
	"imanconnect/internal/async"
	"imanconnect/internal/avatar"
	"imanconnect/internal/backup"
	"imanconnect/internal/config"
	"imanconnect/internal/credentials"
	"imanconnect/internal/dbpool"
	"imanconnect/internal/metrics"
	"imanconnect/internal/notification"
	"imanconnect/internal/prayertimes"
	"imanconnect/internal/quran"
	"imanconnect/internal/reminder"
	"imanconnect/internal/service"
	"imanconnect/internal/shutdown"
	"imanconnect/internal/utils"
	"imanconnect/internal/views"
)

// app is everything one command invocation works with. Cleanups run in
// reverse order of registration when close is called.
type app struct {
	cfg    *Config
	conf   *config.Config
	out    io.Writer
	errOut io.Writer
	render *views.Renderer
	input  *utils.Input
	log    *utils.Logger

	metrics   *metrics.Registry
	pool      *dbpool.Pool
	svc       *service.Service
	notifier  notification.NotificationManager
	prayers   *flatfile.PrayerStore
	quranFile *flatfile.QuranStore
	tasbih    *flatfile.TasbihStore
	sessions  *credentials.Manager
	lifecycle *shutdown.Manager
}

// loadConfig reads the config file and applies the per-invocation overrides.
func loadConfig(cfg *Config) (*config.Config, error) {
	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.DataDir != "" {
		conf.Database.Path = filepath.Join(cfg.DataDir, "imanconnect.db")
		conf.Backup.Dir = filepath.Join(cfg.DataDir, "backups")
		conf.FlatFiles.Dir = cfg.DataDir
		conf.Notification.LogPath = filepath.Join(cfg.DataDir, "notifications.log")
	}
	if cfg.DBPath != "" {
		conf.Database.Path = cfg.DBPath
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = conf.OutputFormat
	}
	return conf, nil
}

// openApp wires the data layer for one invocation.
func openApp(ctx context.Context, cfg *Config, stdout, stderr io.Writer) (*app, error) {
	conf, err := loadConfig(cfg)
	if err != nil {
		return nil, err
	}
	utils.Configure(stderr, conf.Logging.Format)
	utils.SetVerboseMode(cfg.Verbose || conf.Logging.Verbose)

	a := &app{
		cfg:       cfg,
		conf:      conf,
		out:       stdout,
		errOut:    stderr,
		render:    views.NewRenderer(stdout),
		input:     utils.NewInput(cfg.Stdin),
		log:       utils.GetLogger().Component("cli"),
		metrics:   metrics.New(),
		lifecycle: shutdown.NewManager(),
	}

	a.pool, err = dbpool.Open(ctx, dbpool.Config{
		Path:           conf.Database.Path,
		MaxOpenConns:   conf.Database.MaxOpenConns,
		AcquireTimeout: conf.GetAcquireTimeout(),
		BusyTimeout:    time.Duration(conf.Database.BusyTimeoutMs) * time.Millisecond,
	}, dbpool.WithInitializer(sqlite.EnsureSchema), dbpool.WithObserver(a.metrics))
	if err != nil {
		return nil, utils.ErrDatabaseUnavailable(conf.Database.Path, err)
	}
	a.lifecycle.RegisterCleanup("database", a.pool.Shutdown)

	a.notifier, err = notification.NewManager(notification.ConfigFrom(conf.Notification))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("notifications: %w", err)
	}
	a.lifecycle.RegisterCleanup("notifications", func(context.Context) error {
		return a.notifier.Close()
	})

	clock := flatfile.WithClock(cfg.now)
	writes := flatfile.WithWriteObserver(a.metrics)
	a.prayers = flatfile.NewPrayerStore(conf.PrayerFilePath(), clock, writes)
	a.quranFile = flatfile.NewQuranStore(conf.QuranFilePath(), conf.FlatFiles.QuranDailyGoal, clock, writes)
	a.tasbih = flatfile.NewTasbihStore(conf.TasbihFilePath(), clock, writes)

	store := sqlite.New(a.pool, sqlite.WithClock(cfg.now))
	a.svc = service.New(store, async.NewExecutor(conf.Executor.MaxWorkers),
		service.WithPrayerFile(a.prayers),
		service.WithTasbihFile(a.tasbih),
		service.WithNotifier(a.notifier),
		service.WithObserver(a.metrics),
		service.WithBcryptCost(conf.Security.BcryptCost),
		service.WithClock(cfg.now),
	)
	a.lifecycle.RegisterCleanup("service", a.svc.Shutdown)

	opts := []credentials.ManagerOption{credentials.WithClock(cfg.now)}
	if cfg.Keyring != nil {
		opts = append(opts, credentials.WithKeyring(cfg.Keyring))
	}
	if cfg.Getenv != nil {
		opts = append(opts, credentials.WithEnv(cfg.Getenv))
	}
	a.sessions = credentials.NewManager(opts...)

	return a, nil
}

// close runs the registered cleanups, bounded by the backup shutdown timeout.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.conf.GetBackupShutdownTimeout())
	defer cancel()
	a.lifecycle.Shutdown()
	if err := a.lifecycle.Wait(ctx); err != nil {
		a.log.Warn("shutdown: %v", err)
	}
}

func (a *app) json() bool {
	return a.cfg.jsonOutput()
}

func (a *app) done(format string, args ...any) {
	if !a.json() {
		a.render.Success(format, args...)
	}
	resultCode(a.out, a.cfg, ResultActionCompleted)
}

func (a *app) info() {
	resultCode(a.out, a.cfg, ResultInfoOnly)
}

func (a *app) today() time.Time {
	now := a.cfg.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// day resolves a --date value; empty means today.
func (a *app) day(value string) (string, error) {
	if value == "" {
		return backend.FormatDate(a.today()), nil
	}
	t, err := utils.ParseDay(value, a.cfg.now())
	if err != nil {
		return "", err
	}
	return backend.FormatDate(t), nil
}

func (a *app) rotator() (*backup.Rotator, backup.Config, error) {
	bc, err := backup.ConfigFrom(a.conf.Backup)
	if err != nil {
		return nil, bc, err
	}
	r := backup.NewRotator(a.pool, bc,
		backup.WithClock(a.cfg.now),
		backup.WithObserver(a.metrics),
		backup.WithNotifier(a.notifier),
	)
	return r, bc, nil
}

// reminders builds the prayer reminder service for conf's location.
func (a *app) reminders(conf *config.Config) (*reminder.Service, prayertimes.Times, error) {
	times, found := prayertimes.Lookup(conf.Location.Division, conf.Location.City)
	if !found {
		a.log.Warn("no timetable for %s/%s, using %s/%s", conf.Location.Division, conf.Location.City, times.Division, times.City)
	}
	svc, err := reminder.NewService(
		reminder.Config{Enabled: conf.Reminders.Enabled, Intervals: conf.Reminders.Intervals},
		times,
		reminder.WithClock(a.cfg.now),
		reminder.WithNotifier(a.notifier),
	)
	return svc, times, err
}

func (a *app) avatars() *avatar.Store {
	return avatar.NewStore(a.conf.ProfilePicturesDir())
}

func (a *app) quranProvider() (quran.Provider, error) {
	if a.cfg.Quran != nil {
		return a.cfg.Quran, nil
	}
	return quran.ClientFromConfig(a.conf.Quran)
}

// prompt reads a value, unless it was already given or prompts are disabled.
func (a *app) prompt(label, current string, secret bool) (string, error) {
	if current != "" {
		return current, nil
	}
	if a.cfg.NoPrompt {
		return "", fmt.Errorf("%s is required", label)
	}
	var (
		v   string
		err error
	)
	if secret {
		v, err = a.input.Secret(label+": ", a.errOut)
	} else {
		v, err = a.input.Line(label+": ", a.errOut)
	}
	if errors.Is(err, utils.ErrNoInput) {
		return "", fmt.Errorf("%s is required", label)
	}
	return v, err
}

// identity is the logged-in account, and its scholar profile for scholar logins
type identity struct {
	session *credentials.Session
	account *backend.Account
	scholar *backend.Scholar
}

// whoami resolves the current session to stored records.
func (a *app) whoami(ctx context.Context) (*identity, error) {
	s, err := a.sessions.Load(ctx)
	if errors.Is(err, credentials.ErrNoSession) {
		return nil, utils.ErrNotLoggedIn()
	}
	if err != nil {
		return nil, err
	}

	acct, found, err := lookup(ctx, a, a.svc.GetAccountByUsername(ctx, s.Username))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrAccountNotFound(s.Username)
	}
	id := &identity{session: s, account: acct}

	if s.IsScholar() {
		sc, found, err := lookup(ctx, a, a.svc.GetScholarByUsername(ctx, s.Username))
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, utils.ErrScholarNotFound(s.Username)
		}
		id.scholar = sc
	}
	return id, nil
}

// whoamiScholar is whoami for commands only scholars may run.
func (a *app) whoamiScholar(ctx context.Context) (*identity, error) {
	id, err := a.whoami(ctx)
	if err != nil {
		return nil, err
	}
	if id.scholar == nil {
		return nil, utils.WrapWithSuggestion(
			errors.New("this command needs a scholar login"),
			"Log in with 'imanconnect login --scholar'",
		)
	}
	return id, nil
}

// await resolves f. Empty is returned as the zero value.
func await[T any](ctx context.Context, a *app, f *async.Future[T]) (T, error) {
	res := f.Await(ctx)
	if res.Failed() {
		return res.Value, a.explain(res.Kind, res.Err)
	}
	return res.Value, nil
}

// lookup resolves f and reports whether anything was found.
func lookup[T any](ctx context.Context, a *app, f *async.Future[T]) (T, bool, error) {
	res := f.Await(ctx)
	if res.Failed() {
		return res.Value, false, a.explain(res.Kind, res.Err)
	}
	return res.Value, res.IsOK(), nil
}

// explain turns a failed result into the error the user sees.
func (a *app) explain(kind async.ErrorKind, err error) error {
	if kind == async.KindConnection {
		return utils.ErrDatabaseUnavailable(a.conf.Database.Path, err)
	}
	return err
}

// suggestionOf extracts the suggestion from an ErrorWithSuggestion chain.
func suggestionOf(err error) string {
	var s *utils.ErrorWithSuggestion
	if errors.As(err, &s) {
		return s.GetSuggestion()
	}
	return ""
}
