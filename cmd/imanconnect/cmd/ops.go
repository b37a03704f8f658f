package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"imanconnect/backend"
	"imanconnect/backend/flatfile"
	"imanconnect/internal/backup"
	"imanconnect/internal/config"
	"imanconnect/internal/metrics"
	"imanconnect/internal/notification"
	"imanconnect/internal/prayertimes"
	"imanconnect/internal/reminder"
	"imanconnect/internal/views"
	"imanconnect/internal/watcher"
)

type backupView struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified"`
}

func viewBackup(i backup.Info) backupView {
	return backupView{Name: i.Name, Path: i.Path, Size: i.Size, ModTime: i.ModTime}
}

// newBackupCmd groups the database backup commands
func newBackupCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return groupCmd("backup", "Database backups",
		newBackupNowCmd(stdout, stderr, cfg),
		newBackupListCmd(stdout, stderr, cfg),
		newBackupVerifyCmd(stdout, stderr, cfg),
	)
}

func newBackupNowCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Write a backup now and prune old ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			r, _, err := a.rotator()
			if err != nil {
				return err
			}
			info, err := r.BackupNow(ctx)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			if a.json() {
				return writeJSON(stdout, viewBackup(info))
			}
			a.done("Backup written to %s (%d bytes)", info.Path, info.Size)
			return nil
		},
	}
}

func newBackupListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List retained backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			r, _, err := a.rotator()
			if err != nil {
				return err
			}
			infos, err := r.List()
			if err != nil {
				return err
			}
			if a.json() {
				out := make([]backupView, len(infos))
				for i, info := range infos {
					out[i] = viewBackup(info)
				}
				return writeJSON(stdout, out)
			}
			t := views.Table{
				Title: fmt.Sprintf("Backups in %s (keeping %d)", r.Dir(), r.Retention()),
				Columns: []views.Column{
					{Title: "Name"}, {Title: "Size", Align: "right"}, {Title: "Written"},
				},
				Empty: "No backups yet",
			}
			for _, info := range infos {
				t.Rows = append(t.Rows, []string{
					info.Name, fmt.Sprintf("%d", info.Size), info.ModTime.Local().Format("2006-01-02 15:04"),
				})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
}

func newBackupVerifyCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <path>",
		Short: "Check that a backup file opens and passes an integrity check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			if err := backup.Verify(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("backup %s is not usable: %w", args[0], err)
			}
			if a.json() {
				return writeJSON(stdout, map[string]any{"path": args[0], "ok": true})
			}
			a.done("%s is a valid backup", args[0])
			return nil
		},
	}
}

// newNotificationCmd groups the notification log commands
func newNotificationCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return groupCmd("notification", "Notification log",
		newNotificationTestCmd(stdout, stderr, cfg),
		newNotificationLogCmd(stdout, stderr, cfg),
	)
}

func newNotificationTestCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test notification through every enabled channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			n := notification.Notification{
				ID:        uuid.NewString(),
				Type:      notification.NotifyTest,
				Title:     "ImanConnect",
				Message:   "Test notification",
				Timestamp: a.cfg.now(),
			}
			if err := a.notifier.Send(n); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			if a.json() {
				return writeJSON(stdout, map[string]any{"id": n.ID, "channels": a.notifier.ChannelCount()})
			}
			a.done("Test notification sent to %d channel(s)", a.notifier.ChannelCount())
			return nil
		},
	}
}

func newNotificationLogCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show or clear the notification log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			path := conf.Notification.LogPath
			render := views.NewRenderer(stdout)

			if clear {
				if err := notification.ClearLog(path); err != nil {
					return err
				}
				if !cfg.jsonOutput() {
					render.Success("Notification log cleared")
				}
				resultCode(stdout, cfg, ResultActionCompleted)
				return nil
			}

			entries, err := notification.ReadLog(path)
			if err != nil {
				return err
			}
			if cfg.jsonOutput() {
				if entries == nil {
					entries = []string{}
				}
				return writeJSON(stdout, entries)
			}
			if len(entries) == 0 {
				render.Message("No notifications logged")
			}
			for _, e := range entries {
				render.Message("%s", e)
			}
			resultCode(stdout, cfg, ResultInfoOnly)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "Truncate the log")
	return cmd
}

// newServeCmd runs the long-lived parts: the backup schedule and /metrics.
func newServeCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var runFor time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled backups, prayer reminders and the metrics endpoint until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			stop := a.lifecycle.NotifyOnSignals()
			defer stop()
			ctx := a.lifecycle.Context()

			if a.conf.Backup.Enabled {
				r, bc, err := a.rotator()
				if err != nil {
					return err
				}
				sched := backup.NewScheduler(r, bc)
				sched.Start(ctx)
				a.lifecycle.RegisterCleanup("backup scheduler", sched.Stop)
				a.log.Info("backups every %s into %s, keeping %d", bc.Interval, r.Dir(), r.Retention())
			}

			rem := &reminderRunner{a: a, parent: ctx}
			if err := rem.start(a.conf); err != nil {
				return err
			}
			a.lifecycle.RegisterCleanup("prayer reminders", func(context.Context) error {
				rem.stop()
				return nil
			})

			w, err := watcher.New(watcher.Config{
				Files: []string{config.ResolvePath(cfg.ConfigPath)},
				OnChange: func() {
					conf, err := loadConfig(cfg)
					if err != nil {
						a.log.Warn("config changed but did not load: %v", err)
						return
					}
					a.log.Info("config changed, reloading reminders")
					if err := rem.start(conf); err != nil {
						a.log.Warn("reminders not restarted: %v", err)
					}
				},
				OnError: func(err error) { a.log.Warn("config watcher: %v", err) },
			})
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				a.log.Warn("not watching config: %v", err)
			}
			defer w.Stop()

			metricsErr := make(chan error, 1)
			if a.conf.Metrics.Enabled {
				go func() { metricsErr <- metrics.Serve(ctx, a.conf.Metrics.Addr, a.metrics) }()
				a.log.Info("metrics on http://%s/metrics", a.conf.Metrics.Addr)
			}

			var deadline <-chan time.Time
			if runFor > 0 {
				timer := time.NewTimer(runFor)
				defer timer.Stop()
				deadline = timer.C
			}

			if !a.json() {
				a.render.Message("ImanConnect is running. Press Ctrl+C to stop.")
			}
			select {
			case <-a.lifecycle.Done():
			case <-deadline:
			case err := <-metricsErr:
				if err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("metrics server: %w", err)
				}
			}
			a.done("Stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&runFor, "for", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}

// reminderRunner runs at most one reminder service at a time under parent.
type reminderRunner struct {
	a      *app
	parent context.Context

	mu     sync.Mutex
	cancel context.CancelFunc
}

// start replaces the running service with one built from conf. A config with
// reminders disabled just stops the current one.
func (r *reminderRunner) start(conf *config.Config) error {
	var svc *reminder.Service
	if conf.Reminders.Enabled {
		var err error
		if svc, _, err = r.a.reminders(conf); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if svc == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(r.parent)
	r.cancel = cancel
	every := conf.GetReminderCheckEvery()
	go svc.Run(ctx, every)
	r.a.log.Info("prayer reminders checked every %s", every)
	return nil
}

func (r *reminderRunner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

type reminderView struct {
	Prayer   string `json:"prayer"`
	Interval string `json:"interval"`
	PrayerAt string `json:"prayer_at"`
	FireAt   string `json:"fire_at"`
}

func viewReminders(ds []reminder.Due) []reminderView {
	out := make([]reminderView, len(ds))
	for i, d := range ds {
		out[i] = reminderView{
			Prayer:   d.Prayer,
			Interval: d.Interval,
			PrayerAt: d.PrayerAt.Format("2006-01-02 15:04"),
			FireAt:   d.FireAt.Format("2006-01-02 15:04"),
		}
	}
	return out
}

// newReminderCmd groups the prayer reminder commands
func newReminderCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return groupCmd("reminder", "Prayer time reminders",
		newReminderCheckCmd(stdout, stderr, cfg),
		newReminderUpcomingCmd(stdout, stderr, cfg),
	)
}

func newReminderCheckCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Send the reminders that are due now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.conf.Reminders.Enabled {
				return errors.New("reminders are disabled; set reminders.enabled in the config")
			}
			svc, _, err := a.reminders(a.conf)
			if err != nil {
				return err
			}
			fired := svc.CheckReminders()
			if a.json() {
				return writeJSON(stdout, viewReminders(fired))
			}
			if len(fired) == 0 {
				a.done("No reminders triggered")
				return nil
			}
			for _, d := range fired {
				a.render.Message("%s: %s (%s)", d.Prayer, d.PrayerAt.Format("3:04 PM"), d.Interval)
			}
			a.done("%d reminder(s) sent", len(fired))
			return nil
		},
	}
}

func newReminderUpcomingCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "upcoming",
		Short: "List reminders due within the longest configured interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.conf.Reminders.Enabled {
				return errors.New("reminders are disabled; set reminders.enabled in the config")
			}
			svc, times, err := a.reminders(a.conf)
			if err != nil {
				return err
			}
			upcoming := svc.GetUpcomingReminders()
			if a.json() {
				return writeJSON(stdout, viewReminders(upcoming))
			}
			t := views.Table{
				Title:   fmt.Sprintf("Reminders for %s, %s", times.City, times.Division),
				Columns: []views.Column{{Title: "Prayer"}, {Title: "At"}, {Title: "Reminder"}, {Title: "Fires"}},
				Empty:   "No upcoming reminders",
			}
			for _, d := range upcoming {
				t.Rows = append(t.Rows, []string{
					d.Prayer, d.PrayerAt.Format("3:04 PM"), d.Interval, d.FireAt.Format("3:04 PM"),
				})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
}

type dashboardView struct {
	Username     string                           `json:"username"`
	FullName     string                           `json:"full_name"`
	Date         string                           `json:"date"`
	Prayers      map[string]flatfile.PrayerStatus `json:"prayers"`
	PrayersDone  int                              `json:"prayers_completed"`
	QuranPages   int                              `json:"quran_pages"`
	QuranGoal    int                              `json:"quran_goal"`
	TasbihCount  int                              `json:"tasbih_count"`
	TasbihCycles int                              `json:"tasbih_cycles"`
	TasbihTotal  int                              `json:"tasbih_total"`
	NextPrayer   string                           `json:"next_prayer,omitempty"`
	NextPrayerAt string                           `json:"next_prayer_at,omitempty"`
	Unread       int                              `json:"unread"`
	PendingFatwa int                              `json:"pending_fatwa"`
}

func newDashboardCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Today at a glance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoami(ctx)
			if err != nil {
				return err
			}

			day, ok := a.prayers.LoadToday()
			if !ok {
				day = flatfile.NewPrayerDay()
			}
			pages := a.quranFile.TodayRecord()
			beads, _ := a.tasbih.LoadToday()

			d := views.Dashboard{
				FullName:     id.account.FullName,
				Username:     id.account.Username,
				Date:         backend.FormatDate(a.today()),
				PrayersDone:  day.Completed(),
				QuranPages:   pages.PagesRead,
				QuranGoal:    pages.DailyGoal,
				TasbihCount:  beads.Count,
				TasbihCycles: beads.Cycles,
				TasbihTotal:  beads.Total,
			}
			statuses := day.Statuses()
			for i, name := range flatfile.PrayerNames {
				d.Prayers = append(d.Prayers, views.PrayerCell{Name: name, Status: string(statuses[i])})
			}

			loc := a.conf.Location
			if times, found := prayertimes.Lookup(loc.Division, loc.City); found {
				next, at := times.Next(a.cfg.now())
				d.NextPrayer = next.Name
				d.NextPrayerAt = at.Format("15:04")
				d.Location = loc.City + ", " + loc.Division
			}

			if d.Unread, err = await(ctx, a, a.svc.UnreadCount(ctx, id.account.ID)); err != nil {
				return err
			}
			if id.scholar != nil {
				qs, err := await(ctx, a, a.svc.ListQuestionsForScholar(ctx, id.scholar.ID))
				if err != nil {
					return err
				}
				d.PendingFatwa = len(pendingOnly(qs))
			}

			if a.json() {
				out := dashboardView{
					Username:     d.Username,
					FullName:     d.FullName,
					Date:         d.Date,
					Prayers:      make(map[string]flatfile.PrayerStatus, len(statuses)),
					PrayersDone:  d.PrayersDone,
					QuranPages:   d.QuranPages,
					QuranGoal:    d.QuranGoal,
					TasbihCount:  d.TasbihCount,
					TasbihCycles: d.TasbihCycles,
					TasbihTotal:  d.TasbihTotal,
					NextPrayer:   d.NextPrayer,
					NextPrayerAt: d.NextPrayerAt,
					Unread:       d.Unread,
					PendingFatwa: d.PendingFatwa,
				}
				for i, name := range flatfile.PrayerNames {
					out.Prayers[name] = statuses[i]
				}
				return writeJSON(stdout, out)
			}
			a.render.RenderDashboard(d)
			a.info()
			return nil
		},
	}
}
