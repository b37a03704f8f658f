package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"imanconnect/backend"
	"imanconnect/backend/flatfile"
	"imanconnect/internal/prayertimes"
	"imanconnect/internal/utils"
	"imanconnect/internal/views"
)

func check(ok bool) string {
	if ok {
		return "✓"
	}
	return "·"
}

// newPrayerCmd groups the prayer log and the daily prayer file
func newPrayerCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return groupCmd("prayer", "Track the five daily prayers",
		newPrayerLogCmd(stdout, stderr, cfg),
		newPrayerShowCmd(stdout, stderr, cfg),
		newPrayerTodayCmd(stdout, stderr, cfg),
		newPrayerMarkCmd(stdout, stderr, cfg),
		newPrayerSummaryCmd(stdout, stderr, cfg),
	)
}

func newPrayerLogCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var (
		entry backend.PrayerLogEntry
		date  string
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Save which prayers were prayed on a day",
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
			if entry.Date, err = a.day(date); err != nil {
				return err
			}
			entry.UserID = id.account.ID
			if all {
				entry.Fajr, entry.Dhuhr, entry.Asr, entry.Maghrib, entry.Isha = true, true, true, true, true
			}
			if _, err := await(ctx, a, a.svc.SavePrayerLog(ctx, entry)); err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, prayerView(entry))
			}
			a.done("Saved %s: %d/5 prayers", entry.Date, entry.Completed())
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to log (YYYY-MM-DD, today, yesterday, -Nd)")
	cmd.Flags().BoolVar(&entry.Fajr, "fajr", false, "Fajr prayed")
	cmd.Flags().BoolVar(&entry.Dhuhr, "dhuhr", false, "Dhuhr prayed")
	cmd.Flags().BoolVar(&entry.Asr, "asr", false, "Asr prayed")
	cmd.Flags().BoolVar(&entry.Maghrib, "maghrib", false, "Maghrib prayed")
	cmd.Flags().BoolVar(&entry.Isha, "isha", false, "Isha prayed")
	cmd.Flags().BoolVar(&all, "all", false, "All five prayed")
	cmd.Flags().StringVar(&entry.Notes, "notes", "", "Notes for the day")
	return cmd
}

type prayerLogView struct {
	Date      string `json:"date"`
	Fajr      bool   `json:"fajr"`
	Dhuhr     bool   `json:"dhuhr"`
	Asr       bool   `json:"asr"`
	Maghrib   bool   `json:"maghrib"`
	Isha      bool   `json:"isha"`
	Completed int    `json:"completed"`
	Notes     string `json:"notes,omitempty"`
}

func prayerView(e backend.PrayerLogEntry) prayerLogView {
	return prayerLogView{
		Date: e.Date, Fajr: e.Fajr, Dhuhr: e.Dhuhr, Asr: e.Asr, Maghrib: e.Maghrib, Isha: e.Isha,
		Completed: e.Completed(), Notes: e.Notes,
	}
}

func newPrayerShowCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List saved prayer logs",
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
			if from, err = a.day(from); err != nil {
				return err
			}
			if to, err = a.day(to); err != nil {
				return err
			}
			logs, err := await(ctx, a, a.svc.ListPrayerLogs(ctx, id.account.ID, from, to))
			if err != nil {
				return err
			}

			if a.json() {
				out := make([]prayerLogView, len(logs))
				for i, e := range logs {
					out[i] = prayerView(e)
				}
				return writeJSON(stdout, out)
			}
			t := views.Table{
				Title:   fmt.Sprintf("Prayers %s to %s", from, to),
				Columns: views.Cols("Date", "Fajr", "Dhuhr", "Asr", "Maghrib", "Isha", "Done", "Notes"),
				Empty:   "No prayers logged in this range",
			}
			t.Columns[7] = views.Column{Title: "Notes", Width: 30, Truncate: true}
			for _, e := range logs {
				t.Rows = append(t.Rows, []string{
					e.Date, check(e.Fajr), check(e.Dhuhr), check(e.Asr), check(e.Maghrib), check(e.Isha),
					fmt.Sprintf("%d/5", e.Completed()), e.Notes,
				})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "-6d", "First day")
	cmd.Flags().StringVar(&to, "to", "today", "Last day")
	return cmd
}

func newPrayerTodayCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's prayer statuses from the daily file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			day, ok := a.prayers.LoadToday()
			if !ok {
				day = flatfile.NewPrayerDay()
			}
			return renderPrayerDay(a, day)
		},
	}
}

func renderPrayerDay(a *app, day flatfile.PrayerDay) error {
	statuses := day.Statuses()
	if a.json() {
		out := make(map[string]flatfile.PrayerStatus, len(statuses))
		for i, name := range flatfile.PrayerNames {
			out[name] = statuses[i]
		}
		return writeJSON(a.out, map[string]any{
			"date":      backend.FormatDate(a.today()),
			"prayers":   out,
			"completed": day.Completed(),
		})
	}
	t := views.Table{
		Title:   "Today " + backend.FormatDate(a.today()),
		Columns: views.Cols("Prayer", "Status"),
	}
	for i, name := range flatfile.PrayerNames {
		t.Rows = append(t.Rows, []string{name, string(statuses[i])})
	}
	a.render.RenderTable(t)
	a.render.Message("%s %d/5", views.ProgressBar(day.Completed(), 5, 10), day.Completed())
	a.info()
	return nil
}

func newPrayerMarkCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <prayer> <on-time|late|missed|not-recorded>",
		Short: "Set one of today's prayers in the daily file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			status, err := flatfile.ParsePrayerStatus(args[1])
			if err != nil {
				return utils.ErrInvalidChoice("status", args[1], []string{"on-time", "late", "missed", "not-recorded"})
			}
			trial := flatfile.NewPrayerDay()
			if trial.Set(args[0], status) != nil {
				return utils.ErrInvalidChoice("prayer", args[0], flatfile.PrayerNames)
			}
			day, err := a.prayers.MarkPrayer(args[0], status)
			if err != nil {
				return err
			}
			if a.json() {
				return renderPrayerDay(a, day)
			}
			a.done("%s marked %s (%d/5 today)", args[0], status, day.Completed())
			return nil
		},
	}
}

func newPrayerSummaryCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Tally statuses for today, the last week and the last month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			s := a.prayers.Summary()
			if a.json() {
				return writeJSON(stdout, s)
			}
			t := views.Table{
				Title:   "Prayer summary",
				Columns: views.Cols("Period", "On time", "Late", "Missed"),
			}
			for _, row := range []struct {
				name  string
				tally flatfile.Tally
			}{{"Today", s.Today}, {"7 days", s.Week}, {"30 days", s.Month}} {
				t.Rows = append(t.Rows, []string{
					row.name, strconv.Itoa(row.tally.OnTime), strconv.Itoa(row.tally.Late), strconv.Itoa(row.tally.Missed),
				})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
}

// newTimesCmd prints the prayer timetable for the configured location
func newTimesCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var division, city string
	cmd := &cobra.Command{
		Use:   "times",
		Short: "Show prayer, suhoor and iftar times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			if division == "" {
				division = conf.Location.Division
			}
			if city == "" {
				city = conf.Location.City
			}
			times, found := prayertimes.Lookup(division, city)
			if !found {
				utils.Warnf("no timetable for %s/%s, showing %s/%s", division, city, times.Division, times.City)
			}
			now := cfg.now()
			next, at := times.Next(now)

			if cfg.jsonOutput() {
				out := map[string]string{
					"division": times.Division,
					"city":     times.City,
					"suhoor":   times.Suhoor.String(),
					"iftar":    times.Iftar.String(),
					"next":     next.Name,
					"next_at":  at.Format("2006-01-02 15:04"),
				}
				for _, p := range times.Prayers() {
					out[strings.ToLower(p.Name)] = p.At.String()
				}
				return writeJSON(stdout, out)
			}
			r := views.NewRenderer(stdout)
			t := views.Table{
				Title:   fmt.Sprintf("%s, %s", times.City, times.Division),
				Columns: []views.Column{{Title: "Prayer"}, {Title: "Time", Align: "right"}},
			}
			for _, p := range times.Prayers() {
				t.Rows = append(t.Rows, []string{p.Name, p.At.String()})
			}
			t.Rows = append(t.Rows, []string{"Suhoor", times.Suhoor.String()}, []string{"Iftar", times.Iftar.String()})
			r.RenderTable(t)
			r.Message("Next: %s at %s", next.Name, at.Format("3:04 PM"))
			resultCode(stdout, cfg, ResultInfoOnly)
			return nil
		},
	}
	cmd.Flags().StringVar(&division, "division", "", "Division (default from config)")
	cmd.Flags().StringVar(&city, "city", "", "City (default from config)")
	return cmd
}

// newQuranCmd groups reading sessions, the daily pages file and the text API
func newQuranCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return groupCmd("quran", "Track Quran reading",
		newQuranLogCmd(stdout, stderr, cfg),
		newQuranListCmd(stdout, stderr, cfg),
		newQuranPagesCmd(stdout, stderr, cfg),
		newQuranGoalCmd(stdout, stderr, cfg),
		newQuranVerseCmd(stdout, stderr, cfg),
		newQuranSurahsCmd(stdout, stderr, cfg),
	)
}

type quranLogView struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	Surah    int    `json:"surah"`
	AyahFrom int    `json:"ayah_from"`
	AyahTo   int    `json:"ayah_to"`
	Minutes  int    `json:"minutes"`
	Notes    string `json:"notes,omitempty"`
}

func newQuranLogCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var (
		entry backend.QuranLogEntry
		date  string
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record a reading session",
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
			if entry.Date, err = a.day(date); err != nil {
				return err
			}
			entry.UserID = id.account.ID
			if entry.AyahTo == 0 {
				entry.AyahTo = entry.AyahFrom
			}
			logID, err := await(ctx, a, a.svc.LogQuranReading(ctx, entry))
			if err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, quranLogView{
					ID: logID, Date: entry.Date, Surah: entry.SurahNumber, AyahFrom: entry.AyahFrom,
					AyahTo: entry.AyahTo, Minutes: entry.DurationMinutes, Notes: entry.Notes,
				})
			}
			a.done("Logged surah %d, ayat %d-%d", entry.SurahNumber, entry.AyahFrom, entry.AyahTo)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day of the session")
	cmd.Flags().IntVar(&entry.SurahNumber, "surah", 0, "Surah number (1-114)")
	cmd.Flags().IntVar(&entry.AyahFrom, "from", 1, "First ayah")
	cmd.Flags().IntVar(&entry.AyahTo, "to", 0, "Last ayah (default: --from)")
	cmd.Flags().IntVar(&entry.DurationMinutes, "minutes", 0, "Minutes spent reading")
	cmd.Flags().StringVar(&entry.Notes, "notes", "", "Notes")
	_ = cmd.MarkFlagRequired("surah")
	return cmd
}

func newQuranListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reading sessions",
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
			logs, err := await(ctx, a, a.svc.ListQuranReadings(ctx, id.account.ID))
			if err != nil {
				return err
			}
			if a.json() {
				out := make([]quranLogView, len(logs))
				for i, e := range logs {
					out[i] = quranLogView{
						ID: e.ID, Date: e.Date, Surah: e.SurahNumber, AyahFrom: e.AyahFrom,
						AyahTo: e.AyahTo, Minutes: e.DurationMinutes, Notes: e.Notes,
					}
				}
				return writeJSON(stdout, out)
			}
			t := views.Table{
				Title:   "Quran readings",
				Columns: views.Cols("Date", "Surah", "Ayat", "Minutes", "Notes"),
				Empty:   "No readings logged",
			}
			t.Columns[4] = views.Column{Title: "Notes", Width: 30, Truncate: true}
			for _, e := range logs {
				t.Rows = append(t.Rows, []string{
					e.Date, strconv.Itoa(e.SurahNumber), fmt.Sprintf("%d-%d", e.AyahFrom, e.AyahTo),
					strconv.Itoa(e.DurationMinutes), e.Notes,
				})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
}

func renderQuranDay(a *app, d flatfile.QuranDay) error {
	if a.json() {
		return writeJSON(a.out, map[string]any{
			"date":     backend.FormatDate(a.today()),
			"pages":    d.PagesRead,
			"goal":     d.DailyGoal,
			"goal_met": d.GoalMet(),
		})
	}
	a.render.Message("%s %d/%d pages", views.ProgressBar(d.PagesRead, d.DailyGoal, 20), d.PagesRead, d.DailyGoal)
	if d.GoalMet() {
		a.render.Success("Daily goal reached")
	}
	return nil
}

func newQuranPagesCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "pages [n]",
		Short: "Add pages to today's count, or show it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 0 {
				if err := renderQuranDay(a, a.quranFile.TodayRecord()); err != nil {
					return err
				}
				a.info()
				return nil
			}
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("pages must be a number: %s", args[0])
			}
			d, err := a.quranFile.AddPages(n)
			if err != nil {
				return err
			}
			if err := renderQuranDay(a, d); err != nil {
				return err
			}
			resultCode(stdout, cfg, ResultActionCompleted)
			return nil
		},
	}
}

func newQuranGoalCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "goal <pages>",
		Short: "Set today's reading goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("goal must be a number: %s", args[0])
			}
			d, err := a.quranFile.SetGoal(n)
			if err != nil {
				return err
			}
			if err := renderQuranDay(a, d); err != nil {
				return err
			}
			resultCode(stdout, cfg, ResultActionCompleted)
			return nil
		},
	}
}

func newQuranVerseCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var translation bool
	cmd := &cobra.Command{
		Use:   "verse <surah> <ayah>",
		Short: "Fetch the text of one ayah",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			surah, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("surah must be a number: %s", args[0])
			}
			ayah, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("ayah must be a number: %s", args[1])
			}
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.quranProvider()
			if err != nil {
				return err
			}
			text, err := p.VerseText(ctx, surah, ayah)
			if err != nil {
				return err
			}
			var english string
			if translation {
				if english, err = p.Translation(ctx, surah, ayah); err != nil {
					return err
				}
			}
			if a.json() {
				return writeJSON(stdout, map[string]any{
					"surah": surah, "ayah": ayah, "text": text, "translation": english,
				})
			}
			a.render.Message("%d:%d", surah, ayah)
			a.render.Message("%s", text)
			if english != "" {
				a.render.Message("%s", english)
			}
			a.info()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&translation, "translation", "t", false, "Also show the English translation")
	return cmd
}

func newQuranSurahsCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "surahs",
		Short: "List the surahs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.quranProvider()
			if err != nil {
				return err
			}
			surahs, err := p.ListSurahs(ctx)
			if err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, surahs)
			}
			t := views.Table{
				Title: "Surahs",
				Columns: []views.Column{
					{Title: "#", Align: "right"}, {Title: "Name"}, {Title: "Meaning"},
					{Title: "Ayat", Align: "right"}, {Title: "Revealed"},
				},
			}
			for _, s := range surahs {
				t.Rows = append(t.Rows, []string{
					strconv.Itoa(s.Number), s.EnglishName, s.EnglishNameTranslation,
					strconv.Itoa(s.NumberOfAyahs), s.RevelationType,
				})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
}

// newTasbihCmd groups the tasbih counter and saved dhikr sessions
func newTasbihCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return groupCmd("tasbih", "Count dhikr",
		newTasbihCountCmd(stdout, stderr, cfg),
		newTasbihTodayCmd(stdout, stderr, cfg),
		newTasbihLogCmd(stdout, stderr, cfg),
		newTasbihListCmd(stdout, stderr, cfg),
	)
}

func renderTasbihDay(a *app, d flatfile.TasbihDay) error {
	if a.json() {
		return writeJSON(a.out, map[string]int{"count": d.Count, "cycles": d.Cycles, "total": d.Total})
	}
	a.render.Message("Count %d  Cycles %d  Total %d", d.Count, d.Cycles, d.Total)
	return nil
}

func newTasbihCountCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var cycle, reset bool
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count one dhikr",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			var (
				d         flatfile.TasbihDay
				milestone bool
			)
			switch {
			case reset:
				d, err = a.tasbih.Reset()
			case cycle:
				d, err = a.tasbih.CompleteCycle()
			default:
				d, milestone, err = a.tasbih.Increment()
			}
			if err != nil {
				return err
			}
			if err := renderTasbihDay(a, d); err != nil {
				return err
			}
			if milestone && !a.json() {
				a.render.Success("%d reached", d.Count)
			}
			resultCode(stdout, cfg, ResultActionCompleted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cycle, "cycle", false, "Close the current cycle instead of counting")
	cmd.Flags().BoolVar(&reset, "reset", false, "Zero the current count")
	return cmd
}

func newTasbihTodayCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			d, _ := a.tasbih.LoadToday()
			if err := renderTasbihDay(a, d); err != nil {
				return err
			}
			a.info()
			return nil
		},
	}
}

type dhikrView struct {
	ID     int64  `json:"id"`
	Date   string `json:"date"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Cycles int    `json:"cycles"`
	Total  int    `json:"total"`
	Notes  string `json:"notes,omitempty"`
}

func newTasbihLogCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var (
		entry backend.DhikrLogEntry
		date  string
	)
	cmd := &cobra.Command{
		Use:   "log <dhikr>",
		Short: "Save a dhikr session, by default today's counter",
		Args:  cobra.ExactArgs(1),
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
			if entry.Date, err = a.day(date); err != nil {
				return err
			}
			entry.UserID = id.account.ID
			entry.DhikrName = args[0]
			if entry.Count == 0 {
				d, _ := a.tasbih.LoadToday()
				entry.Count, entry.Cycles, entry.TotalCount = d.Count, d.Cycles, d.Total
			}
			if entry.TotalCount < entry.Count {
				entry.TotalCount = entry.Count
			}
			logID, err := await(ctx, a, a.svc.LogDhikr(ctx, entry))
			if err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, dhikrView{
					ID: logID, Date: entry.Date, Name: entry.DhikrName, Count: entry.Count,
					Cycles: entry.Cycles, Total: entry.TotalCount, Notes: entry.Notes,
				})
			}
			a.done("Saved %s x%d", entry.DhikrName, entry.Count)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day of the session")
	cmd.Flags().IntVar(&entry.Count, "count", 0, "Count (default: today's counter)")
	cmd.Flags().IntVar(&entry.Cycles, "cycles", 0, "Completed cycles")
	cmd.Flags().IntVar(&entry.TotalCount, "total", 0, "Running total")
	cmd.Flags().StringVar(&entry.Notes, "notes", "", "Notes")
	return cmd
}

func newTasbihListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved dhikr sessions",
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
			logs, err := await(ctx, a, a.svc.ListDhikr(ctx, id.account.ID))
			if err != nil {
				return err
			}
			if a.json() {
				out := make([]dhikrView, len(logs))
				for i, e := range logs {
					out[i] = dhikrView{
						ID: e.ID, Date: e.Date, Name: e.DhikrName, Count: e.Count,
						Cycles: e.Cycles, Total: e.TotalCount, Notes: e.Notes,
					}
				}
				return writeJSON(stdout, out)
			}
			t := views.Table{
				Title:   "Dhikr sessions",
				Columns: views.Cols("Date", "Dhikr", "Count", "Cycles", "Total"),
				Empty:   "No dhikr saved",
			}
			for _, e := range logs {
				t.Rows = append(t.Rows, []string{
					e.Date, e.DhikrName, strconv.Itoa(e.Count), strconv.Itoa(e.Cycles), strconv.Itoa(e.TotalCount),
				})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
}

// newFastCmd groups the Ramadan fasting tracker
func newFastCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return groupCmd("fast", "Track Ramadan fasting",
		newFastSaveCmd(stdout, stderr, cfg),
		newFastListCmd(stdout, stderr, cfg),
	)
}

type fastView struct {
	Year       int    `json:"year"`
	Day        int    `json:"day"`
	Fasted     bool   `json:"fasted"`
	QuranPages int    `json:"quran_pages"`
	GoodDeeds  string `json:"good_deeds,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func newFastSaveCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var entry backend.FastingLogEntry
	cmd := &cobra.Command{
		Use:   "save <day>",
		Short: "Save one Ramadan day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			day, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("day must be a number: %s", args[0])
			}
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoami(ctx)
			if err != nil {
				return err
			}
			entry.UserID = id.account.ID
			entry.DayNumber = day
			if entry.Year == 0 {
				entry.Year = cfg.now().Year()
			}
			if _, err := await(ctx, a, a.svc.SaveFastingEntry(ctx, entry)); err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, fastView{
					Year: entry.Year, Day: entry.DayNumber, Fasted: entry.Fasted,
					QuranPages: entry.QuranPages, GoodDeeds: entry.GoodDeeds, Notes: entry.Notes,
				})
			}
			a.done("Saved Ramadan %d day %d", entry.Year, entry.DayNumber)
			return nil
		},
	}
	cmd.Flags().IntVar(&entry.Year, "year", 0, "Year (default: this year)")
	cmd.Flags().BoolVar(&entry.Fasted, "fasted", false, "Fasted on this day")
	cmd.Flags().IntVar(&entry.QuranPages, "pages", 0, "Quran pages read")
	cmd.Flags().StringVar(&entry.GoodDeeds, "good-deeds", "", "Good deeds")
	cmd.Flags().StringVar(&entry.Notes, "notes", "", "Notes")
	return cmd
}

func newFastListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one year's fasting days",
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
			if year == 0 {
				year = cfg.now().Year()
			}
			days, err := await(ctx, a, a.svc.ListFastingEntries(ctx, id.account.ID, year))
			if err != nil {
				return err
			}
			if a.json() {
				out := make([]fastView, len(days))
				for i, e := range days {
					out[i] = fastView{
						Year: e.Year, Day: e.DayNumber, Fasted: e.Fasted,
						QuranPages: e.QuranPages, GoodDeeds: e.GoodDeeds, Notes: e.Notes,
					}
				}
				return writeJSON(stdout, out)
			}
			fasted := 0
			t := views.Table{
				Title:   fmt.Sprintf("Ramadan %d", year),
				Columns: views.Cols("Day", "Fasted", "Pages", "Good deeds"),
				Empty:   "No days saved",
			}
			t.Columns[3] = views.Column{Title: "Good deeds", Width: 40, Truncate: true}
			for _, e := range days {
				if e.Fasted {
					fasted++
				}
				t.Rows = append(t.Rows, []string{
					strconv.Itoa(e.DayNumber), check(e.Fasted), strconv.Itoa(e.QuranPages), e.GoodDeeds,
				})
			}
			a.render.RenderTable(t)
			a.render.Message("%d of %d days fasted", fasted, len(days))
			a.info()
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Year (default: this year)")
	return cmd
}

// newZikrCmd groups the morning and evening adhkar tracker
func newZikrCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return groupCmd("zikr", "Track morning and evening adhkar",
		newZikrSaveCmd(stdout, stderr, cfg),
		newZikrListCmd(stdout, stderr, cfg),
	)
}

type zikrView struct {
	Date      string `json:"date"`
	Period    string `json:"period"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes,omitempty"`
}

func newZikrSaveCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var (
		entry backend.ZikrLogEntry
		date  string
	)
	cmd := &cobra.Command{
		Use:   "save <morning|evening>",
		Short: "Save the adhkar of one period",
		Args:  cobra.ExactArgs(1),
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
			if entry.Date, err = a.day(date); err != nil {
				return err
			}
			entry.UserID = id.account.ID
			entry.Period = backend.ZikrPeriod(strings.ToLower(args[0]))
			if _, err := await(ctx, a, a.svc.SaveZikr(ctx, entry)); err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, zikrView{
					Date: entry.Date, Period: strings.ToLower(args[0]), Completed: entry.Completed, Notes: entry.Notes,
				})
			}
			a.done("Saved %s adhkar for %s", strings.ToLower(args[0]), entry.Date)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day")
	cmd.Flags().BoolVar(&entry.Completed, "completed", true, "All adhkar completed")
	cmd.Flags().StringVar(&entry.Notes, "notes", "", "Notes")
	return cmd
}

func newZikrListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one year's adhkar",
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
			if year == 0 {
				year = cfg.now().Year()
			}
			logs, err := await(ctx, a, a.svc.ListZikr(ctx, id.account.ID, year))
			if err != nil {
				return err
			}
			if a.json() {
				out := make([]zikrView, len(logs))
				for i, e := range logs {
					out[i] = zikrView{Date: e.Date, Period: string(e.Period), Completed: e.Completed, Notes: e.Notes}
				}
				return writeJSON(stdout, out)
			}
			t := views.Table{
				Title:   fmt.Sprintf("Adhkar %d", year),
				Columns: views.Cols("Date", "Period", "Done", "Notes"),
				Empty:   "No adhkar saved",
			}
			for _, e := range logs {
				t.Rows = append(t.Rows, []string{e.Date, string(e.Period), check(e.Completed), e.Notes})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Year (default: this year)")
	return cmd
}
