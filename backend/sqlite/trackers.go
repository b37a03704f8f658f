package sqlite

import (
	"context"
	"database/sql"
	"strconv"

	"imanconnect/backend"
)

type prayerRow struct {
	ID      int64          `db:"id"`
	UserID  int64          `db:"user_id"`
	Date    string         `db:"prayer_date"`
	Fajr    bool           `db:"fajr"`
	Dhuhr   bool           `db:"dhuhr"`
	Asr     bool           `db:"asr"`
	Maghrib bool           `db:"maghrib"`
	Isha    bool           `db:"isha"`
	Notes   sql.NullString `db:"notes"`
}

func (r prayerRow) toEntry() backend.PrayerLogEntry {
	return backend.PrayerLogEntry{
		ID:      r.ID,
		UserID:  r.UserID,
		Date:    r.Date,
		Fajr:    r.Fajr,
		Dhuhr:   r.Dhuhr,
		Asr:     r.Asr,
		Maghrib: r.Maghrib,
		Isha:    r.Isha,
		Notes:   r.Notes.String,
	}
}

const prayerColumns = "id, user_id, prayer_date, fajr, dhuhr, asr, maghrib, isha, notes"

// UpsertPrayerLog stores the day's prayers, replacing any earlier record for
// the same account and date.
func (b *Backend) UpsertPrayerLog(ctx context.Context, e *backend.PrayerLogEntry) error {
	return b.conn(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO salah_tracker (user_id, prayer_date, fajr, dhuhr, asr, maghrib, isha, notes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, prayer_date) DO UPDATE SET
				fajr = excluded.fajr,
				dhuhr = excluded.dhuhr,
				asr = excluded.asr,
				maghrib = excluded.maghrib,
				isha = excluded.isha,
				notes = excluded.notes`,
			e.UserID, e.Date, e.Fajr, e.Dhuhr, e.Asr, e.Maghrib, e.Isha, nullString(e.Notes), b.stamp(),
		)
		return err
	})
}

// GetPrayerLog returns the record for one account and date
func (b *Backend) GetPrayerLog(ctx context.Context, userID int64, date string) (*backend.PrayerLogEntry, error) {
	var r prayerRow
	err := b.conn(ctx, func(q querier) error {
		return q.GetContext(ctx, &r,
			"SELECT "+prayerColumns+" FROM salah_tracker WHERE user_id = ? AND prayer_date = ?",
			userID, date,
		)
	})
	if err != nil {
		return nil, err
	}
	e := r.toEntry()
	return &e, nil
}

// ListPrayerLogs returns records between from and to inclusive, newest first.
// An empty bound is open.
func (b *Backend) ListPrayerLogs(ctx context.Context, userID int64, from, to string) ([]backend.PrayerLogEntry, error) {
	query := "SELECT " + prayerColumns + " FROM salah_tracker WHERE user_id = ?"
	args := []any{userID}
	if from != "" {
		query += " AND prayer_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND prayer_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY prayer_date DESC"

	var rows []prayerRow
	err := b.conn(ctx, func(q querier) error {
		return q.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, err
	}
	entries := make([]backend.PrayerLogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toEntry())
	}
	return entries, nil
}

type quranRow struct {
	ID              int64          `db:"id"`
	UserID          int64          `db:"user_id"`
	Date            string         `db:"date"`
	SurahNumber     int            `db:"surah_number"`
	AyahFrom        int            `db:"ayah_from"`
	AyahTo          int            `db:"ayah_to"`
	DurationMinutes sql.NullInt64  `db:"duration_minutes"`
	Notes           sql.NullString `db:"notes"`
	CreatedAt       sql.NullString `db:"created_at"`
}

// AddQuranLog appends a reading session
func (b *Backend) AddQuranLog(ctx context.Context, e *backend.QuranLogEntry) (int64, error) {
	var id int64
	err := b.conn(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			`INSERT INTO quran_tracker (user_id, date, surah_number, ayah_from, ayah_to, duration_minutes, notes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.UserID, e.Date, e.SurahNumber, e.AyahFrom, e.AyahTo, e.DurationMinutes, nullString(e.Notes), b.stamp(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListQuranLogs returns reading sessions, newest first
func (b *Backend) ListQuranLogs(ctx context.Context, userID int64) ([]backend.QuranLogEntry, error) {
	var rows []quranRow
	err := b.conn(ctx, func(q querier) error {
		return q.SelectContext(ctx, &rows,
			`SELECT id, user_id, date, surah_number, ayah_from, ayah_to, duration_minutes, notes, created_at
			 FROM quran_tracker WHERE user_id = ? ORDER BY date DESC, id DESC`,
			userID,
		)
	})
	if err != nil {
		return nil, err
	}
	entries := make([]backend.QuranLogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, backend.QuranLogEntry{
			ID:              r.ID,
			UserID:          r.UserID,
			Date:            r.Date,
			SurahNumber:     r.SurahNumber,
			AyahFrom:        r.AyahFrom,
			AyahTo:          r.AyahTo,
			DurationMinutes: int(r.DurationMinutes.Int64),
			Notes:           r.Notes.String,
			CreatedAt:       backend.ParseTime(r.CreatedAt.String),
		})
	}
	return entries, nil
}

type dhikrRow struct {
	ID         int64          `db:"id"`
	UserID     int64          `db:"user_id"`
	Date       string         `db:"entry_date"`
	DhikrName  string         `db:"dhikr_name"`
	Count      int            `db:"count"`
	Cycles     int            `db:"cycles"`
	TotalCount int            `db:"total_count"`
	Notes      sql.NullString `db:"notes"`
	CreatedAt  sql.NullString `db:"created_at"`
}

// AddDhikrLog appends a tasbih session
func (b *Backend) AddDhikrLog(ctx context.Context, e *backend.DhikrLogEntry) (int64, error) {
	var id int64
	err := b.conn(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			`INSERT INTO tasbih_entries (user_id, entry_date, dhikr_name, count, cycles, total_count, notes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.UserID, e.Date, e.DhikrName, e.Count, e.Cycles, e.TotalCount, nullString(e.Notes), b.stamp(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListDhikrLogs returns tasbih sessions, newest first
func (b *Backend) ListDhikrLogs(ctx context.Context, userID int64) ([]backend.DhikrLogEntry, error) {
	var rows []dhikrRow
	err := b.conn(ctx, func(q querier) error {
		return q.SelectContext(ctx, &rows,
			`SELECT id, user_id, entry_date, dhikr_name, count, cycles, total_count, notes, created_at
			 FROM tasbih_entries WHERE user_id = ? ORDER BY entry_date DESC, id DESC`,
			userID,
		)
	})
	if err != nil {
		return nil, err
	}
	entries := make([]backend.DhikrLogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, backend.DhikrLogEntry{
			ID:         r.ID,
			UserID:     r.UserID,
			Date:       r.Date,
			DhikrName:  r.DhikrName,
			Count:      r.Count,
			Cycles:     r.Cycles,
			TotalCount: r.TotalCount,
			Notes:      r.Notes.String,
			CreatedAt:  backend.ParseTime(r.CreatedAt.String),
		})
	}
	return entries, nil
}

type fastingRow struct {
	ID         int64          `db:"id"`
	UserID     int64          `db:"user_id"`
	Year       int            `db:"year"`
	DayNumber  int            `db:"day_number"`
	Fasted     bool           `db:"fasted"`
	Notes      sql.NullString `db:"notes"`
	GoodDeeds  sql.NullString `db:"good_deeds"`
	QuranPages sql.NullInt64  `db:"quran_pages"`
	CreatedAt  sql.NullString `db:"created_at"`
}

// SaveFastingLog inserts or replaces the record for (account, year, day)
func (b *Backend) SaveFastingLog(ctx context.Context, e *backend.FastingLogEntry) error {
	return b.conn(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT OR REPLACE INTO ramadan_fasting
				(user_id, year, day_number, fasted, notes, good_deeds, quran_pages, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.UserID, e.Year, e.DayNumber, e.Fasted, nullString(e.Notes), nullString(e.GoodDeeds), e.QuranPages, b.stamp(),
		)
		return err
	})
}

// ListFastingLogs returns a year's records ordered by day
func (b *Backend) ListFastingLogs(ctx context.Context, userID int64, year int) ([]backend.FastingLogEntry, error) {
	var rows []fastingRow
	err := b.conn(ctx, func(q querier) error {
		return q.SelectContext(ctx, &rows,
			`SELECT id, user_id, year, day_number, fasted, notes, good_deeds, quran_pages, created_at
			 FROM ramadan_fasting WHERE user_id = ? AND year = ? ORDER BY day_number`,
			userID, year,
		)
	})
	if err != nil {
		return nil, err
	}
	entries := make([]backend.FastingLogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, backend.FastingLogEntry{
			ID:         r.ID,
			UserID:     r.UserID,
			Year:       r.Year,
			DayNumber:  r.DayNumber,
			Fasted:     r.Fasted,
			Notes:      r.Notes.String,
			GoodDeeds:  r.GoodDeeds.String,
			QuranPages: int(r.QuranPages.Int64),
			CreatedAt:  backend.ParseTime(r.CreatedAt.String),
		})
	}
	return entries, nil
}

type zikrRow struct {
	ID        int64          `db:"id"`
	UserID    int64          `db:"user_id"`
	Date      string         `db:"date"`
	Period    string         `db:"period"`
	Completed bool           `db:"completed"`
	Notes     sql.NullString `db:"notes"`
}

// UpsertZikrLog stores completion for (account, date, period)
func (b *Backend) UpsertZikrLog(ctx context.Context, e *backend.ZikrLogEntry) error {
	return b.conn(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO zikr_tracker (user_id, date, period, completed, notes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, date, period) DO UPDATE SET
				completed = excluded.completed,
				notes = excluded.notes`,
			e.UserID, e.Date, string(e.Period), e.Completed, nullString(e.Notes), b.stamp(),
		)
		return err
	})
}

// ListZikrLogs returns a year's records ordered by date then period
func (b *Backend) ListZikrLogs(ctx context.Context, userID int64, year int) ([]backend.ZikrLogEntry, error) {
	var rows []zikrRow
	err := b.conn(ctx, func(q querier) error {
		return q.SelectContext(ctx, &rows,
			`SELECT id, user_id, date, period, completed, notes
			 FROM zikr_tracker WHERE user_id = ? AND substr(date, 1, 4) = ? ORDER BY date, period DESC`,
			userID, strconv.Itoa(year),
		)
	})
	if err != nil {
		return nil, err
	}
	entries := make([]backend.ZikrLogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, backend.ZikrLogEntry{
			ID:        r.ID,
			UserID:    r.UserID,
			Date:      r.Date,
			Period:    backend.ZikrPeriod(r.Period),
			Completed: r.Completed,
			Notes:     r.Notes.String,
		})
	}
	return entries, nil
}
