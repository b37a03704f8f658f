package service

import (
	"context"
	"strings"

	"imanconnect/backend"
	"imanconnect/backend/flatfile"
	"imanconnect/internal/async"
	"imanconnect/internal/utils"
)

// SavePrayerLog upserts the prayers for one account and date. When the date
// is today the record is mirrored into the daily prayer file.
func (s *Service) SavePrayerLog(ctx context.Context, e backend.PrayerLogEntry) *async.Future[bool] {
	return run(ctx, s, "SavePrayerLog", func(ctx context.Context) (bool, error) {
		if err := utils.Validate(e); err != nil {
			return false, err
		}
		if err := s.store.UpsertPrayerLog(ctx, &e); err != nil {
			return false, err
		}
		s.mirrorPrayers(e)
		return true, nil
	})
}

func (s *Service) mirrorPrayers(e backend.PrayerLogEntry) {
	if s.prayers == nil || e.Date != backend.FormatDate(s.prayers.Today()) {
		return
	}
	day := flatfile.PrayerDayFromBools(e.Fajr, e.Dhuhr, e.Asr, e.Maghrib, e.Isha)
	if err := s.prayers.SaveToday(day); err != nil {
		s.log.Warn("mirror prayers to %s: %v", s.prayers.Path(), err)
	}
}

// GetPrayerLog loads the prayers for one date, Empty when none were saved.
func (s *Service) GetPrayerLog(ctx context.Context, userID int64, date string) *async.Future[*backend.PrayerLogEntry] {
	return lookup(ctx, s, "GetPrayerLog", func(ctx context.Context) (*backend.PrayerLogEntry, error) {
		if err := checkDate("date", date); err != nil {
			return nil, err
		}
		return s.store.GetPrayerLog(ctx, userID, date)
	})
}

// ListPrayerLogs returns the prayer logs between from and to inclusive, newest
// first. An empty bound is open.
func (s *Service) ListPrayerLogs(ctx context.Context, userID int64, from, to string) *async.Future[[]backend.PrayerLogEntry] {
	return run(ctx, s, "ListPrayerLogs", func(ctx context.Context) ([]backend.PrayerLogEntry, error) {
		if from != "" {
			if err := checkDate("from", from); err != nil {
				return nil, err
			}
		}
		if to != "" {
			if err := checkDate("to", to); err != nil {
				return nil, err
			}
		}
		return s.store.ListPrayerLogs(ctx, userID, from, to)
	})
}

// LogQuranReading appends a reading session and returns its id.
func (s *Service) LogQuranReading(ctx context.Context, e backend.QuranLogEntry) *async.Future[int64] {
	return run(ctx, s, "LogQuranReading", func(ctx context.Context) (int64, error) {
		if err := utils.Validate(e); err != nil {
			return 0, err
		}
		return s.store.AddQuranLog(ctx, &e)
	})
}

// ListQuranReadings returns an account's reading sessions, newest first.
func (s *Service) ListQuranReadings(ctx context.Context, userID int64) *async.Future[[]backend.QuranLogEntry] {
	return run(ctx, s, "ListQuranReadings", func(ctx context.Context) ([]backend.QuranLogEntry, error) {
		return s.store.ListQuranLogs(ctx, userID)
	})
}

// LogDhikr appends a tasbih session. A session dated today also replaces
// today's line in the tasbih file.
func (s *Service) LogDhikr(ctx context.Context, e backend.DhikrLogEntry) *async.Future[int64] {
	return run(ctx, s, "LogDhikr", func(ctx context.Context) (int64, error) {
		e.DhikrName = strings.TrimSpace(e.DhikrName)
		if err := utils.Validate(e); err != nil {
			return 0, err
		}
		id, err := s.store.AddDhikrLog(ctx, &e)
		if err != nil {
			return 0, err
		}
		s.mirrorTasbih(e)
		return id, nil
	})
}

func (s *Service) mirrorTasbih(e backend.DhikrLogEntry) {
	if s.tasbih == nil || e.Date != backend.FormatDate(s.tasbih.Today()) {
		return
	}
	day := flatfile.TasbihDay{Count: e.Count, Cycles: e.Cycles, Total: e.TotalCount}
	if err := s.tasbih.SaveToday(day); err != nil {
		s.log.Warn("mirror tasbih to %s: %v", s.tasbih.Path(), err)
	}
}

// ListDhikr returns an account's tasbih sessions, newest first.
func (s *Service) ListDhikr(ctx context.Context, userID int64) *async.Future[[]backend.DhikrLogEntry] {
	return run(ctx, s, "ListDhikr", func(ctx context.Context) ([]backend.DhikrLogEntry, error) {
		return s.store.ListDhikrLogs(ctx, userID)
	})
}

// SaveFastingEntry inserts or replaces the entry for (account, year, day).
func (s *Service) SaveFastingEntry(ctx context.Context, e backend.FastingLogEntry) *async.Future[bool] {
	return run(ctx, s, "SaveFastingEntry", func(ctx context.Context) (bool, error) {
		if err := utils.Validate(e); err != nil {
			return false, err
		}
		if err := s.store.SaveFastingLog(ctx, &e); err != nil {
			return false, err
		}
		return true, nil
	})
}

// ListFastingEntries returns one year's fasting days in day order.
func (s *Service) ListFastingEntries(ctx context.Context, userID int64, year int) *async.Future[[]backend.FastingLogEntry] {
	return run(ctx, s, "ListFastingEntries", func(ctx context.Context) ([]backend.FastingLogEntry, error) {
		return s.store.ListFastingLogs(ctx, userID, year)
	})
}

// SaveZikr upserts the morning or evening adhkar for one date.
func (s *Service) SaveZikr(ctx context.Context, e backend.ZikrLogEntry) *async.Future[bool] {
	return run(ctx, s, "SaveZikr", func(ctx context.Context) (bool, error) {
		e.Period = backend.ZikrPeriod(strings.ToLower(string(e.Period)))
		if err := utils.Validate(e); err != nil {
			return false, err
		}
		if err := s.store.UpsertZikrLog(ctx, &e); err != nil {
			return false, err
		}
		return true, nil
	})
}

// ListZikr returns one year's zikr entries.
func (s *Service) ListZikr(ctx context.Context, userID int64, year int) *async.Future[[]backend.ZikrLogEntry] {
	return run(ctx, s, "ListZikr", func(ctx context.Context) ([]backend.ZikrLogEntry, error) {
		return s.store.ListZikrLogs(ctx, userID, year)
	})
}

type dateField struct {
	Value string `validate:"isodate"`
}

func checkDate(field, value string) error {
	if err := utils.Validate(dateField{Value: value}); err != nil {
		return invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return nil
}
