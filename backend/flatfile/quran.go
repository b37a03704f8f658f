package flatfile

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultQuranGoal is the daily page goal when none has been set.
const DefaultQuranGoal = 10

// QuranDay is one line of the Quran pages file
type QuranDay struct {
	PagesRead int
	DailyGoal int
}

// Progress is pages read over the goal, 0 when the goal is not positive.
func (d QuranDay) Progress() float64 {
	if d.DailyGoal <= 0 {
		return 0
	}
	return float64(d.PagesRead) / float64(d.DailyGoal)
}

// GoalMet reports whether the day's goal was reached.
func (d QuranDay) GoalMet() bool {
	return d.DailyGoal > 0 && d.PagesRead >= d.DailyGoal
}

type quranCodec struct{}

func (quranCodec) Encode(d QuranDay) string {
	return strconv.Itoa(d.PagesRead) + "," + strconv.Itoa(d.DailyGoal)
}

func (quranCodec) Decode(fields string) (QuranDay, error) {
	parts := strings.Split(fields, ",")
	if len(parts) < 2 {
		return QuranDay{}, fmt.Errorf("want pages and goal, got %q", fields)
	}
	pages, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return QuranDay{}, fmt.Errorf("pages: %w", err)
	}
	goal, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return QuranDay{}, fmt.Errorf("goal: %w", err)
	}
	return QuranDay{PagesRead: pages, DailyGoal: goal}, nil
}

// QuranStore is the daily Quran pages file (quran_data.txt)
type QuranStore struct {
	*Store[QuranDay]
	defaultGoal int
}

// NewQuranStore opens the Quran pages file at path. A defaultGoal <= 0 means
// DefaultQuranGoal.
func NewQuranStore(path string, defaultGoal int, opts ...Option) *QuranStore {
	if defaultGoal <= 0 {
		defaultGoal = DefaultQuranGoal
	}
	return &QuranStore{Store: NewStore[QuranDay](path, quranCodec{}, opts...), defaultGoal: defaultGoal}
}

// TodayRecord returns today's record, or an empty day with the default goal.
func (q *QuranStore) TodayRecord() QuranDay {
	d, ok := q.LoadToday()
	if !ok {
		return QuranDay{DailyGoal: q.defaultGoal}
	}
	return d
}

// AddPages adds n pages to today's count.
func (q *QuranStore) AddPages(n int) (QuranDay, error) {
	if n < 0 {
		return QuranDay{}, fmt.Errorf("pages must not be negative: %d", n)
	}
	return q.Update(q.Today(), func(d QuranDay, ok bool) QuranDay {
		if !ok {
			d = QuranDay{DailyGoal: q.defaultGoal}
		}
		d.PagesRead += n
		return d
	})
}

// SetGoal changes today's goal, keeping the pages already read.
func (q *QuranStore) SetGoal(goal int) (QuranDay, error) {
	if goal <= 0 {
		return QuranDay{}, fmt.Errorf("goal must be positive: %d", goal)
	}
	return q.Update(q.Today(), func(d QuranDay, _ bool) QuranDay {
		d.DailyGoal = goal
		return d
	})
}
