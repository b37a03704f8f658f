package flatfile

import (
	"fmt"
	"strings"
	"time"
)

// PrayerStatus is how a single prayer was kept on a day
type PrayerStatus string

const (
	OnTime      PrayerStatus = "ON_TIME"
	Late        PrayerStatus = "LATE"
	Missed      PrayerStatus = "MISSED"
	NotRecorded PrayerStatus = "NOT_RECORDED"
)

// ParsePrayerStatus accepts the stored tokens case-insensitively, with '-'
// or ' ' in place of '_'.
func ParsePrayerStatus(s string) (PrayerStatus, error) {
	norm := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s)))
	switch PrayerStatus(norm) {
	case OnTime, Late, Missed, NotRecorded:
		return PrayerStatus(norm), nil
	}
	return NotRecorded, fmt.Errorf("unknown prayer status %q", s)
}

// PrayerNames lists the five daily prayers in order.
var PrayerNames = []string{"Fajr", "Dhuhr", "Asr", "Maghrib", "Isha"}

// PrayerDay is one line of the prayer status file
type PrayerDay struct {
	Fajr    PrayerStatus
	Dhuhr   PrayerStatus
	Asr     PrayerStatus
	Maghrib PrayerStatus
	Isha    PrayerStatus
}

// NewPrayerDay returns a day with every prayer NOT_RECORDED.
func NewPrayerDay() PrayerDay {
	return PrayerDay{Fajr: NotRecorded, Dhuhr: NotRecorded, Asr: NotRecorded, Maghrib: NotRecorded, Isha: NotRecorded}
}

// PrayerDayFromBools maps prayed to ON_TIME and not prayed to MISSED.
func PrayerDayFromBools(fajr, dhuhr, asr, maghrib, isha bool) PrayerDay {
	status := func(prayed bool) PrayerStatus {
		if prayed {
			return OnTime
		}
		return Missed
	}
	return PrayerDay{
		Fajr:    status(fajr),
		Dhuhr:   status(dhuhr),
		Asr:     status(asr),
		Maghrib: status(maghrib),
		Isha:    status(isha),
	}
}

func (d *PrayerDay) slot(name string) *PrayerStatus {
	switch strings.ToLower(name) {
	case "fajr":
		return &d.Fajr
	case "dhuhr", "zuhr":
		return &d.Dhuhr
	case "asr":
		return &d.Asr
	case "maghrib":
		return &d.Maghrib
	case "isha":
		return &d.Isha
	}
	return nil
}

// Set changes one prayer's status by name.
func (d *PrayerDay) Set(name string, status PrayerStatus) error {
	p := d.slot(name)
	if p == nil {
		return fmt.Errorf("unknown prayer %q", name)
	}
	*p = status
	return nil
}

// Statuses returns the five statuses in prayer order.
func (d PrayerDay) Statuses() []PrayerStatus {
	return []PrayerStatus{d.Fajr, d.Dhuhr, d.Asr, d.Maghrib, d.Isha}
}

// Completed counts prayers that were prayed, on time or late.
func (d PrayerDay) Completed() int {
	n := 0
	for _, s := range d.Statuses() {
		if s == OnTime || s == Late {
			n++
		}
	}
	return n
}

// Tally counts statuses over one or more days
type Tally struct {
	OnTime int
	Late   int
	Missed int
}

func (t *Tally) add(d PrayerDay) {
	for _, s := range d.Statuses() {
		switch s {
		case OnTime:
			t.OnTime++
		case Late:
			t.Late++
		case Missed:
			t.Missed++
		}
	}
}

// PrayerSummary tallies today, the last 7 days and the last 30 days, each
// window ending today.
type PrayerSummary struct {
	Today Tally
	Week  Tally
	Month Tally
}

type prayerCodec struct{}

func (prayerCodec) Encode(d PrayerDay) string {
	parts := make([]string, len(PrayerNames))
	for i, s := range d.Statuses() {
		if s == "" {
			s = NotRecorded
		}
		parts[i] = PrayerNames[i] + ":" + string(s)
	}
	return strings.Join(parts, ",")
}

func (prayerCodec) Decode(fields string) (PrayerDay, error) {
	d := NewPrayerDay()
	parts := strings.Split(fields, ",")
	if len(parts) < len(PrayerNames) {
		return d, fmt.Errorf("want %d prayer fields, got %d", len(PrayerNames), len(parts))
	}
	for _, part := range parts {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			return d, fmt.Errorf("malformed field %q", part)
		}
		status, err := ParsePrayerStatus(value)
		if err != nil {
			return d, err
		}
		if err := d.Set(name, status); err != nil {
			return d, err
		}
	}
	return d, nil
}

// PrayerStore is the daily prayer status file (salah_data.txt)
type PrayerStore struct {
	*Store[PrayerDay]
}

// NewPrayerStore opens the prayer status file at path.
func NewPrayerStore(path string, opts ...Option) *PrayerStore {
	return &PrayerStore{Store: NewStore[PrayerDay](path, prayerCodec{}, opts...)}
}

// MarkPrayer sets one of today's prayers, keeping the others.
func (p *PrayerStore) MarkPrayer(name string, status PrayerStatus) (PrayerDay, error) {
	trial := NewPrayerDay()
	if err := trial.Set(name, status); err != nil {
		return PrayerDay{}, err
	}
	return p.Update(p.Today(), func(d PrayerDay, ok bool) PrayerDay {
		if !ok {
			d = NewPrayerDay()
		}
		_ = d.Set(name, status)
		return d
	})
}

// Summary tallies statuses for today, the 7 days ending today and the 30
// days ending today.
func (p *PrayerStore) Summary() PrayerSummary {
	today := p.Today()
	var s PrayerSummary
	for _, day := range p.Range(today.AddDate(0, 0, -29), today) {
		s.Month.add(day.Record)
		if !day.Date.Before(today.AddDate(0, 0, -6)) {
			s.Week.add(day.Record)
		}
		if day.Date.Equal(today) {
			s.Today.add(day.Record)
		}
	}
	return s
}

// CompletedOn returns how many prayers were prayed on date, 0 when unrecorded.
func (p *PrayerStore) CompletedOn(date time.Time) int {
	d, ok := p.Load(date)
	if !ok {
		return 0
	}
	return d.Completed()
}
