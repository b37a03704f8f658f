// Package prayertimes holds the static daily timetable for the supported
// Bangladeshi cities.
package prayertimes

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// clockLayout is the 12-hour format the timetable is written and shown in.
const clockLayout = "3:04 PM"

// ClockTime is a wall-clock time of day
type ClockTime struct {
	Hour   int
	Minute int
}

// MustParseClock parses "4:15 AM" style times. It panics on bad input and is
// meant for the static table.
func MustParseClock(s string) ClockTime {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		panic(fmt.Sprintf("prayertimes: bad clock %q: %v", s, err))
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

// On returns the time on day's date in day's location.
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

func (c ClockTime) String() string {
	return time.Date(2000, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format(clockLayout)
}

// Times is one city's timetable
type Times struct {
	Division string
	City     string
	Fajr     ClockTime
	Dhuhr    ClockTime
	Asr      ClockTime
	Maghrib  ClockTime
	Isha     ClockTime
	Suhoor   ClockTime
	Iftar    ClockTime
}

// Prayer is a named entry of the timetable
type Prayer struct {
	Name string
	At   ClockTime
}

// Prayers returns the five daily prayers in order.
func (t Times) Prayers() []Prayer {
	return []Prayer{
		{"Fajr", t.Fajr},
		{"Dhuhr", t.Dhuhr},
		{"Asr", t.Asr},
		{"Maghrib", t.Maghrib},
		{"Isha", t.Isha},
	}
}

// Next returns the first prayer strictly after now, rolling over to the next
// day's Fajr after Isha.
func (t Times) Next(now time.Time) (Prayer, time.Time) {
	for _, p := range t.Prayers() {
		at := p.At.On(now)
		if at.After(now) {
			return p, at
		}
	}
	fajr := Prayer{"Fajr", t.Fajr}
	return fajr, t.Fajr.On(now.AddDate(0, 0, 1))
}

func newTimes(division, city, fajr, dhuhr, asr, maghrib, isha, suhoor, iftar string) Times {
	return Times{
		Division: division,
		City:     city,
		Fajr:     MustParseClock(fajr),
		Dhuhr:    MustParseClock(dhuhr),
		Asr:      MustParseClock(asr),
		Maghrib:  MustParseClock(maghrib),
		Isha:     MustParseClock(isha),
		Suhoor:   MustParseClock(suhoor),
		Iftar:    MustParseClock(iftar),
	}
}

// table is keyed by lower-cased "division/city".
var table = map[string]Times{
	"dhaka/dhaka":           newTimes("Dhaka", "Dhaka", "4:15 AM", "12:10 PM", "4:45 PM", "6:30 PM", "7:45 PM", "4:00 AM", "6:30 PM"),
	"chittagong/chittagong": newTimes("Chittagong", "Chittagong", "4:20 AM", "12:15 PM", "4:50 PM", "6:35 PM", "7:50 PM", "4:05 AM", "6:35 PM"),
}

func key(division, city string) string {
	return strings.ToLower(strings.TrimSpace(division)) + "/" + strings.ToLower(strings.TrimSpace(city))
}

// Default returns the Dhaka timetable.
func Default() Times {
	return table["dhaka/dhaka"]
}

// Lookup returns the timetable for a division and city. Unknown locations get
// the Dhaka times and found is false.
func Lookup(division, city string) (t Times, found bool) {
	if t, ok := table[key(division, city)]; ok {
		return t, true
	}
	return Default(), false
}

// Locations lists the supported "Division/City" pairs, sorted.
func Locations() []string {
	out := make([]string, 0, len(table))
	for _, t := range table {
		out = append(out, t.Division+"/"+t.City)
	}
	sort.Strings(out)
	return out
}
