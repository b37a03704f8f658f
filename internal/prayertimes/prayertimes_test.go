package prayertimes

import (
	"testing"
	"time"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		division, city string
		wantCity       string
		wantFound      bool
		wantFajr       string
	}{
		{"Dhaka", "Dhaka", "Dhaka", true, "4:15 AM"},
		{"chittagong", " CHITTAGONG ", "Chittagong", true, "4:20 AM"},
		{"Sylhet", "Sylhet", "Dhaka", false, "4:15 AM"},
		{"", "", "Dhaka", false, "4:15 AM"},
	}
	for _, tt := range tests {
		got, found := Lookup(tt.division, tt.city)
		if found != tt.wantFound || got.City != tt.wantCity {
			t.Errorf("Lookup(%q, %q) = %s, %v; want %s, %v", tt.division, tt.city, got.City, found, tt.wantCity, tt.wantFound)
		}
		if got.Fajr.String() != tt.wantFajr {
			t.Errorf("Lookup(%q, %q).Fajr = %s, want %s", tt.division, tt.city, got.Fajr, tt.wantFajr)
		}
	}
}

func TestTimetableIncludesRamadanTimes(t *testing.T) {
	dhaka := Default()
	if dhaka.Suhoor.String() != "4:00 AM" || dhaka.Iftar.String() != "6:30 PM" {
		t.Errorf("unexpected suhoor/iftar %s/%s", dhaka.Suhoor, dhaka.Iftar)
	}
	if dhaka.Dhuhr.String() != "12:10 PM" {
		t.Errorf("Dhuhr = %s", dhaka.Dhuhr)
	}
}

func TestNext(t *testing.T) {
	loc := time.FixedZone("BST", 6*3600)
	dhaka := Default()

	tests := []struct {
		name     string
		now      time.Time
		wantName string
		wantAt   time.Time
	}{
		{"before fajr", time.Date(2026, 3, 1, 3, 0, 0, 0, loc), "Fajr", time.Date(2026, 3, 1, 4, 15, 0, 0, loc)},
		{"exactly at dhuhr", time.Date(2026, 3, 1, 12, 10, 0, 0, loc), "Asr", time.Date(2026, 3, 1, 16, 45, 0, 0, loc)},
		{"afternoon", time.Date(2026, 3, 1, 17, 0, 0, 0, loc), "Maghrib", time.Date(2026, 3, 1, 18, 30, 0, 0, loc)},
		{"after isha", time.Date(2026, 3, 1, 22, 0, 0, 0, loc), "Fajr", time.Date(2026, 3, 2, 4, 15, 0, 0, loc)},
		{"month end rollover", time.Date(2026, 3, 31, 23, 59, 0, 0, loc), "Fajr", time.Date(2026, 4, 1, 4, 15, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, at := dhaka.Next(tt.now)
			if p.Name != tt.wantName || !at.Equal(tt.wantAt) {
				t.Errorf("Next(%v) = %s at %v, want %s at %v", tt.now, p.Name, at, tt.wantName, tt.wantAt)
			}
		})
	}
}

func TestLocations(t *testing.T) {
	got := Locations()
	if len(got) != 2 || got[0] != "Chittagong/Chittagong" || got[1] != "Dhaka/Dhaka" {
		t.Errorf("Locations() = %v", got)
	}
}

func TestMustParseClockPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a malformed time")
		}
	}()
	MustParseClock("25:99")
}
