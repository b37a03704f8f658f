// Package reminder provides prayer-time reminder notifications.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"imanconnect/internal/notification"
	"imanconnect/internal/prayertimes"
	"imanconnect/internal/utils"
)

// AtPrayerTime is the interval that fires when the prayer time itself arrives.
const AtPrayerTime = "at prayer time"

// atTimeGrace is how late an AtPrayerTime reminder may still fire, so a check
// that lands just after the prayer time still sends it.
const atTimeGrace = 5 * time.Minute

var intervalPattern = regexp.MustCompile(`^(\d+)\s*(h|hour|hours|m|min|minute|minutes)$`)

// Config holds the reminder configuration
type Config struct {
	Enabled   bool
	Intervals []string
}

// Due is one reminder that fired, or will fire.
type Due struct {
	Prayer   string
	Interval string
	PrayerAt time.Time
	FireAt   time.Time
}

type lead struct {
	label string
	d     time.Duration
	atDue bool
}

// Service manages prayer reminders for one timetable
type Service struct {
	config   Config
	times    prayertimes.Times
	leads    []lead
	notifier notification.NotificationManager
	now      func() time.Time
	log      *utils.Logger

	mu   sync.Mutex
	sent map[string]bool
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNotifier sets the notification manager reminders are sent through.
func WithNotifier(n notification.NotificationManager) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService creates a reminder service for times. Every interval must parse.
func NewService(cfg Config, times prayertimes.Times, opts ...Option) (*Service, error) {
	s := &Service{
		config: cfg,
		times:  times,
		now:    time.Now,
		log:    utils.GetLogger().Component("reminder"),
		sent:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, raw := range cfg.Intervals {
		d, atDue, err := ParseInterval(raw)
		if err != nil {
			return nil, err
		}
		s.leads = append(s.leads, lead{label: strings.TrimSpace(strings.ToLower(raw)), d: d, atDue: atDue})
	}
	if cfg.Enabled && len(s.leads) == 0 {
		return nil, errors.New("reminders are enabled but no intervals are configured")
	}
	return s, nil
}

// CheckReminders sends every reminder that is due now and has not been sent
// yet. At most one reminder fires per prayer per check.
func (s *Service) CheckReminders() []Due {
	if !s.config.Enabled {
		return nil
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var fired []Due
	for _, p := range s.prayersAround(now) {
		for _, l := range s.leads {
			if !l.fires(p.at, now) {
				continue
			}

			key := p.at.Format("2006-01-02") + "|" + p.name + "|" + l.label
			if s.sent[key] {
				continue
			}
			s.sent[key] = true

			due := Due{Prayer: p.name, Interval: l.label, PrayerAt: p.at, FireAt: l.fireAt(p.at)}
			fired = append(fired, due)
			s.send(due, now)

			break
		}
	}
	s.forget(now)
	return fired
}

// GetUpcomingReminders lists reminders that will fire within the longest
// configured lead time, soonest first.
func (s *Service) GetUpcomingReminders() []Due {
	if !s.config.Enabled || len(s.leads) == 0 {
		return nil
	}

	var window time.Duration
	for _, l := range s.leads {
		if l.d > window {
			window = l.d
		}
	}

	now := s.now()
	var upcoming []Due
	for _, p := range s.prayersAround(now) {
		untilPrayer := p.at.Sub(now)
		if untilPrayer < 0 || untilPrayer > window {
			continue
		}
		for _, l := range s.leads {
			fire := l.fireAt(p.at)
			if fire.Before(now) {
				continue
			}
			upcoming = append(upcoming, Due{Prayer: p.name, Interval: l.label, PrayerAt: p.at, FireAt: fire})
		}
	}
	sortDue(upcoming)
	return upcoming
}

// Run checks for due reminders every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context, every time.Duration) {
	if !s.config.Enabled {
		return
	}
	if every <= 0 {
		every = 30 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	s.CheckReminders()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckReminders()
		}
	}
}

func (s *Service) send(d Due, now time.Time) {
	msg := fmt.Sprintf("%s at %s", d.Prayer, d.PrayerAt.Format("3:04 PM"))
	if d.Interval != AtPrayerTime {
		msg = fmt.Sprintf("%s in %s (%s)", d.Prayer, d.Interval, d.PrayerAt.Format("3:04 PM"))
	}
	s.log.Info("reminder: %s", msg)
	if s.notifier == nil {
		return
	}
	n := notification.Notification{
		ID:        uuid.NewString(),
		Type:      notification.NotifyPrayerReminder,
		Title:     "Prayer Reminder",
		Message:   msg,
		Timestamp: now,
		Metadata: map[string]string{
			"prayer":   d.Prayer,
			"interval": d.Interval,
		},
	}
	if err := s.notifier.Send(n); err != nil {
		s.log.Warn("send reminder: %v", err)
	}
}

type prayerAt struct {
	name string
	at   time.Time
}

// prayersAround returns today's prayers and tomorrow's Fajr, whose reminder
// can fall before midnight.
func (s *Service) prayersAround(now time.Time) []prayerAt {
	var out []prayerAt
	for _, p := range s.times.Prayers() {
		out = append(out, prayerAt{name: p.Name, at: p.At.On(now)})
	}
	out = append(out, prayerAt{name: "Fajr", at: s.times.Fajr.On(now.AddDate(0, 0, 1))})
	return out
}

// forget drops sent marks older than a day so a long-running serve does not
// grow without bound.
func (s *Service) forget(now time.Time) {
	cutoff := now.AddDate(0, 0, -1).Format("2006-01-02")
	for key := range s.sent {
		if key[:10] < cutoff {
			delete(s.sent, key)
		}
	}
}

func (l lead) fireAt(prayer time.Time) time.Time {
	return prayer.Add(-l.d)
}

func (l lead) fires(prayer, now time.Time) bool {
	if l.atDue {
		return !now.Before(prayer) && now.Sub(prayer) < atTimeGrace
	}
	return !now.Before(prayer.Add(-l.d)) && now.Before(prayer)
}

func sortDue(ds []Due) {
	for i := 1; i < len(ds); i++ {
		for j := i; j > 0 && ds[j].FireAt.Before(ds[j-1].FireAt); j-- {
			ds[j], ds[j-1] = ds[j-1], ds[j]
		}
	}
}

// ParseInterval parses an interval string and returns the lead time.
// Returns (duration, isAtPrayerTime, error).
// Supports both shorthand formats (15m, 1h) and full word formats (15 minutes, 1 hour).
func ParseInterval(interval string) (time.Duration, bool, error) {
	interval = strings.TrimSpace(strings.ToLower(interval))

	if interval == AtPrayerTime {
		return 0, true, nil
	}

	matches := intervalPattern.FindStringSubmatch(interval)
	if matches == nil {
		return 0, false, fmt.Errorf("invalid interval format: %s", interval)
	}

	num, _ := strconv.Atoi(matches[1])
	if num == 0 {
		return 0, false, fmt.Errorf("interval must be positive: %s", interval)
	}
	switch matches[2] {
	case "h", "hour", "hours":
		return time.Duration(num) * time.Hour, false, nil
	default:
		return time.Duration(num) * time.Minute, false, nil
	}
}
