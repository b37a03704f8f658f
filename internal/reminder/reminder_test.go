package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imanconnect/internal/notification"
	"imanconnect/internal/prayertimes"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (r *recordingNotifier) Send(n notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) SendAsync(n notification.Notification) { _ = r.Send(n) }

func (r *recordingNotifier) Subscribe(notification.Recipient, notification.Listener) func() {
	return func() {}
}

func (r *recordingNotifier) Close() error { return nil }

func (r *recordingNotifier) ChannelCount() int { return 1 }

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.Local)
}

func newTestService(t *testing.T, c *clock, n notification.NotificationManager, intervals ...string) *Service {
	t.Helper()
	svc, err := NewService(Config{Enabled: true, Intervals: intervals}, prayertimes.Default(),
		WithClock(c.Now), WithNotifier(n))
	require.NoError(t, err)
	return svc
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		atTime  bool
		wantErr bool
	}{
		{"15m", 15 * time.Minute, false, false},
		{"15 minutes", 15 * time.Minute, false, false},
		{"1 min", time.Minute, false, false},
		{"1h", time.Hour, false, false},
		{"2 hours", 2 * time.Hour, false, false},
		{"At Prayer Time", 0, true, false},
		{"0m", 0, false, true},
		{"1 day", 0, false, true},
		{"soon", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, atTime, err := ParseInterval(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
			assert.Equal(t, tt.atTime, atTime)
		})
	}
}

func TestNewServiceRejectsBadIntervals(t *testing.T) {
	_, err := NewService(Config{Enabled: true, Intervals: []string{"15m", "whenever"}}, prayertimes.Default())
	assert.ErrorContains(t, err, "whenever")

	_, err = NewService(Config{Enabled: true}, prayertimes.Default())
	assert.ErrorContains(t, err, "no intervals")

	_, err = NewService(Config{Enabled: false}, prayertimes.Default())
	assert.NoError(t, err)
}

func TestCheckRemindersFiresOnce(t *testing.T) {
	c := &clock{now: at(11, 56)}
	n := &recordingNotifier{}
	svc := newTestService(t, c, n, "15m", AtPrayerTime)

	fired := svc.CheckReminders()
	require.Len(t, fired, 1)
	assert.Equal(t, "Dhuhr", fired[0].Prayer)
	assert.Equal(t, "15m", fired[0].Interval)
	assert.Equal(t, at(12, 10), fired[0].PrayerAt)
	assert.Equal(t, at(11, 55), fired[0].FireAt)

	assert.Empty(t, svc.CheckReminders(), "already sent")

	c.now = at(12, 10)
	fired = svc.CheckReminders()
	require.Len(t, fired, 1)
	assert.Equal(t, AtPrayerTime, fired[0].Interval)

	c.now = at(12, 20)
	assert.Empty(t, svc.CheckReminders(), "past the grace period")

	require.Equal(t, 2, n.count())
	assert.Equal(t, notification.NotifyPrayerReminder, n.sent[0].Type)
	assert.Equal(t, "Dhuhr in 15m (12:10 PM)", n.sent[0].Message)
	assert.Equal(t, "Dhuhr at 12:10 PM", n.sent[1].Message)
	assert.Equal(t, "Dhuhr", n.sent[1].Metadata["prayer"])
}

func TestCheckRemindersOnePerPrayerPerCheck(t *testing.T) {
	c := &clock{now: at(11, 56)}
	svc := newTestService(t, c, &recordingNotifier{}, "30m", "15m")

	first := svc.CheckReminders()
	require.Len(t, first, 1)
	assert.Equal(t, "30m", first[0].Interval)

	second := svc.CheckReminders()
	require.Len(t, second, 1)
	assert.Equal(t, "15m", second[0].Interval)

	assert.Empty(t, svc.CheckReminders())
}

func TestCheckRemindersTomorrowFajr(t *testing.T) {
	c := &clock{now: at(23, 50)}
	svc := newTestService(t, c, nil, "5h")

	fired := svc.CheckReminders()
	require.Len(t, fired, 1)
	assert.Equal(t, "Fajr", fired[0].Prayer)
	assert.Equal(t, time.Date(2025, 3, 11, 4, 15, 0, 0, time.Local), fired[0].PrayerAt)
}

func TestCheckRemindersDisabled(t *testing.T) {
	svc, err := NewService(Config{Intervals: []string{"15m"}}, prayertimes.Default(),
		WithClock(func() time.Time { return at(11, 56) }))
	require.NoError(t, err)
	assert.Nil(t, svc.CheckReminders())
	assert.Nil(t, svc.GetUpcomingReminders())
}

func TestGetUpcomingReminders(t *testing.T) {
	c := &clock{now: at(11, 20)}
	svc := newTestService(t, c, nil, "1h", "15m")

	upcoming := svc.GetUpcomingReminders()
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Dhuhr", upcoming[0].Prayer)
	assert.Equal(t, "15m", upcoming[0].Interval)
	assert.Equal(t, at(11, 55), upcoming[0].FireAt)

	c.now = at(9, 0)
	assert.Empty(t, svc.GetUpcomingReminders())
}

func TestRunStopsOnCancel(t *testing.T) {
	c := &clock{now: at(11, 56)}
	n := &recordingNotifier{}
	svc := newTestService(t, c, n, "15m")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return n.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 1, n.count())
}
