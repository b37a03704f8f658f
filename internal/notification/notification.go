// Package notification delivers fatwa and backup events to in-process
// subscribers, an append-only log file and the desktop.
package notification

import (
	"errors"
	"fmt"
	"time"

	"imanconnect/internal/config"
)

// NotificationType identifies the type of notification
type NotificationType string

const (
	NotifyQuestionSubmitted NotificationType = "question_submitted"
	NotifyQuestionAnswered  NotificationType = "question_answered"
	NotifyQuestionRejected  NotificationType = "question_rejected"
	NotifyBackupCompleted   NotificationType = "backup_completed"
	NotifyBackupFailed      NotificationType = "backup_failed"
	NotifyPrayerReminder    NotificationType = "prayer_reminder"
	NotifyTest              NotificationType = "test"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("notification manager closed")

// RecipientKind separates scholar ids from member ids, which share no key space.
type RecipientKind string

const (
	RecipientScholar RecipientKind = "SCHOLAR"
	RecipientUser    RecipientKind = "USER"
)

// Recipient addresses a notification. A zero ID with a kind set reaches every
// subscriber of that kind. The zero Recipient reaches no subscriber and is only
// written to the channels.
type Recipient struct {
	Kind RecipientKind
	ID   int64
}

// Scholar addresses the scholar with the given id.
func Scholar(id int64) Recipient { return Recipient{Kind: RecipientScholar, ID: id} }

// User addresses the member account with the given id.
func User(id int64) Recipient { return Recipient{Kind: RecipientUser, ID: id} }

// AllScholars addresses every subscribed scholar.
func AllScholars() Recipient { return Recipient{Kind: RecipientScholar} }

// IsZero reports whether r addresses nobody.
func (r Recipient) IsZero() bool { return r.Kind == "" }

// String renders the registry key, e.g. SCHOLAR_3.
func (r Recipient) String() string {
	if r.IsZero() {
		return "-"
	}
	if r.ID == 0 {
		return string(r.Kind) + "_*"
	}
	return fmt.Sprintf("%s_%d", r.Kind, r.ID)
}

// Notification represents a notification to be sent
type Notification struct {
	ID        string
	Type      NotificationType
	Recipient Recipient
	Title     string
	Message   string
	Timestamp time.Time
	Metadata  map[string]string
}

// Listener receives notifications for a subscribed recipient. It runs on the
// sending goroutine and must not block.
type Listener func(Notification)

// NotificationManager is the interface for managing notifications
type NotificationManager interface {
	Send(n Notification) error
	SendAsync(n Notification)
	Subscribe(r Recipient, l Listener) (unsubscribe func())
	Close() error
	ChannelCount() int
}

// NotificationChannel is the interface for a notification channel
type NotificationChannel interface {
	Send(n Notification) error
	Close() error
}

// Config holds the notification configuration
type Config struct {
	Enabled         bool
	OSNotification  OSNotificationConfig
	LogNotification LogNotificationConfig
}

// OSNotificationConfig holds desktop notification configuration
type OSNotificationConfig struct {
	Enabled         bool
	OnQuestion      bool
	OnAnswer        bool
	OnBackupFailure bool
}

// LogNotificationConfig holds log notification configuration
type LogNotificationConfig struct {
	Enabled   bool
	Path      string
	MaxSizeMB int
}

// ConfigFrom maps the application's notification section.
func ConfigFrom(c config.NotificationConfig) *Config {
	return &Config{
		Enabled: c.Enabled,
		OSNotification: OSNotificationConfig{
			Enabled:         c.Desktop.Enabled,
			OnQuestion:      c.Desktop.OnQuestion,
			OnAnswer:        c.Desktop.OnAnswer,
			OnBackupFailure: c.Desktop.OnBackupFailure,
		},
		LogNotification: LogNotificationConfig{
			Enabled:   c.LogEnabled,
			Path:      c.LogPath,
			MaxSizeMB: c.MaxSizeMB,
		},
	}
}

// CommandExecutor is the interface for executing system commands
type CommandExecutor interface {
	Execute(cmd string, args ...string) error
}

// MockCommandExecutor is a mock implementation of CommandExecutor for testing
type MockCommandExecutor struct {
	ExecuteFunc func(cmd string, args ...string) error
}

// Execute implements CommandExecutor
func (m *MockCommandExecutor) Execute(cmd string, args ...string) error {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(cmd, args...)
	}
	return nil
}

// Option is a functional option for configuring notification channels
type Option func(interface{})

// WithCommandExecutor sets a custom command executor
func WithCommandExecutor(executor CommandExecutor) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.executor = executor
		}
		if mgr, ok := c.(*manager); ok {
			mgr.commandExecutor = executor
		}
	}
}

// WithPlatform sets the platform for OS notifications
func WithPlatform(platform string) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.platform = platform
		}
		if mgr, ok := c.(*manager); ok {
			mgr.platform = platform
		}
	}
}

// WithSendCallback sets a callback to be called when a notification is sent
func WithSendCallback(callback func(Notification)) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.sendCallback = callback
		}
		if mgr, ok := c.(*manager); ok {
			mgr.sendCallback = callback
		}
	}
}

// WithClock overrides the timestamp source used for notifications sent without one.
func WithClock(now func() time.Time) Option {
	return func(c interface{}) {
		if mgr, ok := c.(*manager); ok {
			mgr.now = now
		}
	}
}
