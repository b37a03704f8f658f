package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"imanconnect/internal/utils"
)

// manager implements NotificationManager
type manager struct {
	channels        []NotificationChannel
	enabled         bool
	commandExecutor CommandExecutor
	platform        string
	sendCallback    func(Notification)
	now             func() time.Time
	log             *utils.Logger

	mu        sync.RWMutex
	closed    bool
	listeners map[Recipient]map[uint64]Listener
	nextID    uint64
	pending   sync.WaitGroup
}

// NewManager creates a new NotificationManager based on configuration
func NewManager(cfg *Config, opts ...Option) (NotificationManager, error) {
	m := &manager{
		channels:  []NotificationChannel{},
		enabled:   cfg.Enabled,
		now:       time.Now,
		log:       utils.GetLogger().Component("notification"),
		listeners: make(map[Recipient]map[uint64]Listener),
	}

	// Apply options first to get command executor
	for _, opt := range opts {
		opt(m)
	}

	if !cfg.Enabled {
		return m, nil
	}

	if cfg.OSNotification.Enabled {
		var osOpts []Option
		if m.commandExecutor != nil {
			osOpts = append(osOpts, WithCommandExecutor(m.commandExecutor))
		}
		if m.platform != "" {
			osOpts = append(osOpts, WithPlatform(m.platform))
		}
		osChannel := NewOSNotificationChannel(&cfg.OSNotification, osOpts...)
		m.channels = append(m.channels, osChannel)
	}

	if cfg.LogNotification.Enabled && cfg.LogNotification.Path != "" {
		logChannel := NewLogNotificationChannel(&cfg.LogNotification)
		m.channels = append(m.channels, logChannel)
	}

	return m, nil
}

// Subscribe registers l for notifications addressed to r. Subscribing to a
// kind-wide recipient such as AllScholars() receives only broadcasts.
func (m *manager) Subscribe(r Recipient, l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	if m.listeners[r] == nil {
		m.listeners[r] = make(map[uint64]Listener)
	}
	m.listeners[r][id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.listeners[r], id)
			if len(m.listeners[r]) == 0 {
				delete(m.listeners, r)
			}
		})
	}
}

// Send dispatches notification to its subscribers and all enabled channels
func (m *manager) Send(n Notification) error {
	if !m.enabled {
		return nil
	}
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return m.deliver(n)
}

// SendAsync dispatches notification without blocking. Pending deliveries are
// drained by Close; anything sent after Close is dropped.
func (m *manager) SendAsync(n Notification) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.log.Debug("dropping %s notification after close", n.Type)
		return
	}
	m.pending.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.pending.Done()
		if err := m.deliver(n); err != nil {
			m.log.Warn("notification %s to %s: %v", n.Type, n.Recipient, err)
		}
	}()
}

func (m *manager) deliver(n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = m.now()
	}

	for _, l := range m.listenersFor(n.Recipient) {
		m.notify(l, n)
	}
	if m.sendCallback != nil {
		m.sendCallback(n)
	}

	var lastErr error
	for _, ch := range m.channels {
		if err := ch.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// listenersFor snapshots the listeners for r. A kind-wide recipient fans out to
// every listener of that kind.
func (m *manager) listenersFor(r Recipient) []Listener {
	if r.IsZero() {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Listener
	for key, set := range m.listeners {
		if key.Kind != r.Kind {
			continue
		}
		if r.ID != 0 && key.ID != r.ID {
			continue
		}
		for _, l := range set {
			out = append(out, l)
		}
	}
	return out
}

func (m *manager) notify(l Listener, n Notification) {
	defer func() {
		if p := recover(); p != nil {
			m.log.Error("listener for %s panicked: %v", n.Recipient, p)
		}
	}()
	l(n)
}

// Close drains pending async deliveries, then closes the channels
func (m *manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.pending.Wait()

	var lastErr error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ChannelCount returns the number of active channels
func (m *manager) ChannelCount() int {
	return len(m.channels)
}
