// Package credentials keeps the logged-in ImanConnect identity between CLI
// invocations, in the OS keyring with an environment variable fallback.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source indicates where a session was loaded from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// Role of the logged-in identity
type Role string

const (
	RoleMember  Role = "member"
	RoleScholar Role = "scholar"
)

const (
	// ServiceName is the keyring service the session is stored under.
	ServiceName = "imanconnect"
	sessionKey  = "session"

	// EnvUser names an account to act as when no keyring session exists.
	EnvUser = "IMANCONNECT_USER"
	// EnvRole optionally marks EnvUser as a scholar.
	EnvRole = "IMANCONNECT_ROLE"
)

// ErrNoSession is returned by Load when nobody is logged in
var ErrNoSession = errors.New("no active session")

// Session is the identity a CLI invocation acts as
type Session struct {
	Username   string    `json:"username"`
	Role       Role      `json:"role"`
	AccountID  int64     `json:"account_id,omitempty"`
	ScholarID  int64     `json:"scholar_id,omitempty"`
	Token      string    `json:"token"`
	LoggedInAt time.Time `json:"logged_in_at"`
	Source     Source    `json:"-"`
}

// IsScholar reports whether the session belongs to a scholar login
func (s *Session) IsScholar() bool {
	return s.Role == RoleScholar
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles session operations
type Manager struct {
	keyring Keyring
	getenv  func(string) string
	now     func() time.Time
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithEnv replaces os.Getenv for the environment fallback
func WithEnv(getenv func(string) string) ManagerOption {
	return func(m *Manager) {
		m.getenv = getenv
	}
}

// WithClock sets the clock used to stamp new sessions
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new session manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
		getenv:  os.Getenv,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save starts a session for username and stores it in the keyring. A fresh
// token is generated for every login.
func (m *Manager) Save(ctx context.Context, s Session) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Username) == "" {
		return nil, fmt.Errorf("session username is empty")
	}
	if s.Role == "" {
		s.Role = RoleMember
	}
	s.Token = uuid.NewString()
	s.LoggedInAt = m.now().UTC()
	s.Source = SourceKeyring

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := m.keyring.Set(ServiceName, sessionKey, string(data)); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &s, nil
}

// Load returns the current session: the keyring first, then IMANCONNECT_USER.
// ErrNoSession means neither holds an identity.
func (m *Manager) Load(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := m.keyring.Get(ServiceName, sessionKey)
	if err == nil && raw != "" {
		var s Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		s.Source = SourceKeyring
		return &s, nil
	}
	if err != nil && !errors.Is(err, ErrSecretNotFound) && !errors.Is(err, ErrKeyringNotAvailable) {
		return nil, err
	}

	if user := strings.TrimSpace(m.getenv(EnvUser)); user != "" {
		role := RoleMember
		if strings.EqualFold(m.getenv(EnvRole), string(RoleScholar)) {
			role = RoleScholar
		}
		return &Session{Username: user, Role: role, Source: SourceEnvironment}, nil
	}
	return nil, ErrNoSession
}

// Clear removes the stored session. Clearing with no session is not an error.
func (m *Manager) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.keyring.Delete(ServiceName, sessionKey)
	if err != nil && errors.Is(err, ErrSecretNotFound) {
		return nil
	}
	return err
}
