package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	webchat "github.com/weops/webchat"
	"github.com/weops/webchat/store"
)

// Manager owns at most one in-memory session and keeps it persisted through
// a store adapter. Persistence is best-effort: adapter failures are logged
// and the conversation continues in memory only. Manager is safe for
// concurrent use.
type Manager struct {
	mu         sync.Mutex
	adapter    store.Adapter
	key        string
	customData map[string]any
	enabled    bool
	log        *slog.Logger
	session    *Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithAdapter sets the persistence backend. Defaults to an in-memory
// adapter.
func WithAdapter(a store.Adapter) Option {
	return func(m *Manager) { m.adapter = a }
}

// WithStorageKey overrides the storage entry key.
func WithStorageKey(key string) Option {
	return func(m *Manager) { m.key = key }
}

// WithCustomData stamps the given data onto newly created sessions.
func WithCustomData(data map[string]any) Option {
	return func(m *Manager) { m.customData = data }
}

// WithoutStorage disables persistence entirely; the session lives in memory
// only.
func WithoutStorage() Option {
	return func(m *Manager) { m.enabled = false }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a session manager. With no options it persists to an
// in-memory adapter under the default storage key.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		adapter: store.NewMemoryAdapter(),
		key:     webchat.DefaultStorageKey,
		enabled: true,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init returns the current session, creating or restoring one if none
// exists. It is idempotent: a second call without an intervening Clear
// returns the same session unchanged. When storage is enabled, a persisted
// session fresher than MaxAge is adopted (keeping its id and messages);
// otherwise a new session is created and persisted immediately.
func (m *Manager) Init(ctx context.Context, userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return m.session
	}

	if m.enabled {
		if restored := m.restore(ctx); restored != nil {
			m.session = restored
			m.log.Debug("session restored", "session_id", restored.SessionID, "messages", len(restored.Messages))
			return m.session
		}
	}

	m.session = newSession(userID, m.customData)
	m.persist(ctx)
	m.log.Debug("session created", "session_id", m.session.SessionID, "user_id", userID)
	return m.session
}

// Current returns the in-memory session, or nil if Init has not been called.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// AddMessage appends a message to the session, bumps the activity timestamp,
// and persists. Returns webchat.ErrNoSession if Init has not been called.
func (m *Manager) AddMessage(ctx context.Context, msg webchat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return webchat.ErrNoSession
	}
	m.session.Messages = append(m.session.Messages, msg)
	m.session.LastActivityTime = time.Now().UnixMilli()
	m.persist(ctx)
	return nil
}

// Messages returns a copy of the session's message history, empty if no
// session exists.
func (m *Manager) Messages() []webchat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	out := make([]webchat.Message, len(m.session.Messages))
	copy(out, m.session.Messages)
	return out
}

// Clear drops the in-memory session and removes the storage entry.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	if !m.enabled {
		return
	}
	if err := m.adapter.Delete(ctx, m.key); err != nil {
		m.log.Warn("failed to remove persisted session", "key", m.key, "error", err)
	}
}

// Save forces a persist of the current session state.
func (m *Manager) Save(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return
	}
	m.persist(ctx)
}

// restore loads the persisted session if it exists and is fresh enough.
// Every failure mode is a cache miss, not an error.
func (m *Manager) restore(ctx context.Context) *Session {
	raw, ok, err := m.adapter.Get(ctx, m.key)
	if err != nil {
		m.log.Warn("failed to read persisted session", "key", m.key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		m.log.Warn("persisted session is corrupt, ignoring", "key", m.key, "error", err)
		return nil
	}
	if s.SessionID == "" || s.Expired(time.Now()) {
		return nil
	}
	return &s
}

// persist writes the current session. Callers hold the mutex. Failures are
// logged, never returned.
func (m *Manager) persist(ctx context.Context) {
	if !m.enabled || m.session == nil {
		return
	}
	raw, err := json.Marshal(m.session)
	if err != nil {
		m.log.Warn("failed to serialize session", "session_id", m.session.SessionID, "error", err)
		return
	}
	if err := m.adapter.Set(ctx, m.key, raw); err != nil {
		m.log.Warn("failed to persist session", "key", m.key, "error", err)
	}
}
