package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/pkg/logging"
	"github.com/Xombi17/MEETease/internal/pkg/metrics"
)

type session struct {
	store  *MeetingStore
	detach func()
}

// SessionManager hosts one MeetingStore per session code in this process.
// mu guards the map only; remote calls run outside it.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session
	hydrate  singleflight.Group

	bridge   *SyncBridge
	resolver Resolver
	settings domain.Settings
}

// NewSessionManager creates a manager. bridge may be disabled; sessions are
// then local to this process.
func NewSessionManager(bridge *SyncBridge, resolver Resolver, settings domain.Settings) *SessionManager {
	if bridge == nil {
		bridge = NewSyncBridge(nil, nil)
	}
	return &SessionManager{
		sessions: make(map[string]*session),
		bridge:   bridge,
		resolver: resolver,
		settings: settings,
	}
}

// Create allocates a session code, creates the remote document and an
// attached local store.
func (m *SessionManager) Create(ctx context.Context) (string, *MeetingStore, error) {
	code, err := m.bridge.CreateSession(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSyncUnreachable) || code == "" {
			return "", nil, fmt.Errorf("create session: %w", err)
		}
		logging.FromContext(ctx).Warn("session created without remote sync", "session", code, "error", err)
	}

	return code, m.insert(code, m.attach(ctx, code)).store, nil
}

// Get returns the store for code. A session unknown locally is hydrated from
// the remote document when it exists there. Concurrent hydrations of one code
// share a single attachment.
func (m *SessionManager) Get(ctx context.Context, code string) (*MeetingStore, error) {
	code = NormalizeSessionCode(code)

	if s := m.lookup(code); s != nil {
		return s.store, nil
	}
	if !m.bridge.Enabled() {
		return nil, fmt.Errorf("session %s: %w", code, domain.ErrSessionNotFound)
	}

	v, err, _ := m.hydrate.Do(code, func() (any, error) {
		if s := m.lookup(code); s != nil {
			return s, nil
		}
		exists, err := m.bridge.Exists(ctx, code)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrSessionNotFound
		}
		return m.insert(code, m.attach(ctx, code)), nil
	})
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", code, err)
	}
	return v.(*session).store, nil
}

// Codes lists the sessions hosted locally.
func (m *SessionManager) Codes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for code := range m.sessions {
		out = append(out, code)
	}
	return out
}

// Close detaches every session from the remote backend.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.detach()
		metrics.ActiveSessions.Dec()
	}
}

func (m *SessionManager) lookup(code string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[code]
}

// attach builds a store bound to the remote session. It does not touch the map.
func (m *SessionManager) attach(ctx context.Context, code string) *session {
	store := NewMeetingStore(m.resolver, m.settings)

	// Attachments outlive the request that created them.
	detach, err := m.bridge.Attach(context.WithoutCancel(ctx), code, store, "")
	if err != nil {
		logging.FromContext(ctx).Warn("attach failed, session is local-only", "session", code, "error", err)
		detach = func() {}
	}
	return &session{store: store, detach: detach}
}

// insert registers s under code unless a session got there first, in which
// case s is detached and the existing one returned.
func (m *SessionManager) insert(code string, s *session) *session {
	m.mu.Lock()
	if cur, ok := m.sessions[code]; ok {
		m.mu.Unlock()
		s.detach()
		return cur
	}
	m.sessions[code] = s
	m.mu.Unlock()

	metrics.ActiveSessions.Inc()
	return s
}

// NormalizeSessionCode upper-cases and trims a user-supplied code.
func NormalizeSessionCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
