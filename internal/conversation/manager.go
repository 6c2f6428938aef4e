package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/lingua/internal/catalog"
	"github.com/felixgeelhaar/lingua/internal/domain"
)

// Manager owns the live sessions, at most one per learner
type Manager struct {
	deps    Deps
	catalog catalog.Catalog

	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]string
}

// NewManager creates a session manager
func NewManager(cat catalog.Catalog, deps Deps) *Manager {
	return &Manager{
		deps:     deps.withDefaults(),
		catalog:  cat,
		sessions: make(map[string]*Session),
		byUser:   make(map[string]string),
	}
}

// Start opens a conversation on topicID. A session the learner already has
// open is torn down as abandoned first.
func (m *Manager) Start(ctx context.Context, userID, topicID, levelTag string) (*Session, error) {
	if userID == "" {
		return nil, domain.Invalidf("user id is required")
	}
	topic, err := m.catalog.Topic(topicID)
	if err != nil {
		return nil, err
	}

	s := NewSession(userID, topic.ID, topic.Title, levelTag, m.deps)

	m.mu.Lock()
	var previous *Session
	if id, ok := m.byUser[userID]; ok {
		previous = m.sessions[id]
		delete(m.sessions, id)
	}
	m.sessions[s.ID] = s
	m.byUser[userID] = s.ID
	m.mu.Unlock()

	if previous != nil {
		m.deps.Logger.Info("replacing open session", "user_id", userID, "session_id", previous.ID)
		if _, err := previous.teardown(ctx, true); err != nil {
			m.deps.Logger.Warn("teardown of replaced session failed", "session_id", previous.ID, "error", err)
		}
	}

	s.Start(ctx)
	return s, nil
}

// Get returns a live session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// View returns a live session's snapshot, falling back to the archive for
// ended sessions.
func (m *Manager) View(ctx context.Context, id string) (*View, error) {
	s, err := m.Get(id)
	if err == nil {
		return s.Snapshot(), nil
	}
	if m.deps.Archive != nil && errors.Is(err, domain.ErrNotFound) {
		return m.deps.Archive.Get(ctx, id)
	}
	return nil, err
}

// ForUser returns the learner's open session, if any
func (m *Manager) ForUser(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byUser[userID]
	if !ok {
		return nil, false
	}
	return m.sessions[id], true
}

// Leave requests to leave a session and tears it down when that is allowed
// without confirmation.
func (m *Manager) Leave(ctx context.Context, id string) (LeaveDecision, *TeardownResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return LeaveAllowed, nil, err
	}

	decision, err := s.RequestLeave()
	if err != nil || decision == LeaveNeedsConfirmation {
		return decision, nil, err
	}

	res, err := s.Teardown(ctx)
	m.forget(s)
	return decision, res, err
}

// ConfirmLeave answers a pending leave request on a session
func (m *Manager) ConfirmLeave(ctx context.Context, id string, discard bool) (*TeardownResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	res, err := s.ConfirmLeave(ctx, discard)
	if discard && err == nil {
		m.forget(s)
	}
	return res, err
}

// Active returns the number of live sessions
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close abandons every live session
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.byUser = make(map[string]string)
	m.mu.Unlock()

	for _, s := range sessions {
		if _, err := s.teardown(ctx, true); err != nil {
			m.deps.Logger.Warn("teardown on close failed", "session_id", s.ID, "error", err)
		}
	}
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, s.ID)
	if m.byUser[s.UserID] == s.ID {
		delete(m.byUser, s.UserID)
	}
}
