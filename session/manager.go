package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// AlertPrefix marks broadcast notifications inside a conversation.
const AlertPrefix = "🔔 **Alert:** "

// Manager is the single source of truth for which sessions exist and which
// one is active. One persistent session exists per role: selecting a role
// resumes its session when present and creates a fresh one otherwise.
//
// All mutations are expressed as read-modify-write against the store so that
// an in-flight dispatch and an inbound alert for the same session serialize
// through the same update path.
type Manager struct {
	store Store

	mu       sync.Mutex
	activeID string
	inflight map[string]bool // keyed by session ID at dispatch time
}

// NewManager creates a manager on top of the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:    store,
		inflight: make(map[string]bool),
	}
}

func greeting(role Role) string {
	return fmt.Sprintf("Hello! I'm your AI assistant for the **%s** role. How can I help you today?", role)
}

// Sessions returns the collection, most recently active first.
func (m *Manager) Sessions() []ChatSession {
	return m.store.List()
}

// Active returns the currently displayed session, if any.
func (m *Manager) Active() (ChatSession, bool) {
	m.mu.Lock()
	id := m.activeID
	m.mu.Unlock()

	if id == "" {
		return ChatSession{}, false
	}
	return m.store.Get(id)
}

// StartNewChat makes the role's session active, creating it with a greeting
// message when none exists yet. New sessions get a fresh unique ID and are
// inserted at the head of the collection.
func (m *Manager) StartNewChat(role Role) (ChatSession, error) {
	if !role.Valid() {
		return ChatSession{}, ErrUnknownRole
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.store.FindByRole(role); ok {
		m.activeID = existing.SessionID
		return existing, nil
	}

	sess := ChatSession{
		SessionID: NewSessionID(role),
		Role:      role,
		Messages:  []Message{{Role: MessageRoleAssistant, Content: greeting(role)}},
		Timestamp: time.Now(),
	}
	if err := m.store.Put(sess); err != nil {
		return ChatSession{}, err
	}

	m.activeID = sess.SessionID
	slog.Info("session created", "sessionId", sess.SessionID, "role", role)
	return sess, nil
}

// LoadChat makes the given session active. Unknown IDs are a silent no-op.
func (m *Manager) LoadChat(sessionID string) {
	if _, ok := m.store.Get(sessionID); !ok {
		return
	}

	m.mu.Lock()
	m.activeID = sessionID
	m.mu.Unlock()
}

// DeleteChat removes the session. Deleting the active session clears the
// active selection; unknown IDs are a no-op.
func (m *Manager) DeleteChat(sessionID string) error {
	if err := m.store.Delete(sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	if m.activeID == sessionID {
		m.activeID = ""
	}
	m.mu.Unlock()
	return nil
}

// ClearAllHistory empties the collection and clears the active session.
// Destructive and irreversible; interactive surfaces must confirm first.
func (m *Manager) ClearAllHistory() error {
	if err := m.store.Clear(); err != nil {
		return err
	}

	m.mu.Lock()
	m.activeID = ""
	m.mu.Unlock()
	return nil
}

// GoHome clears the active session without touching the collection.
func (m *Manager) GoHome() {
	m.mu.Lock()
	m.activeID = ""
	m.mu.Unlock()
}

// InFlight reports whether a dispatch is pending for the session.
func (m *Manager) InFlight(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight[sessionID]
}

// BeginDispatch is phase one of a send: it rejects no-op sends (blank text,
// no active session, dispatch already pending), appends the user message and
// marks the active session's dispatch as in flight. The returned snapshot is
// the session the reply must be delivered to, even if the user navigates
// away before it arrives.
func (m *Manager) BeginDispatch(text string) (ChatSession, error) {
	if strings.TrimSpace(text) == "" {
		return ChatSession{}, ErrEmptyMessage
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeID == "" {
		return ChatSession{}, ErrNoActiveSession
	}
	sess, ok := m.store.Get(m.activeID)
	if !ok {
		return ChatSession{}, ErrNoActiveSession
	}
	if m.inflight[sess.SessionID] {
		return ChatSession{}, ErrDispatchInFlight
	}

	sess.Messages = append(sess.Messages, Message{Role: MessageRoleUser, Content: text})
	sess.Timestamp = time.Now()
	if err := m.store.Put(sess); err != nil {
		return ChatSession{}, err
	}

	m.inflight[sess.SessionID] = true
	return sess, nil
}

// CompleteDispatch is phase two: it appends the assistant reply (or error
// text) to the dispatched session and clears its in-flight flag. The flag is
// cleared even when the session was deleted mid-flight, in which case the
// reply is dropped.
func (m *Manager) CompleteDispatch(sessionID, reply string) (ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.inflight, sessionID)

	sess, ok := m.store.Get(sessionID)
	if !ok {
		slog.Info("dispatched session no longer exists, dropping reply", "sessionId", sessionID)
		return ChatSession{}, ErrSessionNotFound
	}

	sess.Messages = append(sess.Messages, Message{Role: MessageRoleAssistant, Content: reply})
	sess.Timestamp = time.Now()
	if err := m.store.Put(sess); err != nil {
		return ChatSession{}, err
	}
	return sess, nil
}

// ApplyAlert surfaces a broadcast notification into the role's session,
// creating a session holding only the alert when none exists. The collection
// order follows the bumped timestamp.
func (m *Manager) ApplyAlert(role Role, content string) (ChatSession, error) {
	if !role.Valid() {
		return ChatSession{}, ErrUnknownRole
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	alert := Message{Role: MessageRoleAssistant, Content: AlertPrefix + content}

	sess, ok := m.store.FindByRole(role)
	if !ok {
		sess = ChatSession{
			SessionID: NewSessionID(role),
			Role:      role,
			Messages:  []Message{alert},
			Timestamp: time.Now(),
		}
		if err := m.store.Put(sess); err != nil {
			return ChatSession{}, err
		}
		return sess, nil
	}

	sess.Messages = append(sess.Messages, alert)
	sess.Timestamp = time.Now()
	if err := m.store.Put(sess); err != nil {
		return ChatSession{}, err
	}
	return sess, nil
}
