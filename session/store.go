package session

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// historyFile is the fixed name of the persisted collection document.
const historyFile = "chat_history.json"

// Store is the durable home of the session collection.
type Store interface {
	// List returns all sessions sorted by Timestamp descending. Ties keep
	// their original relative order.
	List() []ChatSession
	Get(sessionID string) (ChatSession, bool)
	FindByRole(role Role) (ChatSession, bool)

	// Put inserts the session or replaces the one with the same ID, then
	// persists the whole collection.
	Put(sess ChatSession) error
	// Delete removes the session. Unknown IDs are a no-op.
	Delete(sessionID string) error
	// Clear empties the collection and removes the persisted document.
	Clear() error
	// Reload replaces the in-memory collection with the persisted one.
	Reload() error

	SetOnChangeListener(listener OnChangeListener)
	Path() string
}

// FileStore persists the whole collection as a single JSON document. It is
// NOT safe for multiple instances sharing the same dataDir; use one instance
// per data directory.
type FileStore struct {
	dataDir   string
	mu        sync.RWMutex
	sessions  []ChatSession // in-memory copy, sorted by Timestamp desc
	lastSaved []byte        // serialized form of the last persist, nil when removed
	listener  OnChangeListener
}

// NewFileStore loads the persisted collection from dataDir. A missing or
// malformed document yields an empty collection; malformed input is logged
// and swallowed, never propagated.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	store := &FileStore{dataDir: dataDir}
	store.lastSaved, store.sessions = store.readFromDisk()
	sortByTimestamp(store.sessions)
	return store, nil
}

// Path returns the location of the persisted document.
func (s *FileStore) Path() string {
	return filepath.Join(s.dataDir, historyFile)
}

func (s *FileStore) readFromDisk() ([]byte, []ChatSession) {
	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return nil, []ChatSession{}
	}
	if err != nil {
		slog.Warn("could not read chat history", "path", s.Path(), "error", err)
		return nil, []ChatSession{}
	}

	var sessions []ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		slog.Warn("could not parse chat history, starting empty", "path", s.Path(), "error", err)
		return data, []ChatSession{}
	}
	return data, sessions
}

// persist writes the whole collection in one call. An empty collection
// removes the document instead of writing an empty array.
func (s *FileStore) persist() error {
	if len(s.sessions) == 0 {
		if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
			return err
		}
		s.lastSaved = nil
		return nil
	}

	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path(), data, 0644); err != nil {
		return err
	}
	s.lastSaved = data
	return nil
}

func sortByTimestamp(sessions []ChatSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.After(sessions[j].Timestamp)
	})
}

func (s *FileStore) SetOnChangeListener(listener OnChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = listener
}

func (s *FileStore) notifyChange(event ChangeEvent) {
	if s.listener != nil {
		s.listener.OnSessionChange(event)
	}
}

func (s *FileStore) List() []ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ChatSession, len(s.sessions))
	copy(result, s.sessions)
	return result
}

func (s *FileStore) Get(sessionID string) (ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.SessionID == sessionID {
			return sess, true
		}
	}
	return ChatSession{}, false
}

func (s *FileStore) FindByRole(role Role) (ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.Role == role {
			return sess, true
		}
	}
	return ChatSession{}, false
}

func (s *FileStore) Put(sess ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.sessions
	op := OperationCreate
	replaced := false
	next := make([]ChatSession, 0, len(prev)+1)
	for _, existing := range prev {
		if existing.SessionID == sess.SessionID {
			next = append(next, sess)
			replaced = true
			op = OperationUpdate
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append([]ChatSession{sess}, next...)
	}
	sortByTimestamp(next)

	s.sessions = next
	if err := s.persist(); err != nil {
		s.sessions = prev
		return err
	}

	s.notifyChange(ChangeEvent{Op: op, Session: sess})
	return nil
}

func (s *FileStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.sessions
	next := make([]ChatSession, 0, len(prev))
	found := false
	for _, sess := range prev {
		if sess.SessionID == sessionID {
			found = true
			continue
		}
		next = append(next, sess)
	}
	if !found {
		return nil
	}

	s.sessions = next
	if err := s.persist(); err != nil {
		s.sessions = prev
		return err
	}

	s.notifyChange(ChangeEvent{Op: OperationDelete, Session: ChatSession{SessionID: sessionID}})
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.sessions
	s.sessions = []ChatSession{}
	if err := s.persist(); err != nil {
		s.sessions = prev
		return err
	}

	s.notifyChange(ChangeEvent{Op: OperationReset})
	return nil
}

// Reload replaces the in-memory collection with the on-disk document. A
// document byte-identical to the store's own last write is skipped, so the
// watcher does not echo the server's saves back as resets.
func (s *FileStore) Reload() error {
	s.mu.Lock()
	raw, sessions := s.readFromDisk()
	if bytes.Equal(raw, s.lastSaved) {
		s.mu.Unlock()
		return nil
	}
	sortByTimestamp(sessions)
	s.sessions = sessions
	s.lastSaved = raw
	s.mu.Unlock()

	s.notifyChange(ChangeEvent{Op: OperationReset})
	return nil
}
