package memory

import (
	"context"
	"sync"

	"morse-quiz-service/internal/app"
	"morse-quiz-service/internal/metrics"
)

type sessionEntry struct {
	session *app.Session
	refs    int
}

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *SessionStore) GetOrCreate(userID string, create func() *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[userID]
	if !ok {
		entry = &sessionEntry{session: create()}
		s.sessions[userID] = entry
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
	entry.refs++
	return entry.session
}

func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	return entry.session, true
}

// Checkpoint is a no-op; the session itself is the only copy.
func (s *SessionStore) Checkpoint(context.Context, app.Snapshot) {}

// Restore never finds anything; nothing outlives the session here.
func (s *SessionStore) Restore(context.Context, string) (app.Resume, bool) {
	return app.Resume{}, false
}

func (s *SessionStore) Release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[userID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(s.sessions, userID)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
}
