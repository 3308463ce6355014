package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"morse-quiz-service/internal/app"
	"morse-quiz-service/internal/metrics"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions stay in a local map; the controller and its mutex live in process.
//   - Redis holds a JSON checkpoint of each session's latest snapshot. It outlives
//     the live session until the TTL runs out, so a user who reconnects (here or
//     on another instance) gets their input and question timer back.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	log      *zap.Logger
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	session *app.Session
	refs    int
}

// Checkpoint is the persisted view of a session.
type Checkpoint struct {
	UserID    string    `json:"userId"`
	State     app.State `json:"state"`
	Index     int       `json:"index"`
	Input     string    `json:"input"`
	StartedAt time.Time `json:"startedAt"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log *zap.Logger) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      log,
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

// Checkpoint writes the snapshot to Redis; failures are logged, not returned.
func (s *SessionStore) Checkpoint(ctx context.Context, snap app.Snapshot) {
	data, err := json.Marshal(Checkpoint{
		UserID:    snap.UserID,
		State:     snap.State,
		Index:     snap.Index,
		Input:     snap.Input,
		StartedAt: snap.StartedAt,
		Completed: len(snap.Progress.Completed),
		Total:     len(snap.Questions),
	})
	if err != nil {
		s.log.Warn("encode session checkpoint", zap.Error(err))
		return
	}
	if err := s.client.Set(ctx, s.key(snap.UserID), data, s.ttl).Err(); err != nil {
		s.log.Warn("write session checkpoint",
			zap.String("user_id", snap.UserID),
			zap.Error(err),
		)
	}
}

// Load reads the last checkpoint stored for userID.
func (s *SessionStore) Load(ctx context.Context, userID string) (Checkpoint, error) {
	var cp Checkpoint
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		return cp, err
	}
	err = json.Unmarshal(data, &cp)
	return cp, err
}

// Restore hands back the input and timer of an active checkpoint.
func (s *SessionStore) Restore(ctx context.Context, userID string) (app.Resume, bool) {
	cp, err := s.Load(ctx, userID)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("read session checkpoint", zap.String("user_id", userID), zap.Error(err))
		}
		return app.Resume{}, false
	}
	if cp.State != app.StateActive {
		return app.Resume{}, false
	}
	return app.Resume{Index: cp.Index, Input: cp.Input, StartedAt: cp.StartedAt}, true
}

// Release drops one reference. The checkpoint stays in Redis until it expires.
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

func (s *SessionStore) key(userID string) string {
	return "morse:session:" + userID
}
