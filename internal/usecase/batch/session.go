package batch

import (
	"sync"
	"time"

	"video-batcher/internal/domain"

	"github.com/google/uuid"
)

// SessionStore holds the live sessions of this process.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

func (s *SessionStore) Create() domain.Session {
	now := s.now()
	sess := &domain.Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess.Clone()
}

func (s *SessionStore) Get(id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Update runs fn under the write lock. Changes are kept only when fn succeeds.
func (s *SessionStore) Update(id string, fn func(*domain.Session) error) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}

	draft := sess.Clone()
	if err := fn(&draft); err != nil {
		return sess.Clone(), err
	}
	draft.UpdatedAt = s.now()
	*sess = draft

	return sess.Clone(), nil
}

func (s *SessionStore) Delete(id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	delete(s.sessions, id)
	return *sess, nil
}
