package session

import (
	"context"
	"sync"
	"time"

	"cartsync/pkg/domain"
	"cartsync/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in process; the fallback when Redis is not
// configured. Expiry is enforced lazily on lookup.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
}

// NewInMemory constructs an empty in-memory session store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[domain.SessionID]*Session)}
}

func (s *InMemoryStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if sess.Expired(time.Now()) {
		return nil, sentinel.ErrExpired
	}
	cp := *sess
	return &cp, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
