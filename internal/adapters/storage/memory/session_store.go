package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/PabloGalante/brandbot/internal/domain"
)

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

func (s *SessionStore) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return errors.New("session already exists")
	}

	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *SessionStore) UpdateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; !exists {
		return fmt.Errorf("session %s: %w", session.ID, domain.ErrNotFound)
	}

	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	cp := *sess
	return &cp, nil
}

// ListSessionsByToken returns the token's sessions, newest first.
func (s *SessionStore) ListSessionsByToken(_ context.Context, token domain.Token, limit int) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Session
	for _, sess := range s.sessions {
		if sess.Token == token {
			cp := *sess
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}
