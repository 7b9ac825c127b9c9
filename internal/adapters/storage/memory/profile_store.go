package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/PabloGalante/brandbot/internal/domain"
)

// ProfileStore keeps workspaces in process memory.
type ProfileStore struct {
	mu     sync.RWMutex
	spaces map[domain.Token]*domain.Workspace
	saves  int
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{spaces: make(map[domain.Token]*domain.Workspace)}
}

func (s *ProfileStore) Load(_ context.Context, token domain.Token) (*domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.spaces[token]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", token.Short(), domain.ErrNotFound)
	}
	return ws.Clone(), nil
}

func (s *ProfileStore) Save(_ context.Context, token domain.Token, ws *domain.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spaces[token] = ws.Clone()
	s.saves++
	return nil
}

// Saves reports how many writes were performed.
func (s *ProfileStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
