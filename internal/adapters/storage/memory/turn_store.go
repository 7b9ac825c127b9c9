package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/brandbot/internal/domain"
)

type TurnStore struct {
	mu    sync.RWMutex
	turns map[domain.SessionID][]*domain.Turn
}

func NewTurnStore() *TurnStore {
	return &TurnStore{
		turns: make(map[domain.SessionID][]*domain.Turn),
	}
}

func (s *TurnStore) AppendTurn(_ context.Context, turn *domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

// GetTurnsBySession returns the last limit turns in order; limit <= 0 means all.
func (s *TurnStore) GetTurnsBySession(_ context.Context, sessionID domain.SessionID, limit int) ([]*domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]*domain.Turn(nil), turns...), nil
}
