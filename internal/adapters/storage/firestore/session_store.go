package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/brandbot/internal/domain"
)

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) turnsCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(sessionID).Collection("turns")
}

type sessionDoc struct {
	Token     string               `firestore:"token"`
	Language  string               `firestore:"language"`
	Profile   *domain.AgentProfile `firestore:"profile"`
	Closed    bool                 `firestore:"closed"`
	CreatedAt time.Time            `firestore:"created_at"`
	UpdatedAt time.Time            `firestore:"updated_at"`
}

type turnDoc struct {
	Role         string           `firestore:"role"`
	Text         string           `firestore:"text"`
	ProductCards []domain.Product `firestore:"product_cards"`
	CreatedAt    time.Time        `firestore:"created_at"`
}

func toSessionDoc(session *domain.Session) sessionDoc {
	return sessionDoc{
		Token:     string(session.Token),
		Language:  string(session.Language),
		Profile:   session.Profile,
		Closed:    session.Closed,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}

func (d sessionDoc) toDomain(id domain.SessionID) *domain.Session {
	return &domain.Session{
		ID:        id,
		Token:     domain.Token(d.Token),
		Language:  domain.Language(d.Language),
		Profile:   d.Profile,
		Closed:    d.Closed,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	if _, err := s.sessionDoc(session.ID).Create(ctx, toSessionDoc(session)); err != nil {
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.sessionDoc(session.ID).Update(ctx, []firestore.Update{
		{Path: "closed", Value: session.Closed},
		{Path: "updated_at", Value: session.UpdatedAt},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("session %s: %w", session.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("firestore UpdateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetSession decode: %w", err)
	}
	return doc.toDomain(id), nil
}

func (s *Store) ListSessionsByToken(ctx context.Context, token domain.Token, limit int) ([]*domain.Session, error) {
	q := s.sessionsCol().Where("token", "==", string(token)).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Session
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListSessionsByToken: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode sessionDoc: %w", err)
		}
		out = append(out, doc.toDomain(domain.SessionID(snap.Ref.ID)))
	}
	return out, nil
}

// ─────────────────────────────────────────
// TurnStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	doc := turnDoc{
		Role:         string(turn.Role),
		Text:         turn.Text,
		ProductCards: turn.ProductCards,
		CreatedAt:    turn.CreatedAt,
	}

	if _, err := s.turnsCol(turn.SessionID).Doc(string(turn.ID)).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendTurn: %w", err)
	}
	return nil
}

// GetTurnsBySession returns the last limit turns in chronological order.
func (s *Store) GetTurnsBySession(ctx context.Context, sessionID domain.SessionID, limit int) ([]*domain.Turn, error) {
	q := s.turnsCol(sessionID).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Turn
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore GetTurnsBySession: %w", err)
		}

		var doc turnDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode turnDoc: %w", err)
		}

		out = append(out, &domain.Turn{
			ID:           domain.TurnID(snap.Ref.ID),
			SessionID:    sessionID,
			Role:         domain.Role(doc.Role),
			Text:         doc.Text,
			ProductCards: doc.ProductCards,
			CreatedAt:    doc.CreatedAt,
		})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
