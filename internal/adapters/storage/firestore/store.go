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

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given project.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error { return s.client.Close() }

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) configsCol() *firestore.CollectionRef {
	return s.client.Collection("bot_configs")
}

func (s *Store) configDoc(token domain.Token) *firestore.DocumentRef {
	return s.configsCol().Doc(string(token))
}

func (s *Store) clientsCol() *firestore.CollectionRef {
	return s.client.Collection("clients")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type botConfigDoc struct {
	Analysis  *domain.AgentProfile `firestore:"analysis"`
	Items     []domain.ContextItem `firestore:"items"`
	UpdatedAt time.Time            `firestore:"updatedAt"`
	Deployed  bool                 `firestore:"deployed"`
}

type clientDoc struct {
	Token    string `firestore:"token"`
	Email    string `firestore:"email"`
	IsActive bool   `firestore:"isActive"`
	Role     string `firestore:"role"`
	Domain   string `firestore:"domain,omitempty"`
}

// ─────────────────────────────────────────
// ProfileStore implementation
// ─────────────────────────────────────────

func (s *Store) Load(ctx context.Context, token domain.Token) (*domain.Workspace, error) {
	snap, err := s.configDoc(token).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("bot config %s: %w", token.Short(), domain.ErrNotFound)
		}
		return nil, fmt.Errorf("firestore Load: %w", err)
	}

	var doc botConfigDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore Load decode: %w", err)
	}

	return &domain.Workspace{
		Profile:   doc.Analysis,
		Items:     doc.Items,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *Store) Save(ctx context.Context, token domain.Token, ws *domain.Workspace) error {
	doc := botConfigDoc{
		Analysis:  ws.Profile,
		Items:     ws.Items,
		UpdatedAt: ws.UpdatedAt,
		Deployed:  ws.Profile != nil,
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}

	if _, err := s.configDoc(token).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore Save: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// TokenValidator implementation
// ─────────────────────────────────────────

func (s *Store) Validate(ctx context.Context, token domain.Token) (*domain.Account, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	iter := s.clientsCol().Where("token", "==", string(token)).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("firestore Validate: %w", err)
	}

	var doc clientDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode clientDoc: %w", err)
	}
	if !doc.IsActive {
		return nil, domain.ErrInactiveAccount
	}

	role := domain.AccountRole(doc.Role)
	if role == "" {
		role = domain.AccountUser
	}
	return &domain.Account{
		Token:    token,
		Email:    doc.Email,
		IsActive: doc.IsActive,
		Role:     role,
	}, nil
}
