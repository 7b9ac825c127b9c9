package firestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/brandbot/internal/domain"
)

// newEmulatorStore connects to the Firestore emulator when one is configured.
func newEmulatorStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	s, err := NewStore(context.Background(), "brandbot-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_WorkspaceRoundTrip(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	token := domain.Token("tok-" + uuid.NewString())

	_, err := s.Load(ctx, token)
	require.ErrorIs(t, err, domain.ErrNotFound)

	ws := &domain.Workspace{
		Profile: &domain.AgentProfile{AgentName: "Pixel", Products: []domain.Product{{ID: "p1", Name: "Mouse"}}},
		Items:   []domain.ContextItem{{ID: "i1", Kind: domain.ContextText, Content: "hola"}},
	}
	require.NoError(t, s.Save(ctx, token, ws))

	got, err := s.Load(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Pixel", got.Profile.AgentName)
	assert.Equal(t, "p1", got.Profile.Products[0].ID)
	assert.Equal(t, domain.ContextText, got.Items[0].Kind)
}

func TestStore_ValidateUnknownToken(t *testing.T) {
	s := newEmulatorStore(t)
	_, err := s.Validate(context.Background(), domain.Token("missing-"+uuid.NewString()))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestStore_TurnsInOrder(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	now := time.Now()
	session := &domain.Session{ID: domain.SessionID(uuid.NewString()), Token: "tok", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateSession(ctx, session))

	for i, text := range []string{"uno", "dos", "tres"} {
		require.NoError(t, s.AppendTurn(ctx, &domain.Turn{
			ID: domain.TurnID(uuid.NewString()), SessionID: session.ID, Role: domain.RoleUser,
			Text: text, CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	turns, err := s.GetTurnsBySession(ctx, session.ID, 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "dos", turns[0].Text)
	assert.Equal(t, "tres", turns[1].Text)

	session.Closed = true
	require.NoError(t, s.UpdateSession(ctx, session))
	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, got.Closed)
}
