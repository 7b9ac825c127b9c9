package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/brandbot/internal/app/grounding"
	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

const defaultHistoryLimit = 20

// ProfileSource supplies the trained profile a new session is bound to.
type ProfileSource interface {
	Profile(ctx context.Context, token domain.Token) (*domain.AgentProfile, error)
}

type Service struct {
	resolver     *grounding.Resolver
	profiles     ProfileSource
	sessionStore domain.SessionStore
	turnStore    domain.TurnStore
	now          func() time.Time
	historyLimit int

	mu       sync.Mutex
	inFlight map[domain.SessionID]struct{}
}

func NewService(
	resolver *grounding.Resolver,
	profiles ProfileSource,
	sessionStore domain.SessionStore,
	turnStore domain.TurnStore,
) *Service {
	return &Service{
		resolver:     resolver,
		profiles:     profiles,
		sessionStore: sessionStore,
		turnStore:    turnStore,
		now:          time.Now,
		historyLimit: defaultHistoryLimit,
		inFlight:     make(map[domain.SessionID]struct{}),
	}
}

type StartSessionInput struct {
	Token    domain.Token
	Language domain.Language
}

type StartSessionOutput struct {
	Session  *domain.Session
	Greeting *domain.Turn
}

func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	now := s.now()

	log := observability.LoggerFromContext(ctx).With(
		"token", in.Token.Short(),
		"lang", in.Language,
	)
	log.Info("starting new session")

	profile, err := s.profiles.Profile(ctx, in.Token)
	if err != nil {
		log.Error("failed to load profile", "error", err)
		return nil, err
	}

	session := &domain.Session{
		ID:        domain.SessionID(uuid.NewString()),
		Token:     in.Token,
		Language:  in.Language,
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionStore.CreateSession(ctx, session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	greeting := &domain.Turn{
		ID:        domain.TurnID(uuid.NewString()),
		SessionID: session.ID,
		Role:      domain.RoleAgent,
		Text:      greetingText(profile, in.Language),
		CreatedAt: now,
	}

	if err := s.turnStore.AppendTurn(ctx, greeting); err != nil {
		log.Error("failed to append greeting", "error", err)
		return nil, err
	}

	log.Info("session started", "session_id", session.ID)

	return &StartSessionOutput{
		Session:  session,
		Greeting: greeting,
	}, nil
}

type SendMessageInput struct {
	SessionID domain.SessionID
	Token     domain.Token
	Text      string
}

type SendMessageOutput struct {
	UserTurn  *domain.Turn
	AgentTurn *domain.Turn
}

// SendMessage records the user turn, resolves a reply and records it. Only one
// turn per session may be in flight. If the session is closed while the reply
// is being resolved, the reply is discarded and ErrSessionClosed returned; the
// user turn stays recorded.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("empty message: %w", domain.ErrInvalidInput)
	}

	session, err := s.ownedSession(ctx, in.SessionID, in.Token)
	if err != nil {
		return nil, err
	}
	if session.Closed {
		return nil, domain.ErrSessionClosed
	}

	if !s.begin(session.ID) {
		return nil, domain.ErrTurnInFlight
	}
	defer s.end(session.ID)

	log := observability.LoggerFromContext(ctx).With(
		"session_id", session.ID,
		"token", session.Token.Short(),
	)
	log.Info("sending message", "chars", len(text))

	history, err := s.turnStore.GetTurnsBySession(ctx, session.ID, s.historyLimit)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return nil, err
	}

	userTurn := &domain.Turn{
		ID:        domain.TurnID(uuid.NewString()),
		SessionID: session.ID,
		Role:      domain.RoleUser,
		Text:      text,
		CreatedAt: s.now(),
	}

	if err := s.turnStore.AppendTurn(ctx, userTurn); err != nil {
		log.Error("failed to append user turn", "error", err)
		return nil, err
	}

	reply := s.resolver.Respond(ctx, grounding.Request{
		History: derefTurns(history),
		Message: text,
		Profile: session.Profile,
		Lang:    session.Language,
	})

	current, err := s.sessionStore.GetSession(ctx, session.ID)
	if err != nil {
		log.Error("failed to reload session", "error", err)
		return nil, err
	}
	if current.Closed {
		log.Info("session closed during turn, discarding reply")
		return nil, domain.ErrSessionClosed
	}

	agentTurn := &domain.Turn{
		ID:           domain.TurnID(uuid.NewString()),
		SessionID:    session.ID,
		Role:         domain.RoleAgent,
		Text:         reply.Text,
		ProductCards: reply.ProductCards,
		CreatedAt:    s.now(),
	}

	if err := s.turnStore.AppendTurn(ctx, agentTurn); err != nil {
		log.Error("failed to append agent turn", "error", err)
		return nil, err
	}

	current.UpdatedAt = s.now()
	if err := s.sessionStore.UpdateSession(ctx, current); err != nil {
		log.Error("failed to update session", "error", err)
		return nil, err
	}

	log.Info("send message completed", "cards", len(agentTurn.ProductCards))

	return &SendMessageOutput{
		UserTurn:  userTurn,
		AgentTurn: agentTurn,
	}, nil
}

// CloseSession tears a session down. In-flight replies for it are discarded.
func (s *Service) CloseSession(ctx context.Context, id domain.SessionID, token domain.Token) error {
	session, err := s.ownedSession(ctx, id, token)
	if err != nil {
		return err
	}
	if session.Closed {
		return nil
	}
	session.Closed = true
	session.UpdatedAt = s.now()
	if err := s.sessionStore.UpdateSession(ctx, session); err != nil {
		return err
	}
	observability.LoggerFromContext(ctx).Info("session closed", "session_id", id)
	return nil
}

func (s *Service) GetSessionTimeline(
	ctx context.Context,
	sessionID domain.SessionID,
	token domain.Token,
	limit int,
) (*domain.Session, []*domain.Turn, error) {

	log := observability.LoggerFromContext(ctx).With(
		"session_id", sessionID,
		"limit", limit,
	)

	session, err := s.ownedSession(ctx, sessionID, token)
	if err != nil {
		log.Error("failed to get session", "error", err)
		return nil, nil, err
	}

	turns, err := s.turnStore.GetTurnsBySession(ctx, sessionID, limit)
	if err != nil {
		log.Error("failed to get turns", "error", err)
		return nil, nil, err
	}

	log.Info("fetched session timeline", "turn_count", len(turns))

	return session, turns, nil
}

// ownedSession hides sessions of other tokens behind ErrNotFound.
func (s *Service) ownedSession(ctx context.Context, id domain.SessionID, token domain.Token) (*domain.Session, error) {
	session, err := s.sessionStore.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Token != token {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return session, nil
}

func (s *Service) begin(id domain.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Service) end(id domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func greetingText(p *domain.AgentProfile, lang domain.Language) string {
	if p != nil && strings.TrimSpace(p.SuggestedGreeting) != "" {
		return p.SuggestedGreeting
	}
	if lang == domain.LangEN {
		return "Hi! How can I help you today?"
	}
	return "¡Hola! ¿En qué puedo ayudarte hoy?"
}

func derefTurns(in []*domain.Turn) []domain.Turn {
	out := make([]domain.Turn, 0, len(in))
	for _, t := range in {
		out = append(out, *t)
	}
	return out
}
