package workspace

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/brandbot/internal/app/ingest"
	"github.com/PabloGalante/brandbot/internal/app/synth"
	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

const DefaultAutosaveDelay = time.Second

// Status describes the current or last training run of a workspace.
type Status struct {
	Running  bool           `json:"running"`
	Last     synth.Progress `json:"last"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ProfilePatch carries the top-level profile fields an operator may edit in place.
type ProfilePatch struct {
	AgentName  *string `json:"agentName,omitempty"`
	BrandColor *string `json:"brandColor,omitempty"`
}

type Service struct {
	gateway   *Gateway
	ingester  *ingest.Ingester
	synth     *synth.Synthesizer
	autosave  *debouncer
	widgetURL string
	now       func() time.Time

	mu     sync.Mutex
	spaces map[domain.Token]*space
}

// space is the in-memory, authoritative copy of one token's workspace.
type space struct {
	mu     sync.Mutex
	loaded bool
	ws     *domain.Workspace
	status Status
}

type Option func(*Service)

func WithAutosaveDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.autosave.delay = d
		}
	}
}

func WithWidgetURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.widgetURL = u
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(gateway *Gateway, ingester *ingest.Ingester, synthesizer *synth.Synthesizer, opts ...Option) *Service {
	s := &Service{
		gateway:   gateway,
		ingester:  ingester,
		synth:     synthesizer,
		widgetURL: DefaultWidgetURL,
		now:       time.Now,
		spaces:    make(map[domain.Token]*space),
	}
	s.autosave = newDebouncer(DefaultAutosaveDelay, s.autosaveNow)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// acquire returns the token's space locked, loading it on first use.
func (s *Service) acquire(ctx context.Context, token domain.Token) (*space, error) {
	s.mu.Lock()
	sp, ok := s.spaces[token]
	if !ok {
		sp = &space{}
		s.spaces[token] = sp
	}
	s.mu.Unlock()

	sp.mu.Lock()
	if !sp.loaded {
		ws, err := s.gateway.Load(ctx, token)
		if err != nil {
			sp.mu.Unlock()
			return nil, err
		}
		sp.ws = ws
		sp.loaded = true
	}
	return sp, nil
}

// persist writes the space now, superseding any pending autosave. Callers hold sp.mu.
func (s *Service) persist(ctx context.Context, token domain.Token, sp *space) error {
	s.autosave.cancel(token)
	sp.ws.UpdatedAt = s.now()
	return s.gateway.Save(ctx, token, sp.ws)
}

func (s *Service) autosaveNow(token domain.Token) {
	ctx := context.Background()
	sp, err := s.acquire(ctx, token)
	if err != nil {
		observability.Logger().Error("autosave load failed", "token", token.Short(), "error", err)
		return
	}
	defer sp.mu.Unlock()
	sp.ws.UpdatedAt = s.now()
	if err := s.gateway.Save(ctx, token, sp.ws); err != nil {
		observability.Logger().Error("autosave failed", "token", token.Short(), "error", err)
	}
}

// Flush writes every pending autosave immediately.
func (s *Service) Flush() { s.autosave.flush() }

// Snapshot returns a copy of the workspace and its training status.
func (s *Service) Snapshot(ctx context.Context, token domain.Token) (*domain.Workspace, Status, error) {
	sp, err := s.acquire(ctx, token)
	if err != nil {
		return nil, Status{}, err
	}
	defer sp.mu.Unlock()
	return sp.ws.Clone(), sp.status, nil
}

// Profile returns a copy of the trained profile, or ErrNotFound before the first training.
func (s *Service) Profile(ctx context.Context, token domain.Token) (*domain.AgentProfile, error) {
	sp, err := s.acquire(ctx, token)
	if err != nil {
		return nil, err
	}
	defer sp.mu.Unlock()
	if sp.ws.Profile == nil {
		return nil, fmt.Errorf("profile: %w", domain.ErrNotFound)
	}
	return sp.ws.Profile.Clone(), nil
}

// SetItems replaces the whole context item list.
func (s *Service) SetItems(ctx context.Context, token domain.Token, items []domain.ContextItem) error {
	for i := range items {
		if err := validateItem(items[i]); err != nil {
			return err
		}
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}
	sp, err := s.acquire(ctx, token)
	if err != nil {
		return err
	}
	defer sp.mu.Unlock()
	before := sp.ws.Items
	sp.ws.Items = append([]domain.ContextItem(nil), items...)
	if err := s.persist(ctx, token, sp); err != nil {
		return err
	}
	s.gateway.DeleteBlobs(ctx, token, orphanedBlobs(before, sp.ws.Items))
	return nil
}

// AddItem appends one item. A singleton-tagged text item replaces the
// previous item carrying the same tag.
func (s *Service) AddItem(ctx context.Context, token domain.Token, item domain.ContextItem) (domain.ContextItem, error) {
	if err := validateItem(item); err != nil {
		return domain.ContextItem{}, err
	}
	if _, value, ok := domain.ParseTag(item); ok && value == "" {
		return domain.ContextItem{}, fmt.Errorf("tagged item without value: %w", domain.ErrInvalidInput)
	}
	sp, err := s.acquire(ctx, token)
	if err != nil {
		return domain.ContextItem{}, err
	}
	defer sp.mu.Unlock()

	if tag, value, ok := domain.ParseTag(item); ok && tag.Singleton() {
		sp.ws.Items = domain.SetTaggedItem(sp.ws.Items, tag, value)
		item = sp.ws.Items[len(sp.ws.Items)-1]
	} else {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		sp.ws.Items = append(sp.ws.Items, item)
	}
	if err := s.persist(ctx, token, sp); err != nil {
		return domain.ContextItem{}, err
	}
	return item, nil
}

func (s *Service) RemoveItem(ctx context.Context, token domain.Token, id string) error {
	sp, err := s.acquire(ctx, token)
	if err != nil {
		return err
	}
	defer sp.mu.Unlock()

	idx := -1
	for i, it := range sp.ws.Items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("context item %s: %w", id, domain.ErrNotFound)
	}
	removed := sp.ws.Items[idx]
	sp.ws.Items = append(sp.ws.Items[:idx:idx], sp.ws.Items[idx+1:]...)
	if err := s.persist(ctx, token, sp); err != nil {
		return err
	}
	s.gateway.DeleteBlobs(ctx, token, orphanedBlobs([]domain.ContextItem{removed}, sp.ws.Items))
	return nil
}

// SetContacts stores the three contact channels as tagged items. An empty
// channel removes its item.
func (s *Service) SetContacts(ctx context.Context, token domain.Token, c domain.ContactInfo) error {
	sp, err := s.acquire(ctx, token)
	if err != nil {
		return err
	}
	defer sp.mu.Unlock()

	items := sp.ws.Items
	items = domain.SetTaggedItem(items, domain.TagSales, c.Sales)
	items = domain.SetTaggedItem(items, domain.TagSupport, c.Support)
	items = domain.SetTaggedItem(items, domain.TagTechnical, c.Technical)
	sp.ws.Items = items
	return s.persist(ctx, token, sp)
}

// AddRule appends a business rule the synthesized persona must honor.
func (s *Service) AddRule(ctx context.Context, token domain.Token, rule string) (domain.ContextItem, error) {
	if strings.TrimSpace(rule) == "" {
		return domain.ContextItem{}, fmt.Errorf("empty business rule: %w", domain.ErrInvalidInput)
	}
	return s.AddItem(ctx, token, domain.ContextItem{
		Kind:    domain.ContextText,
		Content: domain.TaggedText(domain.TagBusinessRule, rule),
	})
}

// Train ingests the current items and synthesizes a new profile. On failure
// the stored profile is left untouched.
func (s *Service) Train(ctx context.Context, token domain.Token, lang domain.Language) (*domain.AgentProfile, []ingest.Warning, error) {
	log := observability.LoggerFromContext(ctx).With("token", token.Short(), "lang", string(lang))

	sp, err := s.acquire(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if sp.status.Running {
		sp.mu.Unlock()
		return nil, nil, domain.ErrTrainingRunning
	}
	items := sp.ws.Clone().Items
	sp.status = Status{Running: true}
	sp.mu.Unlock()

	log.Info("training started", "items", len(items))
	bundle, warnings := s.ingester.Ingest(ctx, items)

	events := make(chan synth.Progress, 8)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for p := range events {
			sp.mu.Lock()
			sp.status.Last = p
			sp.mu.Unlock()
		}
	}()
	profile, synthErr := s.synth.Synthesize(ctx, synth.Input{Bundle: bundle, Language: lang}, events)
	<-drained

	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.status.Running = false
	sp.status.Warnings = nil
	for _, w := range warnings {
		sp.status.Warnings = append(sp.status.Warnings, w.Error())
	}
	if synthErr != nil {
		log.Error("training failed", "error", synthErr)
		return nil, warnings, synthErr
	}

	sp.ws.Profile = profile
	if err := s.persist(ctx, token, sp); err != nil {
		log.Error("failed to persist trained profile, retrying on autosave", "error", err)
		s.autosave.schedule(token)
	}
	log.Info("training completed", "products", len(profile.Products))
	return profile.Clone(), warnings, nil
}

// Status returns the training status of a workspace.
func (s *Service) Status(ctx context.Context, token domain.Token) (Status, error) {
	sp, err := s.acquire(ctx, token)
	if err != nil {
		return Status{}, err
	}
	defer sp.mu.Unlock()
	return sp.status, nil
}

// PatchProfile edits top-level profile fields. The change is visible at once
// and persisted by the debounced autosave.
func (s *Service) PatchProfile(ctx context.Context, token domain.Token, patch ProfilePatch) (*domain.AgentProfile, error) {
	if patch.BrandColor != nil && !synth.ValidBrandColor(strings.TrimSpace(*patch.BrandColor)) {
		return nil, fmt.Errorf("brand color %q: %w", *patch.BrandColor, domain.ErrInvalidInput)
	}
	if patch.AgentName != nil && strings.TrimSpace(*patch.AgentName) == "" {
		return nil, fmt.Errorf("empty agent name: %w", domain.ErrInvalidInput)
	}

	sp, err := s.acquire(ctx, token)
	if err != nil {
		return nil, err
	}
	defer sp.mu.Unlock()
	if sp.ws.Profile == nil {
		return nil, fmt.Errorf("profile: %w", domain.ErrNotFound)
	}

	next := sp.ws.Profile.Clone()
	if patch.AgentName != nil {
		next.AgentName = strings.TrimSpace(*patch.AgentName)
	}
	if patch.BrandColor != nil {
		next.BrandColor = strings.TrimSpace(*patch.BrandColor)
	}
	sp.ws.Profile = next
	s.autosave.schedule(token)
	return next.Clone(), nil
}

// Reset discards the items, their payloads and the profile of a workspace.
// It is refused while a training run is in progress.
func (s *Service) Reset(ctx context.Context, token domain.Token) error {
	sp, err := s.acquire(ctx, token)
	if err != nil {
		return err
	}
	defer sp.mu.Unlock()
	if sp.status.Running {
		return domain.ErrTrainingRunning
	}
	before := sp.ws.Items
	sp.ws = &domain.Workspace{}
	sp.status = Status{}
	if err := s.persist(ctx, token, sp); err != nil {
		return err
	}
	s.gateway.DeleteBlobs(ctx, token, orphanedBlobs(before, nil))
	return nil
}

// EmbedSnippet renders the widget bootstrap for a token.
func (s *Service) EmbedSnippet(ctx context.Context, token domain.Token) (string, error) {
	sp, err := s.acquire(ctx, token)
	if err != nil {
		return "", err
	}
	defer sp.mu.Unlock()
	color := synth.DefaultBrandColor
	if sp.ws.Profile != nil && sp.ws.Profile.BrandColor != "" {
		color = sp.ws.Profile.BrandColor
	}
	return embedSnippet(token, color, s.widgetURL), nil
}

func validateItem(it domain.ContextItem) error {
	switch it.Kind {
	case domain.ContextText, domain.ContextURL:
		if strings.TrimSpace(it.Content) == "" {
			return fmt.Errorf("%s item without content: %w", it.Kind, domain.ErrInvalidInput)
		}
	case domain.ContextFile:
		if len(it.FileData) == 0 && it.BlobRef == "" {
			return fmt.Errorf("file item %q without data: %w", it.FileName, domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown item type %q: %w", it.Kind, domain.ErrInvalidInput)
	}
	return nil
}
