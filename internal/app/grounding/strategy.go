package grounding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PabloGalante/brandbot/internal/domain"
)

// Input is what a strategy receives for one turn.
type Input struct {
	History []domain.Turn
	Message string
	Profile *domain.AgentProfile
	Lang    domain.Language
	Memory  []domain.Product // inventory hits for Message
}

// Output is a strategy's raw answer before filtering.
type Output struct {
	Text        string
	Recommended []domain.Product // matched back to profile products
	Citations   []domain.Citation
	Scrub       bool // prose may carry lists/URLs that must be removed
}

// ResponseStrategy produces prose and candidates for a turn.
type ResponseStrategy interface {
	Name() string
	Respond(ctx context.Context, in Input) (*Output, error)
}

// chatSchema separates the conversational answer from recommended ids.
var chatSchema = &domain.Schema{
	Type: domain.SchemaObject,
	Properties: map[string]*domain.Schema{
		"answer": {Type: domain.SchemaString, Description: "Short conversational reply without URLs or lists."},
		"recommendedProductIds": {
			Type:        domain.SchemaArray,
			Description: "Ids from the catalog that answer the request, best first.",
			Items:       &domain.Schema{Type: domain.SchemaString},
		},
	},
	Required: []string{"answer", "recommendedProductIds"},
}

type chatResponse struct {
	Answer                string   `json:"answer"`
	RecommendedProductIDs []string `json:"recommendedProductIds"`
}

var errEmptyChatResponse = errors.New("chat response has neither answer nor recommendations")

// decodeChatResponse is the validated decode of a structured chat reply.
func decodeChatResponse(raw []byte) (chatResponse, error) {
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return chatResponse{}, fmt.Errorf("decode chat response: %w", err)
	}
	if strings.TrimSpace(out.Answer) == "" && len(out.RecommendedProductIDs) == 0 {
		return chatResponse{}, errEmptyChatResponse
	}
	return out, nil
}

// StructuredStrategy asks for schema-constrained output and maps the
// recommended ids back to catalog entries. Unknown ids are ignored.
type StructuredStrategy struct {
	gen         domain.Generator
	model       string
	search      bool
	temperature float32
}

type StructuredOption func(*StructuredStrategy)

// WithSearch also enables search augmentation; its citations become candidates.
func WithSearch(enabled bool) StructuredOption {
	return func(s *StructuredStrategy) { s.search = enabled }
}

func WithModel(model string) StructuredOption {
	return func(s *StructuredStrategy) { s.model = model }
}

func NewStructuredStrategy(gen domain.Generator, opts ...StructuredOption) *StructuredStrategy {
	s := &StructuredStrategy{gen: gen, temperature: 0.3}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *StructuredStrategy) Name() string { return "structured" }

func (s *StructuredStrategy) Respond(ctx context.Context, in Input) (*Output, error) {
	res, err := s.gen.Generate(ctx, domain.GenerateRequest{
		Model:           s.model,
		System:          structuredSystemPrompt(in.Profile, in.Memory, in.Lang),
		History:         in.History,
		Parts:           []domain.Part{domain.TextPart(in.Message)},
		Schema:          chatSchema,
		SearchAugmented: s.search,
		Temperature:     s.temperature,
	})
	if err != nil {
		return nil, err
	}

	decoded, err := decodeChatResponse(res.JSON())
	if err != nil {
		return nil, err
	}

	out := &Output{Text: strings.TrimSpace(decoded.Answer), Citations: res.Citations}
	for _, id := range decoded.RecommendedProductIDs {
		if p, ok := in.Profile.ProductByID(strings.TrimSpace(id)); ok {
			out.Recommended = append(out.Recommended, p)
		}
	}
	return out, nil
}

// SearchStrategy is the fallback for backends without structured output:
// free prose, search augmentation when memory is sparse, text scrubbing after.
type SearchStrategy struct {
	gen         domain.Generator
	model       string
	sparseBelow int
	temperature float32
}

// NewSearchStrategy enables live search when fewer than sparseBelow memory hits exist.
func NewSearchStrategy(gen domain.Generator, model string, sparseBelow int) *SearchStrategy {
	if sparseBelow <= 0 {
		sparseBelow = 1
	}
	return &SearchStrategy{gen: gen, model: model, sparseBelow: sparseBelow, temperature: 0.4}
}

func (s *SearchStrategy) Name() string { return "search" }

func (s *SearchStrategy) Respond(ctx context.Context, in Input) (*Output, error) {
	res, err := s.gen.Generate(ctx, domain.GenerateRequest{
		Model:           s.model,
		System:          searchSystemPrompt(in.Profile, in.Memory, in.Lang),
		History:         in.History,
		Parts:           []domain.Part{domain.TextPart(in.Message)},
		SearchAugmented: len(in.Memory) < s.sparseBelow,
		Temperature:     s.temperature,
	})
	if err != nil {
		return nil, err
	}
	return &Output{Text: res.Text, Citations: res.Citations, Scrub: true}, nil
}

// StrategyConfig selects and tunes a ResponseStrategy by name.
type StrategyConfig struct {
	Name        string // "search" or "structured"; anything else is structured
	Model       string
	Search      bool // structured only
	SparseBelow int  // search only
}

func NewStrategy(gen domain.Generator, cfg StrategyConfig) ResponseStrategy {
	if cfg.Name == "search" {
		return NewSearchStrategy(gen, cfg.Model, cfg.SparseBelow)
	}
	return NewStructuredStrategy(gen, WithSearch(cfg.Search), WithModel(cfg.Model))
}
