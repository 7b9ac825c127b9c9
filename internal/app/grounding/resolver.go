package grounding

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PabloGalante/brandbot/internal/app/inventory"
	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

// DefaultMaxCards bounds the cards attached to one reply.
const DefaultMaxCards = 6

// Request is one chat turn to resolve.
type Request struct {
	History   []domain.Turn
	Message   string
	Profile   *domain.AgentProfile
	Lang      domain.Language
	Citations []domain.Citation // live grounding supplied by the caller, optional
}

// Resolver runs escalation, memory lookup, the response strategy, provenance
// filtering and text formatting for a turn. It never returns an error: backend
// failures become a localized holding reply.
type Resolver struct {
	strategy ResponseStrategy
	detector *Detector
	rules    []inventory.ExclusionRule
	maxCards int
}

type Option func(*Resolver)

func WithDetector(d *Detector) Option {
	return func(r *Resolver) { r.detector = d }
}

func WithExclusionRules(rules []inventory.ExclusionRule) Option {
	return func(r *Resolver) { r.rules = rules }
}

func WithMaxCards(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxCards = n
		}
	}
}

func NewResolver(strategy ResponseStrategy, opts ...Option) *Resolver {
	r := &Resolver{
		strategy: strategy,
		detector: NewDetector(DefaultTriggers),
		rules:    inventory.DefaultRules,
		maxCards: DefaultMaxCards,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resolver) Respond(ctx context.Context, req Request) domain.ChatReply {
	log := observability.LoggerFromContext(ctx).With("strategy", r.strategy.Name())

	if r.detector.Triggered(req.Message) {
		log.Info("escalation triggered, suppressing recommendations")
		return domain.ChatReply{Text: EscalationText(req.Profile, req.Lang)}
	}

	memory := inventory.FromProfile(req.Profile,
		inventory.WithRules(r.rules),
		inventory.WithLanguage(req.Lang),
	).Search(req.Message)

	out, err := r.strategy.Respond(ctx, Input{
		History: req.History,
		Message: req.Message,
		Profile: req.Profile,
		Lang:    req.Lang,
		Memory:  memory,
	})
	if err != nil {
		log.Error("chat backend failed", "error", err)
		return domain.ChatReply{Text: checkingStockText(req.Lang)}
	}

	citations := DedupeCitations(append(append([]domain.Citation(nil), out.Citations...), req.Citations...))
	cards := r.selectCards(log, req, out.Recommended, citations, memory)

	text := strings.TrimSpace(out.Text)
	if out.Scrub {
		text = ScrubText(text)
	}

	switch {
	case len(cards) == 0 && (impliesResults(text) || text == ""):
		text = noMatchText(websiteOf(req.Profile), req.Lang)
	case len(cards) > 0 && len([]rune(text)) < 5:
		text = cardsHeader(req.Lang)
	}

	log.Info("turn resolved",
		"memory_hits", len(memory),
		"recommended", len(out.Recommended),
		"citations", len(citations),
		"cards", len(cards),
	)
	return domain.ChatReply{Text: text, ProductCards: cards}
}

// selectCards merges recommendations, live citations and memory hits, in that
// order, keeping only links that pass the provenance filter once.
func (r *Resolver) selectCards(
	log *slog.Logger,
	req Request,
	recommended []domain.Product,
	citations []domain.Citation,
	memory []domain.Product,
) []domain.Product {
	sel := NewSelector(NewURLFilter(websiteOf(req.Profile)))

	candidates := make([]domain.Product, 0, len(recommended)+len(citations)+len(memory))
	candidates = append(candidates, recommended...)
	for i, c := range citations {
		candidates = append(candidates, CitationCard(c, i, req.Message, req.Lang))
	}
	candidates = append(candidates, memory...)

	var cards []domain.Product
	for _, c := range candidates {
		if len(cards) == r.maxCards {
			break
		}
		if reason := sel.Admit(c.BuyURL); reason != Accepted {
			log.Debug("candidate rejected", "url", c.BuyURL, "reason", string(reason))
			continue
		}
		cards = append(cards, c)
	}
	return cards
}

func websiteOf(p *domain.AgentProfile) string {
	if p == nil {
		return ""
	}
	return p.WebsiteURL
}
