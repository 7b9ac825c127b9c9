// Package synth drives the generative backend to produce a normalized agent
// profile from an ingested context bundle.
package synth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/brandbot/internal/app/ingest"
	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
)

type Input struct {
	Bundle   ingest.Bundle
	Language domain.Language
}

type Synthesizer struct {
	strategy      Strategy
	maxAttempts   int
	backoff       time.Duration
	model         string
	fallbackModel string
	newID         func() string
	sleep         func(ctx context.Context, d time.Duration) error
}

type Option func(*Synthesizer)

func WithMaxAttempts(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

func WithModel(model string) Option { return func(s *Synthesizer) { s.model = model } }

// WithFallbackModel sets the model used from the second attempt on.
func WithFallbackModel(model string) Option {
	return func(s *Synthesizer) { s.fallbackModel = model }
}

func WithIDGenerator(f func() string) Option {
	return func(s *Synthesizer) {
		if f != nil {
			s.newID = f
		}
	}
}

func New(strategy Strategy, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		strategy:    strategy,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		newID:       func() string { return "prod-" + uuid.NewString() },
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize runs the strategy with bounded sequential retries. Progress
// events are sent on events, which is closed when Synthesize returns; events
// may be nil. After the last failed attempt the error is a *domain.SynthesisError.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input, events chan<- Progress) (*domain.AgentProfile, error) {
	rep := newReporter(ctx, events)
	logger := observability.LoggerFromContext(ctx).With("strategy", s.strategy.Name(), "lang", string(in.Language))

	rep.emit(phaseLabel(in.Language, "Preparando contexto...", "Preparing context..."), 0)

	if in.Bundle.Empty() {
		err := &domain.SynthesisError{Attempts: 0, Err: domain.ErrEmptyContext}
		rep.finish(err)
		return nil, err
	}

	call := Call{
		Parts:    in.Bundle.Parts(),
		Lang:     in.Language,
		SeedURLs: in.Bundle.SeedURLs,
		Report:   rep.emit,
	}
	norm := normalizer{newID: s.newID, seedURLs: in.Bundle.SeedURLs, contacts: in.Bundle.Contacts}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		attempts = attempt
		call.Model = s.model
		if attempt > 1 && s.fallbackModel != "" {
			call.Model = s.fallbackModel
		}

		payload, citations, err := s.strategy.Run(ctx, call)
		if err == nil && !payload.usable() {
			err = errUnusableOutput
		}
		if err == nil {
			profile := norm.apply(payload, citations)
			logger.Info("profile synthesized",
				"attempt", attempt,
				"products", len(profile.Products),
				"sources", len(profile.Sources),
			)
			rep.finish(nil)
			return profile, nil
		}

		lastErr = err
		logger.Warn("synthesis attempt failed", "attempt", attempt, "model", call.Model, "error", err)

		if attempt == s.maxAttempts {
			break
		}
		rep.emit(phaseLabel(in.Language, "Reintentando...", "Retrying..."), 0)
		if serr := s.sleep(ctx, s.backoff); serr != nil {
			lastErr = errors.Join(lastErr, serr)
			break
		}
	}

	err := &domain.SynthesisError{Attempts: attempts, Err: lastErr}
	rep.finish(err)
	return nil, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
