package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/PabloGalante/brandbot/internal/adapters/llm"
	badgerstore "github.com/PabloGalante/brandbot/internal/adapters/storage/badger"
	firestorestore "github.com/PabloGalante/brandbot/internal/adapters/storage/firestore"
	"github.com/PabloGalante/brandbot/internal/adapters/storage/gcs"
	memstore "github.com/PabloGalante/brandbot/internal/adapters/storage/memory"
	"github.com/PabloGalante/brandbot/internal/adapters/web"
	"github.com/PabloGalante/brandbot/internal/app/conversation"
	"github.com/PabloGalante/brandbot/internal/app/grounding"
	"github.com/PabloGalante/brandbot/internal/app/ingest"
	"github.com/PabloGalante/brandbot/internal/app/synth"
	"github.com/PabloGalante/brandbot/internal/app/workspace"
	"github.com/PabloGalante/brandbot/internal/config"
	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

const devToken = "dev-token"

type application struct {
	workspace    *workspace.Service
	conversation *conversation.Service
	tokens       domain.TokenValidator
	closers      []io.Closer
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			observability.Logger().Warn("closing resource", "error", err)
		}
	}
}

func newGenerator(ctx context.Context, cfg *config.Config) (domain.Generator, error) {
	log := observability.Logger()
	switch cfg.LLM.Backend {
	case "gemini", "vertex":
		gc := llm.GeminiConfig{
			Project:  cfg.LLM.Project,
			Location: cfg.LLM.Location,
			Model:    cfg.LLM.ChatModel,
		}
		if cfg.LLM.Backend == "gemini" {
			gc.APIKey = cfg.LLM.APIKey
		}
		log.Info("using gemini generator", "backend", cfg.LLM.Backend, "model", gc.Model)
		return llm.NewGeminiClient(ctx, gc)
	default:
		log.Info("using mock generator")
		return llm.NewMockLLM(), nil
	}
}

func newSynthesizer(gen domain.Generator, cfg *config.Config) *synth.Synthesizer {
	var strategy synth.Strategy = synth.NewSchemaStrategy(gen, cfg.Synthesis.SearchAugmented)
	if cfg.Synthesis.Strategy == "two-phase" {
		strategy = synth.NewTwoPhaseStrategy(gen)
	}
	return synth.New(strategy,
		synth.WithMaxAttempts(cfg.Synthesis.MaxAttempts),
		synth.WithBackoff(cfg.Synthesis.Backoff),
		synth.WithModel(cfg.LLM.SynthModel),
		synth.WithFallbackModel(cfg.LLM.FallbackModel),
	)
}

func newResolver(gen domain.Generator, cfg *config.Config) *grounding.Resolver {
	return grounding.NewResolver(grounding.NewStrategy(gen, chatStrategy(cfg)))
}

func chatStrategy(cfg *config.Config) grounding.StrategyConfig {
	return grounding.StrategyConfig{
		Name:        cfg.Chat.Strategy,
		Model:       cfg.LLM.ChatModel,
		Search:      cfg.Chat.SearchAugmented,
		SparseBelow: cfg.Chat.SparseBelow,
	}
}

func newIngester(cfg *config.Config, blobs ingest.BlobLoader) *ingest.Ingester {
	opts := []ingest.Option{ingest.WithBlobLoader(blobs)}
	if cfg.Fetch.Enabled {
		opts = append(opts, ingest.WithFetcher(web.NewFetcher(cfg.Fetch.RequestsPerSecond)))
	}
	return ingest.New(opts...)
}

// wire builds every adapter and service selected by the config.
func wire(ctx context.Context, cfg *config.Config) (*application, error) {
	log := observability.Logger()
	app := &application{}

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing generator: %w", err)
	}

	var (
		profiles     domain.ProfileStore
		blobs        domain.BlobStore
		sessionStore domain.SessionStore
		turnStore    domain.TurnStore
		fsStore      *firestorestore.Store
		badgerDB     *badgerstore.Store
	)

	switch cfg.Storage.Backend {
	case "firestore":
		log.Info("using firestore storage", "project", cfg.LLM.Project)
		fsStore, err = firestorestore.NewStore(ctx, cfg.LLM.Project)
		if err != nil {
			return nil, fmt.Errorf("initializing firestore store: %w", err)
		}
		app.closers = append(app.closers, fsStore)

		// 1 store, implements 3 interfaces
		profiles, sessionStore, turnStore = fsStore, fsStore, fsStore
	case "badger":
		log.Info("using badger storage", "dir", cfg.Storage.BadgerDir)
		badgerDB, err = badgerstore.Open(cfg.Storage.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("opening badger store: %w", err)
		}
		app.closers = append(app.closers, badgerDB)
		profiles = badgerDB
		sessionStore, turnStore = memstore.NewSessionStore(), memstore.NewTurnStore()
	default:
		log.Info("using in-memory storage")
		profiles = memstore.NewProfileStore()
		sessionStore, turnStore = memstore.NewSessionStore(), memstore.NewTurnStore()
	}

	switch cfg.Storage.Blobs {
	case "memory":
		blobs = memstore.NewBlobStore()
	case "badger":
		blobs = badgerDB
	case "gcs":
		gcsStore, err := gcs.NewBlobStore(ctx, cfg.Storage.GCSBucket)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("initializing gcs blob store: %w", err)
		}
		app.closers = append(app.closers, gcsStore)
		blobs = gcsStore
	}
	log.Info("blob storage selected", "blobs", cfg.Storage.Blobs)

	tokens, err := newTokenValidator(cfg, fsStore)
	if err != nil {
		app.close()
		return nil, err
	}
	app.tokens = tokens

	gateway := workspace.NewGateway(profiles, blobs)
	wsOpts := []workspace.Option{workspace.WithAutosaveDelay(cfg.AutosaveDelay)}
	if cfg.WidgetURL != "" {
		wsOpts = append(wsOpts, workspace.WithWidgetURL(cfg.WidgetURL))
	}
	app.workspace = workspace.NewService(gateway, newIngester(cfg, gateway), newSynthesizer(gen, cfg), wsOpts...)
	app.conversation = conversation.NewService(newResolver(gen, cfg), app.workspace, sessionStore, turnStore)
	return app, nil
}

// newTokenValidator prefers static tokens, then the firestore clients
// collection. Local mode without either gets a single dev token.
func newTokenValidator(cfg *config.Config, fsStore *firestorestore.Store) (domain.TokenValidator, error) {
	accounts, err := memstore.ParseStaticTokens(cfg.Auth.StaticTokens)
	if err != nil {
		return nil, err
	}
	switch {
	case len(accounts) > 0:
		return memstore.NewTokenValidator(accounts...), nil
	case fsStore != nil:
		return fsStore, nil
	case cfg.Mode == config.ModeLocal:
		observability.Logger().Warn("no tokens configured, accepting the dev token", "token", devToken)
		return memstore.NewTokenValidator(domain.Account{
			Token:    devToken,
			Email:    "dev@localhost",
			IsActive: true,
			Role:     domain.AccountAdmin,
		}), nil
	default:
		return nil, errors.New("no token source configured: set BRANDBOT_STATIC_TOKENS or use firestore storage")
	}
}
