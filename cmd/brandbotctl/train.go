package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/PabloGalante/brandbot/internal/adapters/llm"
	"github.com/PabloGalante/brandbot/internal/adapters/web"
	"github.com/PabloGalante/brandbot/internal/app/ingest"
	"github.com/PabloGalante/brandbot/internal/app/synth"
	"github.com/PabloGalante/brandbot/internal/domain"
)

var (
	trainTexts []string
	trainURLs  []string
	trainFiles []string
	trainLang  string
	trainOut   string
	trainFetch bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Synthesize an agent profile from context",
	Long: `Builds context items from --text, --url and --file, runs profile
synthesis and writes the resulting profile as JSON.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringArrayVar(&trainTexts, "text", nil, "free text context (repeatable)")
	trainCmd.Flags().StringArrayVar(&trainURLs, "url", nil, "website or page URL (repeatable)")
	trainCmd.Flags().StringArrayVar(&trainFiles, "file", nil, "catalog or document file (repeatable)")
	trainCmd.Flags().StringVar(&trainLang, "lang", "es", "output language (es or en)")
	trainCmd.Flags().StringVarP(&trainOut, "out", "o", "", "write the profile to this file instead of stdout")
	trainCmd.Flags().BoolVar(&trainFetch, "fetch", false, "fetch URL items and include their page text")
	rootCmd.AddCommand(trainCmd)
}

func trainItems() ([]domain.ContextItem, error) {
	var items []domain.ContextItem
	for _, t := range trainTexts {
		items = append(items, domain.ContextItem{ID: uuid.NewString(), Kind: domain.ContextText, Content: t})
	}
	for _, u := range trainURLs {
		items = append(items, domain.ContextItem{ID: uuid.NewString(), Kind: domain.ContextURL, Content: u})
	}
	for _, path := range trainFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		items = append(items, domain.ContextItem{
			ID:       uuid.NewString(),
			Kind:     domain.ContextFile,
			FileName: filepath.Base(path),
			FileData: data,
			MimeType: mimeType,
		})
	}
	return items, nil
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := appConfig

	items, err := trainItems()
	if err != nil {
		return err
	}

	gen, err := newGenerator(ctx)
	if err != nil {
		return err
	}

	var ingestOpts []ingest.Option
	if trainFetch || cfg.Fetch.Enabled {
		ingestOpts = append(ingestOpts, ingest.WithFetcher(web.NewFetcher(cfg.Fetch.RequestsPerSecond)))
	}
	bundle, warnings := ingest.New(ingestOpts...).Ingest(ctx, items)
	for _, w := range warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w.Error())
	}

	var strategy synth.Strategy = synth.NewSchemaStrategy(gen, cfg.Synthesis.SearchAugmented)
	if cfg.Synthesis.Strategy == "two-phase" {
		strategy = synth.NewTwoPhaseStrategy(gen)
	}
	synthesizer := synth.New(strategy,
		synth.WithMaxAttempts(cfg.Synthesis.MaxAttempts),
		synth.WithBackoff(cfg.Synthesis.Backoff),
		synth.WithModel(cfg.LLM.SynthModel),
		synth.WithFallbackModel(cfg.LLM.FallbackModel),
	)

	events := make(chan synth.Progress, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range events {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %s\n", p.Percent, p.Phase)
		}
	}()
	profile, err := synthesizer.Synthesize(ctx, synth.Input{Bundle: bundle, Language: domain.ParseLanguage(trainLang)}, events)
	<-done
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if trainOut == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(trainOut, data, 0o644); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "profile with %d products written to %s\n", len(profile.Products), trainOut)
	return nil
}

// newGenerator mirrors the server's backend selection.
func newGenerator(ctx context.Context) (domain.Generator, error) {
	cfg := appConfig
	if cfg.LLM.Backend == "mock" {
		return llm.NewMockLLM(), nil
	}
	gc := llm.GeminiConfig{Project: cfg.LLM.Project, Location: cfg.LLM.Location, Model: cfg.LLM.ChatModel}
	if cfg.LLM.Backend == "gemini" {
		gc.APIKey = cfg.LLM.APIKey
	}
	return llm.NewGeminiClient(ctx, gc)
}
