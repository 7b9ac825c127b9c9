package synth

import (
	"context"
	"fmt"

	"github.com/PabloGalante/brandbot/internal/domain"
)

// Call carries one synthesis attempt's inputs to a strategy.
type Call struct {
	Parts    []domain.Part
	Lang     domain.Language
	SeedURLs []string
	Model    string
	Report   func(phase string, pct int)
}

// Strategy drives the backend for one attempt and returns the raw profile
// plus every citation gathered on the way.
type Strategy interface {
	Name() string
	Run(ctx context.Context, call Call) (*profilePayload, []domain.Citation, error)
}

var categorySchema = &domain.Schema{
	Type: domain.SchemaObject,
	Properties: map[string]*domain.Schema{
		"name": {Type: domain.SchemaString},
		"url":  {Type: domain.SchemaString},
	},
	Required: []string{"name", "url"},
}

var productSchema = &domain.Schema{
	Type: domain.SchemaObject,
	Properties: map[string]*domain.Schema{
		"id":          {Type: domain.SchemaString},
		"name":        {Type: domain.SchemaString},
		"description": {Type: domain.SchemaString},
		"price":       {Type: domain.SchemaString, Description: "Price exactly as written by the business; omit when unknown."},
		"buyUrl":      {Type: domain.SchemaString},
		"type":        {Type: domain.SchemaString, Enum: []string{string(domain.KindProduct), string(domain.KindService), string(domain.KindLink)}},
		"tags":        {Type: domain.SchemaArray, Items: &domain.Schema{Type: domain.SchemaString}},
	},
	Required: []string{"name", "description"},
}

// ProfileSchema is the structured output contract of the single-call strategy.
var ProfileSchema = &domain.Schema{
	Type: domain.SchemaObject,
	Properties: map[string]*domain.Schema{
		"agentName":         {Type: domain.SchemaString},
		"brandColor":        {Type: domain.SchemaString, Description: "Primary brand color as #RRGGBB."},
		"summary":           {Type: domain.SchemaString},
		"systemInstruction": {Type: domain.SchemaString},
		"suggestedGreeting": {Type: domain.SchemaString},
		"keyTopics":         {Type: domain.SchemaArray, Items: &domain.Schema{Type: domain.SchemaString}},
		"websiteUrl":        {Type: domain.SchemaString},
		"navigationTree":    {Type: domain.SchemaArray, Items: categorySchema},
		"contactInfo": {
			Type: domain.SchemaObject,
			Properties: map[string]*domain.Schema{
				"sales":     {Type: domain.SchemaString},
				"support":   {Type: domain.SchemaString},
				"technical": {Type: domain.SchemaString},
			},
		},
		"products": {Type: domain.SchemaArray, Items: productSchema},
	},
	Required: []string{"summary", "systemInstruction", "suggestedGreeting", "products"},
}

// SchemaStrategy makes one schema-constrained call. Output that does not
// decode is an error, so the synthesizer retries it.
type SchemaStrategy struct {
	gen    domain.Generator
	search bool
}

func NewSchemaStrategy(gen domain.Generator, searchAugmented bool) *SchemaStrategy {
	return &SchemaStrategy{gen: gen, search: searchAugmented}
}

func (s *SchemaStrategy) Name() string { return "schema" }

func (s *SchemaStrategy) Run(ctx context.Context, call Call) (*profilePayload, []domain.Citation, error) {
	call.Report(phaseLabel(call.Lang, "Analizando el contexto del negocio...", "Analyzing business context..."), 20)

	parts := append(append([]domain.Part(nil), call.Parts...), domain.TextPart(schemaPrompt(call.Lang, call.SeedURLs)))
	res, err := s.gen.Generate(ctx, domain.GenerateRequest{
		Model:           call.Model,
		Parts:           parts,
		Schema:          ProfileSchema,
		SearchAugmented: s.search,
		Temperature:     0.1,
	})
	if err != nil {
		return nil, nil, err
	}

	payload, err := decodeProfile(res.JSON())
	if err != nil {
		return nil, nil, fmt.Errorf("decode profile: %w", err)
	}
	call.Report(phaseLabel(call.Lang, "Construyendo el catálogo...", "Building catalog..."), 80)
	return payload, res.Citations, nil
}

// TwoPhaseStrategy maps site architecture first, then scans inventory per
// category. Each phase decodes leniently: unparsable text becomes an empty
// object instead of aborting the pipeline.
type TwoPhaseStrategy struct {
	gen           domain.Generator
	maxCategories int
}

func NewTwoPhaseStrategy(gen domain.Generator) *TwoPhaseStrategy {
	return &TwoPhaseStrategy{gen: gen, maxCategories: 6}
}

func (s *TwoPhaseStrategy) Name() string { return "two-phase" }

func (s *TwoPhaseStrategy) Run(ctx context.Context, call Call) (*profilePayload, []domain.Citation, error) {
	call.Report(phaseLabel(call.Lang, "Fase 1: Mapeando arquitectura web...", "Phase 1: Mapping site architecture..."), 10)

	step1, err := s.gen.Generate(ctx, domain.GenerateRequest{
		Model:           call.Model,
		Parts:           append(append([]domain.Part(nil), call.Parts...), domain.TextPart(architecturePrompt(call.Lang))),
		SearchAugmented: true,
		Temperature:     0.1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("architecture phase: %w", err)
	}
	arch := lenientDecode(step1.Text)
	citations := append([]domain.Citation(nil), step1.Citations...)

	call.Report(phaseLabel(call.Lang, "Fase 2: Escaneando inventario por categorías...", "Phase 2: Scanning category inventory..."), 50)

	var categories []string
	for i, c := range arch.NavigationTree {
		if i == s.maxCategories {
			break
		}
		categories = append(categories, c.Name)
	}
	site := arch.WebsiteURL
	if site == "" && len(call.SeedURLs) > 0 {
		site = call.SeedURLs[0]
	}

	step2, err := s.gen.Generate(ctx, domain.GenerateRequest{
		Model:           call.Model,
		Parts:           append(append([]domain.Part(nil), call.Parts...), domain.TextPart(inventoryPrompt(call.Lang, categories, site))),
		SearchAugmented: true,
		Temperature:     0.1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("inventory phase: %w", err)
	}
	inv := lenientDecode(step2.Text)
	citations = append(citations, step2.Citations...)

	call.Report(phaseLabel(call.Lang, "Finalizando base de datos...", "Finalizing database..."), 90)
	arch.Products = inv.Products
	return arch, citations, nil
}
