package synth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/brandbot/internal/adapters/llm"
	"github.com/PabloGalante/brandbot/internal/app/ingest"
	"github.com/PabloGalante/brandbot/internal/domain"
)

func bundle() ingest.Bundle {
	return ingest.Bundle{
		Segments: []ingest.Segment{{Kind: ingest.SegmentText, Text: "BUSINESS CONTEXT:\n[SEED URL]: https://www.tienda.com\n"}},
		SeedURLs: []string{"https://www.tienda.com"},
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("prod-gen-%d", n)
	}
}

func drain(ch <-chan Progress) []Progress {
	var out []Progress
	for p := range ch {
		out = append(out, p)
	}
	return out
}

func assertProgressContract(t *testing.T, events []Progress) {
	t.Helper()
	require.NotEmpty(t, events)
	assert.Equal(t, 0, events[0].Percent)
	last := -1
	for i, e := range events {
		assert.GreaterOrEqual(t, e.Percent, last, "event %d went backwards", i)
		last = e.Percent
		if i < len(events)-1 {
			assert.False(t, e.Done, "event %d is terminal but not last", i)
		}
	}
	assert.True(t, events[len(events)-1].Done)
}

const richProfile = `{
  "agentName": "",
  "brandColor": "azul",
  "summary": "Tienda de informática",
  "systemInstruction": "Eres un vendedor experto.",
  "suggestedGreeting": "¡Hola!",
  "navigationTree": [{"name": "Portátiles", "url": "https://www.tienda.com/portatiles"}, {"name": "Fake", "url": "https://example.com/x"}],
  "contactInfo": {"sales": "ventas@tienda.com", "support": "ai@tienda.com"},
  "products": [
    {"id": "a", "name": "Ratón", "price": 20, "buyUrl": "https://www.tienda.com/p/raton"},
    {"id": "a", "name": "Teclado", "price": "35 €", "buyUrl": "https://www.tienda.com/p/teclado", "type": "product"},
    {"name": "Monitor", "buyUrl": "https://otra.com/p/monitor"},
    {"name": "Instalación", "type": "SERVICE"},
    {"name": "Ofertas", "type": "LINK", "price": "9 €", "buyUrl": "https://www.tienda.com/ofertas"},
    {"name": "Plantilla", "buyUrl": "https://www.tienda.com/URL_REAL"},
    {"name": "  "}
  ]
}`

func TestSynthesize_SchemaStrategyNormalizesProfile(t *testing.T) {
	gen := llm.NewMockLLM(llm.MockResponse{
		Text: richProfile,
		Citations: []domain.Citation{
			{URI: "https://www.tienda.com/portatiles"},
			{Title: "Dup", URI: "https://www.tienda.com/portatiles"},
		},
	})
	in := bundle()
	in.Contacts = domain.ContactInfo{Support: "soporte@tienda.com"}

	s := New(NewSchemaStrategy(gen, false), WithIDGenerator(sequentialIDs()), WithBackoff(0))
	events := make(chan Progress, 32)
	profile, err := s.Synthesize(context.Background(), Input{Bundle: in, Language: domain.LangES}, events)
	require.NoError(t, err)
	assertProgressContract(t, drain(events))

	assert.Equal(t, DefaultAgentName, profile.AgentName)
	assert.Equal(t, DefaultBrandColor, profile.BrandColor)
	assert.Equal(t, "https://www.tienda.com", profile.WebsiteURL)
	assert.Equal(t, "soporte@tienda.com", profile.ContactInfo.Support)
	assert.Equal(t, "ventas@tienda.com", profile.ContactInfo.Sales)

	var names []string
	ids := map[string]bool{}
	for _, p := range profile.Products {
		names = append(names, p.Name)
		assert.False(t, ids[p.ID], "duplicate id %s", p.ID)
		ids[p.ID] = true
		assert.NotEmpty(t, p.Kind)
	}
	assert.Equal(t, []string{"Ratón", "Teclado", "Instalación", "Ofertas"}, names)
	assert.Equal(t, "a", profile.Products[0].ID)
	assert.Equal(t, "prod-gen-1", profile.Products[1].ID)
	assert.Equal(t, "20", profile.Products[0].Price)
	assert.Equal(t, domain.KindProduct, profile.Products[1].Kind)
	assert.Equal(t, domain.KindService, profile.Products[2].Kind)
	assert.Empty(t, profile.Products[3].Price, "LINK entries carry no price")

	require.Len(t, profile.NavigationTree, 1)
	require.Len(t, profile.Sources, 1)
	assert.Equal(t, "www.tienda.com", profile.Sources[0].Title)

	require.Equal(t, 1, gen.Calls())
	assert.NotNil(t, gen.Requests[0].Schema)
	assert.Contains(t, gen.Requests[0].Parts[len(gen.Requests[0].Parts)-1].Text, "SALIDA JSON EN ESPAÑOL.")
}

func TestSynthesize_UnparsableOutputExhaustsRetries(t *testing.T) {
	gen := llm.NewMockLLM(
		llm.MockResponse{Text: "lo siento, no puedo"},
		llm.MockResponse{Text: "{ roto"},
		llm.MockResponse{Text: "tampoco"},
	)
	s := New(NewSchemaStrategy(gen, false),
		WithBackoff(0), WithModel("primary"), WithFallbackModel("fallback"))

	events := make(chan Progress, 32)
	profile, err := s.Synthesize(context.Background(), Input{Bundle: bundle(), Language: domain.LangEN}, events)
	require.Error(t, err)
	assert.Nil(t, profile)

	var serr *domain.SynthesisError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 3, serr.Attempts)
	assert.Equal(t, 3, gen.Calls())
	assert.Equal(t, "primary", gen.Requests[0].Model)
	assert.Equal(t, "fallback", gen.Requests[1].Model)
	assert.Equal(t, "fallback", gen.Requests[2].Model)

	got := drain(events)
	assertProgressContract(t, got)
	final := got[len(got)-1]
	assert.Equal(t, "failed", final.Phase)
	assert.NotEmpty(t, final.Err)
	assert.Less(t, final.Percent, 100)
}

func TestSynthesize_RecoversAfterBackendError(t *testing.T) {
	gen := llm.NewMockLLM(
		llm.MockResponse{Err: errors.New("503 overloaded")},
		llm.MockResponse{Text: `{"summary":"ok","systemInstruction":"x","suggestedGreeting":"hi","products":[]}`},
	)
	slept := 0
	s := New(NewSchemaStrategy(gen, true))
	s.sleep = func(context.Context, time.Duration) error { slept++; return nil }

	profile, err := s.Synthesize(context.Background(), Input{Bundle: bundle()}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", profile.Summary)
	assert.Equal(t, 1, slept)
	assert.True(t, gen.Requests[0].SearchAugmented)
}

func TestSynthesize_SearchAugmentedFencedJSON(t *testing.T) {
	gen := llm.NewMockLLM(llm.MockResponse{
		Text:      "Aquí tienes el perfil:\n```json\n{\"summary\":\"Informática\",\"systemInstruction\":\"Vende\",\"products\":[{\"id\":\"p1\",\"name\":\"Ratón\",\"buyUrl\":\"https://www.tienda.com/p/raton\"}]}\n```",
		Citations: []domain.Citation{{Title: "Ratón", URI: "https://www.tienda.com/p/raton"}},
	})
	s := New(NewSchemaStrategy(gen, true), WithBackoff(0))

	profile, err := s.Synthesize(context.Background(), Input{Bundle: bundle(), Language: domain.LangES}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Calls(), "fenced output must not be retried")
	assert.Equal(t, "Informática", profile.Summary)
	require.Len(t, profile.Products, 1)
	assert.Equal(t, "p1", profile.Products[0].ID)
	require.Len(t, profile.Sources, 1)
}

func TestSynthesize_EmptyBundle(t *testing.T) {
	gen := llm.NewMockLLM()
	events := make(chan Progress, 4)
	_, err := New(NewSchemaStrategy(gen, false)).Synthesize(context.Background(), Input{}, events)
	require.ErrorIs(t, err, domain.ErrEmptyContext)
	assert.Zero(t, gen.Calls())
	assertProgressContract(t, drain(events))
}

func TestSynthesize_CancelledDuringBackoff(t *testing.T) {
	gen := llm.NewMockLLM(llm.MockResponse{Err: errors.New("boom")})
	ctx, cancel := context.WithCancel(context.Background())
	s := New(NewSchemaStrategy(gen, false))
	s.sleep = func(context.Context, time.Duration) error { cancel(); return context.Canceled }

	_, err := s.Synthesize(ctx, Input{Bundle: bundle()}, nil)
	var serr *domain.SynthesisError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 1, serr.Attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTwoPhase_MergesPhasesAndCitations(t *testing.T) {
	gen := llm.NewMockLLM(
		llm.MockResponse{
			Text: "Claro, aquí va:\n```json\n" + `{"summary":"Tienda","systemInstruction":"Vende","suggestedGreeting":"Hola",
"brandColor":"#112233","websiteUrl":"https://tienda.com",
"navigationTree":[{"name":"Portátiles","url":"https://tienda.com/portatiles"},{"name":"Tablets","url":"https://tienda.com/tablets"}]}` + "\n```",
			Citations: []domain.Citation{{Title: "Inicio", URI: "https://tienda.com"}},
		},
		llm.MockResponse{
			Text:      `{"products":[{"id":"p1","name":"Lenovo IdeaPad","price":"499 €","buyUrl":"https://tienda.com/p/ideapad"}]}`,
			Citations: []domain.Citation{{Title: "Inicio", URI: "https://tienda.com"}, {Title: "IdeaPad", URI: "https://tienda.com/p/ideapad"}},
		},
	)
	s := New(NewTwoPhaseStrategy(gen), WithBackoff(0))
	events := make(chan Progress, 32)
	profile, err := s.Synthesize(context.Background(), Input{Bundle: bundle(), Language: domain.LangES}, events)
	require.NoError(t, err)
	assertProgressContract(t, drain(events))

	assert.Equal(t, "#112233", profile.BrandColor)
	assert.Equal(t, "https://tienda.com", profile.WebsiteURL)
	require.Len(t, profile.Products, 1)
	assert.Equal(t, "p1", profile.Products[0].ID)
	assert.Len(t, profile.NavigationTree, 2)
	assert.Len(t, profile.Sources, 2)

	require.Equal(t, 2, gen.Calls())
	for _, req := range gen.Requests {
		assert.True(t, req.SearchAugmented)
		assert.Nil(t, req.Schema)
	}
	phase2 := gen.Requests[1].Parts[len(gen.Requests[1].Parts)-1].Text
	assert.Contains(t, phase2, "Portátiles, Tablets")
	assert.Contains(t, phase2, "https://tienda.com")
}

func TestTwoPhase_GarbageIsRetriedNotFatal(t *testing.T) {
	var script []llm.MockResponse
	for i := 0; i < 6; i++ {
		script = append(script, llm.MockResponse{Text: "no json here"})
	}
	gen := llm.NewMockLLM(script...)

	_, err := New(NewTwoPhaseStrategy(gen), WithBackoff(0)).
		Synthesize(context.Background(), Input{Bundle: bundle()}, nil)
	var serr *domain.SynthesisError
	require.True(t, errors.As(err, &serr))
	assert.ErrorIs(t, err, errUnusableOutput)
	assert.Equal(t, 6, gen.Calls())
}

func TestLenientDecode(t *testing.T) {
	p := lenientDecode("prefix {\"summary\": \"s\", \"products\": [{\"name\": \"x\", \"price\": 9.5}]} suffix")
	assert.Equal(t, "s", p.Summary)
	require.Len(t, p.Products, 1)
	assert.Equal(t, flexString("9.5"), p.Products[0].Price)

	empty := lenientDecode("nothing")
	assert.False(t, empty.usable())
}
