package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"google.golang.org/genai"

	"github.com/PabloGalante/brandbot/internal/domain"
)

const DefaultModel = "gemini-2.5-flash"

// GeminiConfig selects the backend: an API key targets the Gemini API,
// otherwise Project and Location target Vertex AI.
type GeminiConfig struct {
	APIKey   string
	Project  string
	Location string
	Model    string
}

type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a domain.Generator backed by Gemini.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{}
	switch {
	case cfg.APIKey != "":
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case cfg.Project != "" && cfg.Location != "":
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("gemini: an API key or a GCP project and location are required")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// Generate implements domain.Generator.
func (g *GeminiClient) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = g.modelName
	}

	// 1) History (user / agent) as conversation
	var contents []*genai.Content
	for _, t := range req.History {
		role := genai.RoleUser
		if t.Role == domain.RoleAgent {
			role = genai.RoleModel
		}
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(role)))
	}

	// 2) Current prompt parts, text and inline files
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsBinary() {
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MimeType))
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	if len(parts) == 0 {
		return nil, errors.New("gemini: empty prompt")
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	// 3) Model config
	temp := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.SearchAugmented {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	// The search tool cannot be combined with a response schema; callers
	// decode the text themselves in that case.
	if req.Schema != nil && !req.SearchAugmented {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGenaiSchema(req.Schema)
	}

	res, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	citations := groundingCitations(res)
	if strings.TrimSpace(text) == "" && len(citations) == 0 {
		return nil, errors.New("gemini returned empty text")
	}

	out := &domain.GenerateResponse{Text: text, Citations: citations}
	if req.Schema != nil && json.Valid([]byte(strings.TrimSpace(text))) {
		out.Structured = json.RawMessage(strings.TrimSpace(text))
	}
	return out, nil
}

func toGenaiSchema(s *domain.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        schemaType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func schemaType(t domain.SchemaType) genai.Type {
	switch t {
	case domain.SchemaObject:
		return genai.TypeObject
	case domain.SchemaArray:
		return genai.TypeArray
	case domain.SchemaNumber:
		return genai.TypeNumber
	case domain.SchemaBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// groundingCitations collects web sources attached to the first candidate.
// A missing title falls back to the source host.
func groundingCitations(res *genai.GenerateContentResponse) []domain.Citation {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var out []domain.Citation
	for _, chunk := range res.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		title := chunk.Web.Title
		if title == "" {
			if u, err := url.Parse(chunk.Web.URI); err == nil {
				title = u.Hostname()
			}
		}
		out = append(out, domain.Citation{Title: title, URI: chunk.Web.URI})
	}
	return out
}
