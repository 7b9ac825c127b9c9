package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/PabloGalante/brandbot/internal/domain"
)

// MockGenerator is a domain.Generator for local mode and tests. Scripted
// responses are returned in order; once exhausted, Fallback (or a canned
// default) answers.
type MockGenerator struct {
	mu       sync.Mutex
	script   []MockResponse
	Fallback func(req domain.GenerateRequest) (*domain.GenerateResponse, error)
	Requests []domain.GenerateRequest
}

// MockResponse is one scripted backend answer.
type MockResponse struct {
	Text      string
	Citations []domain.Citation
	Err       error
}

func NewMockLLM(script ...MockResponse) *MockGenerator {
	return &MockGenerator{script: script}
}

// Push appends scripted responses.
func (m *MockGenerator) Push(r ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, r...)
}

// Calls returns how many requests were received.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func (m *MockGenerator) Generate(_ context.Context, req domain.GenerateRequest) (*domain.GenerateResponse, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	var next *MockResponse
	if len(m.script) > 0 {
		next = &m.script[0]
		m.script = m.script[1:]
	}
	fallback := m.Fallback
	m.mu.Unlock()

	if next != nil {
		if next.Err != nil {
			return nil, next.Err
		}
		return respond(req, next.Text, next.Citations), nil
	}
	if fallback != nil {
		return fallback(req)
	}
	return cannedReply(req), nil
}

func respond(req domain.GenerateRequest, text string, citations []domain.Citation) *domain.GenerateResponse {
	res := &domain.GenerateResponse{Text: text, Citations: citations}
	if req.Schema != nil && json.Valid([]byte(strings.TrimSpace(text))) {
		res.Structured = json.RawMessage(strings.TrimSpace(text))
	}
	return res
}

// cannedReply gives the dev server some personality without a real backend.
func cannedReply(req domain.GenerateRequest) *domain.GenerateResponse {
	var user string
	for _, p := range req.Parts {
		if !p.IsBinary() {
			user = p.Text
		}
	}
	if req.Schema == nil {
		return &domain.GenerateResponse{Text: fmt.Sprintf("Te escucho. Dijiste %q. ¿Qué producto buscas?", user)}
	}
	if _, ok := req.Schema.Properties["answer"]; ok {
		body, _ := json.Marshal(map[string]any{
			"answer":                "Te ayudo con eso. ¿Buscas algo en concreto?",
			"recommendedProductIds": []string{},
		})
		return respond(req, string(body), nil)
	}
	body, _ := json.Marshal(map[string]any{
		"agentName":         "Asistente",
		"summary":           "Tienda online (perfil generado en modo local).",
		"systemInstruction": "Eres un asistente de ventas amable y conciso.",
		"suggestedGreeting": "¡Hola! ¿En qué puedo ayudarte hoy?",
		"brandColor":        "#0ea5e9",
		"products":          []any{},
	})
	return respond(req, string(body), nil)
}
