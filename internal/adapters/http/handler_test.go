package httpadapter_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/PabloGalante/brandbot/internal/adapters/http"
	"github.com/PabloGalante/brandbot/internal/adapters/llm"
	"github.com/PabloGalante/brandbot/internal/adapters/storage/memory"
	"github.com/PabloGalante/brandbot/internal/app/conversation"
	"github.com/PabloGalante/brandbot/internal/app/grounding"
	"github.com/PabloGalante/brandbot/internal/app/ingest"
	"github.com/PabloGalante/brandbot/internal/app/synth"
	"github.com/PabloGalante/brandbot/internal/app/workspace"
	"github.com/PabloGalante/brandbot/internal/domain"
)

const (
	activeToken   = "tok-active-123"
	inactiveToken = "tok-inactive-456"
)

const profileJSON = `{"agentName":"Pixel","brandColor":"#112233","summary":"Tienda de informática",
"systemInstruction":"Vende periféricos","suggestedGreeting":"¡Hola! Soy Pixel",
"websiteUrl":"https://tienda.com",
"products":[{"id":"p1","name":"Ratón inalámbrico","price":"20 €","buyUrl":"https://tienda.com/p/raton"}]}`

type testServer struct {
	handler http.Handler
	gen     *llm.MockGenerator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gen := llm.NewMockLLM()
	gateway := workspace.NewGateway(memory.NewProfileStore(), memory.NewBlobStore())
	wsSvc := workspace.NewService(
		gateway,
		ingest.New(ingest.WithBlobLoader(gateway)),
		synth.New(synth.NewSchemaStrategy(gen, false), synth.WithBackoff(0)),
	)
	t.Cleanup(wsSvc.Flush)

	convSvc := conversation.NewService(
		grounding.NewResolver(grounding.NewStructuredStrategy(gen)),
		wsSvc,
		memory.NewSessionStore(),
		memory.NewTurnStore(),
	)
	tokens := memory.NewTokenValidator(
		domain.Account{Token: activeToken, Email: "op@tienda.com", IsActive: true, Role: domain.AccountUser},
		domain.Account{Token: inactiveToken, Email: "old@tienda.com", IsActive: false},
	)

	return &testServer{
		handler: httpadapter.NewServer(wsSvc, convSvc, tokens),
		gen:     gen,
	}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body=%s", w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodGet, "/healthz", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodGet, "/workspace", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodGet, "/workspace", "nope", "").Code)
	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodGet, "/workspace", inactiveToken, "").Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/workspace", activeToken, "").Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodOptions, "/workspace", "", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestTrainAndChat(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/workspace/items", activeToken, `{"type":"TEXT","content":"Vendemos ratones"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = srv.do(t, http.MethodPost, "/sessions", activeToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "chat needs a trained profile")

	srv.gen.Push(llm.MockResponse{Text: profileJSON})
	w = srv.do(t, http.MethodPost, "/workspace/train", activeToken, `{"language":"es"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	trained := decode[map[string]any](t, w)
	profile := trained["profile"].(map[string]any)
	assert.Equal(t, "Pixel", profile["agentName"])

	w = srv.do(t, http.MethodGet, "/workspace/train", activeToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[workspace.Status](t, w)
	assert.False(t, status.Running)
	assert.Equal(t, 100, status.Last.Percent)

	w = srv.do(t, http.MethodPost, "/sessions", activeToken, `{"language":"es"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Session struct {
			ID        string `json:"id"`
			AgentName string `json:"agentName"`
		} `json:"session"`
		Greeting struct {
			Text string `json:"text"`
		} `json:"greeting"`
	}](t, w)
	assert.Equal(t, "Pixel", created.Session.AgentName)
	assert.Equal(t, "¡Hola! Soy Pixel", created.Greeting.Text)

	srv.gen.Push(llm.MockResponse{Text: `{"answer":"Te recomiendo este ratón","recommendedProductIds":["p1"]}`})
	w = srv.do(t, http.MethodPost, "/sessions/"+created.Session.ID+"/messages", activeToken, `{"text":"¿Tenéis ratones?"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reply := decode[struct {
		AgentTurn struct {
			Text         string           `json:"text"`
			ProductCards []domain.Product `json:"productCards"`
		} `json:"agentTurn"`
	}](t, w)
	assert.Equal(t, "Te recomiendo este ratón", reply.AgentTurn.Text)
	require.Len(t, reply.AgentTurn.ProductCards, 1)
	assert.Equal(t, "p1", reply.AgentTurn.ProductCards[0].ID)

	w = srv.do(t, http.MethodGet, "/sessions/"+created.Session.ID, activeToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	timeline := decode[struct {
		Turns []struct {
			Role string `json:"role"`
		} `json:"turns"`
	}](t, w)
	require.Len(t, timeline.Turns, 3)
	assert.Equal(t, "agent", timeline.Turns[0].Role)
	assert.Equal(t, "user", timeline.Turns[1].Role)

	assert.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/sessions/"+created.Session.ID, activeToken, "").Code)
	w = srv.do(t, http.MethodPost, "/sessions/"+created.Session.ID+"/messages", activeToken, `{"text":"hola"}`)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestTrainFailureMapsToBadGateway(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		srv.do(t, http.MethodPost, "/workspace/items", activeToken, `{"type":"TEXT","content":"Vendemos ratones"}`).Code)

	srv.gen.Push(
		llm.MockResponse{Text: "no es json"},
		llm.MockResponse{Text: "no es json"},
		llm.MockResponse{Text: "no es json"},
	)
	w := srv.do(t, http.MethodPost, "/workspace/train", activeToken, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = srv.do(t, http.MethodGet, "/workspace", activeToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[map[string]any](t, w)["profile"])
}

func TestTrainWithoutItems(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodPost, "/workspace/train", activeToken, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkspaceItemsAndContacts(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/workspace/items", activeToken,
		`{"type":"FILE","fileName":"catalogo.pdf","mimeType":"application/pdf","fileData":"JVBERi0xLjQ="}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	file := decode[map[string]any](t, w)
	assert.Equal(t, true, file["hasFile"])
	assert.NotContains(t, w.Body.String(), "JVBERi0")

	w = srv.do(t, http.MethodPut, "/workspace/contacts", activeToken, `{"sales":"ventas@tienda.com"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodPost, "/workspace/rules", activeToken, `{"text":"Envío gratis desde 50 €"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.do(t, http.MethodGet, "/workspace", activeToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	ws := decode[struct {
		Items []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"items"`
	}](t, w)
	require.Len(t, ws.Items, 3)
	assert.Contains(t, ws.Items[1].Content, string(domain.TagSales))
	assert.Contains(t, ws.Items[2].Content, string(domain.TagBusinessRule))

	w = srv.do(t, http.MethodDelete, "/workspace/items/"+ws.Items[0].ID, activeToken, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = srv.do(t, http.MethodDelete, "/workspace/items/"+ws.Items[0].ID, activeToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodPut, "/workspace/items", activeToken, `{"items":[]}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodPost, "/workspace/items", activeToken, `{"type":"URL","content":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/workspace/items", activeToken, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatchProfileAndEmbed(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPatch, "/workspace/profile", activeToken, `{"agentName":"Nuevo"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusCreated,
		srv.do(t, http.MethodPost, "/workspace/items", activeToken, `{"type":"TEXT","content":"Vendemos ratones"}`).Code)
	srv.gen.Push(llm.MockResponse{Text: profileJSON})
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/workspace/train", activeToken, "").Code)

	w = srv.do(t, http.MethodPatch, "/workspace/profile", activeToken, `{"brandColor":"rojo"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPatch, "/workspace/profile", activeToken, `{"brandColor":"#abcdef"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "#abcdef", decode[domain.AgentProfile](t, w).BrandColor)

	w = srv.do(t, http.MethodGet, "/workspace/embed", activeToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	snippet := decode[map[string]string](t, w)["snippet"]
	assert.Contains(t, snippet, activeToken)
	assert.Contains(t, snippet, "#abcdef")

	assert.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/workspace", activeToken, "").Code)
	w = srv.do(t, http.MethodGet, "/workspace", activeToken, "")
	assert.Nil(t, decode[map[string]any](t, w)["profile"])
}

func TestSessionsAreScopedByToken(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodGet, "/sessions/does-not-exist", activeToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodGet, "/sessions/x?limit=abc", activeToken, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
