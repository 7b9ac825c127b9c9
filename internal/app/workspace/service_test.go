package workspace_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/brandbot/internal/adapters/llm"
	"github.com/PabloGalante/brandbot/internal/adapters/storage/memory"
	"github.com/PabloGalante/brandbot/internal/app/ingest"
	"github.com/PabloGalante/brandbot/internal/app/synth"
	"github.com/PabloGalante/brandbot/internal/app/workspace"
	"github.com/PabloGalante/brandbot/internal/domain"
)

const token = domain.Token("tok-123456789")

const trainedProfile = `{"agentName":"Pixel","brandColor":"#ff0000","summary":"Informática",
"systemInstruction":"Vende","suggestedGreeting":"Hola","websiteUrl":"https://tienda.com",
"products":[{"id":"p1","name":"Ratón","buyUrl":"https://tienda.com/p/raton"}]}`

type fixture struct {
	gen     *llm.MockGenerator
	store   *memory.ProfileStore
	blobs   *memory.BlobStore
	gateway *workspace.Gateway
	svc     *workspace.Service
}

func newFixture(t *testing.T, opts ...workspace.Option) *fixture {
	t.Helper()
	f := &fixture{
		gen:   llm.NewMockLLM(),
		store: memory.NewProfileStore(),
		blobs: memory.NewBlobStore(),
	}
	f.gateway = workspace.NewGateway(f.store, f.blobs)
	f.svc = f.service(opts...)
	return f
}

// service builds a fresh service over the fixture's stores, as a restart would.
func (f *fixture) service(opts ...workspace.Option) *workspace.Service {
	ing := ingest.New(ingest.WithBlobLoader(f.gateway))
	syn := synth.New(synth.NewSchemaStrategy(f.gen, false), synth.WithBackoff(0))
	return workspace.NewService(f.gateway, ing, syn, opts...)
}

func TestTrain_PersistsProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gen.Push(llm.MockResponse{Text: trainedProfile})

	_, err := f.svc.AddItem(ctx, token, domain.ContextItem{Kind: domain.ContextURL, Content: "https://tienda.com"})
	require.NoError(t, err)

	profile, warnings, err := f.svc.Train(ctx, token, domain.LangES)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "Pixel", profile.AgentName)

	stored, err := f.store.Load(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, stored.Profile)
	assert.Equal(t, "p1", stored.Profile.Products[0].ID)

	status, err := f.svc.Status(ctx, token)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.True(t, status.Last.Done)
	assert.Equal(t, 100, status.Last.Percent)
}

func TestTrain_FailureLeavesProfileUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prior := &domain.AgentProfile{AgentName: "Antes", Summary: "perfil previo"}
	require.NoError(t, f.store.Save(ctx, token, &domain.Workspace{
		Profile: prior,
		Items:   []domain.ContextItem{{ID: "t1", Kind: domain.ContextText, Content: "Vendemos portátiles"}},
	}))
	f.gen.Push(
		llm.MockResponse{Text: "no es json"},
		llm.MockResponse{Text: "tampoco"},
		llm.MockResponse{Text: "nada"},
	)

	_, _, err := f.svc.Train(ctx, token, domain.LangES)
	var serr *domain.SynthesisError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 3, serr.Attempts)

	got, err := f.svc.Profile(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, prior, got)

	stored, err := f.store.Load(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, prior, stored.Profile)

	status, err := f.svc.Status(ctx, token)
	require.NoError(t, err)
	assert.True(t, status.Last.Done)
	assert.NotEmpty(t, status.Last.Err)
}

func TestTrain_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	release := make(chan struct{})
	f.gen.Fallback = func(domain.GenerateRequest) (*domain.GenerateResponse, error) {
		<-release
		return &domain.GenerateResponse{Structured: []byte(trainedProfile)}, nil
	}
	_, err := f.svc.AddRule(ctx, token, "Nunca ofrezcas descuentos")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, _, err := f.svc.Train(ctx, token, domain.LangES)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.gen.Calls() == 1 }, time.Second, 5*time.Millisecond)

	_, _, err = f.svc.Train(ctx, token, domain.LangES)
	assert.ErrorIs(t, err, domain.ErrTrainingRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestFileItems_OffloadedAndRehydrated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pdf := []byte("%PDF-1.4 catalogo")

	item, err := f.svc.AddItem(ctx, token, domain.ContextItem{
		Kind: domain.ContextFile, Content: "Catálogo", FileName: "catalogo.pdf", FileData: pdf, MimeType: "application/pdf",
	})
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)

	stored, err := f.store.Load(ctx, token)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Empty(t, stored.Items[0].FileData)
	assert.NotEmpty(t, stored.Items[0].BlobRef)

	restarted := f.service()
	f.gen.Push(llm.MockResponse{Text: trainedProfile})
	_, _, err = restarted.Train(ctx, token, domain.LangEN)
	require.NoError(t, err)

	require.Equal(t, 1, f.gen.Calls())
	var found bool
	for _, p := range f.gen.Requests[0].Parts {
		if p.IsBinary() {
			found = true
			assert.Equal(t, pdf, p.Data)
			assert.Equal(t, "application/pdf", p.MimeType)
		}
	}
	assert.True(t, found, "file bytes were not rehydrated into the prompt")
}

type countingBlobs struct {
	*memory.BlobStore
	puts int
}

func (c *countingBlobs) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	c.puts++
	return c.BlobStore.Put(ctx, key, data, mimeType)
}

func TestFileItems_UploadedOnce(t *testing.T) {
	f := newFixture(t)
	blobs := &countingBlobs{BlobStore: f.blobs}
	f.gateway = workspace.NewGateway(f.store, blobs)
	f.svc = f.service()
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, token, domain.ContextItem{
		Kind: domain.ContextFile, Content: "Catálogo", FileName: "catalogo.pdf", FileData: []byte("%PDF"), MimeType: "application/pdf",
	})
	require.NoError(t, err)
	_, err = f.svc.AddRule(ctx, token, "Sin envíos a Canarias")
	require.NoError(t, err)
	require.NoError(t, f.svc.SetContacts(ctx, token, domain.ContactInfo{Sales: "ventas@tienda.com"}))

	assert.Equal(t, 1, blobs.puts)
	assert.Equal(t, 1, f.blobs.Len())

	ws, _, err := f.svc.Snapshot(ctx, token)
	require.NoError(t, err)
	assert.NotEmpty(t, ws.Items[0].BlobRef)
}

func TestFileItems_BlobsDeletedWithItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"a.pdf", "b.pdf"} {
		_, err := f.svc.AddItem(ctx, token, domain.ContextItem{
			Kind: domain.ContextFile, Content: name, FileName: name, FileData: []byte(name), MimeType: "application/pdf",
		})
		require.NoError(t, err)
	}
	require.Equal(t, 2, f.blobs.Len())

	stored, err := f.store.Load(ctx, token)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	first, second := stored.Items[0], stored.Items[1]

	require.NoError(t, f.svc.RemoveItem(ctx, token, first.ID))
	assert.Equal(t, 1, f.blobs.Len())
	_, err = f.blobs.Get(ctx, first.BlobRef)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.blobs.Get(ctx, second.BlobRef)
	assert.NoError(t, err)

	require.NoError(t, f.svc.Reset(ctx, token))
	assert.Zero(t, f.blobs.Len())
}

func TestSetItems_KeepsReplacedPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := domain.ContextItem{ID: "f1", Kind: domain.ContextFile, FileName: "a.pdf", FileData: []byte("v1"), MimeType: "application/pdf"}
	require.NoError(t, f.svc.SetItems(ctx, token, []domain.ContextItem{item}))

	item.FileData = []byte("v2")
	require.NoError(t, f.svc.SetItems(ctx, token, []domain.ContextItem{item}))

	stored, err := f.store.Load(ctx, token)
	require.NoError(t, err)
	data, err := f.blobs.Get(ctx, stored.Items[0].BlobRef)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
	assert.Equal(t, 1, f.blobs.Len())
}

func TestSetContacts_ReplacesInsteadOfDuplicating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetContacts(ctx, token, domain.ContactInfo{Sales: "a@x.com", Support: "s@x.com"}))
	require.NoError(t, f.svc.SetContacts(ctx, token, domain.ContactInfo{Sales: "b@x.com"}))
	_, err := f.svc.AddItem(ctx, token, domain.ContextItem{Kind: domain.ContextText, Content: "[CONTACTO_VENTAS]: c@x.com"})
	require.NoError(t, err)

	ws, _, err := f.svc.Snapshot(ctx, token)
	require.NoError(t, err)
	require.Len(t, ws.Items, 1)
	assert.Equal(t, domain.ContactInfo{Sales: "c@x.com"}, domain.ContactsFromItems(ws.Items))
}

func TestAddItem_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, token, domain.ContextItem{Kind: domain.ContextText, Content: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.svc.AddItem(ctx, token, domain.ContextItem{Kind: domain.ContextFile, FileName: "x.pdf"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.svc.AddItem(ctx, token, domain.ContextItem{Kind: "AUDIO", Content: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.svc.AddRule(ctx, token, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, f.svc.RemoveItem(ctx, token, "missing"), domain.ErrNotFound)
}

func TestPatchProfile_DebouncesWrites(t *testing.T) {
	f := newFixture(t, workspace.WithAutosaveDelay(time.Hour))
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, token, &domain.Workspace{Profile: &domain.AgentProfile{AgentName: "A"}}))
	before := f.store.Saves()

	for _, c := range []string{"#111111", "#222222", "#333333"} {
		color := c
		_, err := f.svc.PatchProfile(ctx, token, workspace.ProfilePatch{BrandColor: &color})
		require.NoError(t, err)
	}
	name := "Nuevo"
	got, err := f.svc.PatchProfile(ctx, token, workspace.ProfilePatch{AgentName: &name})
	require.NoError(t, err)
	assert.Equal(t, "#333333", got.BrandColor)
	assert.Equal(t, before, f.store.Saves(), "no write before the quiet period ends")

	f.svc.Flush()
	assert.Equal(t, before+1, f.store.Saves())
	stored, err := f.store.Load(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Nuevo", stored.Profile.AgentName)
	assert.Equal(t, "#333333", stored.Profile.BrandColor)
}

func TestPatchProfile_AutosaveFires(t *testing.T) {
	f := newFixture(t, workspace.WithAutosaveDelay(10*time.Millisecond))
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, token, &domain.Workspace{Profile: &domain.AgentProfile{AgentName: "A"}}))

	name := "B"
	_, err := f.svc.PatchProfile(ctx, token, workspace.ProfilePatch{AgentName: &name})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		ws, err := f.store.Load(ctx, token)
		return err == nil && ws.Profile.AgentName == "B"
	}, time.Second, 5*time.Millisecond)
}

func TestPatchProfile_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	name := "X"
	_, err := f.svc.PatchProfile(ctx, token, workspace.ProfilePatch{AgentName: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bad := "rojo"
	_, err = f.svc.PatchProfile(ctx, token, workspace.ProfilePatch{BrandColor: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmbedSnippet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snippet, err := f.svc.EmbedSnippet(ctx, token)
	require.NoError(t, err)
	assert.Contains(t, snippet, `token: "tok-123456789"`)
	assert.Contains(t, snippet, `primaryColor: "#0ea5e9"`)
	assert.True(t, strings.Contains(snippet, workspace.DefaultWidgetURL))
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, token, &domain.Workspace{
		Profile: &domain.AgentProfile{AgentName: "A"},
		Items:   []domain.ContextItem{{ID: "1", Kind: domain.ContextText, Content: "x"}},
	}))

	require.NoError(t, f.svc.Reset(ctx, token))
	_, err := f.svc.Profile(ctx, token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	stored, err := f.store.Load(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)
}

func TestReset_RefusedWhileTraining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	release := make(chan struct{})
	f.gen.Fallback = func(domain.GenerateRequest) (*domain.GenerateResponse, error) {
		<-release
		return &domain.GenerateResponse{Structured: []byte(trainedProfile)}, nil
	}
	_, err := f.svc.AddItem(ctx, token, domain.ContextItem{Kind: domain.ContextURL, Content: "https://tienda.com"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, _, err := f.svc.Train(ctx, token, domain.LangES)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.gen.Calls() == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, f.svc.Reset(ctx, token), domain.ErrTrainingRunning)
	_, _, err = f.svc.Train(ctx, token, domain.LangES)
	assert.ErrorIs(t, err, domain.ErrTrainingRunning)
	status, err := f.svc.Status(ctx, token)
	require.NoError(t, err)
	assert.True(t, status.Running)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.gen.Calls())

	require.NoError(t, f.svc.Reset(ctx, token))
	_, err = f.svc.Profile(ctx, token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	ws, status, err := f.svc.Snapshot(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, ws.Items)
	assert.False(t, status.Running)
}

type failingStore struct{}

func (failingStore) Load(context.Context, domain.Token) (*domain.Workspace, error) {
	return nil, errors.New("unavailable")
}

func (failingStore) Save(context.Context, domain.Token, *domain.Workspace) error {
	return errors.New("unavailable")
}

func TestGateway_WrapsFailures(t *testing.T) {
	gw := workspace.NewGateway(failingStore{}, nil)
	ctx := context.Background()

	_, err := gw.Load(ctx, token)
	var perr *domain.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "load", perr.Op)

	err = gw.Save(ctx, token, &domain.Workspace{})
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "save", perr.Op)
}

func TestGateway_LoadMissingIsEmpty(t *testing.T) {
	gw := workspace.NewGateway(memory.NewProfileStore(), nil)
	ws, err := gw.Load(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, ws.Profile)
	assert.Empty(t, ws.Items)
}
