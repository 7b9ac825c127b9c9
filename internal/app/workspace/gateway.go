// Package workspace holds an operator's context items and agent profile,
// persists them per access token and runs training.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

// Gateway is the persistence boundary. Writes for one token are serialized;
// different tokens never contend. File payloads are moved to the blob store
// when one is configured, leaving only a reference in the document.
type Gateway struct {
	store domain.ProfileStore
	blobs domain.BlobStore

	mu    sync.Mutex
	locks map[domain.Token]*sync.Mutex
}

// NewGateway builds a gateway. blobs may be nil, in which case file bytes
// stay inline in the stored document.
func NewGateway(store domain.ProfileStore, blobs domain.BlobStore) *Gateway {
	return &Gateway{store: store, blobs: blobs, locks: make(map[domain.Token]*sync.Mutex)}
}

func (g *Gateway) lockFor(token domain.Token) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[token]
	if !ok {
		l = &sync.Mutex{}
		g.locks[token] = l
	}
	return l
}

// Load returns the stored workspace, or an empty one when none exists yet.
func (g *Gateway) Load(ctx context.Context, token domain.Token) (*domain.Workspace, error) {
	ws, err := g.store.Load(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Workspace{}, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Token: token, Err: err}
	}
	return ws, nil
}

// Save offloads new file payloads and writes the document. Offloaded items
// get their BlobRef recorded on ws so later saves do not upload them again;
// nothing else in ws is modified.
func (g *Gateway) Save(ctx context.Context, token domain.Token, ws *domain.Workspace) error {
	l := g.lockFor(token)
	l.Lock()
	defer l.Unlock()

	doc := ws.Clone()
	if g.blobs != nil {
		for i := range doc.Items {
			it := &doc.Items[i]
			if it.Kind != domain.ContextFile || len(it.FileData) == 0 {
				continue
			}
			if it.BlobRef == "" {
				ref, err := g.blobs.Put(ctx, blobKey(token, it.ID), it.FileData, it.MimeType)
				if err != nil {
					return &domain.PersistenceError{Op: "offload", Token: token, Err: err}
				}
				it.BlobRef = ref
				ws.Items[i].BlobRef = ref
			}
			it.FileData = nil
		}
	}
	if err := g.store.Save(ctx, token, doc); err != nil {
		return &domain.PersistenceError{Op: "save", Token: token, Err: err}
	}
	observability.LoggerFromContext(ctx).Debug("workspace saved",
		"token", token.Short(), "items", len(doc.Items), "has_profile", doc.Profile != nil)
	return nil
}

// DeleteBlobs removes offloaded payloads that no item references anymore.
// Failures are logged; a leftover blob never blocks the workspace.
func (g *Gateway) DeleteBlobs(ctx context.Context, token domain.Token, refs []string) {
	if g.blobs == nil {
		return
	}
	for _, ref := range refs {
		if err := g.blobs.Delete(ctx, ref); err != nil {
			observability.LoggerFromContext(ctx).Warn("failed to delete blob",
				"token", token.Short(), "ref", ref, "error", err)
		}
	}
}

// Get rehydrates an offloaded file payload.
func (g *Gateway) Get(ctx context.Context, ref string) ([]byte, error) {
	if g.blobs == nil {
		return nil, fmt.Errorf("blob %s: %w", ref, domain.ErrNotFound)
	}
	return g.blobs.Get(ctx, ref)
}

func blobKey(token domain.Token, itemID string) string {
	return "context/" + string(token) + "/" + itemID
}

// orphanedBlobs lists the refs held by before that after no longer holds.
func orphanedBlobs(before, after []domain.ContextItem) []string {
	kept := make(map[string]struct{}, len(after))
	for _, it := range after {
		if it.BlobRef != "" {
			kept[it.BlobRef] = struct{}{}
		}
	}
	var out []string
	for _, it := range before {
		if it.BlobRef == "" {
			continue
		}
		if _, ok := kept[it.BlobRef]; !ok {
			out = append(out, it.BlobRef)
		}
	}
	return out
}
