package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PabloGalante/brandbot/internal/domain"
)

const blobScheme = "mem://"

// BlobStore keeps file payloads in process memory.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

func (s *BlobStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = append([]byte(nil), data...)
	return blobScheme + key, nil
}

func (s *BlobStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[strings.TrimPrefix(ref, blobScheme)]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", ref, domain.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *BlobStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, strings.TrimPrefix(ref, blobScheme))
	return nil
}

// Len reports how many payloads are stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
