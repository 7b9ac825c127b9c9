// Package badger persists workspaces and file payloads in a local BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/PabloGalante/brandbot/internal/domain"
)

const (
	workspacePrefix = "ws/"
	blobPrefix      = "blob/"
	blobScheme      = "badger://"
)

// Store implements domain.ProfileStore and domain.BlobStore.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type workspaceDoc struct {
	Profile   *domain.AgentProfile `json:"analysis,omitempty"`
	Items     []domain.ContextItem `json:"items"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func (s *Store) Load(_ context.Context, token domain.Token) (*domain.Workspace, error) {
	var doc workspaceDoc
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(workspacePrefix + string(token)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("workspace %s: %w", token.Short(), domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("badger load: %w", err)
	}
	return &domain.Workspace{Profile: doc.Profile, Items: doc.Items, UpdatedAt: doc.UpdatedAt}, nil
}

func (s *Store) Save(_ context.Context, token domain.Token, ws *domain.Workspace) error {
	data, err := json.Marshal(workspaceDoc{Profile: ws.Profile, Items: ws.Items, UpdatedAt: ws.UpdatedAt})
	if err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(workspacePrefix+string(token)), data)
	})
}

func (s *Store) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(blobPrefix+key), data)
	})
	if err != nil {
		return "", fmt.Errorf("badger put blob: %w", err)
	}
	return blobScheme + key, nil
}

func (s *Store) Get(_ context.Context, ref string) ([]byte, error) {
	key := strings.TrimPrefix(ref, blobScheme)
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("blob %s: %w", ref, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("badger get blob: %w", err)
	}
	return data, nil
}

func (s *Store) Delete(_ context.Context, ref string) error {
	key := strings.TrimPrefix(ref, blobScheme)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(blobPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("badger delete blob: %w", err)
	}
	return nil
}
