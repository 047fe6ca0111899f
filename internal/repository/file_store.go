package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"pdf-annotation-sync/internal/domain"
)

// fileDocument is the whole durable state: identity -> records, newest first.
type fileDocument map[domain.DocumentIdentity]collection

// FileStore keeps every collection in one JSON document on disk.
//
// Each mutation reads the whole document, changes it in memory and rewrites
// it while holding mu, so concurrent mutations never lose each other's
// writes, even across identities. List reads without the lock; the write goes
// through a rename so readers always see a complete document.
type FileStore struct {
	collectionOps
	path   string
	logger domain.Logger
	mu     sync.Mutex
}

// NewFileStore opens (creating if needed) the JSON document at path.
func NewFileStore(path string, logger domain.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s := &FileStore{path: path, logger: logger}
	s.collectionOps = collectionOps{mutate: s.mutate, logger: logger}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.save(fileDocument{}); err != nil {
			return nil, err
		}
		logger.Info("Created annotation data file", "path", path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat data file: %w", err)
	}

	return s, nil
}

// List returns identity's collection, or an empty slice if it was never written.
func (s *FileStore) List(ctx context.Context, identity domain.DocumentIdentity) ([]domain.RawHighlight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc[identity].clone(), nil
}

// Close is a no-op; every mutation is already on disk.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) mutate(ctx context.Context, identity domain.DocumentIdentity, fn mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	current, ok := doc[identity]
	if !ok {
		current = collection{}
	}
	next, changed, err := fn(current)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	doc[identity] = next
	return s.save(doc)
}

func (s *FileStore) load() (fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	if len(data) == 0 {
		return fileDocument{}, nil
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data file: %w", err)
	}
	if doc == nil {
		doc = fileDocument{}
	}
	for _, c := range doc {
		if err := c.compact(); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (s *FileStore) save(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}
