package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"pdf-annotation-sync/internal/domain"

	"github.com/dgraph-io/badger/v4"
)

const collectionKeyPrefix = "annotations:"

// BadgerStore keeps each identity's collection under its own Badger key.
//
// Mutations still run one at a time under mu so the read-modify-write of a
// collection never interleaves with another; reads use a View transaction
// and do not take the lock.
type BadgerStore struct {
	collectionOps
	db     *badger.DB
	logger domain.Logger
	mu     sync.Mutex
}

// NewBadgerStore opens the Badger database at path. An empty path opens an
// in-memory database.
func NewBadgerStore(path string, logger domain.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil      // Badger's own logging is too chatty for request paths
	opts.SyncWrites = true // a returned mutation must survive a crash

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger.Info("Badger database opened successfully", "path", path)
	s := &BadgerStore{db: db, logger: logger}
	s.collectionOps = collectionOps{mutate: s.mutate, logger: logger}
	return s, nil
}

// List returns identity's collection, or an empty slice if it was never written.
func (s *BadgerStore) List(ctx context.Context, identity domain.DocumentIdentity) ([]domain.RawHighlight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	var c collection
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		c, err = getCollection(txn, identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.clone(), nil
}

// Close gracefully closes the database.
func (s *BadgerStore) Close() error {
	s.logger.Info("Closing badger database")
	return s.db.Close()
}

func (s *BadgerStore) mutate(ctx context.Context, identity domain.DocumentIdentity, fn mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		current, err := getCollection(txn, identity)
		if err != nil {
			return err
		}
		next, changed, err := fn(current)
		if err != nil || !changed {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal collection: %w", err)
		}
		return txn.Set(collectionKey(identity), data)
	})
}

func getCollection(txn *badger.Txn, identity domain.DocumentIdentity) (collection, error) {
	item, err := txn.Get(collectionKey(identity))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return collection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}
	var c collection
	err = item.Value(func(val []byte) error {
		var derr error
		c, derr = decodeCollection(val)
		return derr
	})
	return c, err
}

func collectionKey(identity domain.DocumentIdentity) []byte {
	return []byte(collectionKeyPrefix + string(identity))
}
