package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pdf-annotation-sync/internal/domain"
)

// collectionRows reads and writes the one row that holds an identity's records.
type collectionRows interface {
	Fetch(identity domain.DocumentIdentity) ([]byte, bool, error)
	Upsert(identity domain.DocumentIdentity, records []byte) error
}

// SupabaseStore keeps each identity's collection in one row of a Supabase table:
//
//	create table annotations (
//	    document_id text primary key,
//	    records     jsonb not null default '[]',
//	    updated_at  timestamptz not null default now()
//	);
type SupabaseStore struct {
	collectionOps
	rows   collectionRows
	logger domain.Logger
	mu     sync.Mutex
}

// NewSupabaseStore stores collections in supabaseClient's annotations table.
func NewSupabaseStore(supabaseClient domain.SupabaseClient, logger domain.Logger) *SupabaseStore {
	return newSupabaseStore(&postgrestRows{supabaseClient: supabaseClient}, logger)
}

func newSupabaseStore(rows collectionRows, logger domain.Logger) *SupabaseStore {
	s := &SupabaseStore{rows: rows, logger: logger}
	s.collectionOps = collectionOps{mutate: s.mutate, logger: logger}
	return s
}

// List returns identity's collection, or an empty slice if it was never written.
func (s *SupabaseStore) List(ctx context.Context, identity domain.DocumentIdentity) ([]domain.RawHighlight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	c, err := s.fetch(identity)
	if err != nil {
		return nil, err
	}
	return c.clone(), nil
}

// Close is a no-op; the Supabase client holds no connection to release.
func (s *SupabaseStore) Close() error {
	return nil
}

func (s *SupabaseStore) fetch(identity domain.DocumentIdentity) (collection, error) {
	data, ok, err := s.rows.Fetch(identity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return collection{}, nil
	}
	return decodeCollection(data)
}

func (s *SupabaseStore) mutate(ctx context.Context, identity domain.DocumentIdentity, fn mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.fetch(identity)
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
	if err := s.rows.Upsert(identity, data); err != nil {
		return err
	}
	s.logger.Debug("Collection written", "document_id", identity, "count", len(next))
	return nil
}

// postgrestRows talks to the annotations table through PostgREST.
type postgrestRows struct {
	supabaseClient domain.SupabaseClient
}

type collectionRow struct {
	DocumentID string          `json:"document_id"`
	Records    json.RawMessage `json:"records"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (p *postgrestRows) Fetch(identity domain.DocumentIdentity) ([]byte, bool, error) {
	query, err := p.supabaseClient.Collections()
	if err != nil {
		return nil, false, err
	}

	data, _, err := query.
		Select("document_id,records", "", false).
		Eq("document_id", string(identity)).
		Execute()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get collection: %w", err)
	}

	var rows []collectionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0].Records, true, nil
}

func (p *postgrestRows) Upsert(identity domain.DocumentIdentity, records []byte) error {
	query, err := p.supabaseClient.Collections()
	if err != nil {
		return err
	}

	row := collectionRow{
		DocumentID: string(identity),
		Records:    records,
		UpdatedAt:  time.Now().UTC(),
	}
	_, _, err = query.
		Upsert(row, "document_id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	return nil
}
