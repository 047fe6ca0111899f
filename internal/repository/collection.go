package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"pdf-annotation-sync/internal/domain"
)

// collection is one identity's ordered records, newest first.
type collection []domain.RawHighlight

func (c collection) indexOf(id string) int {
	for i, r := range c {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// prepend inserts record at the front. A record whose id is already present
// leaves the collection unchanged so a re-sent append is harmless.
func (c collection) prepend(record domain.RawHighlight) (collection, bool) {
	if c.indexOf(record.ID()) >= 0 {
		return c, false
	}
	out := make(collection, 0, len(c)+1)
	out = append(out, record.Clone())
	return append(out, c...), true
}

// update merges patch into the record with the given id. A patch touching
// position or content must leave the record a valid text or area highlight.
func (c collection) update(id string, patch domain.HighlightPatch) (collection, error) {
	i := c.indexOf(id)
	if i < 0 {
		return c, domain.ErrHighlightNotFound
	}
	merged, err := domain.MergePatch(c[i], patch)
	if err != nil {
		return c, err
	}
	if reshapes(patch) {
		h, err := merged.Decode()
		if err != nil {
			return c, fmt.Errorf("%w: %v", domain.ErrInvalidHighlight, err)
		}
		if err := h.CheckVariant(); err != nil {
			return c, err
		}
	}
	out := append(collection(nil), c...)
	out[i] = merged
	return out, nil
}

func reshapes(patch domain.HighlightPatch) bool {
	_, pos := patch[domain.FieldPosition]
	_, con := patch[domain.FieldContent]
	return pos || con
}

func (c collection) remove(id string) (collection, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return c, false
	}
	out := make(collection, 0, len(c)-1)
	out = append(out, c[:i]...)
	return append(out, c[i+1:]...), true
}

func (c collection) clone() []domain.RawHighlight {
	out := make([]domain.RawHighlight, len(c))
	for i, r := range c {
		out[i] = r.Clone()
	}
	return out
}

func decodeCollection(data []byte) (collection, error) {
	if len(data) == 0 {
		return collection{}, nil
	}
	var c collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection: %w", err)
	}
	if c == nil {
		c = collection{}
	}
	if err := c.compact(); err != nil {
		return nil, err
	}
	return c, nil
}

// compact rewrites every field compactly so equal records compare equal
// whatever formatting the backend stored them with.
func (c collection) compact() error {
	for _, r := range c {
		for k, v := range r {
			var buf bytes.Buffer
			if err := json.Compact(&buf, v); err != nil {
				return fmt.Errorf("failed to compact field %s: %w", k, err)
			}
			r[k] = buf.Bytes()
		}
	}
	return nil
}

func validateRecord(identity domain.DocumentIdentity, record domain.RawHighlight) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	if record.ID() == "" {
		return &domain.ValidationError{Field: "id", Message: "is required"}
	}
	return nil
}

// mutation rewrites one identity's collection. changed reports whether the
// result has to be written back.
type mutation func(c collection) (next collection, changed bool, err error)

// mutator runs a mutation as one read-modify-write under a backend's lock.
type mutator func(ctx context.Context, identity domain.DocumentIdentity, fn mutation) error

// collectionOps holds the record operations every backend shares; a backend
// supplies only its mutator.
type collectionOps struct {
	mutate mutator
	logger domain.Logger
}

// Append inserts record at the front of identity's collection.
func (o collectionOps) Append(ctx context.Context, identity domain.DocumentIdentity, record domain.RawHighlight) error {
	if err := validateRecord(identity, record); err != nil {
		return err
	}
	return o.mutate(ctx, identity, func(c collection) (collection, bool, error) {
		out, changed := c.prepend(record)
		if !changed {
			o.logger.Debug("Append ignored, id already stored", "document_id", identity, "highlight_id", record.ID())
		}
		return out, changed, nil
	})
}

// ApplyUpdate merges patch into the record with the given id. An empty patch
// writes nothing but still reports a missing record.
func (o collectionOps) ApplyUpdate(ctx context.Context, identity domain.DocumentIdentity, id string, patch domain.HighlightPatch) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	return o.mutate(ctx, identity, func(c collection) (collection, bool, error) {
		if len(patch) == 0 {
			if c.indexOf(id) < 0 {
				return c, false, domain.ErrHighlightNotFound
			}
			return c, false, nil
		}
		out, err := c.update(id, patch)
		return out, err == nil, err
	})
}

// Remove deletes the record with the given id; a missing record is not an error.
func (o collectionOps) Remove(ctx context.Context, identity domain.DocumentIdentity, id string) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	return o.mutate(ctx, identity, func(c collection) (collection, bool, error) {
		out, changed := c.remove(id)
		return out, changed, nil
	})
}
