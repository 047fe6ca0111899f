package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DocumentIdentity is the stable key scoping one document's annotation collection.
type DocumentIdentity string

// MaxIdentityLength bounds identities accepted by the store.
const MaxIdentityLength = 256

// identityPattern covers what the resolver emits (hex digests and
// [A-Za-z0-9_] names) plus '-'. Identities travel as a URL path segment, so
// '/', '.' and the like would make records unreachable by update and delete.
var identityPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate rejects blank, oversized or non path-safe identities.
func (d DocumentIdentity) Validate() error {
	if strings.TrimSpace(string(d)) == "" {
		return ErrInvalidIdentity
	}
	if len(d) > MaxIdentityLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidIdentity, MaxIdentityLength)
	}
	if !identityPattern.MatchString(string(d)) {
		return fmt.Errorf("%w: only letters, digits, '_' and '-' are allowed", ErrInvalidIdentity)
	}
	return nil
}

func (d DocumentIdentity) String() string { return string(d) }

// RawHighlight is a stored highlight as a map of top-level fields. The store
// works on this form so fields unknown to the server are kept verbatim.
type RawHighlight map[string]json.RawMessage

// ID returns the record's id, or "" when absent or not a string.
func (r RawHighlight) ID() string {
	var id string
	if raw, ok := r[FieldID]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	return id
}

// Type returns the record's variant tag.
func (r RawHighlight) Type() HighlightType {
	var t string
	if raw, ok := r[FieldType]; ok {
		_ = json.Unmarshal(raw, &t)
	}
	return HighlightType(t)
}

// Clone copies the map and every value.
func (r RawHighlight) Clone() RawHighlight {
	if r == nil {
		return nil
	}
	out := make(RawHighlight, len(r))
	for k, v := range r {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Decode converts the record into its typed form.
func (r RawHighlight) Decode() (Highlight, error) {
	var h Highlight
	err := h.fromRaw(r)
	return h, err
}

// HighlightPatch holds top-level fields to replace in a stored highlight.
// Fields absent from the patch are left untouched.
type HighlightPatch map[string]json.RawMessage

// NewCommentPatch builds a patch that only replaces the comment.
func NewCommentPatch(comment string) HighlightPatch {
	raw, _ := json.Marshal(comment)
	return HighlightPatch{FieldComment: raw}
}

// NewReshapePatch builds a patch replacing position and content of an area highlight.
func NewReshapePatch(position Position, content Content) (HighlightPatch, error) {
	if position.Rects == nil {
		position.Rects = []PageRect{}
	}
	pos, err := json.Marshal(position)
	if err != nil {
		return nil, err
	}
	con, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return HighlightPatch{FieldPosition: pos, FieldContent: con}, nil
}

// MergePatch applies patch to stored with shallow, field-by-field replacement.
// It refuses changes to immutable fields: id, type and createdAt always,
// position and content for text highlights. Re-sending an unchanged value of
// an immutable field is allowed.
func MergePatch(stored RawHighlight, patch HighlightPatch) (RawHighlight, error) {
	kind := stored.Type()
	for field, value := range patch {
		immutable := false
		switch field {
		case FieldID, FieldType, FieldCreatedAt:
			immutable = true
		case FieldPosition, FieldContent:
			immutable = kind == HighlightTypeText
		}
		if immutable && !sameJSON(stored[field], value) {
			return nil, fmt.Errorf("%w: %s", ErrImmutableField, field)
		}
	}

	merged := stored.Clone()
	for field, value := range patch {
		merged[field] = append(json.RawMessage(nil), value...)
	}
	return merged, nil
}

func sameJSON(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	ca, _ := json.Marshal(va)
	cb, _ := json.Marshal(vb)
	return bytes.Equal(ca, cb)
}

// AnnotationStore persists per-identity ordered highlight collections, newest first.
type AnnotationStore interface {
	List(ctx context.Context, identity DocumentIdentity) ([]RawHighlight, error)
	Append(ctx context.Context, identity DocumentIdentity, record RawHighlight) error
	ApplyUpdate(ctx context.Context, identity DocumentIdentity, id string, patch HighlightPatch) error
	Remove(ctx context.Context, identity DocumentIdentity, id string) error
	Close() error
}
