package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// HighlightType tags which geometric payload of a Highlight is meaningful.
type HighlightType string

const (
	HighlightTypeText HighlightType = "text"
	HighlightTypeArea HighlightType = "area"
)

// Valid reports whether t is one of the known variants.
func (t HighlightType) Valid() bool {
	switch t {
	case HighlightTypeText, HighlightTypeArea:
		return true
	default:
		return false
	}
}

// PageRect is a rectangle in page-relative, scale-independent coordinates.
type PageRect struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Width      float64 `json:"width" validate:"gte=0"`
	Height     float64 `json:"height" validate:"gte=0"`
	PageNumber int     `json:"pageNumber" validate:"gte=1"`
}

// Position locates a highlight on the page. Rects holds one entry per
// selected line for text highlights and is empty for area highlights.
type Position struct {
	BoundingRect PageRect   `json:"boundingRect"`
	Rects        []PageRect `json:"rects" validate:"dive"`
}

// Content is the payload captured with a highlight. Text is set for text
// highlights, Image (an encoded raster snapshot) for area highlights.
type Content struct {
	Text  *string `json:"text,omitempty"`
	Image *string `json:"image,omitempty"`
}

// Highlight is one annotation in a document's collection.
//
// A nil Comment means no comment was ever attached; a pointer to "" is a
// plain highlight created without opening the comment form.
type Highlight struct {
	ID        string        `json:"id"`
	Type      HighlightType `json:"type" validate:"required,oneof=text area"`
	Position  Position      `json:"position"`
	Content   Content       `json:"content"`
	Comment   *string       `json:"comment,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`

	// Extra carries fields this version does not know about so they survive
	// a decode/encode cycle.
	Extra map[string]json.RawMessage `json:"-"`
}

// Known top-level field names of a serialized Highlight.
const (
	FieldID        = "id"
	FieldType      = "type"
	FieldPosition  = "position"
	FieldContent   = "content"
	FieldComment   = "comment"
	FieldCreatedAt = "createdAt"
)

var knownFields = map[string]struct{}{
	FieldID:        {},
	FieldType:      {},
	FieldPosition:  {},
	FieldContent:   {},
	FieldComment:   {},
	FieldCreatedAt: {},
}

// highlightJSON avoids MarshalJSON recursion.
type highlightJSON struct {
	ID        string        `json:"id"`
	Type      HighlightType `json:"type"`
	Position  Position      `json:"position"`
	Content   Content       `json:"content"`
	Comment   *string       `json:"comment,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// MarshalJSON encodes the known fields and any preserved extra fields.
func (h Highlight) MarshalJSON() ([]byte, error) {
	raw, err := h.Raw()
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage(raw))
}

// UnmarshalJSON decodes the known fields and keeps everything else in Extra.
func (h *Highlight) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	return h.fromRaw(fields)
}

// Raw returns the highlight as a field map, extras included.
func (h Highlight) Raw() (RawHighlight, error) {
	if h.Position.Rects == nil {
		h.Position.Rects = []PageRect{}
	}
	known, err := json.Marshal(highlightJSON{
		ID:        h.ID,
		Type:      h.Type,
		Position:  h.Position,
		Content:   h.Content,
		Comment:   h.Comment,
		CreatedAt: h.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	var out RawHighlight
	if err := json.Unmarshal(known, &out); err != nil {
		return nil, err
	}
	for k, v := range h.Extra {
		if _, ok := knownFields[k]; ok {
			continue
		}
		out[k] = v
	}
	return out, nil
}

func (h *Highlight) fromRaw(fields map[string]json.RawMessage) error {
	known := make(map[string]json.RawMessage, len(knownFields))
	var extra map[string]json.RawMessage
	for k, v := range fields {
		if _, ok := knownFields[k]; ok {
			known[k] = v
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}

	data, err := json.Marshal(known)
	if err != nil {
		return err
	}
	var decoded highlightJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode highlight: %w", err)
	}

	*h = Highlight{
		ID:        decoded.ID,
		Type:      decoded.Type,
		Position:  decoded.Position,
		Content:   decoded.Content,
		Comment:   decoded.Comment,
		CreatedAt: decoded.CreatedAt,
		Extra:     extra,
	}
	return nil
}

// CheckVariant verifies the payload matches the highlight's type tag.
func (h *Highlight) CheckVariant() error {
	switch h.Type {
	case HighlightTypeText:
		if h.Content.Text == nil {
			return &ValidationError{Field: "content.text", Message: "is required for text highlights"}
		}
		if h.Content.Image != nil {
			return &ValidationError{Field: "content.image", Message: "must be empty for text highlights"}
		}
	case HighlightTypeArea:
		if h.Content.Image == nil {
			return &ValidationError{Field: "content.image", Message: "is required for area highlights"}
		}
		if h.Content.Text != nil {
			return &ValidationError{Field: "content.text", Message: "must be empty for area highlights"}
		}
		if len(h.Position.Rects) != 0 {
			return &ValidationError{Field: "position.rects", Message: "must be empty for area highlights"}
		}
	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown highlight type %q", h.Type)}
	}
	return nil
}

// Pages returns every page number the highlight touches.
func (h *Highlight) Pages() []int {
	seen := map[int]struct{}{h.Position.BoundingRect.PageNumber: {}}
	pages := []int{h.Position.BoundingRect.PageNumber}
	for _, r := range h.Position.Rects {
		if _, ok := seen[r.PageNumber]; ok {
			continue
		}
		seen[r.PageNumber] = struct{}{}
		pages = append(pages, r.PageNumber)
	}
	return pages
}

// Clone returns a deep copy of h.
func (h Highlight) Clone() Highlight {
	out := h
	if h.Position.Rects != nil {
		out.Position.Rects = append([]PageRect(nil), h.Position.Rects...)
	}
	if h.Content.Text != nil {
		s := *h.Content.Text
		out.Content.Text = &s
	}
	if h.Content.Image != nil {
		s := *h.Content.Image
		out.Content.Image = &s
	}
	if h.Comment != nil {
		s := *h.Comment
		out.Comment = &s
	}
	if h.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(h.Extra))
		for k, v := range h.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// HighlightService defines the use-case operations of the annotation store.
type HighlightService interface {
	ListHighlights(ctx context.Context, identity DocumentIdentity) ([]RawHighlight, error)
	AddHighlight(ctx context.Context, identity DocumentIdentity, record RawHighlight) error
	UpdateHighlight(ctx context.Context, identity DocumentIdentity, id string, patch HighlightPatch) error
	DeleteHighlight(ctx context.Context, identity DocumentIdentity, id string) error
}
