package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func textHighlight() Highlight {
	rect := PageRect{X1: 10, Y1: 20, X2: 110, Y2: 40, Width: 800, Height: 1200, PageNumber: 1}
	return Highlight{
		ID:        "h-1",
		Type:      HighlightTypeText,
		Position:  Position{BoundingRect: rect, Rects: []PageRect{rect}},
		Content:   Content{Text: strPtr("Hello")},
		Comment:   strPtr(""),
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func areaHighlight() Highlight {
	rect := PageRect{X1: 0, Y1: 0, X2: 50, Y2: 50, Width: 800, Height: 1200, PageNumber: 2}
	return Highlight{
		ID:        "h-2",
		Type:      HighlightTypeArea,
		Position:  Position{BoundingRect: rect},
		Content:   Content{Image: strPtr("data:image/png;base64,AAAA")},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestHighlight_CheckVariant covers the payload rules for each variant.
func TestHighlight_CheckVariant(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *Highlight)
		base    func() Highlight
		wantErr bool
		field   string
	}{
		{name: "valid text", base: textHighlight},
		{name: "valid area", base: areaHighlight},
		{
			name:    "text without text",
			base:    textHighlight,
			mutate:  func(h *Highlight) { h.Content.Text = nil },
			wantErr: true,
			field:   "content.text",
		},
		{
			// An empty string is still a present text payload
			name:   "text with empty text",
			base:   textHighlight,
			mutate: func(h *Highlight) { h.Content.Text = strPtr("") },
		},
		{
			name:    "text with image",
			base:    textHighlight,
			mutate:  func(h *Highlight) { h.Content.Image = strPtr("x") },
			wantErr: true,
			field:   "content.image",
		},
		{
			name:    "area without image",
			base:    areaHighlight,
			mutate:  func(h *Highlight) { h.Content.Image = nil },
			wantErr: true,
			field:   "content.image",
		},
		{
			name:    "area with rects",
			base:    areaHighlight,
			mutate:  func(h *Highlight) { h.Position.Rects = []PageRect{h.Position.BoundingRect} },
			wantErr: true,
			field:   "position.rects",
		},
		{
			name:    "unknown type",
			base:    textHighlight,
			mutate:  func(h *Highlight) { h.Type = "ink" },
			wantErr: true,
			field:   "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.base()
			if tt.mutate != nil {
				tt.mutate(&h)
			}
			err := h.CheckVariant()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckVariant() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if vErr.Field != tt.field {
				t.Fatalf("expected field %s, got %s", tt.field, vErr.Field)
			}
			if !errors.Is(err, ErrInvalidHighlight) {
				t.Fatalf("expected error to match ErrInvalidHighlight")
			}
		})
	}
}

func TestHighlight_JSONPreservesUnknownFields(t *testing.T) {
	input := `{"id":"h-9","type":"text","position":{"boundingRect":{"x1":1,"y1":2,"x2":3,"y2":4,"width":5,"height":6,"pageNumber":1},"rects":[]},"content":{"text":"hi"},"createdAt":"2024-05-01T12:00:00Z","color":"yellow","tags":["a","b"]}`

	var h Highlight
	if err := json.Unmarshal([]byte(input), &h); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h.ID != "h-9" || h.Type != HighlightTypeText {
		t.Fatalf("unexpected decoded highlight: %+v", h)
	}
	if h.Comment != nil {
		t.Fatalf("expected absent comment to stay nil")
	}
	if string(h.Extra["color"]) != `"yellow"` {
		t.Fatalf("expected color to be preserved, got %s", h.Extra["color"])
	}

	out, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if string(fields["tags"]) != `["a","b"]` {
		t.Fatalf("expected tags to survive, got %s", fields["tags"])
	}
	if _, ok := fields["comment"]; ok {
		t.Fatalf("expected comment to stay absent")
	}
}

func TestHighlight_EmptyCommentIsDistinctFromAbsent(t *testing.T) {
	h := textHighlight()
	raw, err := h.Raw()
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	if string(raw[FieldComment]) != `""` {
		t.Fatalf("expected empty comment to be serialized, got %q", raw[FieldComment])
	}
}

func TestHighlight_AreaRectsSerializeAsEmptyArray(t *testing.T) {
	raw, err := areaHighlight().Raw()
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	var pos map[string]json.RawMessage
	if err := json.Unmarshal(raw[FieldPosition], &pos); err != nil {
		t.Fatalf("unmarshal position: %v", err)
	}
	if string(pos["rects"]) != "[]" {
		t.Fatalf("expected rects to be [], got %s", pos["rects"])
	}
}

func TestHighlight_CloneIsDeep(t *testing.T) {
	h := textHighlight()
	h.Extra = map[string]json.RawMessage{"color": json.RawMessage(`"red"`)}
	c := h.Clone()

	*c.Comment = "changed"
	c.Position.Rects[0].PageNumber = 9
	c.Extra["color"][1] = 'R'

	if *h.Comment != "" {
		t.Fatalf("comment aliased")
	}
	if h.Position.Rects[0].PageNumber != 1 {
		t.Fatalf("rects aliased")
	}
	if string(h.Extra["color"]) != `"red"` {
		t.Fatalf("extra aliased")
	}
}

func TestHighlight_Pages(t *testing.T) {
	h := textHighlight()
	second := h.Position.BoundingRect
	second.PageNumber = 2
	h.Position.Rects = append(h.Position.Rects, second, second)

	pages := h.Pages()
	if len(pages) != 2 || pages[0] != 1 || pages[1] != 2 {
		t.Fatalf("unexpected pages %v", pages)
	}
}
