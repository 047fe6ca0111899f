// Package selection turns geometric selections reported by the renderer into
// draft highlights.
package selection

import (
	"fmt"

	"pdf-annotation-sync/internal/domain"
)

// Selection is a renderer selection already normalized to scale-independent
// page coordinates. Content carries the extracted text for text selections
// or the rendered snapshot for area captures.
type Selection struct {
	Type     domain.HighlightType
	Position domain.Position
	Content  domain.Content
}

// FromSelection builds a draft highlight. The id and createdAt stay unset;
// the sync client assigns them on create.
func FromSelection(sel Selection, comment string) (domain.Highlight, error) {
	draft := domain.Highlight{
		Type:    sel.Type,
		Comment: &comment,
	}

	switch sel.Type {
	case domain.HighlightTypeText:
		draft.Position = domain.Position{
			BoundingRect: sel.Position.BoundingRect,
			Rects:        append([]domain.PageRect{}, sel.Position.Rects...),
		}
		draft.Content = domain.Content{Text: copyString(sel.Content.Text)}
	case domain.HighlightTypeArea:
		draft.Position = domain.Position{
			BoundingRect: sel.Position.BoundingRect,
			Rects:        []domain.PageRect{},
		}
		draft.Content = domain.Content{Image: copyString(sel.Content.Image)}
	default:
		return domain.Highlight{}, fmt.Errorf("%w: unknown selection type %q", domain.ErrInvalidHighlight, sel.Type)
	}

	if err := draft.CheckVariant(); err != nil {
		return domain.Highlight{}, err
	}
	return draft, nil
}

// CheckPages rejects drafts that reference pages beyond pageCount.
// A pageCount of 0 means the page count is unknown and nothing is checked.
func CheckPages(h domain.Highlight, pageCount int) error {
	if pageCount <= 0 {
		return nil
	}
	for _, p := range h.Pages() {
		if p < 1 || p > pageCount {
			return &domain.ValidationError{
				Field:   "position.pageNumber",
				Message: fmt.Sprintf("page %d is outside the document (1-%d)", p, pageCount),
			}
		}
	}
	return nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
