package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pdf-annotation-sync/internal/domain"
	"pdf-annotation-sync/internal/validation"
)

type HighlightService struct {
	store     domain.AnnotationStore
	validator *validation.Validator
	logger    domain.Logger
}

func NewHighlightService(store domain.AnnotationStore, validator *validation.Validator, logger domain.Logger) domain.HighlightService {
	return &HighlightService{
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

func (s *HighlightService) ListHighlights(ctx context.Context, identity domain.DocumentIdentity) ([]domain.RawHighlight, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	records, err := s.store.List(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}
	return records, nil
}

// AddHighlight validates the record in its typed form but stores the raw
// fields, so anything the server does not understand is kept as sent.
func (s *HighlightService) AddHighlight(ctx context.Context, identity domain.DocumentIdentity, record domain.RawHighlight) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	h, err := record.Decode()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidHighlight, err)
	}
	if err := s.validator.ValidateHighlight(&h); err != nil {
		return err
	}

	if err := s.store.Append(ctx, identity, record); err != nil {
		return fmt.Errorf("failed to append highlight: %w", err)
	}
	s.logger.Info("Highlight appended", "document_id", identity, "highlight_id", h.ID, "type", h.Type)
	return nil
}

func (s *HighlightService) UpdateHighlight(ctx context.Context, identity domain.DocumentIdentity, id string, patch domain.HighlightPatch) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	if id == "" {
		return &domain.ValidationError{Field: "id", Message: "is required"}
	}
	if err := s.validatePatch(patch); err != nil {
		return err
	}

	err := s.store.ApplyUpdate(ctx, identity, id, patch)
	if errors.Is(err, domain.ErrHighlightNotFound) {
		s.logger.Warn("Update for unknown highlight", "document_id", identity, "highlight_id", id)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update highlight: %w", err)
	}
	s.logger.Info("Highlight updated", "document_id", identity, "highlight_id", id, "fields", len(patch))
	return nil
}

func (s *HighlightService) DeleteHighlight(ctx context.Context, identity domain.DocumentIdentity, id string) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	if id == "" {
		return &domain.ValidationError{Field: "id", Message: "is required"}
	}
	if err := s.store.Remove(ctx, identity, id); err != nil {
		return fmt.Errorf("failed to delete highlight: %w", err)
	}
	s.logger.Info("Highlight deleted", "document_id", identity, "highlight_id", id)
	return nil
}

// validatePatch checks that known fields in a patch have the right shape.
// Whether they may change at all is decided against the stored record.
func (s *HighlightService) validatePatch(patch domain.HighlightPatch) error {
	for field, value := range patch {
		var target any
		switch field {
		case domain.FieldComment:
			var c *string
			target = &c
		case domain.FieldPosition:
			var p domain.Position
			if err := json.Unmarshal(value, &p); err != nil {
				return &domain.ValidationError{Field: field, Message: "is malformed"}
			}
			if err := s.validator.Validate(&p); err != nil {
				return err
			}
			continue
		case domain.FieldContent:
			target = &domain.Content{}
		case domain.FieldType:
			var t domain.HighlightType
			target = &t
		case domain.FieldID:
			var id string
			target = &id
		default:
			continue
		}
		if err := json.Unmarshal(value, target); err != nil {
			return &domain.ValidationError{Field: field, Message: "is malformed"}
		}
	}
	return nil
}
