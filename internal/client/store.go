package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"pdf-annotation-sync/internal/domain"
)

// Store is the durable side a Client reconciles its local mutations with.
type Store interface {
	List(ctx context.Context, identity domain.DocumentIdentity) ([]domain.Highlight, error)
	Append(ctx context.Context, identity domain.DocumentIdentity, h domain.Highlight) error
	ApplyUpdate(ctx context.Context, identity domain.DocumentIdentity, id string, patch domain.HighlightPatch) error
	Remove(ctx context.Context, identity domain.DocumentIdentity, id string) error
}

// StatusError is a non-success response from the annotation server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// retryable treats rejected input and missing records as final and anything
// else (transport errors, 5xx, 429) as worth another attempt.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	switch {
	case errors.Is(err, domain.ErrHighlightNotFound),
		errors.Is(err, domain.ErrInvalidHighlight),
		errors.Is(err, domain.ErrInvalidIdentity),
		errors.Is(err, domain.ErrImmutableField),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// ServiceStore runs a Client against an in-process highlight service.
type ServiceStore struct {
	service domain.HighlightService
}

func NewServiceStore(service domain.HighlightService) *ServiceStore {
	return &ServiceStore{service: service}
}

func (s *ServiceStore) List(ctx context.Context, identity domain.DocumentIdentity) ([]domain.Highlight, error) {
	records, err := s.service.ListHighlights(ctx, identity)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Highlight, 0, len(records))
	for _, r := range records {
		h, err := r.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode highlight %s: %w", r.ID(), err)
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *ServiceStore) Append(ctx context.Context, identity domain.DocumentIdentity, h domain.Highlight) error {
	raw, err := h.Raw()
	if err != nil {
		return err
	}
	return s.service.AddHighlight(ctx, identity, raw)
}

func (s *ServiceStore) ApplyUpdate(ctx context.Context, identity domain.DocumentIdentity, id string, patch domain.HighlightPatch) error {
	return s.service.UpdateHighlight(ctx, identity, id, patch)
}

func (s *ServiceStore) Remove(ctx context.Context, identity domain.DocumentIdentity, id string) error {
	return s.service.DeleteHighlight(ctx, identity, id)
}
