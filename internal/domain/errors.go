package domain

import "errors"

// Domain errors
var (
	ErrHighlightNotFound = errors.New("highlight not found")
	ErrInvalidIdentity   = errors.New("invalid document identity")
	ErrInvalidHighlight  = errors.New("invalid highlight")
	ErrImmutableField    = errors.New("field cannot be changed after creation")
	ErrUnreadableContent = errors.New("document content could not be read")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Unwrap lets errors.Is(err, ErrInvalidHighlight) match any validation failure.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidHighlight
}
