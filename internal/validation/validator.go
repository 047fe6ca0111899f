// Package validation checks highlight records with go-playground/validator.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"pdf-annotation-sync/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that reports JSON field names.
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		if i := strings.IndexByte(name, ','); i >= 0 {
			name = name[:i]
		}
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a *domain.ValidationError.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// ValidateHighlight checks field constraints and the variant payload rules.
func (v *Validator) ValidateHighlight(h *domain.Highlight) error {
	if strings.TrimSpace(h.ID) == "" {
		return &domain.ValidationError{Field: "id", Message: "is required"}
	}
	if err := v.Validate(h); err != nil {
		return err
	}
	return h.CheckVariant()
}

// formatError reports the first failing field in namespace order so the
// message is stable across runs.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidHighlight, err)
	}

	sort.Slice(validationErrs, func(i, j int) bool {
		return validationErrs[i].Namespace() < validationErrs[j].Namespace()
	})
	first := validationErrs[0]
	return &domain.ValidationError{
		Field:   fieldPath(first.Namespace()),
		Message: friendlyMessage(first),
	}
}

// fieldPath drops the root struct name from a namespace such as
// "Highlight.position.boundingRect.pageNumber".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}
