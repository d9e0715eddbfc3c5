package dto

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"

	apperrors "github.com/spec-kit/event-admin/pkg/util/errorutil"
)

// Validatable is implemented by request payloads.
type Validatable interface {
	Validate() error
}

// ValidationError converts ozzo validation output into the API error shape.
func ValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		details := make(map[string]any, len(fields))
		for field, fieldErr := range fields {
			details[field] = fieldErr.Error()
		}
		return apperrors.NewValidationError("invalid payload", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}
