// Package validate holds the shared request validator and turns its
// failures into InvalidArgument errors with readable messages.
package validate

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/robalobadob/globetrotter/internal/apperr"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Get returns the shared validator.
func Get() *validator.Validate { return v }

// Struct validates s and reports failures as apperr.InvalidArgument.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.InvalidArgument, "Invalid request", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return apperr.Wrap(apperr.InvalidArgument, strings.Join(msgs, "; "), err)
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "url":
		return field + " must be a valid URL"
	case "dive":
		return field + " contains an invalid item"
	default:
		return field + " is invalid"
	}
}
