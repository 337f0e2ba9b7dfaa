// Package validation enforces struct-tag rules (validate:"required,gt=0")
// on configuration and caller input and turns failures into field-level
// errors that match deadpool's sentinel errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError is a single rule violation.
type FieldError struct {
	Field   string
	Message string
}

// Errors is the set of violations found on one value. It unwraps to the
// sentinel selected by the caller (ErrValidation or ErrConfiguration).
type Errors struct {
	Fields   []FieldError
	sentinel error
}

func (e *Errors) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return fmt.Sprintf("%v: %s", e.sentinel, strings.Join(parts, "; "))
}

func (e *Errors) Unwrap() error {
	return e.sentinel
}

// Input validates caller input. Failures match deadpool.ErrValidation.
func Input(v any) error {
	return check(v, deadpool.ErrValidation)
}

// Config validates configuration. Failures match deadpool.ErrConfiguration.
func Config(v any) error {
	return check(v, deadpool.ErrConfiguration)
}

func check(v any, sentinel error) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		// InvalidValidationError: nil or non-struct value
		return fmt.Errorf("%w: %v", sentinel, err)
	}

	fields := make([]FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: message(fe),
		})
	}
	return &Errors{Fields: fields, sentinel: sentinel}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must not exceed %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		return fmt.Sprintf("must not exceed %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s:%s", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
