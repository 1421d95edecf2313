package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"fairval/apperrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("receiptdate", validReceiptDate)
	v.RegisterValidation("cents", atMostTwoDecimals)
	return v
}

// Struct validates v against its validate tags. Failures wrap
// apperrors.ErrValidation and list every offending field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fieldName(fe), fe))
	}
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, strings.Join(problems, "; "))
}

// Var validates a single value such as a path or query parameter against
// tag. name labels the value in the error.
func Var(name string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrValidation, name, err)
	}
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, describe(name, fieldErrs[0]))
}

func fieldName(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return field
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with", "required_without":
		return field + " is required"
	case "receiptdate", "datetime":
		return field + " must be a YYYY-MM-DD date between 2000-01-01 and today"
	case "cents":
		return field + " must have at most 2 decimal places"
	case "oneof":
		return field + " must be one of " + fe.Param()
	case "email":
		return field + " must be a valid email address"
	case "uuid":
		return field + " must be a valid UUID"
	case "url", "http_url":
		return field + " must be a valid URL"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
