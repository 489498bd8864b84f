// Package validate holds the shared struct validator for form and CLI input.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sobres/internal/core"
)

var v *validator.Validate

var nonSpace = regexp.MustCompile(`\S`)

func init() {
	v = validator.New(validator.WithRequiredStructEnabled())

	// Budget months travel as 2006-01 or 2006-01-02.
	_ = v.RegisterValidation("month", func(fl validator.FieldLevel) bool {
		_, err := core.ParseMonth(fl.Field().String())
		return err == nil
	})

	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.DateOnly, strings.TrimSpace(fl.Field().String()))
		return err == nil
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return nonSpace.MatchString(fl.Field().String())
	})
}

// Struct validates s and converts failures into core validation errors.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, core.Invalid(fieldName(fe), describe(fe)))
	}
	return errors.Join(out...)
}

func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "notblank":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "nefield":
		return fmt.Sprintf("must differ from %s", strings.ToLower(fe.Param()))
	case "month":
		return "must be a month (YYYY-MM)"
	case "isodate":
		return "must be a date (YYYY-MM-DD)"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
