package httputil

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/poubelles/poubelles-backend/pkg/errors"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so details match the wire payload
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate validates a struct using go-playground/validator
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.BadRequest(err.Error())
		}

		details := make(map[string]string)
		for _, e := range validationErrors {
			details[e.Field()] = formatValidationError(e)
		}

		return errors.Validation(details)
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "invalid value"
	}
}
