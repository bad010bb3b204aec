package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report wire names in failures.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode unmarshals a struct payload and validates it. An absent payload
// decodes to the zero value, which then fails any required field.
func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &v); err != nil {
			return v, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			if fe.Tag() == "required" {
				return v, fmt.Errorf("%w: missing %s", domain.ErrValidation, fe.Field())
			}
			return v, fmt.Errorf("%w: invalid %s %v", domain.ErrValidation, fe.Field(), fe.Value())
		}
		return v, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return v, nil
}

// decodeValue unmarshals a scalar payload, which must be present.
func decodeValue[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, fmt.Errorf("%w: missing data", domain.ErrValidation)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return v, nil
}
