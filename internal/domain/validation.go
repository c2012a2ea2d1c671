package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Quantities are decimals; compare them as floats so gte/lte tags apply.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return v
}

// RecordValidator rejects records that must never reach the policy engine.
// When Materials is non-empty only those material identifiers are accepted.
type RecordValidator struct {
	Materials []string
}

// NewRecordValidator builds a validator with an optional material allow-list.
func NewRecordValidator(materials []string) *RecordValidator {
	cleaned := make([]string, 0, len(materials))
	for _, m := range materials {
		if m = strings.TrimSpace(m); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	return &RecordValidator{Materials: cleaned}
}

// Validate checks r; row is reported in the error (0 for API input).
func (v *RecordValidator) Validate(r StockRecord, row int) error {
	details := make(map[string]string)

	if err := validate.Struct(r); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		for _, e := range validationErrors {
			details[e.Field()] = formatValidationError(e)
		}
	}

	if _, bad := details["material"]; !bad && len(v.Materials) > 0 && !v.allowed(r.Material) {
		details["material"] = "must be one of: " + strings.Join(v.Materials, ", ")
	}

	if len(details) > 0 {
		return &MalformedRecordError{Row: row, Fields: details}
	}
	return nil
}

// Canonical returns the allow-list spelling of material, or the trimmed input.
func (v *RecordValidator) Canonical(material string) string {
	for _, m := range v.Materials {
		if SameMaterial(m, material) {
			return m
		}
	}
	return strings.TrimSpace(material)
}

func (v *RecordValidator) allowed(material string) bool {
	for _, m := range v.Materials {
		if SameMaterial(m, material) {
			return true
		}
	}
	return false
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must not be negative"
	case "max":
		return "must be at most " + e.Param() + " characters"
	default:
		return "is invalid"
	}
}
