// Package dynconfig implements the ICCR configuration layer:
// schema-validated per-component configuration with versioned history,
// rollback, environment-gated templates, and JSON import/export.
package dynconfig

import (
	"fmt"

	"github.com/packetflow/iccr/internal/core"
)

// FieldType is one of the field types a FieldSchema may declare.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeFloat   FieldType = "float"
	TypeBoolean FieldType = "boolean"
	TypeList    FieldType = "list"
	TypeMap     FieldType = "map"
	TypeAtom    FieldType = "atom"
)

// ValidatorFunc is a component-supplied custom validator, returning
// false or a reason string when a value fails an additional check
// beyond type/required.
type ValidatorFunc func(value any) (bool, string)

// FieldSchema describes one configuration field.
type FieldSchema struct {
	Type        FieldType
	Required    bool
	Default     any
	Validator   ValidatorFunc
	Description string
}

// Schema is a component's full field-by-field configuration contract.
type Schema map[string]FieldSchema

// ValidationError is one field's validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// Validate checks config against schema: required presence, type, and
// any custom validator. It returns every failing field, not just the
// first, so callers can present a complete validation report.
func Validate(config map[string]any, schema Schema) []ValidationError {
	var errs []ValidationError
	for field, fs := range schema {
		value, present := config[field]
		if !present {
			if fs.Required {
				errs = append(errs, ValidationError{Field: field, Message: "required field missing"})
			}
			continue
		}
		if !typeMatches(value, fs.Type) {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("expected type %s", fs.Type)})
			continue
		}
		if fs.Validator != nil {
			if ok, reason := fs.Validator(value); !ok {
				if reason == "" {
					reason = "failed custom validation"
				}
				errs = append(errs, ValidationError{Field: field, Message: reason})
			}
		}
	}
	return errs
}

func typeMatches(value any, t FieldType) bool {
	switch t {
	case TypeString, TypeAtom:
		_, ok := value.(string)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			// JSON numbers decode as float64; accept whole values so
			// imported/merged configs round-trip without a schema that
			// has to know its own wire encoding.
			return v == float64(int64(v))
		default:
			return false
		}
	case TypeFloat:
		switch value.(type) {
		case float32, float64:
			return true
		default:
			return false
		}
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeList:
		_, ok := value.([]any)
		return ok
	case TypeMap:
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

// applyDefaults fills any missing field in config with its schema
// default, without overwriting fields already present.
func applyDefaults(config map[string]any, schema Schema) map[string]any {
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = v
	}
	for field, fs := range schema {
		if _, present := out[field]; !present && fs.Default != nil {
			out[field] = fs.Default
		}
	}
	return out
}

func validationErrsToErr(id string, errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	return core.WithPayload(core.KindValidationFailed, errs, "configuration for %q failed validation (%d field errors)", id, len(errs))
}
