package intent

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/packetflow/iccr/internal/capability"
)

// ValidationError describes a single field that failed validation at
// the intent boundary.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Tag     string      `json:"tag,omitempty"`
}

// ValidationResult is the outcome of validating a CreateRequest before
// it is turned into an Intent.
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []*ValidationError `json:"errors,omitempty"`
}

// CreateRequest is the external wire shape callers submit to create an
// intent (over HTTP, a CLI flag set, or a message bus payload) before
// it is admitted into the runtime as an Intent. Struct tags drive
// go-playground/validator; Composition and Capabilities still need the
// manual cross-field checks below, since validator can't express "only
// meaningful when Composition is conditional" on its own.
type CreateRequest struct {
	Type         string                  `json:"type" validate:"required,max=128"`
	Payload      map[string]any          `json:"payload"`
	Capabilities []capability.Capability `json:"capabilities" validate:"dive"`
	Composition  Composition             `json:"composition" validate:"omitempty,composition"`
}

// Validator validates CreateRequests at the intent package's external
// boundary, before they become domain objects.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with the intent package's custom
// validation tags registered.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("composition", validateComposition)
	return &Validator{validate: v}
}

func validateComposition(fl validator.FieldLevel) bool {
	switch Composition(fl.Field().String()) {
	case "", Sequential, Parallel, Conditional, Pipeline, FanOut:
		return true
	default:
		return false
	}
}

// Validate runs struct-tag validation plus the composition/capability
// cross-field checks validator can't express, and reports every
// failure rather than stopping at the first.
func (v *Validator) Validate(req *CreateRequest) *ValidationResult {
	if req == nil {
		return &ValidationResult{
			Valid: false,
			Errors: []*ValidationError{
				{Field: "request", Message: "create request is nil", Tag: "required"},
			},
		}
	}

	result := &ValidationResult{Valid: true}

	if err := v.validate.Struct(req); err != nil {
		result.Valid = false
		for _, fe := range err.(validator.ValidationErrors) {
			result.Errors = append(result.Errors, &ValidationError{
				Field:   fe.Namespace(),
				Message: fmt.Sprintf("failed '%s' validation", fe.Tag()),
				Value:   fe.Value(),
				Tag:     fe.Tag(),
			})
		}
	}

	if req.Composition == Conditional && req.Payload == nil {
		result.Valid = false
		result.Errors = append(result.Errors, &ValidationError{
			Field:   "payload",
			Message: "conditional composition requires a payload describing the condition",
			Tag:     "required_with_composition",
		})
	}

	for i, c := range req.Capabilities {
		if c.Operation == "" {
			result.Valid = false
			result.Errors = append(result.Errors, &ValidationError{
				Field:   fmt.Sprintf("capabilities[%d].operation", i),
				Message: "capability operation is required",
				Tag:     "required",
			})
		}
	}

	return result
}

// CreateValidated validates req and, if it passes, constructs the
// resulting Intent.
func (v *Validator) CreateValidated(req *CreateRequest) (Intent, *ValidationResult) {
	result := v.Validate(req)
	if !result.Valid {
		return Intent{}, result
	}
	return Create(req.Type, req.Payload, req.Capabilities), result
}
