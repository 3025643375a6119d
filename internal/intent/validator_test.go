package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetflow/iccr/internal/capability"
)

func TestValidatorRejectsEmptyType(t *testing.T) {
	v := NewValidator()
	result := v.Validate(&CreateRequest{Type: ""})
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
}

func TestValidatorAcceptsWellFormedLeafRequest(t *testing.T) {
	v := NewValidator()
	req := &CreateRequest{
		Type:         "process_order",
		Payload:      map[string]any{"order_id": "o-1"},
		Capabilities: []capability.Capability{capability.New("write", "/orders")},
	}
	result := v.Validate(req)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidatorRejectsUnknownComposition(t *testing.T) {
	v := NewValidator()
	req := &CreateRequest{Type: "t", Composition: Composition("not_a_real_strategy")}
	result := v.Validate(req)
	assert.False(t, result.Valid)
}

func TestValidatorRequiresPayloadForConditionalComposition(t *testing.T) {
	v := NewValidator()
	req := &CreateRequest{Type: "t", Composition: Conditional}
	result := v.Validate(req)
	assert.False(t, result.Valid)
	found := false
	for _, e := range result.Errors {
		if e.Field == "payload" {
			found = true
		}
	}
	assert.True(t, found, "expected a payload validation error for conditional composition")
}

func TestValidatorRejectsCapabilityMissingOperation(t *testing.T) {
	v := NewValidator()
	req := &CreateRequest{
		Type:         "t",
		Capabilities: []capability.Capability{{Operation: "", Resource: "/x"}},
	}
	result := v.Validate(req)
	assert.False(t, result.Valid)
}

func TestCreateValidatedReturnsIntentOnSuccess(t *testing.T) {
	v := NewValidator()
	req := &CreateRequest{Type: "greet", Payload: map[string]any{"name": "world"}}
	i, result := v.CreateValidated(req)
	require.True(t, result.Valid)
	assert.Equal(t, "greet", i.Type)
	assert.NotEmpty(t, i.Metadata.ID)
}

func TestCreateValidatedRejectsInvalidRequest(t *testing.T) {
	v := NewValidator()
	i, result := v.CreateValidated(&CreateRequest{Type: ""})
	assert.False(t, result.Valid)
	assert.Equal(t, Intent{}, i)
}
