package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetflow/iccr/internal/plugin"
)

type requirePayloadKey struct {
	key string
}

func (requirePayloadKey) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{Name: "require-key", Family: plugin.FamilyIntent, Priority: 10}
}

func (r requirePayloadKey) Invoke(input any) plugin.Result {
	i := input.(*Intent)
	if _, ok := i.Payload[r.key]; !ok {
		return plugin.Err("missing required payload key %q", r.key)
	}
	return plugin.Ok(i)
}

type stampTransform struct{}

func (stampTransform) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{Name: "stamp", Family: plugin.FamilyIntent, Priority: 1}
}

func (stampTransform) Invoke(input any) plugin.Result {
	i := input.(*Intent)
	i.Metadata.Extra = map[string]any{"stamped": true}
	return plugin.Ok(i)
}

func TestValidationPipelineShortCircuits(t *testing.T) {
	p := NewPipelines()
	require.NoError(t, p.RegisterValidator(requirePayloadKey{key: "path"}))

	_, err := p.Validate(Create("read", map[string]any{}, nil))
	assert.Error(t, err)

	ok, err := p.Validate(Create("read", map[string]any{"path": "/x"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "/x", ok.Payload["path"])
}

func TestTransformPipelineIsSeparateFromValidation(t *testing.T) {
	p := NewPipelines()
	require.NoError(t, p.RegisterValidator(requirePayloadKey{key: "path"}))
	require.NoError(t, p.RegisterTransformer(stampTransform{}))

	i := Create("read", map[string]any{"path": "/x"}, nil)
	validated, err := p.Validate(i)
	require.NoError(t, err)
	assert.Nil(t, validated.Metadata.Extra, "validation pipeline must not run transform plugins")

	transformed, err := p.Transform(validated)
	require.NoError(t, err)
	assert.Equal(t, true, transformed.Metadata.Extra["stamped"])
}
