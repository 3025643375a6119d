package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fnPlugin struct {
	d  Descriptor
	fn func(any) Result
}

func (f fnPlugin) Descriptor() Descriptor { return f.d }
func (f fnPlugin) Invoke(in any) Result   { return f.fn(in) }

func upper(name string, priority int) Plugin {
	return fnPlugin{
		d:  Descriptor{Name: name, Family: FamilyIntent, Priority: priority},
		fn: func(in any) Result { return Ok(in.(string) + name) },
	}
}

func TestPipelineOrdersByPriorityThenRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(upper("low", 1)))
	require.NoError(t, r.Register(upper("high", 10)))
	require.NoError(t, r.Register(upper("mid", 5)))

	pipeline := r.Pipeline(FamilyIntent)
	names := make([]string, len(pipeline))
	for i, p := range pipeline {
		names[i] = p.Descriptor().Name
	}
	assert.Equal(t, []string{"high", "mid", "low"}, names)
}

func TestRunShortCircuitsOnError(t *testing.T) {
	ok := fnPlugin{d: Descriptor{Name: "ok"}, fn: func(in any) Result { return Ok(in) }}
	bad := fnPlugin{d: Descriptor{Name: "bad"}, fn: func(any) Result { return Err("nope") }}
	neverRun := false
	after := fnPlugin{d: Descriptor{Name: "after"}, fn: func(in any) Result { neverRun = true; return Ok(in) }}

	_, err := Run([]Plugin{ok, bad, after}, "x")
	require.Error(t, err)
	assert.False(t, neverRun)
}

func TestRegisterRejectsMissingDependency(t *testing.T) {
	r := NewRegistry()
	p := fnPlugin{d: Descriptor{Name: "child", Dependencies: []string{"parent"}}}
	err := r.Register(p)
	assert.Error(t, err)
}
