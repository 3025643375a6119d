package intent

import (
	"github.com/packetflow/iccr/internal/plugin"
)

// Pipelines holds the two independent, priority-ordered plugin chains
// an intent passes through before reaching a reactor: validation, then
// transformation. Earlier drafts of this runtime looked transform
// plugins up in the validation registry; per the corrected contract
// they are separate ordered pipelines, each folded left-to-right with
// short-circuit on error.
type Pipelines struct {
	validation  *plugin.Registry
	transform   *plugin.Registry
}

func NewPipelines() *Pipelines {
	return &Pipelines{
		validation: plugin.NewRegistry(),
		transform:  plugin.NewRegistry(),
	}
}

// RegisterValidator adds a plugin to the validation pipeline.
func (p *Pipelines) RegisterValidator(pl plugin.Plugin) error { return p.validation.Register(pl) }

// RegisterTransformer adds a plugin to the transformation pipeline.
func (p *Pipelines) RegisterTransformer(pl plugin.Plugin) error { return p.transform.Register(pl) }

// Validate runs i through the validation pipeline in descending
// priority order, short-circuiting on the first error. Plugins may
// transform the intent on success (e.g. normalize payload fields).
func (p *Pipelines) Validate(i Intent) (Intent, error) {
	out, err := plugin.Run(p.validation.Pipeline(plugin.FamilyIntent), &i)
	if err != nil {
		return Intent{}, err
	}
	return *(out.(*Intent)), nil
}

// Transform runs i through the transformation pipeline, after
// validation has already succeeded.
func (p *Pipelines) Transform(i Intent) (Intent, error) {
	out, err := plugin.Run(p.transform.Pipeline(plugin.FamilyIntent), &i)
	if err != nil {
		return Intent{}, err
	}
	return *(out.(*Intent)), nil
}
