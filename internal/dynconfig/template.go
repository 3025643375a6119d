package dynconfig

import "github.com/packetflow/iccr/internal/core"

// Template is a reusable named configuration, gated to the
// environments it is applicable in (e.g. a "high_throughput" stream
// template allowed only in "staging"/"production").
type Template struct {
	Name          string
	Description   string
	DefaultConfig map[string]any
	Schema        Schema
	Environments  []string
}

// RegisterTemplate adds a template to the catalog.
func (s *Store) RegisterTemplate(t Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.Name] = t
}

func (t Template) allowsEnvironment(env string) bool {
	if len(t.Environments) == 0 {
		return true
	}
	for _, e := range t.Environments {
		if e == env {
			return true
		}
	}
	return false
}

// ApplyConfigTemplate applies template name to id's configuration,
// rejecting with core.KindTemplateNotForEnvironment when env is not
// one of the template's allowed environments.
func (s *Store) ApplyConfigTemplate(id, name, env string) (Record, error) {
	s.mu.Lock()
	t, ok := s.templates[name]
	s.mu.Unlock()
	if !ok {
		return Record{}, core.New(core.KindValidationFailed, "template %q not found", name)
	}
	if !t.allowsEnvironment(env) {
		return Record{}, core.New(core.KindTemplateNotForEnvironment, "template %q is not allowed in environment %q", name, env)
	}

	s.mu.Lock()
	_, registered := s.components[id]
	s.mu.Unlock()

	if !registered {
		rec, err := s.RegisterComponentConfig(id, t.DefaultConfig, t.Schema)
		if err != nil {
			return Record{}, err
		}
		s.mu.Lock()
		rec.Environment = env
		s.components[id].current = rec
		s.mu.Unlock()
		return rec, nil
	}

	rec, err := s.UpdateConfig(id, t.DefaultConfig)
	if err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	rec.Environment = env
	s.components[id].current = rec
	s.mu.Unlock()
	return rec, nil
}
