package webhook

import "github.com/convflow/convflow/pkg/actions"

// Factory serves several action type names that share the HTTP delivery
// mechanics; the default service URL differs per name and can be
// overridden per step.
type Factory struct {
	id string
}

func NewFactory(id string) *Factory {
	return &Factory{id: id}
}

func (f *Factory) ID() string {
	return f.id
}

func (f *Factory) Create(params map[string]any) (actions.Action, error) {
	return NewAction(params)
}
