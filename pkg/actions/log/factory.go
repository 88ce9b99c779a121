package log

import "github.com/convflow/convflow/pkg/actions"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "log"
}

func (*Factory) Create(params map[string]any) (actions.Action, error) {
	if params == nil {
		params = map[string]any{}
	}

	return NewAction(params), nil
}
