// Package setvariable provides the set_variable action, which writes a
// value into the execution's variable bag at a dotted path.
package setvariable

import (
	"context"
	"errors"
	"log/slog"

	"github.com/convflow/convflow/pkg/actions"
)

var errMissingName = errors.New("set_variable action requires a name param")

type Action struct {
	name  string
	value any
}

func NewAction(params map[string]any) (*Action, error) {
	name, _ := params["name"].(string)
	if name == "" {
		return nil, errMissingName
	}

	return &Action{name: name, value: params["value"]}, nil
}

func (a *Action) Execute(ctx context.Context, input actions.Input, logger *slog.Logger) (map[string]any, error) {
	err := input.Variables.Set(a.name, a.value)
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "Variable set", "name", a.name)

	return map[string]any{"name": a.name, "value": a.value}, nil
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "set_variable"
}

func (*Factory) Create(params map[string]any) (actions.Action, error) {
	return NewAction(params)
}
