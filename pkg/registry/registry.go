// Package registry maps action type names to their factories.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/convflow/convflow/pkg/actions"
)

// ErrUnknownAction indicates an action type no factory is registered for.
var ErrUnknownAction = errors.New("action type not registered")

type Registry struct {
	logger    *slog.Logger
	factories map[string]actions.Factory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[string]actions.Factory),
	}
}

func (r *Registry) RegisterAction(factory actions.Factory) {
	r.factories[factory.ID()] = factory
}

// ActionTypes returns the registered action type names.
func (r *Registry) ActionTypes() []string {
	types := make([]string, 0, len(r.factories))
	for actionType := range r.factories {
		types = append(types, actionType)
	}

	return types
}

// Execute builds and runs the named action. An unknown action type or an
// action failure surfaces to the engine as a step failure; no retries
// happen here.
func (r *Registry) Execute(ctx context.Context, actionType string, input actions.Input) (map[string]any, error) {
	factory, ok := r.factories[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, actionType)
	}

	action, err := factory.Create(input.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to create action %s: %w", actionType, err)
	}

	logger := r.logger.With("action_type", actionType, "execution_id", input.ExecutionID)

	result, err := action.Execute(ctx, input, logger)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// HealthCheck reports whether the registry has its default actions wired.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.factories) == 0 {
		return "No actions registered", false
	}

	return fmt.Sprintf("%d actions registered", len(r.factories)), true
}
