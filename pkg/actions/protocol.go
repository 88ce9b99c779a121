// Package actions defines the contract between the execution engine and
// side-effecting step actions.
package actions

import (
	"context"
	"log/slog"

	"github.com/convflow/convflow/pkg/variables"
)

// Input is what the engine hands an action: already-resolved params, the
// live variable bag, and identity for logging and audit.
type Input struct {
	Params      map[string]any
	Variables   *variables.Bag
	TenantID    string
	ExecutionID string
}

// Action performs one side-effecting step. The engine ignores the result
// map for control flow; it is recorded in the step audit trail only.
type Action interface {
	Execute(ctx context.Context, input Input, logger *slog.Logger) (map[string]any, error)
}

// Factory builds an action from resolved step params.
type Factory interface {
	ID() string
	Create(params map[string]any) (Action, error)
}
