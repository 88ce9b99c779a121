package setvariable

import (
	"context"
	"log/slog"
	"testing"

	"github.com/convflow/convflow/pkg/actions"
	"github.com/convflow/convflow/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAction_RequiresName(t *testing.T) {
	t.Parallel()

	_, err := NewAction(map[string]any{"value": "x"})
	assert.ErrorIs(t, err, errMissingName)
}

func TestAction_Execute_WritesDottedPath(t *testing.T) {
	t.Parallel()

	action, err := NewAction(map[string]any{"name": "order.status", "value": "shipped"})
	require.NoError(t, err)

	bag := variables.NewBag(map[string]any{"order": map[string]any{"id": "o-1"}})
	input := actions.Input{Variables: bag, TenantID: "acme", ExecutionID: "exec-set"}

	result, err := action.Execute(context.Background(), input, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, "order.status", result["name"])

	status, ok := bag.Get("order.status")
	require.True(t, ok)
	assert.Equal(t, "shipped", status)

	// Existing siblings survive.
	id, ok := bag.Get("order.id")
	require.True(t, ok)
	assert.Equal(t, "o-1", id)
}

func TestAction_Execute_FailsOnNonMapPath(t *testing.T) {
	t.Parallel()

	action, err := NewAction(map[string]any{"name": "order.status", "value": "shipped"})
	require.NoError(t, err)

	bag := variables.NewBag(map[string]any{"order": "flat"})
	input := actions.Input{Variables: bag}

	_, err = action.Execute(context.Background(), input, slog.Default())
	assert.ErrorIs(t, err, variables.ErrPathNotMap)
}

func TestFactory(t *testing.T) {
	t.Parallel()

	factory := NewFactory()
	assert.Equal(t, "set_variable", factory.ID())

	_, err := factory.Create(map[string]any{})
	assert.Error(t, err)
}
