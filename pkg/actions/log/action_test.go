package log

import (
	"context"
	"log/slog"
	"testing"

	"github.com/convflow/convflow/pkg/actions"
	"github.com/convflow/convflow/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory(t *testing.T) {
	t.Parallel()

	factory := NewFactory()
	assert.Equal(t, "log", factory.ID())

	action, err := factory.Create(nil)
	require.NoError(t, err)
	assert.NotNil(t, action)
}

func TestNewAction_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		params          map[string]any
		expectedMessage string
		expectedLevel   string
	}{
		{"empty params", map[string]any{}, "", "info"},
		{"message only", map[string]any{"message": "hello"}, "hello", "info"},
		{"message and level", map[string]any{"message": "oops", "level": "error"}, "oops", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			action := NewAction(tt.params)
			assert.Equal(t, tt.expectedMessage, action.message)
			assert.Equal(t, tt.expectedLevel, action.level)
		})
	}
}

func TestAction_Execute(t *testing.T) {
	t.Parallel()

	action := NewAction(map[string]any{"message": "checkpoint reached", "level": "debug"})

	input := actions.Input{
		Params:      map[string]any{},
		Variables:   variables.NewBag(nil),
		TenantID:    "acme",
		ExecutionID: "exec-log",
	}

	result, err := action.Execute(context.Background(), input, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, true, result["logged"])
	assert.Equal(t, "checkpoint reached", result["message"])
}
