package engine_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/convflow/convflow/pkg/engine"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/persistence/memory"
	"github.com/convflow/convflow/pkg/registry"
	"github.com/convflow/convflow/pkg/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string {
	return &s
}

func setupEngine(t *testing.T) (*engine.Engine, persistence.Persistence, *statestore.Store) {
	t.Helper()

	p := memory.NewPersistence()
	states := statestore.New(statestore.NopFastStore{}, statestore.NewMemoryStore(), slog.Default())

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaults()

	eng := engine.New(p, states, reg, nil, slog.Default())

	return eng, p, states
}

func saveWorkflow(t *testing.T, p persistence.Persistence, definition *models.WorkflowDefinition) {
	t.Helper()
	require.NoError(t, p.WorkflowRepository().Save(context.Background(), definition))
}

// greetAndPick is the canonical two-turn workflow: a greeting message
// chained into a choice, option A routing to a log action, option B ending
// the workflow.
func greetAndPick() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:       "wf-greet",
		TenantID: "acme",
		Name:     "Greet and pick",
		Active:   true,
		Steps: []*models.Step{
			{ID: "hi", Type: models.StepTypeMessage, Content: "Hi", NextStep: strptr("pick")},
			{
				ID:      "pick",
				Type:    models.StepTypeChoice,
				Content: "pick A or B",
				Options: []models.ChoiceOption{
					{Text: "A", Value: "a", NextStep: strptr("log-it")},
					{Text: "B", Value: "b"},
				},
				Variable: "picked",
			},
			{
				ID:     "log-it",
				Type:   models.StepTypeAction,
				Action: "log",
				Params: map[string]any{"message": "picked {{picked}}"},
			},
		},
	}
}

func TestStart_MergesMessageIntoChoicePrompt(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, greetAndPick())

	result, err := eng.Start(context.Background(), engine.StartRequest{
		WorkflowID: "wf-greet",
		TenantID:   "acme",
		SessionID:  "sess-a",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusRunning, result.Execution.Status)
	assert.Equal(t, "Hi\n\npick A or B", result.Result.Message)
	assert.Equal(t, []string{"A", "B"}, result.Result.Choices)
	assert.Equal(t, statestore.WaitingChoice, result.Result.InputRequired)
	assert.False(t, result.Result.WorkflowCompleted)
}

func TestStep_ChoiceAutoAdvancesThroughActionToCompletion(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, greetAndPick())
	ctx := context.Background()

	started, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-greet", TenantID: "acme", SessionID: "sess-b",
	})
	require.NoError(t, err)

	result, err := eng.Step(ctx, engine.StepRequest{
		ExecutionID: started.Execution.ID,
		SessionID:   "sess-b",
		TenantID:    "acme",
		UserChoice:  "A",
	})
	require.NoError(t, err)

	assert.True(t, result.WorkflowCompleted)
	assert.NotEmpty(t, result.Message)
	assert.Equal(t, "a", result.VariablesUpdated["picked"])

	execution, err := p.ExecutionRepository().ExecutionByID(ctx, "acme", started.Execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	records, err := p.ExecutionRepository().StepExecutions(ctx, started.Execution.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestStep_RepeatedChoiceCallIsIdempotent(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, greetAndPick())
	ctx := context.Background()

	started, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-greet", TenantID: "acme", SessionID: "sess-c",
	})
	require.NoError(t, err)

	first, err := eng.Step(ctx, engine.StepRequest{
		ExecutionID: started.Execution.ID, SessionID: "sess-c", TenantID: "acme", UserChoice: "A",
	})
	require.NoError(t, err)
	require.True(t, first.WorkflowCompleted)

	// Same call again: acknowledged as completed, never re-prompted.
	second, err := eng.Step(ctx, engine.StepRequest{
		ExecutionID: started.Execution.ID, SessionID: "sess-c", TenantID: "acme", UserChoice: "A",
	})
	require.NoError(t, err)
	assert.True(t, second.WorkflowCompleted)
	assert.Empty(t, second.Choices)
}

func TestStep_UnmatchedChoiceRepresentsPrompt(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, greetAndPick())
	ctx := context.Background()

	started, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-greet", TenantID: "acme", SessionID: "sess-d",
	})
	require.NoError(t, err)

	result, err := eng.Step(ctx, engine.StepRequest{
		ExecutionID: started.Execution.ID, SessionID: "sess-d", TenantID: "acme", UserChoice: "Z",
	})
	require.NoError(t, err)

	assert.False(t, result.WorkflowCompleted)
	assert.Equal(t, "pick A or B", result.Message)
	assert.Equal(t, []string{"A", "B"}, result.Choices)
	assert.Equal(t, statestore.WaitingChoice, result.InputRequired)
}

func TestStep_ChoiceWithoutRouteEndsWorkflow(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, greetAndPick())
	ctx := context.Background()

	started, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-greet", TenantID: "acme", SessionID: "sess-e",
	})
	require.NoError(t, err)

	result, err := eng.Step(ctx, engine.StepRequest{
		ExecutionID: started.Execution.ID, SessionID: "sess-e", TenantID: "acme", UserChoice: "B",
	})
	require.NoError(t, err)

	assert.True(t, result.WorkflowCompleted)
	assert.Equal(t, "b", result.VariablesUpdated["picked"])
}

func TestStep_InputBindsVerbatimAndAdvances(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, &models.WorkflowDefinition{
		ID:       "wf-ask",
		TenantID: "acme",
		Name:     "Ask age",
		Active:   true,
		Steps: []*models.Step{
			{ID: "ask", Type: models.StepTypeInput, Content: "How old are you?", Variable: "age", NextStep: strptr("bye")},
			{ID: "bye", Type: models.StepTypeMessage, Content: "You said {{age}}"},
		},
	})
	ctx := context.Background()

	started, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-ask", TenantID: "acme", SessionID: "sess-f",
	})
	require.NoError(t, err)
	assert.Equal(t, statestore.WaitingText, started.Result.InputRequired)

	result, err := eng.Step(ctx, engine.StepRequest{
		ExecutionID: started.Execution.ID, SessionID: "sess-f", TenantID: "acme", UserInput: "42",
	})
	require.NoError(t, err)

	assert.True(t, result.WorkflowCompleted)
	assert.Equal(t, "You said 42", result.Message)
	// Bound verbatim: still a string, never coerced.
	assert.Equal(t, "42", result.VariablesUpdated["age"])
}

func TestStart_InputAlreadyBoundSkipsPrompt(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, &models.WorkflowDefinition{
		ID:       "wf-known",
		TenantID: "acme",
		Name:     "Known email",
		Active:   true,
		Steps: []*models.Step{
			{ID: "email", Type: models.StepTypeInput, Content: "Email?", Variable: "email", NextStep: strptr("done")},
			{ID: "done", Type: models.StepTypeMessage, Content: "Got {{email}}"},
		},
	})

	result, err := eng.Start(context.Background(), engine.StartRequest{
		WorkflowID:       "wf-known",
		TenantID:         "acme",
		SessionID:        "sess-g",
		InitialVariables: map[string]any{"email": "ada@example.com"},
	})
	require.NoError(t, err)

	assert.True(t, result.Result.WorkflowCompleted)
	assert.Equal(t, "Got ada@example.com", result.Result.Message)
}

func TestStep_ConditionFalseEndsWithCompletionMessage(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, &models.WorkflowDefinition{
		ID:       "wf-gate",
		TenantID: "acme",
		Name:     "Age gate",
		Active:   true,
		Steps: []*models.Step{
			{ID: "ask", Type: models.StepTypeInput, Content: "Age?", Variable: "age", NextStep: strptr("gate")},
			{
				ID:        "gate",
				Type:      models.StepTypeCondition,
				Condition: "age >= 18",
				NextStep:  strptr("welcome"),
				Metadata:  map[string]any{"completion_message": "Sorry, adults only."},
			},
			{ID: "welcome", Type: models.StepTypeMessage, Content: "Welcome in!"},
		},
	})
	ctx := context.Background()

	started, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-gate", TenantID: "acme", SessionID: "sess-h",
	})
	require.NoError(t, err)

	// "17" binds as a string; the mixed-type comparison fails closed and
	// the false branch ends the workflow.
	result, err := eng.Step(ctx, engine.StepRequest{
		ExecutionID: started.Execution.ID, SessionID: "sess-h", TenantID: "acme", UserInput: "17",
	})
	require.NoError(t, err)

	assert.True(t, result.WorkflowCompleted)
	assert.Equal(t, "Sorry, adults only.", result.Message)
}

func TestStart_DanglingNextStepEndsWorkflow(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, &models.WorkflowDefinition{
		ID:       "wf-dangle",
		TenantID: "acme",
		Name:     "Dangling",
		Active:   true,
		Steps: []*models.Step{
			{ID: "only", Type: models.StepTypeMessage, Content: "Bye", NextStep: strptr("nowhere")},
		},
	})

	result, err := eng.Start(context.Background(), engine.StartRequest{
		WorkflowID: "wf-dangle", TenantID: "acme", SessionID: "sess-i",
	})
	require.NoError(t, err)

	assert.True(t, result.Result.WorkflowCompleted)
	assert.Nil(t, result.Result.NextStepID)
	assert.Equal(t, "Bye", result.Result.Message)
}

func TestStart_CyclicGraphHitsAdvanceCap(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, &models.WorkflowDefinition{
		ID:       "wf-cycle",
		TenantID: "acme",
		Name:     "Cycle",
		Active:   true,
		Steps: []*models.Step{
			{ID: "c1", Type: models.StepTypeCondition, Condition: "true", NextStep: strptr("c2")},
			{ID: "c2", Type: models.StepTypeCondition, Condition: "true", NextStep: strptr("c1")},
		},
	})
	ctx := context.Background()

	_, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-cycle", TenantID: "acme", SessionID: "sess-j",
	})
	require.Error(t, err)

	var execErr *engine.WorkflowExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, err.Error(), "auto-advance limit")

	// The execution is left failed, not spinning or corrupted.
	page, err := eng.ListExecutions(ctx, persistence.ListExecutionsOptions{TenantID: "acme", WorkflowID: "wf-cycle"})
	require.NoError(t, err)
	require.Len(t, page.Executions, 1)
	assert.Equal(t, models.ExecutionStatusFailed, page.Executions[0].Status)
}

func TestStep_FailedActionFailsExecution(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, &models.WorkflowDefinition{
		ID:       "wf-boom",
		TenantID: "acme",
		Name:     "Boom",
		Active:   true,
		Steps: []*models.Step{
			{ID: "go", Type: models.StepTypeAction, Action: "does-not-exist"},
		},
	})
	ctx := context.Background()

	_, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-boom", TenantID: "acme", SessionID: "sess-k",
	})
	require.Error(t, err)

	var stepErr *engine.StepExecutionError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "go", stepErr.StepID)

	var actionErr *engine.ActionExecutionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "does-not-exist", actionErr.ActionType)

	page, err := eng.ListExecutions(ctx, persistence.ListExecutionsOptions{TenantID: "acme", WorkflowID: "wf-boom"})
	require.NoError(t, err)
	require.Len(t, page.Executions, 1)
	assert.Equal(t, models.ExecutionStatusFailed, page.Executions[0].Status)
	assert.NotEmpty(t, page.Executions[0].ErrorMessage)
}

func TestStep_RejectedAfterFailure(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)

	definition := greetAndPick()
	definition.Steps[2].Action = "does-not-exist"
	saveWorkflow(t, p, definition)
	ctx := context.Background()

	started, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-greet", TenantID: "acme", SessionID: "sess-l",
	})
	require.NoError(t, err)

	_, err = eng.Step(ctx, engine.StepRequest{
		ExecutionID: started.Execution.ID, SessionID: "sess-l", TenantID: "acme", UserChoice: "A",
	})
	require.Error(t, err)

	_, err = eng.Step(ctx, engine.StepRequest{
		ExecutionID: started.Execution.ID, SessionID: "sess-l", TenantID: "acme", UserChoice: "A",
	})
	require.Error(t, err)

	var execErr *engine.WorkflowExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, err.Error(), "not running")
}

func TestStart_Preconditions(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, &models.WorkflowDefinition{
		ID: "wf-off", TenantID: "acme", Name: "Inactive", Active: false,
		Steps: []*models.Step{{ID: "s", Type: models.StepTypeMessage, Content: "x"}},
	})
	saveWorkflow(t, p, &models.WorkflowDefinition{
		ID: "wf-empty", TenantID: "acme", Name: "Empty", Active: true,
	})
	ctx := context.Background()

	t.Run("unknown workflow", func(t *testing.T) {
		_, err := eng.Start(ctx, engine.StartRequest{WorkflowID: "wf-nope", TenantID: "acme", SessionID: "s1"})

		var notFoundErr *engine.WorkflowNotFoundError
		require.ErrorAs(t, err, &notFoundErr)
	})

	t.Run("inactive workflow", func(t *testing.T) {
		_, err := eng.Start(ctx, engine.StartRequest{WorkflowID: "wf-off", TenantID: "acme", SessionID: "s2"})

		var execErr *engine.WorkflowExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, err.Error(), "not active")
	})

	t.Run("no steps", func(t *testing.T) {
		_, err := eng.Start(ctx, engine.StartRequest{WorkflowID: "wf-empty", TenantID: "acme", SessionID: "s3"})

		var execErr *engine.WorkflowExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, err.Error(), "no steps")
	})

	t.Run("cross tenant lookup misses", func(t *testing.T) {
		_, err := eng.Start(ctx, engine.StartRequest{WorkflowID: "wf-off", TenantID: "other", SessionID: "s4"})

		var notFoundErr *engine.WorkflowNotFoundError
		require.ErrorAs(t, err, &notFoundErr)
	})
}

func TestCancelExecution(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, greetAndPick())
	ctx := context.Background()

	started, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-greet", TenantID: "acme", SessionID: "sess-m",
	})
	require.NoError(t, err)

	require.NoError(t, eng.CancelExecution(ctx, "acme", started.Execution.ID, "user asked"))

	execution, err := p.ExecutionRepository().ExecutionByID(ctx, "acme", started.Execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, execution.Status)

	// The state row is gone: no step call can resume the conversation.
	_, err = eng.Step(ctx, engine.StepRequest{
		ExecutionID: started.Execution.ID, SessionID: "sess-m", TenantID: "acme", UserChoice: "A",
	})
	var stateErr *engine.WorkflowStateError
	require.ErrorAs(t, err, &stateErr)

	// Cancelling twice is rejected.
	err = eng.CancelExecution(ctx, "acme", started.Execution.ID, "")
	var execErr *engine.WorkflowExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestGetSessionState_TenantEnforcement(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, greetAndPick())
	ctx := context.Background()

	_, err := eng.Start(ctx, engine.StartRequest{
		WorkflowID: "wf-greet", TenantID: "acme", SessionID: "sess-n",
	})
	require.NoError(t, err)

	state, err := eng.GetSessionState(ctx, "acme", "sess-n")
	require.NoError(t, err)
	assert.Equal(t, "pick", state.CurrentStepID)
	assert.Equal(t, statestore.WaitingChoice, state.WaitingForInput)

	_, err = eng.GetSessionState(ctx, "intruder", "sess-n")
	var tenantErr *engine.TenantAccessError
	require.ErrorAs(t, err, &tenantErr)

	_, err = eng.GetSessionState(ctx, "acme", "sess-missing")
	assert.ErrorIs(t, err, statestore.ErrStateNotFound)
}

func TestStep_SetVariableActionWritesBag(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, &models.WorkflowDefinition{
		ID:       "wf-setvar",
		TenantID: "acme",
		Name:     "Set variable",
		Active:   true,
		Steps: []*models.Step{
			{
				ID:       "tag",
				Type:     models.StepTypeAction,
				Action:   "set_variable",
				Params:   map[string]any{"name": "session.source", "value": "chat"},
				NextStep: strptr("show"),
			},
			{ID: "show", Type: models.StepTypeMessage, Content: "from {{session.source}}"},
		},
	})

	result, err := eng.Start(context.Background(), engine.StartRequest{
		WorkflowID: "wf-setvar", TenantID: "acme", SessionID: "sess-o",
	})
	require.NoError(t, err)

	assert.True(t, result.Result.WorkflowCompleted)
	assert.Equal(t, "from chat", result.Result.Message)
}

func TestStart_SeedsSystemVariables(t *testing.T) {
	t.Parallel()

	eng, p, _ := setupEngine(t)
	saveWorkflow(t, p, &models.WorkflowDefinition{
		ID:       "wf-sys",
		TenantID: "acme",
		Name:     "System vars",
		Active:   true,
		Steps: []*models.Step{
			{ID: "show", Type: models.StepTypeMessage, Content: "today is {{_system.date}}"},
		},
	})

	result, err := eng.Start(context.Background(), engine.StartRequest{
		WorkflowID: "wf-sys", TenantID: "acme", SessionID: "sess-p",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Result.Message, "today is 2"), result.Result.Message)
}
