package engine

import (
	"context"

	"github.com/convflow/convflow/pkg/actions"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/otelhelper"
	"github.com/convflow/convflow/pkg/statestore"
	"github.com/convflow/convflow/pkg/variables"
	"go.opentelemetry.io/otel/attribute"
)

// defaultCompletionMessage is returned when a workflow completes on a step
// that produced no message of its own.
const defaultCompletionMessage = "Workflow completed. Thank you!"

// stepOutcome is the engine-internal result of executing one step.
type stepOutcome struct {
	message    string
	choices    []string
	waiting    statestore.WaitingKind
	nextStepID *string
	completed  bool
	phase      models.StepPhase
	output     map[string]any
}

// executeStep runs one step against the current state. It never mutates the
// execution or persists anything; the advance loop owns those.
func (e *Engine) executeStep(ctx context.Context, wf *models.WorkflowDefinition, execution *models.Execution, state *statestore.SessionState, step *models.Step, bag *variables.Bag) (*stepOutcome, error) {
	switch step.Type {
	case models.StepTypeMessage:
		return e.executeMessage(step, wf, bag), nil
	case models.StepTypeChoice:
		return e.executeChoice(step, wf, state, bag), nil
	case models.StepTypeInput:
		return e.executeInput(step, wf, bag), nil
	case models.StepTypeCondition:
		return e.executeCondition(step, wf, bag), nil
	case models.StepTypeAction:
		return e.executeAction(ctx, step, wf, execution, bag)
	case models.StepTypeDelay:
		return e.executeDelay(ctx, step, wf, bag), nil
	default:
		return nil, &WorkflowExecutionError{ExecutionID: execution.ID, Message: "unknown step type " + string(step.Type)}
	}
}

func (e *Engine) executeMessage(step *models.Step, wf *models.WorkflowDefinition, bag *variables.Bag) *stepOutcome {
	next := existingNext(wf, step)

	return &stepOutcome{
		message:    variables.Resolve(step.Content, bag),
		nextStepID: next,
		completed:  next == nil,
		phase:      models.StepPhaseCompleted,
	}
}

// executeChoice either skips an already-answered choice straight to its
// routed next step, or renders the prompt and pauses for the answer.
func (e *Engine) executeChoice(step *models.Step, wf *models.WorkflowDefinition, state *statestore.SessionState, bag *variables.Bag) *stepOutcome {
	if state.StepContext != nil && state.StepContext.CompletedChoices[step.ID] {
		next := existingNext(wf, step)

		if route := state.StepContext.ChoiceRoutes[step.ID]; route != "" {
			if wf.HasStep(route) {
				next = &route
			} else {
				next = nil
			}
		}

		return &stepOutcome{
			nextStepID: next,
			completed:  next == nil,
			phase:      models.StepPhaseSatisfied,
		}
	}

	choices := make([]string, 0, len(step.Options))
	for _, option := range step.Options {
		choices = append(choices, variables.Resolve(option.Text, bag))
	}

	return &stepOutcome{
		message: variables.Resolve(step.Content, bag),
		choices: choices,
		waiting: statestore.WaitingChoice,
		phase:   models.StepPhaseAwaitingInput,
	}
}

// executeInput advances immediately when the step's variable is already
// bound to a non-empty value, so the engine never prompts twice for data it
// already has.
func (e *Engine) executeInput(step *models.Step, wf *models.WorkflowDefinition, bag *variables.Bag) *stepOutcome {
	if step.Variable != "" {
		if value, ok := bag.Get(step.Variable); ok && variables.Stringify(value) != "" {
			next := existingNext(wf, step)

			return &stepOutcome{
				nextStepID: next,
				completed:  next == nil,
				phase:      models.StepPhaseSatisfied,
			}
		}
	}

	return &stepOutcome{
		message: variables.Resolve(step.Content, bag),
		waiting: statestore.WaitingText,
		phase:   models.StepPhaseAwaitingInput,
	}
}

// executeCondition has no alternate branch: a false condition ends the
// workflow at this step, optionally with a resolved completion message from
// the step metadata.
func (e *Engine) executeCondition(step *models.Step, wf *models.WorkflowDefinition, bag *variables.Bag) *stepOutcome {
	if variables.Evaluate(step.Condition, bag) {
		next := existingNext(wf, step)

		return &stepOutcome{
			nextStepID: next,
			completed:  next == nil,
			phase:      models.StepPhaseCompleted,
			output:     map[string]any{"condition_result": true},
		}
	}

	outcome := &stepOutcome{
		completed: true,
		phase:     models.StepPhaseCompleted,
		output:    map[string]any{"condition_result": false},
	}

	if raw, ok := step.Metadata["completion_message"].(string); ok && raw != "" {
		outcome.message = variables.Resolve(raw, bag)
	}

	return outcome
}

// executeAction delegates to the registry. The action result never steers
// control flow; it is captured for the audit trail only.
func (e *Engine) executeAction(ctx context.Context, step *models.Step, wf *models.WorkflowDefinition, execution *models.Execution, bag *variables.Bag) (*stepOutcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.action",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.ActionTypeKey, step.Action),
	)
	defer span.End()

	input := actions.Input{
		Params:      resolveParams(step.Params, bag),
		Variables:   bag,
		TenantID:    execution.TenantID,
		ExecutionID: execution.ID,
	}

	result, err := e.registry.Execute(ctx, step.Action, input)
	if err != nil {
		actionErr := &ActionExecutionError{ActionType: step.Action, Err: err}
		otelhelper.SetError(span, actionErr)

		return nil, actionErr
	}

	next := existingNext(wf, step)

	return &stepOutcome{
		nextStepID: next,
		completed:  next == nil,
		phase:      models.StepPhaseCompleted,
		output:     result,
	}, nil
}

// executeDelay does not suspend; it logs and falls through like a message
// step.
func (e *Engine) executeDelay(ctx context.Context, step *models.Step, wf *models.WorkflowDefinition, bag *variables.Bag) *stepOutcome {
	e.logger.InfoContext(ctx, "Delay step passed through without suspension", "step_id", step.ID)

	next := existingNext(wf, step)

	return &stepOutcome{
		message:    variables.Resolve(step.Content, bag),
		nextStepID: next,
		completed:  next == nil,
		phase:      models.StepPhaseCompleted,
	}
}

// existingNext returns the step's next_step only when it names a step in the
// definition. A dangling or absent next_step means the workflow ends here.
func existingNext(wf *models.WorkflowDefinition, step *models.Step) *string {
	if step.NextStep == nil || !wf.HasStep(*step.NextStep) {
		return nil
	}

	return step.NextStep
}

// resolveParams interpolates every string value of the params map, including
// nested maps and slices.
func resolveParams(params map[string]any, bag *variables.Bag) map[string]any {
	if params == nil {
		return map[string]any{}
	}

	resolved := make(map[string]any, len(params))
	for key, value := range params {
		resolved[key] = resolveParamValue(value, bag)
	}

	return resolved
}

func resolveParamValue(value any, bag *variables.Bag) any {
	switch v := value.(type) {
	case string:
		return variables.Resolve(v, bag)
	case map[string]any:
		return resolveParams(v, bag)
	case []any:
		resolved := make([]any, len(v))
		for i, item := range v {
			resolved[i] = resolveParamValue(item, bag)
		}

		return resolved
	default:
		return value
	}
}
