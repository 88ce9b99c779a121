// Package engine implements the conversational workflow execution engine:
// starting executions, the per-turn step state machine with its
// auto-advance loop, cancellation, and session state reads.
package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/convflow/convflow/pkg/eventbus"
	"github.com/convflow/convflow/pkg/events"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/otelhelper"
	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/registry"
	"github.com/convflow/convflow/pkg/statestore"
	"github.com/convflow/convflow/pkg/variables"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxAutoAdvance bounds the silent step chain within one request so a
// cyclic graph of condition/action steps cannot spin a request forever.
const maxAutoAdvance = 50

// sessionStripes is the size of the striped session lock. Concurrent calls
// for the same session serialize; calls for different sessions almost
// always proceed in parallel.
const sessionStripes = 64

// StartRequest carries everything needed to begin an execution for one
// conversation session.
type StartRequest struct {
	WorkflowID       string
	TenantID         string
	SessionID        string
	InitialVariables map[string]any
	Context          map[string]any
	UserIdentifier   string
}

// StepRequest carries one user turn against a running execution.
type StepRequest struct {
	ExecutionID string
	SessionID   string
	TenantID    string
	UserInput   string
	UserChoice  string
	Context     map[string]any
}

// StepResult is the outcome of one engine call, mirroring the wire contract
// clients handle.
type StepResult struct {
	Success           bool                   `json:"success"`
	StepID            string                 `json:"step_id"`
	StepType          models.StepType        `json:"step_type"`
	Message           string                 `json:"message,omitempty"`
	Choices           []string               `json:"choices,omitempty"`
	InputRequired     statestore.WaitingKind `json:"input_required,omitempty"`
	NextStepID        *string                `json:"next_step_id,omitempty"`
	WorkflowCompleted bool                   `json:"workflow_completed"`
	VariablesUpdated  map[string]any         `json:"variables_updated,omitempty"`
}

// StartResult pairs the created execution with the first visible prompt.
type StartResult struct {
	Execution *models.Execution `json:"execution"`
	Result    *StepResult       `json:"result"`
}

type Engine struct {
	persistence persistence.Persistence
	states      *statestore.Store
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
	locks       [sessionStripes]sync.Mutex
}

type Option func(*Engine)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTracer installs a tracer; the default is the global provider's, which
// is a no-op unless tracing was set up.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// New builds an engine. publisher may be nil, in which case lifecycle events
// are not emitted.
func New(p persistence.Persistence, states *statestore.Store, reg *registry.Registry, publisher eventbus.EventPublisher, logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		persistence: p,
		states:      states,
		registry:    reg,
		publisher:   publisher,
		tracer:      otel.Tracer("convflow.engine"),
		logger:      logger.With("module", "engine"),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Start begins an execution: it seeds variables, creates the execution and
// session state rows, and runs the workflow up to the first user-visible
// pause. When the first step is non-interactive its message is merged with
// the prompt of the step the chain lands on, so the caller sees both in one
// reply.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start",
		attribute.String(otelhelper.TenantIDKey, req.TenantID),
		attribute.String(otelhelper.WorkflowIDKey, req.WorkflowID),
		attribute.String(otelhelper.SessionIDKey, req.SessionID),
	)
	defer span.End()

	lock := e.sessionLock(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	wf, err := e.persistence.WorkflowRepository().ByID(ctx, req.TenantID, req.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, &WorkflowNotFoundError{WorkflowID: req.WorkflowID}
		}

		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if !wf.Active {
		return nil, &WorkflowExecutionError{Message: fmt.Sprintf("workflow %s is not active", wf.ID)}
	}

	first := wf.FirstStep()
	if first == nil {
		return nil, &WorkflowExecutionError{Message: fmt.Sprintf("workflow %s has no steps", wf.ID)}
	}

	now := e.now().UTC()

	vars := variables.Merge(wf.Variables, req.InitialVariables, req.Context, variables.SystemVariables(now))
	if req.UserIdentifier != "" {
		vars = variables.Merge(vars, map[string]any{"_system": map[string]any{"user": req.UserIdentifier}})
	}

	execution := &models.Execution{
		ID:            newExecutionID(),
		WorkflowID:    wf.ID,
		TenantID:      req.TenantID,
		SessionID:     req.SessionID,
		Status:        models.ExecutionStatusRunning,
		CurrentStepID: first.ID,
		Variables:     vars,
		StartedAt:     now,
	}

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	state := &statestore.SessionState{
		SessionID:     req.SessionID,
		ExecutionID:   execution.ID,
		WorkflowID:    wf.ID,
		TenantID:      req.TenantID,
		CurrentStepID: first.ID,
		Variables:     vars,
		StepContext:   &statestore.StepContext{},
	}

	if err := e.states.Save(ctx, state, statestore.DefaultTTL); err != nil {
		return nil, fmt.Errorf("failed to create session state: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionStartedEvent, req.TenantID, wf.ID),
		ExecutionID:  execution.ID,
		SessionID:    req.SessionID,
		WorkflowName: wf.Name,
		Variables:    vars,
	})

	bag := variables.NewBag(state.Variables)

	var result *StepResult

	if first.Type.AwaitsReply() {
		// An interactive first step is rendered without executing it: the
		// prompt goes out, nothing advances until the user answers.
		result, err = e.renderEntryPrompt(ctx, wf, execution, state, first, bag)
	} else {
		result, err = e.advance(ctx, wf, execution, state, first, bag)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return &StartResult{Execution: execution, Result: result}, nil
}

// Step applies one user turn: bind the answer, execute the now-satisfied
// step, then silently chain non-interactive steps until the next
// user-visible pause or completion.
func (e *Engine) Step(ctx context.Context, req StepRequest) (*StepResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.step",
		attribute.String(otelhelper.TenantIDKey, req.TenantID),
		attribute.String(otelhelper.ExecutionIDKey, req.ExecutionID),
		attribute.String(otelhelper.SessionIDKey, req.SessionID),
	)
	defer span.End()

	lock := e.sessionLock(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	execution, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, req.TenantID, req.ExecutionID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return nil, &WorkflowExecutionError{ExecutionID: req.ExecutionID, Message: "execution not found"}
		}

		return nil, fmt.Errorf("failed to load execution: %w", err)
	}

	state, err := e.states.Get(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, statestore.ErrStateNotFound) {
			return nil, &WorkflowStateError{SessionID: req.SessionID, Message: "no session state"}
		}

		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	if state.TenantID != req.TenantID {
		return nil, &TenantAccessError{TenantID: req.TenantID, Resource: "session " + req.SessionID}
	}

	if state.ExecutionID != req.ExecutionID {
		return nil, &WorkflowStateError{SessionID: req.SessionID, Message: "session state belongs to a different execution"}
	}

	// A late step call against an already-finished conversation is
	// acknowledged, not rejected: the state row outlives completion for
	// exactly this idempotency.
	if state.Completed {
		return &StepResult{
			Success:           true,
			StepID:            state.CurrentStepID,
			WorkflowCompleted: true,
			Message:           defaultCompletionMessage,
		}, nil
	}

	if execution.Status != models.ExecutionStatusRunning {
		return nil, &WorkflowExecutionError{
			ExecutionID: execution.ID,
			Message:     fmt.Sprintf("execution is not running (status %s)", execution.Status),
		}
	}

	wf, err := e.persistence.WorkflowRepository().ByID(ctx, req.TenantID, execution.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	step := wf.StepByID(state.CurrentStepID)
	if step == nil {
		return nil, &WorkflowStateError{SessionID: req.SessionID, Message: "current step missing from definition"}
	}

	bag := variables.NewBag(state.Variables)
	if req.Context != nil {
		bag.MergeIn(req.Context)
		state.Variables = bag.Values()
	}

	if err := e.bindAnswer(ctx, state, step, bag, req); err != nil {
		return nil, err
	}

	result, err := e.advance(ctx, wf, execution, state, step, bag)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return result, nil
}

// bindAnswer applies user_input / user_choice to the current step and
// persists the binding before any step executes.
func (e *Engine) bindAnswer(ctx context.Context, state *statestore.SessionState, step *models.Step, bag *variables.Bag, req StepRequest) error {
	bound := false

	if req.UserInput != "" && step.Type == models.StepTypeInput && step.Variable != "" {
		// Verbatim, no type coercion.
		if err := bag.Set(step.Variable, req.UserInput); err != nil {
			return &StepExecutionError{StepID: step.ID, Err: err}
		}

		state.LastUserMessage = req.UserInput
		bound = true
	}

	if req.UserChoice != "" && step.Type == models.StepTypeChoice {
		if state.StepContext == nil {
			state.StepContext = &statestore.StepContext{}
		}

		if !state.StepContext.CompletedChoices[step.ID] {
			option := matchOption(step.Options, req.UserChoice)
			if option != nil {
				if step.Variable != "" {
					if err := bag.Set(step.Variable, option.Value); err != nil {
						return &StepExecutionError{StepID: step.ID, Err: err}
					}
				}

				route := ""
				if option.NextStep != nil {
					route = *option.NextStep
				}

				state.StepContext.MarkChoiceCompleted(step.ID, route)
				state.LastUserMessage = req.UserChoice
				bound = true
			}
			// An unmatched choice is not an error; the step stays
			// unsatisfied and its prompt is re-presented.
		}
	}

	if !bound {
		return nil
	}

	state.Variables = bag.Values()

	if err := e.states.Save(ctx, state, statestore.DefaultTTL); err != nil {
		return fmt.Errorf("failed to persist answer: %w", err)
	}

	return nil
}

// matchOption matches a user choice against the options by value first,
// then by text; first match wins. Matching is case-insensitive.
func matchOption(options []models.ChoiceOption, choice string) *models.ChoiceOption {
	for i := range options {
		if strings.EqualFold(options[i].Value, choice) {
			return &options[i]
		}
	}

	for i := range options {
		if strings.EqualFold(options[i].Text, choice) {
			return &options[i]
		}
	}

	return nil
}

// advance is the auto-advance loop: execute the entry step, then chain
// non-interactive steps until an interactive step pauses the conversation,
// the workflow completes, or the cap trips on a cyclic graph.
func (e *Engine) advance(ctx context.Context, wf *models.WorkflowDefinition, execution *models.Execution, state *statestore.SessionState, entry *models.Step, bag *variables.Bag) (*StepResult, error) {
	var messages []string

	current := entry

	for iteration := 0; ; iteration++ {
		if iteration >= maxAutoAdvance {
			err := &WorkflowExecutionError{ExecutionID: execution.ID, Message: "auto-advance limit exceeded, definition likely cyclic"}
			e.failExecution(ctx, execution, state, current.ID, err)

			return nil, err
		}

		startedAt := e.now().UTC()

		outcome, err := e.executeStep(ctx, wf, execution, state, current, bag)
		if err != nil {
			stepErr := err
			if _, ok := err.(*StepExecutionError); !ok {
				stepErr = &StepExecutionError{StepID: current.ID, Err: err}
			}

			e.recordStep(ctx, execution, current, models.StepPhaseFailed, nil, err.Error(), startedAt)
			e.publishStepFailed(ctx, execution, current, err, startedAt)
			e.failExecution(ctx, execution, state, current.ID, err)

			return nil, stepErr
		}

		e.recordStep(ctx, execution, current, outcome.phase, outcome.output, "", startedAt)
		e.publishStepFinished(ctx, execution, current, outcome, startedAt)

		if outcome.message != "" {
			messages = append(messages, outcome.message)
		}

		if outcome.waiting != statestore.WaitingNone {
			return e.pauseAt(ctx, execution, state, current, outcome, bag, messages)
		}

		execution.StepsCompleted++

		if outcome.completed {
			return e.completeExecution(ctx, execution, state, current, bag, messages)
		}

		next := wf.StepByID(*outcome.nextStepID)

		state.CurrentStepID = next.ID
		state.WaitingForInput = statestore.WaitingNone
		state.Variables = bag.Values()
		execution.CurrentStepID = next.ID
		execution.Variables = bag.Values()

		if err := e.states.Save(ctx, state, statestore.DefaultTTL); err != nil {
			return nil, fmt.Errorf("failed to persist session state: %w", err)
		}

		if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
			return nil, fmt.Errorf("failed to persist execution: %w", err)
		}

		// A message step reached mid-chain is shown and ends the turn; only
		// condition/action/delay chain silently.
		if current.Type == models.StepTypeMessage && iteration > 0 {
			result := &StepResult{
				Success:          true,
				StepID:           current.ID,
				StepType:         current.Type,
				Message:          joined(messages),
				NextStepID:       outcome.nextStepID,
				VariablesUpdated: bag.Values(),
			}

			return result, e.rememberReply(ctx, state, result.Message)
		}

		current = next
	}
}

// renderEntryPrompt renders an interactive first step without executing it.
func (e *Engine) renderEntryPrompt(ctx context.Context, wf *models.WorkflowDefinition, execution *models.Execution, state *statestore.SessionState, step *models.Step, bag *variables.Bag) (*StepResult, error) {
	startedAt := e.now().UTC()

	outcome, err := e.executeStep(ctx, wf, execution, state, step, bag)
	if err != nil {
		return nil, err
	}

	if outcome.waiting == statestore.WaitingNone {
		// Initial variables already satisfied the step; fall into the
		// normal chain from here. Rendering choice/input has no side
		// effects, so re-executing in the loop is safe.
		return e.advance(ctx, wf, execution, state, step, bag)
	}

	e.recordStep(ctx, execution, step, outcome.phase, outcome.output, "", startedAt)
	e.publishStepFinished(ctx, execution, step, outcome, startedAt)

	return e.pauseAt(ctx, execution, state, step, outcome, bag, []string{outcome.message})
}

// pauseAt persists the waiting position and builds the prompt result.
func (e *Engine) pauseAt(ctx context.Context, execution *models.Execution, state *statestore.SessionState, step *models.Step, outcome *stepOutcome, bag *variables.Bag, messages []string) (*StepResult, error) {
	message := joined(messages)

	state.CurrentStepID = step.ID
	state.WaitingForInput = outcome.waiting
	state.Variables = bag.Values()
	state.LastBotMessage = message
	execution.CurrentStepID = step.ID
	execution.Variables = bag.Values()

	if err := e.states.Save(ctx, state, statestore.DefaultTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session state: %w", err)
	}

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	return &StepResult{
		Success:          true,
		StepID:           step.ID,
		StepType:         step.Type,
		Message:          message,
		Choices:          outcome.choices,
		InputRequired:    outcome.waiting,
		VariablesUpdated: bag.Values(),
	}, nil
}

// completeExecution finishes the execution and flags (without deleting) the
// session state, keeping late duplicate step calls idempotent.
func (e *Engine) completeExecution(ctx context.Context, execution *models.Execution, state *statestore.SessionState, step *models.Step, bag *variables.Bag, messages []string) (*StepResult, error) {
	now := e.now().UTC()

	message := joined(messages)
	if message == "" {
		message = defaultCompletionMessage
	}

	execution.Status = models.ExecutionStatusCompleted
	execution.CurrentStepID = step.ID
	execution.Variables = bag.Values()
	execution.CompletedAt = &now

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	state.CurrentStepID = step.ID
	state.Variables = bag.Values()
	state.WaitingForInput = statestore.WaitingNone
	state.Completed = true
	state.LastBotMessage = message

	if err := e.states.Save(ctx, state, statestore.DefaultTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session state: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:      events.NewBaseEvent(events.ExecutionCompletedEvent, execution.TenantID, execution.WorkflowID),
		ExecutionID:    execution.ID,
		SessionID:      execution.SessionID,
		StepsCompleted: execution.StepsCompleted,
		DurationMs:     now.Sub(execution.StartedAt).Milliseconds(),
	})

	return &StepResult{
		Success:           true,
		StepID:            step.ID,
		StepType:          step.Type,
		Message:           message,
		WorkflowCompleted: true,
		VariablesUpdated:  bag.Values(),
	}, nil
}

// failExecution marks the execution failed with the error captured. The
// session state is saved as-is so the failure is inspectable.
func (e *Engine) failExecution(ctx context.Context, execution *models.Execution, state *statestore.SessionState, stepID string, cause error) {
	now := e.now().UTC()

	execution.Status = models.ExecutionStatusFailed
	execution.ErrorMessage = cause.Error()
	execution.CompletedAt = &now

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist failed execution", "execution_id", execution.ID, "error", err)
	}

	state.WaitingForInput = statestore.WaitingNone

	if err := e.states.Save(ctx, state, statestore.DefaultTTL); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist session state of failed execution", "session_id", state.SessionID, "error", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.TenantID, execution.WorkflowID),
		ExecutionID: execution.ID,
		SessionID:   execution.SessionID,
		StepID:      stepID,
		Error:       cause.Error(),
		DurationMs:  now.Sub(execution.StartedAt).Milliseconds(),
	})
}

// CancelExecution marks a running execution cancelled and deletes its
// session state so no further step call can resume it.
func (e *Engine) CancelExecution(ctx context.Context, tenantID, executionID, reason string) error {
	execution, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, tenantID, executionID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return &WorkflowExecutionError{ExecutionID: executionID, Message: "execution not found"}
		}

		return fmt.Errorf("failed to load execution: %w", err)
	}

	if execution.Status != models.ExecutionStatusRunning {
		return &WorkflowExecutionError{
			ExecutionID: executionID,
			Message:     fmt.Sprintf("execution is not running (status %s)", execution.Status),
		}
	}

	lock := e.sessionLock(execution.SessionID)
	lock.Lock()
	defer lock.Unlock()

	now := e.now().UTC()

	execution.Status = models.ExecutionStatusCancelled
	execution.CompletedAt = &now

	if reason != "" {
		execution.ErrorMessage = reason
	}

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist cancelled execution: %w", err)
	}

	if err := e.states.Delete(ctx, execution.SessionID); err != nil {
		e.logger.WarnContext(ctx, "Failed to delete session state on cancel",
			"session_id", execution.SessionID, "error", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionCancelled{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, execution.TenantID, execution.WorkflowID),
		ExecutionID: execution.ID,
		SessionID:   execution.SessionID,
		Reason:      reason,
	})

	return nil
}

// GetSessionState returns the live state for a session, enforcing tenant
// ownership.
func (e *Engine) GetSessionState(ctx context.Context, tenantID, sessionID string) (*statestore.SessionState, error) {
	state, err := e.states.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if state.TenantID != tenantID {
		return nil, &TenantAccessError{TenantID: tenantID, Resource: "session " + sessionID}
	}

	return state, nil
}

// ListExecutions pages through a tenant's executions.
func (e *Engine) ListExecutions(ctx context.Context, opts persistence.ListExecutionsOptions) (*persistence.ExecutionPage, error) {
	return e.persistence.ExecutionRepository().ListExecutions(ctx, opts)
}

// rememberReply stores the last bot message on the session state.
func (e *Engine) rememberReply(ctx context.Context, state *statestore.SessionState, message string) error {
	if message == "" {
		return nil
	}

	state.LastBotMessage = message

	if err := e.states.Save(ctx, state, statestore.DefaultTTL); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}

	return nil
}

// recordStep appends one audit row; audit failures are logged, never fatal.
func (e *Engine) recordStep(ctx context.Context, execution *models.Execution, step *models.Step, phase models.StepPhase, output map[string]any, errorMessage string, startedAt time.Time) {
	completedAt := e.now().UTC()

	record := &models.StepExecution{
		ID:           uuid.NewString(),
		ExecutionID:  execution.ID,
		StepID:       step.ID,
		StepType:     step.Type,
		Phase:        phase,
		OutputData:   output,
		ErrorMessage: errorMessage,
		StartedAt:    startedAt,
		CompletedAt:  &completedAt,
	}

	if err := e.persistence.ExecutionRepository().AppendStepExecution(ctx, record); err != nil {
		e.logger.WarnContext(ctx, "Failed to append step audit record",
			"execution_id", execution.ID, "step_id", step.ID, "error", err)
	}
}

func (e *Engine) publishStepFinished(ctx context.Context, execution *models.Execution, step *models.Step, outcome *stepOutcome, startedAt time.Time) {
	e.publish(ctx, execution.ID, events.StepFinished{
		BaseEvent:   events.NewBaseEvent(events.StepFinishedEvent, execution.TenantID, execution.WorkflowID),
		ExecutionID: execution.ID,
		StepID:      step.ID,
		StepType:    string(step.Type),
		Phase:       string(outcome.phase),
		OutputData:  outcome.output,
		DurationMs:  e.now().UTC().Sub(startedAt).Milliseconds(),
	})
}

func (e *Engine) publishStepFailed(ctx context.Context, execution *models.Execution, step *models.Step, cause error, startedAt time.Time) {
	e.publish(ctx, execution.ID, events.StepFailed{
		BaseEvent:   events.NewBaseEvent(events.StepFailedEvent, execution.TenantID, execution.WorkflowID),
		ExecutionID: execution.ID,
		StepID:      step.ID,
		StepType:    string(step.Type),
		Error:       cause.Error(),
		DurationMs:  e.now().UTC().Sub(startedAt).Milliseconds(),
	})
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", string(event.GetType()), "error", err)
	}
}

func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))

	return &e.locks[h.Sum32()%sessionStripes]
}

func newExecutionID() string {
	return "exec-" + uuid.NewString()[:8]
}

func joined(messages []string) string {
	return strings.Join(messages, "\n\n")
}
