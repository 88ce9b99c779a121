package models

import "time"

// ExecutionStatus represents the lifecycle state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusPaused    ExecutionStatus = "paused" // Reserved, no transition reaches it
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// Execution is one running instance of a workflow definition for one
// conversation session. Created by Start, mutated by every step, terminal
// once Status leaves running.
type Execution struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	TenantID       string          `json:"tenant_id"`
	SessionID      string          `json:"session_id"`
	Status         ExecutionStatus `json:"status"`
	CurrentStepID  string          `json:"current_step_id"`
	Variables      map[string]any  `json:"variables,omitempty"`
	StepsCompleted int             `json:"steps_completed"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// StepPhase is the explicit per-step status: satisfied / awaiting input /
// already answered is recorded here rather than inferred from variable-bag
// contents.
type StepPhase string

const (
	StepPhasePending       StepPhase = "pending"
	StepPhaseAwaitingInput StepPhase = "awaiting_input"
	StepPhaseSatisfied     StepPhase = "satisfied"
	StepPhaseCompleted     StepPhase = "completed"
	StepPhaseFailed        StepPhase = "failed"
)

// StepExecution is one append-only audit record per step attempt. Never
// mutated after CompletedAt is set.
type StepExecution struct {
	ID           string         `json:"id"`
	ExecutionID  string         `json:"execution_id"`
	StepID       string         `json:"step_id"`
	StepType     StepType       `json:"step_type"`
	Phase        StepPhase      `json:"phase"`
	InputData    map[string]any `json:"input_data,omitempty"`
	OutputData   map[string]any `json:"output_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}
