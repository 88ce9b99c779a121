package engine

import "fmt"

// WorkflowNotFoundError indicates a lookup miss for a workflow definition.
type WorkflowNotFoundError struct {
	WorkflowID string
}

func (e *WorkflowNotFoundError) Error() string {
	return fmt.Sprintf("workflow %s not found", e.WorkflowID)
}

// WorkflowExecutionError indicates an execution-level precondition was
// violated: inactive workflow, empty definition, execution not running.
type WorkflowExecutionError struct {
	ExecutionID string
	Message     string
}

func (e *WorkflowExecutionError) Error() string {
	if e.ExecutionID == "" {
		return e.Message
	}

	return fmt.Sprintf("execution %s: %s", e.ExecutionID, e.Message)
}

// StepExecutionError indicates a specific step raised during execution. The
// execution is marked failed before this error propagates.
type StepExecutionError struct {
	StepID string
	Err    error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.StepID, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}

// WorkflowStateError indicates the session state row is missing or
// inconsistent with the execution being stepped.
type WorkflowStateError struct {
	SessionID string
	Message   string
}

func (e *WorkflowStateError) Error() string {
	return fmt.Sprintf("session %s: %s", e.SessionID, e.Message)
}

// TenantAccessError indicates a cross-tenant access attempt.
type TenantAccessError struct {
	TenantID string
	Resource string
}

func (e *TenantAccessError) Error() string {
	return fmt.Sprintf("tenant %s may not access %s", e.TenantID, e.Resource)
}

// ActionExecutionError wraps an action executor failure with the action
// type that raised it.
type ActionExecutionError struct {
	ActionType string
	Err        error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.ActionType, e.Err)
}

func (e *ActionExecutionError) Unwrap() error {
	return e.Err
}
