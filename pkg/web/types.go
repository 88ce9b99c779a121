// Package web provides HTTP request and response types for the execution API.
package web

import (
	"github.com/convflow/convflow/pkg/parser"
)

// StartExecutionRequest represents the request body for starting an
// execution. TenantID may come from the body or the X-Tenant-ID header.
type StartExecutionRequest struct {
	WorkflowID       string         `json:"workflow_id"                 validate:"required"`
	SessionID        string         `json:"session_id"                  validate:"required"`
	TenantID         string         `json:"tenant_id,omitempty"`
	InitialVariables map[string]any `json:"initial_variables,omitempty"`
	Context          map[string]any `json:"context,omitempty"`
	UserIdentifier   string         `json:"user_identifier,omitempty"`
}

// ExecuteStepRequest represents one user turn against a running execution.
type ExecuteStepRequest struct {
	SessionID  string         `json:"session_id"           validate:"required"`
	TenantID   string         `json:"tenant_id,omitempty"`
	UserInput  string         `json:"user_input,omitempty"`
	UserChoice string         `json:"user_choice,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// CancelExecutionRequest represents the request body for cancelling an
// execution.
type CancelExecutionRequest struct {
	TenantID string `json:"tenant_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// TriggerCheckRequest asks whether a message should start a workflow.
type TriggerCheckRequest struct {
	Message   string `json:"message"              validate:"required"`
	SessionID string `json:"session_id,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`
}

// ValidateWorkflowResponse carries the advisory issue list for a stored
// definition.
type ValidateWorkflowResponse struct {
	Valid  bool                     `json:"valid"`
	Issues []parser.ValidationIssue `json:"issues"`
}
