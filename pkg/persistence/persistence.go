// Package persistence provides the data storage abstraction for workflow
// definitions and execution history.
package persistence

import (
	"context"

	"github.com/convflow/convflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores tenant-scoped workflow definitions. Saving an
// existing workflow id appends the next version; prior versions are
// immutable history.
type WorkflowRepository interface {
	Save(ctx context.Context, definition *models.WorkflowDefinition) error
	ByID(ctx context.Context, tenantID, id string) (*models.WorkflowDefinition, error)
	Active(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error)
}

// ListExecutionsOptions filters and pages the execution list. Page is
// 1-based.
type ListExecutionsOptions struct {
	TenantID   string
	WorkflowID string
	Status     *models.ExecutionStatus
	Page       int
	Size       int
}

type ExecutionPage struct {
	Executions []*models.Execution `json:"executions"`
	TotalCount int64               `json:"total_count"`
	Page       int                 `json:"page"`
	Size       int                 `json:"size"`
}

// ExecutionRepository stores executions and their append-only step audit
// trail.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, tenantID, id string) (*models.Execution, error)
	ListExecutions(ctx context.Context, opts ListExecutionsOptions) (*ExecutionPage, error)
	AppendStepExecution(ctx context.Context, record *models.StepExecution) error
	StepExecutions(ctx context.Context, executionID string) ([]*models.StepExecution, error)
}
