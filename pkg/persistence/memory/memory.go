// Package memory provides an in-memory persistence implementation used by
// tests and single-process development setups.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on process memory.
type Persistence struct {
	workflows  *WorkflowRepository
	executions *ExecutionRepository
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflows: &WorkflowRepository{
			versions: make(map[string][]*models.WorkflowDefinition),
		},
		executions: &ExecutionRepository{
			executions: make(map[string]*models.Execution),
			steps:      make(map[string][]*models.StepExecution),
		},
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// WorkflowRepository keeps append-only version lists per workflow id.
type WorkflowRepository struct {
	mu       sync.RWMutex
	versions map[string][]*models.WorkflowDefinition
}

func (r *WorkflowRepository) Save(_ context.Context, definition *models.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.versions[definition.ID]
	definition.Version = len(history) + 1
	r.versions[definition.ID] = append(history, definition)

	return nil
}

func (r *WorkflowRepository) ByID(_ context.Context, tenantID, id string) (*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.versions[id]
	if len(history) == 0 {
		return nil, &persistence.StoreError{Op: "ByID", ID: id, Err: persistence.ErrWorkflowNotFound}
	}

	latest := history[len(history)-1]
	if latest.TenantID != tenantID {
		return nil, &persistence.StoreError{Op: "ByID", ID: id, Err: persistence.ErrWorkflowNotFound}
	}

	return latest, nil
}

func (r *WorkflowRepository) Active(_ context.Context, tenantID string) ([]*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*models.WorkflowDefinition

	for _, history := range r.versions {
		latest := history[len(history)-1]
		if latest.TenantID == tenantID && latest.Active {
			active = append(active, latest)
		}
	}

	// Deterministic order for trigger matching.
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	return active, nil
}

// ExecutionRepository stores executions and their step audit trail.
type ExecutionRepository struct {
	mu         sync.RWMutex
	executions map[string]*models.Execution
	steps      map[string][]*models.StepExecution
}

func (r *ExecutionRepository) SaveExecution(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *execution
	r.executions[execution.ID] = &copied

	return nil
}

func (r *ExecutionRepository) ExecutionByID(_ context.Context, tenantID, id string) (*models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	execution, ok := r.executions[id]
	if !ok || execution.TenantID != tenantID {
		return nil, &persistence.StoreError{Op: "ExecutionByID", ID: id, Err: persistence.ErrExecutionNotFound}
	}

	copied := *execution

	return &copied, nil
}

func (r *ExecutionRepository) ListExecutions(_ context.Context, opts persistence.ListExecutionsOptions) (*persistence.ExecutionPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Execution

	for _, execution := range r.executions {
		if execution.TenantID != opts.TenantID {
			continue
		}

		if opts.WorkflowID != "" && execution.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.Status != nil && execution.Status != *opts.Status {
			continue
		}

		matched = append(matched, execution)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	page, size := normalizePage(opts.Page, opts.Size)
	start := (page - 1) * size

	if start > len(matched) {
		start = len(matched)
	}

	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	items := make([]*models.Execution, 0, end-start)
	for _, execution := range matched[start:end] {
		copied := *execution
		items = append(items, &copied)
	}

	return &persistence.ExecutionPage{
		Executions: items,
		TotalCount: int64(len(matched)),
		Page:       page,
		Size:       size,
	}, nil
}

func (r *ExecutionRepository) AppendStepExecution(_ context.Context, record *models.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *record
	r.steps[record.ExecutionID] = append(r.steps[record.ExecutionID], &copied)

	return nil
}

func (r *ExecutionRepository) StepExecutions(_ context.Context, executionID string) ([]*models.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.steps[executionID]
	out := make([]*models.StepExecution, 0, len(records))

	for _, record := range records {
		copied := *record
		out = append(out, &copied)
	}

	return out, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}

	if size < 1 {
		size = 20
	}

	if size > 100 {
		size = 100
	}

	return page, size
}
