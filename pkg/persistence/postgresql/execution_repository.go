package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

// ExecutionRepository stores executions and the append-only step audit
// trail.
type ExecutionRepository struct {
	db *sql.DB
}

func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.Execution) error {
	variables, err := json.Marshal(execution.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO executions
			(id, workflow_id, tenant_id, session_id, status, current_step_id,
			 variables, steps_completed, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step_id = EXCLUDED.current_step_id,
			variables = EXCLUDED.variables,
			steps_completed = EXCLUDED.steps_completed,
			error_message = EXCLUDED.error_message,
			completed_at = EXCLUDED.completed_at`,
		execution.ID, execution.WorkflowID, execution.TenantID, execution.SessionID,
		execution.Status, execution.CurrentStepID, variables, execution.StepsCompleted,
		execution.ErrorMessage, execution.StartedAt, execution.CompletedAt,
	)
	if err != nil {
		return &persistence.StoreError{Op: "SaveExecution", ID: execution.ID, Err: err}
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, tenantID, id string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, tenant_id, session_id, status, current_step_id,
		       variables, steps_completed, error_message, started_at, completed_at
		FROM executions
		WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &persistence.StoreError{Op: "ExecutionByID", ID: id, Err: persistence.ErrExecutionNotFound}
	}

	if err != nil {
		return nil, &persistence.StoreError{Op: "ExecutionByID", ID: id, Err: err}
	}

	return execution, nil
}

func (r *ExecutionRepository) ListExecutions(ctx context.Context, opts persistence.ListExecutionsOptions) (*persistence.ExecutionPage, error) {
	page, size := opts.Page, opts.Size
	if page < 1 {
		page = 1
	}

	if size < 1 || size > 100 {
		size = 20
	}

	where := "WHERE tenant_id = $1"
	args := []any{opts.TenantID}

	if opts.WorkflowID != "" {
		args = append(args, opts.WorkflowID)
		where += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, *opts.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM executions "+where, args...).Scan(&total)
	if err != nil {
		return nil, &persistence.StoreError{Op: "ListExecutions", Err: err}
	}

	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, workflow_id, tenant_id, session_id, status, current_step_id,
		       variables, steps_completed, error_message, started_at, completed_at
		FROM executions %s
		ORDER BY started_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, &persistence.StoreError{Op: "ListExecutions", Err: err}
	}
	defer rows.Close()

	var executions []*models.Execution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, &persistence.StoreError{Op: "ListExecutions", Err: err}
		}

		executions = append(executions, execution)
	}

	return &persistence.ExecutionPage{
		Executions: executions,
		TotalCount: total,
		Page:       page,
		Size:       size,
	}, rows.Err()
}

func (r *ExecutionRepository) AppendStepExecution(ctx context.Context, record *models.StepExecution) error {
	input, err := json.Marshal(record.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal input data: %w", err)
	}

	output, err := json.Marshal(record.OutputData)
	if err != nil {
		return fmt.Errorf("failed to marshal output data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO step_executions
			(id, execution_id, step_id, step_type, phase, input_data, output_data,
			 error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.ExecutionID, record.StepID, record.StepType, record.Phase,
		input, output, record.ErrorMessage, record.StartedAt, record.CompletedAt,
	)
	if err != nil {
		return &persistence.StoreError{Op: "AppendStepExecution", ID: record.ID, Err: err}
	}

	return nil
}

func (r *ExecutionRepository) StepExecutions(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, execution_id, step_id, step_type, phase, input_data, output_data,
		       error_message, started_at, completed_at
		FROM step_executions
		WHERE execution_id = $1
		ORDER BY started_at`,
		executionID,
	)
	if err != nil {
		return nil, &persistence.StoreError{Op: "StepExecutions", ID: executionID, Err: err}
	}
	defer rows.Close()

	var records []*models.StepExecution

	for rows.Next() {
		var (
			record models.StepExecution
			input  []byte
			output []byte
		)

		err := rows.Scan(
			&record.ID, &record.ExecutionID, &record.StepID, &record.StepType, &record.Phase,
			&input, &output, &record.ErrorMessage, &record.StartedAt, &record.CompletedAt,
		)
		if err != nil {
			return nil, &persistence.StoreError{Op: "StepExecutions", ID: executionID, Err: err}
		}

		if len(input) > 0 {
			if err := json.Unmarshal(input, &record.InputData); err != nil {
				return nil, fmt.Errorf("failed to unmarshal input data: %w", err)
			}
		}

		if len(output) > 0 {
			if err := json.Unmarshal(output, &record.OutputData); err != nil {
				return nil, fmt.Errorf("failed to unmarshal output data: %w", err)
			}
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution models.Execution
		variables []byte
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.TenantID, &execution.SessionID,
		&execution.Status, &execution.CurrentStepID, &variables, &execution.StepsCompleted,
		&execution.ErrorMessage, &execution.StartedAt, &execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &execution.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}

	return &execution, nil
}
