package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

// WorkflowRepository stores definitions with append-only versioning: Save
// inserts the next version, reads return the latest.
type WorkflowRepository struct {
	db *sql.DB
}

func (r *WorkflowRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	trigger, err := json.Marshal(definition.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger: %w", err)
	}

	steps, err := json.Marshal(definition.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	variables, err := json.Marshal(definition.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	var version int

	err = transaction.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) + 1 FROM workflow_definitions WHERE id = $1",
		definition.ID,
	).Scan(&version)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to determine next version: %w", err)
	}

	definition.Version = version
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = time.Now().UTC()
	}

	_, err = transaction.ExecContext(ctx, `
		INSERT INTO workflow_definitions
			(id, tenant_id, version, name, active, trigger, steps, variables, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		definition.ID, definition.TenantID, definition.Version, definition.Name,
		definition.Active, trigger, steps, variables, definition.CreatedAt,
	)
	if err != nil {
		_ = transaction.Rollback()

		return &persistence.StoreError{Op: "Save", ID: definition.ID, Err: err}
	}

	return transaction.Commit()
}

func (r *WorkflowRepository) ByID(ctx context.Context, tenantID, id string) (*models.WorkflowDefinition, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, version, name, active, trigger, steps, variables, created_at
		FROM workflow_definitions
		WHERE id = $1 AND tenant_id = $2
		ORDER BY version DESC
		LIMIT 1`,
		id, tenantID,
	)

	definition, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &persistence.StoreError{Op: "ByID", ID: id, Err: persistence.ErrWorkflowNotFound}
	}

	if err != nil {
		return nil, &persistence.StoreError{Op: "ByID", ID: id, Err: err}
	}

	return definition, nil
}

func (r *WorkflowRepository) Active(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (id)
			id, tenant_id, version, name, active, trigger, steps, variables, created_at
		FROM workflow_definitions
		WHERE tenant_id = $1
		ORDER BY id, version DESC`,
		tenantID,
	)
	if err != nil {
		return nil, &persistence.StoreError{Op: "Active", Err: err}
	}
	defer rows.Close()

	var active []*models.WorkflowDefinition

	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			return nil, &persistence.StoreError{Op: "Active", Err: err}
		}

		if definition.Active {
			active = append(active, definition)
		}
	}

	return active, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*models.WorkflowDefinition, error) {
	var (
		definition models.WorkflowDefinition
		trigger    []byte
		steps      []byte
		variables  []byte
	)

	err := row.Scan(
		&definition.ID, &definition.TenantID, &definition.Version, &definition.Name,
		&definition.Active, &trigger, &steps, &variables, &definition.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(trigger) > 0 {
		if err := json.Unmarshal(trigger, &definition.Trigger); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger: %w", err)
		}
	}

	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &definition.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
	}

	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &definition.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}

	return &definition, nil
}
