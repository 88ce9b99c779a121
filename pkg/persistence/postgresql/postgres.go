// Package postgresql provides PostgreSQL persistence for workflow
// definitions and execution history.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db         *sql.DB
	logger     *slog.Logger
	workflows  *WorkflowRepository
	executions *ExecutionRepository
}

// NewPersistence connects, runs migrations, and returns a ready
// persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:         database,
		logger:     logger,
		workflows:  &WorkflowRepository{db: database},
		executions: &ExecutionRepository{db: database},
	}, nil
}

// DB exposes the underlying connection pool so the durable state tier can
// share it.
func (p *Persistence) DB() *sql.DB {
	return p.db
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				version INTEGER NOT NULL,
				name TEXT NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				trigger JSONB,
				steps JSONB NOT NULL,
				variables JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (id, version)
			);
			CREATE INDEX IF NOT EXISTS idx_workflow_definitions_tenant
				ON workflow_definitions (tenant_id, active);

			CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				session_id TEXT NOT NULL,
				status TEXT NOT NULL,
				current_step_id TEXT,
				variables JSONB,
				steps_completed INTEGER NOT NULL DEFAULT 0,
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);
			CREATE INDEX IF NOT EXISTS idx_executions_tenant
				ON executions (tenant_id, started_at DESC);
			CREATE INDEX IF NOT EXISTS idx_executions_session
				ON executions (session_id);

			CREATE TABLE IF NOT EXISTS step_executions (
				id TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL,
				step_id TEXT NOT NULL,
				step_type TEXT NOT NULL,
				phase TEXT NOT NULL,
				input_data JSONB,
				output_data JSONB,
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);
			CREATE INDEX IF NOT EXISTS idx_step_executions_execution
				ON step_executions (execution_id, started_at);

			CREATE TABLE IF NOT EXISTS session_states (
				session_id TEXT PRIMARY KEY,
				state JSONB NOT NULL,
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_session_states_expires
				ON session_states (expires_at);
		`,
	}
}
