package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresStore is the durable tier backed by the session_states table.
// It shares the connection pool of the main persistence layer, which also
// owns the table's migration.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Upsert(ctx context.Context, state *SessionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO session_states (session_id, state, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			state = EXCLUDED.state,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		state.SessionID, payload, state.ExpiresAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session state: %w", err)
	}

	return nil
}

func (p *PostgresStore) Fetch(ctx context.Context, sessionID string) (*SessionState, error) {
	var payload []byte

	err := p.db.QueryRowContext(ctx,
		"SELECT state FROM session_states WHERE session_id = $1", sessionID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}

	return &state, nil
}

func (p *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := p.db.ExecContext(ctx,
		"DELETE FROM session_states WHERE session_id = $1", sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session state: %w", err)
	}

	return nil
}

func (p *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := p.db.ExecContext(ctx,
		"DELETE FROM session_states WHERE expires_at < $1", now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired session states: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(removed), nil
}
