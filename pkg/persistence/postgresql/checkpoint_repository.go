package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// CheckpointRepository handles session checkpoint database operations.
type CheckpointRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCheckpointRepository creates a new checkpoint repository.
func NewCheckpointRepository(db *sql.DB, logger *slog.Logger) *CheckpointRepository {
	return &CheckpointRepository{db: db, logger: logger}
}

// Save persists the session state, replacing any earlier snapshot.
func (r *CheckpointRepository) Save(ctx context.Context, state *models.ExecutionState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return persistence.NewStoreError("Save", state.SessionID, fmt.Errorf("failed to marshal state: %w", err))
	}

	query := `
		INSERT INTO sessions (session_id, pipeline_name, status, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			status = EXCLUDED.status,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		state.SessionID,
		state.PipelineName,
		string(state.Status),
		stateJSON,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", state.SessionID, err)
	}

	return nil
}

// GetByID retrieves a session snapshot by its session ID.
func (r *CheckpointRepository) GetByID(ctx context.Context, sessionID string) (*models.ExecutionState, error) {
	query := `SELECT state FROM sessions WHERE session_id = $1`

	state, err := getRecord[models.ExecutionState](ctx, r.db, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", sessionID, persistence.ErrSessionNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", sessionID, err)
	}

	return state, nil
}

// List returns all known session snapshots.
func (r *CheckpointRepository) List(ctx context.Context) ([]*models.ExecutionState, error) {
	query := `SELECT state FROM sessions ORDER BY created_at`

	states, err := queryRecords[models.ExecutionState](ctx, r.db, r.logger, query)
	if err != nil {
		return nil, persistence.NewStoreError("List", "sessions", err)
	}

	return states, nil
}

// ListByStatus returns the sessions currently in the given status.
func (r *CheckpointRepository) ListByStatus(ctx context.Context, status models.SessionStatus) ([]*models.ExecutionState, error) {
	query := `SELECT state FROM sessions WHERE status = $1 ORDER BY created_at`

	states, err := queryRecords[models.ExecutionState](ctx, r.db, r.logger, query, string(status))
	if err != nil {
		return nil, persistence.NewStoreError("ListByStatus", string(status), err)
	}

	return states, nil
}

// Delete removes a session snapshot.
func (r *CheckpointRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return persistence.NewStoreError("Delete", sessionID, err)
	}

	return nil
}
