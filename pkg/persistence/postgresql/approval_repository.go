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

// ApprovalRepository handles pending action database operations.
type ApprovalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewApprovalRepository creates a new approval repository.
func NewApprovalRepository(db *sql.DB, logger *slog.Logger) *ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

// Save persists the action, replacing any earlier record with the same ID.
func (r *ApprovalRepository) Save(ctx context.Context, action *models.PendingAction) error {
	actionJSON, err := json.Marshal(action)
	if err != nil {
		return persistence.NewStoreError("Save", action.ActionID, fmt.Errorf("failed to marshal action: %w", err))
	}

	query := `
		INSERT INTO approvals (action_id, action_type, status, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (action_id) DO UPDATE SET
			status = EXCLUDED.status,
			data = EXCLUDED.data
	`

	_, err = r.db.ExecContext(ctx, query,
		action.ActionID,
		action.ActionType,
		string(action.Status),
		actionJSON,
		action.CreatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", action.ActionID, err)
	}

	return nil
}

// GetByID retrieves an action by its ID.
func (r *ApprovalRepository) GetByID(ctx context.Context, actionID string) (*models.PendingAction, error) {
	query := `SELECT data FROM approvals WHERE action_id = $1`

	action, err := getRecord[models.PendingAction](ctx, r.db, query, actionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", actionID, persistence.ErrActionNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", actionID, err)
	}

	return action, nil
}

// List returns all actions ordered by creation time.
func (r *ApprovalRepository) List(ctx context.Context) ([]*models.PendingAction, error) {
	query := `SELECT data FROM approvals ORDER BY created_at`

	actions, err := queryRecords[models.PendingAction](ctx, r.db, r.logger, query)
	if err != nil {
		return nil, persistence.NewStoreError("List", "approvals", err)
	}

	return actions, nil
}

// ListByStatus returns the actions currently in the given status.
func (r *ApprovalRepository) ListByStatus(ctx context.Context, status models.ActionStatus) ([]*models.PendingAction, error) {
	query := `SELECT data FROM approvals WHERE status = $1 ORDER BY created_at`

	actions, err := queryRecords[models.PendingAction](ctx, r.db, r.logger, query, string(status))
	if err != nil {
		return nil, persistence.NewStoreError("ListByStatus", string(status), err)
	}

	return actions, nil
}

// Delete removes an action record.
func (r *ApprovalRepository) Delete(ctx context.Context, actionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM approvals WHERE action_id = $1`, actionID)
	if err != nil {
		return persistence.NewStoreError("Delete", actionID, err)
	}

	return nil
}
