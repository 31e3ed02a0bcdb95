package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// WorkItemRepository handles work item database operations.
type WorkItemRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkItemRepository creates a new work item repository.
func NewWorkItemRepository(db *sql.DB, logger *slog.Logger) *WorkItemRepository {
	return &WorkItemRepository{db: db, logger: logger}
}

// Save persists the item, replacing any earlier record with the same ID.
func (r *WorkItemRepository) Save(ctx context.Context, item *models.WorkItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	itemJSON, err := json.Marshal(item)
	if err != nil {
		return persistence.NewStoreError("Save", item.ID, fmt.Errorf("failed to marshal item: %w", err))
	}

	query := `
		INSERT INTO work_items (id, item_type, processed, dead, next_attempt_at, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			processed = EXCLUDED.processed,
			dead = EXCLUDED.dead,
			next_attempt_at = EXCLUDED.next_attempt_at,
			data = EXCLUDED.data
	`

	_, err = r.db.ExecContext(ctx, query,
		item.ID,
		item.Type,
		item.Processed,
		item.Dead,
		item.NextAttemptAt,
		itemJSON,
		item.CreatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", item.ID, err)
	}

	return nil
}

// GetByID retrieves a work item by its ID.
func (r *WorkItemRepository) GetByID(ctx context.Context, itemID string) (*models.WorkItem, error) {
	query := `SELECT data FROM work_items WHERE id = $1`

	item, err := getRecord[models.WorkItem](ctx, r.db, query, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", itemID, persistence.ErrItemNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", itemID, err)
	}

	return item, nil
}

// List returns all work items ordered by creation time.
func (r *WorkItemRepository) List(ctx context.Context) ([]*models.WorkItem, error) {
	query := `SELECT data FROM work_items ORDER BY created_at`

	items, err := queryRecords[models.WorkItem](ctx, r.db, r.logger, query)
	if err != nil {
		return nil, persistence.NewStoreError("List", "items", err)
	}

	return items, nil
}

// ListEligible returns unprocessed items whose backoff window has passed.
func (r *WorkItemRepository) ListEligible(ctx context.Context, now time.Time) ([]*models.WorkItem, error) {
	query := `
		SELECT data
		FROM work_items
		WHERE processed = FALSE
		  AND dead = FALSE
		  AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY created_at
	`

	items, err := queryRecords[models.WorkItem](ctx, r.db, r.logger, query, now)
	if err != nil {
		return nil, persistence.NewStoreError("ListEligible", "items", err)
	}

	return items, nil
}

// Delete removes a work item.
func (r *WorkItemRepository) Delete(ctx context.Context, itemID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM work_items WHERE id = $1`, itemID)
	if err != nil {
		return persistence.NewStoreError("Delete", itemID, err)
	}

	return nil
}
