package file

import (
	"context"
	"os"
	"sort"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// ApprovalRepository persists pending actions as JSON files.
type ApprovalRepository struct {
	store *collection[models.PendingAction]
}

// NewApprovalRepository creates a new approval repository under root.
func NewApprovalRepository(root string) *ApprovalRepository {
	return &ApprovalRepository{store: newCollection[models.PendingAction](root, "approvals")}
}

// Save persists the action, replacing any earlier record with the same ID.
func (r *ApprovalRepository) Save(_ context.Context, action *models.PendingAction) error {
	err := r.store.write(action.ActionID, action)
	if err != nil {
		return persistence.NewStoreError("Save", action.ActionID, err)
	}

	return nil
}

// GetByID retrieves an action by its ID.
func (r *ApprovalRepository) GetByID(_ context.Context, actionID string) (*models.PendingAction, error) {
	action, err := r.store.read(actionID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("GetByID", actionID, persistence.ErrActionNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", actionID, err)
	}

	return action, nil
}

// List returns all actions ordered by creation time.
func (r *ApprovalRepository) List(_ context.Context) ([]*models.PendingAction, error) {
	actions, err := r.store.readAll()
	if err != nil {
		return nil, persistence.NewStoreError("List", "approvals", err)
	}

	sort.Slice(actions, func(i, j int) bool {
		return actions[i].CreatedAt.Before(actions[j].CreatedAt)
	})

	return actions, nil
}

// ListByStatus returns the actions currently in the given status.
func (r *ApprovalRepository) ListByStatus(ctx context.Context, status models.ActionStatus) ([]*models.PendingAction, error) {
	actions, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.PendingAction, 0, len(actions))

	for _, action := range actions {
		if action.Status == status {
			filtered = append(filtered, action)
		}
	}

	return filtered, nil
}

// Delete removes an action record.
func (r *ApprovalRepository) Delete(_ context.Context, actionID string) error {
	err := r.store.remove(actionID)
	if err != nil {
		return persistence.NewStoreError("Delete", actionID, err)
	}

	return nil
}
