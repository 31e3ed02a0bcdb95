package file

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// WorkItemRepository persists work items as JSON files.
type WorkItemRepository struct {
	store *collection[models.WorkItem]
}

// NewWorkItemRepository creates a new work item repository under root.
func NewWorkItemRepository(root string) *WorkItemRepository {
	return &WorkItemRepository{store: newCollection[models.WorkItem](root, "items")}
}

// Save persists the item, replacing any earlier record with the same ID.
func (r *WorkItemRepository) Save(_ context.Context, item *models.WorkItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	err := r.store.write(item.ID, item)
	if err != nil {
		return persistence.NewStoreError("Save", item.ID, err)
	}

	return nil
}

// GetByID retrieves a work item by its ID.
func (r *WorkItemRepository) GetByID(_ context.Context, itemID string) (*models.WorkItem, error) {
	item, err := r.store.read(itemID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("GetByID", itemID, persistence.ErrItemNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", itemID, err)
	}

	return item, nil
}

// List returns all work items ordered by creation time.
func (r *WorkItemRepository) List(_ context.Context) ([]*models.WorkItem, error) {
	items, err := r.store.readAll()
	if err != nil {
		return nil, persistence.NewStoreError("List", "items", err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items, nil
}

// ListEligible returns unprocessed items whose backoff window has passed.
func (r *WorkItemRepository) ListEligible(ctx context.Context, now time.Time) ([]*models.WorkItem, error) {
	items, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]*models.WorkItem, 0, len(items))

	for _, item := range items {
		if item.Eligible(now) {
			eligible = append(eligible, item)
		}
	}

	return eligible, nil
}

// Delete removes a work item.
func (r *WorkItemRepository) Delete(_ context.Context, itemID string) error {
	err := r.store.remove(itemID)
	if err != nil {
		return persistence.NewStoreError("Delete", itemID, err)
	}

	return nil
}
