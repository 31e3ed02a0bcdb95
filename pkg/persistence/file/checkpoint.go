package file

import (
	"context"
	"os"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// CheckpointRepository persists execution state snapshots as JSON files.
type CheckpointRepository struct {
	store *collection[models.ExecutionState]
}

// NewCheckpointRepository creates a new checkpoint repository under root.
func NewCheckpointRepository(root string) *CheckpointRepository {
	return &CheckpointRepository{store: newCollection[models.ExecutionState](root, "sessions")}
}

// Save persists the session state, replacing any earlier snapshot.
func (r *CheckpointRepository) Save(_ context.Context, state *models.ExecutionState) error {
	err := r.store.write(state.SessionID, state)
	if err != nil {
		return persistence.NewStoreError("Save", state.SessionID, err)
	}

	return nil
}

// GetByID retrieves a session snapshot by its session ID.
func (r *CheckpointRepository) GetByID(_ context.Context, sessionID string) (*models.ExecutionState, error) {
	state, err := r.store.read(sessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("GetByID", sessionID, persistence.ErrSessionNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", sessionID, err)
	}

	return state, nil
}

// List returns all known session snapshots.
func (r *CheckpointRepository) List(_ context.Context) ([]*models.ExecutionState, error) {
	states, err := r.store.readAll()
	if err != nil {
		return nil, persistence.NewStoreError("List", "sessions", err)
	}

	return states, nil
}

// ListByStatus returns the sessions currently in the given status.
func (r *CheckpointRepository) ListByStatus(ctx context.Context, status models.SessionStatus) ([]*models.ExecutionState, error) {
	states, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.ExecutionState, 0, len(states))

	for _, state := range states {
		if state.Status == status {
			filtered = append(filtered, state)
		}
	}

	return filtered, nil
}

// Delete removes a session snapshot.
func (r *CheckpointRepository) Delete(_ context.Context, sessionID string) error {
	err := r.store.remove(sessionID)
	if err != nil {
		return persistence.NewStoreError("Delete", sessionID, err)
	}

	return nil
}
