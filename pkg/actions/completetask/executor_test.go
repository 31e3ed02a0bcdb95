package completetask_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/actions/completetask"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence/file"
)

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	task := &models.Task{
		ID:        models.NewID("tsk"),
		Title:     "Close out sprint notes",
		Priority:  models.PriorityP2,
		Status:    models.TaskStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, persist.TaskRepository().Save(t.Context(), task))

	executor, err := completetask.NewFactory(persist).Create(t.Context(), nil)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	result, err := executor.Execute(t.Context(), map[string]any{"task_id": task.ID}, logger)
	require.NoError(t, err)
	assert.Equal(t, "done", result["status"])

	stored, err := persist.TaskRepository().GetByID(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, stored.Status)

	// Completing a done task reports it without touching the record.
	result, err = executor.Execute(t.Context(), map[string]any{"task_id": task.ID}, logger)
	require.NoError(t, err)
	assert.Equal(t, true, result["already_complete"])

	_, err = executor.Execute(t.Context(), map[string]any{}, logger)
	assert.ErrorIs(t, err, completetask.ErrTaskIDRequired)
}
