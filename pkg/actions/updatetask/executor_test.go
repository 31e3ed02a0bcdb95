package updatetask_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/actions/updatetask"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/persistence/file"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func seedTask(t *testing.T, persist persistence.Persistence) *models.Task {
	t.Helper()

	task := &models.Task{
		ID:        models.NewID("tsk"),
		Title:     "Draft quarterly report",
		Priority:  models.PriorityP2,
		Status:    models.TaskStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, persist.TaskRepository().Save(t.Context(), task))

	return task
}

func TestExecutor_Execute_PartialUpdate(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	task := seedTask(t, persist)

	executor, err := updatetask.NewFactory(persist).Create(t.Context(), nil)
	require.NoError(t, err)

	result, err := executor.Execute(t.Context(), map[string]any{
		"task_id":  task.ID,
		"priority": "P0",
		"due_date": "2025-05-02T09:00:00Z",
	}, testLogger())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"priority", "due_date"}, result["updated"])

	stored, err := persist.TaskRepository().GetByID(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityP0, stored.Priority)
	assert.Equal(t, "Draft quarterly report", stored.Title)
	require.NotNil(t, stored.DueDate)
	assert.Equal(t, time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC), stored.DueDate.UTC())
}

func TestExecutor_Execute_StatusChange(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	task := seedTask(t, persist)

	executor, err := updatetask.NewFactory(persist).Create(t.Context(), nil)
	require.NoError(t, err)

	result, err := executor.Execute(t.Context(), map[string]any{
		"task_id": task.ID,
		"status":  "done",
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "done", result["status"])

	stored, err := persist.TaskRepository().GetByID(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, stored.Status)
}

func TestExecutor_Execute_UnknownTask(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())

	executor, err := updatetask.NewFactory(persist).Create(t.Context(), nil)
	require.NoError(t, err)

	_, err = executor.Execute(t.Context(), map[string]any{
		"task_id": "tsk_00000000",
		"status":  "done",
	}, testLogger())
	require.Error(t, err)
	assert.True(t, persistence.IsTaskNotFound(err))
}

func TestExecutor_Execute_Invalid(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	task := seedTask(t, persist)

	executor, err := updatetask.NewFactory(persist).Create(t.Context(), nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload map[string]any
		wantErr error
	}{
		{
			name:    "missing task id",
			payload: map[string]any{"status": "done"},
			wantErr: updatetask.ErrTaskIDRequired,
		},
		{
			name:    "unknown status",
			payload: map[string]any{"task_id": task.ID, "status": "paused"},
			wantErr: updatetask.ErrStatusInvalid,
		},
		{
			name:    "unknown priority",
			payload: map[string]any{"task_id": task.ID, "priority": "urgent"},
			wantErr: updatetask.ErrPriorityInvalid,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := executor.Execute(t.Context(), testCase.payload, testLogger())
			assert.ErrorIs(t, err, testCase.wantErr)
		})
	}
}
