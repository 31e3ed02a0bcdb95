package createtask_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/actions/createtask"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/persistence/file"
	"github.com/cfreitas/attenda/pkg/protocol"
)

func newExecutor(t *testing.T) (protocol.ActionExecutor, persistence.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	factory := createtask.NewFactory(persist)

	executor, err := factory.Create(t.Context(), nil)
	require.NoError(t, err)

	return executor, persist
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	executor, persist := newExecutor(t)

	result, err := executor.Execute(t.Context(), map[string]any{
		"title":      "Review budget proposal",
		"priority":   "P1",
		"due_date":   "2025-04-01T12:00:00Z",
		"source_ref": "item-42",
	}, testLogger())
	require.NoError(t, err)

	taskID, ok := result["task_id"].(string)
	require.True(t, ok)
	assert.Contains(t, taskID, "tsk_")
	assert.Equal(t, "P1", result["priority"])

	stored, err := persist.TaskRepository().GetByID(t.Context(), taskID)
	require.NoError(t, err)
	assert.Equal(t, "Review budget proposal", stored.Title)
	assert.Equal(t, models.PriorityP1, stored.Priority)
	assert.Equal(t, models.TaskStatusOpen, stored.Status)
	require.NotNil(t, stored.DueDate)
	assert.Equal(t, time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC), stored.DueDate.UTC())
	assert.Equal(t, "item-42", stored.SourceRef)
}

func TestExecutor_Execute_Defaults(t *testing.T) {
	t.Parallel()

	executor, persist := newExecutor(t)

	result, err := executor.Execute(t.Context(), map[string]any{"title": "Small chore"}, testLogger())
	require.NoError(t, err)

	stored, err := persist.TaskRepository().GetByID(t.Context(), result["task_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, models.PriorityP2, stored.Priority)
	assert.Nil(t, stored.DueDate)
}

func TestExecutor_Execute_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]any
		wantErr error
	}{
		{
			name:    "missing title",
			payload: map[string]any{"priority": "P0"},
			wantErr: createtask.ErrTitleRequired,
		},
		{
			name:    "unknown priority",
			payload: map[string]any{"title": "x", "priority": "P9"},
			wantErr: createtask.ErrPriorityInvalid,
		},
		{
			name:    "bad due date",
			payload: map[string]any{"title": "x", "due_date": "tomorrow"},
			wantErr: createtask.ErrDueDateInvalid,
		},
	}

	executor, _ := newExecutor(t)

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := executor.Execute(t.Context(), testCase.payload, testLogger())
			assert.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestFactory_Metadata(t *testing.T) {
	t.Parallel()

	factory := createtask.NewFactory(file.NewPersistence(t.TempDir()))

	assert.Equal(t, "create_task", factory.ID())
	assert.NotEmpty(t, factory.Name())
	assert.NotEmpty(t, factory.Description())

	schema := factory.Schema()
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["required"], "title")
}
