// Package completetask provides the complete_task action executor.
package completetask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// ErrTaskIDRequired is returned when the payload carries no task_id.
var ErrTaskIDRequired = errors.New("missing or invalid 'task_id' in payload")

// Executor marks a task as done.
type Executor struct {
	tasks persistence.TaskRepository
}

// Execute moves the task to done. Completing an already done task is a no-op
// reported in the result.
func (e *Executor) Execute(ctx context.Context, payload map[string]any, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "complete_task_action")

	taskID, _ := payload["task_id"].(string)
	if taskID == "" {
		return nil, ErrTaskIDRequired
	}

	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	if task.Status == models.TaskStatusDone {
		return map[string]any{
			"task_id":          task.ID,
			"status":           string(task.Status),
			"already_complete": true,
		}, nil
	}

	task.Status = models.TaskStatusDone

	err = e.tasks.Save(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to save task %s: %w", taskID, err)
	}

	logger.InfoContext(ctx, "Task completed", "task_id", taskID, "title", task.Title)

	return map[string]any{
		"task_id": task.ID,
		"title":   task.Title,
		"status":  string(task.Status),
	}, nil
}
