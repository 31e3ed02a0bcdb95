// Package updatetask provides the update_task action executor.
package updatetask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

var (
	// ErrTaskIDRequired is returned when the payload carries no task_id.
	ErrTaskIDRequired = errors.New("missing or invalid 'task_id' in payload")
	// ErrPriorityInvalid is returned when the priority is not P0..P3.
	ErrPriorityInvalid = errors.New("invalid 'priority' in payload")
	// ErrStatusInvalid is returned when the status is not open or done.
	ErrStatusInvalid = errors.New("invalid 'status' in payload")
	// ErrDueDateInvalid is returned when the due date does not parse as RFC 3339.
	ErrDueDateInvalid = errors.New("invalid 'due_date' in payload")
)

// Executor applies field updates to an existing task.
type Executor struct {
	tasks persistence.TaskRepository
}

// Execute loads the task, applies the fields present in the payload and saves
// it back. The result names the fields that changed.
func (e *Executor) Execute(ctx context.Context, payload map[string]any, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "update_task_action")

	taskID, _ := payload["task_id"].(string)
	if taskID == "" {
		return nil, ErrTaskIDRequired
	}

	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	var updated []string

	if title, ok := payload["title"].(string); ok && title != "" {
		task.Title = title
		updated = append(updated, "title")
	}

	if description, ok := payload["description"].(string); ok {
		task.Description = description
		updated = append(updated, "description")
	}

	if raw, ok := payload["priority"].(string); ok && raw != "" {
		if !models.ValidPriority(raw) {
			return nil, fmt.Errorf("%w: %q", ErrPriorityInvalid, raw)
		}

		task.Priority = models.Priority(raw)
		updated = append(updated, "priority")
	}

	if raw, ok := payload["status"].(string); ok && raw != "" {
		status := models.TaskStatus(raw)
		if status != models.TaskStatusOpen && status != models.TaskStatusDone {
			return nil, fmt.Errorf("%w: %q", ErrStatusInvalid, raw)
		}

		task.Status = status
		updated = append(updated, "status")
	}

	if raw, ok := payload["due_date"].(string); ok && raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrDueDateInvalid, raw)
		}

		task.DueDate = &parsed
		updated = append(updated, "due_date")
	}

	err = e.tasks.Save(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to save task %s: %w", taskID, err)
	}

	logger.InfoContext(ctx, "Task updated", "task_id", taskID, "fields", updated)

	return map[string]any{
		"task_id":  task.ID,
		"updated":  updated,
		"priority": string(task.Priority),
		"status":   string(task.Status),
	}, nil
}
