// Package createtask provides the create_task action executor.
package createtask

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
	// ErrTitleRequired is returned when the payload carries no title.
	ErrTitleRequired = errors.New("missing or invalid 'title' in payload")
	// ErrPriorityInvalid is returned when the priority is not P0..P3.
	ErrPriorityInvalid = errors.New("invalid 'priority' in payload")
	// ErrDueDateInvalid is returned when the due date does not parse as RFC 3339.
	ErrDueDateInvalid = errors.New("invalid 'due_date' in payload")
)

// Executor creates a task record from the action payload.
type Executor struct {
	tasks persistence.TaskRepository
}

// Execute validates the payload and persists a new open task. The new task id
// is part of the returned result.
func (e *Executor) Execute(ctx context.Context, payload map[string]any, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "create_task_action")

	title, _ := payload["title"].(string)
	if title == "" {
		return nil, ErrTitleRequired
	}

	priority := models.PriorityP2
	if raw, ok := payload["priority"].(string); ok && raw != "" {
		if !models.ValidPriority(raw) {
			return nil, fmt.Errorf("%w: %q", ErrPriorityInvalid, raw)
		}

		priority = models.Priority(raw)
	}

	description, _ := payload["description"].(string)
	sourceRef, _ := payload["source_ref"].(string)

	var dueDate *time.Time

	if raw, ok := payload["due_date"].(string); ok && raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrDueDateInvalid, raw)
		}

		dueDate = &parsed
	}

	task := &models.Task{
		ID:          models.NewID("tsk"),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      models.TaskStatusOpen,
		DueDate:     dueDate,
		SourceRef:   sourceRef,
	}

	err := e.tasks.Save(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	logger.InfoContext(ctx, "Task created", "task_id", task.ID, "priority", string(task.Priority))

	return map[string]any{
		"task_id":  task.ID,
		"title":    task.Title,
		"priority": string(task.Priority),
		"status":   string(task.Status),
	}, nil
}
