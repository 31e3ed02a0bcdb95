package updatetask

import (
	"context"

	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/protocol"
)

// Factory creates update_task executors bound to the task repository.
type Factory struct {
	persistence persistence.Persistence
}

// NewFactory creates a new Factory.
func NewFactory(persist persistence.Persistence) *Factory {
	return &Factory{persistence: persist}
}

// Create creates a new executor instance.
func (f *Factory) Create(_ context.Context, _ map[string]any) (protocol.ActionExecutor, error) {
	return &Executor{tasks: f.persistence.TaskRepository()}, nil
}

// ID returns the action type handled by this factory.
func (f *Factory) ID() string {
	return "update_task"
}

// Name returns the human-readable name of the action.
func (f *Factory) Name() string {
	return "Update Task"
}

// Description returns a brief description of the action.
func (f *Factory) Description() string {
	return "Updates fields of an existing task, including priority changes."
}

// Schema returns the JSON schema used to validate action payloads.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{
				"type":        "string",
				"description": "Identifier of the task to update.",
				"minLength":   1,
			},
			"title": map[string]any{
				"type": "string",
			},
			"description": map[string]any{
				"type": "string",
			},
			"priority": map[string]any{
				"type": "string",
				"enum": []string{"P0", "P1", "P2", "P3"},
			},
			"status": map[string]any{
				"type": "string",
				"enum": []string{"open", "done"},
			},
			"due_date": map[string]any{
				"type":   "string",
				"format": "date-time",
			},
		},
		"required":             []string{"task_id"},
		"additionalProperties": false,
	}
}
