package createtask

import (
	"context"

	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/protocol"
)

// Factory creates create_task executors bound to the task repository.
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
	return "create_task"
}

// Name returns the human-readable name of the action.
func (f *Factory) Name() string {
	return "Create Task"
}

// Description returns a brief description of the action.
func (f *Factory) Description() string {
	return "Creates a tracked task with a priority and optional due date."
}

// Schema returns the JSON schema used to validate action payloads.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Short task title.",
				"minLength":   1,
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Longer free-form details.",
			},
			"priority": map[string]any{
				"type":        "string",
				"description": "Task priority, P0 is most urgent.",
				"enum":        []string{"P0", "P1", "P2", "P3"},
				"default":     "P2",
			},
			"due_date": map[string]any{
				"type":        "string",
				"format":      "date-time",
				"description": "Optional RFC 3339 due date.",
			},
			"source_ref": map[string]any{
				"type":        "string",
				"description": "Reference to the item that produced this task.",
			},
		},
		"required":             []string{"title"},
		"additionalProperties": false,
	}
}
