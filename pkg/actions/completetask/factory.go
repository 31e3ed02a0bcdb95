package completetask

import (
	"context"

	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/protocol"
)

// Factory creates complete_task executors bound to the task repository.
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
	return "complete_task"
}

// Name returns the human-readable name of the action.
func (f *Factory) Name() string {
	return "Complete Task"
}

// Description returns a brief description of the action.
func (f *Factory) Description() string {
	return "Marks an existing task as done."
}

// Schema returns the JSON schema used to validate action payloads.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{
				"type":        "string",
				"description": "Identifier of the task to complete.",
				"minLength":   1,
			},
		},
		"required":             []string{"task_id"},
		"additionalProperties": false,
	}
}
