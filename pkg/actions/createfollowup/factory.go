package createfollowup

import (
	"context"

	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/protocol"
)

// Factory creates create_followup executors bound to the followup repository.
type Factory struct {
	persistence persistence.Persistence
}

// NewFactory creates a new Factory.
func NewFactory(persist persistence.Persistence) *Factory {
	return &Factory{persistence: persist}
}

// Create creates a new executor instance.
func (f *Factory) Create(_ context.Context, _ map[string]any) (protocol.ActionExecutor, error) {
	return &Executor{followups: f.persistence.FollowupRepository()}, nil
}

// ID returns the action type handled by this factory.
func (f *Factory) ID() string {
	return "create_followup"
}

// Name returns the human-readable name of the action.
func (f *Factory) Name() string {
	return "Create Followup"
}

// Description returns a brief description of the action.
func (f *Factory) Description() string {
	return "Creates a reminder to revisit an item after a number of days."
}

// Schema returns the JSON schema used to validate action payloads.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "What to follow up on.",
				"minLength":   1,
			},
			"due_in_days": map[string]any{
				"type":        "integer",
				"description": "Days until the followup is due, 0 means today.",
				"minimum":     0,
				"default":     0,
			},
			"severity": map[string]any{
				"type":    "string",
				"enum":    []string{"critical", "high", "medium", "low"},
				"default": "medium",
			},
			"source_ref": map[string]any{
				"type":        "string",
				"description": "Reference to the item that produced this followup.",
			},
		},
		"required":             []string{"title"},
		"additionalProperties": false,
	}
}
