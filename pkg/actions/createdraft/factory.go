package createdraft

import (
	"context"

	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/protocol"
)

// Factory creates create_draft executors bound to the draft repository.
type Factory struct {
	persistence persistence.Persistence
}

// NewFactory creates a new Factory.
func NewFactory(persist persistence.Persistence) *Factory {
	return &Factory{persistence: persist}
}

// Create creates a new executor instance.
func (f *Factory) Create(_ context.Context, _ map[string]any) (protocol.ActionExecutor, error) {
	return &Executor{drafts: f.persistence.DraftRepository()}, nil
}

// ID returns the action type handled by this factory.
func (f *Factory) ID() string {
	return "create_draft"
}

// Name returns the human-readable name of the action.
func (f *Factory) Name() string {
	return "Create Draft"
}

// Description returns a brief description of the action.
func (f *Factory) Description() string {
	return "Prepares an outgoing message draft for review."
}

// Schema returns the JSON schema used to validate action payloads.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient address.",
				"minLength":   1,
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Message subject.",
				"minLength":   1,
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Message body.",
			},
			"in_reply_to": map[string]any{
				"type":        "string",
				"description": "Identifier of the item this draft replies to.",
			},
		},
		"required":             []string{"to", "subject"},
		"additionalProperties": false,
	}
}
