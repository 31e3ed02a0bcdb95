package sendemail

import (
	"context"

	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/protocol"
)

// Factory creates send_email executors bound to the draft repository.
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
	return "send_email"
}

// Name returns the human-readable name of the action.
func (f *Factory) Name() string {
	return "Send Email"
}

// Description returns a brief description of the action.
func (f *Factory) Description() string {
	return "Sends a reviewed draft, or an inline message, recording it in the outbox."
}

// Schema returns the JSON schema used to validate action payloads.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"draft_id": map[string]any{
				"type":        "string",
				"description": "Identifier of a prepared draft to send.",
			},
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient address for inline sends.",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Subject for inline sends.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Body for inline sends.",
			},
			"in_reply_to": map[string]any{
				"type":        "string",
				"description": "Identifier of the item this message replies to.",
			},
		},
		"additionalProperties": false,
	}
}
