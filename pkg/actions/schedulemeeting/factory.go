package schedulemeeting

import (
	"context"

	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/protocol"
)

// Factory creates schedule_meeting executors bound to the meeting repository.
type Factory struct {
	persistence persistence.Persistence
}

// NewFactory creates a new Factory.
func NewFactory(persist persistence.Persistence) *Factory {
	return &Factory{persistence: persist}
}

// Create creates a new executor instance.
func (f *Factory) Create(_ context.Context, _ map[string]any) (protocol.ActionExecutor, error) {
	return &Executor{meetings: f.persistence.MeetingRepository()}, nil
}

// ID returns the action type handled by this factory.
func (f *Factory) ID() string {
	return "schedule_meeting"
}

// Name returns the human-readable name of the action.
func (f *Factory) Name() string {
	return "Schedule Meeting"
}

// Description returns a brief description of the action.
func (f *Factory) Description() string {
	return "Schedules a meeting with a title, time slot and attendees."
}

// Schema returns the JSON schema used to validate action payloads.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Meeting title.",
				"minLength":   1,
			},
			"scheduled_for": map[string]any{
				"type":        "string",
				"format":      "date-time",
				"description": "RFC 3339 start time; defaults to the next full hour.",
			},
			"duration_minutes": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"default":     30,
				"description": "Meeting length in minutes.",
			},
			"attendees": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Attendee addresses or names.",
			},
		},
		"required":             []string{"title"},
		"additionalProperties": false,
	}
}
