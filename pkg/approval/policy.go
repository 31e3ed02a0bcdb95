package approval

import "github.com/cfreitas/attenda/pkg/models"

// Side-effecting actions always wait for a reviewer.
var alwaysRequire = map[string]bool{
	"send_email":       true,
	"schedule_meeting": true,
	"delete_task":      true,
}

// Conditional actions wait for a reviewer only when the payload matches.
var conditionalRequire = map[string]func(payload map[string]any) bool{
	"create_task": func(payload map[string]any) bool {
		priority, _ := payload["priority"].(string)

		return models.Priority(priority).Urgent()
	},
	"update_task": func(payload map[string]any) bool {
		raw, ok := payload["priority"]
		if !ok {
			return false
		}

		priority, _ := raw.(string)

		return models.Priority(priority).Urgent()
	},
	"create_followup": func(map[string]any) bool {
		return true
	},
}

// Read-only and low-risk bookkeeping operations never wait. Drafting is in
// here because only the send has an external effect, and that one is gated.
var neverRequire = map[string]bool{
	"read_email":             true,
	"search_emails":          true,
	"search_tasks":           true,
	"search_meetings":        true,
	"get_meeting_transcript": true,
	"get_meeting_minutes":    true,
	"find_related_context":   true,
	"think":                  true,
	"mark_email_processed":   true,
	"create_draft":           true,
	"complete_task":          true,
}

// RequiresApproval reports whether the action must be queued for a reviewer
// before it may execute. Unknown action types require approval.
func RequiresApproval(actionType string, payload map[string]any) bool {
	if neverRequire[actionType] {
		return false
	}

	if alwaysRequire[actionType] {
		return true
	}

	if check, ok := conditionalRequire[actionType]; ok {
		return check(payload)
	}

	return true
}
