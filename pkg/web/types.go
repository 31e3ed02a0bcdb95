package web

import (
	"github.com/cfreitas/attenda/pkg/models"
)

// ApproveActionRequest approves a pending action as-is.
type ApproveActionRequest struct {
	Reviewer string `json:"reviewer" validate:"required"`
}

// RejectActionRequest declines a pending action. The reason is kept on the
// record for the audit trail.
type RejectActionRequest struct {
	Reviewer string `json:"reviewer" validate:"required"`
	Reason   string `json:"reason"`
}

// EditActionRequest replaces the action payload before approving it. The
// replacement payload is validated against the action type's schema.
type EditActionRequest struct {
	Reviewer string         `json:"reviewer" validate:"required"`
	Payload  map[string]any `json:"payload"  validate:"required"`
}

// SubmitItemRequest submits a work item for immediate processing. The ID is
// generated when the caller omits one.
type SubmitItemRequest struct {
	ID      string         `json:"id"`
	Type    string         `json:"type" validate:"required"`
	Payload map[string]any `json:"payload"`
	Source  string         `json:"source"`
}

// ItemRunResult is the outcome of a manual submission: the stored item with
// its processing bookkeeping, plus the session that ran when one did. Error
// carries the failure reason when the run did not complete.
type ItemRunResult struct {
	Item    *models.WorkItem       `json:"item"`
	Session *models.ExecutionState `json:"session,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
