package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionStatus represents the lifecycle state of a pending action.
type ActionStatus string

const (
	ActionStatusPending         ActionStatus = "pending"          // Awaiting a reviewer decision
	ActionStatusApproved        ActionStatus = "approved"         // Approved, execution in progress
	ActionStatusRejected        ActionStatus = "rejected"         // Declined, never executed
	ActionStatusExecuted        ActionStatus = "executed"         // Approved and executed successfully
	ActionStatusExecutionFailed ActionStatus = "execution_failed" // Approved but the executor failed
)

// PendingAction is a side-effecting action deferred for human approval. Once
// the status leaves pending the record is immutable; repeat decisions are
// no-ops.
type PendingAction struct {
	ActionID        string         `json:"action_id"   validate:"required"`
	ActionType      string         `json:"action_type" validate:"required"`
	Payload         map[string]any `json:"payload"`
	OriginalPayload map[string]any `json:"original_payload,omitempty"`
	Reason          string         `json:"reason"`
	SourceRef       string         `json:"source_ref,omitempty"`
	Status          ActionStatus   `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	ReviewedBy      string         `json:"reviewed_by,omitempty"`
	ReviewNote      string         `json:"review_note,omitempty"`
	WasEdited       bool           `json:"was_edited"`
	ExecutionResult map[string]any `json:"execution_result,omitempty"`
}

// NewPendingAction creates a pending record with a generated pa_ id.
func NewPendingAction(actionType string, payload map[string]any, reason, sourceRef string) *PendingAction {
	return &PendingAction{
		ActionID:   "pa_" + shortID(),
		ActionType: actionType,
		Payload:    payload,
		Reason:     reason,
		SourceRef:  sourceRef,
		Status:     ActionStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

// Terminal reports whether the record can no longer change.
func (p *PendingAction) Terminal() bool {
	return p.Status != ActionStatusPending
}

// Ref returns the reference embedded into session state.
func (p *PendingAction) Ref() ActionRef {
	return ActionRef{ActionID: p.ActionID, ActionType: p.ActionType}
}

func shortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// NewID generates a prefixed record id, e.g. NewID("tsk") -> "tsk_1a2b3c4d".
func NewID(prefix string) string {
	return prefix + "_" + shortID()
}
