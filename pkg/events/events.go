// Package events defines event types and structures for runtime lifecycle notifications.
package events

import (
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/google/uuid"
)

type EventType string

const Topic = "attenda.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Work item lifecycle events.
	ItemProcessingStartedEvent EventType = "item.processing_started"
	ItemDeadLetteredEvent      EventType = "item.dead_lettered"

	// Session lifecycle events.
	SessionStepCompletedEvent  EventType = "session.step_completed"
	SessionCompletedEvent      EventType = "session.completed"
	SessionErrorEvent          EventType = "session.error"
	SessionApprovalNeededEvent EventType = "session.approval_needed"

	// Cross-pipeline trigger events.
	TriggerInvokedEvent       EventType = "trigger.invoked"
	TriggerDepthExceededEvent EventType = "trigger.depth_exceeded"

	// Monitor lifecycle events.
	MonitorStartedEvent       EventType = "monitor.started"
	MonitorStoppedEvent       EventType = "monitor.stopped"
	MonitorCheckCompleteEvent EventType = "monitor.check_complete"

	// Scheduled check events.
	CheckTriggeredEvent EventType = "check.triggered"
	CheckFailedEvent    EventType = "check.failed"

	// Approval queue events.
	ApprovalDecidedEvent EventType = "approval.decided"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, sessionID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Metadata:  make(map[string]any),
	}
}

type ItemProcessingStarted struct {
	BaseEvent

	ItemID   string `json:"item_id"`
	ItemType string `json:"item_type"`
	Source   string `json:"source,omitempty"`
}

func (e ItemProcessingStarted) GetType() EventType {
	return ItemProcessingStartedEvent
}

type ItemDeadLettered struct {
	BaseEvent

	ItemID   string `json:"item_id"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason"`
}

func (e ItemDeadLettered) GetType() EventType {
	return ItemDeadLetteredEvent
}

type SessionStepCompleted struct {
	BaseEvent

	PipelineName string `json:"pipeline_name"`
	StepName     string `json:"step_name"`
	Iteration    int    `json:"iteration"`
	DurationMs   int64  `json:"duration_ms"`
}

func (e SessionStepCompleted) GetType() EventType {
	return SessionStepCompletedEvent
}

type SessionCompleted struct {
	BaseEvent

	PipelineName string         `json:"pipeline_name"`
	ItemID       string         `json:"item_id,omitempty"`
	ActionsTaken int            `json:"actions_taken"`
	Result       map[string]any `json:"result,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
}

func (e SessionCompleted) GetType() EventType {
	return SessionCompletedEvent
}

type SessionError struct {
	BaseEvent

	PipelineName string `json:"pipeline_name"`
	ItemID       string `json:"item_id,omitempty"`
	Error        string `json:"error"`
	FailedStep   string `json:"failed_step,omitempty"`
}

func (e SessionError) GetType() EventType {
	return SessionErrorEvent
}

type SessionApprovalNeeded struct {
	BaseEvent

	PipelineName string             `json:"pipeline_name"`
	ItemID       string             `json:"item_id,omitempty"`
	Approvals    []models.ActionRef `json:"approvals"`
}

func (e SessionApprovalNeeded) GetType() EventType {
	return SessionApprovalNeededEvent
}

type TriggerInvoked struct {
	BaseEvent

	SourcePipeline string `json:"source_pipeline"`
	TargetPipeline string `json:"target_pipeline"`
	Reason         string `json:"reason,omitempty"`
	Depth          int    `json:"depth"`
}

func (e TriggerInvoked) GetType() EventType {
	return TriggerInvokedEvent
}

type TriggerDepthExceeded struct {
	BaseEvent

	SourcePipeline string `json:"source_pipeline"`
	TargetPipeline string `json:"target_pipeline"`
	MaxDepth       int    `json:"max_depth"`
}

func (e TriggerDepthExceeded) GetType() EventType {
	return TriggerDepthExceededEvent
}

type MonitorStarted struct {
	BaseEvent

	PollInterval string `json:"poll_interval"`
}

func (e MonitorStarted) GetType() EventType {
	return MonitorStartedEvent
}

type MonitorStopped struct {
	BaseEvent

	ProcessedCount int `json:"processed_count"`
	ErrorCount     int `json:"error_count"`
}

func (e MonitorStopped) GetType() EventType {
	return MonitorStoppedEvent
}

type MonitorCheckComplete struct {
	BaseEvent

	ItemsFound     int   `json:"items_found"`
	ItemsProcessed int   `json:"items_processed"`
	DurationMs     int64 `json:"duration_ms"`
}

func (e MonitorCheckComplete) GetType() EventType {
	return MonitorCheckCompleteEvent
}

type CheckTriggered struct {
	BaseEvent

	CheckName string         `json:"check_name"`
	Summary   string         `json:"summary,omitempty"`
	Priority  string         `json:"priority,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func (e CheckTriggered) GetType() EventType {
	return CheckTriggeredEvent
}

type CheckFailed struct {
	BaseEvent

	CheckName string `json:"check_name"`
	Error     string `json:"error"`
}

func (e CheckFailed) GetType() EventType {
	return CheckFailedEvent
}

type ApprovalDecided struct {
	BaseEvent

	ActionID   string `json:"action_id"`
	ActionType string `json:"action_type"`
	Decision   string `json:"decision"`
	ReviewedBy string `json:"reviewed_by"`
	Status     string `json:"status"`
}

func (e ApprovalDecided) GetType() EventType {
	return ApprovalDecidedEvent
}
