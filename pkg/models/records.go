package models

import "time"

// Priority follows the P0 (most urgent) to P3 (informational) ladder.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// ValidPriority reports whether the string is a known priority value.
func ValidPriority(p string) bool {
	switch Priority(p) {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	default:
		return false
	}
}

// Urgent reports whether the priority demands same-day attention.
func (p Priority) Urgent() bool {
	return p == PriorityP0 || p == PriorityP1
}

// Severity grades followups and wellness findings.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "open"
	TaskStatusDone TaskStatus = "done"
)

// Task is a tracked unit of work produced by pipelines or the API.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"    validate:"required"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority" validate:"required"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	SourceRef   string     `json:"source_ref,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Followup is a reminder to revisit an item after a number of days.
type Followup struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" validate:"required"`
	DueInDays int       `json:"due_in_days"`
	Severity  Severity  `json:"severity"`
	SourceRef string    `json:"source_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Draft is a prepared outgoing message awaiting review or send.
type Draft struct {
	ID        string     `json:"id"`
	To        string     `json:"to"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	InReplyTo string     `json:"in_reply_to,omitempty"`
	Sent      bool       `json:"sent"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Meeting is a scheduled or transcribed meeting record.
type Meeting struct {
	ID              string    `json:"id"`
	Title           string    `json:"title" validate:"required"`
	Attendees       []string  `json:"attendees,omitempty"`
	ScheduledFor    time.Time `json:"scheduled_for"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Transcript      string    `json:"transcript,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Duration returns the meeting length, defaulting to 30 minutes when the
// record does not carry one.
func (m *Meeting) Duration() time.Duration {
	if m.DurationMinutes <= 0 {
		return 30 * time.Minute
	}

	return time.Duration(m.DurationMinutes) * time.Minute
}
