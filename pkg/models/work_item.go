// Package models defines the core domain models for the orchestration runtime.
package models

import (
	"errors"
	"time"
)

// WorkItem is one unit of incoming work (an email, a meeting transcript, a
// task update). The engine reads the routing fields and treats the payload as
// opaque; outcomes are reported back through the work item repository only.
type WorkItem struct {
	ID      string         `json:"id"      validate:"required"`
	Type    string         `json:"type"    validate:"required"`
	Payload map[string]any `json:"payload"`
	Source  string         `json:"source"`

	CreatedAt   time.Time      `json:"created_at"`
	Processed   bool           `json:"processed"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	Result      map[string]any `json:"result,omitempty"`

	// Retry bookkeeping, maintained by MarkFailed. Dead items are excluded
	// from polling permanently.
	Attempts      int        `json:"attempts"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	Dead          bool       `json:"dead"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

var (
	// ErrInvalidWorkItem is returned when a work item fails validation before routing.
	ErrInvalidWorkItem = errors.New("invalid work item")
)

// Validate checks the fields the engine depends on for routing.
func (w *WorkItem) Validate() error {
	if w.ID == "" {
		return ErrInvalidWorkItem
	}

	if w.Type == "" {
		return ErrInvalidWorkItem
	}

	return nil
}

// Eligible reports whether the item should be picked up by the monitor at the
// given time: unprocessed, not dead-lettered, and past any backoff window.
func (w *WorkItem) Eligible(now time.Time) bool {
	if w.Processed || w.Dead {
		return false
	}

	if w.NextAttemptAt != nil && w.NextAttemptAt.After(now) {
		return false
	}

	return true
}

// Retry policy for failed items.
const (
	MaxItemAttempts  = 3
	itemRetryBackoff = time.Minute
	itemRetryCap     = time.Hour
)

// MarkProcessed finalizes the item after a successful run and clears any
// retry bookkeeping from earlier failed attempts.
func (w *WorkItem) MarkProcessed(result map[string]any, now time.Time) {
	w.Processed = true
	w.ProcessedAt = &now
	w.Result = result
	w.NextAttemptAt = nil
	w.FailureReason = ""
}

// MarkFailed records a failed attempt. The next attempt backs off
// exponentially from one minute; the attempt limit dead-letters the item.
func (w *WorkItem) MarkFailed(reason string, now time.Time) {
	w.Attempts++
	w.FailureReason = reason

	if w.Attempts >= MaxItemAttempts {
		w.Dead = true
		w.NextAttemptAt = nil

		return
	}

	backoff := itemRetryBackoff << (w.Attempts - 1)
	if backoff > itemRetryCap {
		backoff = itemRetryCap
	}

	next := now.Add(backoff)
	w.NextAttemptAt = &next
}
