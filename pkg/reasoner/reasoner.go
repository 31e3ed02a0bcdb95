// Package reasoner defines the classification and generation contract used by
// the intent router and by pipeline steps. Implementations live in the
// subpackages: rulebased (deterministic, the default), httpapi (remote
// inference service) and retry (wrapper adding timeouts and backoff).
package reasoner

import (
	"context"
	"errors"
	"fmt"
)

// Labels a Classify call may produce. Unrecognized backend output is reported
// as LabelChat.
const (
	LabelEmail    = "email"
	LabelMeeting  = "meeting"
	LabelTask     = "task"
	LabelWellness = "wellness"
	LabelFollowup = "followup"
	LabelReport   = "report"
	LabelBriefing = "briefing"
	LabelChat     = "chat"
)

// Classification is the outcome of classifying a piece of text.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Reasoner provides text classification and generation to pipeline steps.
type Reasoner interface {
	// Classify assigns one of the known labels to the given text.
	Classify(ctx context.Context, text string) (Classification, error)

	// Generate produces free-form output for the given prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// ValidLabel reports whether label is one of the known classification labels.
func ValidLabel(label string) bool {
	switch label {
	case LabelEmail, LabelMeeting, LabelTask, LabelWellness,
		LabelFollowup, LabelReport, LabelBriefing, LabelChat:
		return true
	}

	return false
}

// Error wraps a classify or generate failure with the operation that caused
// it. The retry wrapper returns one of these once its attempt budget is
// exhausted, so callers can distinguish reasoner trouble from their own.
type Error struct {
	Op  string
	Err error
}

// NewError creates an Error for the given operation.
func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("reasoner %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsReasonerError checks whether err is (or wraps) a reasoner Error.
func IsReasonerError(err error) bool {
	var re *Error

	return errors.As(err, &re)
}
