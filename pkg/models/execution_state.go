package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of one pipeline session.
type SessionStatus string

const (
	SessionStatusIdle             SessionStatus = "idle"              // Created, not yet started
	SessionStatusRunning          SessionStatus = "running"           // Steps executing
	SessionStatusAwaitingApproval SessionStatus = "awaiting_approval" // Suspended on pending approvals
	SessionStatusCompleted        SessionStatus = "completed"         // Finished, immutable
	SessionStatusError            SessionStatus = "error"             // Failed, immutable
)

const DefaultMaxIterations = 10

// ActionRecord is one action a pipeline took (or deferred for approval),
// appended to the session's history.
type ActionRecord struct {
	ActionType string         `json:"action_type"`
	Payload    map[string]any `json:"payload,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Deferred   bool           `json:"deferred"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// ActionRef points at a pending action record owned by the approval queue.
type ActionRef struct {
	ActionID   string `json:"action_id"`
	ActionType string `json:"action_type"`
}

// ExecutionState is the mutable state of one pipeline session. It is created
// at invocation, mutated only by the engine (step deltas merge through
// Apply), and checkpointed after every step. Once the status is completed or
// error the state is immutable.
type ExecutionState struct {
	SessionID        string         `json:"session_id"    validate:"required"`
	PipelineName     string         `json:"pipeline_name" validate:"required"`
	CurrentStep      string         `json:"current_step"`
	Iteration        int            `json:"iteration"`
	MaxIterations    int            `json:"max_iterations"`
	Status           SessionStatus  `json:"status"`
	Item             *WorkItem      `json:"item,omitempty"`
	Context          map[string]any `json:"context,omitempty"`
	ReasoningTrace   []string       `json:"reasoning_trace,omitempty"`
	ActionsTaken     []ActionRecord `json:"actions_taken,omitempty"`
	PendingApprovals []ActionRef    `json:"pending_approvals,omitempty"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewExecutionState creates an idle session for the given pipeline and item.
func NewExecutionState(pipelineName string, item *WorkItem, maxIterations int) *ExecutionState {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	now := time.Now().UTC()

	return &ExecutionState{
		SessionID:     uuid.New().String(),
		PipelineName:  pipelineName,
		Iteration:     0,
		MaxIterations: maxIterations,
		Status:        SessionStatusIdle,
		Item:          item,
		Context:       make(map[string]any),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// StepDelta is the partial result a step returns. The engine merges it into
// the session state with a fixed per-field policy: Context merges by key,
// Reasoning/Actions/Approvals append, Status and Error are last-write-wins,
// AdvanceIteration bumps the loop counter.
type StepDelta struct {
	Context          map[string]any
	Reasoning        []string
	Actions          []ActionRecord
	Approvals        []ActionRef
	Status           SessionStatus
	Error            string
	AdvanceIteration bool
}

// Apply merges a step delta into the state. It is the only mutation path the
// engine uses; steps never write to the state directly.
func (s *ExecutionState) Apply(delta *StepDelta) {
	if delta == nil {
		return
	}

	if s.Context == nil {
		s.Context = make(map[string]any)
	}

	for k, v := range delta.Context {
		s.Context[k] = v
	}

	s.ReasoningTrace = append(s.ReasoningTrace, delta.Reasoning...)
	s.ActionsTaken = append(s.ActionsTaken, delta.Actions...)
	s.PendingApprovals = append(s.PendingApprovals, delta.Approvals...)

	if delta.AdvanceIteration {
		s.Iteration++
	}

	if delta.Status != "" {
		s.Status = delta.Status
	}

	if delta.Error != "" {
		s.Error = delta.Error
	}

	s.UpdatedAt = time.Now().UTC()
}

// Terminal reports whether the session reached an immutable status.
func (s *ExecutionState) Terminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusError
}

// Suspended reports whether the session is parked on pending approvals.
func (s *ExecutionState) Suspended() bool {
	return s.Status == SessionStatusAwaitingApproval
}
