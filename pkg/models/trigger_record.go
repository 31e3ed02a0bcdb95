package models

// DefaultMaxTriggerDepth bounds how many pipelines one session may fan out to.
const DefaultMaxTriggerDepth = 4

// TriggerRecord tracks which pipelines a session has already invoked through
// cross-pipeline triggers. A pipeline name is never invoked twice for the
// same session; the invoked set never grows past the depth limit.
type TriggerRecord struct {
	SessionID        string   `json:"session_id"`
	InvokedPipelines []string `json:"invoked_pipelines"`
	MaxDepth         int      `json:"max_depth"`
}

// NewTriggerRecord creates an empty record for a session.
func NewTriggerRecord(sessionID string, maxDepth int) *TriggerRecord {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxTriggerDepth
	}

	return &TriggerRecord{
		SessionID:        sessionID,
		InvokedPipelines: make([]string, 0, maxDepth),
		MaxDepth:         maxDepth,
	}
}

// Invoked reports whether the pipeline was already invoked for this session.
func (t *TriggerRecord) Invoked(pipeline string) bool {
	for _, name := range t.InvokedPipelines {
		if name == pipeline {
			return true
		}
	}

	return false
}

// Depth returns the current invoked-set size.
func (t *TriggerRecord) Depth() int {
	return len(t.InvokedPipelines)
}

// Append records an invocation. It must be called before re-entering the
// engine so concurrent triggers for the same session cannot race into the
// same target. Returns false when the pipeline is a repeat or the depth
// limit is reached.
func (t *TriggerRecord) Append(pipeline string) bool {
	if t.Invoked(pipeline) {
		return false
	}

	if t.Depth() >= t.MaxDepth {
		return false
	}

	t.InvokedPipelines = append(t.InvokedPipelines, pipeline)

	return true
}

// TriggerRequest asks the coordinator to invoke a further pipeline with the
// given reason and seed context.
type TriggerRequest struct {
	TargetPipeline string         `json:"target_pipeline"`
	Reason         string         `json:"reason"`
	Context        map[string]any `json:"context,omitempty"`
}
