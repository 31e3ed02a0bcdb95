// Package router maps incoming work items onto the pipeline that should
// process them.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/reasoner"
	"github.com/cfreitas/attenda/pkg/reasoner/rulebased"
)

// Decision names the pipeline an item routes to and why.
type Decision struct {
	Pipeline   string  `json:"pipeline"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Labels with a dedicated pipeline. Everything else lands in inbox, which
// handles generic items.
var labelPipelines = map[string]string{
	reasoner.LabelEmail:    "inbox",
	reasoner.LabelMeeting:  "meeting",
	reasoner.LabelTask:     "task_triage",
	reasoner.LabelWellness: "wellness",
}

// Payload fields considered when assembling the text to classify.
var textFields = []string{"title", "subject", "body", "content", "text", "transcript", "description"}

// Router classifies work items with the reasoner and falls back to keyword
// heuristics when the reasoner fails.
type Router struct {
	primary  reasoner.Reasoner
	fallback reasoner.Reasoner
	logger   *slog.Logger
}

// NewRouter creates a router backed by the given reasoner.
func NewRouter(primary reasoner.Reasoner, logger *slog.Logger) *Router {
	return &Router{
		primary:  primary,
		fallback: rulebased.New(),
		logger:   logger.With("module", "intent_router"),
	}
}

// Route picks the pipeline for the item. A malformed item fails before any
// classification; a reasoner failure falls back to the keyword heuristics, so
// routing itself only fails on invalid input.
func (r *Router) Route(ctx context.Context, item *models.WorkItem) (Decision, error) {
	err := item.Validate()
	if err != nil {
		return Decision{}, fmt.Errorf("cannot route item: %w", err)
	}

	text := itemText(item)

	classification, err := r.primary.Classify(ctx, text)
	if err != nil {
		r.logger.WarnContext(ctx, "Classification failed, using keyword fallback",
			"item_id", item.ID, "error", err)

		// The rule-based reasoner never fails.
		classification, _ = r.fallback.Classify(ctx, text)
	}

	decision := decisionFor(classification)

	r.logger.InfoContext(ctx, "Routed item", "item_id", item.ID,
		"pipeline", decision.Pipeline, "confidence", decision.Confidence, "reason", decision.Reason)

	return decision, nil
}

func decisionFor(classification reasoner.Classification) Decision {
	pipeline, ok := labelPipelines[classification.Label]
	if !ok {
		return Decision{
			Pipeline:   "inbox",
			Confidence: classification.Confidence,
			Reason:     fmt.Sprintf("label %s has no dedicated pipeline, defaulting to inbox", classification.Label),
		}
	}

	return Decision{
		Pipeline:   pipeline,
		Confidence: classification.Confidence,
		Reason:     fmt.Sprintf("classified as %s", classification.Label),
	}
}

// itemText assembles the classifiable text from the payload's known text
// fields, falling back to the item type when the payload has none.
func itemText(item *models.WorkItem) string {
	var parts []string

	for _, field := range textFields {
		if value, ok := item.Payload[field].(string); ok && value != "" {
			parts = append(parts, value)
		}
	}

	if len(parts) == 0 {
		return item.Type
	}

	return strings.Join(parts, " ")
}
