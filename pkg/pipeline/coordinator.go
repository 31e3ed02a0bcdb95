package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/events"
	"github.com/cfreitas/attenda/pkg/models"
)

// Rule fans a finished source pipeline out to a target when its condition
// holds on the session state.
type Rule struct {
	Source string
	Target string
	Reason string
	When   func(state *models.ExecutionState) bool
}

// DefaultRules returns the static cross-pipeline trigger table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Source: "inbox",
			Target: "task_triage",
			Reason: "inbox flagged follow-up work",
			When: func(state *models.ExecutionState) bool {
				flagged, _ := state.Context["requires_task"].(bool)

				return flagged
			},
		},
		{
			Source: "task_triage",
			Target: "wellness",
			Reason: "triage detected overload",
			When: func(state *models.ExecutionState) bool {
				high, _ := state.Context["workload_high"].(bool)
				stressed, _ := state.Context["stress_detected"].(bool)

				return high || stressed
			},
		},
	}
}

// Coordinator walks the trigger rules after a session finishes and invokes
// the matched target pipelines. Per root session each pipeline is invoked at
// most once and the invoked set is capped, so cascades always terminate.
type Coordinator struct {
	engine    *Engine
	registry  *Registry
	rules     []Rule
	maxDepth  int
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	mu      sync.Mutex
	records map[string]*models.TriggerRecord
}

// NewCoordinator creates a coordinator over the engine and pipeline registry.
func NewCoordinator(engine *Engine, registry *Registry, rules []Rule, publisher eventbus.EventPublisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		engine:    engine,
		registry:  registry,
		rules:     rules,
		maxDepth:  models.DefaultMaxTriggerDepth,
		publisher: publisher,
		logger:    logger.With("module", "trigger_coordinator"),
		records:   make(map[string]*models.TriggerRecord),
	}
}

// Check evaluates the rule table against a finished session and returns the
// trigger requests it produces. Suspended and failed sessions never trigger.
func (c *Coordinator) Check(state *models.ExecutionState) []models.TriggerRequest {
	if state == nil || state.Status != models.SessionStatusCompleted {
		return nil
	}

	var requests []models.TriggerRequest

	for _, rule := range c.rules {
		if rule.Source != state.PipelineName || !rule.When(state) {
			continue
		}

		seed := map[string]any{
			"triggered_by":   state.PipelineName,
			"trigger_reason": rule.Reason,
		}
		for k, v := range state.Context {
			seed[k] = v
		}

		requests = append(requests, models.TriggerRequest{
			TargetPipeline: rule.Target,
			Reason:         rule.Reason,
			Context:        seed,
		})
	}

	return requests
}

// Execute invokes the requested pipelines for the root session, then checks
// each result for further triggers. Targets are claimed in the trigger record
// before invocation, so a concurrent duplicate loses the claim instead of
// running twice.
func (c *Coordinator) Execute(ctx context.Context, rootSessionID string, item *models.WorkItem, requests []models.TriggerRequest) []*models.ExecutionState {
	var results []*models.ExecutionState

	for _, request := range requests {
		state := c.invoke(ctx, rootSessionID, item, request)
		if state == nil {
			continue
		}

		results = append(results, state)

		// Cascade: the triggered session may itself match rules.
		results = append(results, c.Execute(ctx, rootSessionID, item, c.Check(state))...)
	}

	return results
}

// Forget drops the trigger record of a finished root session.
func (c *Coordinator) Forget(rootSessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.records, rootSessionID)
}

func (c *Coordinator) invoke(ctx context.Context, rootSessionID string, item *models.WorkItem, request models.TriggerRequest) *models.ExecutionState {
	target := request.TargetPipeline
	logger := c.logger.With("root_session", rootSessionID, "target", target)

	claim := c.claim(rootSessionID, target)

	switch claim.outcome {
	case claimRepeat:
		logger.Debug("Skipping repeated trigger target")

		return nil
	case claimDepthExceeded:
		logger.WarnContext(ctx, "Trigger depth limit reached", "max_depth", c.maxDepth)
		c.publish(ctx, rootSessionID, events.TriggerDepthExceeded{
			BaseEvent:      events.NewBaseEvent(events.TriggerDepthExceededEvent, rootSessionID),
			TargetPipeline: target,
			MaxDepth:       c.maxDepth,
		})

		return nil
	case claimGranted:
	}

	def, err := c.registry.Get(target)
	if err != nil {
		logger.ErrorContext(ctx, "Trigger target not registered", "error", err)

		return nil
	}

	state := models.NewExecutionState(target, item, def.MaxIterations)
	for k, v := range request.Context {
		state.Context[k] = v
	}

	c.publish(ctx, rootSessionID, events.TriggerInvoked{
		BaseEvent:      events.NewBaseEvent(events.TriggerInvokedEvent, rootSessionID),
		SourcePipeline: sourceOf(request),
		TargetPipeline: target,
		Reason:         request.Reason,
		Depth:          claim.depth,
	})

	logger.InfoContext(ctx, "Invoking triggered pipeline",
		"reason", request.Reason, "depth", claim.depth)

	result, err := c.engine.Invoke(ctx, def, state)
	if err != nil {
		logger.ErrorContext(ctx, "Triggered pipeline failed to run", "error", err)

		return nil
	}

	return result
}

type claimOutcome int

const (
	claimGranted claimOutcome = iota
	claimRepeat
	claimDepthExceeded
)

type claimReceipt struct {
	outcome claimOutcome
	depth   int
}

// claim records the target in the root session's trigger record under the
// coordinator lock, so concurrent triggers for the same session cannot both
// win the same target.
func (c *Coordinator) claim(rootSessionID, target string) claimReceipt {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.records[rootSessionID]
	if !ok {
		record = models.NewTriggerRecord(rootSessionID, c.maxDepth)
		c.records[rootSessionID] = record
	}

	if record.Invoked(target) {
		return claimReceipt{outcome: claimRepeat, depth: record.Depth()}
	}

	if !record.Append(target) {
		return claimReceipt{outcome: claimDepthExceeded, depth: record.Depth()}
	}

	return claimReceipt{outcome: claimGranted, depth: record.Depth()}
}

func (c *Coordinator) publish(ctx context.Context, key string, event eventbus.Event) {
	if c.publisher == nil {
		return
	}

	err := c.publisher.Publish(ctx, key, event)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to publish trigger event",
			"event_type", event.GetType(), "error", err)
	}
}

func sourceOf(request models.TriggerRequest) string {
	source, _ := request.Context["triggered_by"].(string)

	return source
}
