// Package approval implements the human-in-the-loop gateway: a persisted
// queue of deferred actions, the policy deciding which actions queue, and
// the execution of approved actions through registered executors.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/events"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/protocol"
)

// DefaultRetention is how long terminal records survive before Purge removes
// them.
const DefaultRetention = 7 * 24 * time.Hour

// ErrPayloadInvalid is returned by Enqueue when the payload fails the schema
// registered for the action type.
var ErrPayloadInvalid = errors.New("action payload failed schema validation")

// Gateway queues side-effecting actions for review and executes them once
// approved. The persisted store is the source of truth; decisions are
// serialized through a single mutex so concurrent reviewers cannot both win.
type Gateway struct {
	approvals persistence.ApprovalRepository
	audit     persistence.AuditRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	// mu serializes decision read-modify-write cycles; regMu guards the
	// executor and schema tables.
	mu        sync.Mutex
	regMu     sync.RWMutex
	executors map[string]protocol.ActionExecutor
	schemas   map[string]map[string]any
}

// NewGateway creates a gateway over the given store. The publisher may be nil
// when no event bus is wired.
func NewGateway(persist persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Gateway {
	return &Gateway{
		approvals: persist.ApprovalRepository(),
		audit:     persist.AuditRepository(),
		publisher: publisher,
		logger:    logger.With("module", "approval_gateway"),
		executors: make(map[string]protocol.ActionExecutor),
		schemas:   make(map[string]map[string]any),
	}
}

// RegisterExecutor registers the executor invoked when an action of the given
// type is approved. Registering a type again replaces the earlier executor.
func (g *Gateway) RegisterExecutor(actionType string, executor protocol.ActionExecutor) {
	g.regMu.Lock()
	defer g.regMu.Unlock()

	g.executors[actionType] = executor
}

// RegisterFactory builds the factory's executor, registers it under the
// factory's action type and keeps the payload schema for Enqueue validation.
func (g *Gateway) RegisterFactory(ctx context.Context, factory protocol.ExecutorFactory) error {
	executor, err := factory.Create(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to create executor for %s: %w", factory.ID(), err)
	}

	g.regMu.Lock()
	defer g.regMu.Unlock()

	g.executors[factory.ID()] = executor
	if schema := factory.Schema(); schema != nil {
		g.schemas[factory.ID()] = schema
	}

	return nil
}

// Enqueue validates the payload and stores a new pending action. The returned
// record carries the generated action id the reviewer decides on.
func (g *Gateway) Enqueue(ctx context.Context, actionType string, payload map[string]any, reason, sourceRef string) (*models.PendingAction, error) {
	err := g.validatePayload(actionType, payload)
	if err != nil {
		return nil, err
	}

	action := models.NewPendingAction(actionType, payload, reason, sourceRef)

	err = g.approvals.Save(ctx, action)
	if err != nil {
		return nil, fmt.Errorf("failed to store pending action: %w", err)
	}

	record := models.NewAuditRecord("agent", "action_proposed", string(action.Status))
	record.Agent = "approval_gateway"
	record.InputRefs = []string{action.ActionID}
	record.OutputRefs = []string{action.ActionType}
	record.CorrelationID = sourceRef
	record.Notes = reason

	err = g.audit.Append(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to audit proposal: %w", err)
	}

	g.logger.InfoContext(ctx, "Action queued for approval",
		"action_id", action.ActionID, "action_type", actionType, "reason", reason)

	return action, nil
}

// Approve executes the pending action and marks it executed or
// execution_failed. Deciding an absent or already-decided action returns
// (nil, nil).
func (g *Gateway) Approve(ctx context.Context, actionID, reviewer string) (*models.PendingAction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	action, err := g.loadPending(ctx, actionID)
	if err != nil || action == nil {
		return nil, err
	}

	return g.approveLoaded(ctx, action, reviewer)
}

// Reject declines the pending action without executing it. Deciding an absent
// or already-decided action returns (nil, nil).
func (g *Gateway) Reject(ctx context.Context, actionID, reviewer, reason string) (*models.PendingAction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	action, err := g.loadPending(ctx, actionID)
	if err != nil || action == nil {
		return nil, err
	}

	now := time.Now().UTC()
	action.Status = models.ActionStatusRejected
	action.ReviewedAt = &now
	action.ReviewedBy = reviewer
	action.ReviewNote = reason

	err = g.finalize(ctx, action, "action_rejected")
	if err != nil {
		return nil, err
	}

	return action, nil
}

// EditAndApprove replaces the payload, keeping the original for the audit
// trail, and then follows the approve path with the edited payload.
func (g *Gateway) EditAndApprove(ctx context.Context, actionID string, payload map[string]any, reviewer string) (*models.PendingAction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	action, err := g.loadPending(ctx, actionID)
	if err != nil || action == nil {
		return nil, err
	}

	err = g.validatePayload(action.ActionType, payload)
	if err != nil {
		return nil, err
	}

	action.OriginalPayload = action.Payload
	action.Payload = payload
	action.WasEdited = true

	return g.approveLoaded(ctx, action, reviewer)
}

// Get retrieves a single action, ErrActionNotFound when absent.
func (g *Gateway) Get(ctx context.Context, actionID string) (*models.PendingAction, error) {
	return g.approvals.GetByID(ctx, actionID)
}

// List returns the queued actions, filtered by status when one is given.
func (g *Gateway) List(ctx context.Context, status models.ActionStatus) ([]*models.PendingAction, error) {
	if status == "" {
		return g.approvals.List(ctx)
	}

	return g.approvals.ListByStatus(ctx, status)
}

// Purge removes terminal records created before the retention window.
// Pending records are never purged. Returns the number removed.
func (g *Gateway) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = DefaultRetention
	}

	actions, err := g.approvals.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	removed := 0

	for _, action := range actions {
		if !action.Terminal() || !action.CreatedAt.Before(cutoff) {
			continue
		}

		err = g.approvals.Delete(ctx, action.ActionID)
		if err != nil {
			return removed, fmt.Errorf("failed to purge action %s: %w", action.ActionID, err)
		}

		removed++
	}

	if removed > 0 {
		g.logger.InfoContext(ctx, "Purged decided actions", "removed", removed)
	}

	return removed, nil
}

// loadPending returns the action when it exists and is still pending. Both
// the absent and the already-decided cases come back as (nil, nil): deciding
// twice is a conflict no-op, not an error.
func (g *Gateway) loadPending(ctx context.Context, actionID string) (*models.PendingAction, error) {
	action, err := g.approvals.GetByID(ctx, actionID)
	if err != nil {
		if persistence.IsActionNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	if action.Terminal() {
		g.logger.Debug("Ignoring decision on decided action",
			"action_id", actionID, "status", action.Status)

		return nil, nil
	}

	return action, nil
}

func (g *Gateway) approveLoaded(ctx context.Context, action *models.PendingAction, reviewer string) (*models.PendingAction, error) {
	now := time.Now().UTC()
	action.Status = models.ActionStatusApproved
	action.ReviewedAt = &now
	action.ReviewedBy = reviewer

	g.regMu.RLock()
	executor, ok := g.executors[action.ActionType]
	g.regMu.RUnlock()

	if !ok {
		action.Status = models.ActionStatusExecutionFailed
		action.ExecutionResult = map[string]any{
			"error": fmt.Sprintf("no executor registered for action type %q", action.ActionType),
		}
	} else {
		result, execErr := executor.Execute(ctx, action.Payload, g.logger)
		if execErr != nil {
			action.Status = models.ActionStatusExecutionFailed
			action.ExecutionResult = map[string]any{"error": execErr.Error()}

			g.logger.ErrorContext(ctx, "Approved action failed to execute",
				"action_id", action.ActionID, "action_type", action.ActionType, "error", execErr)
		} else {
			action.Status = models.ActionStatusExecuted
			action.ExecutionResult = result
		}
	}

	err := g.finalize(ctx, action, "action_approved")
	if err != nil {
		return nil, err
	}

	return action, nil
}

// finalize persists the decided record, appends the audit entry and publishes
// the decision event. An audit write failure fails the decision.
func (g *Gateway) finalize(ctx context.Context, action *models.PendingAction, decision string) error {
	err := g.approvals.Save(ctx, action)
	if err != nil {
		return fmt.Errorf("failed to store decided action: %w", err)
	}

	record := models.NewAuditRecord(action.ReviewedBy, decision, string(action.Status))
	record.Agent = "approval_gateway"
	record.InputRefs = []string{action.ActionID}
	record.OutputRefs = []string{action.ActionType}
	record.CorrelationID = action.SourceRef
	record.Notes = action.ReviewNote

	err = g.audit.Append(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to audit decision: %w", err)
	}

	g.publishDecision(ctx, action, decision)

	g.logger.InfoContext(ctx, "Action decided",
		"action_id", action.ActionID, "action_type", action.ActionType,
		"decision", decision, "status", action.Status, "reviewed_by", action.ReviewedBy)

	return nil
}

func (g *Gateway) publishDecision(ctx context.Context, action *models.PendingAction, decision string) {
	if g.publisher == nil {
		return
	}

	event := events.ApprovalDecided{
		BaseEvent:  events.NewBaseEvent(events.ApprovalDecidedEvent, ""),
		ActionID:   action.ActionID,
		ActionType: action.ActionType,
		Decision:   decision,
		ReviewedBy: action.ReviewedBy,
		Status:     string(action.Status),
	}

	err := g.publisher.Publish(ctx, action.ActionID, event)
	if err != nil {
		g.logger.WarnContext(ctx, "Failed to publish approval event",
			"action_id", action.ActionID, "error", err)
	}
}

// validatePayload checks the payload against the schema registered for the
// action type, when one exists.
func (g *Gateway) validatePayload(actionType string, payload map[string]any) error {
	g.regMu.RLock()
	schema, ok := g.schemas[actionType]
	g.regMu.RUnlock()

	if !ok {
		return nil
	}

	if payload == nil {
		payload = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("failed to validate %s payload: %w", actionType, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrPayloadInvalid, strings.Join(descriptions, "; "))
	}

	return nil
}
