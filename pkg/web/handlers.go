// Package web provides the HTTP handlers for the approvals queue, session
// checkpoints, manual item submission and runtime status endpoints.
package web

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/cfreitas/attenda/pkg/approval"
	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/events"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/monitor"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/pipeline"
	"github.com/cfreitas/attenda/pkg/router"
	"github.com/cfreitas/attenda/pkg/scheduler"
)

const sseHeartbeatInterval = 15 * time.Second

// Deps carries everything the handlers reach into. All fields are required;
// Publisher and Coordinator may be nil when the deployment runs without an
// event bus or trigger cascades.
type Deps struct {
	Gateway     *approval.Gateway
	Persistence persistence.Persistence
	Registry    *pipeline.Registry
	Router      *router.Router
	Engine      *pipeline.Engine
	Coordinator *pipeline.Coordinator
	Monitor     *monitor.Monitor
	Scheduler   *scheduler.Scheduler
	Stream      *Broadcaster
	Publisher   eventbus.EventPublisher
	Validator   *validator.Validate
	Logger      *slog.Logger
}

type APIHandlers struct {
	gateway     *approval.Gateway
	persistence persistence.Persistence
	registry    *pipeline.Registry
	router      *router.Router
	engine      *pipeline.Engine
	coordinator *pipeline.Coordinator
	monitor     *monitor.Monitor
	scheduler   *scheduler.Scheduler
	stream      *Broadcaster
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandlers(deps Deps) *APIHandlers {
	return &APIHandlers{
		gateway:     deps.Gateway,
		persistence: deps.Persistence,
		registry:    deps.Registry,
		router:      deps.Router,
		engine:      deps.Engine,
		coordinator: deps.Coordinator,
		monitor:     deps.Monitor,
		scheduler:   deps.Scheduler,
		stream:      deps.Stream,
		publisher:   deps.Publisher,
		validator:   deps.Validator,
		logger:      deps.Logger.With("module", "web"),
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeCheck := "ok"
	storeOk := true

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		storeCheck = err.Error()
		storeOk = false
	}

	names := h.registry.Names()
	registryCheck := fmt.Sprintf("%d pipelines registered", len(names))
	registryOk := len(names) > 0

	status := "unhealthy"
	message := "Attenda API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if storeOk && registryOk {
		status = "healthy"
		message = "Attenda API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"store":     storeCheck,
			"pipelines": registryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) ListApprovals(c fiber.Ctx) error {
	status := models.ActionStatus(c.Query("status"))

	switch status {
	case "", models.ActionStatusPending, models.ActionStatusApproved, models.ActionStatusRejected,
		models.ActionStatusExecuted, models.ActionStatusExecutionFailed:
	default:
		return badRequest(c, "Unknown status filter: "+string(status))
	}

	actions, err := h.gateway.List(c.Context(), status)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"approvals": actions,
		"count":     len(actions),
	})
}

func (h *APIHandlers) GetApproval(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Action ID is required")
	}

	action, err := h.gateway.Get(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(action)
}

func (h *APIHandlers) ApproveAction(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Action ID is required")
	}

	var req ApproveActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	action, err := h.gateway.Approve(c.Context(), id, req.Reviewer)
	if err != nil {
		return internalError(c, err)
	}

	return h.respondDecision(c, id, action)
}

func (h *APIHandlers) RejectAction(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Action ID is required")
	}

	var req RejectActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	action, err := h.gateway.Reject(c.Context(), id, req.Reviewer, req.Reason)
	if err != nil {
		return internalError(c, err)
	}

	return h.respondDecision(c, id, action)
}

func (h *APIHandlers) EditAction(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Action ID is required")
	}

	var req EditActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	action, err := h.gateway.EditAndApprove(c.Context(), id, req.Payload, req.Reviewer)
	if err != nil {
		if errors.Is(err, approval.ErrPayloadInvalid) {
			return badRequest(c, err.Error())
		}

		return internalError(c, err)
	}

	return h.respondDecision(c, id, action)
}

// respondDecision maps the gateway's nil result onto the right problem: the
// action is either unknown or already past pending.
func (h *APIHandlers) respondDecision(c fiber.Ctx, actionID string, action *models.PendingAction) error {
	if action != nil {
		return c.JSON(action)
	}

	existing, err := h.gateway.Get(c.Context(), actionID)
	if err != nil {
		return handleStoreError(c, err)
	}

	return conflict(c, fmt.Sprintf("action already %s", existing.Status))
}

func (h *APIHandlers) SubmitItem(c fiber.Ctx) error {
	var req SubmitItemRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	item := &models.WorkItem{
		ID:        req.ID,
		Type:      req.Type,
		Payload:   req.Payload,
		Source:    req.Source,
		CreatedAt: time.Now().UTC(),
	}
	if item.ID == "" {
		item.ID = models.NewID("item")
	}

	if err := item.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	items := h.persistence.WorkItemRepository()
	if err := items.Save(c.Context(), item); err != nil {
		return internalError(c, err)
	}

	result := h.runItem(c.Context(), item)

	if err := items.Save(c.Context(), item); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// runItem is the synchronous twin of the monitor's processing flow: route,
// run the session, cascade triggers, then mark the item's bookkeeping. The
// caller persists the mutated item.
func (h *APIHandlers) runItem(ctx context.Context, item *models.WorkItem) ItemRunResult {
	h.publish(ctx, item.ID, events.ItemProcessingStarted{
		BaseEvent: events.NewBaseEvent(events.ItemProcessingStartedEvent, ""),
		ItemID:    item.ID,
		ItemType:  item.Type,
		Source:    item.Source,
	})

	decision, err := h.router.Route(ctx, item)
	if err != nil {
		return h.failItem(ctx, item, fmt.Sprintf("routing failed: %v", err))
	}

	def, err := h.registry.Get(decision.Pipeline)
	if err != nil {
		return h.failItem(ctx, item, fmt.Sprintf("no pipeline for decision %s: %v", decision.Pipeline, err))
	}

	state := models.NewExecutionState(decision.Pipeline, item, def.MaxIterations)
	state.Context["routing"] = map[string]any{
		"confidence": decision.Confidence,
		"reason":     decision.Reason,
	}

	final, err := h.engine.Invoke(ctx, def, state)
	if err != nil {
		return h.failItem(ctx, item, fmt.Sprintf("session failed to run: %v", err))
	}

	if final.Status == models.SessionStatusError {
		result := h.failItem(ctx, item, final.Error)
		result.Session = final

		return result
	}

	if h.coordinator != nil {
		h.coordinator.Execute(ctx, final.SessionID, item, h.coordinator.Check(final))

		if final.Status == models.SessionStatusCompleted {
			h.coordinator.Forget(final.SessionID)
		}
	}

	item.MarkProcessed(map[string]any{
		"pipeline":   final.PipelineName,
		"session_id": final.SessionID,
		"status":     string(final.Status),
		"actions":    len(final.ActionsTaken),
	}, time.Now().UTC())

	return ItemRunResult{Item: item, Session: final}
}

func (h *APIHandlers) failItem(ctx context.Context, item *models.WorkItem, reason string) ItemRunResult {
	item.MarkFailed(reason, time.Now().UTC())

	h.logger.WarnContext(ctx, "Manual submission failed",
		"item_id", item.ID, "attempts", item.Attempts, "reason", reason)

	if item.Dead {
		h.publish(ctx, item.ID, events.ItemDeadLettered{
			BaseEvent: events.NewBaseEvent(events.ItemDeadLetteredEvent, ""),
			ItemID:    item.ID,
			Attempts:  item.Attempts,
			Reason:    reason,
		})
	}

	return ItemRunResult{Item: item, Error: reason}
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	state, err := h.persistence.CheckpointRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) ListSessions(c fiber.Ctx) error {
	checkpoints := h.persistence.CheckpointRepository()
	status := models.SessionStatus(c.Query("status"))

	var (
		states []*models.ExecutionState
		err    error
	)

	switch status {
	case "":
		states, err = checkpoints.List(c.Context())
	case models.SessionStatusIdle, models.SessionStatusRunning, models.SessionStatusAwaitingApproval,
		models.SessionStatusCompleted, models.SessionStatusError:
		states, err = checkpoints.ListByStatus(c.Context(), status)
	default:
		return badRequest(c, "Unknown status filter: "+string(status))
	}

	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions": states,
		"count":    len(states),
	})
}

func (h *APIHandlers) MonitorStatus(c fiber.Ctx) error {
	return c.JSON(h.monitor.Status())
}

func (h *APIHandlers) SchedulerStatus(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"checks": h.scheduler.Status(),
	})
}

// StreamEvents serves the live event feed as server-sent events. The stream
// ends when the client disconnects or the broadcaster shuts down.
func (h *APIHandlers) StreamEvents(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	sub := h.stream.Subscribe()

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.stream.Unsubscribe(sub)

		if _, err := fmt.Fprint(w, ":ok\n\n"); err != nil {
			return
		}

		if err := w.Flush(); err != nil {
			return
		}

		heartbeat := time.NewTicker(sseHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case frame, open := <-sub:
				if !open {
					return
				}

				_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Event, frame.Data)

				if err := w.Flush(); err != nil {
					return
				}

			case <-heartbeat.C:
				_, _ = fmt.Fprint(w, ":heartbeat\n\n")

				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}

func (h *APIHandlers) publish(ctx context.Context, key string, event eventbus.Event) {
	if h.publisher == nil {
		return
	}

	if err := h.publisher.Publish(ctx, key, event); err != nil {
		h.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}
