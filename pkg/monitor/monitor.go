// Package monitor runs the autonomous polling loop. Eligible work items are
// routed onto a pipeline, executed by the engine, fanned out through the
// trigger coordinator, and their outcome is written back to the item record
// with retry backoff for failures.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/events"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/pipeline"
	"github.com/cfreitas/attenda/pkg/router"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultStopTimeout  = 5 * time.Second

	// recentCap bounds the outcome ring kept for the status endpoint.
	recentCap = 100
)

// Deps are the collaborators the monitor drives per item.
type Deps struct {
	Persistence persistence.Persistence
	Router      *router.Router
	Engine      *pipeline.Engine
	Registry    *pipeline.Registry
	Coordinator *pipeline.Coordinator
	Publisher   eventbus.EventPublisher
	Logger      *slog.Logger
}

// Config tunes the polling loop. Zero values take the defaults.
type Config struct {
	PollInterval time.Duration
	StopTimeout  time.Duration
}

// Outcome is one recently finished item, kept in the status ring.
type Outcome struct {
	ItemID     string    `json:"item_id"`
	Pipeline   string    `json:"pipeline,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Status is a point-in-time snapshot of the loop.
type Status struct {
	Running        bool      `json:"running"`
	CurrentItem    string    `json:"current_item,omitempty"`
	ProcessedCount int       `json:"processed_count"`
	ErrorCount     int       `json:"error_count"`
	LastCheckTime  time.Time `json:"last_check_time"`
	Recent         []Outcome `json:"recent"`
}

// Monitor owns the polling goroutine. Stop is cooperative: the stop signal is
// checked between items and before the next tick, an in-flight item is never
// preempted.
type Monitor struct {
	items       persistence.WorkItemRepository
	router      *router.Router
	engine      *pipeline.Engine
	registry    *pipeline.Registry
	coordinator *pipeline.Coordinator
	publisher   eventbus.EventPublisher
	logger      *slog.Logger

	pollInterval time.Duration
	stopTimeout  time.Duration
	now          func() time.Time

	mu             sync.RWMutex
	started        bool
	ticker         *time.Ticker
	done           chan struct{}
	finished       chan struct{}
	currentItem    string
	processedCount int
	errorCount     int
	lastCheck      time.Time
	recent         []Outcome
}

// New creates a monitor over the given dependencies.
func New(deps Deps, cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	return &Monitor{
		items:        deps.Persistence.WorkItemRepository(),
		router:       deps.Router,
		engine:       deps.Engine,
		registry:     deps.Registry,
		coordinator:  deps.Coordinator,
		publisher:    deps.Publisher,
		logger:       deps.Logger.With("module", "monitor"),
		pollInterval: cfg.PollInterval,
		stopTimeout:  cfg.StopTimeout,
		now:          time.Now,
	}
}

// Start launches the polling goroutine. Starting a running monitor is a
// no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	m.ticker = time.NewTicker(m.pollInterval)
	m.done = make(chan struct{})
	m.finished = make(chan struct{})
	m.started = true

	go m.loop(ctx, m.ticker, m.done, m.finished)

	m.logger.InfoContext(ctx, "Monitor started", "poll_interval", m.pollInterval)
	m.publish(ctx, "", events.MonitorStarted{
		BaseEvent:    events.NewBaseEvent(events.MonitorStartedEvent, ""),
		PollInterval: m.pollInterval.String(),
	})

	return nil
}

// Stop signals the loop and waits for the in-flight tick, bounded by the
// stop timeout. Stopping an idle monitor is a no-op.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()

	if !m.started {
		m.mu.Unlock()

		return nil
	}

	m.started = false
	m.ticker.Stop()
	close(m.done)
	finished := m.finished
	m.mu.Unlock()

	select {
	case <-finished:
	case <-time.After(m.stopTimeout):
		m.logger.WarnContext(ctx, "Monitor loop still draining after stop timeout")
	case <-ctx.Done():
	}

	status := m.Status()

	m.logger.InfoContext(ctx, "Monitor stopped",
		"processed_count", status.ProcessedCount, "error_count", status.ErrorCount)
	m.publish(ctx, "", events.MonitorStopped{
		BaseEvent:      events.NewBaseEvent(events.MonitorStoppedEvent, ""),
		ProcessedCount: status.ProcessedCount,
		ErrorCount:     status.ErrorCount,
	})

	return nil
}

// Status returns a snapshot of the loop counters and the recent outcomes.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recent := make([]Outcome, len(m.recent))
	copy(recent, m.recent)

	return Status{
		Running:        m.started,
		CurrentItem:    m.currentItem,
		ProcessedCount: m.processedCount,
		ErrorCount:     m.errorCount,
		LastCheckTime:  m.lastCheck,
		Recent:         recent,
	}
}

func (m *Monitor) loop(ctx context.Context, ticker *time.Ticker, done <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx, done)
		}
	}
}

// check runs one polling tick: list the eligible items and process each in
// turn, bailing out between items once a stop has been signalled.
func (m *Monitor) check(ctx context.Context, done <-chan struct{}) {
	started := m.now()

	items, err := m.items.ListEligible(ctx, started)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to list eligible work items", "error", err)
		m.bumpErrors()

		return
	}

	processed := 0

	for _, item := range items {
		if stopped(done) {
			m.logger.InfoContext(ctx, "Stop requested, leaving remaining items for the next run",
				"remaining", len(items)-processed)

			break
		}

		m.processItem(ctx, item)

		processed++
	}

	m.mu.Lock()
	m.lastCheck = started
	m.mu.Unlock()

	m.publish(ctx, "", events.MonitorCheckComplete{
		BaseEvent:      events.NewBaseEvent(events.MonitorCheckCompleteEvent, ""),
		ItemsFound:     len(items),
		ItemsProcessed: processed,
		DurationMs:     time.Since(started).Milliseconds(),
	})
}

// processItem routes one item, runs the session, cascades triggers and
// records the outcome. Failures never propagate: they land in the item's
// retry bookkeeping.
func (m *Monitor) processItem(ctx context.Context, item *models.WorkItem) {
	logger := m.logger.With("item_id", item.ID, "item_type", item.Type)

	m.setCurrent(item.ID)
	defer m.setCurrent("")

	m.publish(ctx, item.ID, events.ItemProcessingStarted{
		BaseEvent: events.NewBaseEvent(events.ItemProcessingStartedEvent, ""),
		ItemID:    item.ID,
		ItemType:  item.Type,
		Source:    item.Source,
	})

	decision, err := m.router.Route(ctx, item)
	if err != nil {
		m.recordFailure(ctx, item, fmt.Sprintf("routing failed: %v", err), logger)

		return
	}

	def, err := m.registry.Get(decision.Pipeline)
	if err != nil {
		m.recordFailure(ctx, item, fmt.Sprintf("no pipeline for decision %s: %v", decision.Pipeline, err), logger)

		return
	}

	state := models.NewExecutionState(decision.Pipeline, item, def.MaxIterations)
	state.Context["routing"] = map[string]any{
		"confidence": decision.Confidence,
		"reason":     decision.Reason,
	}

	final, err := m.engine.Invoke(ctx, def, state)
	if err != nil {
		m.recordFailure(ctx, item, fmt.Sprintf("session failed to run: %v", err), logger)

		return
	}

	if final.Status == models.SessionStatusError {
		m.recordFailure(ctx, item, final.Error, logger)

		return
	}

	if m.coordinator != nil {
		m.coordinator.Execute(ctx, final.SessionID, item, m.coordinator.Check(final))

		if final.Status == models.SessionStatusCompleted {
			m.coordinator.Forget(final.SessionID)
		}
	}

	m.recordSuccess(ctx, item, final, logger)
}

func (m *Monitor) recordSuccess(ctx context.Context, item *models.WorkItem, final *models.ExecutionState, logger *slog.Logger) {
	item.MarkProcessed(map[string]any{
		"pipeline":   final.PipelineName,
		"session_id": final.SessionID,
		"status":     string(final.Status),
		"actions":    len(final.ActionsTaken),
	}, m.now())

	if err := m.items.Save(ctx, item); err != nil {
		logger.ErrorContext(ctx, "Failed to mark item processed", "error", err)
		m.bumpErrors()

		return
	}

	logger.InfoContext(ctx, "Item processed",
		"pipeline", final.PipelineName, "session_id", final.SessionID, "status", final.Status)

	m.mu.Lock()
	m.processedCount++
	m.mu.Unlock()

	m.note(Outcome{
		ItemID:     item.ID,
		Pipeline:   final.PipelineName,
		SessionID:  final.SessionID,
		Status:     string(final.Status),
		RecordedAt: m.now(),
	})
}

func (m *Monitor) recordFailure(ctx context.Context, item *models.WorkItem, reason string, logger *slog.Logger) {
	item.MarkFailed(reason, m.now())

	if item.Dead {
		logger.WarnContext(ctx, "Item dead-lettered",
			"attempts", item.Attempts, "reason", reason)
		m.publish(ctx, item.ID, events.ItemDeadLettered{
			BaseEvent: events.NewBaseEvent(events.ItemDeadLetteredEvent, ""),
			ItemID:    item.ID,
			Attempts:  item.Attempts,
			Reason:    reason,
		})
	} else {
		logger.WarnContext(ctx, "Item failed, backing off",
			"attempts", item.Attempts, "next_attempt_at", item.NextAttemptAt, "reason", reason)
	}

	if err := m.items.Save(ctx, item); err != nil {
		logger.ErrorContext(ctx, "Failed to record item failure", "error", err)
	}

	m.bumpErrors()
	m.note(Outcome{
		ItemID:     item.ID,
		Status:     "error",
		Error:      reason,
		RecordedAt: m.now(),
	})
}

func (m *Monitor) note(outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent = append(m.recent, outcome)
	if len(m.recent) > recentCap {
		m.recent = m.recent[len(m.recent)-recentCap:]
	}
}

func (m *Monitor) setCurrent(itemID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentItem = itemID
}

func (m *Monitor) bumpErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errorCount++
}

func (m *Monitor) publish(ctx context.Context, key string, event eventbus.Event) {
	if m.publisher == nil {
		return
	}

	if err := m.publisher.Publish(ctx, key, event); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func stopped(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}
