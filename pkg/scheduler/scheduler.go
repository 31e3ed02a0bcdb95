// Package scheduler runs registered checks on cron cadences and publishes
// the findings they raise. Checks run in isolation: a still-running check is
// skipped rather than stacked, a panicking check is recovered, and a failing
// run is recorded on the check and published as a check.failed event without
// touching the others.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/events"
)

// stopTimeout bounds the wait for in-flight checks during Stop.
const stopTimeout = 5 * time.Second

// Finding priorities on the notification surface.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// A Finding is one report or alert raised by a check run.
type Finding struct {
	Summary  string
	Priority string
	Payload  map[string]any
}

// CheckFn produces the findings for one scheduled run. Returning no findings
// means the watched state is healthy.
type CheckFn func(ctx context.Context) ([]Finding, error)

// CheckStatus describes one registered check for the status surface.
type CheckStatus struct {
	Name      string     `json:"name"`
	Cadence   string     `json:"cadence"`
	RunCount  int        `json:"run_count"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler owns the cron runner and the check registrations.
type Scheduler struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	cron    *cron.Cron
	checks  []*check
	started bool
}

type check struct {
	name    string
	cadence string
	fn      CheckFn

	mu        sync.Mutex
	runCount  int
	lastRun   time.Time
	lastError string
}

// NewScheduler creates a Scheduler publishing check events to the given bus.
func NewScheduler(publisher eventbus.EventPublisher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		publisher: publisher,
		logger:    logger.With("module", "scheduler"),
		now:       time.Now,
	}
}

// Register adds a check under a unique name with a standard five-field cron
// cadence. Registration is only allowed while the scheduler is stopped.
func (s *Scheduler) Register(name, cadence string, fn CheckFn) error {
	if name == "" {
		return errors.New("check name is required")
	}

	if fn == nil {
		return fmt.Errorf("check %s has no function", name)
	}

	if _, err := cron.ParseStandard(cadence); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("cannot register check %s while the scheduler is running", name)
	}

	for _, existing := range s.checks {
		if existing.name == name {
			return fmt.Errorf("check %s is already registered", name)
		}
	}

	s.checks = append(s.checks, &check{name: name, cadence: cadence, fn: fn})

	return nil
}

// Start schedules every registered check and starts the cron runner. Starting
// a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	runner := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	for _, chk := range s.checks {
		if _, err := runner.AddFunc(chk.cadence, func() { s.runCheck(ctx, chk) }); err != nil {
			return fmt.Errorf("failed to schedule check %s: %w", chk.name, err)
		}
	}

	runner.Start()
	s.cron = runner
	s.started = true

	s.logger.InfoContext(ctx, "Scheduler started", "checks", len(s.checks))

	return nil
}

// Stop halts the cron runner and waits for in-flight checks, bounded by the
// stop timeout. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()
		return nil
	}

	runner := s.cron
	s.cron = nil
	s.started = false
	s.mu.Unlock()

	select {
	case <-runner.Stop().Done():
	case <-time.After(stopTimeout):
		s.logger.WarnContext(ctx, "Checks still running after stop timeout")
	case <-ctx.Done():
	}

	s.logger.InfoContext(ctx, "Scheduler stopped")

	return nil
}

// Status reports every registered check in registration order.
func (s *Scheduler) Status() []CheckStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]CheckStatus, 0, len(s.checks))

	for _, chk := range s.checks {
		chk.mu.Lock()

		status := CheckStatus{
			Name:      chk.name,
			Cadence:   chk.cadence,
			RunCount:  chk.runCount,
			LastError: chk.lastError,
		}
		if !chk.lastRun.IsZero() {
			lastRun := chk.lastRun
			status.LastRunAt = &lastRun
		}

		chk.mu.Unlock()

		statuses = append(statuses, status)
	}

	return statuses
}

// runCheck executes one check and records the outcome. The run timestamp is
// updated even when the check fails, so a broken check does not look stale on
// the status surface.
func (s *Scheduler) runCheck(ctx context.Context, chk *check) {
	logger := s.logger.With("check", chk.name)
	startedAt := s.now()

	findings, err := chk.fn(ctx)

	chk.mu.Lock()
	chk.runCount++
	chk.lastRun = startedAt
	if err != nil {
		chk.lastError = err.Error()
	} else {
		chk.lastError = ""
	}
	chk.mu.Unlock()

	if err != nil {
		logger.ErrorContext(ctx, "Check failed", "error", err)
		s.publish(ctx, chk.name, events.CheckFailed{
			BaseEvent: events.NewBaseEvent(events.CheckFailedEvent, ""),
			CheckName: chk.name,
			Error:     err.Error(),
		})

		return
	}

	for _, finding := range findings {
		logger.InfoContext(ctx, "Check raised a finding",
			"summary", finding.Summary, "priority", finding.Priority)
		s.publish(ctx, chk.name, events.CheckTriggered{
			BaseEvent: events.NewBaseEvent(events.CheckTriggeredEvent, ""),
			CheckName: chk.name,
			Summary:   finding.Summary,
			Priority:  finding.Priority,
			Payload:   finding.Payload,
		})
	}
}

func (s *Scheduler) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}
