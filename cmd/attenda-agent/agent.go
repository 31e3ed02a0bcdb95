// Package main implements the headless attenda runtime: the work item
// monitor, the scheduled checks and the optional Redis intake source,
// without the HTTP surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/cfreitas/attenda/pkg/checks"
	"github.com/cfreitas/attenda/pkg/cmd"
	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/intake"
	"github.com/cfreitas/attenda/pkg/monitor"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/pipeline"
	"github.com/cfreitas/attenda/pkg/pipelines"
	"github.com/cfreitas/attenda/pkg/reasoner/rulebased"
	"github.com/cfreitas/attenda/pkg/router"
	"github.com/cfreitas/attenda/pkg/scheduler"
	"github.com/cfreitas/attenda/pkg/wellness"
)

const shutdownTimeout = 30 * time.Second

// Config carries the runtime tunables parsed from flags. The intake source
// is only built when RedisURL is set.
type Config struct {
	PollInterval time.Duration
	RedisURL     string
	IntakeQueue  string
	Cadences     map[string]string
}

// Agent owns the background runtime. Construction wires every collaborator
// explicitly; Run starts them and blocks until a shutdown signal.
type Agent struct {
	id        string
	logger    *slog.Logger
	registry  *pipeline.Registry
	monitor   *monitor.Monitor
	scheduler *scheduler.Scheduler
	intake    *intake.Source
}

func NewAgent(
	ctx context.Context,
	id string,
	persist persistence.Persistence,
	bus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
	cfg Config,
) (*Agent, error) {
	gateway, err := cmd.NewGateway(ctx, persist, bus, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build approval gateway: %w", err)
	}

	evaluator := wellness.NewEvaluator(persist, logger)
	classifier := rulebased.New()

	reg := pipeline.NewRegistry()

	err = pipelines.RegisterAll(reg, pipelines.Deps{
		Persistence: persist,
		Reasoner:    classifier,
		Wellness:    evaluator,
		Gateway:     gateway,
		Executors:   cmd.NewRegistry(logger, persist),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register pipelines: %w", err)
	}

	engine := pipeline.NewEngine(persist, bus, tracer, logger)
	coordinator := pipeline.NewCoordinator(engine, reg, pipeline.DefaultRules(), bus, logger)

	agent := &Agent{
		id:       id,
		logger:   logger,
		registry: reg,
		monitor: monitor.New(monitor.Deps{
			Persistence: persist,
			Router:      router.NewRouter(classifier, logger),
			Engine:      engine,
			Registry:    reg,
			Coordinator: coordinator,
			Publisher:   bus,
			Logger:      logger,
		}, monitor.Config{PollInterval: cfg.PollInterval}),
		scheduler: scheduler.NewScheduler(bus, logger),
	}

	err = checks.RegisterAll(agent.scheduler, checks.Deps{
		Persistence: persist,
		Evaluator:   evaluator,
		Cadences:    cfg.Cadences,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register checks: %w", err)
	}

	if cfg.RedisURL != "" {
		source, err := intake.NewSource(intake.Config{URL: cfg.RedisURL, Queue: cfg.IntakeQueue}, persist, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build intake source: %w", err)
		}

		agent.intake = source
	}

	return agent, nil
}

// Start brings up the monitor, the scheduler and the intake source. A later
// failure rolls back the components already running.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.InfoContext(ctx, "Starting agent", "pipelines", a.registry.Names())

	err := a.monitor.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	err = a.scheduler.Start(ctx)
	if err != nil {
		_ = a.monitor.Stop(ctx)

		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if a.intake != nil {
		err = a.intake.Start(ctx)
		if err != nil {
			_ = a.scheduler.Stop(ctx)
			_ = a.monitor.Stop(ctx)

			return fmt.Errorf("failed to start intake source: %w", err)
		}
	}

	return nil
}

// Stop shuts the runtime down in reverse start order, bounded by the
// shutdown timeout. Failures are logged, a stuck component does not keep the
// process alive.
func (a *Agent) Stop(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if a.intake != nil {
		err := a.intake.Stop(stopCtx)
		if err != nil {
			a.logger.ErrorContext(stopCtx, "Failed to stop intake source", "error", err)
		}
	}

	err := a.scheduler.Stop(stopCtx)
	if err != nil {
		a.logger.ErrorContext(stopCtx, "Failed to stop scheduler", "error", err)
	}

	err = a.monitor.Stop(stopCtx)
	if err != nil {
		a.logger.ErrorContext(stopCtx, "Failed to stop monitor", "error", err)
	}
}

// Run starts the runtime and blocks until SIGINT or SIGTERM.
func (a *Agent) Run(ctx context.Context) error {
	err := a.Start(ctx)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "Agent started successfully", "agent_id", a.id)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	a.logger.InfoContext(ctx, "Shutting down agent...")

	a.Stop(ctx)

	return nil
}
