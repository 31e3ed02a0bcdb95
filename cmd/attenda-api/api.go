// Package main provides the Attenda API server implementation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
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
	"github.com/cfreitas/attenda/pkg/web"
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

// API hosts the HTTP surface together with the full background runtime.
// The event stream endpoint needs the in-process broadcaster attached to
// the same bus the engine publishes on.
type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate

	handlers  *web.APIHandlers
	stream    *web.Broadcaster
	monitor   *monitor.Monitor
	scheduler *scheduler.Scheduler
	intake    *intake.Source

	app *fiber.App
}

func NewAPI(
	ctx context.Context,
	logger *slog.Logger,
	persist persistence.Persistence,
	bus eventbus.EventBus,
	tracer trace.Tracer,
	cfg Config,
) (*API, error) {
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
	route := router.NewRouter(classifier, logger)

	mon := monitor.New(monitor.Deps{
		Persistence: persist,
		Router:      route,
		Engine:      engine,
		Registry:    reg,
		Coordinator: coordinator,
		Publisher:   bus,
		Logger:      logger,
	}, monitor.Config{PollInterval: cfg.PollInterval})

	sched := scheduler.NewScheduler(bus, logger)

	err = checks.RegisterAll(sched, checks.Deps{
		Persistence: persist,
		Evaluator:   evaluator,
		Cadences:    cfg.Cadences,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register checks: %w", err)
	}

	stream := web.NewBroadcaster(logger)

	err = stream.Attach(bus)
	if err != nil {
		return nil, fmt.Errorf("failed to attach event stream: %w", err)
	}

	api := &API{
		logger:      logger,
		persistence: persist,
		eventBus:    bus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		stream:      stream,
		monitor:     mon,
		scheduler:   sched,
	}

	if cfg.RedisURL != "" {
		source, err := intake.NewSource(intake.Config{URL: cfg.RedisURL, Queue: cfg.IntakeQueue}, persist, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build intake source: %w", err)
		}

		api.intake = source
	}

	api.handlers = web.NewAPIHandlers(web.Deps{
		Gateway:     gateway,
		Persistence: persist,
		Registry:    reg,
		Router:      route,
		Engine:      engine,
		Coordinator: coordinator,
		Monitor:     mon,
		Scheduler:   sched,
		Stream:      stream,
		Publisher:   bus,
		Validator:   api.validate,
		Logger:      logger,
	})

	return api, nil
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Attenda API")
	})

	approvals := app.Group("/approvals")
	approvals.Get("/", a.handlers.ListApprovals)
	approvals.Get("/:id", a.handlers.GetApproval)
	approvals.Post("/:id/approve", a.handlers.ApproveAction)
	approvals.Post("/:id/reject", a.handlers.RejectAction)
	approvals.Post("/:id/edit", a.handlers.EditAction)

	app.Post("/items", a.handlers.SubmitItem)

	sessions := app.Group("/sessions")
	sessions.Get("/", a.handlers.ListSessions)
	sessions.Get("/:id", a.handlers.GetSession)

	app.Get("/monitor/status", a.handlers.MonitorStatus)
	app.Get("/scheduler/status", a.handlers.SchedulerStatus)
	app.Get("/events", a.handlers.StreamEvents)

	app.Get("/health", a.handlers.HealthCheck)

	return app
}

// Start brings up the background runtime, subscribes the event stream and
// serves HTTP until the listener stops. A later failure rolls back the
// components already running.
func (a *API) Start(ctx context.Context, port int) error {
	err := a.eventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	err = a.monitor.Start(ctx)
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

	a.app = a.App()

	return a.app.Listen(":" + strconv.Itoa(port))
}

// Stop drains the HTTP server, then shuts the runtime down in reverse start
// order, bounded by the shutdown timeout.
func (a *API) Stop(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if a.app != nil {
		err := a.app.ShutdownWithContext(stopCtx)
		if err != nil {
			a.logger.ErrorContext(stopCtx, "Failed to shut down HTTP server", "error", err)
		}
	}

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

	a.stream.Close()
}
