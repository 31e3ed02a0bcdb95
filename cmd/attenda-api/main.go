package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/cfreitas/attenda/pkg/cmd"
	"github.com/cfreitas/attenda/pkg/intake"
	"github.com/cfreitas/attenda/pkg/log"
	"github.com/cfreitas/attenda/pkg/monitor"
	"github.com/cfreitas/attenda/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("attenda-api")

	cmd := &cli.Command{
		Name:                  "attenda-api",
		Usage:                 "Review approvals, submit items and watch runtime activity",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus kind (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often the monitor polls for new work items",
				Value:   monitor.DefaultPollInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the intake queue (intake disabled when empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "intake-queue",
				Usage:   "Redis list the intake source consumes",
				Value:   intake.DefaultQueue,
				Sources: cli.EnvVars("INTAKE_QUEUE"),
			},
			&cli.StringSliceFlag{
				Name:    "check-cadence",
				Usage:   "Override a built-in check cadence as name=cron (repeatable)",
				Sources: cli.EnvVars("CHECK_CADENCES"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Attenda API")

			cadences, err := parseCadenceOverrides(command.StringSlice("check-cadence"))
			if err != nil {
				return err
			}

			persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to initialize persistence: %w", err)
			}

			defer func() {
				err := persist.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "attenda-api", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var tracer trace.Tracer
			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				tracer, err = otelhelper.NewTracer(ctx, "attenda-api")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}
			}

			api, err := NewAPI(ctx, logger, persist, eventBus, tracer, Config{
				PollInterval: command.Duration("poll-interval"),
				RedisURL:     command.String("redis-url"),
				IntakeQueue:  command.String("intake-queue"),
				Cadences:     cadences,
			})
			if err != nil {
				return err
			}

			go func() {
				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

				<-sigChan
				logger.InfoContext(ctx, "Shutting down API...")

				api.Stop(ctx)
			}()

			err = api.Start(ctx, command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

// parseCadenceOverrides turns repeated name=cron flags into the override map.
func parseCadenceOverrides(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	overrides := make(map[string]string, len(values))

	for _, value := range values {
		name, cadence, found := strings.Cut(value, "=")
		if !found || name == "" || cadence == "" {
			return nil, fmt.Errorf("invalid check-cadence %q, expected name=cron", value)
		}

		overrides[name] = cadence
	}

	return overrides, nil
}
