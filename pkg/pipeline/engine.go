package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/events"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/otelhelper"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// maxExecutedSteps hard-stops a walk that keeps finding a next step without
// ever reaching a terminal status. A conforming definition ends long before
// this; hitting it means the graph is broken.
const maxExecutedSteps = 1000

// Engine drives pipeline sessions step by step. Each step runs under a
// timeout with panic recovery, its delta is merged into the session state,
// and the state is checkpointed before the walk continues. Sessions suspend
// on approvals instead of blocking.
type Engine struct {
	checkpoints persistence.CheckpointRepository
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewEngine creates an engine over the checkpoint store. The publisher and
// tracer may be nil; a nil tracer falls back to the global provider.
func NewEngine(persist persistence.Persistence, publisher eventbus.EventPublisher, tracer trace.Tracer, logger *slog.Logger) *Engine {
	if tracer == nil {
		tracer = otel.Tracer("attenda/pipeline")
	}

	return &Engine{
		checkpoints: persist.CheckpointRepository(),
		publisher:   publisher,
		tracer:      tracer,
		logger:      logger.With("module", "pipeline_engine"),
	}
}

// Invoke runs the definition against the given state until it completes,
// fails or suspends on approvals. Step failures land in the state's status;
// the returned error is non-nil only for infrastructure failures. Invoking a
// terminal state returns it unchanged.
func (e *Engine) Invoke(ctx context.Context, def *Definition, state *models.ExecutionState) (*models.ExecutionState, error) {
	err := def.Validate()
	if err != nil {
		return nil, err
	}

	if state.Terminal() {
		return state, nil
	}

	if state.CurrentStep == "" {
		state.CurrentStep = def.Start
	}

	return e.run(ctx, def, state)
}

// Resume loads the session checkpoint and continues the walk from its
// current step. Terminal sessions come back unchanged.
func (e *Engine) Resume(ctx context.Context, def *Definition, sessionID string) (*models.ExecutionState, error) {
	err := def.Validate()
	if err != nil {
		return nil, err
	}

	state, err := e.checkpoints.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if state.Terminal() {
		return state, nil
	}

	return e.run(ctx, def, state)
}

func (e *Engine) run(ctx context.Context, def *Definition, state *models.ExecutionState) (*models.ExecutionState, error) {
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "pipeline."+def.Name,
		attribute.String(otelhelper.PipelineNameKey, def.Name),
		attribute.String(otelhelper.SessionIDKey, state.SessionID),
	)
	defer span.End()

	logger := e.logger.With("pipeline", def.Name, "session_id", state.SessionID)
	logger.InfoContext(ctx, "Running session", "from_step", state.CurrentStep, "iteration", state.Iteration)

	state.Status = models.SessionStatusRunning

	executed := 0
	lastStep := ""

	for state.Status == models.SessionStatusRunning {
		if state.CurrentStep == "" || state.CurrentStep == END {
			// Walked off the end of the graph.
			state.Apply(&models.StepDelta{Status: models.SessionStatusCompleted})

			err := e.checkpoint(ctx, span, state)
			if err != nil {
				return nil, err
			}

			break
		}

		stepName := state.CurrentStep
		lastStep = stepName

		step, ok := def.Steps[stepName]
		if !ok {
			state.Apply(&models.StepDelta{
				Status: models.SessionStatusError,
				Error:  fmt.Sprintf("step %q is not defined in pipeline %s", stepName, def.Name),
			})

			err := e.checkpoint(ctx, span, state)
			if err != nil {
				return nil, err
			}

			break
		}

		stepStarted := time.Now()

		delta, stepErr := e.runStep(ctx, def, stepName, step, state)
		if stepErr != nil {
			logger.ErrorContext(ctx, "Step failed", "step", stepName, "error", stepErr)
			state.Apply(&models.StepDelta{Status: models.SessionStatusError, Error: stepErr.Error()})
		} else {
			state.Apply(delta)
		}

		executed++

		// Resolve the continuation even when the step suspended the session,
		// so a later Resume picks up after the suspension point.
		if state.Status == models.SessionStatusRunning || state.Suspended() {
			state.CurrentStep = e.next(def, stepName, state, logger)
		}

		if state.Status == models.SessionStatusRunning && executed >= maxExecutedSteps &&
			state.CurrentStep != END && state.CurrentStep != "" {
			state.Apply(&models.StepDelta{
				Status: models.SessionStatusError,
				Error:  fmt.Sprintf("aborted after %d steps without reaching a terminal status", executed),
			})
		}

		err := e.checkpoint(ctx, span, state)
		if err != nil {
			return nil, err
		}

		e.publish(ctx, state.SessionID, events.SessionStepCompleted{
			BaseEvent:    events.NewBaseEvent(events.SessionStepCompletedEvent, state.SessionID),
			PipelineName: def.Name,
			StepName:     stepName,
			Iteration:    state.Iteration,
			DurationMs:   time.Since(stepStarted).Milliseconds(),
		})
	}

	e.finish(ctx, span, def, state, lastStep, executed, started, logger)

	return state, nil
}

type stepOutcome struct {
	delta *models.StepDelta
	err   error
}

// runStep executes one step under the definition's timeout with panic
// recovery. A step that outlives its timeout is abandoned; it must honor ctx
// to stop its own work.
func (e *Engine) runStep(ctx context.Context, def *Definition, stepName string, step StepFn, state *models.ExecutionState) (*models.StepDelta, error) {
	stepCtx, cancel := context.WithTimeout(ctx, def.Timeout())
	defer cancel()

	stepCtx, span := otelhelper.StartSpan(stepCtx, e.tracer, "step."+stepName,
		attribute.String(otelhelper.PipelineNameKey, def.Name),
		attribute.String(otelhelper.StepNameKey, stepName),
		attribute.Int(otelhelper.IterationKey, state.Iteration),
	)
	defer span.End()

	done := make(chan stepOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stepOutcome{err: fmt.Errorf("step %s panicked: %v", stepName, r)}
			}
		}()

		delta, err := step(stepCtx, state)
		done <- stepOutcome{delta: delta, err: err}
	}()

	select {
	case outcome := <-done:
		if outcome.err != nil {
			otelhelper.SetError(span, outcome.err)
		}

		return outcome.delta, outcome.err
	case <-stepCtx.Done():
		err := fmt.Errorf("step %s aborted: %w", stepName, stepCtx.Err())
		otelhelper.SetError(span, err)

		return nil, err
	}
}

// next resolves the edge out of the given step. A resolved loop target past
// the iteration budget is replaced by the edge's accept target so retry
// loops end in acceptance, never in an error.
func (e *Engine) next(def *Definition, current string, state *models.ExecutionState, logger *slog.Logger) string {
	edge, ok := def.Edges[current]
	if !ok {
		return END
	}

	next := edge.Next
	if edge.Condition != nil {
		next = edge.Condition(state)
	}

	if next == "" {
		return END
	}

	if next == edge.LoopTarget && state.Iteration >= state.MaxIterations {
		accepted := edge.AcceptTarget
		if accepted == "" {
			accepted = END
		}

		logger.Info("Iteration budget exhausted, forcing accept path",
			"step", current, "iteration", state.Iteration, "accept", accepted)

		return accepted
	}

	return next
}

func (e *Engine) checkpoint(ctx context.Context, span trace.Span, state *models.ExecutionState) error {
	err := e.checkpoints.Save(ctx, state)
	if err != nil {
		err = fmt.Errorf("failed to checkpoint session %s: %w", state.SessionID, err)
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

// finish reports the session's final status: one terminal event, the span
// status and a log line.
func (e *Engine) finish(ctx context.Context, span trace.Span, def *Definition, state *models.ExecutionState, lastStep string, executed int, started time.Time, logger *slog.Logger) {
	switch state.Status {
	case models.SessionStatusCompleted:
		logger.InfoContext(ctx, "Session completed",
			"steps", executed, "iterations", state.Iteration, "actions", len(state.ActionsTaken))

		e.publish(ctx, state.SessionID, events.SessionCompleted{
			BaseEvent:    events.NewBaseEvent(events.SessionCompletedEvent, state.SessionID),
			PipelineName: def.Name,
			ItemID:       itemID(state),
			ActionsTaken: len(state.ActionsTaken),
			DurationMs:   time.Since(started).Milliseconds(),
		})
	case models.SessionStatusAwaitingApproval:
		logger.InfoContext(ctx, "Session awaiting approval",
			"pending", len(state.PendingApprovals), "next_step", state.CurrentStep)

		e.publish(ctx, state.SessionID, events.SessionApprovalNeeded{
			BaseEvent:    events.NewBaseEvent(events.SessionApprovalNeededEvent, state.SessionID),
			PipelineName: def.Name,
			ItemID:       itemID(state),
			Approvals:    state.PendingApprovals,
		})
	case models.SessionStatusError:
		logger.ErrorContext(ctx, "Session failed", "step", lastStep, "error", state.Error)
		otelhelper.SetError(span, errors.New(state.Error),
			attribute.String(otelhelper.StepNameKey, lastStep))

		e.publish(ctx, state.SessionID, events.SessionError{
			BaseEvent:    events.NewBaseEvent(events.SessionErrorEvent, state.SessionID),
			PipelineName: def.Name,
			ItemID:       itemID(state),
			Error:        state.Error,
			FailedStep:   lastStep,
		})
	case models.SessionStatusIdle, models.SessionStatusRunning:
		// Unreachable: the loop only exits on a non-running status.
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, key, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func itemID(state *models.ExecutionState) string {
	if state.Item == nil {
		return ""
	}

	return state.Item.ID
}
