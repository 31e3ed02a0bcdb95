// Package pipeline implements the session engine: declarative step graphs,
// the execution loop with checkpointing and iteration budgets, and the
// cross-pipeline trigger coordinator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
)

// END is the edge target that finishes the session.
const END = "__end__"

// DefaultStepTimeout bounds one step's wall clock unless the definition
// overrides it.
const DefaultStepTimeout = 60 * time.Second

// StepFn runs one step against the session state and returns the delta the
// engine merges. Steps must not mutate the state directly and must honor ctx.
type StepFn func(ctx context.Context, state *models.ExecutionState) (*models.StepDelta, error)

// EdgeFn picks the next step name from the merged session state.
type EdgeFn func(state *models.ExecutionState) string

// Edge describes where the walk goes after a step completes. When Condition
// is nil the walk follows Next. A resolved target equal to LoopTarget
// re-enters the loop; once the iteration budget is spent the engine follows
// AcceptTarget (or END) instead, so loops always land on their accept path.
type Edge struct {
	Next         string
	Condition    EdgeFn
	LoopTarget   string
	AcceptTarget string
}

// Definition is a declarative pipeline: named steps wired by edges. Definitions
// are immutable after registration and hold no per-session state.
type Definition struct {
	Name          string
	Start         string
	MaxIterations int
	StepTimeout   time.Duration
	Steps         map[string]StepFn
	Edges         map[string]Edge
}

var (
	// ErrDefinitionInvalid is returned when a definition fails validation.
	ErrDefinitionInvalid = errors.New("invalid pipeline definition")
	// ErrPipelineNotFound is returned when no definition is registered under
	// the requested name.
	ErrPipelineNotFound = errors.New("pipeline not found")
)

// Validate checks the graph is runnable: a name, a start step, and static
// edge targets that exist. Conditional targets are checked as the walk runs.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrDefinitionInvalid)
	}

	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrDefinitionInvalid, d.Name)
	}

	if _, ok := d.Steps[d.Start]; !ok {
		return fmt.Errorf("%w: %s start step %q not defined", ErrDefinitionInvalid, d.Name, d.Start)
	}

	for from, edge := range d.Edges {
		if _, ok := d.Steps[from]; !ok {
			return fmt.Errorf("%w: %s edge from unknown step %q", ErrDefinitionInvalid, d.Name, from)
		}

		for _, target := range []string{edge.Next, edge.LoopTarget, edge.AcceptTarget} {
			if target == "" || target == END {
				continue
			}

			if _, ok := d.Steps[target]; !ok {
				return fmt.Errorf("%w: %s edge from %q targets unknown step %q",
					ErrDefinitionInvalid, d.Name, from, target)
			}
		}
	}

	return nil
}

// Timeout returns the per-step timeout for this definition.
func (d *Definition) Timeout() time.Duration {
	if d.StepTimeout <= 0 {
		return DefaultStepTimeout
	}

	return d.StepTimeout
}
