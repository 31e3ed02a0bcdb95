package pipeline_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence/file"
	"github.com/cfreitas/attenda/pkg/pipeline"
)

// completingDefinition is a single-step pipeline that finishes immediately.
func completingDefinition(name string) *pipeline.Definition {
	return &pipeline.Definition{
		Name:  name,
		Start: "run",
		Steps: map[string]pipeline.StepFn{
			"run": func(_ context.Context, _ *models.ExecutionState) (*models.StepDelta, error) {
				return &models.StepDelta{Status: models.SessionStatusCompleted}, nil
			},
		},
	}
}

func completedState(pipelineName string, contextValues map[string]any) *models.ExecutionState {
	state := models.NewExecutionState(pipelineName, testItem(), 0)
	state.Status = models.SessionStatusCompleted

	for k, v := range contextValues {
		state.Context[k] = v
	}

	return state
}

func TestCoordinator_Check(t *testing.T) {
	t.Parallel()

	engine, _ := newEngine(t)
	coordinator := pipeline.NewCoordinator(engine, pipeline.NewRegistry(), pipeline.DefaultRules(), nil, testLogger())

	requests := coordinator.Check(completedState("inbox", map[string]any{"requires_task": true}))
	require.Len(t, requests, 1)
	assert.Equal(t, "task_triage", requests[0].TargetPipeline)
	assert.Equal(t, "inbox", requests[0].Context["triggered_by"])

	assert.Empty(t, coordinator.Check(completedState("inbox", nil)))
	assert.Empty(t, coordinator.Check(completedState("meeting", map[string]any{"requires_task": true})))

	requests = coordinator.Check(completedState("task_triage", map[string]any{"stress_detected": true}))
	require.Len(t, requests, 1)
	assert.Equal(t, "wellness", requests[0].TargetPipeline)

	// Suspended and failed sessions never trigger.
	suspended := completedState("inbox", map[string]any{"requires_task": true})
	suspended.Status = models.SessionStatusAwaitingApproval
	assert.Empty(t, coordinator.Check(suspended))
}

func TestCoordinator_Execute_InvokesTargetOnce(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	engine := pipeline.NewEngine(persist, nil, nil, testLogger())

	registry := pipeline.NewRegistry()
	require.NoError(t, registry.Register(completingDefinition("task_triage")))

	coordinator := pipeline.NewCoordinator(engine, registry, pipeline.DefaultRules(), nil, testLogger())

	root := completedState("inbox", map[string]any{"requires_task": true})
	requests := coordinator.Check(root)
	require.Len(t, requests, 1)

	results := coordinator.Execute(t.Context(), root.SessionID, root.Item, requests)
	require.Len(t, results, 1)
	assert.Equal(t, "task_triage", results[0].PipelineName)
	assert.Equal(t, models.SessionStatusCompleted, results[0].Status)
	assert.Equal(t, "inbox", results[0].Context["triggered_by"])

	// The same target never runs twice for one root session.
	again := coordinator.Execute(t.Context(), root.SessionID, root.Item, requests)
	assert.Empty(t, again)

	// A different root session gets its own trigger record.
	other := completedState("inbox", map[string]any{"requires_task": true})
	fresh := coordinator.Execute(t.Context(), other.SessionID, other.Item, coordinator.Check(other))
	assert.Len(t, fresh, 1)
}

func TestCoordinator_Execute_CascadeStopsAtDepthLimit(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	engine := pipeline.NewEngine(persist, nil, nil, testLogger())
	registry := pipeline.NewRegistry()

	// A chain longer than the depth limit: t1 -> t2 -> ... -> t6.
	var rules []pipeline.Rule

	for i := 1; i <= 5; i++ {
		require.NoError(t, registry.Register(completingDefinition(fmt.Sprintf("t%d", i+1))))

		rules = append(rules, pipeline.Rule{
			Source: fmt.Sprintf("t%d", i),
			Target: fmt.Sprintf("t%d", i+1),
			Reason: "chain",
			When:   func(_ *models.ExecutionState) bool { return true },
		})
	}

	coordinator := pipeline.NewCoordinator(engine, registry, rules, nil, testLogger())

	root := completedState("t1", nil)
	results := coordinator.Execute(t.Context(), root.SessionID, root.Item, coordinator.Check(root))

	require.Len(t, results, models.DefaultMaxTriggerDepth)
	assert.Equal(t, "t2", results[0].PipelineName)
	assert.Equal(t, "t5", results[3].PipelineName)
}

func TestCoordinator_Execute_UnknownTargetSkipped(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	engine := pipeline.NewEngine(persist, nil, nil, testLogger())

	coordinator := pipeline.NewCoordinator(engine, pipeline.NewRegistry(), pipeline.DefaultRules(), nil, testLogger())

	root := completedState("inbox", map[string]any{"requires_task": true})
	results := coordinator.Execute(t.Context(), root.SessionID, root.Item, coordinator.Check(root))
	assert.Empty(t, results)
}

func TestCoordinator_Forget(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	engine := pipeline.NewEngine(persist, nil, nil, testLogger())
	registry := pipeline.NewRegistry()
	require.NoError(t, registry.Register(completingDefinition("task_triage")))

	coordinator := pipeline.NewCoordinator(engine, registry, pipeline.DefaultRules(), nil, testLogger())

	root := completedState("inbox", map[string]any{"requires_task": true})
	requests := coordinator.Check(root)

	require.Len(t, coordinator.Execute(t.Context(), root.SessionID, root.Item, requests), 1)
	assert.Empty(t, coordinator.Execute(t.Context(), root.SessionID, root.Item, requests))

	// Forgetting the root session clears its invocation history.
	coordinator.Forget(root.SessionID)
	assert.Len(t, coordinator.Execute(t.Context(), root.SessionID, root.Item, requests), 1)
}
