package pipelines

import (
	"context"
	"fmt"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/pipeline"
	"github.com/cfreitas/attenda/pkg/wellness"
)

// maxPriorityChanges caps the update proposals per triage run.
const maxPriorityChanges = 3

// TaskTriage builds the triage pipeline: score the workload, propose
// priority changes for tasks under due-date pressure, then set the overload
// flags the trigger rules read.
func TaskTriage(deps Deps) *pipeline.Definition {
	return &pipeline.Definition{
		Name:          TaskTriageName,
		Start:         "assess",
		MaxIterations: 3,
		Steps: map[string]pipeline.StepFn{
			"assess":     deps.assessWorkload,
			"prioritize": deps.prioritizeTasks,
			"summarize":  deps.summarizeTriage,
		},
		Edges: map[string]pipeline.Edge{
			"assess":     {Next: "prioritize"},
			"prioritize": {Next: "summarize"},
		},
	}
}

// assessWorkload scores the current task load.
func (d Deps) assessWorkload(ctx context.Context, _ *models.ExecutionState) (*models.StepDelta, error) {
	workload, err := d.Wellness.WorkloadScore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to score workload: %w", err)
	}

	return &models.StepDelta{
		Context: map[string]any{"workload": map[string]any{
			"score":        workload.Score,
			"stress_level": workload.StressLevel,
			"burnout_risk": workload.BurnoutRisk,
			"open_tasks":   workload.OpenTasks,
			"p0_count":     workload.P0Count,
			"overdue":      workload.OverdueCount,
		}},
		Reasoning: []string{fmt.Sprintf("Workload score %.0f (%s), %d open tasks, %d overdue",
			workload.Score, workload.StressLevel, workload.OpenTasks, workload.OverdueCount)},
		AdvanceIteration: true,
	}, nil
}

// prioritizeTasks proposes priority bumps for overdue and same-day tasks.
// Changes to P0/P1 fall under the approval policy, so the dispatch queues
// them on the gateway.
func (d Deps) prioritizeTasks(ctx context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	tasks, err := d.Persistence.TaskRepository().ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open tasks: %w", err)
	}

	delta := &models.StepDelta{AdvanceIteration: true}

	if advice, adviceErr := d.Reasoner.Generate(ctx, "How should I prioritize today's open tasks?"); adviceErr == nil {
		delta.Reasoning = append(delta.Reasoning, "Prioritization advice: "+advice)
	}

	now := time.Now()
	changes := 0

	for _, task := range tasks {
		if changes == maxPriorityChanges {
			break
		}

		target := proposedPriority(task, now)
		if target == "" {
			continue
		}

		d.dispatch(ctx, state, delta, plannedAction{
			Type: "update_task",
			Reason: fmt.Sprintf("task %q under due-date pressure, raising %s to %s",
				clipTitle(task.Title), task.Priority, target),
			Payload: map[string]any{
				"task_id":  task.ID,
				"priority": string(target),
			},
		})

		changes++
	}

	delta.Reasoning = append(delta.Reasoning, fmt.Sprintf("Proposed %d priority changes", changes))

	return delta, nil
}

// summarizeTriage records the outcome and sets the overload flags: the
// coordinator sends a wellness session after triage when the workload runs
// high or burnout risk is detected.
func (d Deps) summarizeTriage(_ context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	workload := stateMap(state, "workload")
	score := mapFloat(workload, "score")
	stress := mapString(workload, "stress_level")

	workloadHigh := stress == wellness.StressHigh || stress == wellness.StressCritical
	stressDetected := mapBool(workload, "burnout_risk")

	summary := fmt.Sprintf("Triage complete: workload %.0f/100 (%s), %d actions recorded",
		score, stress, len(state.ActionsTaken))

	delta := &models.StepDelta{
		Context: map[string]any{
			"workload_high":   workloadHigh,
			"stress_detected": stressDetected,
			"summary":         summary,
		},
		Reasoning:        []string{summary},
		AdvanceIteration: true,
	}

	if len(state.PendingApprovals) > 0 {
		delta.Status = models.SessionStatusAwaitingApproval
	}

	return delta, nil
}

// proposedPriority bumps overdue work one level and pulls work due within a
// day to P1. An empty return means no change.
func proposedPriority(task *models.Task, now time.Time) models.Priority {
	if task.DueDate == nil {
		return ""
	}

	if task.DueDate.Before(now) {
		switch task.Priority {
		case models.PriorityP0:
			return ""
		case models.PriorityP1:
			return models.PriorityP0
		default:
			return models.PriorityP1
		}
	}

	if task.DueDate.Before(now.Add(24*time.Hour)) && !task.Priority.Urgent() {
		return models.PriorityP1
	}

	return ""
}
