// Package checks provides the built-in scheduled checks: the daily briefing
// and end-of-day summary, the hourly wellness watchdog, and the deadline and
// workload monitors. Each check reads the current records and raises findings
// for the scheduler to publish.
package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/scheduler"
	"github.com/cfreitas/attenda/pkg/wellness"
)

// Alert thresholds.
const (
	wellnessAlertScore    = 50
	wellnessCriticalScore = 40
	overdueAlertCount     = 5
	workloadAlertScore    = 90
)

// Deps carries what the built-in checks read. Cadences remaps a built-in
// check to a different cron cadence by name.
type Deps struct {
	Persistence persistence.Persistence
	Evaluator   *wellness.Evaluator
	Cadences    map[string]string
}

// RegisterAll wires the built-in checks into the scheduler on their default
// cadences.
func RegisterAll(sched *scheduler.Scheduler, deps Deps) error {
	for _, c := range []struct {
		name    string
		cadence string
		fn      scheduler.CheckFn
	}{
		{"morning_briefing", "0 9 * * *", MorningBriefing(deps.Persistence)},
		{"eod_summary", "0 17 * * *", EndOfDaySummary(deps.Persistence)},
		{"wellness_check", "0 * * * *", WellnessCheck(deps.Evaluator)},
		{"deadline_monitor", "*/30 * * * *", DeadlineMonitor(deps.Persistence)},
		{"workload_check", "0 */2 * * *", WorkloadCheck(deps.Evaluator)},
	} {
		cadence := c.cadence
		if override, ok := deps.Cadences[c.name]; ok {
			cadence = override
		}

		if err := sched.Register(c.name, cadence, c.fn); err != nil {
			return fmt.Errorf("failed to register check %s: %w", c.name, err)
		}
	}

	return nil
}

// MorningBriefing reports the day ahead: open critical work, tasks due today
// and the unprocessed item backlog. The briefing is raised every run, a clear
// board included.
func MorningBriefing(persist persistence.Persistence) scheduler.CheckFn {
	return morningBriefing(persist, time.Now)
}

func morningBriefing(persist persistence.Persistence, now func() time.Time) scheduler.CheckFn {
	return func(ctx context.Context) ([]scheduler.Finding, error) {
		current := now()

		openTasks, err := persist.TaskRepository().ListOpen(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list open tasks: %w", err)
		}

		pending, err := persist.WorkItemRepository().ListEligible(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending items: %w", err)
		}

		p0Count := 0
		p1Count := 0
		dueToday := 0

		for _, task := range openTasks {
			switch task.Priority {
			case models.PriorityP0:
				p0Count++
			case models.PriorityP1:
				p1Count++
			case models.PriorityP2, models.PriorityP3:
			}

			if task.DueDate != nil && sameDay(*task.DueDate, current) {
				dueToday++
			}
		}

		summary := fmt.Sprintf("Good morning. %d open tasks (%d critical, %d high priority), %d due today, %d items waiting in the queue.",
			len(openTasks), p0Count, p1Count, dueToday, len(pending))
		if len(openTasks) == 0 && len(pending) == 0 {
			summary = "Good morning. The board is clear: no open tasks and nothing waiting in the queue."
		}

		return []scheduler.Finding{{
			Summary:  summary,
			Priority: scheduler.PriorityMedium,
			Payload: map[string]any{
				"open_tasks":    len(openTasks),
				"p0_count":      p0Count,
				"p1_count":      p1Count,
				"due_today":     dueToday,
				"pending_items": len(pending),
			},
		}}, nil
	}
}

// EndOfDaySummary reports what moved during the day: items processed, tasks
// created and tasks closed.
func EndOfDaySummary(persist persistence.Persistence) scheduler.CheckFn {
	return endOfDaySummary(persist, time.Now)
}

func endOfDaySummary(persist persistence.Persistence, now func() time.Time) scheduler.CheckFn {
	return func(ctx context.Context) ([]scheduler.Finding, error) {
		today := now()

		items, err := persist.WorkItemRepository().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list work items: %w", err)
		}

		tasks, err := persist.TaskRepository().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}

		itemsProcessed := 0
		for _, item := range items {
			if item.Processed && item.ProcessedAt != nil && sameDay(*item.ProcessedAt, today) {
				itemsProcessed++
			}
		}

		tasksCreated := 0
		tasksClosed := 0

		for _, task := range tasks {
			if sameDay(task.CreatedAt, today) {
				tasksCreated++
			}

			if task.Status == models.TaskStatusDone && sameDay(task.UpdatedAt, today) {
				tasksClosed++
			}
		}

		return []scheduler.Finding{{
			Summary: fmt.Sprintf("End of day: %d items processed, %d tasks created, %d tasks closed.",
				itemsProcessed, tasksCreated, tasksClosed),
			Priority: scheduler.PriorityLow,
			Payload: map[string]any{
				"items_processed": itemsProcessed,
				"tasks_created":   tasksCreated,
				"tasks_closed":    tasksClosed,
			},
		}}, nil
	}
}

// WellnessCheck alerts when the wellness score drops below 50. Below 40 the
// alert carries high priority and suggests queueing a recovery action for
// approval.
func WellnessCheck(evaluator *wellness.Evaluator) scheduler.CheckFn {
	return func(ctx context.Context) ([]scheduler.Finding, error) {
		assessment, err := evaluator.Assess(ctx)
		if err != nil {
			return nil, fmt.Errorf("wellness assessment failed: %w", err)
		}

		if assessment.Score >= wellnessAlertScore {
			return nil, nil
		}

		priority := scheduler.PriorityMedium
		if assessment.Score < wellnessCriticalScore {
			priority = scheduler.PriorityHigh
		}

		pressured := make([]string, 0, len(assessment.Factors))
		for _, factor := range assessment.Factors {
			if factor.Status == wellness.StatusOrange || factor.Status == wellness.StatusRed {
				pressured = append(pressured, factor.Detail)
			}
		}

		return []scheduler.Finding{{
			Summary: fmt.Sprintf("Wellness score %d/100 with %d pressure factors. Immediate attention recommended.",
				assessment.Score, len(pressured)),
			Priority: priority,
			Payload: map[string]any{
				"score":              assessment.Score,
				"level":              assessment.Level,
				"risk_level":         assessment.RiskLevel,
				"pressure_factors":   pressured,
				"recommendations":    assessment.Recommendations,
				"approval_suggested": assessment.Score < wellnessCriticalScore,
			},
		}}, nil
	}
}

// DeadlineMonitor flags tasks due today and raises an alert when the overdue
// backlog passes the alert threshold. A task past its due time still counts
// as due today until midnight.
func DeadlineMonitor(persist persistence.Persistence) scheduler.CheckFn {
	return deadlineMonitor(persist, time.Now)
}

func deadlineMonitor(persist persistence.Persistence, now func() time.Time) scheduler.CheckFn {
	return func(ctx context.Context) ([]scheduler.Finding, error) {
		openTasks, err := persist.TaskRepository().ListOpen(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list open tasks: %w", err)
		}

		current := now()
		dueToday := 0
		dueTodayP0 := 0
		overdue := 0

		for _, task := range openTasks {
			if task.DueDate == nil {
				continue
			}

			if sameDay(*task.DueDate, current) {
				dueToday++
				if task.Priority == models.PriorityP0 {
					dueTodayP0++
				}
			}

			if task.DueDate.Before(current) {
				overdue++
			}
		}

		var findings []scheduler.Finding

		if dueToday > 0 {
			priority := scheduler.PriorityMedium
			if dueTodayP0 > 0 {
				priority = scheduler.PriorityHigh
			}

			findings = append(findings, scheduler.Finding{
				Summary: fmt.Sprintf("%d tasks due today (%d critical). Review the priorities.",
					dueToday, dueTodayP0),
				Priority: priority,
				Payload:  map[string]any{"due_today": dueToday, "p0_count": dueTodayP0},
			})
		}

		if overdue > overdueAlertCount {
			findings = append(findings, scheduler.Finding{
				Summary: fmt.Sprintf("%d tasks are overdue. Triage recommended before the backlog compounds.",
					overdue),
				Priority: scheduler.PriorityHigh,
				Payload:  map[string]any{"overdue_count": overdue},
			})
		}

		return findings, nil
	}
}

// WorkloadCheck emits a recommendation when the workload score reaches the
// critical band.
func WorkloadCheck(evaluator *wellness.Evaluator) scheduler.CheckFn {
	return func(ctx context.Context) ([]scheduler.Finding, error) {
		workload, err := evaluator.WorkloadScore(ctx)
		if err != nil {
			return nil, fmt.Errorf("workload scoring failed: %w", err)
		}

		if workload.Score < workloadAlertScore {
			return nil, nil
		}

		return []scheduler.Finding{{
			Summary: fmt.Sprintf("Workload at %.0f/100 (%s). Consider rescheduling or delegating tasks.",
				workload.Score, workload.StressLevel),
			Priority: scheduler.PriorityHigh,
			Payload: map[string]any{
				"workload_score": workload.Score,
				"stress_level":   workload.StressLevel,
				"burnout_risk":   workload.BurnoutRisk,
				"open_tasks":     workload.OpenTasks,
				"overdue_count":  workload.OverdueCount,
			},
		}}, nil
	}
}

func sameDay(t, ref time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := ref.Date()

	return y1 == y2 && m1 == m2 && d1 == d2
}
