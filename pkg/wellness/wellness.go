// Package wellness scores workload pressure from the domain records. The
// score starts at 100 and loses points per pressure factor (open P0 tasks,
// overdue work, meeting load, missing focus time, item backlog, critical
// follow-ups); the separate workload score grows with task load and is used
// by triage and the workload check.
package wellness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// Wellness levels derived from the score.
const (
	LevelHealthy  = "healthy"
	LevelModerate = "moderate"
	LevelElevated = "elevated"
	LevelCritical = "critical"
)

// Factor status colors.
const (
	StatusGreen  = "green"
	StatusYellow = "yellow"
	StatusOrange = "orange"
	StatusRed    = "red"
)

// Stress levels derived from the workload score.
const (
	StressLow      = "low"
	StressModerate = "moderate"
	StressHigh     = "high"
	StressCritical = "critical"
)

// Factor is one scored workload pressure component.
type Factor struct {
	Name   string `json:"name"`
	Value  int    `json:"value"`
	Impact int    `json:"impact"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Assessment is a full wellness evaluation at a point in time.
type Assessment struct {
	Score           int       `json:"score"`
	Level           string    `json:"level"`
	RiskLevel       string    `json:"risk_level"`
	Factors         []Factor  `json:"factors"`
	Summary         string    `json:"summary"`
	Recommendations []string  `json:"recommendations"`
	Timestamp       time.Time `json:"timestamp"`
}

// Workload is the task-load score used by triage and the workload check.
// Unlike the wellness score, higher means more pressure.
type Workload struct {
	Score          float64 `json:"score"`
	StressLevel    string  `json:"stress_level"`
	BurnoutRisk    bool    `json:"burnout_risk"`
	OpenTasks      int     `json:"open_tasks"`
	P0Count        int     `json:"p0_count"`
	P1Count        int     `json:"p1_count"`
	P2Count        int     `json:"p2_count"`
	OverdueCount   int     `json:"overdue_count"`
	MeetingMinutes int     `json:"meeting_minutes"`
}

// Evaluator computes wellness assessments over the persisted records.
type Evaluator struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	now         func() time.Time
}

// NewEvaluator creates an Evaluator reading from the given persistence layer.
func NewEvaluator(persist persistence.Persistence, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		persistence: persist,
		logger:      logger.With("module", "wellness"),
		now:         time.Now,
	}
}

// Assess computes the wellness score, its contributing factors, and
// recommendations for the worst of them.
func (e *Evaluator) Assess(ctx context.Context) (*Assessment, error) {
	now := e.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	openTasks, err := e.persistence.TaskRepository().ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open tasks: %w", err)
	}

	followups, err := e.persistence.FollowupRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list followups: %w", err)
	}

	meetings, err := e.persistence.MeetingRepository().ListBetween(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}

	backlog, err := e.persistence.WorkItemRepository().ListEligible(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}

	p0Count := 0
	overdueCount := 0

	for _, task := range openTasks {
		if task.Priority == models.PriorityP0 {
			p0Count++
		}

		if task.DueDate != nil && task.DueDate.Before(now) {
			overdueCount++
		}
	}

	criticalFollowups := 0

	for _, followup := range followups {
		if followup.Severity == models.SeverityCritical || followup.Severity == models.SeverityHigh {
			criticalFollowups++
		}
	}

	meetingMinutes := 0
	for _, meeting := range meetings {
		meetingMinutes += int(meeting.Duration().Minutes())
	}

	meetingHours := float64(meetingMinutes) / 60
	focusMinutes := longestFocusBlock(meetings, now)

	factors := []Factor{
		{
			Name:   "p0_tasks",
			Value:  p0Count,
			Impact: impactFor("p0_tasks", float64(p0Count)),
			Status: statusFor(float64(p0Count), 1, 2, 3),
			Detail: fmt.Sprintf("%d critical (P0) tasks open", p0Count),
		},
		{
			Name:   "overdue",
			Value:  overdueCount,
			Impact: impactFor("overdue", float64(overdueCount)),
			Status: statusFor(float64(overdueCount), 0, 1, 3),
			Detail: fmt.Sprintf("%d tasks past due date", overdueCount),
		},
		{
			Name:   "meetings",
			Value:  meetingMinutes,
			Impact: impactFor("meetings", meetingHours),
			Status: statusFor(meetingHours, 3, 5, 6),
			Detail: fmt.Sprintf("%.1f hours of meetings today", meetingHours),
		},
		{
			Name:   "focus_time",
			Value:  focusMinutes,
			Impact: focusImpact(focusMinutes),
			Status: focusStatus(focusMinutes),
			Detail: fmt.Sprintf("%d min longest focus block", focusMinutes),
		},
		{
			Name:   "item_backlog",
			Value:  len(backlog),
			Impact: impactFor("item_backlog", float64(len(backlog))),
			Status: statusFor(float64(len(backlog)), 3, 6, 10),
			Detail: fmt.Sprintf("%d unprocessed items pending", len(backlog)),
		},
		{
			Name:   "nudge_pressure",
			Value:  criticalFollowups,
			Impact: impactFor("nudge_pressure", float64(criticalFollowups)),
			Status: statusFor(float64(criticalFollowups), 1, 3, 5),
			Detail: fmt.Sprintf("%d critical/high follow-ups", criticalFollowups),
		},
	}

	totalDeduction := 0
	for _, factor := range factors {
		totalDeduction += factor.Impact
	}

	score := 100 - totalDeduction
	if score < 0 {
		score = 0
	}

	level := scoreToLevel(score)

	assessment := &Assessment{
		Score:           score,
		Level:           level,
		RiskLevel:       riskLevel(score, factors),
		Factors:         factors,
		Summary:         summarize(score, level, factors),
		Recommendations: recommend(factors, score),
		Timestamp:       now,
	}

	e.logger.DebugContext(ctx, "Wellness assessment computed",
		"score", score, "level", level, "risk_level", assessment.RiskLevel)

	return assessment, nil
}

// WorkloadScore computes the task-load score: 15 points per open P0, 8 per
// P1, 3 per P2, 10 per overdue task and 5 per hour of meetings today, capped
// at 100.
func (e *Evaluator) WorkloadScore(ctx context.Context) (*Workload, error) {
	now := e.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	openTasks, err := e.persistence.TaskRepository().ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open tasks: %w", err)
	}

	meetings, err := e.persistence.MeetingRepository().ListBetween(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}

	workload := &Workload{OpenTasks: len(openTasks)}

	for _, task := range openTasks {
		switch task.Priority {
		case models.PriorityP0:
			workload.P0Count++
		case models.PriorityP1:
			workload.P1Count++
		case models.PriorityP2:
			workload.P2Count++
		case models.PriorityP3:
		}

		if task.DueDate != nil && task.DueDate.Before(now) {
			workload.OverdueCount++
		}
	}

	for _, meeting := range meetings {
		workload.MeetingMinutes += int(meeting.Duration().Minutes())
	}

	score := float64(workload.P0Count)*15 +
		float64(workload.P1Count)*8 +
		float64(workload.P2Count)*3 +
		float64(workload.OverdueCount)*10 +
		float64(workload.MeetingMinutes)/60*5
	if score > 100 {
		score = 100
	}

	workload.Score = score

	switch {
	case score >= 80:
		workload.StressLevel = StressCritical
		workload.BurnoutRisk = true
	case score >= 60:
		workload.StressLevel = StressHigh
	case score >= 40:
		workload.StressLevel = StressModerate
	default:
		workload.StressLevel = StressLow
	}

	return workload, nil
}

type band struct {
	limit  float64
	impact int
}

// impactBands map factor values to score deductions: the first band whose
// limit covers the value applies, values past the last band take its impact.
var impactBands = map[string][]band{
	"p0_tasks":       {{1, 5}, {2, 10}, {3, 18}, {4, 25}},
	"overdue":        {{0, 0}, {1, 5}, {3, 12}, {5, 20}},
	"meetings":       {{3, 3}, {5, 8}, {6, 14}, {7, 20}},
	"item_backlog":   {{3, 2}, {6, 5}, {10, 8}, {15, 10}},
	"nudge_pressure": {{1, 2}, {3, 5}, {5, 8}, {7, 10}},
}

func impactFor(factor string, value float64) int {
	bands := impactBands[factor]
	for _, b := range bands {
		if value <= b.limit {
			return b.impact
		}
	}

	return bands[len(bands)-1].impact
}

// focusImpact is inverted: less focus time deducts more.
func focusImpact(minutes int) int {
	switch {
	case minutes >= 90:
		return 0
	case minutes >= 60:
		return 5
	case minutes >= 30:
		return 10
	default:
		return 15
	}
}

func focusStatus(minutes int) string {
	switch {
	case minutes >= 90:
		return StatusGreen
	case minutes >= 60:
		return StatusYellow
	case minutes >= 30:
		return StatusOrange
	default:
		return StatusRed
	}
}

func statusFor(value, green, yellow, orange float64) string {
	switch {
	case value <= green:
		return StatusGreen
	case value <= yellow:
		return StatusYellow
	case value <= orange:
		return StatusOrange
	default:
		return StatusRed
	}
}

func scoreToLevel(score int) string {
	switch {
	case score >= 80:
		return LevelHealthy
	case score >= 60:
		return LevelModerate
	case score >= 40:
		return LevelElevated
	default:
		return LevelCritical
	}
}

func riskLevel(score int, factors []Factor) string {
	redCount := 0
	orangeCount := 0

	for _, factor := range factors {
		switch factor.Status {
		case StatusRed:
			redCount++
		case StatusOrange:
			orangeCount++
		}
	}

	switch {
	case redCount >= 3 || score < 30:
		return StressCritical
	case redCount >= 2 || score < 45:
		return StressHigh
	case redCount >= 1 || orangeCount >= 3 || score < 60:
		return StressModerate
	default:
		return StressLow
	}
}

var factorAdvice = map[string]string{
	"p0_tasks":       "Focus on one P0 task at a time, multitasking increases stress",
	"overdue":        "Address overdue items first, or communicate new deadlines",
	"meetings":       "Consider declining optional meetings or requesting async updates",
	"focus_time":     "Block 60+ minutes for deep work and protect that time",
	"item_backlog":   "Batch process pending items in dedicated slots, not continuously",
	"nudge_pressure": "Delegate or escalate some follow-ups to reduce pressure",
}

const maxRecommendations = 4

func recommend(factors []Factor, score int) []string {
	recs := make([]string, 0, maxRecommendations)

	for _, factor := range factors {
		if factor.Status != StatusOrange && factor.Status != StatusRed {
			continue
		}

		if advice, ok := factorAdvice[factor.Name]; ok {
			recs = append(recs, advice)
		}
	}

	if score < 50 {
		recs = append(recs, "Take a 15-minute break to reset")
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}

	return recs
}

func summarize(score int, level string, factors []Factor) string {
	top := factors[0]
	for _, factor := range factors[1:] {
		if factor.Impact > top.Impact {
			top = factor
		}
	}

	switch level {
	case LevelHealthy:
		return fmt.Sprintf("Workload is balanced with a score of %d/100. Keep up the sustainable pace.", score)
	case LevelModerate:
		return fmt.Sprintf("Manageable workload (score: %d/100). Watch: %s.", score, top.Detail)
	case LevelElevated:
		return fmt.Sprintf("Elevated stress detected (score: %d/100). Main concern: %s.", score, top.Detail)
	default:
		return fmt.Sprintf("High stress alert (score: %d/100). Multiple factors need attention, prioritize self-care.", score)
	}
}

// longestFocusBlock returns the longest meeting-free stretch, in minutes,
// inside the 09:00-17:00 working window of the given day. A day without
// meetings yields the full eight hours; a fully booked one yields zero.
func longestFocusBlock(meetings []*models.Meeting, day time.Time) int {
	if len(meetings) == 0 {
		return 480
	}

	sorted := make([]*models.Meeting, len(meetings))
	copy(sorted, meetings)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ScheduledFor.Before(sorted[j].ScheduledFor)
	})

	workStart := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, day.Location())
	workEnd := time.Date(day.Year(), day.Month(), day.Day(), 17, 0, 0, 0, day.Location())

	longest := time.Duration(0)
	prevEnd := workStart

	for _, meeting := range sorted {
		if gap := meeting.ScheduledFor.Sub(prevEnd); gap > longest {
			longest = gap
		}

		if end := meeting.ScheduledFor.Add(meeting.Duration()); end.After(prevEnd) {
			prevEnd = end
		}
	}

	if gap := workEnd.Sub(prevEnd); gap > longest {
		longest = gap
	}

	if longest < 0 {
		longest = 0
	}

	return int(longest.Minutes())
}
