package pipelines_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/pipelines"
	"github.com/cfreitas/attenda/pkg/wellness"
)

func TestWellness_HighRiskProposesRecoveryBreak(t *testing.T) {
	t.Parallel()

	rig := newRig(t)
	ctx := t.Context()

	overdue := time.Now().Add(-24 * time.Hour)
	for i := range 4 {
		require.NoError(t, rig.persist.TaskRepository().Save(ctx, &models.Task{
			ID:       "task-" + strconv.Itoa(i),
			Title:    "firefighting " + strconv.Itoa(i),
			Priority: models.PriorityP0,
			Status:   models.TaskStatusOpen,
			DueDate:  &overdue,
		}))
	}

	final := rig.run(t, pipelines.WellnessName, &models.WorkItem{
		ID:   "item-wellness",
		Type: "wellness",
	})

	assert.Equal(t, models.SessionStatusAwaitingApproval, final.Status)
	assert.Equal(t, 1, final.Iteration)

	assessment, ok := final.Context["assessment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 48, assessment["score"])
	assert.Equal(t, wellness.LevelElevated, assessment["level"])
	assert.Equal(t, wellness.StressHigh, assessment["risk_level"])

	pressured, ok := assessment["pressure_factors"].([]any)
	require.True(t, ok)
	assert.Len(t, pressured, 2, "p0 pile and overdue pile should both read red")

	recommendations, ok := final.Context["recommendations"].([]any)
	require.True(t, ok)
	assert.Len(t, recommendations, 3)
	assert.Contains(t, recommendations, "Take a 15-minute break to reset")

	require.Len(t, final.PendingApprovals, 1)
	assert.Equal(t, "schedule_meeting", final.PendingApprovals[0].ActionType)

	queued, err := rig.persist.ApprovalRepository().GetByID(ctx, final.PendingApprovals[0].ActionID)
	require.NoError(t, err)
	assert.Equal(t, "Recovery break", queued.Payload["title"])

	// Scheduling waits for approval, nothing lands on the calendar yet.
	meetings, err := rig.persist.MeetingRepository().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, meetings)
}

func TestWellness_HealthyBaselineCompletes(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	final := rig.run(t, pipelines.WellnessName, &models.WorkItem{
		ID:   "item-wellness-ok",
		Type: "wellness",
	})

	assert.Equal(t, models.SessionStatusCompleted, final.Status)
	assert.Equal(t, 1, final.Iteration)
	assert.Empty(t, final.ActionsTaken)
	assert.Empty(t, final.PendingApprovals)

	assessment, ok := final.Context["assessment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 88, assessment["score"])
	assert.Equal(t, wellness.LevelHealthy, assessment["level"])
	assert.Equal(t, wellness.StressLow, assessment["risk_level"])
	assert.Empty(t, assessment["pressure_factors"])
	assert.Empty(t, final.Context["recommendations"])
}
