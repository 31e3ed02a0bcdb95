package pipelines_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/pipeline"
	"github.com/cfreitas/attenda/pkg/pipelines"
)

func TestInbox_UrgentItemSuspendsOnApprovals(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	final := rig.run(t, pipelines.InboxName, &models.WorkItem{
		ID:   "item-urgent",
		Type: "email",
		Payload: map[string]any{
			"subject": "URGENT: API migration blocked",
			"body":    "Can you review the deadline today?",
			"from":    "sam@example.com",
		},
	})

	assert.Equal(t, models.SessionStatusAwaitingApproval, final.Status)
	assert.Equal(t, pipeline.END, final.CurrentStep)
	assert.Equal(t, 4, final.Iteration)

	analysis, ok := final.Context["analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "actionable", analysis["category"])
	assert.Equal(t, "P0", analysis["priority"])
	assert.Equal(t, true, analysis["urgent"])
	assert.Equal(t, true, final.Context["requires_task"])

	// The P0 task and its follow-up wait on the gateway; the reply draft
	// executes straight away.
	require.Len(t, final.PendingApprovals, 2)
	assert.Equal(t, "create_task", final.PendingApprovals[0].ActionType)
	assert.Equal(t, "create_followup", final.PendingApprovals[1].ActionType)

	require.Len(t, final.ActionsTaken, 3)
	assert.True(t, final.ActionsTaken[0].Deferred)
	assert.False(t, final.ActionsTaken[1].Deferred)
	assert.True(t, final.ActionsTaken[2].Deferred)

	drafts, err := rig.persist.DraftRepository().List(t.Context())
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "sam@example.com", drafts[0].To)
	assert.Equal(t, "Re: URGENT: API migration blocked", drafts[0].Subject)
	assert.Equal(t, "item-urgent", drafts[0].InReplyTo)
	assert.False(t, drafts[0].Sent)

	tasks, err := rig.persist.TaskRepository().List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, tasks, "deferred task proposal must not reach the store")

	queued, err := rig.persist.ApprovalRepository().ListByStatus(t.Context(), models.ActionStatusPending)
	require.NoError(t, err)
	assert.Len(t, queued, 2)

	saved, err := rig.persist.CheckpointRepository().GetByID(t.Context(), final.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusAwaitingApproval, saved.Status)
	assert.Equal(t, pipeline.END, saved.CurrentStep)
}

func TestInbox_InformationalItemCompletesWithoutActions(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	final := rig.run(t, pipelines.InboxName, &models.WorkItem{
		ID:   "item-fyi",
		Type: "email",
		Payload: map[string]any{
			"subject": "FYI weekly notes",
			"body":    "All systems nominal.",
		},
	})

	assert.Equal(t, models.SessionStatusCompleted, final.Status)
	assert.Equal(t, 2, final.Iteration)
	assert.Empty(t, final.ActionsTaken)
	assert.Empty(t, final.PendingApprovals)
	assert.NotContains(t, final.Context, "requires_task")

	analysis, ok := final.Context["analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "informational", analysis["category"])
	assert.Equal(t, false, analysis["urgent"])
}

func TestInbox_PreLabeledNotesGetReviewTask(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	final := rig.run(t, pipelines.InboxName, &models.WorkItem{
		ID:   "item-notes",
		Type: "email",
		Payload: map[string]any{
			"subject":  "Team notes",
			"body":     "Notes:\n- revisit the rollout plan\n- decide on the next sync",
			"category": "informational",
		},
	})

	// The item-provided label keeps the bullet list informational, but the
	// discussion points still earn a low-priority review task. P3 work is
	// outside the approval policy, so the session completes.
	assert.Equal(t, models.SessionStatusCompleted, final.Status)
	assert.Equal(t, true, final.Context["requires_task"])
	assert.Empty(t, final.PendingApprovals)

	require.Len(t, final.ActionsTaken, 1)
	assert.Equal(t, "create_task", final.ActionsTaken[0].ActionType)
	assert.False(t, final.ActionsTaken[0].Deferred)

	tasks, err := rig.persist.TaskRepository().ListOpen(t.Context())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Review: Team notes", tasks[0].Title)
	assert.Equal(t, models.PriorityP3, tasks[0].Priority)
	assert.Equal(t, "item-notes", tasks[0].SourceRef)
}

func TestInbox_RelatedTaskEarnsRevisitFollowup(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	require.NoError(t, rig.persist.TaskRepository().Save(t.Context(), &models.Task{
		ID:       "task-migration",
		Title:    "Prepare the API migration runbook",
		Priority: models.PriorityP2,
		Status:   models.TaskStatusOpen,
	}))

	final := rig.run(t, pipelines.InboxName, &models.WorkItem{
		ID:   "item-related",
		Type: "email",
		Payload: map[string]any{
			"subject": "Please review the migration plan",
			"body":    "Need your feedback on the API migration before Thursday.",
			"from":    "lee@example.com",
		},
	})

	assert.Equal(t, models.SessionStatusAwaitingApproval, final.Status)

	related, ok := final.Context["related"].(map[string]any)
	require.True(t, ok)
	relatedTasks, ok := related["tasks"].([]any)
	require.True(t, ok)
	require.Len(t, relatedTasks, 1)

	// Plan: P1 task, reply draft, follow-up, plus the revisit follow-up for
	// the linked task.
	require.Len(t, final.ActionsTaken, 4)

	var revisit *models.PendingAction

	queued, err := rig.persist.ApprovalRepository().ListByStatus(t.Context(), models.ActionStatusPending)
	require.NoError(t, err)

	for _, action := range queued {
		if action.ActionType == "create_followup" && action.Payload["source_ref"] == "task-migration" {
			revisit = action
		}
	}

	require.NotNil(t, revisit, "expected a revisit follow-up pointing at the open task")
	assert.Equal(t, "Revisit task: Prepare the API migration runbook", revisit.Payload["title"])
}
