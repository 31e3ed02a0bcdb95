package pipelines_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/pipeline"
	"github.com/cfreitas/attenda/pkg/pipelines"
)

const planningTranscript = `We decided to ship the migration on Friday.
I'll send the rollout plan to the team tomorrow.
The main risk is the tight deadline on the API contract.`

func TestMeeting_TranscriptBecomesMinutesAndTaskProposals(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	final := rig.run(t, pipelines.MeetingName, &models.WorkItem{
		ID:   "item-mtg",
		Type: "meeting",
		Payload: map[string]any{
			"title":      "Rollout planning",
			"transcript": planningTranscript,
		},
	})

	assert.Equal(t, models.SessionStatusAwaitingApproval, final.Status)
	assert.Equal(t, pipeline.END, final.CurrentStep)
	assert.Equal(t, 1, final.Iteration, "good minutes must pass on the first evaluation")
	assert.Equal(t, 1.0, final.Context["quality"])

	minutes, ok := final.Context["minutes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Rollout planning", minutes["title"])

	decisions, ok := minutes["decisions"].([]any)
	require.True(t, ok)
	require.Len(t, decisions, 1)
	assert.Equal(t, "We decided to ship the migration on Friday.", decisions[0])

	actionItems, ok := minutes["action_items"].([]any)
	require.True(t, ok)
	require.Len(t, actionItems, 1)

	// One proposed task per action item, queued as P1 work.
	require.Len(t, final.PendingApprovals, 1)
	assert.Equal(t, "create_task", final.PendingApprovals[0].ActionType)

	queued, err := rig.persist.ApprovalRepository().ListByStatus(t.Context(), models.ActionStatusPending)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "I'll send the rollout plan to the team tomorrow.", queued[0].Payload["title"])
	assert.Equal(t, "P1", queued[0].Payload["priority"])

	assert.Equal(t, false, final.Context["wellness_concern"])

	tasks, err := rig.persist.TaskRepository().List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMeeting_ThinTranscriptRetriesThenAccepts(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	final := rig.run(t, pipelines.MeetingName, &models.WorkItem{
		ID:      "item-thin",
		Type:    "meeting",
		Payload: map[string]any{"transcript": "Thanks everyone."},
	})

	// Two failed quality evaluations exhaust the iteration budget; the walk
	// is forced onto the accept path instead of erroring out.
	assert.Equal(t, models.SessionStatusCompleted, final.Status)
	assert.Equal(t, 2, final.Iteration)
	assert.InDelta(t, 0.3, final.Context["quality"], 0.001)
	assert.Empty(t, final.ActionsTaken)
	assert.Empty(t, final.PendingApprovals)

	minutes, ok := final.Context["minutes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Meeting discussion captured.", minutes["summary"])
}

func TestMeeting_MissingTranscriptFailsTheSession(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	final := rig.run(t, pipelines.MeetingName, &models.WorkItem{
		ID:      "item-empty",
		Type:    "meeting",
		Payload: map[string]any{"title": "Ad hoc sync"},
	})

	assert.Equal(t, models.SessionStatusError, final.Status)
	assert.Contains(t, final.Error, "no transcript")
	assert.Empty(t, final.ActionsTaken)
}

func TestMeeting_LongRecordedMeetingFlagsWellnessConcern(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	require.NoError(t, rig.persist.MeetingRepository().Save(t.Context(), &models.Meeting{
		ID:              "mtg-quarterly",
		Title:           "Quarterly planning",
		Attendees:       []string{"sam@example.com", "lee@example.com"},
		ScheduledFor:    time.Now().UTC().Add(-2 * time.Hour),
		DurationMinutes: 180,
		Transcript:      planningTranscript,
	}))

	final := rig.run(t, pipelines.MeetingName, &models.WorkItem{
		ID:      "item-recorded",
		Type:    "meeting",
		Payload: map[string]any{"meeting_id": "mtg-quarterly"},
	})

	assert.Equal(t, models.SessionStatusAwaitingApproval, final.Status)

	minutes, ok := final.Context["minutes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "mtg-quarterly", minutes["meeting_id"])
	assert.Equal(t, "Quarterly planning", minutes["title"])

	// A three hour meeting trips the duration concern, which feeds the
	// cross-pipeline trigger rules.
	assert.Equal(t, true, final.Context["wellness_concern"])
	assert.Equal(t, true, final.Context["stress_detected"])

	require.Len(t, final.PendingApprovals, 1)

	queued, err := rig.persist.ApprovalRepository().GetByID(t.Context(), final.PendingApprovals[0].ActionID)
	require.NoError(t, err)
	assert.Equal(t, "mtg-quarterly", queued.Payload["source_ref"])
}
