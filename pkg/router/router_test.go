package router_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/reasoner"
	"github.com/cfreitas/attenda/pkg/reasoner/rulebased"
	"github.com/cfreitas/attenda/pkg/router"
)

// brokenReasoner always fails, forcing the keyword fallback.
type brokenReasoner struct{}

func (brokenReasoner) Classify(_ context.Context, _ string) (reasoner.Classification, error) {
	return reasoner.Classification{}, reasoner.NewError("classify", errors.New("backend down"))
}

func (brokenReasoner) Generate(_ context.Context, _ string) (string, error) {
	return "", reasoner.NewError("generate", errors.New("backend down"))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestRouter_Route(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		item           *models.WorkItem
		wantPipeline   string
		wantConfidence float64
	}{
		{
			name: "email goes to inbox",
			item: &models.WorkItem{ID: "i1", Type: "email", Payload: map[string]any{
				"subject": "Urgent email from finance",
				"body":    "Please reply before EOD.",
			}},
			wantPipeline:   "inbox",
			wantConfidence: 0.7,
		},
		{
			name: "transcript goes to meeting pipeline",
			item: &models.WorkItem{ID: "i2", Type: "transcript", Payload: map[string]any{
				"title":      "Weekly sync",
				"transcript": "Speaker 1: the agenda covers the minutes from last time",
			}},
			wantPipeline:   "meeting",
			wantConfidence: 0.7,
		},
		{
			name: "task update goes to triage",
			item: &models.WorkItem{ID: "i3", Type: "task_update", Payload: map[string]any{
				"text": "New deadline for the migration task",
			}},
			wantPipeline:   "task_triage",
			wantConfidence: 0.7,
		},
		{
			name: "wellness concern",
			item: &models.WorkItem{ID: "i4", Type: "note", Payload: map[string]any{
				"text": "I am worried about burnout on the team",
			}},
			wantPipeline:   "wellness",
			wantConfidence: 0.5,
		},
		{
			name: "empty payload falls back to the item type",
			item: &models.WorkItem{ID: "i5", Type: "email"},
			wantPipeline:   "inbox",
			wantConfidence: 0.5,
		},
	}

	routerUnderTest := router.NewRouter(rulebased.New(), testLogger())

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			decision, err := routerUnderTest.Route(t.Context(), testCase.item)
			require.NoError(t, err)
			assert.Equal(t, testCase.wantPipeline, decision.Pipeline)
			assert.InDelta(t, testCase.wantConfidence, decision.Confidence, 0.001)
		})
	}
}

func TestRouter_Route_LabelWithoutPipeline(t *testing.T) {
	t.Parallel()

	routerUnderTest := router.NewRouter(rulebased.New(), testLogger())

	decision, err := routerUnderTest.Route(t.Context(), &models.WorkItem{
		ID:   "i6",
		Type: "note",
		Payload: map[string]any{
			"text": "Send them a nudge about the overdue contract",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "inbox", decision.Pipeline)
	assert.Contains(t, decision.Reason, "followup")
}

func TestRouter_Route_FallsBackOnReasonerError(t *testing.T) {
	t.Parallel()

	routerUnderTest := router.NewRouter(brokenReasoner{}, testLogger())

	decision, err := routerUnderTest.Route(t.Context(), &models.WorkItem{
		ID:   "i7",
		Type: "email",
		Payload: map[string]any{
			"subject": "Reply to this message",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "inbox", decision.Pipeline)
}

func TestRouter_Route_MalformedItem(t *testing.T) {
	t.Parallel()

	routerUnderTest := router.NewRouter(rulebased.New(), testLogger())

	_, err := routerUnderTest.Route(t.Context(), &models.WorkItem{Payload: map[string]any{"text": "x"}})
	assert.ErrorIs(t, err, models.ErrInvalidWorkItem)

	_, err = routerUnderTest.Route(t.Context(), &models.WorkItem{ID: "i8", Payload: map[string]any{}})
	assert.ErrorIs(t, err, models.ErrInvalidWorkItem)
}
