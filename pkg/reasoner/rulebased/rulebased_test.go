package rulebased_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/reasoner"
	"github.com/cfreitas/attenda/pkg/reasoner/rulebased"
)

func TestReasoner_Classify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		text           string
		wantLabel      string
		wantConfidence float64
	}{
		{
			name:           "two email keywords",
			text:           "Please reply to this email from finance",
			wantLabel:      reasoner.LabelEmail,
			wantConfidence: 0.7,
		},
		{
			name:           "single followup keyword",
			text:           "Send them a nudge about the contract",
			wantLabel:      reasoner.LabelFollowup,
			wantConfidence: 0.5,
		},
		{
			name:           "urgent email compound keyword counts as second hit",
			text:           "There is an urgent email waiting",
			wantLabel:      reasoner.LabelEmail,
			wantConfidence: 0.7,
		},
		{
			name:           "task keywords",
			text:           "What are my tasks for the week",
			wantLabel:      reasoner.LabelTask,
			wantConfidence: 0.7,
		},
		{
			name:           "wellness keyword",
			text:           "I am feeling close to burnout",
			wantLabel:      reasoner.LabelWellness,
			wantConfidence: 0.5,
		},
		{
			name:           "earlier table entry wins on ties",
			text:           "email me the meeting notes",
			wantLabel:      reasoner.LabelEmail,
			wantConfidence: 0.5,
		},
		{
			name:           "no keywords falls back to chat",
			text:           "how is the weather in lisbon",
			wantLabel:      reasoner.LabelChat,
			wantConfidence: 0.3,
		},
	}

	r := rulebased.New()

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := r.Classify(t.Context(), testCase.text)
			require.NoError(t, err)

			assert.Equal(t, testCase.wantLabel, got.Label)
			assert.InDelta(t, testCase.wantConfidence, got.Confidence, 0.001)
		})
	}
}

func TestReasoner_Generate_Minutes(t *testing.T) {
	t.Parallel()

	prompt := `Produce meeting minutes.

Transcript:
Speaker 1 (Maya, Platform): Thanks everyone for joining on short notice.
Speaker 2 (Jonas, Infra): We agreed to ship the beta to the pilot customers next week.
Speaker 1 (Maya, Platform): I'll send the updated rollout schedule tomorrow morning.
Speaker 2 (Jonas, Infra): My main concern is that the vendor migration could slip again.
Speaker 1 (Maya, Platform): We are still waiting for access from the IT security team.`

	r := rulebased.New()

	output, err := r.Generate(t.Context(), prompt)
	require.NoError(t, err)

	var doc struct {
		Summary      string   `json:"summary"`
		Decisions    []string `json:"decisions"`
		ActionItems  []string `json:"action_items"`
		Risks        []string `json:"risks"`
		Dependencies []string `json:"dependencies"`
	}

	require.NoError(t, json.Unmarshal([]byte(output), &doc))

	assert.NotEmpty(t, doc.Summary)
	require.Len(t, doc.Decisions, 1)
	assert.Contains(t, doc.Decisions[0], "agreed to ship the beta")
	require.NotEmpty(t, doc.ActionItems)
	assert.Contains(t, doc.ActionItems[0], "send the updated rollout schedule")
	require.NotEmpty(t, doc.Risks)
	assert.Contains(t, doc.Risks[0], "vendor migration")
	require.NotEmpty(t, doc.Dependencies)
	assert.Contains(t, doc.Dependencies[0], "waiting for access")
}

func TestReasoner_Generate_EmptyTranscript(t *testing.T) {
	t.Parallel()

	r := rulebased.New()

	output, err := r.Generate(t.Context(), "Summarize this.\n\nTranscript:\n")
	require.NoError(t, err)

	var doc struct {
		Summary   string   `json:"summary"`
		Decisions []string `json:"decisions"`
	}

	require.NoError(t, json.Unmarshal([]byte(output), &doc))
	assert.Equal(t, "Meeting discussion captured.", doc.Summary)
	assert.Empty(t, doc.Decisions)
}

func TestReasoner_Generate_Defaults(t *testing.T) {
	t.Parallel()

	r := rulebased.New()

	advice, err := r.Generate(t.Context(), "Reprioritize these open tasks")
	require.NoError(t, err)
	assert.Contains(t, advice, "P0/P1")

	reminder, err := r.Generate(t.Context(), "Write a reminder for this overdue task")
	require.NoError(t, err)
	assert.Contains(t, reminder, "reminder")

	fallback, err := r.Generate(t.Context(), "Tell me something interesting")
	require.NoError(t, err)
	assert.Equal(t, "Acknowledged.", fallback)
}
