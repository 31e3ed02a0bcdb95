package pipelines

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/pipeline"
)

// minAcceptableQuality is the minutes score below which analysis is retried.
const minAcceptableQuality = 0.5

// Markers that make a meeting summary read as stressed.
var stressMarkers = []string{"urgent", "critical", "blocker", "delayed", "issue", "problem"}

// Meeting builds the meeting pipeline: load the transcript, extract minutes
// through the reasoner, re-analyze while the quality score stays under the
// acceptance bar, then propose tasks for the action items and flag wellness
// concerns.
func Meeting(deps Deps) *pipeline.Definition {
	return &pipeline.Definition{
		Name:          MeetingName,
		Start:         "load_transcript",
		MaxIterations: 2,
		Steps: map[string]pipeline.StepFn{
			"load_transcript":  deps.loadTranscript,
			"analyze":          deps.analyzeTranscript,
			"generate_minutes": deps.generateMinutes,
			"quality_check":    deps.qualityCheck,
			"extract_tasks":    deps.extractTasks,
			"flag_concerns":    deps.flagConcerns,
		},
		Edges: map[string]pipeline.Edge{
			"load_transcript":  {Next: "analyze"},
			"analyze":          {Next: "generate_minutes"},
			"generate_minutes": {Next: "quality_check"},
			"quality_check": {
				Condition: func(state *models.ExecutionState) string {
					if mapFloat(state.Context, "quality") < minAcceptableQuality {
						return "analyze"
					}

					return "extract_tasks"
				},
				LoopTarget:   "analyze",
				AcceptTarget: "extract_tasks",
			},
			"extract_tasks": {Next: "flag_concerns"},
		},
	}
}

// loadTranscript resolves the transcript from the item payload or the
// referenced meeting record. Without a transcript the session fails here.
func (d Deps) loadTranscript(ctx context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	payload := itemPayload(state)

	transcript := payloadText(payload, "transcript", "body", "content", "text")
	meetingRef := map[string]any{"title": payloadText(payload, "title", "subject")}

	if meetingID := payloadText(payload, "meeting_id"); meetingID != "" {
		meetings, err := d.Persistence.MeetingRepository().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load meetings: %w", err)
		}

		for _, meeting := range meetings {
			if meeting.ID != meetingID {
				continue
			}

			meetingRef = map[string]any{
				"id":               meeting.ID,
				"title":            meeting.Title,
				"attendees":        meeting.Attendees,
				"duration_minutes": meeting.DurationMinutes,
			}

			if transcript == "" {
				transcript = meeting.Transcript
			}

			break
		}
	}

	if strings.TrimSpace(transcript) == "" {
		return &models.StepDelta{
			Status:    models.SessionStatusError,
			Error:     "no transcript available for meeting item",
			Reasoning: []string{"No transcript in the item payload or the meeting record"},
		}, nil
	}

	return &models.StepDelta{
		Context:   map[string]any{"meeting": meetingRef, "transcript": transcript},
		Reasoning: []string{fmt.Sprintf("Loaded transcript (%d chars)", len(transcript))},
	}, nil
}

// analyzeTranscript asks the reasoner for structured minutes. Backend
// failures and unparseable output degrade to a bare summary so the quality
// check can decide whether a retry is worth it.
func (d Deps) analyzeTranscript(ctx context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	transcript, _ := state.Context["transcript"].(string)

	prompt := "Extract a summary, decisions, action items, risks and dependencies from this meeting.\n\nTranscript:\n" + transcript

	raw, err := d.Reasoner.Generate(ctx, prompt)

	analysis := map[string]any{}

	if err != nil {
		d.Logger.WarnContext(ctx, "Transcript analysis failed", "error", err)

		analysis["summary"] = "Transcript analysis unavailable."
	} else if json.Unmarshal([]byte(raw), &analysis) != nil {
		analysis = map[string]any{"summary": clipLine(raw)}
	}

	return &models.StepDelta{
		Context: map[string]any{"analysis": analysis},
		Reasoning: []string{fmt.Sprintf("Extracted %d decisions, %d action items, %d risks",
			len(mapSlice(analysis, "decisions")),
			len(mapSlice(analysis, "action_items")),
			len(mapSlice(analysis, "risks")))},
	}, nil
}

// generateMinutes assembles the minutes document from the analysis and the
// meeting metadata.
func (d Deps) generateMinutes(_ context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	meeting := stateMap(state, "meeting")
	analysis := stateMap(state, "analysis")

	minutes := map[string]any{
		"meeting_id":   mapString(meeting, "id"),
		"title":        mapString(meeting, "title"),
		"attendees":    mapSlice(meeting, "attendees"),
		"summary":      mapString(analysis, "summary"),
		"decisions":    mapSlice(analysis, "decisions"),
		"action_items": mapSlice(analysis, "action_items"),
		"risks":        mapSlice(analysis, "risks"),
		"dependencies": mapSlice(analysis, "dependencies"),
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}

	return &models.StepDelta{
		Context:   map[string]any{"minutes": minutes},
		Reasoning: []string{"Assembled meeting minutes"},
	}, nil
}

// qualityCheck scores the minutes out of 100: a substantive summary is worth
// 30 points, captured decisions 15, action items 15, risks 10, and up to 30
// more for the share of action items with real content.
func (d Deps) qualityCheck(_ context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	minutes := stateMap(state, "minutes")

	score := 0.0

	switch summary := mapString(minutes, "summary"); {
	case len(summary) > 20:
		score += 30
	case len(summary) > 10:
		score += 15
	}

	if len(mapSlice(minutes, "decisions")) > 0 {
		score += 15
	}

	actionItems := mapSlice(minutes, "action_items")
	if len(actionItems) > 0 {
		score += 15

		substantive := 0

		for _, item := range actionItems {
			if text, ok := item.(string); ok && len(strings.TrimSpace(text)) > 15 {
				substantive++
			}
		}

		score += float64(substantive) / float64(len(actionItems)) * 30
	}

	if len(mapSlice(minutes, "risks")) > 0 {
		score += 10
	}

	quality := score / 100

	return &models.StepDelta{
		Context:          map[string]any{"quality": quality},
		Reasoning:        []string{fmt.Sprintf("Minutes quality %.2f", quality)},
		AdvanceIteration: true,
	}, nil
}

// extractTasks proposes a P1 task per action item. P1 tasks fall under the
// approval policy, so the proposals queue on the gateway.
func (d Deps) extractTasks(ctx context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	minutes := stateMap(state, "minutes")
	meetingID := mapString(minutes, "meeting_id")

	delta := &models.StepDelta{}
	proposed := 0

	for _, raw := range mapSlice(minutes, "action_items") {
		item, ok := raw.(string)
		if !ok || strings.TrimSpace(item) == "" {
			continue
		}

		d.dispatch(ctx, state, delta, plannedAction{
			Type:   "create_task",
			Reason: "meeting action item",
			Payload: map[string]any{
				"title":      clipTitle(item),
				"priority":   string(models.PriorityP1),
				"source_ref": meetingID,
			},
		})

		proposed++
	}

	delta.Reasoning = append(delta.Reasoning,
		fmt.Sprintf("Proposed %d tasks from action items", proposed))

	return delta, nil
}

// flagConcerns scans the outcome for wellness signals: an overlong meeting,
// a pile of risks, or stress wording in the summary. The flags feed the
// cross-pipeline trigger rules.
func (d Deps) flagConcerns(_ context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	meeting := stateMap(state, "meeting")
	minutes := stateMap(state, "minutes")

	concern := false

	var reasons []string

	if duration := mapFloat(meeting, "duration_minutes"); duration > 120 {
		concern = true

		reasons = append(reasons, fmt.Sprintf("meeting ran %d minutes", int(duration)))
	}

	if risks := mapSlice(minutes, "risks"); len(risks) >= 3 {
		concern = true

		reasons = append(reasons, fmt.Sprintf("%d risks raised", len(risks)))
	}

	summary := strings.ToLower(mapString(minutes, "summary"))
	hits := 0

	for _, marker := range stressMarkers {
		if strings.Contains(summary, marker) {
			hits++
		}
	}

	if hits >= 2 {
		concern = true

		reasons = append(reasons, "stress wording in the summary")
	}

	delta := &models.StepDelta{
		Context: map[string]any{
			"wellness_concern": concern,
			"stress_detected":  concern,
		},
	}

	if concern {
		delta.Reasoning = []string{"Wellness concern flagged: " + strings.Join(reasons, ", ")}
	} else {
		delta.Reasoning = []string{"No wellness concerns detected"}
	}

	if len(state.PendingApprovals) > 0 {
		delta.Status = models.SessionStatusAwaitingApproval
	}

	return delta, nil
}
