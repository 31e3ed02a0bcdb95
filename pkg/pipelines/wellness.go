package pipelines

import (
	"context"
	"fmt"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/pipeline"
	"github.com/cfreitas/attenda/pkg/wellness"
)

// Wellness builds the wellness pipeline: one assessment pass followed by
// recommendations. At high stress risk it proposes a recovery break, which
// goes through the approval gateway like any scheduled meeting.
func Wellness(deps Deps) *pipeline.Definition {
	return &pipeline.Definition{
		Name:          WellnessName,
		Start:         "evaluate",
		MaxIterations: 1,
		Steps: map[string]pipeline.StepFn{
			"evaluate":  deps.evaluateWellness,
			"recommend": deps.recommendWellness,
		},
		Edges: map[string]pipeline.Edge{
			"evaluate": {Next: "recommend"},
		},
	}
}

// evaluateWellness runs the full assessment and keeps the pressured factors
// in the session context.
func (d Deps) evaluateWellness(ctx context.Context, _ *models.ExecutionState) (*models.StepDelta, error) {
	assessment, err := d.Wellness.Assess(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to assess wellness: %w", err)
	}

	pressured := make([]any, 0, len(assessment.Factors))

	for _, factor := range assessment.Factors {
		if factor.Status != wellness.StatusOrange && factor.Status != wellness.StatusRed {
			continue
		}

		pressured = append(pressured, map[string]any{
			"name":   factor.Name,
			"status": factor.Status,
			"detail": factor.Detail,
		})
	}

	return &models.StepDelta{
		Context: map[string]any{"assessment": map[string]any{
			"score":            assessment.Score,
			"level":            assessment.Level,
			"risk_level":       assessment.RiskLevel,
			"summary":          assessment.Summary,
			"recommendations":  assessment.Recommendations,
			"pressure_factors": pressured,
		}},
		Reasoning:        []string{assessment.Summary},
		AdvanceIteration: true,
	}, nil
}

// recommendWellness surfaces the assessment's recommendations and, at high
// or critical risk, proposes a fifteen-minute recovery break.
func (d Deps) recommendWellness(ctx context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	assessment := stateMap(state, "assessment")
	riskLevel := mapString(assessment, "risk_level")
	recommendations := mapSlice(assessment, "recommendations")

	delta := &models.StepDelta{
		Context: map[string]any{"recommendations": recommendations},
		Reasoning: []string{fmt.Sprintf("Issued %d recommendations at %s risk",
			len(recommendations), riskLevel)},
	}

	if riskLevel == wellness.StressHigh || riskLevel == wellness.StressCritical {
		d.dispatch(ctx, state, delta, plannedAction{
			Type:   "schedule_meeting",
			Reason: fmt.Sprintf("%s stress risk, proposing a recovery break", riskLevel),
			Payload: map[string]any{
				"title":            "Recovery break",
				"duration_minutes": float64(15),
			},
		})
	}

	if len(state.PendingApprovals) > 0 || len(delta.Approvals) > 0 {
		delta.Status = models.SessionStatusAwaitingApproval
	}

	return delta, nil
}
