// Package createfollowup provides the create_followup action executor.
package createfollowup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

var (
	// ErrTitleRequired is returned when the payload carries no title.
	ErrTitleRequired = errors.New("missing or invalid 'title' in payload")
	// ErrSeverityInvalid is returned when the severity is out of range.
	ErrSeverityInvalid = errors.New("invalid 'severity' in payload")
)

// Executor creates a followup reminder from the action payload.
type Executor struct {
	followups persistence.FollowupRepository
}

// Execute validates the payload and persists a new followup.
func (e *Executor) Execute(ctx context.Context, payload map[string]any, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "create_followup_action")

	title, _ := payload["title"].(string)
	if title == "" {
		return nil, ErrTitleRequired
	}

	severity := models.SeverityMedium
	if raw, ok := payload["severity"].(string); ok && raw != "" {
		switch models.Severity(raw) {
		case models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow:
			severity = models.Severity(raw)
		default:
			return nil, fmt.Errorf("%w: %q", ErrSeverityInvalid, raw)
		}
	}

	dueInDays := 0
	// JSON unmarshals numbers as float64.
	if raw, ok := payload["due_in_days"].(float64); ok {
		dueInDays = int(raw)
	}

	sourceRef, _ := payload["source_ref"].(string)

	followup := &models.Followup{
		ID:        models.NewID("fu"),
		Title:     title,
		DueInDays: dueInDays,
		Severity:  severity,
		SourceRef: sourceRef,
	}

	err := e.followups.Save(ctx, followup)
	if err != nil {
		return nil, fmt.Errorf("failed to save followup: %w", err)
	}

	logger.InfoContext(ctx, "Followup created",
		"followup_id", followup.ID, "severity", string(followup.Severity), "due_in_days", dueInDays)

	return map[string]any{
		"followup_id": followup.ID,
		"title":       followup.Title,
		"severity":    string(followup.Severity),
		"due_in_days": followup.DueInDays,
	}, nil
}
