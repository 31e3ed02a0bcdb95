// Package schedulemeeting provides the schedule_meeting action executor.
package schedulemeeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

var (
	// ErrTitleRequired is returned when the payload carries no title.
	ErrTitleRequired = errors.New("missing or invalid 'title' in payload")
	// ErrScheduleInvalid is returned when scheduled_for does not parse as RFC 3339.
	ErrScheduleInvalid = errors.New("invalid 'scheduled_for' in payload")
)

const defaultDurationMinutes = 30

// Executor creates a meeting record from the action payload.
type Executor struct {
	meetings persistence.MeetingRepository
}

// Execute validates the payload and persists a new meeting. Without an
// explicit scheduled_for the meeting lands at the start of the next hour.
func (e *Executor) Execute(ctx context.Context, payload map[string]any, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "schedule_meeting_action")

	title, _ := payload["title"].(string)
	if title == "" {
		return nil, ErrTitleRequired
	}

	scheduledFor := time.Now().UTC().Truncate(time.Hour).Add(time.Hour)

	if raw, ok := payload["scheduled_for"].(string); ok && raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrScheduleInvalid, raw)
		}

		scheduledFor = parsed
	}

	duration := defaultDurationMinutes
	// JSON unmarshals numbers as float64.
	if raw, ok := payload["duration_minutes"].(float64); ok && raw > 0 {
		duration = int(raw)
	}

	var attendees []string

	if raw, ok := payload["attendees"].([]any); ok {
		for _, entry := range raw {
			if attendee, ok := entry.(string); ok && attendee != "" {
				attendees = append(attendees, attendee)
			}
		}
	}

	meeting := &models.Meeting{
		ID:              models.NewID("mtg"),
		Title:           title,
		Attendees:       attendees,
		ScheduledFor:    scheduledFor,
		DurationMinutes: duration,
	}

	err := e.meetings.Save(ctx, meeting)
	if err != nil {
		return nil, fmt.Errorf("failed to save meeting: %w", err)
	}

	logger.InfoContext(ctx, "Meeting scheduled",
		"meeting_id", meeting.ID, "scheduled_for", meeting.ScheduledFor, "duration_minutes", duration)

	return map[string]any{
		"meeting_id":       meeting.ID,
		"title":            meeting.Title,
		"scheduled_for":    meeting.ScheduledFor.Format(time.RFC3339),
		"duration_minutes": meeting.DurationMinutes,
	}, nil
}
