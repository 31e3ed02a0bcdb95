// Package persistence provides repositories for the workspace record store.
package persistence

import (
	"context"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
)

// TaskRepository stores tasks created and updated by action executors.
type TaskRepository interface {
	// Save persists the task, replacing any earlier record with the same ID.
	Save(ctx context.Context, task *models.Task) error

	// GetByID retrieves a task, ErrTaskNotFound when absent.
	GetByID(ctx context.Context, taskID string) (*models.Task, error)

	// List returns all tasks.
	List(ctx context.Context) ([]*models.Task, error)

	// ListOpen returns tasks that are not done yet.
	ListOpen(ctx context.Context) ([]*models.Task, error)
}

// FollowupRepository stores followup reminders produced by pipelines.
type FollowupRepository interface {
	// Save persists the followup, replacing any earlier record with the same ID.
	Save(ctx context.Context, followup *models.Followup) error

	// List returns all followups.
	List(ctx context.Context) ([]*models.Followup, error)
}

// DraftRepository stores prepared outgoing messages.
type DraftRepository interface {
	// Save persists the draft, replacing any earlier record with the same ID.
	Save(ctx context.Context, draft *models.Draft) error

	// GetByID retrieves a draft, ErrDraftNotFound when absent.
	GetByID(ctx context.Context, draftID string) (*models.Draft, error)

	// List returns all drafts.
	List(ctx context.Context) ([]*models.Draft, error)
}

// MeetingRepository stores scheduled meetings and their transcripts.
type MeetingRepository interface {
	// Save persists the meeting, replacing any earlier record with the same ID.
	Save(ctx context.Context, meeting *models.Meeting) error

	// List returns all meetings.
	List(ctx context.Context) ([]*models.Meeting, error)

	// ListBetween returns meetings scheduled inside the half-open range [from, to).
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.Meeting, error)
}
