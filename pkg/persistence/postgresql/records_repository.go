package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// TaskRepository handles task database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Save persists the task, replacing any earlier record with the same ID.
func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	task.UpdatedAt = now

	taskJSON, err := json.Marshal(task)
	if err != nil {
		return persistence.NewStoreError("Save", task.ID, fmt.Errorf("failed to marshal task: %w", err))
	}

	query := `
		INSERT INTO tasks (id, status, priority, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		string(task.Status),
		string(task.Priority),
		taskJSON,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", task.ID, err)
	}

	return nil
}

// GetByID retrieves a task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*models.Task, error) {
	query := `SELECT data FROM tasks WHERE id = $1`

	task, err := getRecord[models.Task](ctx, r.db, query, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", taskID, persistence.ErrTaskNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", taskID, err)
	}

	return task, nil
}

// List returns all tasks.
func (r *TaskRepository) List(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT data FROM tasks ORDER BY created_at`

	tasks, err := queryRecords[models.Task](ctx, r.db, r.logger, query)
	if err != nil {
		return nil, persistence.NewStoreError("List", "tasks", err)
	}

	return tasks, nil
}

// ListOpen returns tasks that are not done yet.
func (r *TaskRepository) ListOpen(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT data FROM tasks WHERE status != $1 ORDER BY created_at`

	tasks, err := queryRecords[models.Task](ctx, r.db, r.logger, query, string(models.TaskStatusDone))
	if err != nil {
		return nil, persistence.NewStoreError("ListOpen", "tasks", err)
	}

	return tasks, nil
}

// FollowupRepository handles followup database operations.
type FollowupRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFollowupRepository creates a new followup repository.
func NewFollowupRepository(db *sql.DB, logger *slog.Logger) *FollowupRepository {
	return &FollowupRepository{db: db, logger: logger}
}

// Save persists the followup, replacing any earlier record with the same ID.
func (r *FollowupRepository) Save(ctx context.Context, followup *models.Followup) error {
	if followup.CreatedAt.IsZero() {
		followup.CreatedAt = time.Now().UTC()
	}

	followupJSON, err := json.Marshal(followup)
	if err != nil {
		return persistence.NewStoreError("Save", followup.ID, fmt.Errorf("failed to marshal followup: %w", err))
	}

	query := `
		INSERT INTO followups (id, data, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data
	`

	_, err = r.db.ExecContext(ctx, query, followup.ID, followupJSON, followup.CreatedAt)
	if err != nil {
		return persistence.NewStoreError("Save", followup.ID, err)
	}

	return nil
}

// List returns all followups.
func (r *FollowupRepository) List(ctx context.Context) ([]*models.Followup, error) {
	query := `SELECT data FROM followups ORDER BY created_at`

	followups, err := queryRecords[models.Followup](ctx, r.db, r.logger, query)
	if err != nil {
		return nil, persistence.NewStoreError("List", "followups", err)
	}

	return followups, nil
}

// DraftRepository handles draft database operations.
type DraftRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDraftRepository creates a new draft repository.
func NewDraftRepository(db *sql.DB, logger *slog.Logger) *DraftRepository {
	return &DraftRepository{db: db, logger: logger}
}

// Save persists the draft, replacing any earlier record with the same ID.
func (r *DraftRepository) Save(ctx context.Context, draft *models.Draft) error {
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}

	draftJSON, err := json.Marshal(draft)
	if err != nil {
		return persistence.NewStoreError("Save", draft.ID, fmt.Errorf("failed to marshal draft: %w", err))
	}

	query := `
		INSERT INTO drafts (id, sent, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			sent = EXCLUDED.sent,
			data = EXCLUDED.data
	`

	_, err = r.db.ExecContext(ctx, query, draft.ID, draft.Sent, draftJSON, draft.CreatedAt)
	if err != nil {
		return persistence.NewStoreError("Save", draft.ID, err)
	}

	return nil
}

// GetByID retrieves a draft by its ID.
func (r *DraftRepository) GetByID(ctx context.Context, draftID string) (*models.Draft, error) {
	query := `SELECT data FROM drafts WHERE id = $1`

	draft, err := getRecord[models.Draft](ctx, r.db, query, draftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", draftID, persistence.ErrDraftNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", draftID, err)
	}

	return draft, nil
}

// List returns all drafts.
func (r *DraftRepository) List(ctx context.Context) ([]*models.Draft, error) {
	query := `SELECT data FROM drafts ORDER BY created_at`

	drafts, err := queryRecords[models.Draft](ctx, r.db, r.logger, query)
	if err != nil {
		return nil, persistence.NewStoreError("List", "drafts", err)
	}

	return drafts, nil
}

// MeetingRepository handles meeting database operations.
type MeetingRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMeetingRepository creates a new meeting repository.
func NewMeetingRepository(db *sql.DB, logger *slog.Logger) *MeetingRepository {
	return &MeetingRepository{db: db, logger: logger}
}

// Save persists the meeting, replacing any earlier record with the same ID.
func (r *MeetingRepository) Save(ctx context.Context, meeting *models.Meeting) error {
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = time.Now().UTC()
	}

	meetingJSON, err := json.Marshal(meeting)
	if err != nil {
		return persistence.NewStoreError("Save", meeting.ID, fmt.Errorf("failed to marshal meeting: %w", err))
	}

	query := `
		INSERT INTO meetings (id, scheduled_for, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			scheduled_for = EXCLUDED.scheduled_for,
			data = EXCLUDED.data
	`

	_, err = r.db.ExecContext(ctx, query, meeting.ID, meeting.ScheduledFor, meetingJSON, meeting.CreatedAt)
	if err != nil {
		return persistence.NewStoreError("Save", meeting.ID, err)
	}

	return nil
}

// List returns all meetings.
func (r *MeetingRepository) List(ctx context.Context) ([]*models.Meeting, error) {
	query := `SELECT data FROM meetings ORDER BY scheduled_for`

	meetings, err := queryRecords[models.Meeting](ctx, r.db, r.logger, query)
	if err != nil {
		return nil, persistence.NewStoreError("List", "meetings", err)
	}

	return meetings, nil
}

// ListBetween returns meetings scheduled inside the half-open range [from, to).
func (r *MeetingRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*models.Meeting, error) {
	query := `
		SELECT data
		FROM meetings
		WHERE scheduled_for >= $1 AND scheduled_for < $2
		ORDER BY scheduled_for
	`

	meetings, err := queryRecords[models.Meeting](ctx, r.db, r.logger, query, from, to)
	if err != nil {
		return nil, persistence.NewStoreError("ListBetween", "meetings", err)
	}

	return meetings, nil
}
