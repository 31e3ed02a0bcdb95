package file

import (
	"context"
	"os"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// TaskRepository persists tasks as JSON files.
type TaskRepository struct {
	store *collection[models.Task]
}

// NewTaskRepository creates a new task repository under root.
func NewTaskRepository(root string) *TaskRepository {
	return &TaskRepository{store: newCollection[models.Task](root, "tasks")}
}

// Save persists the task, replacing any earlier record with the same ID.
func (r *TaskRepository) Save(_ context.Context, task *models.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	task.UpdatedAt = now

	err := r.store.write(task.ID, task)
	if err != nil {
		return persistence.NewStoreError("Save", task.ID, err)
	}

	return nil
}

// GetByID retrieves a task by its ID.
func (r *TaskRepository) GetByID(_ context.Context, taskID string) (*models.Task, error) {
	task, err := r.store.read(taskID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("GetByID", taskID, persistence.ErrTaskNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", taskID, err)
	}

	return task, nil
}

// List returns all tasks.
func (r *TaskRepository) List(_ context.Context) ([]*models.Task, error) {
	tasks, err := r.store.readAll()
	if err != nil {
		return nil, persistence.NewStoreError("List", "tasks", err)
	}

	return tasks, nil
}

// ListOpen returns tasks that are not done yet.
func (r *TaskRepository) ListOpen(ctx context.Context) ([]*models.Task, error) {
	tasks, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	open := make([]*models.Task, 0, len(tasks))

	for _, task := range tasks {
		if task.Status != models.TaskStatusDone {
			open = append(open, task)
		}
	}

	return open, nil
}

// FollowupRepository persists followups as JSON files.
type FollowupRepository struct {
	store *collection[models.Followup]
}

// NewFollowupRepository creates a new followup repository under root.
func NewFollowupRepository(root string) *FollowupRepository {
	return &FollowupRepository{store: newCollection[models.Followup](root, "followups")}
}

// Save persists the followup, replacing any earlier record with the same ID.
func (r *FollowupRepository) Save(_ context.Context, followup *models.Followup) error {
	if followup.CreatedAt.IsZero() {
		followup.CreatedAt = time.Now().UTC()
	}

	err := r.store.write(followup.ID, followup)
	if err != nil {
		return persistence.NewStoreError("Save", followup.ID, err)
	}

	return nil
}

// List returns all followups.
func (r *FollowupRepository) List(_ context.Context) ([]*models.Followup, error) {
	followups, err := r.store.readAll()
	if err != nil {
		return nil, persistence.NewStoreError("List", "followups", err)
	}

	return followups, nil
}

// DraftRepository persists drafts as JSON files.
type DraftRepository struct {
	store *collection[models.Draft]
}

// NewDraftRepository creates a new draft repository under root.
func NewDraftRepository(root string) *DraftRepository {
	return &DraftRepository{store: newCollection[models.Draft](root, "drafts")}
}

// Save persists the draft, replacing any earlier record with the same ID.
func (r *DraftRepository) Save(_ context.Context, draft *models.Draft) error {
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}

	err := r.store.write(draft.ID, draft)
	if err != nil {
		return persistence.NewStoreError("Save", draft.ID, err)
	}

	return nil
}

// GetByID retrieves a draft by its ID.
func (r *DraftRepository) GetByID(_ context.Context, draftID string) (*models.Draft, error) {
	draft, err := r.store.read(draftID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("GetByID", draftID, persistence.ErrDraftNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", draftID, err)
	}

	return draft, nil
}

// List returns all drafts.
func (r *DraftRepository) List(_ context.Context) ([]*models.Draft, error) {
	drafts, err := r.store.readAll()
	if err != nil {
		return nil, persistence.NewStoreError("List", "drafts", err)
	}

	return drafts, nil
}

// MeetingRepository persists meetings as JSON files.
type MeetingRepository struct {
	store *collection[models.Meeting]
}

// NewMeetingRepository creates a new meeting repository under root.
func NewMeetingRepository(root string) *MeetingRepository {
	return &MeetingRepository{store: newCollection[models.Meeting](root, "meetings")}
}

// Save persists the meeting, replacing any earlier record with the same ID.
func (r *MeetingRepository) Save(_ context.Context, meeting *models.Meeting) error {
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = time.Now().UTC()
	}

	err := r.store.write(meeting.ID, meeting)
	if err != nil {
		return persistence.NewStoreError("Save", meeting.ID, err)
	}

	return nil
}

// List returns all meetings.
func (r *MeetingRepository) List(_ context.Context) ([]*models.Meeting, error) {
	meetings, err := r.store.readAll()
	if err != nil {
		return nil, persistence.NewStoreError("List", "meetings", err)
	}

	return meetings, nil
}

// ListBetween returns meetings scheduled inside the half-open range [from, to).
func (r *MeetingRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*models.Meeting, error) {
	meetings, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	inRange := make([]*models.Meeting, 0, len(meetings))

	for _, meeting := range meetings {
		if meeting.ScheduledFor.Before(from) || !meeting.ScheduledFor.Before(to) {
			continue
		}

		inRange = append(inRange, meeting)
	}

	return inRange, nil
}
