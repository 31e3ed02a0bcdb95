// Package file provides file-based persistence backed by one JSON file per
// record. It is the default backend for single-process deployments.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/cfreitas/attenda/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	checkpointRepo *CheckpointRepository
	approvalRepo   *ApprovalRepository
	auditRepo      *AuditRepository
	workItemRepo   *WorkItemRepository
	taskRepo       *TaskRepository
	followupRepo   *FollowupRepository
	draftRepo      *DraftRepository
	meetingRepo    *MeetingRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		checkpointRepo: NewCheckpointRepository(cleanRoot),
		approvalRepo:   NewApprovalRepository(cleanRoot),
		auditRepo:      NewAuditRepository(cleanRoot),
		workItemRepo:   NewWorkItemRepository(cleanRoot),
		taskRepo:       NewTaskRepository(cleanRoot),
		followupRepo:   NewFollowupRepository(cleanRoot),
		draftRepo:      NewDraftRepository(cleanRoot),
		meetingRepo:    NewMeetingRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// CheckpointRepository returns the checkpoint repository implementation for file persistence.
func (fp *Persistence) CheckpointRepository() persistence.CheckpointRepository {
	return fp.checkpointRepo
}

// ApprovalRepository returns the approval repository implementation for file persistence.
func (fp *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return fp.approvalRepo
}

// AuditRepository returns the audit repository implementation for file persistence.
func (fp *Persistence) AuditRepository() persistence.AuditRepository {
	return fp.auditRepo
}

// WorkItemRepository returns the work item repository implementation for file persistence.
func (fp *Persistence) WorkItemRepository() persistence.WorkItemRepository {
	return fp.workItemRepo
}

// TaskRepository returns the task repository implementation for file persistence.
func (fp *Persistence) TaskRepository() persistence.TaskRepository {
	return fp.taskRepo
}

// FollowupRepository returns the followup repository implementation for file persistence.
func (fp *Persistence) FollowupRepository() persistence.FollowupRepository {
	return fp.followupRepo
}

// DraftRepository returns the draft repository implementation for file persistence.
func (fp *Persistence) DraftRepository() persistence.DraftRepository {
	return fp.draftRepo
}

// MeetingRepository returns the meeting repository implementation for file persistence.
func (fp *Persistence) MeetingRepository() persistence.MeetingRepository {
	return fp.meetingRepo
}
