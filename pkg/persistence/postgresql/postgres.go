// Package postgresql provides PostgreSQL persistence for sessions, approvals,
// audit records, work items and the workspace record store.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	checkpointRepo *CheckpointRepository
	approvalRepo   *ApprovalRepository
	auditRepo      *AuditRepository
	workItemRepo   *WorkItemRepository
	taskRepo       *TaskRepository
	followupRepo   *FollowupRepository
	draftRepo      *DraftRepository
	meetingRepo    *MeetingRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:             database,
		logger:         logger,
		checkpointRepo: NewCheckpointRepository(database, logger),
		approvalRepo:   NewApprovalRepository(database, logger),
		auditRepo:      NewAuditRepository(database, logger),
		workItemRepo:   NewWorkItemRepository(database, logger),
		taskRepo:       NewTaskRepository(database, logger),
		followupRepo:   NewFollowupRepository(database, logger),
		draftRepo:      NewDraftRepository(database, logger),
		meetingRepo:    NewMeetingRepository(database, logger),
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// CheckpointRepository returns the checkpoint repository backed by PostgreSQL.
func (p *Persistence) CheckpointRepository() persistence.CheckpointRepository {
	return p.checkpointRepo
}

// ApprovalRepository returns the approval repository backed by PostgreSQL.
func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return p.approvalRepo
}

// AuditRepository returns the audit repository backed by PostgreSQL.
func (p *Persistence) AuditRepository() persistence.AuditRepository {
	return p.auditRepo
}

// WorkItemRepository returns the work item repository backed by PostgreSQL.
func (p *Persistence) WorkItemRepository() persistence.WorkItemRepository {
	return p.workItemRepo
}

// TaskRepository returns the task repository backed by PostgreSQL.
func (p *Persistence) TaskRepository() persistence.TaskRepository {
	return p.taskRepo
}

// FollowupRepository returns the followup repository backed by PostgreSQL.
func (p *Persistence) FollowupRepository() persistence.FollowupRepository {
	return p.followupRepo
}

// DraftRepository returns the draft repository backed by PostgreSQL.
func (p *Persistence) DraftRepository() persistence.DraftRepository {
	return p.draftRepo
}

// MeetingRepository returns the meeting repository backed by PostgreSQL.
func (p *Persistence) MeetingRepository() persistence.MeetingRepository {
	return p.meetingRepo
}
