// Package persistence provides the data storage abstraction layer for
// sessions, approvals, audit records, work items and domain records.
package persistence

import (
	"context"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
)

// Persistence is the storage entry point. Implementations expose one
// repository per record family plus lifecycle hooks.
type Persistence interface {
	CheckpointRepository() CheckpointRepository
	ApprovalRepository() ApprovalRepository
	AuditRepository() AuditRepository
	WorkItemRepository() WorkItemRepository
	TaskRepository() TaskRepository
	FollowupRepository() FollowupRepository
	DraftRepository() DraftRepository
	MeetingRepository() MeetingRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// CheckpointRepository stores execution state snapshots keyed by session ID.
// The engine saves after every step, so Save must replace any previous
// snapshot for the same session.
type CheckpointRepository interface {
	// Save persists the session state, replacing any earlier snapshot.
	Save(ctx context.Context, state *models.ExecutionState) error

	// GetByID retrieves a session snapshot, ErrSessionNotFound when absent.
	GetByID(ctx context.Context, sessionID string) (*models.ExecutionState, error)

	// List returns all known session snapshots.
	List(ctx context.Context) ([]*models.ExecutionState, error)

	// ListByStatus returns the sessions currently in the given status.
	ListByStatus(ctx context.Context, status models.SessionStatus) ([]*models.ExecutionState, error)

	// Delete removes a session snapshot. Deleting an absent session is a no-op.
	Delete(ctx context.Context, sessionID string) error
}

// ApprovalRepository stores deferred actions awaiting human review.
type ApprovalRepository interface {
	// Save persists the action, replacing any earlier record with the same ID.
	Save(ctx context.Context, action *models.PendingAction) error

	// GetByID retrieves an action, ErrActionNotFound when absent.
	GetByID(ctx context.Context, actionID string) (*models.PendingAction, error)

	// List returns all actions regardless of status.
	List(ctx context.Context) ([]*models.PendingAction, error)

	// ListByStatus returns the actions currently in the given status.
	ListByStatus(ctx context.Context, status models.ActionStatus) ([]*models.PendingAction, error)

	// Delete removes an action record. Deleting an absent action is a no-op.
	Delete(ctx context.Context, actionID string) error
}

// AuditRepository is an append-only log of decisions and executions.
type AuditRepository interface {
	// Append stores a new audit record. Records are never updated.
	Append(ctx context.Context, record *models.AuditRecord) error

	// List returns all audit records ordered oldest first.
	List(ctx context.Context) ([]*models.AuditRecord, error)

	// ListByCorrelation returns the records sharing a correlation ID.
	ListByCorrelation(ctx context.Context, correlationID string) ([]*models.AuditRecord, error)
}

// WorkItemRepository stores incoming work items and their processing outcome.
type WorkItemRepository interface {
	// Save persists the item, replacing any earlier record with the same ID.
	Save(ctx context.Context, item *models.WorkItem) error

	// GetByID retrieves an item, ErrItemNotFound when absent.
	GetByID(ctx context.Context, itemID string) (*models.WorkItem, error)

	// List returns all work items.
	List(ctx context.Context) ([]*models.WorkItem, error)

	// ListEligible returns unprocessed items whose backoff window has passed.
	ListEligible(ctx context.Context, now time.Time) ([]*models.WorkItem, error)

	// Delete removes a work item. Deleting an absent item is a no-op.
	Delete(ctx context.Context, itemID string) error
}
