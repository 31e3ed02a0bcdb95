package file

import (
	"context"
	"sort"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// AuditRepository persists audit records as JSON files. Records are append
// only; there is no update or delete path.
type AuditRepository struct {
	store *collection[models.AuditRecord]
}

// NewAuditRepository creates a new audit repository under root.
func NewAuditRepository(root string) *AuditRepository {
	return &AuditRepository{store: newCollection[models.AuditRecord](root, "audit")}
}

// Append stores a new audit record.
func (r *AuditRepository) Append(_ context.Context, record *models.AuditRecord) error {
	err := r.store.write(record.ID, record)
	if err != nil {
		return persistence.NewStoreError("Append", record.ID, err)
	}

	return nil
}

// List returns all audit records ordered oldest first.
func (r *AuditRepository) List(_ context.Context) ([]*models.AuditRecord, error) {
	records, err := r.store.readAll()
	if err != nil {
		return nil, persistence.NewStoreError("List", "audit", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	return records, nil
}

// ListByCorrelation returns the records sharing a correlation ID.
func (r *AuditRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]*models.AuditRecord, error) {
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.AuditRecord, 0, len(records))

	for _, record := range records {
		if record.CorrelationID == correlationID {
			filtered = append(filtered, record)
		}
	}

	return filtered, nil
}
