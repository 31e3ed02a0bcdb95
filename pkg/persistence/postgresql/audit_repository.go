package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// AuditRepository handles audit record database operations. Records are
// append only; there is no update or delete path.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append stores a new audit record.
func (r *AuditRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return persistence.NewStoreError("Append", record.ID, fmt.Errorf("failed to marshal record: %w", err))
	}

	query := `
		INSERT INTO audit_records (id, correlation_id, data, recorded_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.CorrelationID,
		recordJSON,
		record.Timestamp,
	)
	if err != nil {
		return persistence.NewStoreError("Append", record.ID, err)
	}

	return nil
}

// List returns all audit records ordered oldest first.
func (r *AuditRepository) List(ctx context.Context) ([]*models.AuditRecord, error) {
	query := `SELECT data FROM audit_records ORDER BY recorded_at`

	records, err := queryRecords[models.AuditRecord](ctx, r.db, r.logger, query)
	if err != nil {
		return nil, persistence.NewStoreError("List", "audit", err)
	}

	return records, nil
}

// ListByCorrelation returns the records sharing a correlation ID.
func (r *AuditRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]*models.AuditRecord, error) {
	query := `SELECT data FROM audit_records WHERE correlation_id = $1 ORDER BY recorded_at`

	records, err := queryRecords[models.AuditRecord](ctx, r.db, r.logger, query, correlationID)
	if err != nil {
		return nil, persistence.NewStoreError("ListByCorrelation", correlationID, err)
	}

	return records, nil
}
