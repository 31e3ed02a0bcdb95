package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// queryRecords runs a query whose single selected column is a JSONB document
// and unmarshals each row into T.
func queryRecords[T any](ctx context.Context, db *sql.DB, logger *slog.Logger, query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*T, 0)

	for rows.Next() {
		var body []byte

		err := rows.Scan(&body)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		var record T

		err = json.Unmarshal(body, &record)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}

		records = append(records, &record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// getRecord runs a single-row query whose selected column is a JSONB document.
// sql.ErrNoRows passes through untouched for the caller to translate into its
// domain sentinel.
func getRecord[T any](ctx context.Context, db *sql.DB, query string, args ...any) (*T, error) {
	var body []byte

	err := db.QueryRowContext(ctx, query, args...).Scan(&body)
	if err != nil {
		return nil, err
	}

	var record T

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &record, nil
}
