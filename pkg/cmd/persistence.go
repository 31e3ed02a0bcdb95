package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/persistence/file"
	"github.com/cfreitas/attenda/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence selects the store backend from the database URL scheme.
// postgres:// URLs get the PostgreSQL backend, anything else falls back to
// the file store rooted at the URL path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	switch provider {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
