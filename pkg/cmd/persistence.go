// Package cmd wires shared infrastructure for the binaries: persistence,
// state store tiers, event bus, and the action registry.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/persistence/memory"
	"github.com/convflow/convflow/pkg/persistence/postgresql"
)

// NewPersistence picks the backend from the URL scheme. Anything that is
// not postgres falls back to the in-memory store, which is for development
// and tests only.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch scheme(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		logger.WarnContext(ctx, "No postgres database configured, using in-memory persistence")

		return memory.NewPersistence(), nil
	}
}

func scheme(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) < 2 {
		return ""
	}

	return parts[0]
}
