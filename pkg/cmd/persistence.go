package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/weftworks/weft/pkg/persistence"
	"github.com/weftworks/weft/pkg/persistence/file"
	"github.com/weftworks/weft/pkg/persistence/postgresql"
	"github.com/weftworks/weft/pkg/persistence/redis"
)

const redisCheckpointTTL = 7 * 24 * time.Hour

// NewPersistence builds the full persistence layer from a database URL.
// postgres:// selects PostgreSQL, everything else is treated as a file
// system path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

// NewExecutionStore builds the execution checkpoint store. redis://
// selects the Redis store; any other URL reuses the full persistence
// layer it names.
func NewExecutionStore(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.ExecutionRepository, error) {
	switch parseProvider(databaseURL) {
	case "redis", "rediss":
		return redis.NewStore(databaseURL, redisCheckpointTTL)
	default:
		return NewPersistence(ctx, logger, databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
