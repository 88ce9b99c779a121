package cmd

import (
	"context"
	"log/slog"

	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/persistence/postgresql"
	"github.com/convflow/convflow/pkg/statestore"
)

// NewStateStore assembles the two-tier session state store: Redis as the
// fast tier when configured, and the persistence database (or memory) as
// the durable tier.
func NewStateStore(ctx context.Context, logger *slog.Logger, redisAddr string, p persistence.Persistence) (*statestore.Store, error) {
	var fast statestore.FastStore = statestore.NopFastStore{}

	if redisAddr != "" {
		client, err := statestore.DialRedis(ctx, redisAddr, "", 0)
		if err != nil {
			return nil, err
		}

		fast = statestore.NewRedisStore(client, "")
	} else {
		logger.WarnContext(ctx, "No Redis configured, session state cache tier disabled")
	}

	var durable statestore.DurableStore

	if pg, ok := p.(*postgresql.Persistence); ok {
		durable = statestore.NewPostgresStore(pg.DB())
	} else {
		durable = statestore.NewMemoryStore()
	}

	return statestore.New(fast, durable, logger), nil
}
