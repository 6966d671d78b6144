package sink

import (
	"context"
	"strings"
)

// NewStore returns a Postgres-backed store when a database URL is configured
// and an in-memory store otherwise, so the engine always has a sink to hand
// submissions to.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
