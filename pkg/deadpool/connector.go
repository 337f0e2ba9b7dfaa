package deadpool

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connector builds connection pools for one endpoint.
// Different implementations handle various authentication methods
// (standard credentials, cloud IAM tokens, Cloud SQL dialer).
type Connector interface {
	// Connect creates a new connection pool. Connections are established lazily.
	// The returned pool should be closed by the caller when done.
	Connect(ctx context.Context) (*pgxpool.Pool, error)
}
