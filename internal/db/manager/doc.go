// Package manager owns the process-wide PostgreSQL connection pool.
//
// The Manager hands out pooled connections, answers liveness probes and can
// replace its pool wholesale when the retrying executor decides the current
// one is stale:
//   - Acquire blocks for a connection, bounded by the connect timeout
//   - Recreate builds a fresh pool and swaps it in atomically
//   - Ping runs SELECT 1 and reports success as a bool
//
// Connections acquired before a Recreate stay valid until released; the old
// pool is closed in the background once they are returned.
//
// # Example Usage
//
//	connector, _ := db.NewConnector(cfg)
//	mgr, err := manager.New(ctx, connector, cfg, logger)
//	defer mgr.Close()
//
//	conn, err := mgr.Acquire(ctx)
//	defer conn.Release()
//
// # Thread Safety
//
// Manager is safe for concurrent use.
package manager
