package deadpool

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the statement surface shared by pools, pooled connections and transactions.
type Querier interface {
	// Exec executes a statement without returning any rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Query executes a statement that returns rows.
	// The caller must Close the returned Rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a query that is expected to return at most one row.
	// Always returns a non-nil Row. Errors are deferred until Row's Scan method is called.
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Row represents a single row returned by QueryRow.
// This interface decouples from pgx.Row.
type Row interface {
	// Scan reads the values from the row into dest values.
	// Returns an error if no row was found or if the scan fails.
	Scan(dest ...any) error
}

// Rows is a forward-only result set. pgx.Rows satisfies it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Tx is a database transaction bound to one pooled connection.
type Tx interface {
	Querier

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// PooledConnection represents a connection acquired from a pool.
// The caller must call Release() when done to return it to the pool.
type PooledConnection interface {
	Querier

	// Begin starts a transaction on this connection.
	Begin(ctx context.Context) (Tx, error)

	// Release returns the connection to the pool.
	// After calling Release, the connection should not be used.
	Release()
}

// Pool is the replaceable connection pool owned by the pool manager.
//
// Thread-Safety: implementations are safe for concurrent use. Recreate swaps the
// underlying pool atomically; connections acquired before the swap stay bound to
// the old pool until released.
type Pool interface {
	Querier

	// Acquire blocks until a connection is available, the connect timeout
	// elapses or the queue limit rejects the caller.
	Acquire(ctx context.Context) (PooledConnection, error)

	// Recreate replaces the current pool with a new one built from the same
	// configuration. Closing the old pool is best effort.
	Recreate(ctx context.Context) error

	// Ping reports whether a trivial query succeeds. It never returns an error.
	Ping(ctx context.Context) bool

	// Close tears down the current pool.
	Close()
}

// DataAccess is the retrying boundary exposed to callers.
// A returned error is final; callers must not retry it.
type DataAccess interface {
	Querier

	// GetConnection acquires a connection with retry. Caller must call Release().
	GetConnection(ctx context.Context) (PooledConnection, error)

	// Ping reports database liveness.
	Ping(ctx context.Context) bool
}
