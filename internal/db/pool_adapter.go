package db

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// NewPooledConnection adapts a connection acquired from a pgxpool to the
// deadpool.PooledConnection interface. Release is idempotent.
func NewPooledConnection(conn *pgxpool.Conn) deadpool.PooledConnection {
	return &pooledConnAdapter{conn: conn}
}

// pooledConnAdapter adapts *pgxpool.Conn to implement deadpool.PooledConnection.
type pooledConnAdapter struct {
	conn *pgxpool.Conn
	once sync.Once
}

// Exec executes a statement on this specific connection.
func (p *pooledConnAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.conn.Exec(ctx, sql, args...)
}

func (p *pooledConnAdapter) Query(ctx context.Context, sql string, args ...any) (deadpool.Rows, error) {
	return p.conn.Query(ctx, sql, args...)
}

func (p *pooledConnAdapter) QueryRow(ctx context.Context, sql string, args ...any) deadpool.Row {
	return p.conn.QueryRow(ctx, sql, args...)
}

// Begin starts a READ COMMITTED transaction on this connection.
func (p *pooledConnAdapter) Begin(ctx context.Context) (deadpool.Tx, error) {
	tx, err := p.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	return &txAdapter{tx: tx}, nil
}

// Release returns the connection to the pool.
func (p *pooledConnAdapter) Release() {
	p.once.Do(p.conn.Release)
}

// txAdapter adapts pgx.Tx to implement deadpool.Tx.
type txAdapter struct {
	tx pgx.Tx
}

func (t *txAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *txAdapter) Query(ctx context.Context, sql string, args ...any) (deadpool.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *txAdapter) QueryRow(ctx context.Context, sql string, args ...any) deadpool.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *txAdapter) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback is a no-op returning pgx.ErrTxClosed after a commit.
func (t *txAdapter) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// Verify adapters implement the interfaces at compile time
var (
	_ deadpool.PooledConnection = (*pooledConnAdapter)(nil)
	_ deadpool.Tx               = (*txAdapter)(nil)
)
