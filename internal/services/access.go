package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/deadpool/internal/metrics"
	"github.com/vvka-141/deadpool/internal/retry"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// Operation names used in errors, log lines and metric labels.
const (
	opExec          = "exec"
	opQuery         = "query"
	opQueryRow      = "query_row"
	opGetConnection = "get_connection"
)

// RetryingAccess implements deadpool.DataAccess on top of a replaceable pool.
//
// Every operation is retried on connection failures with exponential backoff;
// after the configured failed attempt the pool is recreated before the next
// try. Errors returned are classified (*deadpool.Error) and final.
//
// Thread-Safety: safe for concurrent use.
type RetryingAccess struct {
	pool       deadpool.Pool
	logger     deadpool.Logger
	metrics    *metrics.Recorder
	classifier *retry.PostgreSQLErrorClassifier

	strategy      deadpool.BackoffStrategy
	recreateAfter int
	wait          func(ctx context.Context, d time.Duration) error

	executor *retry.Executor
}

// AccessOption configures a RetryingAccess.
type AccessOption func(*RetryingAccess)

// WithStrategy replaces the default backoff (3 attempts, 1s doubling up to 5s).
func WithStrategy(strategy deadpool.BackoffStrategy) AccessOption {
	return func(a *RetryingAccess) {
		a.strategy = strategy
	}
}

// WithRecreateAfter sets the failed attempt after which the pool is rebuilt.
// Zero disables recreation.
func WithRecreateAfter(attempt int) AccessOption {
	return func(a *RetryingAccess) {
		a.recreateAfter = attempt
	}
}

// WithMetrics records retries and pool recreations in r.
func WithMetrics(r *metrics.Recorder) AccessOption {
	return func(a *RetryingAccess) {
		a.metrics = r
	}
}

// WithWait replaces the backoff timer, for tests.
func WithWait(fn func(ctx context.Context, d time.Duration) error) AccessOption {
	return func(a *RetryingAccess) {
		a.wait = fn
	}
}

// NewRetryingAccess creates the retrying boundary over pool.
// Panics if pool or logger is nil.
func NewRetryingAccess(pool deadpool.Pool, logger deadpool.Logger, opts ...AccessOption) *RetryingAccess {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	a := &RetryingAccess{
		pool:          pool,
		logger:        logger,
		classifier:    retry.NewPostgreSQLErrorClassifier(),
		strategy:      retry.NewExponentialBackoff(deadpool.DefaultRetryMaxAttempts),
		recreateAfter: deadpool.DefaultPoolRecreateAttempt,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.executor = retry.NewExecutor(a.classifier, a.strategy)
	if a.recreateAfter > 0 {
		a.executor = a.executor.WithRecovery(a.recreateAfter, a.recreatePool)
	}
	if a.wait != nil {
		a.executor = a.executor.WithWait(a.wait)
	}
	return a
}

// recreatePool runs between attempts. A failed rebuild keeps the current
// pool; the next attempt reports whatever is still wrong.
func (a *RetryingAccess) recreatePool(ctx context.Context) {
	a.logger.Info("recreating connection pool after %d failed attempts", a.recreateAfter)
	if err := a.pool.Recreate(ctx); err != nil {
		a.logger.Error("pool recreation failed: %v", err)
		return
	}
	a.metrics.PoolRecreated()
}

func (a *RetryingAccess) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	executor := a.executor.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		a.metrics.RetryAttempt(op)
		a.logger.Info("%s: connection failure on attempt %d, retrying in %v: %v", op, attempt, delay, err)
	})
	return a.classifier.Wrap(op, executor.Execute(ctx, fn))
}

// Exec executes a statement, retrying connection failures.
func (a *RetryingAccess) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := a.run(ctx, opExec, func(ctx context.Context) error {
		var err error
		tag, err = a.pool.Exec(ctx, sql, args...)
		return err
	})
	return tag, err
}

// Query starts a statement returning rows, retrying failures to dispatch it.
// Errors reported while reading surface through Rows.Err unretried; use
// CollectRows to retry a query together with reading its result.
func (a *RetryingAccess) Query(ctx context.Context, sql string, args ...any) (deadpool.Rows, error) {
	var rows deadpool.Rows
	err := a.run(ctx, opQuery, func(ctx context.Context) error {
		var err error
		rows, err = a.pool.Query(ctx, sql, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryRow defers the statement until Scan and retries it as a whole.
// A missing row is reported as deadpool.ErrNotFound and not retried.
func (a *RetryingAccess) QueryRow(ctx context.Context, sql string, args ...any) deadpool.Row {
	return rowFunc(func(dest ...any) error {
		return a.run(ctx, opQueryRow, func(ctx context.Context) error {
			return a.pool.QueryRow(ctx, sql, args...).Scan(dest...)
		})
	})
}

// GetConnection acquires a connection, retrying connection failures.
// The caller must Release it.
func (a *RetryingAccess) GetConnection(ctx context.Context) (deadpool.PooledConnection, error) {
	var conn deadpool.PooledConnection
	err := a.run(ctx, opGetConnection, func(ctx context.Context) error {
		var err error
		conn, err = a.pool.Acquire(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Ping reports whether the database answers. It is not retried.
func (a *RetryingAccess) Ping(ctx context.Context) bool {
	return a.pool.Ping(ctx)
}

// CollectRows runs a query and scans every row with scan, retrying the
// query and the read as one unit. scan must not keep references to rows.
func CollectRows[T any](ctx context.Context, a *RetryingAccess, sql string, args []any, scan func(deadpool.Rows) (T, error)) ([]T, error) {
	var result []T
	err := a.run(ctx, opQuery, func(ctx context.Context) error {
		rows, err := a.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				return err
			}
			result = append(result, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error {
	return f(dest...)
}

var _ deadpool.DataAccess = (*RetryingAccess)(nil)
