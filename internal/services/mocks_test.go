package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// errRefused is a connection-class failure.
var errRefused = &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}

// errSyntax is a statement-class failure.
var errSyntax = &pgconn.PgError{Code: "42601", Message: "syntax error"}

// mockPool is a deadpool.Pool whose operations fail with the queued errors
// before succeeding.
type mockPool struct {
	mu         sync.Mutex
	failures   []error
	calls      int
	recreated  int
	recreateFn func() error
	conn       deadpool.PooledConnection
	scan       func(dest ...any) error
	rows       func() deadpool.Rows
	alive      bool
}

func (p *mockPool) next() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if len(p.failures) == 0 {
		return nil
	}
	err := p.failures[0]
	p.failures = p.failures[1:]
	return err
}

func (p *mockPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := p.next(); err != nil {
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (p *mockPool) Query(ctx context.Context, sql string, args ...any) (deadpool.Rows, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	return p.rows(), nil
}

func (p *mockPool) QueryRow(ctx context.Context, sql string, args ...any) deadpool.Row {
	return scanFunc(func(dest ...any) error {
		if err := p.next(); err != nil {
			return err
		}
		if p.scan != nil {
			return p.scan(dest...)
		}
		return nil
	})
}

func (p *mockPool) Acquire(ctx context.Context) (deadpool.PooledConnection, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	return p.conn, nil
}

func (p *mockPool) Recreate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recreated++
	if p.recreateFn != nil {
		return p.recreateFn()
	}
	return nil
}

func (p *mockPool) Ping(ctx context.Context) bool { return p.alive }

func (p *mockPool) Close() {}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// sliceRows serves fixed rows of int64 values; failAt injects a read error.
type sliceRows struct {
	values [][]int64
	pos    int
	failAt int
	err    error
	closed bool
}

func (r *sliceRows) Next() bool {
	if r.failAt > 0 && r.pos+1 == r.failAt {
		r.err = errRefused
		return false
	}
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Scan(dest ...any) error {
	for i, v := range r.values[r.pos-1] {
		*dest[i].(*int64) = v
	}
	return nil
}

func (r *sliceRows) Err() error { return r.err }
func (r *sliceRows) Close()     { r.closed = true }

// mockConn is a deadpool.PooledConnection handing out one mockTx.
type mockConn struct {
	tx       *mockTx
	beginErr error
	released int
}

func (c *mockConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("use the transaction")
}

func (c *mockConn) Query(context.Context, string, ...any) (deadpool.Rows, error) {
	return nil, errors.New("use the transaction")
}

func (c *mockConn) QueryRow(context.Context, string, ...any) deadpool.Row {
	return scanFunc(func(...any) error { return errors.New("use the transaction") })
}

func (c *mockConn) Begin(context.Context) (deadpool.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return c.tx, nil
}

func (c *mockConn) Release() { c.released++ }

// mockTx records statements. Results are looked up by a substring of the SQL.
type mockTx struct {
	statements  []string
	args        [][]any
	execErr     map[string]error
	rowValues   map[string]int64
	rowErr      map[string]error
	commitErr   error
	committed   bool
	rolledBack  bool
	rollbackCtx context.Context
}

func newMockTx() *mockTx {
	return &mockTx{
		execErr:   map[string]error{},
		rowValues: map[string]int64{},
		rowErr:    map[string]error{},
	}
}

func (t *mockTx) record(sql string, args []any) string {
	sql = strings.Join(strings.Fields(sql), " ")
	t.statements = append(t.statements, sql)
	t.args = append(t.args, args)
	return sql
}

func lookup[V any](m map[string]V, sql string) (V, bool) {
	for k, v := range m {
		if strings.Contains(sql, k) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func (t *mockTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	sql = t.record(sql, args)
	if err, ok := lookup(t.execErr, sql); ok {
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *mockTx) Query(context.Context, string, ...any) (deadpool.Rows, error) {
	return nil, errors.New("not supported")
}

func (t *mockTx) QueryRow(_ context.Context, sql string, args ...any) deadpool.Row {
	sql = t.record(sql, args)
	return scanFunc(func(dest ...any) error {
		if err, ok := lookup(t.rowErr, sql); ok {
			return err
		}
		v, _ := lookup(t.rowValues, sql)
		*dest[0].(*int64) = v
		return nil
	})
}

func (t *mockTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *mockTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	t.rollbackCtx = ctx
	return nil
}

// noWait skips backoff delays and records them.
type noWait struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *noWait) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delays = append(w.delays, d)
	return ctx.Err()
}

// recordingLogger keeps every formatted line.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Verbose(format string, args ...interface{}) { l.add("VERBOSE", format, args...) }
func (l *recordingLogger) Info(format string, args ...interface{})    { l.add("INFO", format, args...) }
func (l *recordingLogger) Error(format string, args ...interface{})   { l.add("ERROR", format, args...) }

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
