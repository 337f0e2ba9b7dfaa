package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/deadpool/internal/db"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

const queryPing = "SELECT 1"

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("pool manager is closed")

// poolHandle is one generation of the pool together with its wait queue.
type poolHandle struct {
	pool       *pgxpool.Pool
	generation uint64
	gate       *queueGate
}

// Manager implements deadpool.Pool on top of a replaceable *pgxpool.Pool.
type Manager struct {
	connector deadpool.Connector
	config    *deadpool.ConnectionConfig
	logger    deadpool.Logger

	current atomic.Pointer[poolHandle]
	closed  atomic.Bool

	// mu serializes Recreate and Close
	mu         sync.Mutex
	generation uint64

	// retired tracks background closes of replaced pools
	retired sync.WaitGroup
}

// New builds the initial pool. Connections are dialed lazily, so an
// unreachable server is only reported by the first Acquire.
func New(ctx context.Context, connector deadpool.Connector, config *deadpool.ConnectionConfig, logger deadpool.Logger) (*Manager, error) {
	if connector == nil {
		panic("connector cannot be nil")
	}
	if config == nil {
		panic("config cannot be nil")
	}

	m := &Manager{
		connector: connector,
		config:    config,
		logger:    logger,
	}

	pool, err := connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	m.generation = 1
	m.current.Store(m.newHandle(pool))

	m.verbose("pool created for %s (max %d connections, queue limit %d)", config.Endpoint(), config.MaxConns, config.QueueLimit)
	return m, nil
}

func (m *Manager) newHandle(pool *pgxpool.Pool) *poolHandle {
	return &poolHandle{
		pool:       pool,
		generation: m.generation,
		gate:       newQueueGate(m.config.QueueLimit),
	}
}

// Acquire obtains a connection from the current pool.
//
// The wait is bounded by the configured connect timeout. When a queue limit
// is configured and the pool is saturated with that many callers already
// waiting, deadpool.ErrQueueLimit is returned without waiting.
func (m *Manager) Acquire(ctx context.Context) (deadpool.PooledConnection, error) {
	h := m.current.Load()
	if h == nil {
		return nil, ErrClosed
	}

	stat := h.pool.Stat()
	if !h.gate.enter(stat.AcquiredConns() >= stat.MaxConns()) {
		return nil, fmt.Errorf("%d callers already waiting: %w", h.gate.limit, deadpool.ErrQueueLimit)
	}
	defer h.gate.leave()

	if m.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.ConnectTimeout)
		defer cancel()
	}

	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return db.NewPooledConnection(conn), nil
}

// Exec executes a statement on a connection borrowed for this call only.
func (m *Manager) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	conn, err := m.Acquire(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	defer conn.Release()

	return conn.Exec(ctx, sql, args...)
}

// Query executes a statement returning rows. The borrowed connection is
// released when the returned Rows are closed.
func (m *Manager) Query(ctx context.Context, sql string, args ...any) (deadpool.Rows, error) {
	conn, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		conn.Release()
		return nil, err
	}
	return &releasingRows{Rows: rows, release: conn.Release}, nil
}

// QueryRow defers acquire, query and scan until Scan is called.
func (m *Manager) QueryRow(ctx context.Context, sql string, args ...any) deadpool.Row {
	return rowFunc(func(dest ...any) error {
		conn, err := m.Acquire(ctx)
		if err != nil {
			return err
		}
		defer conn.Release()

		return conn.QueryRow(ctx, sql, args...).Scan(dest...)
	})
}

// Recreate replaces the current pool with one built from the same
// configuration. The previous pool is closed in the background once its
// borrowed connections are released; close errors are ignored.
func (m *Manager) Recreate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}

	pool, err := m.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to recreate pool: %w", err)
	}

	m.generation++
	old := m.current.Swap(m.newHandle(pool))
	if old != nil {
		m.retired.Add(1)
		go func() {
			defer m.retired.Done()
			old.pool.Close()
		}()
	}

	m.info("connection pool recreated for %s (generation %d)", m.config.Endpoint(), m.generation)
	return nil
}

// Ping reports whether SELECT 1 succeeds within the ping timeout.
func (m *Manager) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, deadpool.DefaultPingTimeout)
	defer cancel()

	var one int
	if err := m.QueryRow(ctx, queryPing).Scan(&one); err != nil {
		m.verbose("ping failed: %v", err)
		return false
	}
	return true
}

// Generation returns how many pools this manager has built.
func (m *Manager) Generation() uint64 {
	h := m.current.Load()
	if h == nil {
		return 0
	}
	return h.generation
}

// Waiting returns how many callers are currently inside Acquire on the current pool.
func (m *Manager) Waiting() int {
	h := m.current.Load()
	if h == nil {
		return 0
	}
	return int(h.gate.waiting.Load())
}

// Stat returns statistics of the current pool, or nil once closed.
func (m *Manager) Stat() *pgxpool.Stat {
	h := m.current.Load()
	if h == nil {
		return nil
	}
	return h.pool.Stat()
}

// Close closes the current pool, waits for replaced pools still closing and
// releases the connector's resources. It blocks until all borrowed
// connections are released.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	if h := m.current.Swap(nil); h != nil {
		h.pool.Close()
	}
	m.retired.Wait()

	if closer, ok := m.connector.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			m.verbose("closing connector: %v", err)
		}
	}
}

func (m *Manager) verbose(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Verbose(format, args...)
	}
}

func (m *Manager) info(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Info(format, args...)
	}
}

// queueGate counts callers inside Acquire and rejects new ones once the
// pool is saturated and limit callers are already waiting. limit <= 0 disables it.
type queueGate struct {
	limit   int32
	waiting atomic.Int32
}

func newQueueGate(limit int) *queueGate {
	return &queueGate{limit: int32(limit)}
}

func (g *queueGate) enter(saturated bool) bool {
	n := g.waiting.Add(1)
	if g.limit > 0 && saturated && n > g.limit {
		g.waiting.Add(-1)
		return false
	}
	return true
}

func (g *queueGate) leave() {
	g.waiting.Add(-1)
}

// releasingRows returns the borrowed connection when the rows are closed.
type releasingRows struct {
	deadpool.Rows
	release func()
	once    sync.Once
}

func (r *releasingRows) Close() {
	r.Rows.Close()
	r.once.Do(r.release)
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error {
	return f(dest...)
}

// Verify Manager implements the Pool interface at compile time
var _ deadpool.Pool = (*Manager)(nil)
