package testing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/deadpool/internal/db"
	"github.com/vvka-141/deadpool/internal/db/manager"
	"github.com/vvka-141/deadpool/internal/logging"
	"github.com/vvka-141/deadpool/internal/testinfra"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		ctx := context.Background()
		container, err := testinfra.StartPostgres(ctx)
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the test server connection string.
// Priority: DEADPOOL_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv("DEADPOOL_TEST_CONN"); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("DEADPOOL_TEST_CONN not set and Docker unavailable: %v", err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString for convenience.
// Returns the test connection string if available, otherwise skips the test.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// TestDatabase is a throwaway database with the deadpool schema applied.
type TestDatabase struct {
	Name   string
	Config *deadpool.ConnectionConfig
}

// NewTestDatabase creates a uniquely named database with the schema applied
// and drops it when the test completes.
func NewTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()

	connString := RequireDatabase(t)
	name := "deadpool_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	CreateTestDB(t, connString, name)
	t.Cleanup(func() { CleanupTestDB(t, connString, name) })

	cfg, err := db.ParseConnectionString(connString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	cfg.Database = name

	pool := GetTestPool(t, cfg)
	if _, err := pool.Exec(context.Background(), Schema); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	return &TestDatabase{Name: name, Config: cfg}
}

// NewManager builds a pool manager for the database. mutate may adjust the
// pool configuration (limits, timeouts) before the pool is built.
func (d *TestDatabase) NewManager(t *testing.T, mutate func(*deadpool.ConnectionConfig), opts ...db.ConnectorOption) *manager.Manager {
	t.Helper()

	cfg := *d.Config
	if mutate != nil {
		mutate(&cfg)
	}

	mgr, err := manager.New(context.Background(), db.NewStandardConnector(&cfg, opts...), &cfg, logging.NewNullLogger())
	if err != nil {
		t.Fatalf("Failed to create pool manager: %v", err)
	}
	t.Cleanup(mgr.Close)
	return mgr
}

// CreateTestDB creates a test database with the given name.
func CreateTestDB(t *testing.T, connString, dbName string) {
	t.Helper()

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect for test DB creation: %v", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{dbName}.Sanitize())); err != nil {
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}
}

// CleanupTestDB drops the test database.
// Safe to call multiple times (uses DROP DATABASE IF EXISTS).
func CleanupTestDB(t *testing.T, connString, dbName string) {
	t.Helper()

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		t.Logf("Warning: Failed to connect for cleanup: %v", err)
		return
	}
	defer conn.Close(ctx)

	query := fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", pgx.Identifier{dbName}.Sanitize())
	if _, err := conn.Exec(ctx, query); err != nil {
		t.Logf("Warning: Failed to drop database %s: %v", dbName, err)
	}
}

// GetTestPool creates a plain pgx pool for assertions that must bypass the code under test.
// The pool is automatically closed when the test completes.
func GetTestPool(t *testing.T, cfg *deadpool.ConnectionConfig) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), db.BuildConnectionString(cfg))
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// TerminateBackends kills every other server connection to the database,
// which makes their next statement fail with SQLSTATE 57P01.
func TerminateBackends(t *testing.T, cfg *deadpool.ConnectionConfig) int {
	t.Helper()

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, db.BuildConnectionString(cfg))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close(ctx)

	var terminated int
	err = conn.QueryRow(ctx, `
		SELECT count(pg_terminate_backend(pid))
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`, cfg.Database).Scan(&terminated)
	if err != nil {
		t.Fatalf("Failed to terminate backends: %v", err)
	}
	return terminated
}
