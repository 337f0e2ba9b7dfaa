package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vvka-141/deadpool/internal/config"
	"github.com/vvka-141/deadpool/internal/db"
	"github.com/vvka-141/deadpool/internal/db/manager"
	"github.com/vvka-141/deadpool/internal/logging"
	"github.com/vvka-141/deadpool/internal/metrics"
	"github.com/vvka-141/deadpool/internal/retry"
	"github.com/vvka-141/deadpool/internal/services"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// app wires the data-access layer for one command invocation.
type app struct {
	logger   *logging.ConsoleLogger
	project  *config.ProjectConfig
	manager  *manager.Manager
	access   *services.RetryingAccess
	recorder *metrics.Recorder
}

// openApp resolves the configuration and builds the pool and retrying access.
// Pools connect lazily, so an unreachable database is reported by the first
// statement rather than here.
func openApp(ctx context.Context) (*app, error) {
	logger := logging.NewConsoleLogger(rootFlags.verbose)

	project, err := config.LoadOptional(rootFlags.configDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deadpool.ErrConfiguration, err)
	}

	connConfig, err := db.ResolveConnectionConfig(db.LoadFromEnvironment(), project)
	if err != nil {
		return nil, err
	}
	logConnectionVerbose(logger, connConfig)

	accessOpts, err := retryOptions(project.Retry)
	if err != nil {
		return nil, err
	}

	connectorOpts := []db.ConnectorOption{db.WithLogger(logger)}
	if rootFlags.verbose {
		connectorOpts = append(connectorOpts, db.WithQueryTracer(logging.NewQueryTracer(logger)))
	}
	connector, err := db.NewConnector(connConfig, connectorOpts...)
	if err != nil {
		return nil, err
	}

	mgr, err := manager.New(ctx, connector, connConfig, logger)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()
	accessOpts = append(accessOpts, services.WithMetrics(recorder))

	return &app{
		logger:   logger,
		project:  project,
		manager:  mgr,
		access:   services.NewRetryingAccess(mgr, logger, accessOpts...),
		recorder: recorder,
	}, nil
}

// Close releases the pool and writes the metrics file if one was requested.
func (a *app) Close() error {
	a.manager.Close()
	if rootFlags.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(rootFlags.metricsFile, a.recorder.Registry()); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// withApp runs fn with a freshly opened app and always closes it.
func withApp(ctx context.Context, fn func(*app) error) (err error) {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(a)
}

// retryOptions turns the retry section of deadpool.yaml into access options.
// Zero values keep the defaults.
func retryOptions(rc config.RetryConfig) ([]services.AccessOption, error) {
	maxAttempts := deadpool.DefaultRetryMaxAttempts
	if rc.MaxAttempts != 0 {
		maxAttempts = rc.MaxAttempts
	}

	initial, err := config.ParseDuration("retry.initial_delay", rc.InitialDelay, deadpool.DefaultRetryInitialDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deadpool.ErrConfiguration, err)
	}
	maxDelay, err := config.ParseDuration("retry.max_delay", rc.MaxDelay, deadpool.DefaultRetryMaxDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deadpool.ErrConfiguration, err)
	}
	if maxDelay < initial {
		return nil, fmt.Errorf("retry.max_delay %v is shorter than retry.initial_delay %v: %w", maxDelay, initial, deadpool.ErrConfiguration)
	}

	recreateAfter, err := recreateAttempt(rc)
	if err != nil {
		return nil, err
	}

	strategy := retry.NewExponentialBackoff(maxAttempts,
		retry.WithInitialDelay(initial),
		retry.WithMaxDelay(maxDelay),
	)
	return []services.AccessOption{
		services.WithStrategy(strategy),
		services.WithRecreateAfter(recreateAfter),
	}, nil
}

// recreateAttempt returns the failed attempt after which the pool is rebuilt.
// An absent setting keeps the default and 0 disables recreation.
func recreateAttempt(rc config.RetryConfig) (int, error) {
	if rc.RecreateAfter == nil {
		return deadpool.DefaultPoolRecreateAttempt, nil
	}
	if *rc.RecreateAfter < 0 {
		return 0, fmt.Errorf("retry.recreate_after %d must not be negative: %w", *rc.RecreateAfter, deadpool.ErrConfiguration)
	}
	return *rc.RecreateAfter, nil
}

// logConnectionVerbose logs connection details when verbose mode is enabled.
func logConnectionVerbose(logger deadpool.Logger, cfg *deadpool.ConnectionConfig) {
	logger.Verbose("connection resolved: %s", db.RedactConnectionString(cfg))
	logger.Verbose("auth method: %s, pool: max %d connections, queue limit %d, connect timeout %v, keep-alive %v",
		cfg.AuthMethod, cfg.MaxConns, cfg.QueueLimit, cfg.ConnectTimeout, cfg.KeepAliveDelay)
}

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var stdout io.Writer = os.Stdout
