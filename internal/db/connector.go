package db

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// DefaultMaxConnIdleTime closes pooled connections that sat unused this long.
const DefaultMaxConnIdleTime = 30 * time.Minute

// ConnectorOption configures pool construction.
type ConnectorOption func(*connectorOptions)

type connectorOptions struct {
	tracer pgx.QueryTracer
	logger deadpool.Logger
}

// WithQueryTracer attaches a pgx query tracer to every connection of the pool.
func WithQueryTracer(tracer pgx.QueryTracer) ConnectorOption {
	return func(o *connectorOptions) {
		o.tracer = tracer
	}
}

// WithLogger routes server notices and credential warnings to logger.
func WithLogger(logger deadpool.Logger) ConnectorOption {
	return func(o *connectorOptions) {
		o.logger = logger
	}
}

func buildOptions(opts []ConnectorOption) *connectorOptions {
	o := &connectorOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// newPoolConfig translates a ConnectionConfig into a pgxpool configuration:
// pool size, connect timeout, a keep-alive dialer, notices and tracing.
func newPoolConfig(config *deadpool.ConnectionConfig, opts *connectorOptions) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(BuildConnectionString(config))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse connection config: %v", deadpool.ErrConfiguration, err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = int32(config.MaxConns)
	}
	poolConfig.MinConns = 0
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime

	poolConfig.ConnConfig.ConnectTimeout = config.ConnectTimeout
	dialer := &net.Dialer{
		Timeout:   config.ConnectTimeout,
		KeepAlive: config.KeepAliveDelay,
	}
	poolConfig.ConnConfig.DialFunc = dialer.DialContext

	if opts.logger != nil {
		logger := opts.logger
		poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
			logger.Verbose("server notice: %s", notice.Message)
		}
	}

	if opts.tracer != nil {
		poolConfig.ConnConfig.Tracer = opts.tracer
	}

	return poolConfig, nil
}

// StandardConnector implements the Connector interface for
// username/password authentication.
type StandardConnector struct {
	config *deadpool.ConnectionConfig
	opts   *connectorOptions
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
func NewStandardConnector(config *deadpool.ConnectionConfig, opts ...ConnectorOption) *StandardConnector {
	return &StandardConnector{
		config: config,
		opts:   buildOptions(opts),
	}
}

// Connect creates a pool. No connection is dialed until the first acquire.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := newPoolConfig(c.config, c.opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, c.config.Host, c.config.Port, c.config.Database)
	}
	return pool, nil
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the ConnectionConfig's AuthMethod.
func NewConnector(config *deadpool.ConnectionConfig, opts ...ConnectorOption) (deadpool.Connector, error) {
	switch config.AuthMethod {
	case deadpool.AuthMethodStandard:
		return NewStandardConnector(config, opts...), nil
	case deadpool.AuthMethodAWSIAM:
		return newAWSConnector(config, opts...)
	case deadpool.AuthMethodGoogleIAM:
		return newGoogleConnector(config, opts...)
	case deadpool.AuthMethodAzureEntraID:
		return newAzureConnector(config, opts...)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, deadpool.ErrConfiguration)
	}
}

// newAWSConnector creates a token-based connector with the AWS IAM token provider.
func newAWSConnector(config *deadpool.ConnectionConfig, opts ...ConnectorOption) (deadpool.Connector, error) {
	tokenProvider, err := NewAWSIAMTokenProvider(config.Endpoint(), config.AWSRegion, config.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS IAM token provider: %w", err)
	}

	return NewTokenBasedConnector(config, tokenProvider, "AWS IAM", opts...), nil
}

// newGoogleConnector creates a GoogleCloudSQLConnector for Google Cloud SQL IAM authentication.
func newGoogleConnector(config *deadpool.ConnectionConfig, opts ...ConnectorOption) (deadpool.Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires GOOGLE_INSTANCE (project:region:instance): %w", deadpool.ErrConfiguration)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires DB_USER: %w", deadpool.ErrConfiguration)
	}

	return NewGoogleCloudSQLConnector(config, config.GoogleInstance, opts...), nil
}

// newAzureConnector creates a token-based connector with the Azure Entra ID token provider.
// If explicit credentials (tenant, client, secret) are provided, uses Service Principal auth.
// Otherwise, falls back to DefaultAzureCredential chain.
func newAzureConnector(config *deadpool.ConnectionConfig, opts ...ConnectorOption) (deadpool.Connector, error) {
	var tokenProvider TokenProvider
	var err error

	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		tokenProvider, err = NewAzureServicePrincipalProvider(
			config.AzureTenantID,
			config.AzureClientID,
			config.AzureClientSecret,
		)
	} else {
		tokenProvider, err = NewAzureDefaultCredentialProvider()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure token provider: %w", err)
	}

	return NewTokenBasedConnector(config, tokenProvider, "Azure", opts...), nil
}

// wrapConnectionError adds a hint to raw pgx connection errors.
// The original error stays reachable through errors.Is/As so classification is unaffected.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf("connection refused to %s (is PostgreSQL running? check DB_HOST/DB_PORT): %w", addr, err)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf("cannot resolve host %q (check DB_HOST and DNS): %w", host, err)

	case strings.Contains(errStr, "password authentication failed"):
		return fmt.Errorf("password authentication failed for database %q (check DB_USER/DB_PASSWORD): %w", database, err)

	case strings.Contains(errStr, "does not exist"):
		return fmt.Errorf("database %q does not exist (check DB_NAME): %w", database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf("connection timed out to %s (server overloaded or packets dropped): %w", addr, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf("too many connections to database %q (lower DB_CONNECTION_LIMIT or raise max_connections): %w", database, err)

	default:
		return fmt.Errorf("failed to connect to database: %w", err)
	}
}
