package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// TokenBasedConnector implements the Connector interface for cloud providers
// that authenticate via short-lived tokens (AWS IAM, Azure Entra ID).
// The token is injected as the password of every new connection, so
// recreated pools never dial with stale credentials.
type TokenBasedConnector struct {
	config       *deadpool.ConnectionConfig
	token        *cachedToken
	opts         *connectorOptions
	providerName string
}

// NewTokenBasedConnector creates a connector that uses a TokenProvider for authentication.
// providerName is used in error/warning messages (e.g., "AWS IAM", "Azure").
func NewTokenBasedConnector(
	config *deadpool.ConnectionConfig,
	tokenProvider TokenProvider,
	providerName string,
	opts ...ConnectorOption,
) *TokenBasedConnector {
	o := buildOptions(opts)
	return &TokenBasedConnector{
		config:       config,
		token:        newCachedToken(tokenProvider, providerName, o.logger),
		opts:         o,
		providerName: providerName,
	}
}

// Connect creates a pool whose connections authenticate with a fresh token.
func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	configWithoutPassword := *c.config
	configWithoutPassword.Password = ""

	poolConfig, err := newPoolConfig(&configWithoutPassword, c.opts)
	if err != nil {
		return nil, err
	}

	poolConfig.BeforeConnect = func(ctx context.Context, connConfig *pgx.ConnConfig) error {
		token, err := c.token.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire %s token: %w", c.providerName, err)
		}
		connConfig.Password = token
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, c.config.Host, c.config.Port, c.config.Database)
	}
	return pool, nil
}
