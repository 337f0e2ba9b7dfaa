package db

import (
	"context"
	"sync"
	"time"

	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// TokenProvider abstracts cloud token acquisition for database authentication.
type TokenProvider interface {
	// GetToken acquires an OAuth/IAM token used as the PostgreSQL password.
	// Returns the token string and its expiry time.
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String returns a human-readable description for logging.
	// Should NOT include secrets.
	String() string
}

// AzurePostgreSQLScope is the OAuth scope for Azure Database for PostgreSQL.
const AzurePostgreSQLScope = "https://ossrdbms-aad.database.windows.net/.default"

const (
	// tokenRefreshMargin renews a cached token this long before it expires.
	tokenRefreshMargin = time.Minute

	// tokenExpiryWarning logs a warning for freshly issued tokens that are already short-lived.
	tokenExpiryWarning = 5 * time.Minute
)

// cachedToken shares one token across all connections dialed by a pool
// and renews it shortly before expiry.
type cachedToken struct {
	provider     TokenProvider
	providerName string
	logger       deadpool.Logger
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresOn time.Time
}

func newCachedToken(provider TokenProvider, providerName string, logger deadpool.Logger) *cachedToken {
	return &cachedToken{
		provider:     provider,
		providerName: providerName,
		logger:       logger,
		now:          time.Now,
	}
}

// Get returns a valid token, fetching a new one when the cached token is missing or about to expire.
func (c *cachedToken) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.expiresOn.Sub(c.now()) > tokenRefreshMargin {
		return c.token, nil
	}

	token, expiresOn, err := c.provider.GetToken(ctx)
	if err != nil {
		return "", err
	}

	remaining := expiresOn.Sub(c.now())
	if c.logger != nil {
		c.logger.Verbose("acquired %s token from %s, valid for %v", c.providerName, c.provider, remaining.Round(time.Second))
		if remaining < tokenExpiryWarning {
			c.logger.Info("Warning: %s token expires in %v", c.providerName, remaining.Round(time.Second))
		}
	}

	c.token = token
	c.expiresOn = expiresOn
	return token, nil
}
