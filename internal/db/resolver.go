package db

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/deadpool/internal/config"
	"github.com/vvka-141/deadpool/internal/validation"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// EnvVars holds the environment variables that configure the database endpoint and pool.
type EnvVars struct {
	DB_HOST      string
	DB_PORT      string
	DB_USER      string
	DB_PASSWORD  string
	DB_NAME      string
	DB_SSLMODE   string
	DATABASE_URL string // Full connection string (Heroku/Rails convention)

	DB_CONNECTION_LIMIT string
	DB_QUEUE_LIMIT      string
	DB_CONNECT_TIMEOUT  string // Go duration or integer milliseconds
	DB_KEEPALIVE_DELAY  string // Go duration or integer milliseconds

	DB_AUTH_METHOD  string
	AWS_REGION      string
	GOOGLE_INSTANCE string

	// Azure Entra ID environment variables (Azure SDK standard names)
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

// LoadFromEnvironment reads EnvVars from the process environment.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		DB_HOST:             os.Getenv("DB_HOST"),
		DB_PORT:             os.Getenv("DB_PORT"),
		DB_USER:             os.Getenv("DB_USER"),
		DB_PASSWORD:         os.Getenv("DB_PASSWORD"),
		DB_NAME:             os.Getenv("DB_NAME"),
		DB_SSLMODE:          os.Getenv("DB_SSLMODE"),
		DATABASE_URL:        os.Getenv("DATABASE_URL"),
		DB_CONNECTION_LIMIT: os.Getenv("DB_CONNECTION_LIMIT"),
		DB_QUEUE_LIMIT:      os.Getenv("DB_QUEUE_LIMIT"),
		DB_CONNECT_TIMEOUT:  os.Getenv("DB_CONNECT_TIMEOUT"),
		DB_KEEPALIVE_DELAY:  os.Getenv("DB_KEEPALIVE_DELAY"),
		DB_AUTH_METHOD:      os.Getenv("DB_AUTH_METHOD"),
		AWS_REGION:          os.Getenv("AWS_REGION"),
		GOOGLE_INSTANCE:     os.Getenv("GOOGLE_INSTANCE"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// HasAzureCredentials returns true if Azure Entra ID environment variables are set.
func (e *EnvVars) HasAzureCredentials() bool {
	return e.AZURE_TENANT_ID != "" || e.AZURE_CLIENT_ID != ""
}

// ResolveConnectionConfig builds the pool configuration with precedence:
//
//  1. DB_* environment variables
//  2. DATABASE_URL
//  3. deadpool.yaml
//  4. Defaults (port 5432, 10 connections, no queue limit, 30s connect timeout, 10s keep-alive)
//
// Missing host, user, database or (for password auth) password is an ErrConfiguration.
// With no explicit auth method, Azure credentials in the environment select Entra ID auth.
func ResolveConnectionConfig(env *EnvVars, projectConfig *config.ProjectConfig) (*deadpool.ConnectionConfig, error) {
	if env == nil {
		env = &EnvVars{}
	}
	if projectConfig == nil {
		projectConfig = &config.ProjectConfig{}
	}

	cfg := deadpool.NewConnectionConfig()
	if err := applyProjectConfig(cfg, projectConfig); err != nil {
		return nil, err
	}

	if env.DATABASE_URL != "" {
		if err := applyDatabaseURL(cfg, env.DATABASE_URL); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}

	if err := applyAuth(cfg, env, projectConfig.Connection.AuthMethod); err != nil {
		return nil, err
	}

	if err := validation.Config(cfg); err != nil {
		return nil, err
	}

	if cfg.AuthMethod == deadpool.AuthMethodStandard && cfg.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required for password authentication: %w", deadpool.ErrConfiguration)
	}

	return cfg, nil
}

func applyProjectConfig(cfg *deadpool.ConnectionConfig, pc *config.ProjectConfig) error {
	conn := pc.Connection
	setString(&cfg.Host, conn.Host)
	setString(&cfg.Username, conn.Username)
	setString(&cfg.Database, conn.Database)
	setString(&cfg.SSLMode, conn.SSLMode)
	setString(&cfg.AppName, conn.AppName)
	setString(&cfg.AWSRegion, conn.AWSRegion)
	setString(&cfg.GoogleInstance, conn.GoogleInstance)
	setString(&cfg.AzureTenantID, conn.AzureTenantID)
	setString(&cfg.AzureClientID, conn.AzureClientID)
	if conn.Port != 0 {
		cfg.Port = conn.Port
	}

	pool := pc.Pool
	if pool.ConnectionLimit != 0 {
		cfg.MaxConns = pool.ConnectionLimit
	}
	if pool.QueueLimit != nil {
		cfg.QueueLimit = *pool.QueueLimit
	}

	var err error
	if cfg.ConnectTimeout, err = config.ParseDuration("pool.connect_timeout", pool.ConnectTimeout, cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("%v: %w", err, deadpool.ErrConfiguration)
	}
	if cfg.KeepAliveDelay, err = config.ParseDuration("pool.keepalive_delay", pool.KeepAliveDelay, cfg.KeepAliveDelay); err != nil {
		return fmt.Errorf("%v: %w", err, deadpool.ErrConfiguration)
	}
	return nil
}

func applyDatabaseURL(cfg *deadpool.ConnectionConfig, databaseURL string) error {
	parsed, err := ParseConnectionString(databaseURL)
	if err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	setString(&cfg.Host, parsed.Host)
	setString(&cfg.Username, parsed.Username)
	setString(&cfg.Password, parsed.Password)
	setString(&cfg.Database, parsed.Database)
	setString(&cfg.SSLMode, parsed.SSLMode)
	setString(&cfg.AppName, parsed.AppName)
	if parsed.Port != deadpool.DefaultPort {
		cfg.Port = parsed.Port
	}
	if parsed.ConnectTimeout != deadpool.DefaultConnectTimeout {
		cfg.ConnectTimeout = parsed.ConnectTimeout
	}
	for k, v := range parsed.AdditionalParams {
		cfg.AdditionalParams[k] = v
	}
	return nil
}

func applyEnv(cfg *deadpool.ConnectionConfig, env *EnvVars) error {
	setString(&cfg.Host, env.DB_HOST)
	setString(&cfg.Username, env.DB_USER)
	setString(&cfg.Password, env.DB_PASSWORD)
	setString(&cfg.Database, env.DB_NAME)
	setString(&cfg.SSLMode, env.DB_SSLMODE)
	setString(&cfg.AWSRegion, env.AWS_REGION)
	setString(&cfg.GoogleInstance, env.GOOGLE_INSTANCE)
	setString(&cfg.AzureTenantID, env.AZURE_TENANT_ID)
	setString(&cfg.AzureClientID, env.AZURE_CLIENT_ID)
	setString(&cfg.AzureClientSecret, env.AZURE_CLIENT_SECRET)

	var err error
	if cfg.Port, err = envInt("DB_PORT", env.DB_PORT, cfg.Port); err != nil {
		return err
	}
	if cfg.MaxConns, err = envInt("DB_CONNECTION_LIMIT", env.DB_CONNECTION_LIMIT, cfg.MaxConns); err != nil {
		return err
	}
	if cfg.QueueLimit, err = envInt("DB_QUEUE_LIMIT", env.DB_QUEUE_LIMIT, cfg.QueueLimit); err != nil {
		return err
	}
	if cfg.ConnectTimeout, err = envDuration("DB_CONNECT_TIMEOUT", env.DB_CONNECT_TIMEOUT, cfg.ConnectTimeout); err != nil {
		return err
	}
	if cfg.KeepAliveDelay, err = envDuration("DB_KEEPALIVE_DELAY", env.DB_KEEPALIVE_DELAY, cfg.KeepAliveDelay); err != nil {
		return err
	}
	return nil
}

func applyAuth(cfg *deadpool.ConnectionConfig, env *EnvVars, projectMethod string) error {
	method := env.DB_AUTH_METHOD
	if method == "" {
		method = projectMethod
	}

	if method == "" {
		if cfg.AzureTenantID != "" || cfg.AzureClientID != "" {
			cfg.AuthMethod = deadpool.AuthMethodAzureEntraID
		}
		return nil
	}

	authMethod, err := deadpool.ParseAuthMethod(strings.ToLower(method))
	if err != nil {
		return err
	}
	cfg.AuthMethod = authMethod
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func envInt(name, value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid $%s value '%s': must be an integer: %w", name, value, deadpool.ErrConfiguration)
	}
	return n, nil
}

// envDuration accepts Go durations ("30s") and bare integers in milliseconds ("30000").
func envDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	if ms, err := strconv.Atoi(value); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("invalid $%s value '%s': must not be negative: %w", name, value, deadpool.ErrConfiguration)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := config.ParseDuration("$"+name, value, fallback)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", err, deadpool.ErrConfiguration)
	}
	return d, nil
}
