package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// ConnectionConfig holds the endpoint settings of deadpool.yaml.
// Passwords and client secrets are only read from the environment.
type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AppName        string `yaml:"application_name,omitempty"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// PoolConfig sizes the connection pool. Durations use Go syntax ("30s").
type PoolConfig struct {
	ConnectionLimit int    `yaml:"connection_limit"`
	QueueLimit      *int   `yaml:"queue_limit"`
	ConnectTimeout  string `yaml:"connect_timeout"`
	KeepAliveDelay  string `yaml:"keepalive_delay"`
}

// RetryConfig tunes the retrying executor. RecreateAfter is a pointer so that
// an explicit 0 (never recreate the pool) differs from an absent setting.
type RetryConfig struct {
	MaxAttempts   int    `yaml:"max_attempts"`
	InitialDelay  string `yaml:"initial_delay"`
	MaxDelay      string `yaml:"max_delay"`
	RecreateAfter *int   `yaml:"recreate_after"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Pool       PoolConfig       `yaml:"pool"`
	Retry      RetryConfig      `yaml:"retry"`
	Deadline   string           `yaml:"deadline"`
}

const ConfigFileName = "deadpool.yaml"

func Load(dir string) (*ProjectConfig, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}
	return &cfg, nil
}

// LoadOptional is Load without the not-found error: a missing file yields an empty config.
func LoadOptional(dir string) (*ProjectConfig, error) {
	cfg, err := Load(dir)
	if errors.Is(err, ErrConfigNotFound) {
		return &ProjectConfig{}, nil
	}
	return cfg, err
}

// ParseDuration parses a duration setting, returning fallback for an empty value.
func ParseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, value)
	}
	return d, nil
}
