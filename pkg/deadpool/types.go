package deadpool

import (
	"fmt"
	"time"
)

// ConnectionConfig describes the single database endpoint and the pool built on it.
type ConnectionConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"gte=1,lte=65535"`
	Database string `validate:"required"`
	Username string `validate:"required"`
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Pool sizing and timeouts
	MaxConns       int `validate:"gte=1"`
	QueueLimit     int `validate:"gte=0"`
	ConnectTimeout time.Duration
	KeepAliveDelay time.Duration

	// Additional connection parameters
	AppName          string
	AdditionalParams map[string]string

	// AWSRegion is required for AuthMethodAWSIAM.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name (project:region:instance).
	GoogleInstance string

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// NewConnectionConfig returns a config with pool defaults applied.
func NewConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Port:             DefaultPort,
		AuthMethod:       AuthMethodStandard,
		MaxConns:         DefaultConnectionLimit,
		QueueLimit:       DefaultQueueLimit,
		ConnectTimeout:   DefaultConnectTimeout,
		KeepAliveDelay:   DefaultKeepAliveDelay,
		AdditionalParams: make(map[string]string),
	}
}

// Endpoint returns host:port for log lines and token providers.
func (c *ConnectionConfig) Endpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod converts a configuration value into an AuthMethod.
// An empty value selects standard password authentication.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch s {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam":
		return AuthMethodAWSIAM, nil
	case "google", "google-iam":
		return AuthMethodGoogleIAM, nil
	case "azure", "azure-entra-id":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("unknown auth method %q: %w", s, ErrConfiguration)
	}
}

// ScoreUpdate is one administrator change to a list item.
//
// Bonus holds the raw bonus input; it is parsed leniently so that negative,
// fractional and non-numeric values all resolve to a points value in [0, MaxBonusPoints].
type ScoreUpdate struct {
	ListID int64 `validate:"required,gt=0"`
	Age    *int
	IsDead *bool `validate:"required"`
	Bonus  *string
}

// Points is the breakdown computed for a list item.
type Points struct {
	Base  int
	Bonus int
	Total int
}

// ScoreResult is returned by a successful score update.
type ScoreResult struct {
	BasePoints  int   `json:"basePoints"`
	BonusPoints int   `json:"bonusPoints"`
	TotalPoints int   `json:"totalPoints"`
	TotalScore  int64 `json:"totalScore"`
}

// ListItem is one entry of a user's list.
type ListItem struct {
	ID               int64  `json:"id"`
	UserID           int64  `json:"user_id"`
	Name             string `json:"name"`
	Age              *int   `json:"age"`
	IsDead           bool   `json:"is_dead"`
	BonusPoints      int    `json:"bonus_points"`
	CalculatedPoints int    `json:"calculated_points"`
}

// Standing is a non-admin user together with their list.
type Standing struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	TotalScore int64      `json:"total_score"`
	Role       string     `json:"role"`
	List       []ListItem `json:"list"`
}
