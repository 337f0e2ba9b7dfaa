package deadpool

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Required connection parameters missing or invalid
	ExitConnectionError = 11 // Database unreachable after all retry attempts
	ExitNotFound        = 12 // Referenced record does not exist
	ExitValidationError = 13 // Malformed input rejected before any database work
	ExitStatementError  = 14 // Database rejected the statement
)

const (
	// DefaultPort is the PostgreSQL port used when none is configured.
	DefaultPort = 5432

	// DefaultConnectionLimit is the maximum number of concurrent pool connections.
	DefaultConnectionLimit = 10

	// DefaultQueueLimit of 0 means callers wait for a connection without a cap
	// beyond the connection limit.
	DefaultQueueLimit = 0

	// DefaultConnectTimeout bounds dialing a new connection and waiting for a
	// pooled one.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultKeepAliveDelay is the TCP keep-alive period of pool connections.
	DefaultKeepAliveDelay = 10 * time.Second

	// DefaultRetryMaxAttempts is the total number of attempts made by the
	// retrying executor, the first one included.
	DefaultRetryMaxAttempts = 3

	// DefaultRetryInitialDelay is the wait after the first failed attempt.
	DefaultRetryInitialDelay = 1 * time.Second

	// DefaultRetryMaxDelay caps the wait between attempts.
	DefaultRetryMaxDelay = 5 * time.Second

	// DefaultPoolRecreateAttempt is the failed attempt after which the pool is
	// considered stale and rebuilt before the next try.
	DefaultPoolRecreateAttempt = 2

	// DefaultPingTimeout bounds the liveness probe.
	DefaultPingTimeout = 10 * time.Second

	// DefaultDeadline is stored when no deadline has been configured yet.
	DefaultDeadline = "2025-12-31T23:59:59"

	// DeadlineConfigKey is the config table key holding the deadline.
	DeadlineConfigKey = "deadline_date"

	// MaxBonusPoints is the upper bound of bonus points for a dead list item.
	MaxBonusPoints = 20

	// AdminRole marks users excluded from the standings.
	AdminRole = "admin"
)
