package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// PostgreSQL error codes that mean the server connection is unusable.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// Class 08 - Connection Exception
	pgClassConnectionException = "08"

	// Class 53 - Insufficient Resources
	pgCodeTooManyConnections = "53300"

	// Class 57 - Operator Intervention
	pgCodeAdminShutdown    = "57P01"
	pgCodeCrashShutdown    = "57P02"
	pgCodeCannotConnectNow = "57P03"
)

// connectionPatterns are lower-cased fragments of driver messages that
// indicate a broken transport when no typed error is available.
var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"connection lost",
	"connection timeout",
	"connection failure",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"timed out",
	"broken pipe",
	"server closed the connection",
	"unexpected eof",
	"conn closed",
}

// PostgreSQLErrorClassifier maps driver errors to the closed FailureCategory set.
// Only FailureConnection is transient.
type PostgreSQLErrorClassifier struct{}

// NewPostgreSQLErrorClassifier creates a new PostgreSQL error classifier.
func NewPostgreSQLErrorClassifier() *PostgreSQLErrorClassifier {
	return &PostgreSQLErrorClassifier{}
}

// Classify returns the failure category of err.
func (c *PostgreSQLErrorClassifier) Classify(err error) deadpool.FailureCategory {
	if err == nil {
		return deadpool.FailureNone
	}

	// Already classified further down the stack
	var classified *deadpool.Error
	if errors.As(err, &classified) {
		return classified.Category
	}

	switch {
	case errors.Is(err, deadpool.ErrQueueLimit):
		return deadpool.FailureStatement
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, deadpool.ErrNotFound):
		return deadpool.FailureNotFound
	case errors.Is(err, deadpool.ErrValidation):
		return deadpool.FailureValidation
	case errors.Is(err, deadpool.ErrConfiguration):
		return deadpool.FailureConfiguration
	case errors.Is(err, context.Canceled):
		return deadpool.FailureStatement
	}

	// Server-reported errors carry an SQLSTATE; only a few mean the connection is gone.
	// This also covers authentication failures wrapped in a ConnectError.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if c.isConnectionPgError(pgErr) {
			return deadpool.FailureConnection
		}
		return deadpool.FailureStatement
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return deadpool.FailureConnection
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return deadpool.FailureConnection
	}

	if c.isNetworkError(err) || c.isConnectionMessage(err) {
		return deadpool.FailureConnection
	}

	return deadpool.FailureStatement
}

// IsTransient reports whether err is worth retrying.
func (c *PostgreSQLErrorClassifier) IsTransient(err error) bool {
	return c.Classify(err) == deadpool.FailureConnection
}

func (c *PostgreSQLErrorClassifier) isConnectionPgError(pgErr *pgconn.PgError) bool {
	if strings.HasPrefix(pgErr.Code, pgClassConnectionException) {
		return true
	}

	switch pgErr.Code {
	case pgCodeTooManyConnections,
		pgCodeAdminShutdown,
		pgCodeCrashShutdown,
		pgCodeCannotConnectNow:
		return true
	}

	return false
}

// isNetworkError checks for transport-level errors.
func (c *PostgreSQLErrorClassifier) isNetworkError(err error) bool {
	// Unknown hosts are treated like unreachable ones
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}

	return false
}

func (c *PostgreSQLErrorClassifier) isConnectionMessage(err error) bool {
	errMsg := strings.ToLower(err.Error())
	for _, pattern := range connectionPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}

// Wrap classifies err and returns it as a *deadpool.Error for operation op.
// nil stays nil and already classified errors are returned unchanged.
func (c *PostgreSQLErrorClassifier) Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *deadpool.Error
	if errors.As(err, &classified) {
		return err
	}
	return deadpool.NewError(c.Classify(err), op, err)
}

var _ deadpool.ErrorClassifier = (*PostgreSQLErrorClassifier)(nil)
