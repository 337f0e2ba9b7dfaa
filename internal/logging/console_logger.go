package logging

import (
	"io"
	"os"
	"time"

	pgxzero "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// ConsoleLogger writes human-readable log lines to stderr.
// Safe for concurrent use by multiple goroutines.
type ConsoleLogger struct {
	verbose bool
	log     zerolog.Logger
}

// NewConsoleLogger creates a new ConsoleLogger.
// If verbose is true, Verbose() calls will produce output.
// If verbose is false, Verbose() calls are no-ops.
// Colors are used only when stderr is a terminal.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	color := term.IsTerminal(int(os.Stderr.Fd()))
	return NewWriterLogger(os.Stderr, verbose, color)
}

// NewWriterLogger creates a ConsoleLogger writing to w.
func NewWriterLogger(w io.Writer, verbose, color bool) *ConsoleLogger {
	output := zerolog.ConsoleWriter{
		Out:        zerolog.SyncWriter(w),
		NoColor:    !color,
		TimeFormat: time.TimeOnly,
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return &ConsoleLogger{
		verbose: verbose,
		log:     zerolog.New(output).Level(level).With().Timestamp().Logger(),
	}
}

// Verbose logs detailed diagnostic information if verbose mode is enabled.
func (l *ConsoleLogger) Verbose(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.log.Debug().Msgf(format, args...)
}

// Info logs informational messages about normal operations.
func (l *ConsoleLogger) Info(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

// Error logs error messages.
func (l *ConsoleLogger) Error(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

// IsVerbose reports whether debug output is enabled.
func (l *ConsoleLogger) IsVerbose() bool {
	return l.verbose
}

// NewQueryTracer returns a pgx tracer logging every statement, its arguments
// and duration through l at debug level.
func NewQueryTracer(l *ConsoleLogger) pgx.QueryTracer {
	return &tracelog.TraceLog{
		Logger:   pgxzero.NewLogger(l.log.With().Str("component", "pgx").Logger()),
		LogLevel: tracelog.LogLevelDebug,
	}
}
