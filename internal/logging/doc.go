// Package logging provides concrete implementations of the deadpool.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: zerolog console output on stderr, debug level when verbose
//   - NullLogger: Discards all messages (useful for testing)
//
// NewQueryTracer adapts a ConsoleLogger into a pgx tracer so that every
// statement is logged when verbose output is enabled.
package logging
