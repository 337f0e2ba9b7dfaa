package testing

import (
	"context"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

// StatementCapture is a pgx.QueryTracer that records every statement sent
// over the connections it is attached to, together with its outcome.
type StatementCapture struct {
	mu         sync.Mutex
	statements []CapturedStatement
}

// CapturedStatement is one traced statement.
type CapturedStatement struct {
	SQL string
	Err error
}

type captureKey struct{}

// NewStatementCapture creates an empty capture.
func NewStatementCapture() *StatementCapture {
	return &StatementCapture{}
}

// TraceQueryStart remembers the statement text until it completes.
func (c *StatementCapture) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, captureKey{}, data.SQL)
}

// TraceQueryEnd records the statement and its error.
func (c *StatementCapture) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	sql, _ := ctx.Value(captureKey{}).(string)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements = append(c.statements, CapturedStatement{SQL: normalizeSQL(sql), Err: data.Err})
}

// Statements returns a copy of the captured statements in completion order.
func (c *StatementCapture) Statements() []CapturedStatement {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]CapturedStatement, len(c.statements))
	copy(result, c.statements)
	return result
}

// Count returns how many captured statements start with prefix (case-insensitive).
func (c *StatementCapture) Count(prefix string) int {
	prefix = strings.ToUpper(prefix)
	n := 0
	for _, stmt := range c.Statements() {
		if strings.HasPrefix(strings.ToUpper(stmt.SQL), prefix) {
			n++
		}
	}
	return n
}

// Reset discards all captured statements.
func (c *StatementCapture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements = nil
}

// normalizeSQL collapses whitespace so multi-line statements compare on one line.
func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

var _ pgx.QueryTracer = (*StatementCapture)(nil)
