package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/vvka-141/deadpool/internal/metrics"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

type scoreFixture struct {
	tx       *mockTx
	conn     *mockConn
	pool     *mockPool
	recorder *metrics.Recorder
	logger   *recordingLogger
	service  *ScoreService
}

func newScoreFixture() *scoreFixture {
	f := &scoreFixture{tx: newMockTx(), recorder: metrics.NewRecorder(), logger: &recordingLogger{}}
	f.tx.rowValues["SELECT user_id"] = 7
	f.tx.rowValues["SUM(calculated_points)"] = 120
	f.conn = &mockConn{tx: f.tx}
	f.pool = &mockPool{conn: f.conn}

	access := NewRetryingAccess(f.pool, f.logger, WithWait((&noWait{}).wait))
	f.service = NewScoreService(access, f.logger, f.recorder)
	return f
}

func (f *scoreFixture) outcomes(t *testing.T, expected string) {
	t.Helper()
	header := `
# HELP deadpool_score_updates_total Scored-update transactions, by outcome.
# TYPE deadpool_score_updates_total counter
`
	if err := testutil.GatherAndCompare(f.recorder.Registry(), strings.NewReader(header+expected), "deadpool_score_updates_total"); err != nil {
		t.Error(err)
	}
}

func TestApplyScoreUpdate_Applied(t *testing.T) {
	f := newScoreFixture()

	result, err := f.service.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{
		ListID: 3, Age: intPtr(18), IsDead: boolPtr(true), Bonus: strPtr("5"),
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	want := deadpool.ScoreResult{BasePoints: 100, BonusPoints: 5, TotalPoints: 105, TotalScore: 120}
	if *result != want {
		t.Errorf("Expected %+v, got %+v", want, *result)
	}

	wantStatements := []string{"UPDATE lists", "SELECT user_id", "SELECT id FROM users", "SELECT COALESCE(SUM", "UPDATE users"}
	if len(f.tx.statements) != len(wantStatements) {
		t.Fatalf("Expected %d statements, got %v", len(wantStatements), f.tx.statements)
	}
	for i, prefix := range wantStatements {
		if !strings.HasPrefix(f.tx.statements[i], prefix) {
			t.Errorf("Statement %d: expected prefix %q, got %q", i, prefix, f.tx.statements[i])
		}
	}

	// age, is_dead, calculated_points, bonus_points, id
	args := f.tx.args[0]
	if *(args[0].(*int)) != 18 || args[1] != true || args[2] != 105 || args[3] != 5 || args[4] != int64(3) {
		t.Errorf("Unexpected list item update arguments %v", args)
	}
	if got := f.tx.args[4]; got[0] != int64(120) || got[1] != int64(7) {
		t.Errorf("Expected total 120 for user 7, got %v", got)
	}

	if !f.tx.committed || f.tx.rolledBack {
		t.Errorf("Expected commit without rollback, committed=%v rolledBack=%v", f.tx.committed, f.tx.rolledBack)
	}
	if f.conn.released != 1 {
		t.Errorf("Expected connection released once, got %d", f.conn.released)
	}
	f.outcomes(t, `deadpool_score_updates_total{outcome="applied"} 1`+"\n")
}

func TestApplyScoreUpdate_LocksOwnerBeforeSum(t *testing.T) {
	f := newScoreFixture()

	if _, err := f.service.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{ListID: 3, IsDead: boolPtr(true)}); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	lockAt, sumAt := -1, -1
	for i, sql := range f.tx.statements {
		switch {
		case strings.Contains(sql, "FROM users") && strings.HasSuffix(sql, "FOR UPDATE"):
			lockAt = i
		case strings.Contains(sql, "SUM(calculated_points)"):
			sumAt = i
		}
	}
	if lockAt < 0 || sumAt < 0 {
		t.Fatalf("Expected an owner lock and a sum, got %v", f.tx.statements)
	}
	if lockAt > sumAt {
		t.Errorf("Owner row locked at statement %d, after the sum at %d", lockAt, sumAt)
	}
	if got := f.tx.args[lockAt]; len(got) != 1 || got[0] != int64(7) {
		t.Errorf("Expected lock on user 7, got %v", got)
	}
}

func TestApplyScoreUpdate_AliveStoresZero(t *testing.T) {
	f := newScoreFixture()

	result, err := f.service.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{
		ListID: 3, Age: intPtr(18), IsDead: boolPtr(false), Bonus: strPtr("15"),
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result.BasePoints != 0 || result.BonusPoints != 0 || result.TotalPoints != 0 {
		t.Errorf("Expected no points for an alive item, got %+v", *result)
	}
}

func TestApplyScoreUpdate_InvalidInputDoesNoIO(t *testing.T) {
	f := newScoreFixture()

	_, err := f.service.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{ListID: 0, IsDead: boolPtr(true)})
	if !errors.Is(err, deadpool.ErrValidation) {
		t.Fatalf("Expected ErrValidation, got %v", err)
	}
	if f.pool.calls != 0 || len(f.tx.statements) != 0 {
		t.Errorf("Expected no database work, got %d acquires and %v", f.pool.calls, f.tx.statements)
	}
	f.outcomes(t, `deadpool_score_updates_total{outcome="invalid"} 1`+"\n")
}

func TestApplyScoreUpdate_NotFoundRollsBack(t *testing.T) {
	f := newScoreFixture()
	f.tx.rowErr["SELECT user_id"] = pgx.ErrNoRows

	_, err := f.service.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{ListID: 404, IsDead: boolPtr(true)})
	if !errors.Is(err, deadpool.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "list item 404 does not exist") {
		t.Errorf("Expected message naming the item, got %q", err)
	}
	if f.tx.committed || !f.tx.rolledBack {
		t.Errorf("Expected rollback without commit")
	}
	if len(f.tx.statements) != 2 {
		t.Errorf("Expected to stop after the owner lookup, got %v", f.tx.statements)
	}
	if f.conn.released != 1 {
		t.Errorf("Expected connection released once, got %d", f.conn.released)
	}
	f.outcomes(t, `deadpool_score_updates_total{outcome="not_found"} 1`+"\n")
}

func TestApplyScoreUpdate_StatementFailureRollsBack(t *testing.T) {
	tests := []struct {
		name    string
		arrange func(*mockTx)
		want    string
	}{
		{"list item update", func(tx *mockTx) { tx.execErr["UPDATE lists"] = errSyntax }, "update list item"},
		{"owner lock", func(tx *mockTx) { tx.execErr["FOR UPDATE"] = errSyntax }, "lock user 7"},
		{"sum", func(tx *mockTx) { tx.rowErr["SUM("] = errSyntax }, "sum points of user 7"},
		{"total update", func(tx *mockTx) { tx.execErr["UPDATE users"] = errSyntax }, "update total score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newScoreFixture()
			tt.arrange(f.tx)

			_, err := f.service.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{ListID: 1, IsDead: boolPtr(true)})
			if !errors.Is(err, deadpool.ErrStatement) {
				t.Fatalf("Expected ErrStatement, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected %q in %q", tt.want, err)
			}
			if f.tx.committed || !f.tx.rolledBack {
				t.Error("Expected rollback without commit")
			}
			if f.conn.released != 1 {
				t.Errorf("Expected connection released once, got %d", f.conn.released)
			}
		})
	}
}

func TestApplyScoreUpdate_ConnectionLostMidTransactionNotRetried(t *testing.T) {
	f := newScoreFixture()
	f.tx.execErr["UPDATE users"] = errRefused

	_, err := f.service.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{ListID: 1, IsDead: boolPtr(true)})
	if !errors.Is(err, deadpool.ErrConnection) {
		t.Fatalf("Expected ErrConnection, got %v", err)
	}
	if f.pool.calls != 1 {
		t.Errorf("Expected the transaction not to be retried, got %d acquires", f.pool.calls)
	}
	if !f.tx.rolledBack {
		t.Error("Expected rollback")
	}
}

func TestApplyScoreUpdate_CommitFailure(t *testing.T) {
	f := newScoreFixture()
	f.tx.commitErr = errors.New("could not serialize access")

	_, err := f.service.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{ListID: 1, IsDead: boolPtr(true)})
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("Expected commit error, got %v", err)
	}
	if !f.tx.rolledBack {
		t.Error("Expected rollback after failed commit")
	}
	f.outcomes(t, `deadpool_score_updates_total{outcome="failed"} 1`+"\n")
}

func TestApplyScoreUpdate_RollbackSurvivesCancellation(t *testing.T) {
	f := newScoreFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.tx.execErr["UPDATE lists"] = context.Canceled
	cancel()

	// GetConnection's first attempt succeeds before the context is checked
	_, err := f.service.ApplyScoreUpdate(ctx, deadpool.ScoreUpdate{ListID: 1, IsDead: boolPtr(true)})
	if err == nil {
		t.Fatal("Expected failure")
	}
	if !f.tx.rolledBack || f.tx.rollbackCtx.Err() != nil {
		t.Error("Expected rollback with a live context")
	}
}

func TestApplyScoreUpdate_AcquireFailure(t *testing.T) {
	f := newScoreFixture()
	f.pool.failures = []error{errRefused, errRefused, errRefused}

	_, err := f.service.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{ListID: 1, IsDead: boolPtr(true)})
	if !errors.Is(err, deadpool.ErrConnection) {
		t.Fatalf("Expected ErrConnection, got %v", err)
	}
	if f.pool.calls != 3 || f.pool.recreated != 1 {
		t.Errorf("Expected 3 acquire attempts and 1 recreation, got %d and %d", f.pool.calls, f.pool.recreated)
	}
	if len(f.tx.statements) != 0 {
		t.Errorf("Expected no statements, got %v", f.tx.statements)
	}
}

func TestApplyScoreUpdate_BeginFailure(t *testing.T) {
	f := newScoreFixture()
	f.conn.beginErr = errRefused

	_, err := f.service.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{ListID: 1, IsDead: boolPtr(true)})
	if !errors.Is(err, deadpool.ErrConnection) {
		t.Fatalf("Expected ErrConnection, got %v", err)
	}
	if f.conn.released != 1 {
		t.Errorf("Expected connection released once, got %d", f.conn.released)
	}
}
