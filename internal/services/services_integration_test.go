package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/deadpool/internal/db"
	"github.com/vvka-141/deadpool/internal/db/manager"
	"github.com/vvka-141/deadpool/internal/logging"
	"github.com/vvka-141/deadpool/internal/metrics"
	"github.com/vvka-141/deadpool/internal/services"
	testhelpers "github.com/vvka-141/deadpool/internal/testing"
	"github.com/vvka-141/deadpool/internal/testing/fixtures"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

type scoreboardEnv struct {
	db        *testhelpers.TestDatabase
	mgr       *manager.Manager
	access    *services.RetryingAccess
	scores    *services.ScoreService
	settings  *services.SettingsService
	standings *services.StandingsService
	board     *fixtures.Scoreboard
	recorder  *metrics.Recorder
	capture   *testhelpers.StatementCapture
}

func noWait(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func setupScoreboard(t *testing.T, mutate func(*deadpool.ConnectionConfig)) *scoreboardEnv {
	t.Helper()

	testDB := testhelpers.NewTestDatabase(t)
	capture := testhelpers.NewStatementCapture()
	mgr := testDB.NewManager(t, mutate, db.WithQueryTracer(capture))
	logger := logging.NewNullLogger()
	recorder := metrics.NewRecorder()
	access := services.NewRetryingAccess(mgr, logger, services.WithWait(noWait), services.WithMetrics(recorder))

	board, err := fixtures.TwoPlayers().Seed(context.Background(), mgr)
	require.NoError(t, err)

	return &scoreboardEnv{
		db:        testDB,
		mgr:       mgr,
		access:    access,
		scores:    services.NewScoreService(access, logger, recorder),
		settings:  services.NewSettingsService(access),
		standings: services.NewStandingsService(access),
		board:     board,
		recorder:  recorder,
		capture:   capture,
	}
}

func (e *scoreboardEnv) totalScore(t *testing.T, username string) int64 {
	t.Helper()
	var total int64
	require.NoError(t, e.mgr.QueryRow(context.Background(),
		`SELECT total_score FROM users WHERE id = $1`, e.board.Users[username]).Scan(&total))
	return total
}

func (e *scoreboardEnv) pointSum(t *testing.T, username string) int64 {
	t.Helper()
	var sum int64
	require.NoError(t, e.mgr.QueryRow(context.Background(),
		`SELECT COALESCE(SUM(calculated_points), 0) FROM lists WHERE user_id = $1`, e.board.Users[username]).Scan(&sum))
	return sum
}

func TestScoreService_Integration_AppliesAndResums(t *testing.T) {
	env := setupScoreboard(t, nil)
	ctx := context.Background()

	result, err := env.scores.ApplyScoreUpdate(ctx, deadpool.ScoreUpdate{
		ListID: env.board.Items["Alice One"],
		Age:    fixtures.IntPtr(18),
		IsDead: fixtures.BoolPtr(true),
		Bonus:  fixtures.StringPtr("5"),
	})
	require.NoError(t, err)

	assert.Equal(t, deadpool.ScoreResult{BasePoints: 100, BonusPoints: 5, TotalPoints: 105, TotalScore: 120}, *result)
	assert.Equal(t, int64(120), env.totalScore(t, "alice"))
	assert.Equal(t, env.pointSum(t, "alice"), env.totalScore(t, "alice"))
	assert.Equal(t, int64(0), env.totalScore(t, "bob"), "other users are untouched")

	var bonus, calculated int
	var isDead bool
	require.NoError(t, env.mgr.QueryRow(ctx,
		`SELECT is_dead, bonus_points, calculated_points FROM lists WHERE id = $1`,
		env.board.Items["Alice One"]).Scan(&isDead, &bonus, &calculated))
	assert.True(t, isDead)
	assert.Equal(t, 5, bonus)
	assert.Equal(t, 105, calculated)
}

func TestScoreService_Integration_Idempotent(t *testing.T) {
	env := setupScoreboard(t, nil)
	ctx := context.Background()
	update := deadpool.ScoreUpdate{
		ListID: env.board.Items["Bob One"],
		Age:    fixtures.IntPtr(45),
		IsDead: fixtures.BoolPtr(true),
		Bonus:  fixtures.StringPtr("50"),
	}

	first, err := env.scores.ApplyScoreUpdate(ctx, update)
	require.NoError(t, err)
	second, err := env.scores.ApplyScoreUpdate(ctx, update)
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
	assert.Equal(t, deadpool.ScoreResult{BasePoints: 40, BonusPoints: 20, TotalPoints: 60, TotalScore: 60}, *second)
}

func TestScoreService_Integration_RevivingClearsPoints(t *testing.T) {
	env := setupScoreboard(t, nil)

	result, err := env.scores.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{
		ListID: env.board.Items["Alice Two"],
		Age:    fixtures.IntPtr(85),
		IsDead: fixtures.BoolPtr(false),
		Bonus:  fixtures.StringPtr("5"),
	})
	require.NoError(t, err)

	assert.Equal(t, deadpool.ScoreResult{}, *result)
	assert.Equal(t, int64(0), env.totalScore(t, "alice"))
}

func TestScoreService_Integration_NotFoundLeavesDatabaseUnchanged(t *testing.T) {
	env := setupScoreboard(t, nil)
	before := env.totalScore(t, "alice")

	_, err := env.scores.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{
		ListID: 999999,
		Age:    fixtures.IntPtr(30),
		IsDead: fixtures.BoolPtr(true),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, deadpool.ErrNotFound))
	assert.Equal(t, 404, deadpool.StatusForError(err))
	assert.Equal(t, before, env.totalScore(t, "alice"))
	assert.Equal(t, int32(0), env.mgr.Stat().AcquiredConns(), "connection must be released")
}

// sentStatements returns the captured statements, pool health checks excluded.
func (e *scoreboardEnv) sentStatements() []string {
	var sent []string
	for _, stmt := range e.capture.Statements() {
		if stmt.SQL == "-- ping" {
			continue
		}
		sent = append(sent, stmt.SQL)
	}
	return sent
}

func TestScoreService_Integration_StatementOrder(t *testing.T) {
	env := setupScoreboard(t, nil)
	env.capture.Reset()

	_, err := env.scores.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{
		ListID: env.board.Items["Bob One"],
		Age:    fixtures.IntPtr(33),
		IsDead: fixtures.BoolPtr(true),
	})
	require.NoError(t, err)

	want := []string{"begin", "UPDATE lists", "SELECT user_id", "SELECT id FROM users", "SELECT COALESCE(SUM", "UPDATE users", "commit"}
	sent := env.sentStatements()
	require.Len(t, sent, len(want), "statements: %v", sent)
	for i, prefix := range want {
		assert.True(t, strings.HasPrefix(strings.ToUpper(sent[i]), strings.ToUpper(prefix)),
			"statement %d: expected prefix %q, got %q", i, prefix, sent[i])
	}
	assert.True(t, strings.HasSuffix(sent[3], "FOR UPDATE"), "owner row must be locked: %q", sent[3])
}

func TestScoreService_Integration_InvalidInputSendsNothing(t *testing.T) {
	env := setupScoreboard(t, nil)
	env.capture.Reset()

	_, err := env.scores.ApplyScoreUpdate(context.Background(), deadpool.ScoreUpdate{
		ListID: env.board.Items["Alice One"],
		Bonus:  fixtures.StringPtr("5"),
	})
	require.ErrorIs(t, err, deadpool.ErrValidation)
	assert.Empty(t, env.sentStatements())
}

func TestScoreService_Integration_ConcurrentUpdatesStayConsistent(t *testing.T) {
	env := setupScoreboard(t, nil)
	ctx := context.Background()

	items := []int64{env.board.Items["Alice One"], env.board.Items["Alice Two"]}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.scores.ApplyScoreUpdate(ctx, deadpool.ScoreUpdate{
				ListID: items[i%2],
				Age:    fixtures.IntPtr(10 + i*2),
				IsDead: fixtures.BoolPtr(i%3 != 0),
				Bonus:  fixtures.StringPtr("3"),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, env.pointSum(t, "alice"), env.totalScore(t, "alice"))
}

func TestScoreService_Integration_RecoversFromTerminatedConnections(t *testing.T) {
	env := setupScoreboard(t, nil)
	ctx := context.Background()

	// warm the pool, then kill its server connections
	require.True(t, env.access.Ping(ctx))
	testhelpers.TerminateBackends(t, env.db.Config)

	_, err := env.access.Exec(ctx, `UPDATE users SET total_score = total_score WHERE username = 'alice'`)
	require.NoError(t, err)

	result, err := env.scores.ApplyScoreUpdate(ctx, deadpool.ScoreUpdate{
		ListID: env.board.Items["Bob One"],
		Age:    fixtures.IntPtr(70),
		IsDead: fixtures.BoolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), result.TotalScore)
}

func TestSettingsService_Integration_Deadline(t *testing.T) {
	env := setupScoreboard(t, nil)
	ctx := context.Background()

	value, err := env.settings.Deadline(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, deadpool.DefaultDeadline, value)

	// a stored value wins over a different fallback
	value, err = env.settings.Deadline(ctx, "2030-01-01")
	require.NoError(t, err)
	assert.Equal(t, deadpool.DefaultDeadline, value)

	require.NoError(t, env.settings.SetDeadline(ctx, "2026-06-30T12:00:00"))
	value, err = env.settings.Deadline(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-06-30T12:00:00", value)

	err = env.settings.SetDeadline(ctx, "next tuesday")
	assert.True(t, errors.Is(err, deadpool.ErrValidation))
}

func TestSettingsService_Integration_ConcurrentFirstRead(t *testing.T) {
	env := setupScoreboard(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	values := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := env.settings.Deadline(ctx, "")
			assert.NoError(t, err)
			values <- v
		}()
	}
	wg.Wait()
	close(values)

	for v := range values {
		assert.Equal(t, deadpool.DefaultDeadline, v)
	}

	var rows int
	require.NoError(t, env.mgr.QueryRow(ctx, `SELECT count(*) FROM config WHERE config_key = $1`, deadpool.DeadlineConfigKey).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestStandingsService_Integration(t *testing.T) {
	env := setupScoreboard(t, nil)

	standings, err := env.standings.Standings(context.Background())
	require.NoError(t, err)
	require.Len(t, standings, 2, "admins are excluded")

	assert.Equal(t, "alice", standings[0].Username)
	assert.Equal(t, int64(15), standings[0].TotalScore)
	require.Len(t, standings[0].List, 2)
	assert.Equal(t, "Alice One", standings[0].List[0].Name)
	require.NotNil(t, standings[0].List[1].Age)
	assert.Equal(t, 85, *standings[0].List[1].Age)

	assert.Equal(t, "bob", standings[1].Username)
	require.Len(t, standings[1].List, 1)
	assert.Nil(t, standings[1].List[0].Age)
}
