package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/deadpool/internal/metrics"
	"github.com/vvka-141/deadpool/internal/retry"
	"github.com/vvka-141/deadpool/internal/scoring"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

const opScoreUpdate = "score_update"

// ScoreService applies administrator score updates.
//
// An update rewrites one list item and recomputes its owner's total_score
// from all of the owner's items, in one READ COMMITTED transaction. The
// owner's row is locked before the sum, so concurrent updates of the same
// user see each other's committed items; the list item's row lock
// serializes updates of the same item.
//
// Thread-Safety: safe for concurrent use.
type ScoreService struct {
	access     deadpool.DataAccess
	logger     deadpool.Logger
	metrics    *metrics.Recorder
	classifier *retry.PostgreSQLErrorClassifier
}

// NewScoreService creates a ScoreService. recorder may be nil.
// Panics if access or logger is nil.
func NewScoreService(access deadpool.DataAccess, logger deadpool.Logger, recorder *metrics.Recorder) *ScoreService {
	if access == nil {
		panic("access cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ScoreService{
		access:     access,
		logger:     logger,
		metrics:    recorder,
		classifier: retry.NewPostgreSQLErrorClassifier(),
	}
}

// ApplyScoreUpdate validates update, stores the item's new points and
// returns them with the owner's new total score.
//
// Only acquiring the connection is retried; a failure inside the
// transaction rolls it back and is returned. A list item that does not
// exist yields deadpool.ErrNotFound and leaves the database unchanged.
func (s *ScoreService) ApplyScoreUpdate(ctx context.Context, update deadpool.ScoreUpdate) (*deadpool.ScoreResult, error) {
	if err := scoring.Validate(update); err != nil {
		s.metrics.ScoreUpdate(metrics.OutcomeInvalid)
		return nil, err
	}

	result, err := s.apply(ctx, update)
	s.metrics.ScoreUpdate(outcomeOf(err))
	return result, err
}

func (s *ScoreService) apply(ctx context.Context, update deadpool.ScoreUpdate) (*deadpool.ScoreResult, error) {
	opID := uuid.NewString()
	points := scoring.Compute(update)

	s.logger.Verbose("[%s] scoring list item %d: base %d, bonus %d", opID, update.ListID, points.Base, points.Bonus)

	conn, err := s.access.GetConnection(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, s.classifier.Wrap(opScoreUpdate, fmt.Errorf("begin transaction: %w", err))
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// rollback must run even when ctx is what failed the transaction
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Error("[%s] rollback failed: %v", opID, err)
		}
	}()

	if _, err := tx.Exec(ctx, queryUpdateListItem, update.Age, *update.IsDead, points.Total, points.Bonus, update.ListID); err != nil {
		return nil, s.classifier.Wrap(opScoreUpdate, fmt.Errorf("update list item %d: %w", update.ListID, err))
	}

	var userID int64
	if err := tx.QueryRow(ctx, queryListOwner, update.ListID).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, deadpool.NewError(deadpool.FailureNotFound, opScoreUpdate,
				fmt.Errorf("list item %d does not exist: %w", update.ListID, err))
		}
		return nil, s.classifier.Wrap(opScoreUpdate, fmt.Errorf("look up owner of list item %d: %w", update.ListID, err))
	}

	if _, err := tx.Exec(ctx, queryLockUser, userID); err != nil {
		return nil, s.classifier.Wrap(opScoreUpdate, fmt.Errorf("lock user %d: %w", userID, err))
	}

	// a fresh statement snapshot: every sibling update that held the lock is committed
	var total int64
	if err := tx.QueryRow(ctx, querySumPoints, userID).Scan(&total); err != nil {
		return nil, s.classifier.Wrap(opScoreUpdate, fmt.Errorf("sum points of user %d: %w", userID, err))
	}

	if _, err := tx.Exec(ctx, queryUpdateTotalScore, total, userID); err != nil {
		return nil, s.classifier.Wrap(opScoreUpdate, fmt.Errorf("update total score of user %d: %w", userID, err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, s.classifier.Wrap(opScoreUpdate, fmt.Errorf("commit: %w", err))
	}
	committed = true

	s.logger.Info("[%s] list item %d scored %d points; user %d total is now %d", opID, update.ListID, points.Total, userID, total)

	return &deadpool.ScoreResult{
		BasePoints:  points.Base,
		BonusPoints: points.Bonus,
		TotalPoints: points.Total,
		TotalScore:  total,
	}, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeApplied
	case errors.Is(err, deadpool.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeFailed
	}
}
