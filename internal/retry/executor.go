package retry

import (
	"context"
	"time"

	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// Executor orchestrates attempts with backoff, error classification and an
// optional recovery step.
//
// Thread Safety:
// Execute is safe for concurrent use. The With* methods return a NEW instance;
// the receiver is never modified.
type Executor struct {
	classifier deadpool.ErrorClassifier
	strategy   deadpool.BackoffStrategy
	onRetry    func(attempt int, err error, delay time.Duration)

	recoverAfter int
	recover      func(ctx context.Context)

	wait func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a new retry executor with the given configuration.
// Panics if classifier or strategy is nil.
func NewExecutor(
	classifier deadpool.ErrorClassifier,
	strategy deadpool.BackoffStrategy,
) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{
		classifier: classifier,
		strategy:   strategy,
		wait:       sleep,
	}
}

// WithOnRetry returns a new Executor that calls callback before each backoff wait.
// attempt is the 1-based number of the attempt that just failed.
//
// Example:
//
//	executor := retry.NewExecutor(classifier, strategy)
//	executor1 := executor.WithOnRetry(callback1) // New instance
//	executor2 := executor.WithOnRetry(callback2) // Another new instance
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// WithRecovery returns a new Executor that runs fn once, after the backoff
// wait that follows failed attempt number afterAttempt and before the next try.
// The pool manager uses it to rebuild a pool that keeps failing.
func (e *Executor) WithRecovery(afterAttempt int, fn func(ctx context.Context)) *Executor {
	clone := *e
	clone.recoverAfter = afterAttempt
	clone.recover = fn
	return &clone
}

// WithWait returns a new Executor using fn instead of a timer to wait between attempts.
func (e *Executor) WithWait(fn func(ctx context.Context, d time.Duration) error) *Executor {
	clone := *e
	clone.wait = fn
	return &clone
}

// Execute runs the operation until it succeeds, fails with a non-transient
// error, or the strategy's attempts are used up. The last error is returned as is.
// A negative MaxAttempts retries indefinitely.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	maxAttempts := e.strategy.MaxAttempts()
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		lastErr := operation(ctx)
		if lastErr == nil {
			return nil
		}

		if !e.classifier.IsTransient(lastErr) {
			return lastErr
		}

		if maxAttempts > 0 && attempt >= maxAttempts {
			return lastErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		delay := e.strategy.NextDelay(attempt - 1)

		if e.onRetry != nil {
			e.onRetry(attempt, lastErr, delay)
		}

		if err := e.wait(ctx, delay); err != nil {
			return err
		}

		if e.recover != nil && attempt == e.recoverAfter {
			e.recover(ctx)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
