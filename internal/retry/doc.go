// Package retry provides automatic retry logic with exponential backoff
// for transient database connection failures.
//
// # Example Usage
//
//	classifier := retry.NewPostgreSQLErrorClassifier()
//	strategy := retry.NewExponentialBackoff(3)
//	executor := retry.NewExecutor(classifier, strategy).
//	    WithRecovery(2, func(ctx context.Context) { _ = pool.Recreate(ctx) })
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    _, err := pool.Exec(ctx, "UPDATE lists SET is_dead = true WHERE id = $1", id)
//	    return err
//	})
//
// # Error Classification
//
// PostgreSQLErrorClassifier maps every error to one deadpool.FailureCategory.
// Only FailureConnection (refused, reset, timed out, lost, unknown host,
// connection-class SQLSTATE) is retried; statement errors, missing rows and
// cancellation are returned after the first attempt.
//
// # Backoff Strategies
//
// ExponentialBackoff waits min(initial * multiplier^n, max) after failed attempt n+1.
// With defaults that is 1s, 2s, 4s, 5s, 5s...
//
// # Thread Safety
//
// Executor instances are safe for concurrent use. Use the With* methods to create
// independent configurations per caller.
package retry
