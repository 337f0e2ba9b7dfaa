package deadpool

import "time"

// ErrorClassifier maps driver errors onto the closed FailureCategory set.
type ErrorClassifier interface {
	// Classify returns the category of err. FailureNone is returned for nil.
	Classify(err error) FailureCategory

	// IsTransient returns true if the error is connection-class and the operation should be retried.
	IsTransient(err error) bool
}

// BackoffStrategy calculates the delay before the next retry attempt.
type BackoffStrategy interface {
	// NextDelay returns the duration to wait before the next attempt.
	// attempt is zero-indexed (0 = wait after the first failed attempt).
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the total number of attempts, the first one included.
	MaxAttempts() int
}
