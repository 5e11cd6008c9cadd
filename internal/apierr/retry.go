package apierr

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryConfig holds retry parameters for exponential backoff.
//
// Invalid values are normalized:
//   - MaxAttempts < 1 becomes 1 (single attempt)
//   - BaseDelay <= 0 becomes 1ms
//   - MaxDelay <= 0 becomes unbounded
//
// The n-th retry waits BaseDelay * 2^(n-1), capped at MaxDelay.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// OnRetry, if set, is called before each backoff sleep with the attempt
	// that just failed (1-based), the delay about to be slept and its error.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// normalize ensures all RetryConfig fields have valid values.
func (c *RetryConfig) normalize() {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Millisecond
	}
}

// ExhaustedError reports that every allowed attempt failed with a retryable error.
// It matches both ErrRetryBudgetExhausted and the last attempt's error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetryBudgetExhausted, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetryBudgetExhausted, e.Err}
}

// RetryWithBackoff executes fn with exponential backoff retry.
// It retries only if shouldRetry returns true for the error; any other error
// is returned as-is after a single attempt. When the attempt budget runs out
// on retryable errors, the returned error is an *ExhaustedError.
//
// All retry state lives in this call; concurrent calls share nothing.
func RetryWithBackoff[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func(ctx context.Context) (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	cfg.normalize()

	var (
		result    T
		zero      T
		attempt   int
		lastErr   error
		retryable bool
	)

	backoff := newBackoff(cfg, func(delay time.Duration) {
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, lastErr)
		}
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		r, err := fn(ctx)
		if err == nil {
			result = r
			return nil
		}
		lastErr = err
		retryable = shouldRetry(err)
		if retryable {
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return result, nil
	}

	// go-retry hands back the unwrapped last error once the budget is spent.
	if retryable && err == lastErr {
		return zero, &ExhaustedError{Attempts: attempt, Err: lastErr}
	}
	return zero, err
}

// newBackoff builds the go-retry policy: exponential from BaseDelay, capped
// at MaxDelay, stopping after MaxAttempts-1 retries. observe sees every delay
// that will actually be slept.
func newBackoff(cfg RetryConfig, observe func(time.Duration)) retry.Backoff {
	b := retry.NewExponential(cfg.BaseDelay)
	if cfg.MaxDelay > 0 {
		b = retry.WithCappedDuration(cfg.MaxDelay, b)
	}
	b = retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), b) // #nosec G115 -- normalized to >= 1

	return retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := b.Next()
		if !stop {
			observe(next)
		}
		return next, stop
	})
}
