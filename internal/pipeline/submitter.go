package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/alnah/go-docpipe/internal/apierr"
	"github.com/alnah/go-docpipe/internal/completion"
)

// Retry defaults for a single chunk.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// RetryHook observes each rate-limited attempt before its backoff sleep.
// attempt is 1-based; delay is the sleep that follows.
type RetryHook func(index, attempt int, delay time.Duration, err error)

// Submitter sends one chunk to a Completer, retrying only rate-limit
// failures with exponential backoff. It holds configuration only; every
// Submit call starts with fresh retry state.
type Submitter struct {
	completer completion.Completer
	retry     apierr.RetryConfig
	onRetry   RetryHook
}

// NewSubmitter creates a Submitter. Zero values in retry fall back to the
// package defaults (DefaultMaxAttempts, DefaultBaseDelay, DefaultMaxDelay).
func NewSubmitter(c completion.Completer, retry apierr.RetryConfig, onRetry RetryHook) *Submitter {
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = DefaultMaxAttempts
	}
	if retry.BaseDelay == 0 {
		retry.BaseDelay = DefaultBaseDelay
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = DefaultMaxDelay
	}
	return &Submitter{completer: c, retry: retry, onRetry: onRetry}
}

// Submit completes req for the chunk at index; index is only reported to the hook.
// It returns the generated text and the number of provider calls made.
// When every allowed attempt is rate limited the error matches both
// ErrRetryBudgetExhausted and apierr.ErrRateLimit.
func (s *Submitter) Submit(ctx context.Context, index int, req completion.Request) (string, int, error) {
	attempts := 0
	cfg := s.retry
	if s.onRetry != nil {
		cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
			s.onRetry(index, attempt, delay, err)
		}
	}

	text, err := apierr.RetryWithBackoff(ctx, cfg,
		func(ctx context.Context) (string, error) {
			attempts++
			return s.completer.Complete(ctx, req)
		},
		isRateLimit,
	)
	return text, attempts, err
}

// isRateLimit reports whether err is the one failure class worth retrying.
func isRateLimit(err error) bool {
	return errors.Is(err, apierr.ErrRateLimit)
}
