package pipeline

import (
	"errors"
	"fmt"

	"github.com/alnah/go-docpipe/internal/apierr"
)

// Sentinel errors for the pipeline package.
var (
	// ErrInvalidBudget indicates a non-positive chunk token budget.
	ErrInvalidBudget = errors.New("chunk token budget must be positive")

	// ErrRetryBudgetExhausted is re-exported so callers of Run need not import apierr.
	ErrRetryBudgetExhausted = apierr.ErrRetryBudgetExhausted
)

// Kind discriminates why a chunk failed.
type Kind int

// Failure kinds.
const (
	// RateLimited is recovered inside the submitter; it only surfaces when
	// a caller inspects individual attempts through a retry hook.
	RateLimited Kind = iota + 1
	// RetryBudgetExhausted means every attempt was rate limited.
	RetryBudgetExhausted
	// ProviderError is any other provider failure; it is never retried.
	ProviderError
	// Canceled means the caller's context ended the run.
	Canceled
)

func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case RetryBudgetExhausted:
		return "retry_budget_exhausted"
	case ProviderError:
		return "provider_error"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ChunkError is returned by Run when a chunk fails permanently.
// Index is 0-based; Attempts counts provider calls made for that chunk.
type ChunkError struct {
	Index    int
	Total    int
	Kind     Kind
	Attempts int
	Err      error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d/%d failed (%s, %d attempts): %v", e.Index+1, e.Total, e.Kind, e.Attempts, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// ProviderKind returns the classified provider failure behind the error.
func (e *ChunkError) ProviderKind() apierr.Kind {
	return apierr.KindOf(e.Err)
}
