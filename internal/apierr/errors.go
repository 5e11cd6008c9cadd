// Package apierr provides shared error sentinels and retry infrastructure
// for completion API clients. All provider-specific error types are
// classified into these sentinels at the adapter boundary.
//
// Providers map HTTP status codes and error codes to these errors using
// fmt.Errorf("%s: %w", msg, sentinel). Callers check with
// errors.Is(err, apierr.ErrRateLimit) or switch on KindOf(err).
package apierr

import "errors"

// Sentinel errors for API interaction failures.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")

	// ErrServer indicates the provider failed on its side (5xx).
	ErrServer = errors.New("provider server error")

	// ErrRetryBudgetExhausted indicates every allowed attempt failed with a retryable error.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// Kind is the classification tag of a provider failure.
type Kind int

// Failure kinds, one per sentinel.
const (
	KindUnknown Kind = iota
	KindRateLimit
	KindQuotaExceeded
	KindTimeout
	KindAuthFailed
	KindBadRequest
	KindServer
)

// kindSentinels pairs each kind with its sentinel, in match order.
var kindSentinels = []struct {
	kind     Kind
	sentinel error
}{
	{KindRateLimit, ErrRateLimit},
	{KindQuotaExceeded, ErrQuotaExceeded},
	{KindTimeout, ErrTimeout},
	{KindAuthFailed, ErrAuthFailed},
	{KindBadRequest, ErrBadRequest},
	{KindServer, ErrServer},
}

// KindOf returns the classification tag carried by err.
// Errors that were not classified at an adapter boundary return KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.sentinel) {
			return ks.kind
		}
	}
	return KindUnknown
}

// String returns the kind name used in logs and error messages.
func (k Kind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindTimeout:
		return "timeout"
	case KindAuthFailed:
		return "auth_failed"
	case KindBadRequest:
		return "bad_request"
	case KindServer:
		return "server_error"
	default:
		return "unknown"
	}
}
