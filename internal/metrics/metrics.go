// Package metrics counts what a docpipe invocation did and writes the result
// in the Prometheus text format, for the node_exporter textfile collector or
// any other scraper of .prom files.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alnah/go-docpipe/internal/apierr"
	"github.com/alnah/go-docpipe/internal/completion"
	"github.com/alnah/go-docpipe/internal/pipeline"
)

const namespace = "docpipe"

// Outcome label values.
const (
	ResultOK                   = "ok"
	ResultRateLimited          = "rate_limited"
	ResultRetryBudgetExhausted = "retry_budget_exhausted"
	ResultProviderError        = "provider_error"
	ResultCanceled             = "canceled"
	ResultError                = "error"
)

// Recorder collects the counters of one invocation on a private registry.
// It is safe for concurrent use.
type Recorder struct {
	registry   *prometheus.Registry
	files      *prometheus.CounterVec
	requests   *prometheus.CounterVec
	chunks     prometheus.Counter
	runSeconds prometheus.Histogram
}

// New creates a Recorder with every metric registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Documents processed, by outcome.",
		}, []string{"result"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_completed_total",
			Help:      "Chunks answered by the completion provider.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Completion requests sent, retries included, by outcome.",
		}, []string{"result"}),
		runSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one document run.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	r.registry.MustRegister(r.files, r.requests, r.chunks, r.runSeconds)
	return r
}

// Instrument returns a Completer that counts every request made through c.
func (r *Recorder) Instrument(c completion.Completer) completion.Completer {
	return &countingCompleter{next: c, requests: r.requests}
}

type countingCompleter struct {
	next     completion.Completer
	requests *prometheus.CounterVec
}

func (c *countingCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	text, err := c.next.Complete(ctx, req)
	switch {
	case err == nil:
		c.requests.WithLabelValues(ResultOK).Inc()
	case errors.Is(err, apierr.ErrRateLimit):
		c.requests.WithLabelValues(ResultRateLimited).Inc()
	default:
		c.requests.WithLabelValues(ResultError).Inc()
	}
	return text, err
}

// RunSucceeded records a completed document run.
func (r *Recorder) RunSucceeded(res pipeline.Result, elapsed time.Duration) {
	r.files.WithLabelValues(ResultOK).Inc()
	r.chunks.Add(float64(res.Chunks))
	r.runSeconds.Observe(elapsed.Seconds())
}

// RunFailed records a document that did not produce output.
// Chunks finished before a *pipeline.ChunkError are still counted.
func (r *Recorder) RunFailed(err error, elapsed time.Duration) {
	result := ResultError
	var cerr *pipeline.ChunkError
	if errors.As(err, &cerr) {
		r.chunks.Add(float64(cerr.Index))
		switch cerr.Kind {
		case pipeline.RetryBudgetExhausted:
			result = ResultRetryBudgetExhausted
		case pipeline.ProviderError:
			result = ResultProviderError
		case pipeline.Canceled:
			result = ResultCanceled
		}
	}
	r.files.WithLabelValues(result).Inc()
	r.runSeconds.Observe(elapsed.Seconds())
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteFile writes all metrics to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

var _ completion.Completer = (*countingCompleter)(nil)
