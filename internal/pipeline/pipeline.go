// Package pipeline turns a document of any size into one completion output.
// Text is split into token-bounded chunks, each chunk is sent to the
// completion service in order, and the answers are joined with blank lines.
//
// Chunks are processed strictly one at a time. Rate-limit rejections are
// retried with exponential backoff whose state lives inside a single chunk's
// submission; every other provider failure aborts the run at once. After each
// successful chunk except the last, the run pauses for a fixed request delay,
// a timer independent from the backoff. A failed run returns no partial text.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alnah/go-docpipe/internal/apierr"
	"github.com/alnah/go-docpipe/internal/completion"
	"github.com/alnah/go-docpipe/internal/logger"
	"github.com/alnah/go-docpipe/internal/tokenize"
)

// DefaultRequestDelay is the pause between two successful chunk requests.
const DefaultRequestDelay = 1 * time.Second

// resultSep separates chunk answers in the combined output.
const resultSep = "\n\n"

// Job is one document to process.
type Job struct {
	Text            string
	Instruction     string
	Model           string // empty uses the completer's default model
	MaxOutputTokens int    // 0 uses the completer's default
}

// Result is the outcome of a successful Run.
type Result struct {
	Text     string // chunk answers joined by a blank line, in document order
	Chunks   int    // number of chunks submitted
	Attempts int    // provider calls made, retries included
	RunID    string
}

// Pipeline drives a Splitter and a Submitter over whole documents.
// It is immutable after New and safe for concurrent Runs.
type Pipeline struct {
	completer    completion.Completer
	splitter     *Splitter
	maxTokens    int
	retry        apierr.RetryConfig
	requestDelay time.Duration
	onProgress   func(current, total int)
	onRetry      RetryHook
	log          logger.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTokenizer sets the tokenizer used to measure chunks.
func WithTokenizer(t tokenize.Tokenizer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.splitter = NewSplitter(t)
		}
	}
}

// WithMaxChunkTokens sets the token budget of each chunk.
func WithMaxChunkTokens(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithMaxAttempts sets the number of provider calls allowed per chunk.
func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.retry.MaxAttempts = n
		}
	}
}

// WithBaseDelay sets the first backoff delay after a rate-limit rejection.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.retry.BaseDelay = d
		}
	}
}

// WithMaxDelay caps a single backoff sleep. A negative value removes the cap.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d != 0 {
			p.retry.MaxDelay = d
		}
	}
}

// WithRequestDelay sets the pause after each successful chunk but the last.
// Zero disables it.
func WithRequestDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.requestDelay = d
		}
	}
}

// WithProgress sets a callback invoked before each chunk is submitted.
func WithProgress(fn func(current, total int)) Option {
	return func(p *Pipeline) {
		p.onProgress = fn
	}
}

// WithRetryHook sets a callback invoked before each backoff sleep.
func WithRetryHook(fn RetryHook) Option {
	return func(p *Pipeline) {
		p.onRetry = fn
	}
}

// WithLogger sets the logger. Without it, Run uses the context's logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// withSleep replaces the request-delay sleep (for testing).
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) {
		p.sleep = fn
	}
}

// New creates a Pipeline sending chunks to c.
func New(c completion.Completer, opts ...Option) *Pipeline {
	p := &Pipeline{
		completer: c,
		splitter:  NewSplitter(nil),
		maxTokens: DefaultMaxChunkTokens,
		retry: apierr.RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   DefaultBaseDelay,
			MaxDelay:    DefaultMaxDelay,
		},
		requestDelay: DefaultRequestDelay,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes job and returns the combined output.
// Empty text returns an empty Result without calling the provider.
// On failure the error is a *ChunkError naming the failing chunk, except for
// an invalid chunk budget, which fails before any chunk is built.
func (p *Pipeline) Run(ctx context.Context, job Job) (Result, error) {
	runID := uuid.NewString()
	log := p.log
	if log == nil {
		log = logger.FromContext(ctx)
	}
	log = log.With("run_id", runID)

	chunks, err := p.splitter.Split(job.Text, p.maxTokens)
	if err != nil {
		return Result{}, err
	}
	if len(chunks) == 0 {
		log.Debug("empty input, nothing to submit")
		return Result{RunID: runID}, nil
	}

	total := len(chunks)
	log.Info("run started", "chunks", total, "max_tokens", p.maxTokens)
	submitter := NewSubmitter(p.completer, p.retry, func(index, attempt int, delay time.Duration, err error) {
		log.Warn("rate limited, backing off", "chunk", index+1, "attempt", attempt, "delay", delay)
		if p.onRetry != nil {
			p.onRetry(index, attempt, delay, err)
		}
	})

	results := make([]string, 0, total)
	attempts := 0
	for _, c := range chunks {
		if p.onProgress != nil {
			p.onProgress(c.Index+1, total)
		}
		log.Debug("submitting chunk", "chunk", c.Index+1, "tokens", c.Tokens)

		text, n, err := submitter.Submit(ctx, c.Index, completion.Request{
			Model:           job.Model,
			Instruction:     job.Instruction,
			Content:         c.Content,
			MaxOutputTokens: job.MaxOutputTokens,
		})
		attempts += n
		if err != nil {
			cerr := &ChunkError{Index: c.Index, Total: total, Kind: failureKind(ctx, err), Attempts: n, Err: err}
			log.Error("chunk failed", "chunk", c.Index+1, "kind", cerr.Kind, "attempts", n, "error", err)
			return Result{}, cerr
		}
		results = append(results, text)

		if c.Index < total-1 {
			if err := p.sleep(ctx, p.requestDelay); err != nil {
				return Result{}, &ChunkError{Index: c.Index + 1, Total: total, Kind: Canceled, Err: err}
			}
		}
	}

	log.Info("run finished", "chunks", total, "attempts", attempts)
	return Result{
		Text:     strings.Join(results, resultSep),
		Chunks:   total,
		Attempts: attempts,
		RunID:    runID,
	}, nil
}

// failureKind tags a Submit error.
func failureKind(ctx context.Context, err error) Kind {
	switch {
	case errors.Is(err, ErrRetryBudgetExhausted):
		return RetryBudgetExhausted
	case ctx.Err() != nil:
		return Canceled
	default:
		return ProviderError
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
