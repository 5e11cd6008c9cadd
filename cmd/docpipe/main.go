package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/alnah/go-docpipe/internal/action"
	"github.com/alnah/go-docpipe/internal/apierr"
	"github.com/alnah/go-docpipe/internal/cli"
	"github.com/alnah/go-docpipe/internal/completion"
	"github.com/alnah/go-docpipe/internal/config"
	"github.com/alnah/go-docpipe/internal/extract"
	"github.com/alnah/go-docpipe/internal/lang"
	"github.com/alnah/go-docpipe/internal/logger"
	"github.com/alnah/go-docpipe/internal/pipeline"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitSetup      = 3
	ExitValidation = 4
	ExitProvider   = 5
	ExitPipeline   = 6
	ExitInterrupt  = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// Context with signal cancellation.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := cli.RootCmd(cli.DefaultEnv(), fmt.Sprintf("%s (commit: %s)", version, commit))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to process exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Check for context cancellation (interrupt).
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Usage errors: Cobra flag/arg parsing errors.
	if isCobraUsageError(err) || errors.Is(err, logger.ErrInvalidLevel) {
		return ExitUsage
	}

	// Setup errors.
	if errors.Is(err, cli.ErrAPIKeyMissing) || errors.Is(err, completion.ErrEmptyAPIKey) ||
		errors.Is(err, completion.ErrInvalidProvider) || errors.Is(err, config.ErrNotDirectory) ||
		errors.Is(err, config.ErrNotWritable) {
		return ExitSetup
	}

	// Validation errors.
	if errors.Is(err, config.ErrInvalid) || errors.Is(err, config.ErrUnknownKey) ||
		errors.Is(err, action.ErrUnknown) || errors.Is(err, action.ErrMissingLanguage) ||
		errors.Is(err, action.ErrMissingInstruction) || errors.Is(err, lang.ErrInvalid) ||
		errors.Is(err, cli.ErrOutputExists) || errors.Is(err, cli.ErrOutputConflict) ||
		errors.Is(err, extract.ErrFileNotFound) ||
		errors.Is(err, extract.ErrUnsupportedType) || errors.Is(err, extract.ErrFileTooLarge) ||
		errors.Is(err, extract.ErrInvalidPDF) || errors.Is(err, extract.ErrInvalidEncoding) {
		return ExitValidation
	}

	// Pipeline errors: the retry budget ran out on a chunk.
	// Checked before provider errors since exhaustion also matches ErrRateLimit.
	if errors.Is(err, pipeline.ErrRetryBudgetExhausted) || errors.Is(err, pipeline.ErrInvalidBudget) {
		return ExitPipeline
	}

	// Provider errors.
	if apierr.KindOf(err) != apierr.KindUnknown || errors.Is(err, completion.ErrEmptyResponse) {
		return ExitProvider
	}

	var cerr *pipeline.ChunkError
	if errors.As(err, &cerr) {
		return ExitPipeline
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// Cobra doesn't expose typed errors, so string matching is the only reliable approach.
var cobraUsageErrorPatterns = []string{
	"required flag",          // Missing required flag
	"unknown flag",           // Flag doesn't exist
	"unknown shorthand",      // Short flag doesn't exist
	"unknown command",        // Subcommand doesn't exist
	"flag needs an argument", // Flag provided without value
	"invalid argument",       // Invalid flag value type
	"accepts ",               // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",      // Too few arguments
	"requires at most",       // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
// Cobra errors are plain strings, so chunk and provider errors never qualify
// whatever their message says.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	var cerr *pipeline.ChunkError
	if errors.As(err, &cerr) || apierr.KindOf(err) != apierr.KindUnknown {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
