package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-docpipe/internal/action"
	"github.com/alnah/go-docpipe/internal/completion"
	"github.com/alnah/go-docpipe/internal/config"
	"github.com/alnah/go-docpipe/internal/lang"
	"github.com/alnah/go-docpipe/internal/logger"
	"github.com/alnah/go-docpipe/internal/metrics"
	"github.com/alnah/go-docpipe/internal/pipeline"
)

// processOptions holds validated options for the process command.
type processOptions struct {
	inputs      []string
	action      action.Name
	params      action.Params
	output      string
	metricsFile string
}

// processFlags holds raw flag values that override configuration.
type processFlags struct {
	provider     string
	model        string
	outputDir    string
	maxTokens    int
	maxAttempts  int
	baseDelay    time.Duration
	maxDelay     time.Duration
	requestDelay time.Duration
	parallel     int
}

// ProcessCmd creates the process command (run an action over documents).
// The env parameter provides injectable dependencies for testing.
func ProcessCmd(env *Env) *cobra.Command {
	var (
		actionName  string
		language    string
		instruction string
		output      string
		metricsFile string
		flags       processFlags
	)

	cmd := &cobra.Command{
		Use:   "process <file>...",
		Short: "Apply an action to documents of any length",
		Long: `Apply an action to one or more documents (PDF, text, markdown).

Each document is split into chunks that fit the token budget, the chunks are
sent to the completion provider one at a time, and the answers are joined in
order. Rate-limited requests are retried with exponential backoff.

Actions:
  fix-grammar   Correct grammar, spelling and punctuation
  translate     Translate into --lang (required)
  summarize     Summarize each part of the document
  edit          Apply the free-form --instruction (required)

Several files are processed concurrently, up to --parallel at a time.
Output defaults to <input>_<action>.md in output-dir (or the current
directory). Use -o - to print a single result to stdout.`,
		Example: `  docpipe process report.pdf -a summarize
  docpipe process notes.md -a translate --lang fr -o notes_fr.md
  docpipe process draft.txt -a edit --instruction "make it formal" -o -
  docpipe process *.md -a fix-grammar --parallel 4 --provider openai`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseProcessOptions(args, actionName, language, instruction, output)
			if err != nil {
				return err
			}
			opts.metricsFile = metricsFile
			cfg, err := resolveConfig(cmd, env, flags)
			if err != nil {
				return err
			}
			return runProcess(cmd.Context(), env, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&actionName, "action", "a", "", "Action: "+strings.Join(action.Names(), ", ")+" (required)")
	cmd.Flags().StringVarP(&language, "lang", "l", "", "Target language (ISO 639-1 code, e.g., fr, pt-BR)")
	cmd.Flags().StringVar(&instruction, "instruction", "", "Editing request for the edit action")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path, or - for stdout (single input only)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics of the run to this file")
	cmd.Flags().StringVar(&flags.outputDir, config.KeyOutputDir, "", "Directory for output files")
	cmd.Flags().StringVar(&flags.provider, config.KeyProvider, "", "Completion provider: deepseek, openai")
	cmd.Flags().StringVar(&flags.model, config.KeyModel, "", "Model name (default: provider's default model)")
	cmd.Flags().IntVar(&flags.maxTokens, config.KeyMaxTokens, 0, "Token budget per chunk")
	cmd.Flags().IntVar(&flags.maxAttempts, config.KeyMaxAttempts, 0, "Attempts per chunk when rate limited")
	cmd.Flags().DurationVar(&flags.baseDelay, config.KeyBaseDelay, 0, "First backoff delay after a rate limit")
	cmd.Flags().DurationVar(&flags.maxDelay, config.KeyMaxDelay, 0, "Backoff delay cap")
	cmd.Flags().DurationVar(&flags.requestDelay, config.KeyRequestDelay, 0, "Pause between two chunk requests")
	cmd.Flags().IntVar(&flags.parallel, config.KeyParallel, 0, "Files processed at the same time")

	// Error is ignored: MarkFlagRequired only fails if the flag doesn't exist.
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

// parseProcessOptions validates and parses CLI inputs into processOptions.
func parseProcessOptions(inputs []string, actionName, language, instruction, output string) (processOptions, error) {
	name, err := action.ParseName(actionName)
	if err != nil {
		return processOptions{}, err
	}
	parsedLang, err := lang.Parse(language)
	if err != nil {
		return processOptions{}, err
	}
	params := action.Params{Language: parsedLang, Instruction: instruction}
	// Surface missing --lang / --instruction before any file is read.
	if _, err := name.Instruction(params); err != nil {
		return processOptions{}, err
	}
	if output != "" && len(inputs) > 1 {
		return processOptions{}, fmt.Errorf("-o cannot be used with %d input files: %w", len(inputs), ErrOutputConflict)
	}
	return processOptions{inputs: inputs, action: name, params: params, output: output}, nil
}

// resolveConfig loads the configuration and applies explicitly set flags.
func resolveConfig(cmd *cobra.Command, env *Env, f processFlags) (*config.Config, error) {
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	set := cmd.Flags().Changed
	if set(config.KeyOutputDir) {
		cfg.OutputDir = f.outputDir
	}
	if set(config.KeyProvider) {
		cfg.Provider = f.provider
	}
	if set(config.KeyModel) {
		cfg.Model = f.model
	}
	if set(config.KeyMaxTokens) {
		cfg.MaxTokens = f.maxTokens
	}
	if set(config.KeyMaxAttempts) {
		cfg.MaxAttempts = f.maxAttempts
	}
	if set(config.KeyBaseDelay) {
		cfg.BaseDelay = f.baseDelay
	}
	if set(config.KeyMaxDelay) {
		cfg.MaxDelay = f.maxDelay
	}
	if set(config.KeyRequestDelay) {
		cfg.RequestDelay = f.requestDelay
	}
	if set(config.KeyParallel) {
		cfg.Parallel = f.parallel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runProcess executes the process command with validated options.
func runProcess(ctx context.Context, env *Env, cfg *config.Config, opts processOptions) (err error) {
	// === SETUP (fail-fast) ===

	provider, err := completion.ParseProvider(cfg.Provider)
	if err != nil {
		return err
	}
	apiKey := env.Getenv(provider.APIKeyEnv())
	if apiKey == "" {
		return fmt.Errorf("%s (set it with: export %s=sk-...): %w", provider.APIKeyEnv(), provider.APIKeyEnv(), ErrAPIKeyMissing)
	}

	instruction, err := opts.action.Instruction(opts.params)
	if err != nil {
		return err
	}

	if cfg.OutputDir != "" && opts.output != stdoutPath {
		if err := config.EnsureOutputDir(cfg.OutputDir); err != nil {
			return fmt.Errorf("invalid output-dir: %w", err)
		}
	}

	outputs := make([]string, len(opts.inputs))
	for i, in := range opts.inputs {
		if opts.output == stdoutPath {
			outputs[i] = stdoutPath
			continue
		}
		outputs[i] = config.ResolveOutputPath(opts.output, cfg.OutputDir, deriveOutputPath(in, opts.action.String()))
		if _, err := os.Stat(outputs[i]); err == nil {
			return fmt.Errorf("%s: %w", outputs[i], ErrOutputExists)
		}
	}

	completer, err := env.CompleterFactory.NewCompleter(provider, apiKey, cfg.Model)
	if err != nil {
		return err
	}

	rec := metrics.New()
	if opts.metricsFile != "" {
		defer func() {
			if werr := rec.WriteFile(opts.metricsFile); werr != nil {
				err = errors.Join(err, werr)
			}
		}()
	}
	model := cfg.Model
	if model == "" {
		model = provider.DefaultModel()
	}

	// === PROCESS ===

	stderr := &lockedWriter{w: env.Stderr}
	log := logger.FromContext(ctx)
	log.Debug("processing", "files", len(opts.inputs), "action", opts.action, "provider", provider, "model", model)

	job := fileJob{
		env:         env,
		cfg:         cfg,
		completer:   rec.Instrument(completer),
		metrics:     rec,
		model:       model,
		instruction: instruction,
		stderr:      stderr,
		log:         log,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for i, in := range opts.inputs {
		g.Go(func() error {
			return job.run(gctx, in, outputs[i])
		})
	}
	return g.Wait()
}

// fileJob carries what every file worker shares.
type fileJob struct {
	env         *Env
	cfg         *config.Config
	completer   completion.Completer
	metrics     *metrics.Recorder
	model       string
	instruction string
	stderr      io.Writer
	log         logger.Logger
}

// run processes one input and records its outcome.
func (j fileJob) run(ctx context.Context, inputPath, outputPath string) error {
	start := time.Now()
	res, err := j.process(ctx, inputPath, outputPath)
	if err != nil {
		j.metrics.RunFailed(err, time.Since(start))
		return err
	}
	j.metrics.RunSucceeded(res, time.Since(start))
	return nil
}

// process extracts one input, runs the pipeline on it, and writes the result.
func (j fileJob) process(ctx context.Context, inputPath, outputPath string) (pipeline.Result, error) {
	name := filepath.Base(inputPath)
	_, _ = fmt.Fprintf(j.stderr, "Reading %s...\n", inputPath)

	doc, err := j.env.Extractor.ExtractFile(ctx, inputPath)
	if err != nil {
		return pipeline.Result{}, err
	}

	p := pipeline.New(j.completer,
		pipeline.WithTokenizer(j.env.Tokenizers.ForModel(j.model)),
		pipeline.WithMaxChunkTokens(j.cfg.MaxTokens),
		pipeline.WithMaxAttempts(j.cfg.MaxAttempts),
		pipeline.WithBaseDelay(j.cfg.BaseDelay),
		pipeline.WithMaxDelay(j.cfg.MaxDelay),
		pipeline.WithRequestDelay(j.cfg.RequestDelay),
		pipeline.WithLogger(j.log.With("file", name)),
		pipeline.WithProgress(func(current, total int) {
			_, _ = fmt.Fprintf(j.stderr, "  %s: processing part %d/%d...\n", name, current, total)
		}),
		pipeline.WithRetryHook(func(index, attempt int, delay time.Duration, _ error) {
			_, _ = fmt.Fprintf(j.stderr, "  %s: part %d rate limited (attempt %d), retrying in %s\n", name, index+1, attempt, delay)
		}),
	)

	result, err := p.Run(ctx, pipeline.Job{
		Text:        doc.Text,
		Instruction: j.instruction,
		Model:       j.cfg.Model,
	})
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("%s: %w", inputPath, err)
	}

	// An empty document yields an empty result and no provider calls.
	content := result.Text
	if content != "" {
		content += "\n"
	}

	if outputPath == stdoutPath {
		_, err := fmt.Fprint(j.env.Stdout, content)
		return result, err
	}

	warnNonMarkdownExtension(j.stderr, outputPath)
	if err := writeFileAtomic(outputPath, content); err != nil {
		return pipeline.Result{}, err
	}
	_, _ = fmt.Fprintf(j.stderr, "Done: %s (%d parts, %d requests)\n", outputPath, result.Chunks, result.Attempts)
	return result, nil
}
