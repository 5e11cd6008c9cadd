package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alnah/go-docpipe/internal/action"
	"github.com/alnah/go-docpipe/internal/apierr"
	"github.com/alnah/go-docpipe/internal/completion"
	"github.com/alnah/go-docpipe/internal/config"
	"github.com/alnah/go-docpipe/internal/extract"
	"github.com/alnah/go-docpipe/internal/lang"
	"github.com/alnah/go-docpipe/internal/logger"
	"github.com/alnah/go-docpipe/internal/pipeline"
)

// Notes:
// - Tests drive runProcess and the cobra commands with a mocked provider
// - Input files are real temp files read by the real extractor
// - Every test sets output-dir or -o so nothing is written to the working directory

// ---------------------------------------------------------------------------
// TestDeriveOutputPath - Default output naming
// ---------------------------------------------------------------------------

func TestDeriveOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		action string
		want   string
	}{
		{"report.pdf", "summarize", "report_summarize.md"},
		{"/path/to/notes.md", "fix-grammar", "notes_fix-grammar.md"},
		{"archive.tar.txt", "translate", "archive.tar_translate.md"},
		{"README", "edit", "README_edit.md"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := deriveOutputPath(tt.input, tt.action); got != tt.want {
				t.Errorf("deriveOutputPath(%q, %q) = %q, want %q", tt.input, tt.action, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestParseProcessOptions - CLI input parsing and validation
// ---------------------------------------------------------------------------

func TestParseProcessOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		inputs      []string
		action      string
		lang        string
		instruction string
		output      string
		wantErr     error
	}{
		{name: "summarize", inputs: []string{"a.md"}, action: "summarize"},
		{name: "translate with language", inputs: []string{"a.md"}, action: "translate", lang: "fr"},
		{name: "edit with instruction", inputs: []string{"a.md"}, action: "edit", instruction: "shorter"},
		{name: "output with one input", inputs: []string{"a.md"}, action: "summarize", output: "out.md"},
		{name: "translate without language", inputs: []string{"a.md"}, action: "translate", wantErr: action.ErrMissingLanguage},
		{name: "edit without instruction", inputs: []string{"a.md"}, action: "edit", instruction: "  ", wantErr: action.ErrMissingInstruction},
		{name: "unknown action", inputs: []string{"a.md"}, action: "rewrite", wantErr: action.ErrUnknown},
		{name: "invalid language", inputs: []string{"a.md"}, action: "summarize", lang: "xx", wantErr: lang.ErrInvalid},
		{name: "output with several inputs", inputs: []string{"a.md", "b.md"}, action: "summarize", output: "out.md", wantErr: ErrOutputConflict},
		{name: "stdout with several inputs", inputs: []string{"a.md", "b.md"}, action: "summarize", output: "-", wantErr: ErrOutputConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts, err := parseProcessOptions(tt.inputs, tt.action, tt.lang, tt.instruction, tt.output)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("parseProcessOptions() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseProcessOptions() unexpected error: %v", err)
			}
			if opts.action.String() != tt.action || len(opts.inputs) != len(tt.inputs) {
				t.Errorf("parseProcessOptions() = %+v", opts)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRunProcess - End-to-end command behavior with a mocked provider
// ---------------------------------------------------------------------------

func mustOptions(t *testing.T, inputs []string, actionName, output string) processOptions {
	t.Helper()
	opts, err := parseProcessOptions(inputs, actionName, "", "", output)
	if err != nil {
		t.Fatalf("parseProcessOptions() unexpected error: %v", err)
	}
	return opts
}

func TestRunProcess(t *testing.T) {
	t.Parallel()

	t.Run("writes chunked result to default output", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		input := createInputFile(t, "notes.md", "alpha\n\nbravo")

		err := runProcess(t.Context(), env, cfg, mustOptions(t, []string{input}, "summarize", ""))
		if err != nil {
			t.Fatalf("runProcess() unexpected error: %v", err)
		}

		out := filepath.Join(cfg.OutputDir, "notes_summarize.md")
		if got := readFile(t, out); got != "ALPHA\n\nBRAVO\n" {
			t.Errorf("output = %q", got)
		}
		if reqs := m.completer.Requests(); len(reqs) != 2 {
			t.Fatalf("got %d requests, want 2", len(reqs))
		}
		stderr := m.stderr.String()
		for _, want := range []string{"processing part 1/2", "processing part 2/2", "Done: " + out} {
			if !strings.Contains(stderr, want) {
				t.Errorf("stderr missing %q:\n%s", want, stderr)
			}
		}
	})

	t.Run("sends action instruction and configured model", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		cfg.Model = "deepseek-reasoner"
		input := createInputFile(t, "doc.txt", "hello")

		opts, err := parseProcessOptions([]string{input}, "translate", "fr", "", "")
		if err != nil {
			t.Fatalf("parseProcessOptions() unexpected error: %v", err)
		}
		if err := runProcess(t.Context(), env, cfg, opts); err != nil {
			t.Fatalf("runProcess() unexpected error: %v", err)
		}

		calls := m.completers.Calls()
		if len(calls) != 1 || calls[0].APIKey != "test-deepseek-key" || calls[0].Model != "deepseek-reasoner" {
			t.Errorf("NewCompleter calls = %+v", calls)
		}
		if models := m.tokenizers.Models(); len(models) != 1 || models[0] != "deepseek-reasoner" {
			t.Errorf("tokenizer models = %v", models)
		}
		req := m.completer.Requests()[0]
		if !strings.Contains(req.Instruction, "French") || req.Model != "deepseek-reasoner" {
			t.Errorf("request = %+v", req)
		}
	})

	t.Run("tokenizer follows provider default model", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		cfg.Provider = "openai"
		input := createInputFile(t, "doc.txt", "hello")

		if err := runProcess(t.Context(), env, cfg, mustOptions(t, []string{input}, "summarize", "")); err != nil {
			t.Fatalf("runProcess() unexpected error: %v", err)
		}
		if got := m.tokenizers.Models(); len(got) != 1 || got[0] != completion.OpenAI.DefaultModel() {
			t.Errorf("tokenizer models = %v", got)
		}
		if calls := m.completers.Calls(); calls[0].APIKey != "test-openai-key" || calls[0].Provider != completion.OpenAI {
			t.Errorf("NewCompleter calls = %+v", calls)
		}
	})

	t.Run("prints to stdout with -o -", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		input := createInputFile(t, "doc.md", "quiet")

		if err := runProcess(t.Context(), env, testConfig(), mustOptions(t, []string{input}, "summarize", "-")); err != nil {
			t.Fatalf("runProcess() unexpected error: %v", err)
		}
		if got := m.stdout.String(); got != "QUIET\n" {
			t.Errorf("stdout = %q, want %q", got, "QUIET\n")
		}
	})

	t.Run("missing API key fails before any request", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(staticEnv(map[string]string{"OPENAI_API_KEY": "k"}))
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		input := createInputFile(t, "doc.md", "text")

		err := runProcess(t.Context(), env, cfg, mustOptions(t, []string{input}, "summarize", ""))
		if !errors.Is(err, ErrAPIKeyMissing) {
			t.Errorf("runProcess() error = %v, want ErrAPIKeyMissing", err)
		}
		if !strings.Contains(err.Error(), "DEEPSEEK_API_KEY") {
			t.Errorf("error %q should name the variable", err)
		}
		if len(m.completers.Calls()) != 0 {
			t.Error("completer was created")
		}
	})

	t.Run("existing output fails before any request", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		existing := filepath.Join(cfg.OutputDir, "doc_summarize.md")
		if err := os.WriteFile(existing, []byte("keep"), 0o644); err != nil {
			t.Fatal(err)
		}
		input := createInputFile(t, "doc.md", "text")

		err := runProcess(t.Context(), env, cfg, mustOptions(t, []string{input}, "summarize", ""))
		if !errors.Is(err, ErrOutputExists) {
			t.Errorf("runProcess() error = %v, want ErrOutputExists", err)
		}
		if len(m.completer.Requests()) != 0 {
			t.Error("provider was called")
		}
		if got := readFile(t, existing); got != "keep" {
			t.Errorf("existing output overwritten: %q", got)
		}
	})

	t.Run("empty document writes empty output without requests", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		input := createInputFile(t, "blank.md", "  \n\n ")

		if err := runProcess(t.Context(), env, cfg, mustOptions(t, []string{input}, "summarize", "")); err != nil {
			t.Fatalf("runProcess() unexpected error: %v", err)
		}
		if n := len(m.completer.Requests()); n != 0 {
			t.Errorf("got %d requests, want 0", n)
		}
		if got := readFile(t, filepath.Join(cfg.OutputDir, "blank_summarize.md")); got != "" {
			t.Errorf("output = %q, want empty", got)
		}
		if !strings.Contains(m.stderr.String(), "(0 parts, 0 requests)") {
			t.Errorf("stderr = %q, want a done line with 0 parts", m.stderr.String())
		}
	})

	t.Run("empty document prints nothing to stdout", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		input := createInputFile(t, "empty.txt", "")

		if err := runProcess(t.Context(), env, testConfig(), mustOptions(t, []string{input}, "summarize", "-")); err != nil {
			t.Fatalf("runProcess() unexpected error: %v", err)
		}
		if got := m.stdout.String(); got != "" {
			t.Errorf("stdout = %q, want empty", got)
		}
		if n := len(m.completer.Requests()); n != 0 {
			t.Errorf("got %d requests, want 0", n)
		}
	})

	t.Run("unsupported file type", func(t *testing.T) {
		t.Parallel()

		env, _ := testEnv(nil)
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		input := createInputFile(t, "photo.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

		err := runProcess(t.Context(), env, cfg, mustOptions(t, []string{input}, "summarize", ""))
		if !errors.Is(err, extract.ErrUnsupportedType) {
			t.Errorf("runProcess() error = %v, want ErrUnsupportedType", err)
		}
	})

	t.Run("provider failure leaves no output", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		m.completer.CompleteFunc = func(_ context.Context, req completion.Request) (string, error) {
			if req.Content == "bravo" {
				return "", fmt.Errorf("401: %w", apierr.ErrAuthFailed)
			}
			return req.Content, nil
		}
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		input := createInputFile(t, "doc.md", "alpha\n\nbravo\n\ncharlie")

		err := runProcess(t.Context(), env, cfg, mustOptions(t, []string{input}, "summarize", ""))
		var cerr *pipeline.ChunkError
		if !errors.As(err, &cerr) {
			t.Fatalf("runProcess() error = %v, want *pipeline.ChunkError", err)
		}
		if cerr.Index != 1 || cerr.Kind != pipeline.ProviderError || !errors.Is(err, apierr.ErrAuthFailed) {
			t.Errorf("ChunkError = %+v", cerr)
		}
		if _, statErr := os.Stat(filepath.Join(cfg.OutputDir, "doc_summarize.md")); !os.IsNotExist(statErr) {
			t.Errorf("output file exists after failure: %v", statErr)
		}
	})

	t.Run("metrics file is written on failure", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		m.completer.CompleteFunc = func(_ context.Context, req completion.Request) (string, error) {
			if req.Content == "bravo" {
				return "", fmt.Errorf("401: %w", apierr.ErrAuthFailed)
			}
			return req.Content, nil
		}
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		input := createInputFile(t, "doc.md", "alpha\n\nbravo\n\ncharlie")
		opts := mustOptions(t, []string{input}, "summarize", "")
		opts.metricsFile = filepath.Join(t.TempDir(), "docpipe.prom")

		err := runProcess(t.Context(), env, cfg, opts)
		if !errors.Is(err, apierr.ErrAuthFailed) {
			t.Fatalf("runProcess() error = %v, want ErrAuthFailed", err)
		}
		got := readFile(t, opts.metricsFile)
		for _, want := range []string{
			`docpipe_files_total{result="provider_error"} 1`,
			`docpipe_requests_total{result="ok"} 1`,
			`docpipe_requests_total{result="error"} 1`,
			`docpipe_chunks_completed_total 1`,
		} {
			if !strings.Contains(got, want) {
				t.Errorf("metrics file missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("rate limit retries are reported", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		var calls atomic.Int32
		m.completer.CompleteFunc = func(_ context.Context, req completion.Request) (string, error) {
			if calls.Add(1) == 1 {
				return "", fmt.Errorf("429: %w", apierr.ErrRateLimit)
			}
			return req.Content, nil
		}
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		input := createInputFile(t, "doc.md", "alpha")

		if err := runProcess(t.Context(), env, cfg, mustOptions(t, []string{input}, "summarize", "")); err != nil {
			t.Fatalf("runProcess() unexpected error: %v", err)
		}
		if !strings.Contains(m.stderr.String(), "part 1 rate limited (attempt 1)") {
			t.Errorf("stderr missing retry line:\n%s", m.stderr.String())
		}
		if !strings.Contains(m.stderr.String(), "(1 parts, 2 requests)") {
			t.Errorf("stderr missing summary:\n%s", m.stderr.String())
		}
	})

	t.Run("processes several files within the parallel limit", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		var inFlight, peak atomic.Int32
		m.completer.CompleteFunc = func(_ context.Context, req completion.Request) (string, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return strings.ToUpper(req.Content), nil
		}
		cfg := testConfig()
		cfg.OutputDir = t.TempDir()
		cfg.Parallel = 2

		dir := t.TempDir()
		var inputs []string
		for _, name := range []string{"a", "b", "c", "d"} {
			p := filepath.Join(dir, name+".md")
			if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
				t.Fatal(err)
			}
			inputs = append(inputs, p)
		}

		if err := runProcess(t.Context(), env, cfg, mustOptions(t, inputs, "summarize", "")); err != nil {
			t.Fatalf("runProcess() unexpected error: %v", err)
		}
		for _, name := range []string{"a", "b", "c", "d"} {
			got := readFile(t, filepath.Join(cfg.OutputDir, name+"_summarize.md"))
			if got != strings.ToUpper(name)+"\n" {
				t.Errorf("%s output = %q", name, got)
			}
		}
		if p := peak.Load(); p > 2 {
			t.Errorf("peak concurrent requests = %d, want <= 2", p)
		}
	})
}

// ---------------------------------------------------------------------------
// TestProcessCmd - Flags, config overrides and logging through cobra
// ---------------------------------------------------------------------------

func executeRoot(t *testing.T, env *Env, args ...string) error {
	t.Helper()
	cmd := RootCmd(env, "test")
	cmd.SetArgs(args)
	cmd.SetOut(env.Stdout)
	cmd.SetErr(env.Stderr)
	return cmd.ExecuteContext(t.Context())
}

func TestProcessCmd(t *testing.T) {
	t.Parallel()

	t.Run("flags override configuration", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		outDir := t.TempDir()
		input := createInputFile(t, "doc.md", "alpha bravo")

		err := executeRoot(t, env, "process", input, "-a", "summarize",
			"--max-tokens", "5", "--output-dir", outDir, "--request-delay", "0s")
		if err != nil {
			t.Fatalf("Execute() unexpected error: %v", err)
		}
		if n := len(m.completer.Requests()); n != 2 {
			t.Errorf("got %d requests with --max-tokens 5, want 2", n)
		}
		if got := readFile(t, filepath.Join(outDir, "doc_summarize.md")); got != "ALPHA\n\nBRAVO\n" {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("metrics file records the run", func(t *testing.T) {
		t.Parallel()

		env, _ := testEnv(nil)
		outDir := t.TempDir()
		metricsPath := filepath.Join(t.TempDir(), "run.prom")
		input := createInputFile(t, "doc.md", "alpha bravo")

		err := executeRoot(t, env, "process", input, "-a", "summarize",
			"--max-tokens", "5", "--output-dir", outDir, "--metrics-file", metricsPath)
		if err != nil {
			t.Fatalf("Execute() unexpected error: %v", err)
		}
		got := readFile(t, metricsPath)
		for _, want := range []string{
			`docpipe_files_total{result="ok"} 1`,
			`docpipe_requests_total{result="ok"} 2`,
			`docpipe_chunks_completed_total 2`,
			`docpipe_run_duration_seconds_count 1`,
		} {
			if !strings.Contains(got, want) {
				t.Errorf("metrics file missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("invalid flag value fails validation", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		input := createInputFile(t, "doc.md", "text")

		err := executeRoot(t, env, "process", input, "-a", "summarize", "--parallel", "0", "-o", "-")
		if !errors.Is(err, config.ErrInvalid) {
			t.Errorf("Execute() error = %v, want config.ErrInvalid", err)
		}
		if len(m.completer.Requests()) != 0 {
			t.Error("provider was called")
		}
	})

	t.Run("config load failure is reported", func(t *testing.T) {
		t.Parallel()

		env, _ := testEnv(nil)
		env.ConfigLoader = &mockConfigLoader{LoadFunc: func() (*config.Config, error) {
			return nil, fmt.Errorf("bad env: %w", config.ErrInvalid)
		}}
		input := createInputFile(t, "doc.md", "text")

		err := executeRoot(t, env, "process", input, "-a", "summarize", "-o", "-")
		if !errors.Is(err, config.ErrInvalid) {
			t.Errorf("Execute() error = %v, want config.ErrInvalid", err)
		}
	})

	t.Run("action flag is required", func(t *testing.T) {
		t.Parallel()

		env, _ := testEnv(nil)
		err := executeRoot(t, env, "process", "doc.md")
		if err == nil || !strings.Contains(err.Error(), "required flag") {
			t.Errorf("Execute() error = %v, want required flag error", err)
		}
	})

	t.Run("at least one input is required", func(t *testing.T) {
		t.Parallel()

		env, _ := testEnv(nil)
		err := executeRoot(t, env, "process", "-a", "summarize")
		if err == nil || !strings.Contains(err.Error(), "requires at least") {
			t.Errorf("Execute() error = %v, want argument count error", err)
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		t.Parallel()

		env, _ := testEnv(nil)
		err := executeRoot(t, env, "--log-level", "loud", "process", "doc.md", "-a", "summarize")
		if !errors.Is(err, logger.ErrInvalidLevel) {
			t.Errorf("Execute() error = %v, want ErrInvalidLevel", err)
		}
	})

	t.Run("debug logs carry run and file fields", func(t *testing.T) {
		t.Parallel()

		env, m := testEnv(nil)
		input := createInputFile(t, "doc.md", "alpha")

		err := executeRoot(t, env, "--log-level", "debug", "--log-json", "process", input, "-a", "summarize", "-o", "-")
		if err != nil {
			t.Fatalf("Execute() unexpected error: %v", err)
		}
		stderr := m.stderr.String()
		for _, want := range []string{`"run_id"`, `"file":"doc.md"`, `"msg":"run finished"`} {
			if !strings.Contains(stderr, want) {
				t.Errorf("logs missing %s:\n%s", want, stderr)
			}
		}
	})
}
