package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-docpipe/internal/config"
	"github.com/alnah/go-docpipe/internal/extract"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	configLoader *mockConfigLoader
	completers   *mockCompleterFactory
	completer    *mockCompleter
	tokenizers   *mockTokenizers
	stdout       *syncBuffer
	stderr       *syncBuffer
}

// testEnv creates a test Env with the provider and tokenizer mocked.
// Files are read by the real extractor.
func testEnv(getenv func(string) string) (*Env, *testMocks) {
	m := &testMocks{
		configLoader: &mockConfigLoader{},
		completer:    &mockCompleter{},
		tokenizers:   &mockTokenizers{},
		stdout:       &syncBuffer{},
		stderr:       &syncBuffer{},
	}
	m.completers = &mockCompleterFactory{completer: m.completer}
	if getenv == nil {
		getenv = defaultTestEnv
	}

	env := &Env{
		Stdout:           m.stdout,
		Stderr:           m.stderr,
		Getenv:           getenv,
		ConfigLoader:     m.configLoader,
		CompleterFactory: m.completers,
		Tokenizers:       m.tokenizers,
		Extractor:        extract.New(),
	}
	return env, m
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// testConfig returns a valid configuration with millisecond delays.
func testConfig() *config.Config {
	return &config.Config{
		Provider:     "deepseek",
		MaxTokens:    7,
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		RequestDelay: 0,
		Parallel:     2,
	}
}

// configWith returns a ConfigLoader serving testConfig after mutate.
func configWith(mutate func(*config.Config)) *mockConfigLoader {
	return &mockConfigLoader{
		LoadFunc: func() (*config.Config, error) {
			cfg := testConfig()
			mutate(cfg)
			return cfg, nil
		},
	}
}

// staticEnv returns a getenv function that returns values from the given map.
func staticEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

// defaultTestEnv returns API keys for both OpenAI and DeepSeek.
func defaultTestEnv(key string) string {
	switch key {
	case "OPENAI_API_KEY":
		return "test-openai-key"
	case "DEEPSEEK_API_KEY":
		return "test-deepseek-key"
	default:
		return ""
	}
}

// createInputFile writes content to name in a new temp dir and returns its path.
func createInputFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create input file: %v", err)
	}
	return path
}

// readFile returns the content of path or fails the test.
func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
