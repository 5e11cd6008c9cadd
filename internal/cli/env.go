package cli

import (
	"context"
	"io"
	"os"

	"github.com/alnah/go-docpipe/internal/completion"
	"github.com/alnah/go-docpipe/internal/config"
	"github.com/alnah/go-docpipe/internal/extract"
	"github.com/alnah/go-docpipe/internal/tokenize"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have production defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	// Collaborators
	ConfigLoader     ConfigLoader
	CompleterFactory CompleterFactory
	Tokenizers       TokenizerSource
	Extractor        Extractor
}

// ConfigLoader loads the merged configuration.
type ConfigLoader interface {
	Load() (*config.Config, error)
}

// CompleterFactory creates completion clients.
type CompleterFactory interface {
	NewCompleter(provider completion.Provider, apiKey, model string) (completion.Completer, error)
}

// TokenizerSource resolves the tokenizer for a model.
type TokenizerSource interface {
	ForModel(model string) tokenize.Tokenizer
}

// Extractor reads the text of an input file.
type Extractor interface {
	ExtractFile(ctx context.Context, path string) (extract.Document, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithCompleterFactory sets the completion client factory.
func WithCompleterFactory(f CompleterFactory) EnvOption {
	return func(e *Env) {
		e.CompleterFactory = f
	}
}

// WithTokenizers sets the tokenizer source.
func WithTokenizers(t TokenizerSource) EnvOption {
	return func(e *Env) {
		e.Tokenizers = t
	}
}

// WithExtractor sets the document extractor.
func WithExtractor(x Extractor) EnvOption {
	return func(e *Env) {
		e.Extractor = x
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
		Getenv:           os.Getenv,
		ConfigLoader:     defaultConfigLoader{},
		CompleterFactory: defaultCompleterFactory{},
		Tokenizers:       newDefaultTokenizers(),
		Extractor:        extract.New(),
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (*config.Config, error) {
	return config.Load()
}

// defaultCompleterFactory implements CompleterFactory with the OpenAI-compatible client.
type defaultCompleterFactory struct{}

func (defaultCompleterFactory) NewCompleter(provider completion.Provider, apiKey, model string) (completion.Completer, error) {
	var opts []completion.Option
	if model != "" {
		opts = append(opts, completion.WithModel(model))
	}
	return completion.New(provider, apiKey, "", opts...)
}

// charsOnly always answers with the approximate tokenizer.
type charsOnly struct{}

func (charsOnly) ForModel(string) tokenize.Tokenizer {
	return tokenize.NewChars(tokenize.DefaultCharsPerToken)
}

// newDefaultTokenizers returns a tiktoken cache, or the approximation when
// the cache cannot be built.
func newDefaultTokenizers() TokenizerSource {
	c, err := tokenize.NewCache(0)
	if err != nil {
		return charsOnly{}
	}
	return c
}

// Compile-time interface verification.
var (
	_ ConfigLoader     = defaultConfigLoader{}
	_ CompleterFactory = defaultCompleterFactory{}
	_ TokenizerSource  = (*tokenize.Cache)(nil)
	_ TokenizerSource  = charsOnly{}
	_ Extractor        = (*extract.Extractor)(nil)
)
