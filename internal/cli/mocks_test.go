package cli

import (
	"context"
	"strings"
	"sync"

	"github.com/alnah/go-docpipe/internal/completion"
	"github.com/alnah/go-docpipe/internal/config"
	"github.com/alnah/go-docpipe/internal/tokenize"
)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func() (*config.Config, error)

	mu        sync.Mutex
	loadCalls int
}

func (m *mockConfigLoader) Load() (*config.Config, error) {
	m.mu.Lock()
	m.loadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return testConfig(), nil
}

func (m *mockConfigLoader) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// ---------------------------------------------------------------------------
// Mock CompleterFactory + Completer
// ---------------------------------------------------------------------------

type completerCall struct {
	Provider completion.Provider
	APIKey   string
	Model    string
}

type mockCompleterFactory struct {
	NewCompleterFunc func(provider completion.Provider, apiKey, model string) (completion.Completer, error)
	completer        *mockCompleter

	mu    sync.Mutex
	calls []completerCall
}

func (m *mockCompleterFactory) NewCompleter(provider completion.Provider, apiKey, model string) (completion.Completer, error) {
	m.mu.Lock()
	m.calls = append(m.calls, completerCall{Provider: provider, APIKey: apiKey, Model: model})
	m.mu.Unlock()

	if m.NewCompleterFunc != nil {
		return m.NewCompleterFunc(provider, apiKey, model)
	}
	if m.completer == nil {
		m.completer = &mockCompleter{}
	}
	return m.completer, nil
}

func (m *mockCompleterFactory) Calls() []completerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]completerCall(nil), m.calls...)
}

// mockCompleter upper-cases the content by default.
type mockCompleter struct {
	CompleteFunc func(ctx context.Context, req completion.Request) (string, error)

	mu       sync.Mutex
	requests []completion.Request
}

func (m *mockCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return strings.ToUpper(req.Content), nil
}

func (m *mockCompleter) Requests() []completion.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]completion.Request(nil), m.requests...)
}

// ---------------------------------------------------------------------------
// Mock TokenizerSource
// ---------------------------------------------------------------------------

// mockTokenizers counts one token per rune and records requested models.
type mockTokenizers struct {
	mu     sync.Mutex
	models []string
}

func (m *mockTokenizers) ForModel(model string) tokenize.Tokenizer {
	m.mu.Lock()
	m.models = append(m.models, model)
	m.mu.Unlock()
	return tokenize.Chars{PerToken: 1}
}

func (m *mockTokenizers) Models() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.models...)
}

// Compile-time interface verification.
var (
	_ ConfigLoader         = (*mockConfigLoader)(nil)
	_ CompleterFactory     = (*mockCompleterFactory)(nil)
	_ completion.Completer = (*mockCompleter)(nil)
	_ TokenizerSource      = (*mockTokenizers)(nil)
)
