package completion

import (
	"errors"
	"fmt"
)

// Provider name constants.
const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
)

// ErrInvalidProvider indicates an invalid provider name was specified.
var ErrInvalidProvider = errors.New("invalid provider")

// Provider represents a validated OpenAI-compatible completion provider.
// Zero value is invalid and must be defaulted with OrDefault before use.
type Provider struct {
	name string
}

// Compile-time interface compliance check.
var _ fmt.Stringer = Provider{}

// Pre-parsed provider constants for use in code.
var (
	DeepSeek = Provider{name: ProviderDeepSeek}
	OpenAI   = Provider{name: ProviderOpenAI}
)

// providerDefaults holds the per-provider endpoint and model.
var providerDefaults = map[string]struct {
	baseURL string
	model   string
	envKey  string
}{
	ProviderDeepSeek: {baseURL: "https://api.deepseek.com/v1", model: "deepseek-chat", envKey: "DEEPSEEK_API_KEY"},
	ProviderOpenAI:   {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini", envKey: "OPENAI_API_KEY"},
}

// ParseProvider validates and parses a provider name string.
func ParseProvider(s string) (Provider, error) {
	if s == "" {
		return Provider{}, fmt.Errorf("provider cannot be empty: %w", ErrInvalidProvider)
	}
	if _, ok := providerDefaults[s]; !ok {
		return Provider{}, fmt.Errorf("unknown provider %q (use 'deepseek' or 'openai'): %w", s, ErrInvalidProvider)
	}
	return Provider{name: s}, nil
}

// String returns the provider name string.
func (p Provider) String() string {
	return p.name
}

// IsZero returns true if no provider is set.
func (p Provider) IsZero() bool {
	return p.name == ""
}

// OrDefault returns the provider, or DeepSeek if zero.
func (p Provider) OrDefault() Provider {
	if p.IsZero() {
		return DeepSeek
	}
	return p
}

// BaseURL returns the provider's API base URL.
func (p Provider) BaseURL() string {
	return providerDefaults[p.OrDefault().name].baseURL
}

// DefaultModel returns the model used when none is configured.
func (p Provider) DefaultModel() string {
	return providerDefaults[p.OrDefault().name].model
}

// APIKeyEnv returns the environment variable holding the provider's API key.
func (p Provider) APIKeyEnv() string {
	return providerDefaults[p.OrDefault().name].envKey
}
