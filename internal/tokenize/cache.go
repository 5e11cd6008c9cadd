package tokenize

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCacheSize bounds the number of loaded encodings kept in memory.
const defaultCacheSize = 8

// Cache resolves a Tokenizer per model and keeps recently used ones loaded.
// When an exact encoding cannot be loaded, it falls back to a Chars tokenizer
// so a missing BPE file never blocks processing.
type Cache struct {
	entries  *lru.Cache[string, Tokenizer]
	load     func(model string) (Tokenizer, error)
	fallback Tokenizer
	onFall   func(model string, err error)
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLoader replaces the exact tokenizer loader (defaults to NewTiktoken).
func WithLoader(load func(model string) (Tokenizer, error)) CacheOption {
	return func(c *Cache) {
		if load != nil {
			c.load = load
		}
	}
}

// WithFallback sets the tokenizer used when loading fails.
func WithFallback(t Tokenizer) CacheOption {
	return func(c *Cache) {
		if t != nil {
			c.fallback = t
		}
	}
}

// WithFallbackHook is called every time a model falls back to the approximation.
func WithFallbackHook(fn func(model string, err error)) CacheOption {
	return func(c *Cache) {
		c.onFall = fn
	}
}

// NewCache creates a model-keyed tokenizer cache holding at most size entries.
func NewCache(size int, opts ...CacheOption) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[string, Tokenizer](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer cache: %w", err)
	}
	c := &Cache{
		entries: entries,
		load: func(model string) (Tokenizer, error) {
			return NewTiktoken(model)
		},
		fallback: NewChars(DefaultCharsPerToken),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ForModel returns the tokenizer for model, loading it on first use.
// Fallbacks are not cached, so a later call retries the exact loader.
func (c *Cache) ForModel(model string) Tokenizer {
	if t, ok := c.entries.Get(model); ok {
		return t
	}
	t, err := c.load(model)
	if err != nil {
		if c.onFall != nil {
			c.onFall(model, err)
		}
		return c.fallback
	}
	c.entries.Add(model, t)
	return t
}

// Len returns the number of cached tokenizers.
func (c *Cache) Len() int {
	return c.entries.Len()
}
