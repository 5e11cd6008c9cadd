// Package config loads docpipe settings from three layers, lowest precedence
// first: built-in defaults, the key=value file under the user's config
// directory, and DOCPIPE_* environment variables. The merged result is
// validated before use.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config keys, as written in the config file and accepted by `config set`.
const (
	KeyOutputDir    = "output-dir"
	KeyProvider     = "provider"
	KeyModel        = "model"
	KeyMaxTokens    = "max-tokens"
	KeyMaxAttempts  = "max-attempts"
	KeyBaseDelay    = "base-delay"
	KeyMaxDelay     = "max-delay"
	KeyRequestDelay = "request-delay"
	KeyParallel     = "parallel"
)

// EnvPrefix prefixes environment overrides: DOCPIPE_MAX_TOKENS sets max-tokens.
const EnvPrefix = "DOCPIPE_"

// Config holds the merged user configuration.
type Config struct {
	OutputDir    string        `koanf:"output-dir"`
	Provider     string        `koanf:"provider" validate:"oneof=deepseek openai"`
	Model        string        `koanf:"model"`
	MaxTokens    int           `koanf:"max-tokens" validate:"min=1,max=1000000"`
	MaxAttempts  int           `koanf:"max-attempts" validate:"min=1,max=20"`
	BaseDelay    time.Duration `koanf:"base-delay" validate:"gt=0"`
	MaxDelay     time.Duration `koanf:"max-delay" validate:"gtefield=BaseDelay"`
	RequestDelay time.Duration `koanf:"request-delay" validate:"gte=0"`
	Parallel     int           `koanf:"parallel" validate:"min=1,max=32"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:     "deepseek",
		MaxTokens:    3000,
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		RequestDelay: time.Second,
		Parallel:     2,
	}
}

// Keys returns every configuration key in display order.
func Keys() []string {
	return []string{
		KeyOutputDir, KeyProvider, KeyModel, KeyMaxTokens, KeyMaxAttempts,
		KeyBaseDelay, KeyMaxDelay, KeyRequestDelay, KeyParallel,
	}
}

// IsKey reports whether key is a configuration key.
func IsKey(key string) bool {
	return slices.Contains(Keys(), key)
}

// Load reads the config file and environment on top of the defaults.
// A missing config file is not an error.
func Load() (*Config, error) {
	p, err := path()
	if err != nil {
		return nil, err
	}
	file, err := parseFile(p)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return load(file, true)
}

// ValidateValue checks that value is acceptable for key on its own,
// against the defaults for every other key.
func ValidateValue(key, value string) error {
	if !IsKey(key) {
		return fmt.Errorf("%q (valid keys: %s): %w", key, strings.Join(Keys(), ", "), ErrUnknownKey)
	}
	_, err := load(map[string]string{key: value}, false)
	return err
}

// load merges the layers and validates the result.
func load(file map[string]string, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(file) > 0 {
		data := make(rawMap, len(file))
		for key, value := range file {
			data[key] = value
		}
		if err := k.Load(data, nil); err != nil {
			return nil, fmt.Errorf("failed to apply config file: %w", err)
		}
	}

	if withEnv {
		if err := k.Load(env.Provider(".", env.Opt{
			Prefix:        EnvPrefix,
			TransformFunc: transformEnvKey,
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its bounds.
// Callers that override loaded values (command-line flags) validate again.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// transformEnvKey maps DOCPIPE_MAX_TOKENS to max-tokens.
func transformEnvKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "_", "-"), value
}

// rawMap is a koanf.Provider adapter for map[string]any data.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not implemented")
}
