package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-docpipe/internal/config"
)

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/go-docpipe/config (or under
$XDG_CONFIG_HOME). Every setting can be overridden by a DOCPIPE_*
environment variable, e.g. DOCPIPE_MAX_TOKENS, and by the matching
process flag.

Supported settings:
  output-dir      Default directory for output files
  provider        Completion provider: deepseek, openai
  model           Model name
  max-tokens      Token budget per chunk
  max-attempts    Attempts per chunk when rate limited
  base-delay      First backoff delay (e.g. 1s)
  max-delay       Backoff delay cap (e.g. 30s)
  request-delay   Pause between two chunk requests (e.g. 1s)
  parallel        Files processed at the same time`,
		Example: `  docpipe config set output-dir ~/Documents/processed
  docpipe config set max-tokens 2000
  docpipe config get provider
  docpipe config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

The value is validated before it is saved. For output-dir, the directory
is created if it doesn't exist.`,
		Example: `  docpipe config set output-dir ~/Documents/processed
  docpipe config set base-delay 500ms`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value.

Prints the effective value (file, environment, or default) to stdout.`,
		Example: `  docpipe config get output-dir`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration values.

Shows the values stored in the config file and environment variable overrides.`,
		Example: `  docpipe config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if key == config.KeyOutputDir {
		expanded := config.ExpandPath(value)
		if err := config.EnsureOutputDir(expanded); err != nil {
			return fmt.Errorf("invalid output-dir: %w", err)
		}
		value = expanded
	}

	if err := config.Save(key, value); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	if !config.IsKey(key) {
		return fmt.Errorf("%q (valid keys: %s): %w", key, strings.Join(config.Keys(), ", "), config.ErrUnknownKey)
	}

	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		return err
	}

	if value := configValue(cfg, key); value != "" {
		_, _ = fmt.Fprintln(env.Stdout, value)
	}
	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	for _, key := range config.Keys() {
		if envVal := env.Getenv(config.EnvPrefix + envSuffix(key)); envVal != "" {
			data[key] = envVal + " (from env)"
		}
	}

	if len(data) == 0 {
		_, _ = fmt.Fprintln(env.Stdout, "No configuration set.")
		_, _ = fmt.Fprintln(env.Stdout, "\nAvailable settings:")
		for _, key := range config.Keys() {
			_, _ = fmt.Fprintf(env.Stdout, "  %s\n", key)
		}
		return nil
	}

	for _, key := range slices.Sorted(maps.Keys(data)) {
		_, _ = fmt.Fprintf(env.Stdout, "%s=%s\n", key, data[key])
	}
	return nil
}

// configValue formats the field of cfg named by key.
func configValue(cfg *config.Config, key string) string {
	switch key {
	case config.KeyOutputDir:
		return cfg.OutputDir
	case config.KeyProvider:
		return cfg.Provider
	case config.KeyModel:
		return cfg.Model
	case config.KeyMaxTokens:
		return fmt.Sprint(cfg.MaxTokens)
	case config.KeyMaxAttempts:
		return fmt.Sprint(cfg.MaxAttempts)
	case config.KeyBaseDelay:
		return cfg.BaseDelay.String()
	case config.KeyMaxDelay:
		return cfg.MaxDelay.String()
	case config.KeyRequestDelay:
		return cfg.RequestDelay.String()
	case config.KeyParallel:
		return fmt.Sprint(cfg.Parallel)
	default:
		return ""
	}
}

// envSuffix maps max-tokens to MAX_TOKENS.
func envSuffix(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
