package cli

import (
	"github.com/spf13/cobra"

	"github.com/alnah/go-docpipe/internal/logger"
)

// RootCmd creates the docpipe root command with every subcommand attached.
// The --log-level and --log-json flags install a logger in the command
// context before any subcommand runs.
func RootCmd(env *Env, version string) *cobra.Command {
	var (
		logLevel string
		logJSON  bool
	)

	cmd := &cobra.Command{
		Use:     "docpipe",
		Short:   "Process long documents with a language model, chunk by chunk",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			l := logger.NewLogger(&logger.Config{
				Level:      level,
				Output:     env.Stderr,
				JSON:       logJSON,
				TimeFormat: "15:04:05",
			})
			cmd.SetContext(logger.ContextWithLogger(cmd.Context(), l))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", string(logger.WarnLevel), "Log level: debug, info, warn, error, disabled")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")

	cmd.AddCommand(ProcessCmd(env))
	cmd.AddCommand(ConfigCmd(env))

	return cmd
}
