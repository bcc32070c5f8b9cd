package cli

import (
	"os"

	"github.com/spf13/cobra"

	"memory-palace/internal/config"
)

type rootOptions struct {
	configPath string
	profile    string
	verbose    bool
}

// logLevel lets --verbose override the configured level.
func (o *rootOptions) logLevel(cfg config.Config) string {
	if o.verbose {
		return "debug"
	}
	return cfg.LogLevel
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "memory-palace",
		Short:        "Study flashcards with quizzes, streaks and progress tracking",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "progress profile (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	cmd.AddCommand(
		NewQuizCmd(opts),
		NewMCQCmd(opts),
		NewStatsCmd(opts),
		NewDeckCmd(opts),
		NewGenerateCmd(opts),
		NewServeCmd(opts),
		NewMigrateCmd(opts),
	)
	return cmd
}
