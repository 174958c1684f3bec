package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"moments/internal/config"
	"moments/internal/utils"
)

const defaultEnvFile = ".env"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile  string
	LogLevel string
}

// NewRootCommand creates the root command for the moments CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "moments",
		Short: "Moments - photo albums, shared or private",
		Long:  "Serve the moments photo album site and manage its database.",
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", defaultEnvFile, "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level, overrides LOG_LEVEL")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// loadConfig reads the environment after loading the env file, then applies
// flag overrides. Only the default .env may be missing.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if err := utils.LoadEnv(opts.EnvFile); err != nil && opts.EnvFile != defaultEnvFile {
		return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
	}

	cfg := config.Load()
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	return cfg, nil
}
