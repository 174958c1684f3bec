package cli

import (
	"github.com/spf13/cobra"

	"moments/internal/db"
	"moments/internal/utils"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		Long: `Apply the database schema and exit.

Postgres URLs run the embedded migrations; sqlite://<path> creates the
schema in the given file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if databaseURL != "" {
				cfg.DatabaseURL = databaseURL
			}
			log := utils.NewLogger(cfg.LogLevel, cmd.ErrOrStderr())

			if err := db.Migrate(cmd.Context(), cfg.DatabaseURL); err != nil {
				return err
			}
			log.Info("Database is up to date")
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "database to migrate, overrides DATABASE_URL")

	return cmd
}
