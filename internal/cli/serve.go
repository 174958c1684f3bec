package cli

import (
	"github.com/spf13/cobra"

	"moments/internal/app"
	"moments/internal/utils"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the web server",
		Long:         "Apply pending migrations, then serve pages, the REST API and the album feed until SIGINT or SIGTERM.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			log := utils.NewLogger(cfg.LogLevel, cmd.ErrOrStderr())
			return app.Run(cfg, log)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port, overrides PORT")

	return cmd
}
