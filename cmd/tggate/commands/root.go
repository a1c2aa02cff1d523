// Package commands holds the tggate command tree.
package commands

import (
	"github.com/spf13/cobra"

	"tggate/cmd/internal/app"
)

var configPath string

// Execute runs the root command. Without a subcommand it serves HTTP.
func Execute() error {
	root := &cobra.Command{
		Use:          "tggate",
		Short:        "HTTP gateway that sends Telegram messages from a paired account",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(configPath)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (default $TGGATE_CONFIG)")

	root.AddCommand(serveCmd(), loginCmd())
	return root.Execute()
}
