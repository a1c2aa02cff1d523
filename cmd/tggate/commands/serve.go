package commands

import (
	"github.com/spf13/cobra"

	"tggate/cmd/internal/app"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /send; the session is paired on the first request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(configPath)
		},
	}
}
