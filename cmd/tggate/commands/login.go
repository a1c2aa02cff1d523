package commands

import (
	"github.com/spf13/cobra"

	"tggate/cmd/internal/app"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Pair this device by QR code, store the session and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Login(configPath)
		},
	}
}
