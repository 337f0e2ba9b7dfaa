package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the database answers",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		if !a.access.Ping(cmd.Context()) {
			return fmt.Errorf("database did not answer SELECT 1: %w", deadpool.ErrConnection)
		}
		fmt.Fprintln(stdout, "ok")
		return nil
	})
}
