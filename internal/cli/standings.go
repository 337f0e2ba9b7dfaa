package cli

import (
	"github.com/spf13/cobra"
	"github.com/vvka-141/deadpool/internal/services"
)

var standingsCmd = &cobra.Command{
	Use:   "standings",
	Short: "Print every player with their list and total score as JSON",
	Args:  cobra.NoArgs,
	RunE:  runStandings,
}

func init() {
	rootCmd.AddCommand(standingsCmd)
}

func runStandings(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		standings, err := services.NewStandingsService(a.access).Standings(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stdout, standings)
	})
}
