package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vvka-141/deadpool/internal/services"
)

var deadlineCmd = &cobra.Command{
	Use:   "deadline",
	Short: "Show or change the game deadline",
}

var deadlineGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the deadline, storing the default when none is set",
	Args:  cobra.NoArgs,
	RunE:  runDeadlineGet,
}

var deadlineSetCmd = &cobra.Command{
	Use:     "set <date>",
	Short:   "Change the deadline",
	Example: "  deadpool deadline set 2026-12-31T23:59:59",
	Args:    cobra.ExactArgs(1),
	RunE:    runDeadlineSet,
}

func init() {
	rootCmd.AddCommand(deadlineCmd)
	deadlineCmd.AddCommand(deadlineGetCmd, deadlineSetCmd)
}

// deadlineFallback is the value stored when no deadline exists yet:
// DEADLINE_DATE, then deadpool.yaml, then the built-in default.
func deadlineFallback(a *app) string {
	if v := os.Getenv("DEADLINE_DATE"); v != "" {
		return v
	}
	return a.project.Deadline
}

func runDeadlineGet(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		value, err := services.NewSettingsService(a.access).Deadline(cmd.Context(), deadlineFallback(a))
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, value)
		return nil
	})
}

func runDeadlineSet(cmd *cobra.Command, args []string) error {
	if _, err := services.ParseDeadline(args[0]); err != nil {
		return err
	}
	return withApp(cmd.Context(), func(a *app) error {
		if err := services.NewSettingsService(a.access).SetDeadline(cmd.Context(), args[0]); err != nil {
			return err
		}
		a.logger.Info("deadline set to %s", args[0])
		return nil
	})
}
