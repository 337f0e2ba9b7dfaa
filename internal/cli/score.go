package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/vvka-141/deadpool/internal/services"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

type scoreFlagValues struct {
	dead  bool
	alive bool
	age   int
	bonus string
}

var scoreFlags scoreFlagValues

var scoreCmd = &cobra.Command{
	Use:   "score <list-id>",
	Short: "Record the fate of a list item and recompute its owner's score",
	Long: `Record whether a list item is dead, its age and an optional bonus.

Dead items earn base points by age bracket (up to 20: 100, up to 40: 70,
up to 60: 40, up to 80: 20, older: 10) plus a bonus of 0 to 20 points.
Alive items earn nothing. The owner's total score is recomputed from all
of their items in the same transaction.`,
	Example: `  deadpool score 7 --dead --age 15 --bonus 5
  deadpool score 7 --alive`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().BoolVar(&scoreFlags.dead, "dead", false, "Mark the item as dead")
	scoreCmd.Flags().BoolVar(&scoreFlags.alive, "alive", false, "Mark the item as alive")
	scoreCmd.Flags().IntVar(&scoreFlags.age, "age", 0, "Age at death")
	scoreCmd.Flags().StringVar(&scoreFlags.bonus, "bonus", "", "Bonus points (0-20, applied only when dead)")
	scoreCmd.MarkFlagsMutuallyExclusive("dead", "alive")
	scoreCmd.MarkFlagsOneRequired("dead", "alive")
}

func runScore(cmd *cobra.Command, args []string) error {
	update, err := buildScoreUpdate(cmd, args[0], scoreFlags)
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(a *app) error {
		svc := services.NewScoreService(a.access, a.logger, a.recorder)
		result, err := svc.ApplyScoreUpdate(cmd.Context(), update)
		if err != nil {
			return err
		}
		return printJSON(stdout, result)
	})
}

// buildScoreUpdate turns the argument and flags into an update. Age and
// bonus are only set when their flags were given.
func buildScoreUpdate(cmd *cobra.Command, listArg string, flags scoreFlagValues) (deadpool.ScoreUpdate, error) {
	listID, err := strconv.ParseInt(listArg, 10, 64)
	if err != nil {
		return deadpool.ScoreUpdate{}, fmt.Errorf("list id %q is not a number: %w", listArg, deadpool.ErrValidation)
	}

	isDead := flags.dead && !flags.alive
	update := deadpool.ScoreUpdate{ListID: listID, IsDead: &isDead}

	if cmd.Flags().Changed("age") {
		age := flags.age
		update.Age = &age
	}
	if cmd.Flags().Changed("bonus") {
		bonus := flags.bonus
		update.Bonus = &bonus
	}
	return update, nil
}
