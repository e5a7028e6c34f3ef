package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/wire"
)

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Compute expected ratings for rated contests",
	Long: `Run the rating predictor over rated finished contests. Contests whose
standing is unchanged since the last run are skipped unless --force is given.

Examples:
  podium rate
  podium rate --contest 42
  podium rate --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		req := primary.RateRequest{}
		req.ContestIDs, _ = cmd.Flags().GetInt64Slice("contest")
		req.Force, _ = cmd.Flags().GetBool("force")

		summary, err := wire.RatingService().RateContests(ctx, req)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s computed, %d skipped\n",
			color.New(color.FgGreen).Sprintf("%d", summary.Computed), summary.Skipped)
		for _, outcome := range summary.Outcomes {
			if outcome.Skipped != "" {
				fmt.Printf("  - contest %d (%s): skipped, %s\n",
					outcome.ContestID, outcome.Key, outcome.Skipped)
				continue
			}
			fmt.Printf("  %s contest %d (%s): %d participants\n",
				color.New(color.FgGreen).Sprint("✓"),
				outcome.ContestID, outcome.Key, outcome.Participants)
		}
		fmt.Println()
		return nil
	},
}

// RateCmd returns the rate command
func RateCmd() *cobra.Command {
	rateCmd.Flags().Int64SliceP("contest", "c", nil, "Restrict to explicit contest ids (repeatable)")
	rateCmd.Flags().BoolP("force", "f", false, "Recompute even when the standing is unchanged")
	return rateCmd
}
