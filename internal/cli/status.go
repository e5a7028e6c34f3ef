package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/wire"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler status across all contests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			now := time.Now()

			contests, err := wire.ContestService().ListContests(ctx, primary.ContestListFilters{})
			if err != nil {
				return err
			}
			stages, err := wire.ContestService().ListContests(ctx, primary.ContestListFilters{Stages: true})
			if err != nil {
				return err
			}

			var neverParsed, due, erroring int
			var nextDue *time.Time
			for _, c := range contests {
				if c.LastSuccess == nil {
					neverParsed++
				}
				if c.ConsecutiveErrors > 0 {
					erroring++
				}
				if c.NextAttempt == nil || !now.Before(*c.NextAttempt) {
					due++
				} else if nextDue == nil || c.NextAttempt.Before(*nextDue) {
					nextDue = c.NextAttempt
				}
			}

			fmt.Printf("\nContests: %d (%d stages)\n", len(contests), len(stages))
			fmt.Printf("Never parsed: %d\n", neverParsed)
			fmt.Printf("Due now: %s\n", color.New(color.FgGreen).Sprintf("%d", due))
			if erroring > 0 {
				fmt.Printf("With consecutive errors: %s\n",
					color.New(color.FgYellow).Sprintf("%d", erroring))
			}
			if nextDue != nil {
				fmt.Printf("Next attempt: %s\n", nextDue.Format(time.RFC3339))
			}
			fmt.Println()
			return nil
		},
	}
}
