package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/podium/internal/metrics"
	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/wire"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Fetch and reconcile standings for due contests",
	Long: `Run one scheduling batch: select contests due for a fetch attempt,
fetch their standings through the configured source adapters, and reconcile
the results into the database with minimal writes.

Examples:
  podium parse
  podium parse --source codeforces%
  podium parse --contest 42 --contest 43
  podium parse --only-new --workers 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		req := primary.ParseRequest{}
		req.SourcePattern, _ = cmd.Flags().GetString("source")
		req.ContestIDs, _ = cmd.Flags().GetInt64Slice("contest")
		req.OnlyNew, _ = cmd.Flags().GetBool("only-new")
		req.StopOnError, _ = cmd.Flags().GetBool("stop-on-error")
		req.Shuffle, _ = cmd.Flags().GetBool("shuffle")
		req.Workers, _ = cmd.Flags().GetInt("workers")
		req.NoUpdateResults, _ = cmd.Flags().GetBool("no-update-results")
		req.ForceTimes, _ = cmd.Flags().GetBool("force-times")
		req.IgnoreSchedule = len(req.ContestIDs) > 0

		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			go func() {
				if err := metrics.Serve(addr); err != nil {
					log.Printf("metrics listener: %v", err)
				}
			}()
		}

		summary, err := wire.ParseService().ParseContests(ctx, req)
		if summary != nil {
			printParseSummary(summary)
		}
		return err
	},
}

func printParseSummary(summary *primary.ParseSummary) {
	fmt.Printf("\nBatch %s: %d attempted, %s succeeded\n",
		summary.BatchID, summary.Attempted,
		color.New(color.FgGreen).Sprintf("%d", summary.Succeeded))
	for _, failure := range summary.Failures {
		fmt.Printf("  %s contest %d (%s/%s): %s\n",
			color.New(color.FgRed).Sprint("✗"),
			failure.ContestID, failure.Source, failure.Key, failure.Reason)
	}
	fmt.Println()
}

// ParseCmd returns the parse command
func ParseCmd() *cobra.Command {
	parseCmd.Flags().StringP("source", "s", "", "Restrict to sources matching a LIKE pattern")
	parseCmd.Flags().Int64SliceP("contest", "c", nil, "Restrict to explicit contest ids (repeatable)")
	parseCmd.Flags().Bool("only-new", false, "Only contests that were never successfully parsed")
	parseCmd.Flags().Bool("stop-on-error", false, "Abort the batch at the first failure")
	parseCmd.Flags().Bool("shuffle", false, "Randomize contest order within the batch")
	parseCmd.Flags().IntP("workers", "w", 0, "Batch concurrency (default from config)")
	parseCmd.Flags().Bool("no-update-results", false, "Dry run: reconcile without persisting statistics")
	parseCmd.Flags().Bool("force-times", false, "Let fetched solve times overwrite preserved live ones")
	parseCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address for the batch")
	return parseCmd
}
