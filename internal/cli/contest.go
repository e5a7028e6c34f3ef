package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/wire"
)

var contestCmd = &cobra.Command{
	Use:   "contest",
	Short: "Inspect contests and their parse state",
}

var contestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		filters := primary.ContestListFilters{}
		filters.SourcePattern, _ = cmd.Flags().GetString("source")
		filters.OnlyNew, _ = cmd.Flags().GetBool("only-new")
		filters.Limit, _ = cmd.Flags().GetInt("limit")

		contests, err := wire.ContestService().ListContests(ctx, filters)
		if err != nil {
			return err
		}
		if len(contests) == 0 {
			fmt.Println("No contests found")
			return nil
		}

		fmt.Printf("\n%-6s %-15s %-20s %-17s %s\n", "ID", "SOURCE", "KEY", "START", "TITLE")
		for _, c := range contests {
			fmt.Printf("%-6d %-15s %-20s %-17s %s\n",
				c.ID, c.Source, c.Key, c.Start.Format("2006-01-02 15:04"), c.Title)
		}
		fmt.Println()
		return nil
	},
}

var contestShowCmd = &cobra.Command{
	Use:   "show [contest-id]",
	Short: "Show contest details and parse state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid contest id %q", args[0])
		}

		c, err := wire.ContestService().GetContest(ctx, id)
		if err != nil {
			return err
		}

		fmt.Printf("\nContest: %d (%s/%s)\n", c.ID, c.Source, c.Key)
		fmt.Printf("Title:   %s\n", c.Title)
		if c.URL != "" {
			fmt.Printf("URL:     %s\n", c.URL)
		}
		fmt.Printf("Window:  %s .. %s\n",
			c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
		fmt.Printf("Rated:   %t  Stage: %t\n", c.Rated, c.Stage)
		fmt.Printf("Rows:    %d\n", c.Statistics)
		if len(c.Fields) > 0 {
			fmt.Printf("Fields:  %s\n", strings.Join(c.Fields, ", "))
		}
		if c.LastSuccess != nil {
			fmt.Printf("Last success: %s\n", c.LastSuccess.Format(time.RFC3339))
		}
		if c.NextAttempt != nil {
			fmt.Printf("Next attempt: %s\n", c.NextAttempt.Format(time.RFC3339))
		}
		if c.ConsecutiveErrors > 0 {
			fmt.Printf("Consecutive errors: %d\n", c.ConsecutiveErrors)
		}
		fmt.Println()
		return nil
	},
}

// ContestCmd returns the contest command
func ContestCmd() *cobra.Command {
	contestListCmd.Flags().StringP("source", "s", "", "Restrict to sources matching a LIKE pattern")
	contestListCmd.Flags().Bool("only-new", false, "Only contests that were never successfully parsed")
	contestListCmd.Flags().IntP("limit", "n", 0, "Limit the number of rows")

	contestCmd.AddCommand(contestListCmd)
	contestCmd.AddCommand(contestShowCmd)
	return contestCmd
}
