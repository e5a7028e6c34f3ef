package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/wire"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Manage stage rollups (multi-round series standings)",
}

var stageRecomputeCmd = &cobra.Command{
	Use:   "recompute [stage-id]",
	Short: "Rebuild one stage standing from its member contests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid stage id %q", args[0])
		}

		summary, err := wire.StageService().RecomputeStage(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Stage %d recomputed: %d members, %d rows\n",
			summary.StageID, summary.Members, summary.Rows)
		return nil
	},
}

var stageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stage contests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		source, _ := cmd.Flags().GetString("source")

		stages, err := wire.ContestService().ListContests(ctx, primary.ContestListFilters{
			SourcePattern: source,
			Stages:        true,
		})
		if err != nil {
			return err
		}
		if len(stages) == 0 {
			fmt.Println("No stages found")
			return nil
		}

		fmt.Printf("\n%-6s %-15s %-20s %s\n", "ID", "SOURCE", "KEY", "TITLE")
		for _, st := range stages {
			fmt.Printf("%-6d %-15s %-20s %s\n", st.ID, st.Source, st.Key, st.Title)
		}
		fmt.Println()
		return nil
	},
}

// StageCmd returns the stage command
func StageCmd() *cobra.Command {
	stageListCmd.Flags().StringP("source", "s", "", "Restrict to sources matching a LIKE pattern")

	stageCmd.AddCommand(stageRecomputeCmd)
	stageCmd.AddCommand(stageListCmd)
	return stageCmd
}
