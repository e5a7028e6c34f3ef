package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/podium/internal/cli"
	"github.com/example/podium/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "podium",
		Short:   "podium - contest standings ingestion and rating engine",
		Version: version.String(),
		Long: `podium keeps a local ledger of programming contest standings. It
schedules fetch attempts per contest, reconciles fetched standings into the
database with minimal writes, and predicts rating changes from final results.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.ParseCmd())
	rootCmd.AddCommand(cli.RateCmd())
	rootCmd.AddCommand(cli.StageCmd())
	rootCmd.AddCommand(cli.ContestCmd())
	rootCmd.AddCommand(cli.SourcesCmd())
	rootCmd.AddCommand(cli.StatusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
