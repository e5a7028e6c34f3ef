package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/podium/internal/adapters/source"
	"github.com/example/podium/internal/config"
	"github.com/example/podium/internal/wire"
)

// SourcesCmd returns the sources command
func SourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Show the configured source registry and available adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := wire.Config()

			fmt.Printf("\nAdapters: %s\n", strings.Join(source.Names(), ", "))

			if cfg.SourcesFile == "" {
				fmt.Println("No sources_file configured")
				fmt.Println()
				return nil
			}
			registry, err := config.LoadSources(cfg.SourcesFile)
			if err != nil {
				return err
			}

			fmt.Printf("\n%-20s %-12s %-6s\n", "NAME", "ADAPTER", "RATED")
			for _, src := range registry.Sources {
				fmt.Printf("%-20s %-12s %-6t\n", src.Name, src.Adapter, src.Rated)
			}
			fmt.Println()
			return nil
		},
	}
}
