package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/podium/internal/config"
	"github.com/example/podium/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the podium database and config",
		Long:  `Initialize the podium database at ~/.podium/podium.db with the required schema and write a default config.json.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := db.Path()
			if err != nil {
				return fmt.Errorf("failed to get database path: %w", err)
			}

			fmt.Printf("Initializing podium database at %s\n", dbPath)
			if _, err := db.GetDB(); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			fmt.Println("✓ Database initialized successfully")

			dir, err := config.Dir()
			if err != nil {
				return err
			}
			if _, err := config.LoadConfig(dir); err != nil {
				if err := config.SaveConfig(dir, config.Default()); err != nil {
					return fmt.Errorf("failed to write config: %w", err)
				}
				fmt.Println("✓ Default config written to ~/.podium/config.json")
			}

			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  point sources_file in config.json at your source registry")
			fmt.Println("  podium parse --only-new")
			return nil
		},
	}
}
