package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ContentPipeline/internal/app"
)

var force bool

// tickCmd runs exactly one workflow tick, like the hourly cron does.
var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single workflow tick",
	Long: `Run a single workflow tick and print the action it took.

Examples:
  contentpipeline tick           # Respect the weekly slot and cycle interval
  contentpipeline tick --force   # Start a cycle now unless one is already active`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application, logger *slog.Logger) error {
			result, err := a.Tick(cmd.Context(), force)
			if err != nil {
				return fmt.Errorf("tick (%s): %w", result.Action, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", result.Action, result.RunID)
			return nil
		})
	},
}

func init() {
	tickCmd.Flags().BoolVar(&force, "force", false, "Bypass the weekly slot and cycle interval")
	rootCmd.AddCommand(tickCmd)
}
