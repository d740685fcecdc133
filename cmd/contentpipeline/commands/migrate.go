package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ContentPipeline/internal/app"
)

// migrateCmd applies the Postgres schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the embedded Postgres schema. Every statement is idempotent,
so running migrate repeatedly is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Migrate(cmd.Context(), loadConfig()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
