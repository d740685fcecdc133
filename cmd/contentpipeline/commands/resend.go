package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ContentPipeline/internal/app"
)

// resendDraftCmd re-sends the review email for the run awaiting approval.
var resendDraftCmd = &cobra.Command{
	Use:   "resend-draft",
	Short: "Re-send the draft review email",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application, logger *slog.Logger) error {
			run, err := a.ResendDraft(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("draft email re-sent", "run_id", run.ID)
			fmt.Fprintln(cmd.OutOrStdout(), run.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(resendDraftCmd)
}
