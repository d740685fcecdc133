package commands

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ContentPipeline/internal/app"
)

// serveCmd runs the HTTP surface and the hourly tick until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve action links, the cron endpoint and the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withApp(ctx, func(a *app.Application, logger *slog.Logger) error {
			return a.Serve(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
