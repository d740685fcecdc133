package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ContentPipeline/internal/app"
	"ContentPipeline/internal/config"
	"ContentPipeline/internal/logging"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "contentpipeline",
	Short: "Human-gated weekly blog content pipeline",
	Long: `contentpipeline researches trending topics, emails them to the owner,
writes the chosen one up as a draft, and publishes it once approved.

Each step that needs the owner waits for a click on an emailed link.
Everything else is driven by an hourly tick.`,
	Version:       app.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config (overrides $CONTENT_PIPELINE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig resolves configuration with flag overrides applied last.
func loadConfig() config.Config {
	if configPath != "" {
		os.Setenv("CONTENT_PIPELINE_CONFIG", configPath)
	}
	cfg := config.Load()
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg
}

// withApp builds the application, runs fn and releases resources.
func withApp(ctx context.Context, fn func(*app.Application, *slog.Logger) error) error {
	cfg := loadConfig()
	logger := logging.New(cfg.Logging)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer application.Close()
	return fn(application, logger)
}
