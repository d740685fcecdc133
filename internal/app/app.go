package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"ContentPipeline/internal/config"
	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/httpserver"
	"ContentPipeline/internal/infrastructure/cache"
	"ContentPipeline/internal/infrastructure/email"
	"ContentPipeline/internal/infrastructure/llm"
	"ContentPipeline/internal/infrastructure/scheduler"
	"ContentPipeline/internal/infrastructure/search"
	"ContentPipeline/internal/infrastructure/storage"
	"ContentPipeline/internal/infrastructure/telegram"
	"ContentPipeline/internal/logging"
	"ContentPipeline/internal/metrics"
	"ContentPipeline/internal/ports"
	"ContentPipeline/internal/usecase"
)

// Version is reported by /healthz. Overridden at build time.
var Version = "dev"

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	workflow  *usecase.Workflow
	scheduler *usecase.Scheduler
	server    *httpserver.HTTPServer
}

// New builds a runnable application from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{cfg: cfg, logger: baseLogger}

	runs, posts, err := app.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	generator, err := newGenerator(cfg.Generation)
	if err != nil {
		app.Close()
		return nil, err
	}

	searcher := search.NewTavilyClient(cfg.Search)
	notifier, err := usecase.NewNotifier(email.NewResendMailer(cfg.Email), usecase.NotifierConfig{
		To:          cfg.Email.OwnerEmail,
		SiteURL:     cfg.Server.SiteURL,
		Publication: cfg.Workflow.PublicationName,
		NextCycle:   nextCycleLabel(cfg),
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	registry := metrics.New()
	publication := cfg.Workflow.PublicationName
	app.workflow = usecase.NewWorkflow(usecase.WorkflowDeps{
		Runs:       runs,
		Researcher: usecase.NewResearcher(searcher, generator, cfg.Workflow.SearchTimeout, publication, baseLogger.With("component", "research")),
		Writer:     usecase.NewWriter(searcher, generator, cfg.Workflow.SearchTimeout, publication, baseLogger.With("component", "writer")),
		Publisher: usecase.NewPublisher(posts, cache.NewRevalidator(cfg.Server.SiteURL, cfg.Server.CronSecret),
			cfg.Server.SiteURL, nil, baseLogger.With("component", "publisher")),
		Notifier: notifier,
		Alerter:  newAlerter(cfg.Notifications.Telegram),
		Metrics:  registry,
		Settings: usecase.WorkflowSettings{
			CycleWeekday:  cfg.Workflow.Weekday(),
			CycleHour:     cfg.Workflow.CycleHour,
			CycleInterval: cfg.Workflow.CycleInterval,
			Location:      cfg.Scheduler.Location(),
			LeaseTTL:      cfg.Workflow.LeaseTTL,
			RetryBackoff:  cfg.Workflow.RetryBackoff,
			MaxBackoff:    cfg.Workflow.MaxBackoff,
		},
		Logger: baseLogger,
	})

	if cfg.Scheduler.Enabled {
		driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), baseLogger)
		app.scheduler = usecase.NewScheduler(driver, app.workflow, cfg.Workflow.TickTimeout, baseLogger)
	}

	app.server, err = httpserver.New(httpserver.Deps{
		Workflow:    app.workflow,
		Actions:     usecase.NewActions(runs, registry, nil, baseLogger),
		Metrics:     registry.Handler(),
		CronSecret:  cfg.Server.CronSecret,
		Publication: publication,
		Version:     Version,
		TickTimeout: cfg.Workflow.TickTimeout,
		Logger:      baseLogger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *Application) openStorage(ctx context.Context) (ports.RunRepository, ports.PostRepository, error) {
	switch a.cfg.Database.Driver {
	case config.DriverMemory:
		a.logger.Warn("using in-memory storage; runs are lost on restart")
		return storage.NewMemoryRunRepository(), storage.NewMemoryPostRepository(), nil
	default:
		pool, err := storage.Connect(ctx, a.cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		a.pool = pool
		return storage.NewPostgresRunRepository(pool), storage.NewPostgresPostRepository(pool), nil
	}
}

func newGenerator(cfg config.GenerationConfig) (ports.Generator, error) {
	if cfg.Provider == config.ProviderChatGPT {
		if cfg.ChatGPT.APIKey == "" {
			return nil, errors.New("chatgpt api key is required")
		}
		return llm.NewChatGPTClient(cfg.ChatGPT), nil
	}
	return llm.NewAnthropicClient(cfg.Anthropic)
}

// newAlerter returns nil when Telegram is not configured so the workflow
// skips alerts instead of failing them.
func newAlerter(cfg config.TelegramConfig) ports.Alerter {
	notifier := telegram.NewNotifier(cfg)
	if !notifier.Enabled() {
		return nil
	}
	return notifier
}

func nextCycleLabel(cfg config.Config) string {
	return fmt.Sprintf("%s %02d:00 %s", cfg.Workflow.Weekday(), cfg.Workflow.CycleHour, cfg.Scheduler.Location())
}

// Serve runs the HTTP server and, when enabled, the cron driver until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Location().String())
		defer func() {
			if err := a.scheduler.Stop(context.WithoutCancel(ctx)); err != nil {
				a.logger.Warn("stop scheduler", "error", err)
			}
		}()
	}
	return a.server.ListenAndServe(ctx, a.cfg.Server.Addr)
}

// Tick runs a single workflow tick bounded by the configured tick timeout.
func (a *Application) Tick(ctx context.Context, force bool) (usecase.TickResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Workflow.TickTimeout)
	defer cancel()
	return a.workflow.Tick(ctx, force)
}

// ResendDraft re-sends the review email for the run awaiting approval.
func (a *Application) ResendDraft(ctx context.Context) (domain.WorkflowRun, error) {
	return a.workflow.ResendDraftEmail(ctx)
}

// Handler exposes the HTTP routes, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler()
}

// Close releases the database pool.
func (a *Application) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

// Migrate applies the Postgres schema described by cfg.
func Migrate(ctx context.Context, cfg config.Config) error {
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate: driver %q has no schema", cfg.Database.Driver)
	}
	pool, err := storage.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	return storage.Migrate(ctx, pool)
}
