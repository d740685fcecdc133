package usecase

import (
	"context"
	"log/slog"
	"time"

	"ContentPipeline/internal/ports"
)

// Ticker is the unit of work the scheduler drives.
type Ticker interface {
	Tick(ctx context.Context, force bool) (TickResult, error)
}

// Scheduler wires the cron-like driver with the workflow tick.
type Scheduler struct {
	driver  ports.Scheduler
	ticker  Ticker
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring ticks. Each tick is
// bounded by timeout when it is positive.
func NewScheduler(driver ports.Scheduler, ticker Ticker, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		driver:  driver,
		ticker:  ticker,
		timeout: timeout,
		logger:  logger.With("component", "scheduler"),
	}
}

// Start registers the tick with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.ticker == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) {
		s.run(ctx, trigger)
	})
}

func (s *Scheduler) run(ctx context.Context, trigger time.Time) {
	tickCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	result, err := s.ticker.Tick(tickCtx, false)
	if err != nil {
		// Tick already logged and alerted; keep the trigger for correlation.
		s.logger.Debug("scheduled tick failed", "trigger", trigger, "action", result.Action)
		return
	}
	s.logger.Debug("scheduled tick done", "trigger", trigger, "action", result.Action, "run_id", result.RunID)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
