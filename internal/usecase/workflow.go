package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
	"ContentPipeline/internal/token"
)

// TickAction names what a single tick did.
type TickAction string

const (
	TickDraftWritten    TickAction = "draft_written"
	TickPostPublished   TickAction = "post_published"
	TickResearchStarted TickAction = "research_started"
	TickIdle            TickAction = "idle"
)

// TickResult is returned by every tick, including failed ones.
type TickResult struct {
	Action TickAction
	RunID  string
}

// TopicResearcher produces the candidate topics for a new cycle.
type TopicResearcher interface {
	Research(ctx context.Context) ([]domain.Topic, error)
}

// DraftWriter turns the selected topic into a draft.
type DraftWriter interface {
	Write(ctx context.Context, topic domain.Topic) (domain.DraftPost, error)
}

// PostPublisher makes an approved draft live. It must be idempotent per run.
type PostPublisher interface {
	Publish(ctx context.Context, runID string, draft domain.DraftPost) (PublishResult, error)
}

// WorkflowNotifier sends the owner emails that gate each human step.
type WorkflowNotifier interface {
	SendTopics(ctx context.Context, run domain.WorkflowRun) error
	SendDraft(ctx context.Context, run domain.WorkflowRun, draft domain.DraftPost) error
	SendPublished(ctx context.Context, title, url string) error
}

// WorkflowSettings tunes cycle cadence and retry behaviour.
type WorkflowSettings struct {
	CycleWeekday  time.Weekday
	CycleHour     int
	CycleInterval time.Duration
	Location      *time.Location
	LeaseTTL      time.Duration
	RetryBackoff  time.Duration
	MaxBackoff    time.Duration
}

// WorkflowDeps wires the state machine to its steps and store.
type WorkflowDeps struct {
	Runs       ports.RunRepository
	Researcher TopicResearcher
	Writer     DraftWriter
	Publisher  PostPublisher
	Notifier   WorkflowNotifier
	Alerter    ports.Alerter
	Metrics    ports.Metrics
	Settings   WorkflowSettings
	Now        func() time.Time
	Logger     *slog.Logger
}

// Workflow is the run state machine. Each Tick executes at most one transition.
type Workflow struct {
	runs       ports.RunRepository
	researcher TopicResearcher
	writer     DraftWriter
	publisher  PostPublisher
	notifier   WorkflowNotifier
	alerter    ports.Alerter
	metrics    ports.Metrics
	settings   WorkflowSettings
	now        func() time.Time
	logger     *slog.Logger
}

// NewWorkflow constructs the orchestrator.
func NewWorkflow(deps WorkflowDeps) *Workflow {
	settings := deps.Settings
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.CycleInterval <= 0 {
		settings.CycleInterval = 7 * 24 * time.Hour
	}
	if settings.LeaseTTL <= 0 {
		settings.LeaseTTL = 15 * time.Minute
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Workflow{
		runs:       deps.Runs,
		researcher: deps.Researcher,
		writer:     deps.Writer,
		publisher:  deps.Publisher,
		notifier:   deps.Notifier,
		alerter:    deps.Alerter,
		metrics:    deps.Metrics,
		settings:   settings,
		now:        func() time.Time { return now().UTC() },
		logger:     logger.With("component", "workflow"),
	}
}

// Tick advances the workflow by at most one transition. With force the
// weekly slot and the cycle interval are ignored; single-flight never is.
func (w *Workflow) Tick(ctx context.Context, force bool) (TickResult, error) {
	started := time.Now()
	result, err := w.tick(ctx, force)
	if result.Action == "" {
		result.Action = TickIdle
	}

	if w.metrics != nil {
		w.metrics.ObserveTick(string(result.Action), time.Since(started), err)
	}
	if err != nil {
		w.logger.Error("tick failed", "action", result.Action, "run_id", result.RunID, "error", err)
		w.alert(ctx, fmt.Sprintf("Workflow tick failed (%s): %v", result.Action, err))
		return result, err
	}
	w.logger.Info("tick complete", "action", result.Action, "run_id", result.RunID, "force", force)
	return result, nil
}

func (w *Workflow) tick(ctx context.Context, force bool) (TickResult, error) {
	selected, err := w.runs.Find(ctx, ports.RunFilter{Status: domain.StatusTopicSelected})
	if err != nil {
		return TickResult{}, fmt.Errorf("load topic-selected run: %w", err)
	}
	if selected != nil {
		return w.writeDraft(ctx, selected.ID)
	}

	approved, err := w.runs.Find(ctx, ports.RunFilter{Status: domain.StatusApproved})
	if err != nil {
		return TickResult{}, fmt.Errorf("load approved run: %w", err)
	}
	if approved != nil {
		return w.publish(ctx, approved.ID)
	}

	active, err := w.runs.FindActive(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("load active run: %w", err)
	}
	if active != nil {
		if active.Status == domain.StatusTopicsSent && !active.TopicsDelivered() && !active.Leased(w.now()) {
			return w.resumeCycle(ctx, active.ID)
		}
		w.logger.Debug("waiting on owner", "run_id", active.ID, "status", active.Status)
		return TickResult{Action: TickIdle, RunID: active.ID}, nil
	}

	if !force {
		if !w.InCycleSlot(w.now()) {
			return TickResult{Action: TickIdle}, nil
		}
		due, err := w.ShouldStartNewCycle(ctx)
		if err != nil {
			return TickResult{}, err
		}
		if !due {
			return TickResult{Action: TickIdle}, nil
		}
	}
	return w.startCycle(ctx)
}

// ShouldStartNewCycle reports whether no run is active and the cycle
// interval has passed since the last publication.
func (w *Workflow) ShouldStartNewCycle(ctx context.Context) (bool, error) {
	active, err := w.runs.FindActive(ctx)
	if err != nil {
		return false, fmt.Errorf("load active run: %w", err)
	}
	if active != nil {
		return false, nil
	}

	last, err := w.runs.LastPublished(ctx)
	if err != nil {
		return false, fmt.Errorf("load last published run: %w", err)
	}
	var publishedAt *time.Time
	if last != nil {
		publishedAt = last.PublishedAt
	}
	return dueForNewCycle(publishedAt, w.now(), w.settings.CycleInterval), nil
}

func dueForNewCycle(lastPublished *time.Time, now time.Time, interval time.Duration) bool {
	if lastPublished == nil {
		return true
	}
	return now.Sub(*lastPublished) >= interval
}

// InCycleSlot reports whether t falls in the configured weekly start hour.
func (w *Workflow) InCycleSlot(t time.Time) bool {
	local := t.In(w.settings.Location)
	return local.Weekday() == w.settings.CycleWeekday && local.Hour() == w.settings.CycleHour
}

func (w *Workflow) startCycle(ctx context.Context) (TickResult, error) {
	tok, err := token.Generate()
	if err != nil {
		return TickResult{}, err
	}

	now := w.now()
	lease := now.Add(w.settings.LeaseTTL)
	run, err := w.runs.Insert(ctx, domain.WorkflowRun{
		ID:            uuid.NewString(),
		Status:        domain.StatusTopicsSent,
		ApprovalToken: tok,
		LeaseUntil:    &lease,
		Attempts:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if errors.Is(err, domain.ErrActiveRunExists) {
		w.logger.Info("another tick started the cycle")
		return TickResult{Action: TickIdle}, nil
	}
	if err != nil {
		return TickResult{}, fmt.Errorf("insert workflow run: %w", err)
	}

	w.logger.Info("cycle started", "run_id", run.ID)
	result := TickResult{Action: TickResearchStarted, RunID: run.ID}
	if err := w.deliverTopics(ctx, run); err != nil {
		w.rollback(ctx, run.ID)
		return result, err
	}
	return result, nil
}

// resumeCycle finishes a start whose topic email never went out.
func (w *Workflow) resumeCycle(ctx context.Context, id string) (TickResult, error) {
	run, ok, err := w.claim(ctx, id, domain.StatusTopicsSent)
	if err != nil || !ok {
		return TickResult{Action: TickIdle, RunID: id}, err
	}

	w.logger.Info("resuming interrupted cycle start", "run_id", run.ID, "attempt", run.Attempts)
	result := TickResult{Action: TickResearchStarted, RunID: run.ID}
	if err := w.deliverTopics(ctx, run); err != nil {
		w.rollback(ctx, run.ID)
		return result, err
	}
	return result, nil
}

func (w *Workflow) deliverTopics(ctx context.Context, run domain.WorkflowRun) error {
	if len(run.Topics) == 0 {
		topics, err := w.researcher.Research(ctx)
		if err != nil {
			return &domain.StepError{Step: "research", RunID: run.ID, Err: err}
		}
		updated, err := w.runs.Update(ctx, run.ID, domain.StatusTopicsSent, domain.RunPatch{Topics: topics})
		if err != nil {
			return fmt.Errorf("persist topics: %w", err)
		}
		run = updated
	}

	if err := w.notifier.SendTopics(ctx, run); err != nil {
		return &domain.StepError{Step: "notify", RunID: run.ID, Err: err}
	}

	// The owner already holds the links; recording that must outlive the tick.
	sentAt := w.now()
	if _, err := w.runs.Update(context.WithoutCancel(ctx), run.ID, domain.StatusTopicsSent, domain.RunPatch{
		TopicsSentAt: &sentAt,
		ClearLease:   true,
	}); err != nil {
		return fmt.Errorf("mark topics sent: %w", err)
	}
	w.logger.Info("topics sent", "run_id", run.ID, "count", len(run.Topics))
	return nil
}

// rollback deletes a run whose start failed so the next tick begins afresh.
func (w *Workflow) rollback(ctx context.Context, id string) {
	if err := w.runs.Delete(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		w.logger.Error("roll back failed cycle start", "run_id", id, "error", err)
		return
	}
	w.logger.Warn("rolled back failed cycle start", "run_id", id)
}

func (w *Workflow) writeDraft(ctx context.Context, id string) (TickResult, error) {
	run, ok, err := w.claim(ctx, id, domain.StatusTopicSelected)
	if err != nil || !ok {
		return TickResult{Action: TickIdle, RunID: id}, err
	}
	result := TickResult{Action: TickDraftWritten, RunID: run.ID}

	draft := run.PendingDraft
	if draft == nil {
		if run.SelectedTopic == nil {
			return result, w.fail(ctx, run, fmt.Errorf("run %s has no selected topic", run.ID))
		}
		w.logger.Info("writing draft", "run_id", run.ID, "topic", run.SelectedTopic.Title)
		written, err := w.writer.Write(ctx, *run.SelectedTopic)
		if err != nil {
			return result, w.fail(ctx, run, &domain.StepError{Step: "write", RunID: run.ID, Err: err})
		}
		updated, err := w.runs.Update(context.WithoutCancel(ctx), run.ID, domain.StatusTopicSelected, domain.RunPatch{PendingDraft: &written})
		if err != nil {
			return result, w.fail(ctx, run, fmt.Errorf("persist pending draft: %w", err))
		}
		run = updated
		draft = &written
	} else {
		w.logger.Info("reusing draft from earlier attempt", "run_id", run.ID)
	}

	if err := w.notifier.SendDraft(ctx, run, *draft); err != nil {
		return result, w.fail(ctx, run, &domain.StepError{Step: "notify", RunID: run.ID, Err: err})
	}

	patch := domain.Advance(domain.StatusDraftSent, w.now())
	patch.DraftPost = draft
	if _, err := w.runs.Update(context.WithoutCancel(ctx), run.ID, domain.StatusTopicSelected, patch); err != nil {
		return result, w.fail(ctx, run, fmt.Errorf("advance to draft sent: %w", err))
	}
	w.logger.Info("draft sent", "run_id", run.ID, "title", draft.Title)
	return result, nil
}

func (w *Workflow) publish(ctx context.Context, id string) (TickResult, error) {
	run, ok, err := w.claim(ctx, id, domain.StatusApproved)
	if err != nil || !ok {
		return TickResult{Action: TickIdle, RunID: id}, err
	}
	result := TickResult{Action: TickPostPublished, RunID: run.ID}

	if run.DraftPost == nil {
		return result, w.fail(ctx, run, fmt.Errorf("run %s has no draft", run.ID))
	}

	published, err := w.publisher.Publish(ctx, run.ID, *run.DraftPost)
	if err != nil {
		return result, w.fail(ctx, run, &domain.StepError{Step: "publish", RunID: run.ID, Err: err})
	}

	patch := domain.Advance(domain.StatusPublished, w.now())
	patch.PostID = &published.Post.ID
	if _, err := w.runs.Update(context.WithoutCancel(ctx), run.ID, domain.StatusApproved, patch); err != nil {
		return result, w.fail(ctx, run, fmt.Errorf("advance to published: %w", err))
	}
	w.logger.Info("post published", "run_id", run.ID, "post_id", published.Post.ID, "url", published.URL)
	w.alert(ctx, fmt.Sprintf("Published: %s\n%s", published.Post.Title, published.URL))

	// The run stays PUBLISHED even when the confirmation cannot be delivered.
	if err := w.notifier.SendPublished(ctx, published.Post.Title, published.URL); err != nil {
		return result, &domain.StepError{Step: "notify", RunID: run.ID, Err: err}
	}
	return result, nil
}

// claim leases the run for this tick. ok is false when another attempt holds
// it or the run has already moved on.
func (w *Workflow) claim(ctx context.Context, id string, expect domain.RunStatus) (domain.WorkflowRun, bool, error) {
	now := w.now()
	run, err := w.runs.Claim(ctx, id, expect, now, now.Add(w.settings.LeaseTTL))
	switch {
	case errors.Is(err, domain.ErrRunBusy):
		w.logger.Debug("run is leased, skipping", "run_id", id, "status", expect)
		return domain.WorkflowRun{}, false, nil
	case errors.Is(err, domain.ErrStaleStatus), errors.Is(err, domain.ErrNotFound):
		w.logger.Debug("run moved on before claim", "run_id", id, "status", expect)
		return domain.WorkflowRun{}, false, nil
	case err != nil:
		return domain.WorkflowRun{}, false, fmt.Errorf("claim run %s: %w", id, err)
	}
	return run, true, nil
}

// fail records the failed attempt and keeps the run leased for the backoff
// window. The status is left unchanged so the next tick retries.
func (w *Workflow) fail(ctx context.Context, run domain.WorkflowRun, cause error) error {
	if errors.Is(cause, domain.ErrStaleStatus) {
		return cause
	}
	var until *time.Time
	if wait := w.backoff(run.Attempts); wait > 0 {
		t := w.now().Add(wait)
		until = &t
	}
	if err := w.runs.Release(context.WithoutCancel(ctx), run.ID, until, cause.Error()); err != nil {
		w.logger.Error("release failed run", "run_id", run.ID, "error", err)
	}
	w.logger.Warn("attempt failed", "run_id", run.ID, "status", run.Status, "attempt", run.Attempts, "retry_after", until, "error", cause)
	return cause
}

// backoff doubles the retry delay per attempt, capped by MaxBackoff.
func (w *Workflow) backoff(attempts int) time.Duration {
	base := w.settings.RetryBackoff
	if base <= 0 {
		return 0
	}
	wait := base
	for i := 1; i < attempts; i++ {
		wait *= 2
		if w.settings.MaxBackoff > 0 && wait >= w.settings.MaxBackoff {
			return w.settings.MaxBackoff
		}
	}
	if w.settings.MaxBackoff > 0 && wait > w.settings.MaxBackoff {
		return w.settings.MaxBackoff
	}
	return wait
}

// ResendDraftEmail re-sends the review email for the run awaiting approval.
func (w *Workflow) ResendDraftEmail(ctx context.Context) (domain.WorkflowRun, error) {
	run, err := w.runs.FindOne(ctx, ports.RunFilter{Status: domain.StatusDraftSent})
	if err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("load draft-sent run: %w", err)
	}
	if run.DraftPost == nil {
		return run, fmt.Errorf("run %s has no draft", run.ID)
	}
	if err := w.notifier.SendDraft(ctx, run, *run.DraftPost); err != nil {
		return run, &domain.StepError{Step: "notify", RunID: run.ID, Err: err}
	}
	w.logger.Info("draft email re-sent", "run_id", run.ID)
	return run, nil
}

// DraftByToken returns the draft awaiting or holding approval for tok, or
// domain.ErrNotFound.
func (w *Workflow) DraftByToken(ctx context.Context, tok string) (domain.DraftPost, error) {
	if !token.WellFormed(tok) {
		return domain.DraftPost{}, domain.ErrNotFound
	}
	run, err := w.runs.Find(ctx, ports.RunFilter{Token: tok})
	if err != nil {
		return domain.DraftPost{}, fmt.Errorf("load run by token: %w", err)
	}
	if run == nil || run.DraftPost == nil {
		return domain.DraftPost{}, domain.ErrNotFound
	}
	if run.Status != domain.StatusDraftSent && run.Status != domain.StatusApproved {
		return domain.DraftPost{}, domain.ErrNotFound
	}
	return *run.DraftPost, nil
}

func (w *Workflow) alert(ctx context.Context, text string) {
	if w.alerter == nil {
		return
	}
	if err := w.alerter.Alert(context.WithoutCancel(ctx), text); err != nil {
		w.logger.Warn("alert failed", "error", err)
	}
}
