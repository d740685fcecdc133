package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
	"ContentPipeline/internal/token"
)

// ActionRequest carries the raw query parameters of an email action link.
type ActionRequest struct {
	Token  string
	Action string
	Topic  string
	// HasTopic distinguishes an absent topic parameter from an empty one.
	HasTopic bool
}

// ActionResult describes an accepted action.
type ActionResult struct {
	Action        string
	RunID         string
	Status        domain.RunStatus
	SelectedTitle string
}

// Actions applies the owner's emailed decisions to the workflow.
type Actions struct {
	runs    ports.RunRepository
	metrics ports.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// NewActions wires the action handler. metrics may be nil.
func NewActions(runs ports.RunRepository, metrics ports.Metrics, now func() time.Time, logger *slog.Logger) *Actions {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Actions{
		runs:    runs,
		metrics: metrics,
		now:     now,
		logger:  logger.With("component", "actions"),
	}
}

// Handle validates req and applies it. Rejections are *domain.ActionError and
// leave every run untouched.
func (a *Actions) Handle(ctx context.Context, req ActionRequest) (ActionResult, error) {
	result, err := a.handle(ctx, req)
	reason := "ok"
	if err != nil {
		reason = domain.ReasonOf(err)
		level := slog.LevelWarn
		if reason == domain.ReasonInternal {
			level = slog.LevelError
		}
		a.logger.Log(ctx, level, "action rejected", "action", req.Action, "reason", reason, "error", err)
	} else {
		a.logger.Info("action applied", "action", result.Action, "run_id", result.RunID, "status", result.Status)
	}
	if a.metrics != nil {
		a.metrics.ObserveAction(metricAction(req.Action), reason)
	}
	return result, err
}

func (a *Actions) handle(ctx context.Context, req ActionRequest) (ActionResult, error) {
	req.Token = strings.TrimSpace(req.Token)
	req.Action = strings.TrimSpace(req.Action)
	if req.Token == "" || req.Action == "" {
		return ActionResult{}, domain.NewActionError(domain.ReasonMissingParams, "token and action are required")
	}

	switch req.Action {
	case token.ActionSelect:
		if !req.HasTopic {
			return ActionResult{}, domain.NewActionError(domain.ReasonMissingTopic, "select requires a topic")
		}
		index, err := strconv.Atoi(strings.TrimSpace(req.Topic))
		if err != nil || index < 0 || index >= TopicCount {
			return ActionResult{}, domain.NewActionError(domain.ReasonInvalidTopic, "topic %q out of range", req.Topic)
		}
		return a.selectTopic(ctx, req.Token, index)
	case token.ActionApprove:
		return a.approve(ctx, req.Token)
	default:
		return ActionResult{}, domain.NewActionError(domain.ReasonUnknownAction, "action %q", req.Action)
	}
}

func (a *Actions) selectTopic(ctx context.Context, tok string, index int) (ActionResult, error) {
	run, err := a.lookup(ctx, tok, domain.StatusTopicsSent)
	if err != nil {
		return ActionResult{}, err
	}
	if index >= len(run.Topics) {
		return ActionResult{}, domain.NewActionError(domain.ReasonInvalidTopic, "run has %d topics", len(run.Topics))
	}

	topic := run.Topics[index]
	patch := domain.Advance(domain.StatusTopicSelected, a.now().UTC())
	patch.SelectedTopic = &topic
	updated, err := a.runs.Update(ctx, run.ID, domain.StatusTopicsSent, patch)
	if err != nil {
		return ActionResult{}, a.updateError(err)
	}
	return ActionResult{
		Action:        token.ActionSelect,
		RunID:         updated.ID,
		Status:        updated.Status,
		SelectedTitle: topic.Title,
	}, nil
}

func (a *Actions) approve(ctx context.Context, tok string) (ActionResult, error) {
	run, err := a.lookup(ctx, tok, domain.StatusDraftSent)
	if err != nil {
		return ActionResult{}, err
	}
	updated, err := a.runs.Update(ctx, run.ID, domain.StatusDraftSent, domain.Advance(domain.StatusApproved, a.now().UTC()))
	if err != nil {
		return ActionResult{}, a.updateError(err)
	}
	return ActionResult{Action: token.ActionApprove, RunID: updated.ID, Status: updated.Status}, nil
}

// lookup finds the run holding tok in the expected status. A known token in
// another status is a replay or an out-of-order click.
func (a *Actions) lookup(ctx context.Context, tok string, expect domain.RunStatus) (domain.WorkflowRun, error) {
	if !token.WellFormed(tok) {
		return domain.WorkflowRun{}, domain.NewActionError(domain.ReasonInvalidToken, "malformed token")
	}
	run, err := a.runs.Find(ctx, ports.RunFilter{Token: tok, Status: expect})
	if err != nil {
		return domain.WorkflowRun{}, domain.NewActionError(domain.ReasonInternal, "load run: %v", err)
	}
	if run != nil {
		return *run, nil
	}

	other, err := a.runs.Find(ctx, ports.RunFilter{Token: tok})
	if err != nil {
		return domain.WorkflowRun{}, domain.NewActionError(domain.ReasonInternal, "load run: %v", err)
	}
	if other == nil {
		return domain.WorkflowRun{}, domain.NewActionError(domain.ReasonInvalidToken, "no run for token")
	}
	return domain.WorkflowRun{}, domain.NewActionError(domain.ReasonInvalidState, "run %s is %s, expected %s", other.ID, other.Status, expect)
}

func (a *Actions) updateError(err error) error {
	if errors.Is(err, domain.ErrStaleStatus) || errors.Is(err, domain.ErrNotFound) {
		return domain.NewActionError(domain.ReasonInvalidState, "run changed concurrently")
	}
	return domain.NewActionError(domain.ReasonInternal, "update run: %v", err)
}

func metricAction(action string) string {
	switch action {
	case token.ActionSelect, token.ActionApprove:
		return action
	default:
		return "other"
	}
}
