package ports

import (
	"context"
	"time"

	"ContentPipeline/internal/domain"
)

// RunFilter matches workflow runs by exact value. Zero fields are ignored.
type RunFilter struct {
	ID     string
	Status domain.RunStatus
	Token  string
}

// RunRepository is the single source of truth for workflow state. Every
// status change goes through Update, which only applies when the stored
// status still equals expect.
type RunRepository interface {
	// Find returns the oldest matching run, or nil when nothing matches.
	Find(ctx context.Context, filter RunFilter) (*domain.WorkflowRun, error)
	// FindOne returns the matching run or domain.ErrNotFound.
	FindOne(ctx context.Context, filter RunFilter) (domain.WorkflowRun, error)
	// FindActive returns the run outside {IDLE, PUBLISHED}, if any.
	FindActive(ctx context.Context) (*domain.WorkflowRun, error)
	// LastPublished returns the most recently published run, if any.
	LastPublished(ctx context.Context) (*domain.WorkflowRun, error)
	// Insert stores a new run; domain.ErrActiveRunExists enforces single-flight.
	Insert(ctx context.Context, run domain.WorkflowRun) (domain.WorkflowRun, error)
	// Update applies patch when the run is still in expect, else domain.ErrStaleStatus.
	Update(ctx context.Context, id string, expect domain.RunStatus, patch domain.RunPatch) (domain.WorkflowRun, error)
	// Claim leases the run until the given instant when it is in expect and
	// not leased at now, else domain.ErrRunBusy or domain.ErrStaleStatus.
	Claim(ctx context.Context, id string, expect domain.RunStatus, now, until time.Time) (domain.WorkflowRun, error)
	// Release records a failed attempt and keeps the run leased until the given
	// instant (nil frees it immediately).
	Release(ctx context.Context, id string, until *time.Time, lastErr string) error
	// Delete removes a run; used only to roll back a failed cycle start.
	Delete(ctx context.Context, id string) error
}

// PostRepository reads and writes live content records.
type PostRepository interface {
	Slugs(ctx context.Context) ([]string, error)
	FindByRun(ctx context.Context, runID string) (*domain.Post, error)
	Insert(ctx context.Context, post domain.Post) (domain.Post, error)
}

// Generator completes prompts with a generative text model.
type Generator interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// SearchDepth trades cost for recall on the search provider.
type SearchDepth string

const (
	DepthBasic    SearchDepth = "basic"
	DepthAdvanced SearchDepth = "advanced"
)

// SearchOptions tunes a single web search call.
type SearchOptions struct {
	MaxResults int
	Depth      SearchDepth
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]domain.ResearchResult, error)
}

// Mailer delivers HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// CacheInvalidator asks the content layer to drop cached renderings of a route.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, path string) error
}

// Alerter pushes short operator messages (failures, publications) to a chat channel.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Scheduler controls when ticks execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Metrics records workflow outcomes.
type Metrics interface {
	ObserveTick(action string, elapsed time.Duration, err error)
	ObserveAction(action, result string)
}
