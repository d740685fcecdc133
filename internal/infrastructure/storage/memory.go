package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
)

// MemoryRunRepository keeps runs in process. It enforces the same
// conditional-update, lease and single-flight rules as the Postgres store.
type MemoryRunRepository struct {
	mu   sync.Mutex
	runs map[string]domain.WorkflowRun
	now  func() time.Time
}

var _ ports.RunRepository = (*MemoryRunRepository)(nil)

// NewMemoryRunRepository seeds the store with runs as given; seeding bypasses
// the single-flight check.
func NewMemoryRunRepository(runs ...domain.WorkflowRun) *MemoryRunRepository {
	r := &MemoryRunRepository{runs: make(map[string]domain.WorkflowRun, len(runs)), now: time.Now}
	for _, run := range runs {
		r.runs[run.ID] = run.Clone()
	}
	return r
}

func (r *MemoryRunRepository) Find(_ context.Context, filter ports.RunFilter) (*domain.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := r.matchLocked(func(run domain.WorkflowRun) bool {
		return (filter.ID == "" || run.ID == filter.ID) &&
			(filter.Status == "" || run.Status == filter.Status) &&
			(filter.Token == "" || run.ApprovalToken == filter.Token)
	})
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func (r *MemoryRunRepository) FindOne(ctx context.Context, filter ports.RunFilter) (domain.WorkflowRun, error) {
	run, err := r.Find(ctx, filter)
	if err != nil {
		return domain.WorkflowRun{}, err
	}
	if run == nil {
		return domain.WorkflowRun{}, domain.ErrNotFound
	}
	return *run, nil
}

func (r *MemoryRunRepository) FindActive(_ context.Context) (*domain.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := r.matchLocked(domain.WorkflowRun.Active)
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func (r *MemoryRunRepository) LastPublished(_ context.Context) (*domain.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last *domain.WorkflowRun
	for _, run := range r.runs {
		if run.Status != domain.StatusPublished || run.PublishedAt == nil {
			continue
		}
		if last == nil || run.PublishedAt.After(*last.PublishedAt) {
			c := run.Clone()
			last = &c
		}
	}
	return last, nil
}

func (r *MemoryRunRepository) Insert(_ context.Context, run domain.WorkflowRun) (domain.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if _, exists := r.runs[run.ID]; exists {
		return domain.WorkflowRun{}, domain.ErrActiveRunExists
	}
	if run.Active() {
		for _, existing := range r.runs {
			if existing.Active() {
				return domain.WorkflowRun{}, domain.ErrActiveRunExists
			}
		}
	}
	now := r.now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.CreatedAt
	}
	r.runs[run.ID] = run.Clone()
	return run.Clone(), nil
}

func (r *MemoryRunRepository) Update(_ context.Context, id string, expect domain.RunStatus, patch domain.RunPatch) (domain.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return domain.WorkflowRun{}, domain.ErrNotFound
	}
	if run.Status != expect {
		return domain.WorkflowRun{}, domain.ErrStaleStatus
	}
	patch.Apply(&run, r.now().UTC())
	r.runs[id] = run
	return run.Clone(), nil
}

func (r *MemoryRunRepository) Claim(_ context.Context, id string, expect domain.RunStatus, now, until time.Time) (domain.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return domain.WorkflowRun{}, domain.ErrNotFound
	}
	if run.Status != expect {
		return domain.WorkflowRun{}, domain.ErrStaleStatus
	}
	if run.Leased(now) {
		return domain.WorkflowRun{}, domain.ErrRunBusy
	}
	run.LeaseUntil = &until
	run.Attempts++
	run.UpdatedAt = now
	r.runs[id] = run
	return run.Clone(), nil
}

func (r *MemoryRunRepository) Release(_ context.Context, id string, until *time.Time, lastErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if until != nil {
		u := *until
		run.LeaseUntil = &u
	} else {
		run.LeaseUntil = nil
	}
	run.LastError = lastErr
	run.UpdatedAt = r.now().UTC()
	r.runs[id] = run
	return nil
}

func (r *MemoryRunRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.runs, id)
	return nil
}

// All returns every stored run, oldest first.
func (r *MemoryRunRepository) All() []domain.WorkflowRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchLocked(func(domain.WorkflowRun) bool { return true })
}

func (r *MemoryRunRepository) matchLocked(keep func(domain.WorkflowRun) bool) []domain.WorkflowRun {
	out := make([]domain.WorkflowRun, 0, len(r.runs))
	for _, run := range r.runs {
		if keep(run) {
			out = append(out, run.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// MemoryPostRepository keeps published posts in process with unique slug and
// run constraints.
type MemoryPostRepository struct {
	mu    sync.Mutex
	posts []domain.Post
}

var _ ports.PostRepository = (*MemoryPostRepository)(nil)

// NewMemoryPostRepository seeds the store with posts.
func NewMemoryPostRepository(posts ...domain.Post) *MemoryPostRepository {
	r := &MemoryPostRepository{}
	for _, p := range posts {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		r.posts = append(r.posts, clonePost(p))
	}
	return r
}

func (r *MemoryPostRepository) Slugs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.posts))
	for _, p := range r.posts {
		out = append(out, p.Slug)
	}
	return out, nil
}

func (r *MemoryPostRepository) FindByRun(_ context.Context, runID string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.posts {
		if runID != "" && p.RunID == runID {
			c := clonePost(p)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryPostRepository) Insert(_ context.Context, post domain.Post) (domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.posts {
		if p.Slug == post.Slug {
			return domain.Post{}, domain.ErrSlugTaken
		}
		if post.RunID != "" && p.RunID == post.RunID {
			return domain.Post{}, domain.ErrPostExists
		}
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	r.posts = append(r.posts, clonePost(post))
	return clonePost(post), nil
}

// All returns every stored post in insertion order.
func (r *MemoryPostRepository) All() []domain.Post {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Post, 0, len(r.posts))
	for _, p := range r.posts {
		out = append(out, clonePost(p))
	}
	return out
}

func clonePost(p domain.Post) domain.Post {
	p.Tags = append([]string(nil), p.Tags...)
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		p.PublishedAt = &t
	}
	return p
}
