package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
	"ContentPipeline/internal/slug"
)

const slugInsertAttempts = 3

// PublishResult describes a live content record.
type PublishResult struct {
	Post domain.Post
	URL  string
}

// Publisher turns an approved draft into a live post.
type Publisher struct {
	posts       ports.PostRepository
	invalidator ports.CacheInvalidator
	siteURL     string
	now         func() time.Time
	logger      *slog.Logger
}

// NewPublisher wires the publishing step. invalidator may be nil.
func NewPublisher(posts ports.PostRepository, invalidator ports.CacheInvalidator, siteURL string, now func() time.Time, logger *slog.Logger) *Publisher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		posts:       posts,
		invalidator: invalidator,
		siteURL:     strings.TrimSuffix(siteURL, "/"),
		now:         now,
		logger:      logger,
	}
}

// Publish inserts the draft for runID as a published post. A post already
// stored for the run is reused, so retries never create duplicates.
func (p *Publisher) Publish(ctx context.Context, runID string, draft domain.DraftPost) (PublishResult, error) {
	existing, err := p.posts.FindByRun(ctx, runID)
	if err != nil {
		return PublishResult{}, fmt.Errorf("lookup post for run: %w", err)
	}

	var post domain.Post
	if existing != nil {
		p.logger.Info("reusing post from earlier attempt", "run_id", runID, "post_id", existing.ID)
		post = *existing
	} else {
		post, err = p.insertUnique(ctx, runID, draft)
		if err != nil {
			return PublishResult{}, err
		}
	}

	p.invalidate(ctx, post.Slug)

	return PublishResult{Post: post, URL: p.PostURL(post.Slug)}, nil
}

// PostURL returns the public address of a slug.
func (p *Publisher) PostURL(postSlug string) string {
	return p.siteURL + "/blog/" + postSlug
}

func (p *Publisher) insertUnique(ctx context.Context, runID string, draft domain.DraftPost) (domain.Post, error) {
	now := p.now().UTC()
	for attempt := 1; ; attempt++ {
		existing, err := p.posts.Slugs(ctx)
		if err != nil {
			return domain.Post{}, fmt.Errorf("load existing slugs: %w", err)
		}
		candidate := slug.MakeUnique(draft.Slug, existing)
		if candidate != draft.Slug {
			p.logger.Info("slug collision", "slug", draft.Slug, "resolved", candidate)
		}

		post, err := p.posts.Insert(ctx, domain.Post{
			RunID:       runID,
			Title:       draft.Title,
			Slug:        candidate,
			Content:     draft.Content,
			Excerpt:     draft.Excerpt,
			Tags:        append([]string(nil), draft.Tags...),
			Status:      domain.PostPublished,
			CreatedAt:   now,
			PublishedAt: &now,
		})
		if err == nil {
			return post, nil
		}
		if errors.Is(err, domain.ErrPostExists) {
			existing, findErr := p.posts.FindByRun(ctx, runID)
			if findErr == nil && existing != nil {
				return *existing, nil
			}
		}
		if !errors.Is(err, domain.ErrSlugTaken) || attempt >= slugInsertAttempts {
			return domain.Post{}, fmt.Errorf("insert post: %w", err)
		}
	}
}

// invalidate is best effort: failures are logged, never returned.
func (p *Publisher) invalidate(ctx context.Context, postSlug string) {
	if p.invalidator == nil {
		return
	}
	var wg sync.WaitGroup
	for _, path := range []string{"/", "/blog", "/blog/" + postSlug} {
		wg.Go(func() {
			if err := p.invalidator.Invalidate(ctx, path); err != nil {
				p.logger.Warn("cache invalidation failed", "path", path, "error", err)
			}
		})
	}
	wg.Wait()
}
