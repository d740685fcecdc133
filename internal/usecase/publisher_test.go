package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/infrastructure/storage"
)

func TestPublisherResolvesSlugCollision(t *testing.T) {
	t.Parallel()

	posts := storage.NewMemoryPostRepository(
		domain.Post{ID: "p1", Slug: "ai-trends"},
		domain.Post{ID: "p2", Slug: "ai-trends-2"},
	)
	invalidator := &fakeInvalidator{}
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	publisher := NewPublisher(posts, invalidator, "https://site.example/", func() time.Time { return now }, nil)

	res, err := publisher.Publish(context.Background(), "run-1", sampleDraft("AI Trends"))
	require.NoError(t, err)

	assert.Equal(t, "ai-trends-3", res.Post.Slug)
	assert.Equal(t, "https://site.example/blog/ai-trends-3", res.URL)
	assert.Equal(t, domain.PostPublished, res.Post.Status)
	assert.Equal(t, "run-1", res.Post.RunID)
	require.NotNil(t, res.Post.PublishedAt)
	assert.Equal(t, now, *res.Post.PublishedAt)
	assert.ElementsMatch(t, []string{"/", "/blog", "/blog/ai-trends-3"}, invalidator.paths)
	assert.Len(t, posts.All(), 3)
}

func TestPublisherIsIdempotentPerRun(t *testing.T) {
	t.Parallel()

	posts := storage.NewMemoryPostRepository()
	publisher := NewPublisher(posts, nil, "https://site.example", nil, nil)

	first, err := publisher.Publish(context.Background(), "run-1", sampleDraft("AI Trends"))
	require.NoError(t, err)
	second, err := publisher.Publish(context.Background(), "run-1", sampleDraft("AI Trends"))
	require.NoError(t, err)

	assert.Equal(t, first.Post.ID, second.Post.ID)
	assert.Equal(t, "ai-trends", second.Post.Slug)
	assert.Len(t, posts.All(), 1)
}

func TestPublisherIgnoresInvalidationFailure(t *testing.T) {
	t.Parallel()

	invalidator := &fakeInvalidator{err: errBoom}
	publisher := NewPublisher(storage.NewMemoryPostRepository(), invalidator, "https://site.example", nil, nil)

	res, err := publisher.Publish(context.Background(), "run-1", sampleDraft("AI Trends"))
	require.NoError(t, err)
	assert.Equal(t, "ai-trends", res.Post.Slug)
	assert.Len(t, invalidator.paths, 3)
}
