//go:build integration

package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
)

// setupTestDB starts a disposable Postgres, applies the schema and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("contentpipeline"),
		postgres.WithUsername("pipeline"),
		postgres.WithPassword("pipeline"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	// Second run must be a no-op.
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func newRun(id, tok string, status domain.RunStatus) domain.WorkflowRun {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.WorkflowRun{
		ID:            id,
		Status:        status,
		ApprovalToken: tok,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestIntegration_RunLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	runs := NewPostgresRunRepository(pool)

	run, err := runs.Insert(ctx, newRun("8a3a1f2e-44a1-4d8e-9f43-5d1f3f7e0a01", "tok-lifecycle", domain.StatusTopicsSent))
	require.NoError(t, err)
	require.Equal(t, domain.StatusTopicsSent, run.Status)
	require.Nil(t, run.Topics)

	topics := []domain.Topic{{Title: "Edge AI", Description: "A. B.", Category: domain.CategoryAI, SearchQuery: "edge ai"}}
	run, err = runs.Update(ctx, run.ID, domain.StatusTopicsSent, domain.RunPatch{Topics: topics})
	require.NoError(t, err)
	require.Equal(t, topics, run.Topics)

	_, err = runs.Update(ctx, run.ID, domain.StatusDraftSent, domain.RunPatch{})
	require.ErrorIs(t, err, domain.ErrStaleStatus)

	patch := domain.Advance(domain.StatusTopicSelected, time.Now().UTC())
	patch.SelectedTopic = &topics[0]
	run, err = runs.Update(ctx, run.ID, domain.StatusTopicsSent, patch)
	require.NoError(t, err)
	require.Equal(t, domain.StatusTopicSelected, run.Status)
	require.NotNil(t, run.TopicSelectedAt)
	require.Equal(t, topics[0], *run.SelectedTopic)

	found, err := runs.Find(ctx, ports.RunFilter{Token: "tok-lifecycle"})
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, run.ID, found.ID)

	missing, err := runs.Find(ctx, ports.RunFilter{Token: "tok-lifecycle", Status: domain.StatusApproved})
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, runs.Delete(ctx, run.ID))
	require.ErrorIs(t, runs.Delete(ctx, run.ID), domain.ErrNotFound)
}

func TestIntegration_SingleFlight(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	runs := NewPostgresRunRepository(pool)

	ids := []string{
		"2b1c0d7e-0000-4000-8000-000000000001",
		"2b1c0d7e-0000-4000-8000-000000000002",
		"2b1c0d7e-0000-4000-8000-000000000003",
		"2b1c0d7e-0000-4000-8000-000000000004",
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
		rejected int
	)
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := runs.Insert(ctx, newRun(id, "tok-"+id, domain.StatusTopicsSent))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				inserted++
				return
			}
			assert.ErrorIs(t, err, domain.ErrActiveRunExists, "insert %d", i)
			rejected++
		}()
	}
	wg.Wait()

	require.Equal(t, 1, inserted)
	require.Equal(t, len(ids)-1, rejected)

	// Published runs do not count towards single-flight.
	published := newRun("2b1c0d7e-0000-4000-8000-0000000000ff", "tok-published", domain.StatusPublished)
	at := time.Now().UTC()
	published.PublishedAt = &at
	_, err := runs.Insert(ctx, published)
	require.NoError(t, err)

	last, err := runs.LastPublished(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, published.ID, last.ID)
}

func TestIntegration_ClaimAndRelease(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	runs := NewPostgresRunRepository(pool)

	run, err := runs.Insert(ctx, newRun("5f9e8d7c-1111-4222-8333-444455556666", "tok-claim", domain.StatusApproved))
	require.NoError(t, err)

	now := time.Now().UTC()
	claimed, err := runs.Claim(ctx, run.ID, domain.StatusApproved, now, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, claimed.Attempts)

	_, err = runs.Claim(ctx, run.ID, domain.StatusApproved, now, now.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrRunBusy)

	_, err = runs.Claim(ctx, run.ID, domain.StatusDraftSent, now, now.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrStaleStatus)

	require.NoError(t, runs.Release(ctx, run.ID, nil, "boom"))
	claimed, err = runs.Claim(ctx, run.ID, domain.StatusApproved, now, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, claimed.Attempts)
	require.Equal(t, "boom", claimed.LastError)

	advanced, err := runs.Update(ctx, run.ID, domain.StatusApproved, domain.Advance(domain.StatusPublished, now))
	require.NoError(t, err)
	require.Nil(t, advanced.LeaseUntil)
	require.Zero(t, advanced.Attempts)
	require.Empty(t, advanced.LastError)
}

func TestIntegration_PostUniqueness(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	runs := NewPostgresRunRepository(pool)
	posts := NewPostgresPostRepository(pool)

	run, err := runs.Insert(ctx, newRun("9d8c7b6a-aaaa-4bbb-8ccc-dddddddddddd", "tok-posts", domain.StatusApproved))
	require.NoError(t, err)

	now := time.Now().UTC()
	post, err := posts.Insert(ctx, domain.Post{
		RunID:       run.ID,
		Title:       "AI Trends",
		Slug:        "ai-trends",
		Content:     "<h2>x</h2>",
		Tags:        []string{"ai"},
		Status:      domain.PostPublished,
		CreatedAt:   now,
		PublishedAt: &now,
	})
	require.NoError(t, err)
	require.NotEmpty(t, post.ID)

	_, err = posts.Insert(ctx, domain.Post{Title: "Other", Slug: "ai-trends", Content: "c", Status: domain.PostPublished, CreatedAt: now})
	require.ErrorIs(t, err, domain.ErrSlugTaken)

	_, err = posts.Insert(ctx, domain.Post{RunID: run.ID, Title: "Again", Slug: "ai-trends-2", Content: "c", Status: domain.PostPublished, CreatedAt: now})
	require.ErrorIs(t, err, domain.ErrPostExists)

	byRun, err := posts.FindByRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, byRun)
	require.Equal(t, post.ID, byRun.ID)
	require.Equal(t, []string{"ai"}, byRun.Tags)

	slugs, err := posts.Slugs(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ai-trends"}, slugs)
}
