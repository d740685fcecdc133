package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
)

func TestResearcherResearch(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	generator := &fakeGenerator{reply: func(string) (string, error) {
		return topicsJSON(sampleTopics()), nil
	}}
	researcher := NewResearcher(searcher, generator, time.Second, "Emerging Tech Nation", nil)

	topics, err := researcher.Research(context.Background())
	require.NoError(t, err)
	assert.Len(t, topics, TopicCount)

	assert.Equal(t, len(ResearchQueries), searcher.count())
	for _, opts := range searcher.opts {
		assert.Equal(t, ports.SearchOptions{MaxResults: 5, Depth: ports.DepthBasic}, opts)
	}

	require.Equal(t, 1, generator.count())
	assert.Equal(t, 2000, generator.maxTokens[0])
	prompt := generator.prompts[0]
	assert.Contains(t, prompt, "Emerging Tech Nation")
	assert.Contains(t, prompt, "[Source 1]")
	assert.Contains(t, prompt, `"AI" | "IoT" | "AR/VR"`)
}

func TestResearcherNoResults(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: func(string) ([]domain.ResearchResult, error) {
		return nil, errBoom
	}}
	generator := &fakeGenerator{reply: func(string) (string, error) { return "[]", nil }}

	_, err := NewResearcher(searcher, generator, time.Second, "x", nil).Research(context.Background())
	require.ErrorIs(t, err, ErrNoResearchResults)
	assert.Zero(t, generator.count())
}

func TestResearcherRejectsBadModelOutput(t *testing.T) {
	t.Parallel()

	generator := &fakeGenerator{reply: func(string) (string, error) {
		return topicsJSON(sampleTopics()[:3]), nil
	}}

	_, err := NewResearcher(&fakeSearcher{}, generator, time.Second, "x", nil).Research(context.Background())
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, DecodeWrongCount, decodeErr.Kind)
}

func TestResearcherGeneratorFailure(t *testing.T) {
	t.Parallel()

	generator := &fakeGenerator{reply: func(string) (string, error) { return "", errBoom }}
	_, err := NewResearcher(&fakeSearcher{}, generator, time.Second, "x", nil).Research(context.Background())
	require.ErrorIs(t, err, errBoom)
}

func TestResearcherCancelledBeforeGeneration(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	searcher := &fakeSearcher{results: func(string) ([]domain.ResearchResult, error) {
		return nil, context.Canceled
	}}
	generator := &fakeGenerator{reply: func(string) (string, error) { return "[]", nil }}

	_, err := NewResearcher(searcher, generator, time.Second, "x", nil).Research(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNoResearchResults)
	assert.Zero(t, generator.count())
}
