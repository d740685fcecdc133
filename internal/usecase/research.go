package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
)

// TopicCount is the exact number of topics a research run must yield.
const TopicCount = 5

const (
	researchMaxResults   = 5
	researchContextLimit = 20
	researchSnippetChars = 800
	researchMaxTokens    = 2000
)

// ResearchQueries seed the research step across the covered verticals.
var ResearchQueries = []string{
	"trending AI artificial intelligence news breakthroughs",
	"IoT Internet of Things innovations smart devices",
	"AR VR augmented reality virtual reality technology",
	"large language model generative AI applications",
	"edge computing robotics emerging technology",
}

// ErrNoResearchResults is returned when every seed search came back empty or failed.
var ErrNoResearchResults = errors.New("no search results returned")

// Researcher curates candidate topics from fresh web search results.
type Researcher struct {
	searcher      ports.Searcher
	generator     ports.Generator
	searchTimeout time.Duration
	publication   string
	logger        *slog.Logger
}

// NewResearcher wires the research step.
func NewResearcher(searcher ports.Searcher, generator ports.Generator, searchTimeout time.Duration, publication string, logger *slog.Logger) *Researcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Researcher{
		searcher:      searcher,
		generator:     generator,
		searchTimeout: searchTimeout,
		publication:   publication,
		logger:        logger,
	}
}

// Research returns exactly TopicCount topics or an error.
func (r *Researcher) Research(ctx context.Context) ([]domain.Topic, error) {
	results, err := ParallelSearch(ctx, r.searcher, ResearchQueries, ports.SearchOptions{
		MaxResults: researchMaxResults,
		Depth:      ports.DepthBasic,
	}, r.searchTimeout, r.logger)
	if err != nil {
		return nil, fmt.Errorf("research search: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoResearchResults
	}
	r.logger.Debug("gathered research results", "count", len(results))

	researchContext := formatResearchContext(results, researchContextLimit, researchSnippetChars,
		func(i int, res domain.ResearchResult) string {
			return fmt.Sprintf("[Source %d]\nTitle: %s", i+1, res.Title)
		})

	text, err := r.generator.Complete(ctx, r.prompt(researchContext), researchMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("curate topics: %w", err)
	}

	topics, err := decodeTopics(text, TopicCount)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("curated topics", "count", len(topics))
	return topics, nil
}

func (r *Researcher) prompt(researchContext string) string {
	categories := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		categories = append(categories, fmt.Sprintf("%q", string(c)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a tech blog editor for %q, covering AI, IoT, and AR/VR.\n\n", r.publication)
	fmt.Fprintf(&b, "Based on these research results from today's tech news, generate exactly %d compelling blog topic suggestions.\n", TopicCount)
	b.WriteString("Each topic should be timely, interesting to tech enthusiasts, and suitable for a 1500-2500 word blog post.\n\n")
	b.WriteString("RESEARCH RESULTS:\n")
	b.WriteString(researchContext)
	fmt.Fprintf(&b, "\n\nReturn ONLY a valid JSON array of exactly %d topic objects. No markdown, no explanation, just the JSON.\n\n", TopicCount)
	b.WriteString("Each object must have exactly these fields:\n")
	b.WriteString("- title: string (compelling blog post title, 50-80 chars)\n")
	b.WriteString("- description: string (exactly 2 sentences describing what the post will cover)\n")
	fmt.Fprintf(&b, "- category: one of %s\n", strings.Join(categories, " | "))
	b.WriteString("- searchQuery: string (targeted search query for deeper research on this topic)\n")
	return b.String()
}
