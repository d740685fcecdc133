package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
)

// ParallelSearch runs every query concurrently, each bounded by timeout.
// Failed or timed-out queries are logged and excluded. Results are
// deduplicated by URL and sorted by descending score. The only error is the
// caller's ctx ending.
func ParallelSearch(ctx context.Context, searcher ports.Searcher, queries []string, opts ports.SearchOptions, timeout time.Duration, logger *slog.Logger) ([]domain.ResearchResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	batches := make([][]domain.ResearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			callCtx := gctx
			if timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}
			results, err := searcher.Search(callCtx, query, opts)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("search query failed", "query", query, "error", err)
				return nil
			}
			batches[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	merged := make([]domain.ResearchResult, 0)
	for _, batch := range batches {
		for _, item := range batch {
			key := strings.TrimSpace(item.URL)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, item)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged, nil
}

// formatResearchContext renders the top limit results for a prompt, each
// trimmed to maxChars of content.
func formatResearchContext(results []domain.ResearchResult, limit, maxChars int, header func(i int, r domain.ResearchResult) string) string {
	if len(results) > limit {
		results = results[:limit]
	}
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("%s\nURL: %s\n%s", header(i, r), r.URL, truncateRunes(r.Content, maxChars)))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
