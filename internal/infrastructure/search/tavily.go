package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ContentPipeline/internal/config"
	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
)

// TavilyClient implements ports.Searcher against the Tavily search API.
type TavilyClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Searcher = (*TavilyClient)(nil)

// NewTavilyClient creates a reusable HTTP client. Per-call deadlines come
// from the caller's context.
func NewTavilyClient(cfg config.SearchConfig) *TavilyClient {
	return &TavilyClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: time.Minute},
	}
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs a single query.
func (c *TavilyClient) Search(ctx context.Context, query string, opts ports.SearchOptions) ([]domain.ResearchResult, error) {
	if c.apiKey == "" {
		return nil, errors.New("tavily api key is not set")
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.Depth == "" {
		opts.Depth = ports.DepthBasic
	}

	var resp tavilyResponse
	err := c.post(ctx, tavilyRequest{
		APIKey:      c.apiKey,
		Query:       query,
		MaxResults:  opts.MaxResults,
		SearchDepth: string(opts.Depth),
	}, &resp)
	if err != nil {
		return nil, err
	}

	results := make([]domain.ResearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, domain.ResearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

func (c *TavilyClient) post(ctx context.Context, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("tavily error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
