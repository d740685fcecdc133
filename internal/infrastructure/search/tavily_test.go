package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentPipeline/internal/config"
	"ContentPipeline/internal/ports"
)

func TestTavilySearch(t *testing.T) {
	t.Parallel()

	var got tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Edge AI","url":"https://a.example/1","content":"chips","score":0.91},
			{"title":"Smart homes","url":"https://b.example/2","content":"iot","score":0.42}
		]}`))
	}))
	defer srv.Close()

	client := NewTavilyClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "tvly-key"})
	results, err := client.Search(context.Background(), "edge ai", ports.SearchOptions{MaxResults: 7, Depth: ports.DepthAdvanced})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Edge AI", results[0].Title)
	require.InDelta(t, 0.91, results[0].Score, 1e-9)

	require.Equal(t, "tvly-key", got.APIKey)
	require.Equal(t, "edge ai", got.Query)
	require.Equal(t, 7, got.MaxResults)
	require.Equal(t, "advanced", got.SearchDepth)
	require.False(t, got.IncludeAnswer)
}

func TestTavilySearchDefaults(t *testing.T) {
	t.Parallel()

	var got tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	client := NewTavilyClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "k"})
	results, err := client.Search(context.Background(), "q", ports.SearchOptions{})
	require.NoError(t, err)
	require.Empty(t, results)
	require.Equal(t, 5, got.MaxResults)
	require.Equal(t, "basic", got.SearchDepth)
}

func TestTavilySearchFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("slow") != "" {
			time.Sleep(200 * time.Millisecond)
		}
		http.Error(w, "quota exceeded", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewTavilyClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "k"})
	_, err := client.Search(context.Background(), "q", ports.SearchOptions{})
	require.ErrorContains(t, err, "quota exceeded")

	_, err = NewTavilyClient(config.SearchConfig{Endpoint: srv.URL}).Search(context.Background(), "q", ports.SearchOptions{})
	require.ErrorContains(t, err, "api key")

	slow := NewTavilyClient(config.SearchConfig{Endpoint: srv.URL + "?slow=1", APIKey: "k"})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = slow.Search(ctx, "q", ports.SearchOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
