package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ContentPipeline/internal/ports"
)

// Revalidator asks the site's revalidate endpoint to drop a cached route.
type Revalidator struct {
	siteURL string
	secret  string
	client  *http.Client
}

var _ ports.CacheInvalidator = (*Revalidator)(nil)

// NewRevalidator targets <siteURL>/api/revalidate, authenticated with secret.
func NewRevalidator(siteURL, secret string) *Revalidator {
	return &Revalidator{
		siteURL: strings.TrimSuffix(siteURL, "/"),
		secret:  secret,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Invalidate posts path to the revalidate endpoint.
func (r *Revalidator) Invalidate(ctx context.Context, path string) error {
	if r.siteURL == "" {
		return errors.New("revalidator site url is not set")
	}
	endpoint := r.siteURL + "/api/revalidate?path=" + url.QueryEscape(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if r.secret != "" {
		req.Header.Set("Authorization", "Bearer "+r.secret)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revalidate %s: %s", path, resp.Status)
	}
	return nil
}
