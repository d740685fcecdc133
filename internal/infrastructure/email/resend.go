package email

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
	"ContentPipeline/internal/ports"
)

// ResendMailer sends HTML mail through the Resend HTTP API.
type ResendMailer struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

var _ ports.Mailer = (*ResendMailer)(nil)

// NewResendMailer registers API key and sender address.
func NewResendMailer(cfg config.EmailConfig) *ResendMailer {
	return &ResendMailer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send delivers one message to a single recipient.
func (m *ResendMailer) Send(ctx context.Context, to, subject, html string) error {
	if m.apiKey == "" {
		return errors.New("resend api key is not set")
	}
	if to == "" {
		return errors.New("recipient is empty")
	}

	body, err := json.Marshal(map[string]any{
		"from":    m.from,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		var apiErr resendError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("resend error %s: %s: %s", resp.Status, apiErr.Name, apiErr.Message)
		}
		return fmt.Errorf("resend error %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return nil
}
