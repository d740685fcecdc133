package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentPipeline/internal/config"
)

func TestResendSend(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	mailer := NewResendMailer(config.EmailConfig{Endpoint: srv.URL, APIKey: "re_key", From: "noreply@example.com"})
	require.NoError(t, mailer.Send(context.Background(), "owner@example.com", "Draft ready", "<p>hi</p>"))

	require.Equal(t, "noreply@example.com", got["from"])
	require.Equal(t, []any{"owner@example.com"}, got["to"])
	require.Equal(t, "Draft ready", got["subject"])
	require.Equal(t, "<p>hi</p>", got["html"])
}

func TestResendSendErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid to field"}`))
	}))
	defer srv.Close()

	mailer := NewResendMailer(config.EmailConfig{Endpoint: srv.URL, APIKey: "re_key"})
	err := mailer.Send(context.Background(), "owner@example.com", "s", "h")
	require.ErrorContains(t, err, "Invalid to field")

	require.Error(t, NewResendMailer(config.EmailConfig{Endpoint: srv.URL}).Send(context.Background(), "a@b.c", "s", "h"))
	require.Error(t, mailer.Send(context.Background(), "", "s", "h"))
}
