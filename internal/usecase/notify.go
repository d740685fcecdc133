package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"math"
	"strings"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
	"ContentPipeline/internal/token"
)

//go:embed templates/*.html
var emailTemplates embed.FS

const wordsPerMinute = 200

var categoryColors = map[domain.Category]string{
	domain.CategoryAI:   "#6366f1",
	domain.CategoryIoT:  "#0891b2",
	domain.CategoryARVR: "#7c3aed",
}

// NotifierConfig carries the addressing details for workflow emails.
type NotifierConfig struct {
	To          string
	SiteURL     string
	Publication string
	NextCycle   string
}

type topicCard struct {
	Topic     domain.Topic
	SelectURL string
}

// Notifier renders and sends the emails that gate the workflow.
type Notifier struct {
	mailer ports.Mailer
	cfg    NotifierConfig
	tmpl   *template.Template
}

// NewNotifier parses the embedded templates.
func NewNotifier(mailer ports.Mailer, cfg NotifierConfig) (*Notifier, error) {
	tmpl, err := template.New("email").Funcs(template.FuncMap{
		"join": strings.Join,
		"categoryColor": func(c domain.Category) string {
			if color, ok := categoryColors[c]; ok {
				return color
			}
			return "#6b7280"
		},
	}).ParseFS(emailTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Notifier{mailer: mailer, cfg: cfg, tmpl: tmpl}, nil
}

// SendTopics mails the topic-selection email for run.
func (n *Notifier) SendTopics(ctx context.Context, run domain.WorkflowRun) error {
	if len(run.Topics) == 0 {
		return fmt.Errorf("run %s has no topics to send", run.ID)
	}
	cards := make([]topicCard, 0, len(run.Topics))
	for i, topic := range run.Topics {
		cards = append(cards, topicCard{
			Topic:     topic,
			SelectURL: token.ActionURL(n.cfg.SiteURL, run.ApprovalToken, token.ActionSelect, i),
		})
	}

	html, err := render(n.tmpl, "topics.html", map[string]any{
		"Publication": n.cfg.Publication,
		"Cards":       cards,
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%d cutting-edge tech topics ready for your approval", len(run.Topics))
	return n.send(ctx, subject, html)
}

// SendDraft mails the draft-review email with preview and approve links.
func (n *Notifier) SendDraft(ctx context.Context, run domain.WorkflowRun, draft domain.DraftPost) error {
	words := len(strings.Fields(plainText(draft.Content)))
	html, err := render(n.tmpl, "draft.html", map[string]any{
		"Publication": n.cfg.Publication,
		"Draft":       draft,
		"Words":       words,
		"ReadMinutes": int(math.Ceil(float64(words) / wordsPerMinute)),
		"PreviewURL":  token.PreviewURL(n.cfg.SiteURL, run.ApprovalToken),
		"ApproveURL":  token.ActionURL(n.cfg.SiteURL, run.ApprovalToken, token.ActionApprove, 0),
	})
	if err != nil {
		return err
	}
	return n.send(ctx, "Draft ready: "+draft.Title, html)
}

// SendPublished mails the publication confirmation.
func (n *Notifier) SendPublished(ctx context.Context, title, url string) error {
	html, err := render(n.tmpl, "published.html", map[string]any{
		"Title":     title,
		"URL":       url,
		"NextCycle": n.cfg.NextCycle,
	})
	if err != nil {
		return err
	}
	return n.send(ctx, "Published: "+title, html)
}

func (n *Notifier) send(ctx context.Context, subject, html string) error {
	if err := n.mailer.Send(ctx, n.cfg.To, subject, html); err != nil {
		return fmt.Errorf("send %q: %w", subject, err)
	}
	return nil
}

func render(tmpl *template.Template, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
