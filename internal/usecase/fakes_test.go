package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
)

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []string
	opts    []ports.SearchOptions
	results func(query string) ([]domain.ResearchResult, error)
}

func (f *fakeSearcher) Search(ctx context.Context, query string, opts ports.SearchOptions) ([]domain.ResearchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.results == nil {
		return []domain.ResearchResult{{
			Title:   "Result for " + query,
			URL:     "https://example.com/" + strings.ReplaceAll(query, " ", "-"),
			Content: "content about " + query,
			Score:   0.5,
		}}, nil
	}
	return f.results(query)
}

func (f *fakeSearcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeGenerator struct {
	mu        sync.Mutex
	prompts   []string
	maxTokens []int
	reply     func(prompt string) (string, error)
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.maxTokens = append(f.maxTokens, maxTokens)
	f.mu.Unlock()
	return f.reply(prompt)
}

func (f *fakeGenerator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type sentMail struct {
	To, Subject, HTML string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail func(subject string) error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	if f.fail != nil {
		if err := f.fail(subject); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (f *fakeMailer) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Subject)
	}
	return out
}

type fakeInvalidator struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return f.err
}

type fakeAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeAlerter) Alert(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	ticks   []string
	failed  int
	actions []string
}

func (f *fakeMetrics) ObserveTick(action string, elapsed time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, action)
	if err != nil {
		f.failed++
	}
}

func (f *fakeMetrics) ObserveAction(action, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action+":"+result)
}

// stepStub stands in for the research, writing and publishing steps.
type stepStub struct {
	mu           sync.Mutex
	researchN    int
	writeN       int
	publishN     int
	researchErr  error
	writeErr     error
	publishErr   error
	topics       []domain.Topic
	draft        domain.DraftPost
	publishedFor []string
	afterPublish func()
}

func (s *stepStub) Research(ctx context.Context) ([]domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.researchN++
	if s.researchErr != nil {
		return nil, s.researchErr
	}
	return append([]domain.Topic(nil), s.topics...), nil
}

func (s *stepStub) Write(ctx context.Context, topic domain.Topic) (domain.DraftPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeN++
	if s.writeErr != nil {
		return domain.DraftPost{}, s.writeErr
	}
	d := s.draft
	if d.Title == "" {
		d = sampleDraft(topic.Title)
	}
	return d, nil
}

func (s *stepStub) Publish(ctx context.Context, runID string, draft domain.DraftPost) (PublishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishN++
	if s.publishErr != nil {
		return PublishResult{}, s.publishErr
	}
	s.publishedFor = append(s.publishedFor, runID)
	if s.afterPublish != nil {
		s.afterPublish()
	}
	return PublishResult{
		Post: domain.Post{ID: "post-" + runID, RunID: runID, Title: draft.Title, Slug: draft.Slug},
		URL:  "https://site.example/blog/" + draft.Slug,
	}, nil
}

func (s *stepStub) counts() (research, write, publish int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.researchN, s.writeN, s.publishN
}

var errBoom = errors.New("boom")

func sampleTopics() []domain.Topic {
	topics := make([]domain.Topic, 0, TopicCount)
	for i := 0; i < TopicCount; i++ {
		topics = append(topics, domain.Topic{
			Title:       fmt.Sprintf("Topic %d", i),
			Description: "First sentence. Second sentence.",
			Category:    domain.Categories[i%len(domain.Categories)],
			SearchQuery: fmt.Sprintf("query %d", i),
		})
	}
	return topics
}

func sampleDraft(title string) domain.DraftPost {
	return domain.DraftPost{
		Title:   title,
		Slug:    "ai-trends",
		Content: "<p>Intro</p><section><h2>One</h2><p>Body text here.</p></section>",
		Excerpt: "Short summary.",
		Tags:    []string{"ai", "trends"},
	}
}

func topicsJSON(topics []domain.Topic) string {
	raw, _ := json.Marshal(topics)
	return string(raw)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ctxRuns fails every call made with a finished context, like a database
// driver does.
type ctxRuns struct {
	ports.RunRepository
}

func (r ctxRuns) Find(ctx context.Context, filter ports.RunFilter) (*domain.WorkflowRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.RunRepository.Find(ctx, filter)
}

func (r ctxRuns) Update(ctx context.Context, id string, expect domain.RunStatus, patch domain.RunPatch) (domain.WorkflowRun, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkflowRun{}, err
	}
	return r.RunRepository.Update(ctx, id, expect, patch)
}

func (r ctxRuns) Release(ctx context.Context, id string, until *time.Time, lastErr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.RunRepository.Release(ctx, id, until, lastErr)
}

func (r ctxRuns) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.RunRepository.Delete(ctx, id)
}
