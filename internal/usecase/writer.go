package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
	"ContentPipeline/internal/slug"
)

const (
	writerMaxResults   = 7
	writerContextLimit = 15
	writerSnippetChars = 1200
	writerMaxTokens    = 8000
	maxTags            = 5
)

// Writer turns a selected topic into a full HTML draft.
type Writer struct {
	searcher      ports.Searcher
	generator     ports.Generator
	searchTimeout time.Duration
	publication   string
	logger        *slog.Logger
}

// NewWriter wires the writing step.
func NewWriter(searcher ports.Searcher, generator ports.Generator, searchTimeout time.Duration, publication string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{
		searcher:      searcher,
		generator:     generator,
		searchTimeout: searchTimeout,
		publication:   publication,
		logger:        logger,
	}
}

// WriterQueries returns the four searches issued for a topic.
func WriterQueries(topic domain.Topic) []string {
	return []string{
		topic.SearchQuery,
		topic.Title + " technical deep dive explained",
		topic.Title + " real world examples case studies",
		topic.Title + " future implications industry impact",
	}
}

// Write researches the topic and returns a normalized draft.
func (w *Writer) Write(ctx context.Context, topic domain.Topic) (domain.DraftPost, error) {
	results, err := ParallelSearch(ctx, w.searcher, WriterQueries(topic), ports.SearchOptions{
		MaxResults: writerMaxResults,
		Depth:      ports.DepthAdvanced,
	}, w.searchTimeout, w.logger)
	if err != nil {
		return domain.DraftPost{}, fmt.Errorf("writer search: %w", err)
	}
	w.logger.Debug("gathered writer sources", "topic", topic.Title, "count", len(results))

	researchContext := formatResearchContext(results, writerContextLimit, writerSnippetChars,
		func(i int, res domain.ResearchResult) string {
			return fmt.Sprintf("[Source %d: %s]", i+1, res.Title)
		})

	text, err := w.generator.Complete(ctx, w.prompt(topic, researchContext), writerMaxTokens)
	if err != nil {
		return domain.DraftPost{}, fmt.Errorf("write draft: %w", err)
	}

	draft, err := decodeDraft(text)
	if err != nil {
		return domain.DraftPost{}, err
	}

	draft.Slug = slug.Slugify(draft.Slug)
	if draft.Slug == "" {
		draft.Slug = slug.Slugify(draft.Title)
	}
	if draft.Slug == "" {
		return domain.DraftPost{}, &DecodeError{Kind: DecodeMissingField, Detail: "draft slug is empty after normalization"}
	}

	draft.Tags = normalizeTags(draft.Tags, topic.Category)

	draft.Content, err = normalizeBody(draft.Content)
	if err != nil {
		return domain.DraftPost{}, err
	}

	w.logger.Debug("draft complete", "title", draft.Title, "slug", draft.Slug)
	return draft, nil
}

func (w *Writer) prompt(topic domain.Topic, researchContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior technology writer for %q, a respected tech blog covering AI, IoT, and AR/VR.\n\n", w.publication)
	b.WriteString("Write a comprehensive, engaging blog post based on this brief and research.\n\n")
	b.WriteString("TOPIC BRIEF:\n")
	fmt.Fprintf(&b, "Title: %s\nCategory: %s\nDescription: %s\n\n", topic.Title, topic.Category, topic.Description)
	b.WriteString("RESEARCH MATERIAL:\n")
	b.WriteString(researchContext)
	b.WriteString(`

WRITING REQUIREMENTS:
- Length: 1500-2500 words
- Tone: authoritative but accessible
- Structure: intro paragraph, 4-6 H2 sections, conclusion
- Cite sources naturally and include concrete examples

OUTPUT: Return ONLY valid JSON with exactly these fields (no markdown wrapper):
{"title": "...", "slug": "url-safe-kebab-case-slug", "excerpt": "2-3 sentence summary", "tags": ["tag1", "tag2", "tag3"], "content": "<p>...</p>"}

CONTENT FIELD REQUIREMENTS:
- Valid HTML only (not markdown)
- Use <h2> for main sections, <h3> for subsections
- Use <p> for paragraphs, <ul>/<li> for lists, <strong> for emphasis
- Wrap each H2 section in <section> tags
- Do NOT include <html>, <head>, <body>, or <article> tags
- Start directly with the intro <p> tag

TAGS: 3-5 lowercase tags with hyphens
SLUG: lowercase, hyphens only, 3-8 words max`)
	return b.String()
}

// normalizeTags slugifies, deduplicates and caps tags, falling back to the
// topic category when none survive.
func normalizeTags(tags []string, category domain.Category) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, maxTags)
	for _, tag := range tags {
		t := slug.Slugify(tag)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, category.Tag())
	}
	return out
}

// normalizeBody strips document wrappers and scripts from generated HTML and
// checks that the body is sectioned by <h2> headings.
func normalizeBody(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", &DecodeError{Kind: DecodeMalformed, Detail: "parse draft html: " + err.Error()}
	}

	doc.Find("script, style, head").Remove()
	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithSelection(s.Contents())
	})

	body := doc.Find("body")
	if strings.TrimSpace(body.Text()) == "" {
		return "", &DecodeError{Kind: DecodeMissingField, Detail: "draft content has no text"}
	}
	if body.Find("h2").Length() == 0 {
		return "", &DecodeError{Kind: DecodeMissingField, Detail: "draft content has no <h2> sections"}
	}

	html, err := body.Html()
	if err != nil {
		return "", &DecodeError{Kind: DecodeMalformed, Detail: "render draft html: " + err.Error()}
	}
	return strings.TrimSpace(html), nil
}

// plainText extracts visible text from an HTML fragment.
func plainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
