package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"ContentPipeline/internal/domain"
)

// DecodeErrorKind classifies why model output was rejected.
type DecodeErrorKind string

const (
	DecodeNoJSON       DecodeErrorKind = "no-json"
	DecodeMalformed    DecodeErrorKind = "malformed"
	DecodeWrongCount   DecodeErrorKind = "wrong-count"
	DecodeMissingField DecodeErrorKind = "missing-field"
)

// DecodeError is the only failure shape of the model-output decoders.
type DecodeError struct {
	Kind   DecodeErrorKind
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode model output: %s: %s", e.Kind, e.Detail)
}

// Greedy on purpose: from the first opening bracket to the last closing one.
var (
	jsonArrayExpr  = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectExpr = regexp.MustCompile(`(?s)\{.*\}`)
)

type rawTopic struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	SearchQuery *string `json:"searchQuery"`
}

// decodeTopics extracts the first JSON array and returns exactly want topics.
// Categories outside the vocabulary fall back to domain.DefaultCategory.
func decodeTopics(text string, want int) ([]domain.Topic, error) {
	raw := jsonArrayExpr.FindString(text)
	if raw == "" {
		return nil, &DecodeError{Kind: DecodeNoJSON, Detail: "response contains no JSON array"}
	}

	var items []rawTopic
	if err := strictUnmarshal(raw, &items); err != nil {
		return nil, &DecodeError{Kind: DecodeMalformed, Detail: err.Error()}
	}
	if len(items) != want {
		return nil, &DecodeError{Kind: DecodeWrongCount, Detail: fmt.Sprintf("expected %d topics, got %d", want, len(items))}
	}

	topics := make([]domain.Topic, 0, len(items))
	for i, item := range items {
		fields := map[string]*string{
			"title":       item.Title,
			"description": item.Description,
			"category":    item.Category,
			"searchQuery": item.SearchQuery,
		}
		if name := firstBlank(fields, "title", "description", "category", "searchQuery"); name != "" {
			return nil, &DecodeError{Kind: DecodeMissingField, Detail: fmt.Sprintf("topic[%d] missing %s", i, name)}
		}
		topics = append(topics, domain.Topic{
			Title:       strings.TrimSpace(*item.Title),
			Description: strings.TrimSpace(*item.Description),
			Category:    domain.ParseCategory(*item.Category),
			SearchQuery: strings.TrimSpace(*item.SearchQuery),
		})
	}
	return topics, nil
}

type rawDraft struct {
	Title   *string  `json:"title"`
	Slug    *string  `json:"slug"`
	Excerpt *string  `json:"excerpt"`
	Content *string  `json:"content"`
	Tags    []string `json:"tags"`
}

// decodeDraft extracts the first JSON object and requires title, slug,
// excerpt and content. Tags are optional here; the writer fills a fallback.
func decodeDraft(text string) (domain.DraftPost, error) {
	raw := jsonObjectExpr.FindString(text)
	if raw == "" {
		return domain.DraftPost{}, &DecodeError{Kind: DecodeNoJSON, Detail: "response contains no JSON object"}
	}

	var item rawDraft
	if err := strictUnmarshal(raw, &item); err != nil {
		return domain.DraftPost{}, &DecodeError{Kind: DecodeMalformed, Detail: err.Error()}
	}

	fields := map[string]*string{
		"title":   item.Title,
		"slug":    item.Slug,
		"excerpt": item.Excerpt,
		"content": item.Content,
	}
	if name := firstBlank(fields, "title", "slug", "excerpt", "content"); name != "" {
		return domain.DraftPost{}, &DecodeError{Kind: DecodeMissingField, Detail: "draft missing " + name}
	}

	return domain.DraftPost{
		Title:   strings.TrimSpace(*item.Title),
		Slug:    strings.TrimSpace(*item.Slug),
		Excerpt: strings.TrimSpace(*item.Excerpt),
		Content: strings.TrimSpace(*item.Content),
		Tags:    item.Tags,
	}, nil
}

// strictUnmarshal rejects trailing data after the first JSON value.
func strictUnmarshal(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

func firstBlank(fields map[string]*string, order ...string) string {
	for _, name := range order {
		if v := fields[name]; v == nil || strings.TrimSpace(*v) == "" {
			return name
		}
	}
	return ""
}
