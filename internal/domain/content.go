package domain

import (
	"strings"
	"time"
)

// Category is the editorial vertical of a topic.
type Category string

const (
	CategoryAI   Category = "AI"
	CategoryIoT  Category = "IoT"
	CategoryARVR Category = "AR/VR"

	// DefaultCategory replaces any value outside the vocabulary.
	DefaultCategory = CategoryAI
)

// Categories lists the accepted vocabulary in display order.
var Categories = []Category{CategoryAI, CategoryIoT, CategoryARVR}

// ParseCategory maps free text onto the vocabulary, falling back to DefaultCategory.
func ParseCategory(value string) Category {
	value = strings.TrimSpace(value)
	for _, c := range Categories {
		if strings.EqualFold(value, string(c)) {
			return c
		}
	}
	return DefaultCategory
}

// Tag renders the category as a lowercase hyphenated tag ("AR/VR" → "ar-vr").
func (c Category) Tag() string {
	return strings.ReplaceAll(strings.ToLower(string(c)), "/", "-")
}

// Topic is a candidate subject produced by the research step.
type Topic struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	SearchQuery string   `json:"searchQuery"`
}

// DraftPost is the generated article awaiting approval.
type DraftPost struct {
	Title   string   `json:"title"`
	Slug    string   `json:"slug"`
	Content string   `json:"content"`
	Excerpt string   `json:"excerpt"`
	Tags    []string `json:"tags"`
}

func (d *DraftPost) clone() *DraftPost {
	if d == nil {
		return nil
	}
	out := *d
	out.Tags = append([]string(nil), d.Tags...)
	return &out
}

// PostStatus is the visibility of a content record.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
)

// Post is a content record in the live store.
type Post struct {
	ID          string
	RunID       string
	Title       string
	Slug        string
	Content     string
	Excerpt     string
	Tags        []string
	Status      PostStatus
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// ResearchResult is one web search hit. It only feeds prompts and is never stored.
type ResearchResult struct {
	Title   string
	URL     string
	Content string
	Score   float64
}
