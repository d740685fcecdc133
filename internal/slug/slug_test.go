package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"AI Trends in 2025":             "ai-trends-in-2025",
		"  Café   Résumé  ":             "cafe-resume",
		"AR/VR: the next wave!":         "arvr-the-next-wave",
		"already-a-slug":                "already-a-slug",
		"multiple---hyphens -- here":    "multiple-hyphens-here",
		"":                              "",
		"¿¡!!":                          "",
		"Edge AI — Robotics & Sensors ": "edge-ai-robotics-sensors",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestSlugifyTruncates(t *testing.T) {
	t.Parallel()

	got := Slugify(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(got), MaxLength)
	assert.False(t, strings.HasSuffix(got, "-"))
}

func TestMakeUnique(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ai-trends", MakeUnique("ai-trends", nil))
	assert.Equal(t, "ai-trends-2", MakeUnique("ai-trends", []string{"ai-trends"}))
	assert.Equal(t, "ai-trends-3", MakeUnique("ai-trends", []string{"ai-trends", "ai-trends-2"}))
	assert.Equal(t, "ai-trends-2", MakeUnique("ai-trends", []string{"ai-trends", "ai-trends-3"}))
}
