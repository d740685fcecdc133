package token

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	seen := map[string]struct{}{}
	for i := 0; i < 64; i++ {
		tok, err := Generate()
		require.NoError(t, err)
		assert.Len(t, tok, Length)
		assert.True(t, WellFormed(tok), "token %q should be well formed", tok)
		_, dup := seen[tok]
		assert.False(t, dup, "duplicate token %q", tok)
		seen[tok] = struct{}{}
	}
}

func TestWellFormedRejectsGarbage(t *testing.T) {
	t.Parallel()

	assert.False(t, WellFormed(""))
	assert.False(t, WellFormed("short"))
	assert.False(t, WellFormed("!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!"))
}

func TestActionURL(t *testing.T) {
	t.Parallel()

	raw := ActionURL("https://blog.example.com/", "tok123", ActionSelect, 3)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "blog.example.com", u.Host)
	assert.Equal(t, ActionPath, u.Path)
	assert.Equal(t, "tok123", u.Query().Get("token"))
	assert.Equal(t, "select", u.Query().Get("action"))
	assert.Equal(t, "3", u.Query().Get("topic"))

	approve, err := url.Parse(ActionURL("https://blog.example.com", "tok123", ActionApprove, 0))
	require.NoError(t, err)
	assert.False(t, approve.Query().Has("topic"))
}

func TestPreviewURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://x.test/draft-preview/abc", PreviewURL("https://x.test/", "abc"))
}
