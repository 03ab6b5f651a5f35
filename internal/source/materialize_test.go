package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storycheck/storycheck/internal/record"
)

func materializeTestSpec(t *testing.T) (spec *Spec, dir string) {
	t.Helper()
	spec = &Spec{
		Name:   "test source",
		Medium: "Test Medium",
		TagSet: "test",
		Items: []Item{
			{
				Title:       "Bridge reopens",
				Path:        "/stories/bridge",
				Feed:        string(record.FeedSyndicated),
				Description: "the bridge is back",
				PublishDate: "2026-03-02 08:15:00",
				GUID:        "guid-1",
				Tags:        []string{"transport", "infrastructure"},
				Body:        "First paragraph.\n\nSecond paragraph.",
			},
			{
				Title: "Allotment notes",
				Path:  "/pages/allotment",
				Feed:  string(record.FeedWebPage),
				Body:  "Radishes came up.",
			},
			{
				Title: "Dead item",
				Path:  "/pages/dead",
				Feed:  string(record.FeedWebPage),
				Body:  "",
			},
		},
	}
	dir = t.TempDir()
	require.NoError(t, Materialize(spec, dir, "http://127.0.0.1:4000/"))
	return spec, dir
}

func TestMaterialize_Pages(t *testing.T) {
	_, dir := materializeTestSpec(t)

	page, err := os.ReadFile(filepath.Join(dir, "stories", "bridge"))
	require.NoError(t, err)
	html := string(page)

	assert.Contains(t, html, "<title>Bridge reopens</title>")
	assert.Contains(t, html, `<meta name="keywords" content="transport,infrastructure">`)
	assert.Contains(t, html, "<p>First paragraph.</p>")
	assert.Contains(t, html, "<p>Second paragraph.</p>")
}

func TestMaterialize_EmptyBodyProducesEmptyFile(t *testing.T) {
	_, dir := materializeTestSpec(t)

	page, err := os.ReadFile(filepath.Join(dir, "pages", "dead"))
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMaterialize_NoKeywordsMetaWithoutTags(t *testing.T) {
	_, dir := materializeTestSpec(t)

	page, err := os.ReadFile(filepath.Join(dir, "pages", "allotment"))
	require.NoError(t, err)
	assert.NotContains(t, string(page), "keywords")
}

func TestMaterialize_Feed(t *testing.T) {
	_, dir := materializeTestSpec(t)

	feed, err := os.ReadFile(filepath.Join(dir, "feed.xml"))
	require.NoError(t, err)
	body := string(feed)

	assert.True(t, strings.HasPrefix(body, "<?xml"))
	assert.Contains(t, body, "<title>Bridge reopens</title>")
	assert.Contains(t, body, "<link>http://127.0.0.1:4000/stories/bridge</link>")
	assert.Contains(t, body, "<guid>guid-1</guid>")
	// Only syndicated items enter the feed.
	assert.NotContains(t, body, "Allotment notes")

	// The declared publish date round-trips through the RFC1123Z pubDate.
	want, err := time.ParseInLocation(record.SQLDateLayout, "2026-03-02 08:15:00", time.Local)
	require.NoError(t, err)
	assert.Contains(t, body, "<pubDate>"+want.Format(time.RFC1123Z)+"</pubDate>")
}

func TestMaterialize_Index(t *testing.T) {
	_, dir := materializeTestSpec(t)

	index, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	body := string(index)

	assert.Contains(t, body, `<a href="http://127.0.0.1:4000/pages/allotment">Allotment notes</a>`)
	// The dead item is still linked; the crawl discovers and skips it.
	assert.Contains(t, body, `<a href="http://127.0.0.1:4000/pages/dead">Dead item</a>`)
	// Syndicated items are discovered through the feed, not the index.
	assert.NotContains(t, body, "Bridge reopens")
}
