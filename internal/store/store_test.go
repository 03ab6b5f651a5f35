package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storycheck/storycheck/internal/record"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "crawl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen_AppliesSchema(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// A freshly opened store has its tables and no content.
	stories, err := st.Stories(ctx)
	require.NoError(t, err)
	assert.Empty(t, stories)

	feeds, err := st.Feeds(ctx)
	require.NoError(t, err)
	assert.Empty(t, feeds)
}

func TestSeedMediumAndFeeds(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	mediaID, err := st.CreateMedium(ctx, "Example Gazette", "http://127.0.0.1:4000")
	require.NoError(t, err)

	_, err = st.CreateFeed(ctx, mediaID, "gazette feed", "http://127.0.0.1:4000/feed.xml", record.FeedSyndicated)
	require.NoError(t, err)
	_, err = st.CreateFeed(ctx, mediaID, "gazette pages", "http://127.0.0.1:4000/index.html", record.FeedWebPage)
	require.NoError(t, err)

	feeds, err := st.Feeds(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, record.FeedSyndicated, feeds[0].FeedType)
	assert.Equal(t, record.FeedWebPage, feeds[1].FeedType)
	assert.Equal(t, mediaID, feeds[0].MediaID)
}

func TestStoryLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	mediaID, err := st.CreateMedium(ctx, "m", "http://127.0.0.1:4000")
	require.NoError(t, err)
	feedsID, err := st.CreateFeed(ctx, mediaID, "f", "http://127.0.0.1:4000/feed.xml", record.FeedSyndicated)
	require.NoError(t, err)

	publishDate := "2026-03-02 08:15:00"
	guid := "guid-1"
	storiesID, err := st.CreateStory(ctx, mediaID, "http://127.0.0.1:4000/a", "A", "desc", &publishDate, &guid)
	require.NoError(t, err)
	require.NoError(t, st.AddStoryToFeed(ctx, feedsID, storiesID))

	stories, err := st.Stories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "A", stories[0].Title)
	require.NotNil(t, stories[0].PublishDate)
	assert.Equal(t, publishDate, *stories[0].PublishDate)

	feedType, err := st.FeedTypeForStory(ctx, storiesID)
	require.NoError(t, err)
	assert.Equal(t, record.FeedSyndicated, feedType)
}

func TestCreateStory_NullOptionals(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	mediaID, err := st.CreateMedium(ctx, "m", "u")
	require.NoError(t, err)
	storiesID, err := st.CreateStory(ctx, mediaID, "http://127.0.0.1:4000/p", "P", "", nil, nil)
	require.NoError(t, err)

	stories, err := st.Stories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, storiesID, stories[0].StoriesID)
	assert.Nil(t, stories[0].PublishDate)
	assert.Nil(t, stories[0].GUID)
}

func TestDownloads(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	mediaID, err := st.CreateMedium(ctx, "m", "u")
	require.NoError(t, err)
	okStory, err := st.CreateStory(ctx, mediaID, "http://h/ok", "ok", "", nil, nil)
	require.NoError(t, err)
	badStory, err := st.CreateStory(ctx, mediaID, "http://h/bad", "bad", "", nil, nil)
	require.NoError(t, err)

	_, err = st.CreateDownload(ctx, okStory, "http://h/ok", "first fetch")
	require.NoError(t, err)
	_, err = st.CreateDownload(ctx, okStory, "http://h/ok", "second fetch")
	require.NoError(t, err)
	_, err = st.CreateDownloadError(ctx, badStory, "http://h/bad", "status 404")
	require.NoError(t, err)

	latest, err := st.LatestDownload(ctx, okStory)
	require.NoError(t, err)
	assert.Equal(t, "success", latest.State)
	assert.Equal(t, "second fetch", latest.Content)

	errored, err := st.ErroredDownloads(ctx)
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, badStory, errored[0].StoriesID)
	assert.Equal(t, "status 404", errored[0].ErrorMessage)
}

func TestSentences_OrderedByNumber(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	mediaID, err := st.CreateMedium(ctx, "m", "u")
	require.NoError(t, err)
	storiesID, err := st.CreateStory(ctx, mediaID, "http://h/s", "s", "", nil, nil)
	require.NoError(t, err)

	publishDate := "2026-03-02 08:15:00"
	// Inserted out of order on purpose.
	_, err = st.CreateSentence(ctx, storiesID, 2, "Third.", &publishDate)
	require.NoError(t, err)
	_, err = st.CreateSentence(ctx, storiesID, 0, "First.", &publishDate)
	require.NoError(t, err)
	_, err = st.CreateSentence(ctx, storiesID, 1, "Second.", &publishDate)
	require.NoError(t, err)

	sens, err := st.SentencesForStory(ctx, storiesID)
	require.NoError(t, err)
	require.Len(t, sens, 3)
	assert.Equal(t, "First.", sens[0].Sentence)
	assert.Equal(t, "Second.", sens[1].Sentence)
	assert.Equal(t, "Third.", sens[2].Sentence)
	assert.Equal(t, storiesID, sens[0].StoriesID)
}

func TestTags_RestrictedToTagSet(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	mediaID, err := st.CreateMedium(ctx, "m", "u")
	require.NoError(t, err)
	storiesID, err := st.CreateStory(ctx, mediaID, "http://h/t", "t", "", nil, nil)
	require.NoError(t, err)

	gazette, err := st.FindOrCreateTagSet(ctx, "gazette")
	require.NoError(t, err)
	other, err := st.FindOrCreateTagSet(ctx, "other")
	require.NoError(t, err)

	transport, err := st.FindOrCreateTag(ctx, gazette, "transport")
	require.NoError(t, err)
	noise, err := st.FindOrCreateTag(ctx, other, "noise")
	require.NoError(t, err)

	require.NoError(t, st.TagStory(ctx, storiesID, transport))
	require.NoError(t, st.TagStory(ctx, storiesID, noise))
	// Re-tagging is a no-op, not an error.
	require.NoError(t, st.TagStory(ctx, storiesID, transport))

	tags, err := st.TagsForStory(ctx, storiesID, "gazette")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, record.Tag{Tag: "transport", TagSet: "gazette"}, tags[0])
}

func TestFindOrCreate_Idempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	first, err := st.FindOrCreateTagSet(ctx, "gazette")
	require.NoError(t, err)
	second, err := st.FindOrCreateTagSet(ctx, "gazette")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	tagFirst, err := st.FindOrCreateTag(ctx, first, "transport")
	require.NoError(t, err)
	tagSecond, err := st.FindOrCreateTag(ctx, first, "transport")
	require.NoError(t, err)
	assert.Equal(t, tagFirst, tagSecond)
}
