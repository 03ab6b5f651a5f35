package harness

import (
	"context"
	"fmt"

	"github.com/storycheck/storycheck/internal/record"
	"github.com/storycheck/storycheck/internal/store"
)

// ContentFetcher resolves the raw fetched text of a download.
type ContentFetcher interface {
	FetchContent(ctx context.Context, d *store.Download) (string, error)
}

// TextExtractor derives the word-count text of a story from its fetched
// content.
type TextExtractor interface {
	TextForWordCounts(ctx context.Context, pageURL, content string) (string, error)
}

// Aggregate reads the full storage-ordered story sequence for the current
// run, each populated with content (latest download), extracted text,
// tags restricted to tagSet, and the ordered sentence sequence.
//
// Aggregation is read-only. A story whose latest download cannot be
// resolved is an error: the caller must abort before comparison, because
// a crawl that failed to fetch content cannot be meaningfully compared.
func Aggregate(ctx context.Context, st *store.Store, fetcher ContentFetcher, extractor TextExtractor, tagSet string) ([]*record.Story, error) {
	rows, err := st.Stories(ctx)
	if err != nil {
		return nil, err
	}

	stories := make([]*record.Story, 0, len(rows))
	for _, row := range rows {
		feedType, err := st.FeedTypeForStory(ctx, row.StoriesID)
		if err != nil {
			return nil, err
		}

		download, err := st.LatestDownload(ctx, row.StoriesID)
		if err != nil {
			return nil, fmt.Errorf("story %q: %w", row.Title, err)
		}
		content, err := fetcher.FetchContent(ctx, download)
		if err != nil {
			return nil, fmt.Errorf("story %q: %w", row.Title, err)
		}

		text, err := extractor.TextForWordCounts(ctx, row.URL, content)
		if err != nil {
			return nil, fmt.Errorf("story %q: %w", row.Title, err)
		}

		tags, err := st.TagsForStory(ctx, row.StoriesID, tagSet)
		if err != nil {
			return nil, err
		}

		sentences, err := st.SentencesForStory(ctx, row.StoriesID)
		if err != nil {
			return nil, err
		}

		stories = append(stories, &record.Story{
			StoriesID:     row.StoriesID,
			URL:           row.URL,
			Title:         row.Title,
			Description:   row.Description,
			PublishDate:   row.PublishDate,
			GUID:          row.GUID,
			FeedType:      feedType,
			Content:       content,
			ExtractedText: text,
			Tags:          tags,
			Sentences:     sentences,
		})
	}

	return stories, nil
}
