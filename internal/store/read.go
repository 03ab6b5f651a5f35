package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/storycheck/storycheck/internal/record"
)

// StoryRow is one stories-table row before content and sentences are
// attached by the aggregator.
type StoryRow struct {
	StoriesID   int64
	MediaID     int64
	URL         string
	Title       string
	Description string
	PublishDate *string
	GUID        *string
}

// Stories returns all stories produced by the crawl in storage order.
func (s *Store) Stories(ctx context.Context) ([]StoryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stories_id, media_id, url, title, description, publish_date, guid
		FROM stories
		ORDER BY stories_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}
	defer rows.Close()

	var stories []StoryRow
	for rows.Next() {
		var row StoryRow
		var publishDate, guid sql.NullString
		if err := rows.Scan(&row.StoriesID, &row.MediaID, &row.URL, &row.Title,
			&row.Description, &publishDate, &guid); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		if publishDate.Valid {
			row.PublishDate = &publishDate.String
		}
		if guid.Valid {
			row.GUID = &guid.String
		}
		stories = append(stories, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stories: %w", err)
	}
	return stories, nil
}

// FeedTypeForStory returns the feed type of the feed that discovered a
// story. A story discovered by multiple feeds takes the type of the
// earliest one.
func (s *Store) FeedTypeForStory(ctx context.Context, storiesID int64) (record.FeedType, error) {
	var feedType string
	err := s.db.QueryRowContext(ctx, `
		SELECT f.feed_type
		FROM feeds f
		JOIN feeds_stories_map fsm ON fsm.feeds_id = f.feeds_id
		WHERE fsm.stories_id = ?
		ORDER BY f.feeds_id ASC
		LIMIT 1
	`, storiesID).Scan(&feedType)
	if err != nil {
		return "", fmt.Errorf("feed type for story %d: %w", storiesID, err)
	}
	return record.FeedType(feedType), nil
}

// Download is one fetch attempt for a story.
type Download struct {
	DownloadsID  int64
	StoriesID    int64
	URL          string
	State        string
	ErrorMessage string
	Content      string
}

// LatestDownload returns the most recent download for a story, or
// sql.ErrNoRows if the story was never fetched.
func (s *Store) LatestDownload(ctx context.Context, storiesID int64) (*Download, error) {
	var d Download
	err := s.db.QueryRowContext(ctx, `
		SELECT downloads_id, stories_id, url, state, error_message, content
		FROM downloads
		WHERE stories_id = ?
		ORDER BY downloads_id DESC
		LIMIT 1
	`, storiesID).Scan(&d.DownloadsID, &d.StoriesID, &d.URL, &d.State, &d.ErrorMessage, &d.Content)
	if err != nil {
		return nil, fmt.Errorf("latest download for story %d: %w", storiesID, err)
	}
	return &d, nil
}

// ErroredDownloads returns every download left in an error state.
// A non-empty result makes the whole scenario unusable for comparison.
func (s *Store) ErroredDownloads(ctx context.Context) ([]Download, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT downloads_id, stories_id, url, state, error_message, content
		FROM downloads
		WHERE state = 'error'
		ORDER BY downloads_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query errored downloads: %w", err)
	}
	defer rows.Close()

	var downloads []Download
	for rows.Next() {
		var d Download
		if err := rows.Scan(&d.DownloadsID, &d.StoriesID, &d.URL, &d.State,
			&d.ErrorMessage, &d.Content); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		downloads = append(downloads, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate downloads: %w", err)
	}
	return downloads, nil
}

// SentencesForStory returns a story's sentences ordered by sentence number.
func (s *Store) SentencesForStory(ctx context.Context, storiesID int64) ([]record.Sentence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT story_sentences_id, stories_id, sentence_number, sentence, publish_date
		FROM story_sentences
		WHERE stories_id = ?
		ORDER BY sentence_number ASC
	`, storiesID)
	if err != nil {
		return nil, fmt.Errorf("query sentences for story %d: %w", storiesID, err)
	}
	defer rows.Close()

	var sentences []record.Sentence
	for rows.Next() {
		var sen record.Sentence
		var publishDate sql.NullString
		if err := rows.Scan(&sen.SentencesID, &sen.StoriesID, &sen.SentenceNumber,
			&sen.Sentence, &publishDate); err != nil {
			return nil, fmt.Errorf("scan sentence: %w", err)
		}
		if publishDate.Valid {
			sen.PublishDate = &publishDate.String
		}
		sentences = append(sentences, sen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sentences: %w", err)
	}
	return sentences, nil
}

// TagsForStory returns a story's tags restricted to one tag set, ordered
// by tag text for determinism. Only counts are compared downstream, but a
// stable order keeps fixture files diffable.
func (s *Store) TagsForStory(ctx context.Context, storiesID int64, tagSet string) ([]record.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.tag, ts.name
		FROM tags t
		JOIN tag_sets ts ON ts.tag_sets_id = t.tag_sets_id
		JOIN stories_tags_map stm ON stm.tags_id = t.tags_id
		WHERE stm.stories_id = ? AND ts.name = ?
		ORDER BY t.tag ASC
	`, storiesID, tagSet)
	if err != nil {
		return nil, fmt.Errorf("query tags for story %d: %w", storiesID, err)
	}
	defer rows.Close()

	var tags []record.Tag
	for rows.Next() {
		var t record.Tag
		if err := rows.Scan(&t.Tag, &t.TagSet); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}
