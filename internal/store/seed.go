package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/storycheck/storycheck/internal/record"
)

// Seeding helpers. The harness uses these to provision a media source and
// its feeds before a crawl; the crawl engine uses them to write stories,
// downloads, sentences, and tags.

// CreateMedium inserts a media source and returns its id.
func (s *Store) CreateMedium(ctx context.Context, name, url string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO media (name, url) VALUES (?, ?)`, name, url)
	if err != nil {
		return 0, fmt.Errorf("create medium %q: %w", name, err)
	}
	return res.LastInsertId()
}

// CreateFeed inserts a feed belonging to a medium and returns its id.
func (s *Store) CreateFeed(ctx context.Context, mediaID int64, name, url string, feedType record.FeedType) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feeds (media_id, name, url, feed_type) VALUES (?, ?, ?, ?)`,
		mediaID, name, url, string(feedType))
	if err != nil {
		return 0, fmt.Errorf("create feed %q: %w", name, err)
	}
	return res.LastInsertId()
}

// Feed is one seeded crawl entry point.
type Feed struct {
	FeedsID  int64
	MediaID  int64
	Name     string
	URL      string
	FeedType record.FeedType
}

// Feeds returns all seeded feeds in storage order.
func (s *Store) Feeds(ctx context.Context) ([]Feed, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT feeds_id, media_id, name, url, feed_type
		FROM feeds
		ORDER BY feeds_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var f Feed
		var feedType string
		if err := rows.Scan(&f.FeedsID, &f.MediaID, &f.Name, &f.URL, &feedType); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		f.FeedType = record.FeedType(feedType)
		feeds = append(feeds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}
	return feeds, nil
}

// CreateStory inserts a story and returns its storage-assigned id.
// publishDate and guid may be nil for web-page stories created before the
// crawl stamps them.
func (s *Store) CreateStory(ctx context.Context, mediaID int64, url, title, description string, publishDate, guid *string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO stories (media_id, url, guid, title, description, publish_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, mediaID, url, nullable(guid), title, description, nullable(publishDate))
	if err != nil {
		return 0, fmt.Errorf("create story %q: %w", title, err)
	}
	return res.LastInsertId()
}

// AddStoryToFeed records which feed discovered a story.
func (s *Store) AddStoryToFeed(ctx context.Context, feedsID, storiesID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO feeds_stories_map (feeds_id, stories_id) VALUES (?, ?)
	`, feedsID, storiesID)
	if err != nil {
		return fmt.Errorf("map story %d to feed %d: %w", storiesID, feedsID, err)
	}
	return nil
}

// CreateDownload records a successful fetch for a story.
func (s *Store) CreateDownload(ctx context.Context, storiesID int64, url, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (stories_id, url, state, content) VALUES (?, ?, 'success', ?)
	`, storiesID, url, content)
	if err != nil {
		return 0, fmt.Errorf("create download for story %d: %w", storiesID, err)
	}
	return res.LastInsertId()
}

// CreateDownloadError records a failed fetch for a story.
func (s *Store) CreateDownloadError(ctx context.Context, storiesID int64, url, message string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (stories_id, url, state, error_message) VALUES (?, ?, 'error', ?)
	`, storiesID, url, message)
	if err != nil {
		return 0, fmt.Errorf("create errored download for story %d: %w", storiesID, err)
	}
	return res.LastInsertId()
}

// CreateSentence inserts one segmented sentence for a story.
func (s *Store) CreateSentence(ctx context.Context, storiesID, number int64, sentence string, publishDate *string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO story_sentences (stories_id, sentence_number, sentence, publish_date)
		VALUES (?, ?, ?, ?)
	`, storiesID, number, sentence, nullable(publishDate))
	if err != nil {
		return 0, fmt.Errorf("create sentence %d for story %d: %w", number, storiesID, err)
	}
	return res.LastInsertId()
}

// FindOrCreateTagSet returns the id of the named tag set, creating it if
// needed.
func (s *Store) FindOrCreateTagSet(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT tag_sets_id FROM tag_sets WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("find tag set %q: %w", name, err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO tag_sets (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("create tag set %q: %w", name, err)
	}
	return res.LastInsertId()
}

// FindOrCreateTag returns the id of a tag within a tag set, creating it if
// needed.
func (s *Store) FindOrCreateTag(ctx context.Context, tagSetsID int64, tag string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT tags_id FROM tags WHERE tag_sets_id = ? AND tag = ?`, tagSetsID, tag).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("find tag %q: %w", tag, err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (tag_sets_id, tag) VALUES (?, ?)`, tagSetsID, tag)
	if err != nil {
		return 0, fmt.Errorf("create tag %q: %w", tag, err)
	}
	return res.LastInsertId()
}

// TagStory attaches a tag to a story.
func (s *Store) TagStory(ctx context.Context, storiesID, tagsID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO stories_tags_map (stories_id, tags_id) VALUES (?, ?)
	`, storiesID, tagsID)
	if err != nil {
		return fmt.Errorf("tag story %d with tag %d: %w", storiesID, tagsID, err)
	}
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
