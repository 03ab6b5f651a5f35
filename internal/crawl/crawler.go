// Package crawl implements the external collaborators the harness invokes
// through narrow interfaces: a test-mode crawl engine, a content fetcher,
// and a text extractor.
//
// The engine here is a reference implementation sufficient for fixture
// scenarios: it fetches the seeded feeds, discovers items (RSS entries for
// syndicated feeds, index links for web-page feeds), and writes stories,
// downloads, sentences, and tags into storage. It is not a production
// crawler; the harness only observes its completion.
package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/storycheck/storycheck/internal/record"
	"github.com/storycheck/storycheck/internal/store"
)

// Engine crawls the seeded feeds and writes results into storage.
type Engine struct {
	store    *store.Store
	tagSet   string
	client   *http.Client
	logger   *slog.Logger
	testMode bool
}

// NewEngine creates a crawl engine writing into st. Tags discovered on
// pages are filed under tagSet.
func NewEngine(st *store.Store, tagSet string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store:  st,
		tagSet: tagSet,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// SetTestMode makes extraction synchronous: sentences and tags are
// written during the crawl rather than deferred to a worker.
func (e *Engine) SetTestMode() {
	e.testMode = true
}

// Crawl runs to completion or context expiry. A cancelled context is not
// an error: the crawl simply stops, and whatever storage state exists at
// that point is what downstream comparison sees.
func (e *Engine) Crawl(ctx context.Context) error {
	feeds, err := e.store.Feeds(ctx)
	if err != nil {
		return fmt.Errorf("read seeded feeds: %w", err)
	}

	for _, feed := range feeds {
		if ctx.Err() != nil {
			e.logger.Warn("crawl stopped early", "reason", ctx.Err())
			return nil
		}

		switch feed.FeedType {
		case record.FeedSyndicated:
			err = e.crawlSyndicated(ctx, feed)
		case record.FeedWebPage:
			err = e.crawlWebPage(ctx, feed)
		default:
			err = fmt.Errorf("unknown feed type %q", feed.FeedType)
		}
		if err != nil {
			return fmt.Errorf("crawl feed %q: %w", feed.Name, err)
		}
	}
	return nil
}

// crawlSyndicated fetches an RSS feed and creates one story per entry.
func (e *Engine) crawlSyndicated(ctx context.Context, feed store.Feed) error {
	body, err := e.fetch(ctx, feed.URL)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}

	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return fmt.Errorf("parse feed: %w", err)
	}

	for _, item := range parsed.Items {
		if ctx.Err() != nil {
			return nil
		}

		var publishDate *string
		if item.PublishedParsed != nil {
			d := item.PublishedParsed.In(time.Local).Format(record.SQLDateLayout)
			publishDate = &d
		} else if item.Published != "" {
			t, perr := dateparse.ParseIn(item.Published, time.Local)
			if perr != nil {
				return fmt.Errorf("item %q: parse pubDate %q: %w", item.Title, item.Published, perr)
			}
			d := t.In(time.Local).Format(record.SQLDateLayout)
			publishDate = &d
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}

		err := e.harvestItem(ctx, feed, item.Link, item.Title, item.Description, publishDate, &guid)
		if err != nil {
			return err
		}
	}
	return nil
}

// crawlWebPage fetches the feed's index page and creates one story per
// linked page. Publish date and guid do not exist for plain pages, so
// they are generated at crawl time.
func (e *Engine) crawlWebPage(ctx context.Context, feed store.Feed) error {
	body, err := e.fetch(ctx, feed.URL)
	if err != nil {
		return fmt.Errorf("fetch index: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse index: %w", err)
	}

	type link struct{ href, text string }
	var links []link
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		links = append(links, link{href: href, text: strings.TrimSpace(sel.Text())})
	})

	crawlDate := time.Now().In(time.Local).Format(record.SQLDateLayout)
	for _, l := range links {
		if ctx.Err() != nil {
			return nil
		}
		guid := uuid.NewString()
		publishDate := crawlDate
		if err := e.harvestItem(ctx, feed, l.href, l.text, "", &publishDate, &guid); err != nil {
			return err
		}
	}
	return nil
}

// harvestItem fetches one discovered item and persists it. An empty page
// is a dead item: no story is created. A failed fetch creates the story
// with an errored download so verification can fail fast on it.
func (e *Engine) harvestItem(ctx context.Context, feed store.Feed, url, title, description string, publishDate, guid *string) error {
	content, fetchErr := e.fetch(ctx, url)
	if fetchErr == nil && strings.TrimSpace(content) == "" {
		e.logger.Info("skipping empty page", "url", url)
		return nil
	}

	// Web pages carry their own title; prefer it over the anchor text.
	if fetchErr == nil && feed.FeedType == record.FeedWebPage {
		if pageTitle, err := PageTitle(content); err == nil && pageTitle != "" {
			title = pageTitle
		}
	}

	storiesID, err := e.store.CreateStory(ctx, feed.MediaID, url, title, description, publishDate, guid)
	if err != nil {
		return err
	}
	if err := e.store.AddStoryToFeed(ctx, feed.FeedsID, storiesID); err != nil {
		return err
	}

	if fetchErr != nil {
		e.logger.Warn("download failed", "url", url, "error", fetchErr)
		_, err := e.store.CreateDownloadError(ctx, storiesID, url, fetchErr.Error())
		return err
	}

	if _, err := e.store.CreateDownload(ctx, storiesID, url, content); err != nil {
		return err
	}

	if e.testMode {
		return e.processStory(ctx, storiesID, url, content, publishDate)
	}
	return nil
}

// processStory performs the synchronous extraction pass: sentence
// segmentation plus keyword tagging.
func (e *Engine) processStory(ctx context.Context, storiesID int64, url, content string, publishDate *string) error {
	text, err := ArticleText(url, content)
	if err != nil {
		return fmt.Errorf("story %d: %w", storiesID, err)
	}

	for i, sentence := range SplitSentences(text) {
		if _, err := e.store.CreateSentence(ctx, storiesID, int64(i), sentence, publishDate); err != nil {
			return err
		}
	}

	keywords, err := PageKeywords(content)
	if err != nil {
		return fmt.Errorf("story %d: %w", storiesID, err)
	}
	if len(keywords) == 0 {
		return nil
	}

	tagSetsID, err := e.store.FindOrCreateTagSet(ctx, e.tagSet)
	if err != nil {
		return err
	}
	for _, kw := range keywords {
		tagsID, err := e.store.FindOrCreateTag(ctx, tagSetsID, kw)
		if err != nil {
			return err
		}
		if err := e.store.TagStory(ctx, storiesID, tagsID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request %q: %w", url, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %q: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", url, err)
	}
	return string(body), nil
}

// StoredContentFetcher resolves a download's content from the inline
// content column.
type StoredContentFetcher struct{}

// FetchContent returns the raw fetched text of a download.
func (StoredContentFetcher) FetchContent(_ context.Context, d *store.Download) (string, error) {
	if d.State != "success" {
		return "", fmt.Errorf("download %d for story %d is in state %q: %s",
			d.DownloadsID, d.StoriesID, d.State, d.ErrorMessage)
	}
	return d.Content, nil
}

// ReadabilityExtractor derives the word-count text of a story from its
// fetched content.
type ReadabilityExtractor struct{}

// TextForWordCounts extracts the readable text of a story's content.
func (ReadabilityExtractor) TextForWordCounts(_ context.Context, pageURL, content string) (string, error) {
	return ArticleText(pageURL, content)
}
