// Package harness verifies that a crawl of a fixed, fixture-backed web
// source reproduces a previously recorded set of stories.
//
// A scenario run provisions isolated storage and a local fixture HTTP
// server, seeds the crawl target, invokes the crawl through a narrow
// interface, and then either records the aggregated output as golden
// fixtures or verifies it against them. Volatile per-run identifiers and
// recording-timezone differences are normalized away before comparison;
// everything else is asserted field by field.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/storycheck/storycheck/internal/record"
	"github.com/storycheck/storycheck/internal/serve"
	"github.com/storycheck/storycheck/internal/source"
	"github.com/storycheck/storycheck/internal/store"
)

// Engine is the narrow crawl-engine contract: the harness configures
// test mode, invokes the crawl, and observes only its completion.
type Engine interface {
	SetTestMode()
	Crawl(ctx context.Context) error
}

// Collaborators are the external components a scenario run invokes.
type Collaborators struct {
	// NewEngine builds a crawl engine writing into the scenario's
	// isolated store, tagging into tagSet.
	NewEngine func(st *store.Store, tagSet string) Engine

	// Fetcher resolves fetched content from download records.
	Fetcher ContentFetcher

	// Extractor derives word-count text from fetched content.
	Extractor TextExtractor
}

// Config carries the run-independent harness settings.
type Config struct {
	// FixtureDir is the root of the golden datasets.
	FixtureDir string

	// Logger receives harness progress; nil discards it.
	Logger *slog.Logger
}

// RunScenario executes one scenario end to end and returns its result.
// Fatal conditions (storage provisioning, errored downloads, unloadable
// fixtures, duplicate url keys, fixture write failures) are returned as
// errors with the underlying payload; field mismatches are accumulated
// on the result and never abort the run.
func RunScenario(ctx context.Context, scn Scenario, mode RunMode, cfg Config, collab Collaborators) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	result := NewResult(scn.Name, mode)

	// Isolated per-scenario scratch space: database plus materialized
	// content tree. Cleaned up on all exit paths.
	workDir, err := os.MkdirTemp("", "storycheck-"+scn.Name+"-*")
	if err != nil {
		return nil, fmt.Errorf("provision scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	st, err := store.Open(filepath.Join(workDir, "crawl.db"))
	if err != nil {
		return nil, fmt.Errorf("provision storage: %w", err)
	}
	defer st.Close()

	spec, err := source.Load(scn.SourceDir)
	if err != nil {
		return nil, err
	}

	contentDir := filepath.Join(workDir, "content")
	if err := os.MkdirAll(contentDir, 0o755); err != nil {
		return nil, fmt.Errorf("provision content dir: %w", err)
	}

	// The server must be listening before the crawl starts; Stop is
	// guaranteed even when comparison fails fatally.
	srv := serve.New(contentDir)
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("start fixture server: %w", err)
	}
	defer func() {
		if stopErr := srv.Stop(context.Background()); stopErr != nil {
			logger.Warn("fixture server stop failed", "error", stopErr)
		}
	}()

	if err := source.Materialize(spec, contentDir, srv.URL()); err != nil {
		return nil, fmt.Errorf("materialize crawl target: %w", err)
	}

	if err := seedTarget(ctx, st, spec, srv.URL()); err != nil {
		return nil, err
	}

	logger.Info("starting crawl", "scenario", scn.Name, "base_url", srv.URL(),
		"timeout", scn.CrawlTimeout())
	eng := collab.NewEngine(st, spec.TagSet)
	eng.SetTestMode()

	crawlCtx, cancel := context.WithTimeout(ctx, scn.CrawlTimeout())
	err = eng.Crawl(crawlCtx)
	timedOut := errors.Is(crawlCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("crawl failed: %w", err)
	}
	if timedOut {
		// Not fatal by itself: the crawl is considered complete, and an
		// under-produced run fails the count assertion downstream.
		result.AddWarning("crawl hit the %s timeout; comparing partial state", scn.CrawlTimeout())
	}

	// A crawl that failed to fetch content cannot produce a meaningful
	// comparison, and recording it would poison the fixtures.
	errored, err := st.ErroredDownloads(ctx)
	if err != nil {
		return nil, err
	}
	if len(errored) > 0 {
		first := errored[0]
		return nil, fmt.Errorf("%d download(s) in error state; first: story %d url %s: %s",
			len(errored), first.StoriesID, first.URL, first.ErrorMessage)
	}

	stories, err := Aggregate(ctx, st, collab.Fetcher, collab.Extractor, spec.TagSet)
	if err != nil {
		return nil, err
	}
	dataset := record.Dataset(stories)

	fixtures := NewFixtureStore(cfg.FixtureDir)
	if mode == ModeRecord {
		if err := fixtures.Save(scn.FixturePrefix, dataset); err != nil {
			return nil, err
		}
		result.RecordedStories = len(dataset)
		logger.Info("recorded fixtures", "scenario", scn.Name, "stories", len(dataset))
		return result, nil
	}

	result.Check(fmt.Sprintf("%s: story count", scn.Name),
		len(dataset) == scn.ExpectedStories,
		fmt.Sprintf("%d", scn.ExpectedStories), fmt.Sprintf("%d", len(dataset)), "")

	fixture, err := fixtures.Load(scn.FixturePrefix)
	if err != nil {
		return nil, err
	}

	// Identity normalization runs identically and independently on both
	// datasets: the fixture's ids are whatever storage assigned at
	// record time.
	actualKeys, err := StoryURLKeys(dataset)
	if err != nil {
		return nil, err
	}
	NormalizeIdentity(dataset, actualKeys)

	fixtureKeys, err := StoryURLKeys(fixture)
	if err != nil {
		return nil, err
	}
	NormalizeIdentity(fixture, fixtureKeys)

	if err := NormalizeTemporal(fixture); err != nil {
		return nil, err
	}

	Compare(dataset, fixture, result)
	logger.Info("scenario complete", "scenario", scn.Name,
		"assertions", len(result.Assertions), "failed", len(result.Failed()))
	return result, nil
}

// seedTarget provisions the media source and its two feeds, both
// pointing at the fixture server.
func seedTarget(ctx context.Context, st *store.Store, spec *source.Spec, baseURL string) error {
	mediaID, err := st.CreateMedium(ctx, spec.Medium, baseURL)
	if err != nil {
		return err
	}
	if _, err := st.CreateFeed(ctx, mediaID, spec.Medium+" feed",
		baseURL+source.FeedPath, record.FeedSyndicated); err != nil {
		return err
	}
	if _, err := st.CreateFeed(ctx, mediaID, spec.Medium+" pages",
		baseURL+source.IndexPath, record.FeedWebPage); err != nil {
		return err
	}
	return nil
}
