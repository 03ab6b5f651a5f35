package harness

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storycheck/storycheck/internal/crawl"
	"github.com/storycheck/storycheck/internal/store"
)

func testCollaborators() Collaborators {
	return Collaborators{
		NewEngine: func(st *store.Store, tagSet string) Engine {
			return crawl.NewEngine(st, tagSet, nil)
		},
		Fetcher:   crawl.StoredContentFetcher{},
		Extractor: crawl.ReadabilityExtractor{},
	}
}

func builtinScenario(t *testing.T, name string) Scenario {
	t.Helper()
	for _, s := range BuiltinScenarios() {
		if s.Name == name {
			// Tests run from this package directory; source declarations
			// live at the repository root.
			s.SourceDir = filepath.Join("..", "..", "sources", s.SourceDir)
			return s
		}
	}
	t.Fatalf("no builtin scenario %q", name)
	return Scenario{}
}

func TestRunScenario_RecordThenVerify(t *testing.T) {
	for _, name := range []string{"inline_content", "multilanguage"} {
		t.Run(name, func(t *testing.T) {
			scn := builtinScenario(t, name)
			cfg := Config{FixtureDir: t.TempDir()}
			ctx := context.Background()

			recorded, err := RunScenario(ctx, scn, ModeRecord, cfg, testCollaborators())
			require.NoError(t, err)
			assert.Equal(t, scn.ExpectedStories, recorded.RecordedStories)
			assert.Empty(t, recorded.Warnings)

			verified, err := RunScenario(ctx, scn, ModeVerify, cfg, testCollaborators())
			require.NoError(t, err)
			assert.True(t, verified.Pass(), "failed assertions: %v", verified.Failed())
			assert.NotEmpty(t, verified.Assertions)
		})
	}
}

func TestRunScenario_VerifyWithoutFixturesIsFatal(t *testing.T) {
	scn := builtinScenario(t, "inline_content")
	cfg := Config{FixtureDir: t.TempDir()}

	_, err := RunScenario(context.Background(), scn, ModeVerify, cfg, testCollaborators())

	var notConfigured *ScenarioNotConfiguredError
	require.ErrorAs(t, err, &notConfigured)
	assert.Equal(t, scn.FixturePrefix, notConfigured.Prefix)
}

func TestRunScenario_TamperedFixtureFailsVerify(t *testing.T) {
	scn := builtinScenario(t, "inline_content")
	cfg := Config{FixtureDir: t.TempDir()}
	ctx := context.Background()

	_, err := RunScenario(ctx, scn, ModeRecord, cfg, testCollaborators())
	require.NoError(t, err)

	// Rewrite one recorded story so its text no longer matches.
	dir := filepath.Join(cfg.FixtureDir, scn.FixturePrefix)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	path := filepath.Join(dir, entries[0].Name())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.ReplaceAll(string(data), "Monday", "Friday")
	require.NotEqual(t, string(data), tampered, "fixture should contain the word being tampered")
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	result, err := RunScenario(ctx, scn, ModeVerify, cfg, testCollaborators())
	require.NoError(t, err)
	assert.False(t, result.Pass())
}

func TestRunScenario_MissingSourceDirIsFatal(t *testing.T) {
	scn := builtinScenario(t, "inline_content")
	scn.SourceDir = filepath.Join(t.TempDir(), "missing")
	cfg := Config{FixtureDir: t.TempDir()}

	_, err := RunScenario(context.Background(), scn, ModeRecord, cfg, testCollaborators())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory not found")
}
