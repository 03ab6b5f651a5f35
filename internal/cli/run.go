package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/storycheck/storycheck/internal/crawl"
	"github.com/storycheck/storycheck/internal/harness"
	"github.com/storycheck/storycheck/internal/store"
)

// NewRunCommand creates the run command, which records or verifies
// scenarios against their golden datasets.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	var recordMode bool

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run scenarios against recorded fixtures",
		Long: `Runs the named scenarios (or all of them) end to end: provisions
isolated storage and a local fixture server, crawls the declared source,
and verifies the aggregated stories against the recorded golden dataset.

With --record the fixtures are rewritten from the crawl output instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, recordMode, args)
		},
	}

	cmd.Flags().BoolVar(&recordMode, "record", false, "record fixtures instead of verifying against them")

	return cmd
}

func runScenarios(cmd *cobra.Command, opts *RootOptions, recordMode bool, names []string) error {
	scenarios, err := selectScenarios(opts, names)
	if err != nil {
		return err
	}

	mode := harness.ModeVerify
	if recordMode {
		mode = harness.ModeRecord
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	}

	cfg := harness.Config{
		FixtureDir: opts.FixtureDir,
		Logger:     logger,
	}
	collab := harness.Collaborators{
		NewEngine: func(st *store.Store, tagSet string) harness.Engine {
			return crawl.NewEngine(st, tagSet, logger)
		},
		Fetcher:   crawl.StoredContentFetcher{},
		Extractor: crawl.ReadabilityExtractor{},
	}

	var results []*harness.Result
	for _, scn := range scenarios {
		scn.SourceDir = resolveSourceDir(opts.SourcesDir, scn.SourceDir)
		result, err := harness.RunScenario(cmd.Context(), scn, mode, cfg, collab)
		if err != nil {
			var notConfigured *harness.ScenarioNotConfiguredError
			if errors.As(err, &notConfigured) {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("scenario %q has no recorded fixtures; run with --record first", scn.Name), err)
			}
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %q failed", scn.Name), err)
		}
		results = append(results, result)
	}

	if err := printResults(cmd.OutOrStdout(), opts.Format, results); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}

	for _, r := range results {
		if !r.Pass() {
			return NewExitError(ExitFailure, "one or more assertions failed")
		}
	}
	return nil
}

// selectScenarios resolves the requested scenario names against the
// registry, preserving registry order. No names means all scenarios.
func selectScenarios(opts *RootOptions, names []string) ([]harness.Scenario, error) {
	var all []harness.Scenario
	if opts.Registry != "" {
		loaded, err := harness.LoadRegistry(opts.Registry)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load scenario registry", err)
		}
		all = loaded
	} else {
		all = harness.BuiltinScenarios()
	}

	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]harness.Scenario, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	var selected []harness.Scenario
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown scenario %q", name))
		}
		selected = append(selected, s)
	}
	return selected, nil
}

func resolveSourceDir(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

func printResults(w io.Writer, format string, results []*harness.Result) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return printTextResults(w, results)
}

func printTextResults(w io.Writer, results []*harness.Result) error {
	totalPassed, totalFailed, verified, warned := 0, 0, 0, 0
	for _, r := range results {
		warned += len(r.Warnings)
		if r.Mode == harness.ModeRecord.String() {
			fmt.Fprintf(w, "%s: recorded %d stories\n", r.Scenario, r.RecordedStories)
			for _, warning := range r.Warnings {
				fmt.Fprintf(w, "  warning: %s\n", warning)
			}
			continue
		}
		verified++

		for _, a := range r.Assertions {
			if a.Pass {
				totalPassed++
				continue
			}
			totalFailed++
			fmt.Fprintf(w, "FAIL %s\n", a.Label)
			if a.Expected != "" || a.Actual != "" {
				fmt.Fprintf(w, "  expected: %s\n", a.Expected)
				fmt.Fprintf(w, "  actual:   %s\n", a.Actual)
			}
			if a.Diff != "" {
				fmt.Fprintf(w, "  diff:\n%s\n", indent(a.Diff, "    "))
			}
		}
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
	}

	if warned == 0 {
		fmt.Fprintln(w, "no unexpected warnings")
	}
	if verified == 0 {
		return nil
	}
	if totalFailed == 0 {
		fmt.Fprintf(w, "ok: %d assertions across %d scenario(s)\n", totalPassed, verified)
	} else {
		fmt.Fprintf(w, "FAIL: %d of %d assertions failed\n", totalFailed, totalPassed+totalFailed)
	}
	return nil
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
