package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/storycheck/storycheck/internal/record"
)

// ScenarioNotConfiguredError means a verify run referenced a fixture
// prefix that was never recorded.
type ScenarioNotConfiguredError struct {
	Prefix string
	Dir    string
}

func (e *ScenarioNotConfiguredError) Error() string {
	return fmt.Sprintf("fixture scenario %q is not configured: %s does not exist (run record mode first)",
		e.Prefix, e.Dir)
}

// FixtureStore persists golden datasets, one JSON file per story, under
// a directory named by scenario prefix. Individual files keep fixtures
// inspectable and diffable by a human reviewer.
type FixtureStore struct {
	dir string
}

// NewFixtureStore creates a fixture store rooted at dir.
func NewFixtureStore(dir string) *FixtureStore {
	return &FixtureStore{dir: dir}
}

// Save overwrites the golden dataset for a scenario prefix. Every story
// is stamped with the current local timezone name so a later verify run
// in another timezone can reinterpret the recorded timestamps.
func (f *FixtureStore) Save(prefix string, dataset record.List) error {
	dir := filepath.Join(f.dir, prefix)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear fixture dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create fixture dir %s: %w", dir, err)
	}

	tz := record.String(LocalTimezone())
	for i, v := range dataset {
		story, ok := v.(record.Object)
		if !ok {
			return fmt.Errorf("dataset[%d]: expected story object, got %T", i, v)
		}

		stamped := record.Clone(story).(record.Object)
		stamped[record.KeyTimezone] = tz

		data, err := record.MarshalIndented(stamped)
		if err != nil {
			return fmt.Errorf("dataset[%d]: %w", i, err)
		}

		title, _ := stamped[record.KeyTitle].(record.String)
		name := fmt.Sprintf("%03d_%s.json", i+1, slug(string(title)))
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write fixture %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the golden dataset for a scenario prefix, in filename order.
// A missing scenario directory is fatal: the scenario is unconfigured.
func (f *FixtureStore) Load(prefix string) (record.List, error) {
	dir := filepath.Join(f.dir, prefix)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotConfiguredError{Prefix: prefix, Dir: dir}
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture dir %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)

	dataset := make(record.List, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", name, err)
		}
		v, err := record.UnmarshalValue(data)
		if err != nil {
			return nil, fmt.Errorf("parse fixture %s: %w", name, err)
		}
		story, ok := v.(record.Object)
		if !ok {
			return nil, fmt.Errorf("fixture %s: expected story object, got %T", name, v)
		}
		dataset = append(dataset, story)
	}
	return dataset, nil
}

// slug reduces a title to a filename-safe fragment.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 48 {
		out = out[:48]
	}
	if out == "" {
		out = "story"
	}
	return out
}
