package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yml
var builtinRegistry []byte

// Scenario is one named, fixture-backed test case.
type Scenario struct {
	// Name uniquely identifies the scenario.
	Name string `yaml:"name"`

	// Description explains what the scenario covers.
	Description string `yaml:"description"`

	// FixturePrefix names the golden dataset directory.
	FixturePrefix string `yaml:"fixture_prefix"`

	// ExpectedStories is the story count a verify run asserts.
	ExpectedStories int `yaml:"expected_stories"`

	// SourceDir is the crawl-target declaration directory, relative to
	// the sources root unless absolute.
	SourceDir string `yaml:"source_dir"`

	// CrawlTimeoutSecs bounds the crawl; after it the crawl is
	// considered complete regardless of internal state. Defaults to 30.
	CrawlTimeoutSecs int `yaml:"crawl_timeout_secs,omitempty"`
}

// CrawlTimeout returns the bounded-wait duration for the crawl.
func (s Scenario) CrawlTimeout() time.Duration {
	if s.CrawlTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.CrawlTimeoutSecs) * time.Second
}

type registry struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// BuiltinScenarios returns the scenarios shipped with the harness.
func BuiltinScenarios() []Scenario {
	scenarios, err := ParseRegistry(builtinRegistry)
	if err != nil {
		// The embedded registry is validated by tests; a parse failure
		// here is a build defect.
		panic(fmt.Sprintf("embedded scenario registry is invalid: %v", err))
	}
	return scenarios
}

// LoadRegistry reads a scenario registry file.
func LoadRegistry(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses and validates a scenario registry. Unknown fields
// are rejected so typos fail loudly instead of silently dropping config.
func ParseRegistry(data []byte) ([]Scenario, error) {
	var reg registry
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&reg); err != nil {
		return nil, fmt.Errorf("parse scenario registry: %w", err)
	}

	if len(reg.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario registry is empty")
	}

	seen := make(map[string]bool, len(reg.Scenarios))
	for i, s := range reg.Scenarios {
		if s.Name == "" {
			return nil, fmt.Errorf("scenarios[%d]: name is required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("scenarios[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.FixturePrefix == "" {
			return nil, fmt.Errorf("scenarios[%d]: fixture_prefix is required", i)
		}
		if s.ExpectedStories <= 0 {
			return nil, fmt.Errorf("scenarios[%d]: expected_stories must be positive", i)
		}
		if s.SourceDir == "" {
			return nil, fmt.Errorf("scenarios[%d]: source_dir is required", i)
		}
	}
	return reg.Scenarios, nil
}
