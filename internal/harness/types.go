package harness

import "fmt"

// RunMode selects what a scenario run does with the crawl's output.
// It is always passed explicitly; nothing in the harness reads ambient
// process state to decide.
type RunMode int

const (
	// ModeVerify compares the crawl output against recorded fixtures.
	ModeVerify RunMode = iota
	// ModeRecord overwrites the fixtures with the crawl output.
	ModeRecord
)

func (m RunMode) String() string {
	switch m {
	case ModeVerify:
		return "verify"
	case ModeRecord:
		return "record"
	default:
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
}

// Assertion is one independent pass/fail check. The label identifies the
// scenario, the story, and the field being checked.
type Assertion struct {
	Label    string `json:"label"`
	Pass     bool   `json:"pass"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Diff     string `json:"diff,omitempty"`
}

// Result accumulates every assertion of a scenario run. Field mismatches
// never abort the run; only fatal conditions (returned as errors from
// RunScenario) do.
type Result struct {
	Scenario        string      `json:"scenario"`
	Mode            string      `json:"mode"`
	Assertions      []Assertion `json:"assertions"`
	Warnings        []string    `json:"warnings,omitempty"`
	RecordedStories int         `json:"recorded_stories,omitempty"`
}

// NewResult creates an empty result for a scenario run.
func NewResult(scenario string, mode RunMode) *Result {
	return &Result{Scenario: scenario, Mode: mode.String()}
}

// Check records one assertion.
func (r *Result) Check(label string, pass bool, expected, actual, diff string) {
	r.Assertions = append(r.Assertions, Assertion{
		Label:    label,
		Pass:     pass,
		Expected: expected,
		Actual:   actual,
		Diff:     diff,
	})
}

// AddWarning records a non-fatal bookkeeping signal.
func (r *Result) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Pass reports whether every assertion passed.
func (r *Result) Pass() bool {
	for _, a := range r.Assertions {
		if !a.Pass {
			return false
		}
	}
	return true
}

// Failed returns the failing assertions.
func (r *Result) Failed() []Assertion {
	var failed []Assertion
	for _, a := range r.Assertions {
		if !a.Pass {
			failed = append(failed, a)
		}
	}
	return failed
}
