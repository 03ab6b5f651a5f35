package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"
	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/text/unicode/norm"

	"github.com/storycheck/storycheck/internal/record"
)

// Compare matches every actual story against the fixture pool by title
// and evaluates field-level, count-level, and sequence-level equality.
// Both datasets must already be identity- and temporally-normalized.
//
// Matching uses an explicit two-pool algorithm: each fixture entry is
// consumed at most once, removed from a working copy of the pool rather
// than from a structure being iterated. Comparison never aborts on a
// failed assertion; every check is recorded on the result.
func Compare(actual, fixture record.List, result *Result) {
	pool := make([]record.Object, 0, len(fixture))
	for _, v := range fixture {
		if obj, ok := v.(record.Object); ok {
			pool = append(pool, obj)
		}
	}

	for _, v := range actual {
		story, ok := v.(record.Object)
		if !ok {
			continue
		}
		title := getString(story, record.KeyTitle)
		label := func(field string) string {
			return fmt.Sprintf("%s: story %q: %s", result.Scenario, title, field)
		}

		matched := -1
		for i, candidate := range pool {
			if getString(candidate, record.KeyTitle) == title {
				matched = i
				break
			}
		}
		if matched < 0 {
			result.Check(label("matched by title"), false,
				"a fixture story with this title", "no fixture story matched", "")
			continue
		}
		fix := pool[matched]
		pool = slices.Delete(pool, matched, matched+1)
		result.Check(label("matched by title"), true, title, title, "")

		compareStory(story, fix, label, result)
	}

	// Decided behavior for the leftover pool: unmatched fixture entries
	// are a failure in their own right, not silently discarded. The
	// overall count check alone cannot say which story went missing.
	var leftover []string
	for _, fix := range pool {
		leftover = append(leftover, getString(fix, record.KeyTitle))
	}
	result.Check(fmt.Sprintf("%s: all fixture stories matched", result.Scenario),
		len(leftover) == 0, "no unmatched fixture stories",
		describeLeftover(leftover), "")
}

func compareStory(story, fix record.Object, label func(string) string, result *Result) {
	webPage := getString(story, record.KeyFeedType) == string(record.FeedWebPage)

	for _, field := range []string{record.KeyDescription, record.KeyExtractedText, record.KeyContent} {
		checkTolerantText(label(field), getString(story, field), getString(fix, field), result)
	}

	// Crawl-time fields are not reproducible for plain web pages, so
	// they are excluded from comparison entirely.
	if !webPage {
		for _, field := range []string{record.KeyPublishDate, record.KeyGUID} {
			actualVal := getString(story, field)
			fixVal := getString(fix, field)
			result.Check(label(field), actualVal == fixVal, fixVal, actualVal, "")
		}
	}

	compareTagCounts(story, fix, label, result)
	compareSentences(story, fix, webPage, label, result)
}

// compareTagCounts compares the number of tags per tag set. Tag identity
// and content are never compared, only counts within each namespace.
func compareTagCounts(story, fix record.Object, label func(string) string, result *Result) {
	actualCounts := tagCounts(story)
	fixCounts := tagCounts(fix)

	namespaces := make(map[string]bool, len(actualCounts)+len(fixCounts))
	for ns := range actualCounts {
		namespaces[ns] = true
	}
	for ns := range fixCounts {
		namespaces[ns] = true
	}

	sorted := make([]string, 0, len(namespaces))
	for ns := range namespaces {
		sorted = append(sorted, ns)
	}
	slices.Sort(sorted)

	for _, ns := range sorted {
		result.Check(label(fmt.Sprintf("tag count in set %q", ns)),
			actualCounts[ns] == fixCounts[ns],
			fmt.Sprintf("%d", fixCounts[ns]),
			fmt.Sprintf("%d", actualCounts[ns]), "")
	}
}

func tagCounts(story record.Object) map[string]int {
	counts := make(map[string]int)
	tags, _ := story[record.KeyTags].(record.List)
	for _, v := range tags {
		if tag, ok := v.(record.Object); ok {
			counts[getString(tag, record.KeyTagSet)]++
		}
	}
	return counts
}

// compareSentences compares the full ordered sentence sequences after
// stripping the volatile sentence identifier (and, for web pages, the
// crawl-time publish date) from both sides, then compares the
// newline-joined sentence texts so a mismatch yields a readable diff.
func compareSentences(story, fix record.Object, webPage bool, label func(string) string, result *Result) {
	actualSens := strippedSentences(story, webPage)
	fixSens := strippedSentences(fix, webPage)

	result.Check(label("sentences"), reflect.DeepEqual(actualSens, fixSens),
		fmt.Sprintf("%d sentences, structurally equal", len(fixSens)),
		fmt.Sprintf("%d sentences", len(actualSens)), "")

	actualText := joinSentences(actualSens)
	fixText := joinSentences(fixSens)
	result.Check(label("sentence text"), actualText == fixText,
		fixText, actualText, renderDiff(fixText, actualText))
}

func strippedSentences(story record.Object, webPage bool) record.List {
	sens, _ := story[record.KeySentences].(record.List)
	out := record.Clone(sens).(record.List)
	for _, v := range out {
		sen, ok := v.(record.Object)
		if !ok {
			continue
		}
		delete(sen, record.KeySentencesID)
		if webPage {
			delete(sen, record.KeyPublishDate)
		}
	}
	return out
}

func joinSentences(sens record.List) string {
	parts := make([]string, 0, len(sens))
	for _, v := range sens {
		if sen, ok := v.(record.Object); ok {
			parts = append(parts, getString(sen, record.KeySentence))
		}
	}
	return strings.Join(parts, "\n")
}

// checkTolerantText compares two text fields with whitespace- and
// sentence-tolerant equality: both sides are NFC-normalized, segmented
// into sentences, and stripped of insignificant whitespace before
// comparison. Minor formatting differences do not fail the check; real
// differences produce a sentence-level diff.
func checkTolerantText(label, actual, expected string, result *Result) {
	na := canonicalText(actual)
	ne := canonicalText(expected)
	diff := ""
	if na != ne {
		diff = renderDiff(ne, na)
	}
	result.Check(label, na == ne, ne, na, diff)
}

// canonicalText reduces text to its comparable form: NFC normalization,
// sentence segmentation, collapsed inner whitespace, one sentence per
// line.
func canonicalText(text string) string {
	var lines []string
	tokens := sentences.FromString(norm.NFC.String(text))
	for tokens.Next() {
		fields := strings.Fields(tokens.Value())
		if len(fields) > 0 {
			lines = append(lines, strings.Join(fields, " "))
		}
	}
	return strings.Join(lines, "\n")
}

func renderDiff(expected, actual string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(expected, actual, false)
	return dmp.DiffPrettyText(diffs)
}

func describeLeftover(titles []string) string {
	if len(titles) == 0 {
		return "no unmatched fixture stories"
	}
	return fmt.Sprintf("unmatched fixture stories: %s", strings.Join(titles, ", "))
}

func getString(obj record.Object, key string) string {
	if s, ok := obj[key].(record.String); ok {
		return string(s)
	}
	return ""
}
