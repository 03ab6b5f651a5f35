// Package source loads and materializes declared crawl targets.
//
// A crawl target is declared in CUE: a media source plus a list of items,
// each with an inline body. The harness materializes the declaration into
// a directory tree (RSS feed, index page, one HTML page per item) served
// by the fixture HTTP server.
package source

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/storycheck/storycheck/internal/record"
)

// Spec is a declared crawl target.
type Spec struct {
	// Name describes the target; used only in diagnostics.
	Name string `json:"name"`

	// Medium is the media source name seeded into storage.
	Medium string `json:"medium"`

	// TagSet is the tag namespace applied to declared item tags.
	TagSet string `json:"tag_set"`

	// Items are the content units the fixture server will serve.
	Items []Item `json:"items"`
}

// Item is one declared content unit.
type Item struct {
	// Title appears in the page <title> and, for syndicated items, the
	// RSS item title.
	Title string `json:"title"`

	// Path is the URL path the page is served under (e.g. "/stories/a").
	Path string `json:"path"`

	// Body is the inline article text. An empty body materializes as an
	// empty page; the crawl produces no story for it.
	Body string `json:"body,omitempty"`

	// Feed selects which seeded feed discovers the item:
	// "syndicated" or "web_page".
	Feed string `json:"feed"`

	// Description is the RSS item description (syndicated items only).
	Description string `json:"description,omitempty"`

	// PublishDate is the declared publish timestamp (syndicated items
	// only; web-page items are stamped at crawl time).
	PublishDate string `json:"publish_date,omitempty"`

	// GUID is the declared feed-level identity (syndicated items only).
	GUID string `json:"guid,omitempty"`

	// Tags are labels applied to the resulting story in the source's
	// tag set.
	Tags []string `json:"tags,omitempty"`
}

// LoadError is a source-spec loading failure with enough context to point
// at the offending declaration.
type LoadError struct {
	Dir     string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("source spec %s: %s", e.Dir, e.Message)
}

// Load reads and validates the CUE source declaration in dir.
// The declaration lives under the top-level "source" field.
func Load(dir string) (*Spec, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Dir: dir, Message: "directory not found"}
	}
	if err != nil {
		return nil, &LoadError{Dir: dir, Message: fmt.Sprintf("stat: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Dir: dir, Message: "not a directory"}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Dir: dir, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Dir: dir, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Dir: dir, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	sourceVal := value.LookupPath(cue.ParsePath("source"))
	if !sourceVal.Exists() {
		return nil, &LoadError{Dir: dir, Message: `no "source" declaration found`}
	}

	var spec Spec
	if err := sourceVal.Decode(&spec); err != nil {
		return nil, &LoadError{Dir: dir, Message: fmt.Sprintf("decoding source: %v", err)}
	}

	if err := spec.validate(); err != nil {
		return nil, &LoadError{Dir: dir, Message: err.Error()}
	}
	return &spec, nil
}

func (s *Spec) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Medium == "" {
		return fmt.Errorf("medium is required")
	}
	if s.TagSet == "" {
		return fmt.Errorf("tag_set is required")
	}
	if len(s.Items) == 0 {
		return fmt.Errorf("items list is required and must be non-empty")
	}

	paths := make(map[string]bool, len(s.Items))
	for i, item := range s.Items {
		if item.Title == "" {
			return fmt.Errorf("items[%d]: title is required", i)
		}
		if item.Path == "" || item.Path[0] != '/' {
			return fmt.Errorf("items[%d]: path must start with /", i)
		}
		if paths[item.Path] {
			return fmt.Errorf("items[%d]: duplicate path %q", i, item.Path)
		}
		paths[item.Path] = true

		switch record.FeedType(item.Feed) {
		case record.FeedSyndicated:
			if item.PublishDate == "" {
				return fmt.Errorf("items[%d]: publish_date is required for syndicated items", i)
			}
			if item.GUID == "" {
				return fmt.Errorf("items[%d]: guid is required for syndicated items", i)
			}
		case record.FeedWebPage:
			// Crawl-time fields; declaring them would be misleading.
			if item.PublishDate != "" || item.GUID != "" {
				return fmt.Errorf("items[%d]: web_page items must not declare publish_date or guid", i)
			}
		default:
			return fmt.Errorf("items[%d]: feed must be %q or %q", i,
				record.FeedSyndicated, record.FeedWebPage)
		}
	}
	return nil
}

// SyndicatedItems returns the items discovered via the RSS feed.
func (s *Spec) SyndicatedItems() []Item {
	return s.itemsByFeed(record.FeedSyndicated)
}

// WebPageItems returns the items discovered via the index page.
func (s *Spec) WebPageItems() []Item {
	return s.itemsByFeed(record.FeedWebPage)
}

func (s *Spec) itemsByFeed(ft record.FeedType) []Item {
	var out []Item
	for _, item := range s.Items {
		if record.FeedType(item.Feed) == ft {
			out = append(out, item)
		}
	}
	return out
}
