package harness

import (
	"fmt"
	"net/url"

	"github.com/storycheck/storycheck/internal/record"
)

// DuplicateKeyError means two stories normalize to the same url key.
// That is duplicate or ambiguous fixture data, a data-integrity defect
// rather than an ordinary mismatch, so it is fatal.
type DuplicateKeyError struct {
	Key            string
	FirstStoriesID int64
	OtherStoriesID int64
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate normalized url key %q for stories %d and %d",
		e.Key, e.FirstStoriesID, e.OtherStoriesID)
}

// URLKey strips scheme and host from a story url, leaving path plus
// query: the run-independent identity of a story.
func URLKey(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse story url %q: %w", raw, err)
	}
	key := u.Path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key, nil
}

// StoryURLKeys builds the mapping from each story's run-local id to its
// url key. The keys must be unique within a dataset.
func StoryURLKeys(dataset record.List) (map[int64]string, error) {
	keys := make(map[int64]string, len(dataset))
	seen := make(map[string]int64, len(dataset))

	for i, v := range dataset {
		story, ok := v.(record.Object)
		if !ok {
			return nil, fmt.Errorf("dataset[%d]: expected story object, got %T", i, v)
		}
		id, ok := story[record.KeyStoriesID].(record.Int)
		if !ok {
			// Already normalized (the id is a url key string): nothing
			// to map for this story.
			continue
		}
		rawURL, ok := story[record.KeyURL].(record.String)
		if !ok {
			return nil, fmt.Errorf("dataset[%d]: story has no url", i)
		}

		key, err := URLKey(string(rawURL))
		if err != nil {
			return nil, err
		}
		if first, dup := seen[key]; dup {
			return nil, &DuplicateKeyError{Key: key, FirstStoriesID: first, OtherStoriesID: int64(id)}
		}
		seen[key] = int64(id)
		keys[int64(id)] = key
	}

	return keys, nil
}

// NormalizeIdentity rewrites, in place, every story-id-valued field
// reachable from root into its mapped url key. Ids recur inside nested
// sentence structures, so the whole tree is visited, not just the
// top-level story records.
//
// The traversal is iterative over an explicit work stack: fixture trees
// are arbitrarily deep and must not risk call-stack overflow. Running it
// on an already-normalized tree is a no-op, since normalized ids are
// strings and only integer ids are rewritten.
func NormalizeIdentity(root record.Value, keys map[int64]string) {
	stack := []record.Value{root}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch node := v.(type) {
		case record.Object:
			for k, elem := range node {
				if k == record.KeyStoriesID {
					if id, ok := elem.(record.Int); ok {
						if key, mapped := keys[int64(id)]; mapped {
							node[k] = record.String(key)
						}
					}
					continue
				}
				switch elem.(type) {
				case record.Object, record.List:
					stack = append(stack, elem)
				}
			}
		case record.List:
			for _, elem := range node {
				switch elem.(type) {
				case record.Object, record.List:
					stack = append(stack, elem)
				}
			}
		}
	}
}
