package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSourceCUE(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "source.cue"), []byte(content), 0o644)
	require.NoError(t, err)
	return dir
}

const validSource = `
package source

source: {
	name:    "test source"
	medium:  "Test Medium"
	tag_set: "test"
	items: [
		{
			title:        "First"
			path:         "/stories/first"
			feed:         "syndicated"
			description:  "first story"
			publish_date: "2026-01-01 10:00:00"
			guid:         "guid-1"
			body:         "Body one."
		},
		{
			title: "Second"
			path:  "/pages/second"
			feed:  "web_page"
			body:  "Body two."
			tags: ["a", "b"]
		},
	]
}
`

func TestLoad_Valid(t *testing.T) {
	dir := writeSourceCUE(t, validSource)

	spec, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "test source", spec.Name)
	assert.Equal(t, "Test Medium", spec.Medium)
	assert.Equal(t, "test", spec.TagSet)
	require.Len(t, spec.Items, 2)

	assert.Len(t, spec.SyndicatedItems(), 1)
	assert.Len(t, spec.WebPageItems(), 1)
	assert.Equal(t, []string{"a", "b"}, spec.Items[1].Tags)
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Error(), "directory not found")
}

func TestLoad_NoSourceDeclaration(t *testing.T) {
	dir := writeSourceCUE(t, `
package source

other: {name: "x"}
`)
	_, err := Load(dir)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Error(), `no "source" declaration`)
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		source  string
		wantErr string
	}{
		{
			name: "syndicated without guid",
			source: `
package source

source: {
	name:    "t"
	medium:  "m"
	tag_set: "s"
	items: [{
		title:        "a"
		path:         "/a"
		feed:         "syndicated"
		publish_date: "2026-01-01 10:00:00"
		body:         "x"
	}]
}
`,
			wantErr: "guid is required",
		},
		{
			name: "web_page declaring publish_date",
			source: `
package source

source: {
	name:    "t"
	medium:  "m"
	tag_set: "s"
	items: [{
		title:        "a"
		path:         "/a"
		feed:         "web_page"
		publish_date: "2026-01-01 10:00:00"
		body:         "x"
	}]
}
`,
			wantErr: "must not declare publish_date or guid",
		},
		{
			name: "duplicate path",
			source: `
package source

source: {
	name:    "t"
	medium:  "m"
	tag_set: "s"
	items: [
		{title: "a", path: "/a", feed: "web_page", body: "x"},
		{title: "b", path: "/a", feed: "web_page", body: "y"},
	]
}
`,
			wantErr: "duplicate path",
		},
		{
			name: "relative path",
			source: `
package source

source: {
	name:    "t"
	medium:  "m"
	tag_set: "s"
	items: [{title: "a", path: "a", feed: "web_page", body: "x"}]
}
`,
			wantErr: "path must start with /",
		},
		{
			name: "unknown feed type",
			source: `
package source

source: {
	name:    "t"
	medium:  "m"
	tag_set: "s"
	items: [{title: "a", path: "/a", feed: "newsletter", body: "x"}]
}
`,
			wantErr: "feed must be",
		},
		{
			name: "empty items",
			source: `
package source

source: {
	name:    "t"
	medium:  "m"
	tag_set: "s"
	items: []
}
`,
			wantErr: "items list is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeSourceCUE(t, tc.source)
			_, err := Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
