package source

import (
	"encoding/xml"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/storycheck/storycheck/internal/record"
)

// Well-known paths within a materialized target tree.
const (
	FeedPath  = "/feed.xml"
	IndexPath = "/index.html"
)

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description,omitempty"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// Materialize renders the declared target into dir, with every link
// anchored at baseURL (the fixture server's address). It writes one HTML
// page per item, an RSS feed for the syndicated items, and an index page
// linking the web-page items.
func Materialize(spec *Spec, dir, baseURL string) error {
	baseURL = strings.TrimRight(baseURL, "/")

	for _, item := range spec.Items {
		if err := writePage(dir, item); err != nil {
			return err
		}
	}
	if err := writeFeed(dir, spec, baseURL); err != nil {
		return err
	}
	return writeIndex(dir, spec, baseURL)
}

// writePage renders one item page. An empty body produces an empty file:
// the crawl treats an empty page as a dead item and creates no story.
func writePage(dir string, item Item) error {
	target := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(item.Path, "/")))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create page directory: %w", err)
	}

	var content string
	if item.Body != "" {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<title>")
		b.WriteString(html.EscapeString(item.Title))
		b.WriteString("</title>\n")
		if len(item.Tags) > 0 {
			// The crawl derives story tags from page keywords.
			b.WriteString(`<meta name="keywords" content="`)
			b.WriteString(html.EscapeString(strings.Join(item.Tags, ",")))
			b.WriteString("\">\n")
		}
		b.WriteString("</head>\n<body>\n<article>\n<h1>")
		b.WriteString(html.EscapeString(item.Title))
		b.WriteString("</h1>\n")
		for _, para := range strings.Split(item.Body, "\n\n") {
			b.WriteString("<p>")
			b.WriteString(html.EscapeString(para))
			b.WriteString("</p>\n")
		}
		b.WriteString("</article>\n</body>\n</html>\n")
		content = b.String()
	}

	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write page %s: %w", item.Path, err)
	}
	return nil
}

func writeFeed(dir string, spec *Spec, baseURL string) error {
	doc := rssDoc{
		Version: "2.0",
		Channel: rssChannel{
			Title:       spec.Name,
			Link:        baseURL + "/",
			Description: spec.Name,
		},
	}

	for _, item := range spec.SyndicatedItems() {
		pubDate, err := time.ParseInLocation(record.SQLDateLayout, item.PublishDate, time.Local)
		if err != nil {
			return fmt.Errorf("item %q: parse publish_date: %w", item.Title, err)
		}
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       item.Title,
			Link:        baseURL + item.Path,
			Description: item.Description,
			PubDate:     pubDate.Format(time.RFC1123Z),
			GUID:        item.GUID,
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	target := filepath.Join(dir, strings.TrimPrefix(FeedPath, "/"))
	if err := os.WriteFile(target, body, 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	return nil
}

func writeIndex(dir string, spec *Spec, baseURL string) error {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><title>")
	b.WriteString(html.EscapeString(spec.Name))
	b.WriteString("</title></head>\n<body>\n<ul>\n")
	for _, item := range spec.WebPageItems() {
		b.WriteString(`<li><a href="`)
		b.WriteString(html.EscapeString(baseURL + item.Path))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(item.Title))
		b.WriteString("</a></li>\n")
	}
	b.WriteString("</ul>\n</body>\n</html>\n")

	target := filepath.Join(dir, strings.TrimPrefix(IndexPath, "/"))
	if err := os.WriteFile(target, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
