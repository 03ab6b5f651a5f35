package crawl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/clipperhouse/uax29/v2/sentences"
	readability "github.com/go-shiori/go-readability"
)

// PageTitle extracts the <title> of an HTML page.
func PageTitle(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}

// PageKeywords extracts the comma-separated keywords meta tag of a page.
// Returns nil when the page declares none.
func PageKeywords(htmlContent string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	content, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content")
	if !ok {
		return nil, nil
	}

	var keywords []string
	for _, kw := range strings.Split(content, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords, nil
}

// ArticleText extracts the readable article text from an HTML page.
func ArticleText(pageURL, htmlContent string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", pageURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), parsed)
	if err != nil {
		return "", fmt.Errorf("extract article %q: %w", pageURL, err)
	}
	return strings.TrimSpace(article.TextContent), nil
}

// SplitSentences segments text into sentences, preserving order.
// Whitespace-only segments are dropped.
func SplitSentences(text string) []string {
	var out []string
	tokens := sentences.FromString(text)
	for tokens.Next() {
		if s := strings.TrimSpace(tokens.Value()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
