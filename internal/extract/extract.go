// Package extract pulls links and metadata out of rendered HTML.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/waterbase/linkcrawler/internal/crawler"
)

// Parse builds a goquery document from an HTML string.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Links returns the absolute form of every usable anchor href on the page,
// resolved against pageURL. Fragment-only, javascript: and mailto: targets
// are skipped.
func Links(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
			return
		}
		abs, err := base.Parse(href)
		if err != nil {
			return
		}
		resolved := abs.String()
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links
}

// Metadata extracts page metadata using a priority-ordered fallback chain
// per field.
func Metadata(doc *goquery.Document) crawler.PageMetadata {
	meta := crawler.PageMetadata{
		Title:       metaContent(doc, `meta[name="title"]`, `meta[property="og:title"]`),
		Description: metaContent(doc, `meta[name="description"]`, `meta[property="og:description"]`),
		PageID:      metaContent(doc, `meta[name="pageID"]`),
		Type:        metaContent(doc, `meta[property="og:type"]`, `meta[name="type"]`),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.Type == "" {
		meta.Type = crawler.TypeWebpage
	}
	return meta
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if content := strings.TrimSpace(doc.Find(selector).First().AttrOr("content", "")); content != "" {
			return content
		}
	}
	return ""
}
