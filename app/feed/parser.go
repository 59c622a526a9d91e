package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const maxSnippetRunes = 500

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses an RSS or Atom document and normalizes up to maxItems entries
// (all entries when maxItems <= 0). Entries without a title or an http(s)
// link are dropped.
func (p *Parser) Run(data []byte, maxItems int) ([]Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := feed.Items
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if entry, ok := p.normalizeItem(item); ok {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) (Entry, bool) {
	link := strings.TrimSpace(item.Link)
	if !isHTTPURL(link) {
		link = strings.TrimSpace(item.GUID)
		if !isHTTPURL(link) {
			return Entry{}, false
		}
	}

	title := stripHTML(item.Title)
	if title == "" {
		return Entry{}, false
	}

	snippet := stripHTML(item.Description)
	if snippet == "" {
		snippet = stripHTML(item.Content)
	}
	snippet = truncateRunes(snippet, maxSnippetRunes)

	normalized := NormalizeURL(link)
	entry := Entry{
		SourceURL:      link,
		NormalizedURL:  normalized,
		ItemKey:        HashHex(normalized),
		Title:          title,
		Snippet:        snippet,
		TitleHash:      HashHex(title),
		DateConfidence: "low",
	}

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published != nil {
		t := published.UTC().Truncate(time.Millisecond)
		entry.PublishedAt = &t
		entry.DateConfidence = "high"
	}

	return entry, true
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// stripHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Adjacent elements are separated by a space.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}

	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "#text":
			*parts = append(*parts, child.Text())
		case "script", "style", "#comment":
		default:
			collectText(child, parts)
		}
	})
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
