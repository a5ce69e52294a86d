package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"BourseNews/internal/domain"
	"BourseNews/internal/ports"
)

const defaultMaxItems = 10

// Fetcher downloads RSS/Atom feeds and turns their entries into candidates.
type Fetcher struct {
	client    *http.Client
	maxItems  int
	userAgent string
}

var _ ports.FeedSource = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; maxItems defaults to 10.
func NewFetcher(client *http.Client, maxItems int, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if userAgent == "" {
		userAgent = "BourseNews/1.0"
	}
	return &Fetcher{client: client, maxItems: maxItems, userAgent: userAgent}
}

// Fetch returns at most maxItems candidates in feed order. Entries without a title or a link are dropped.
func (f *Fetcher) Fetch(ctx context.Context, src domain.Feed) ([]domain.Candidate, error) {
	parsed, err := f.fetchFeed(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", src.Name, err)
	}

	entries := parsed.Items
	if len(entries) > f.maxItems {
		entries = entries[:f.maxItems]
	}

	candidates := make([]domain.Candidate, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		candidate, ok := toCandidate(src.Name, entry)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return parsed, nil
}

func toCandidate(feedName string, entry *gofeed.Item) (domain.Candidate, bool) {
	title := NormText(entry.Title)
	link := NormText(entry.Link)
	if title == "" || link == "" {
		return domain.Candidate{}, false
	}

	summary := entry.Description
	if strings.TrimSpace(summary) == "" {
		summary = entry.Content
	}
	summary = NormText(StripHTML(summary))

	published := NormText(entry.Published)
	if published == "" {
		published = NormText(entry.Updated)
	}

	return domain.NewCandidate(feedName, title, link, summary, published), true
}

// NormText collapses every whitespace run into a single space and trims the ends.
func NormText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripHTML returns the visible text of an HTML fragment.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4, h5, h6").AfterHtml(" ")

	return doc.Text()
}
