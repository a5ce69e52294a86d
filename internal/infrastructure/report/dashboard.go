package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"BourseNews/internal/domain"
)

//go:embed templates/dashboard.html.tmpl
var templatesFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templatesFS, "templates/dashboard.html.tmpl"))

// DashboardMeta is the header information of the dashboard page.
type DashboardMeta struct {
	Title       string
	Model       string
	GeneratedAt time.Time
}

type dashboardView struct {
	Title       string
	Model       string
	GeneratedAt string
	Count       int
	Priorities  []domain.Priority
	Publishers  []string
	Markets     []string
	Cards       []cardView
}

type cardView struct {
	Class        string
	Sentiment    string
	Score        int
	Priority     string
	Freshness    string
	Published    string
	CreatedAt    string
	Publisher    string
	Markets      string
	MarketsLabel string
	FeedName     string
	Title        string
	Link         string
	AISummary    string
	Excerpt      string
}

// RenderDashboard renders the self-contained HTML page. Output depends only on its inputs.
func RenderDashboard(items []domain.StoredItem, meta DashboardMeta) ([]byte, error) {
	title := meta.Title
	if title == "" {
		title = "BourseNews"
	}

	view := dashboardView{
		Title:       title,
		Model:       meta.Model,
		GeneratedAt: meta.GeneratedAt.Format("2006-01-02 15:04:05"),
		Count:       len(items),
		Priorities:  []domain.Priority{domain.PriorityCritical, domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow},
		Publishers:  sortedUnique(lo.Map(items, func(item domain.StoredItem, _ int) string { return publisherOf(item) })),
		Markets: sortedUnique(lo.FlatMap(items, func(item domain.StoredItem, _ int) []string {
			return item.Annotation.MarketsImpacted
		})),
		Cards: lo.Map(items, func(item domain.StoredItem, _ int) cardView { return toCard(item) }),
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render dashboard: %w", err)
	}
	return buf.Bytes(), nil
}

func toCard(item domain.StoredItem) cardView {
	a := item.Annotation
	markets := lo.Filter(lo.Map(a.MarketsImpacted, func(m string, _ int) string { return strings.TrimSpace(m) }),
		func(m string, _ int) bool { return m != "" })

	return cardView{
		Class:        sentimentClass(a.Sentiment),
		Sentiment:    string(a.Sentiment),
		Score:        a.Score,
		Priority:     string(a.Priority),
		Freshness:    a.Freshness,
		Published:    item.Published,
		CreatedAt:    formatCreatedAt(item.CreatedAt),
		Publisher:    publisherOf(item),
		Markets:      strings.Join(markets, ","),
		MarketsLabel: strings.Join(markets, ", "),
		FeedName:     item.FeedName,
		Title:        item.Title,
		Link:         item.Link,
		AISummary:    a.Summary,
		Excerpt:      item.Summary,
	}
}

func sentimentClass(s domain.Sentiment) string {
	switch s {
	case domain.SentimentPositive:
		return "pos"
	case domain.SentimentNegative:
		return "neg"
	default:
		return "neu"
	}
}

func publisherOf(item domain.StoredItem) string {
	if p := strings.TrimSpace(item.Annotation.Publisher); p != "" {
		return p
	}
	return item.FeedName
}

func sortedUnique(values []string) []string {
	values = lo.Uniq(lo.Filter(lo.Map(values, func(v string, _ int) string { return strings.TrimSpace(v) }),
		func(v string, _ int) bool { return v != "" }))
	sort.Strings(values)
	return values
}
