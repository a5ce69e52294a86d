package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"

	"BourseNews/internal/domain"
)

// TimeLayout formats created_at in every artifact.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

type snapshotItem struct {
	ID                   string   `json:"id"`
	FeedName             string   `json:"feed_name"`
	Title                string   `json:"title"`
	Link                 string   `json:"link"`
	Published            string   `json:"published"`
	Summary              string   `json:"summary"`
	AISummary            string   `json:"ai_summary"`
	Sentiment            string   `json:"sentiment"`
	Score                int      `json:"score"`
	CreatedAt            string   `json:"created_at"`
	Priority             string   `json:"priority"`
	PublicationFreshness string   `json:"publication_freshness"`
	MarketBias           string   `json:"market_bias"`
	TimeHorizon          string   `json:"time_horizon"`
	ConfidenceLevel      string   `json:"confidence_level"`
	KeyLinks             []string `json:"key_links"`
	InvestorTakeaway     string   `json:"investor_takeaway"`
	Publisher            string   `json:"publisher"`
	MarketsImpacted      []string `json:"markets_impacted"`
}

func toSnapshotItem(item domain.StoredItem) snapshotItem {
	a := item.Annotation
	return snapshotItem{
		ID:                   item.Fingerprint,
		FeedName:             item.FeedName,
		Title:                item.Title,
		Link:                 item.Link,
		Published:            item.Published,
		Summary:              item.Summary,
		AISummary:            a.Summary,
		Sentiment:            string(a.Sentiment),
		Score:                a.Score,
		CreatedAt:            formatCreatedAt(item.CreatedAt),
		Priority:             string(a.Priority),
		PublicationFreshness: a.Freshness,
		MarketBias:           a.MarketBias,
		TimeHorizon:          a.TimeHorizon,
		ConfidenceLevel:      a.Confidence,
		KeyLinks:             nonNil(a.KeyLinks),
		InvestorTakeaway:     a.InvestorTakeaway,
		Publisher:            a.Publisher,
		MarketsImpacted:      nonNil(a.MarketsImpacted),
	}
}

// RenderSnapshot encodes items as an indented JSON array without HTML escaping.
func RenderSnapshot(items []domain.StoredItem) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(lo.Map(items, func(item domain.StoredItem, _ int) snapshotItem {
		return toSnapshotItem(item)
	})); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	return buf.Bytes(), nil
}

func formatCreatedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
