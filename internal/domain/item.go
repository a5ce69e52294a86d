package domain

import "time"

// Feed is a named upstream news feed.
type Feed struct {
	Name string
	URL  string
}

// Candidate is a freshly fetched entry that has not been annotated yet.
type Candidate struct {
	FeedName    string
	Title       string
	Link        string
	Summary     string
	Published   string
	Fingerprint string
}

// NewCandidate builds a candidate and derives its fingerprint.
func NewCandidate(feedName, title, link, summary, published string) Candidate {
	return Candidate{
		FeedName:    feedName,
		Title:       title,
		Link:        link,
		Summary:     summary,
		Published:   published,
		Fingerprint: Fingerprint(feedName, title, link),
	}
}

// Sentiment is the coarse market tone of an item.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the known sentiments.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Priority ranks how much an item matters to an investor.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Weight orders priorities from low (1) to critical (4).
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

const (
	MinScore = -2
	MaxScore = 2

	MaxKeyLinks        = 3
	MaxMarketsImpacted = 5

	FreshnessRecent = "recent"
	FreshnessOld    = "old"
	BiasNeutral     = "neutral"
)

// ValidScore reports whether score lies in the impact domain.
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// Annotation is the structured judgment returned by the reasoning service.
type Annotation struct {
	Summary          string
	Sentiment        Sentiment
	Score            int
	Priority         Priority
	Freshness        string
	MarketBias       string
	TimeHorizon      string
	Confidence       string
	KeyLinks         []string
	InvestorTakeaway string
	Publisher        string
	MarketsImpacted  []string
}

// DefaultAnnotation is persisted when the reasoning service could not be reached.
func DefaultAnnotation(c Candidate) Annotation {
	return Annotation{
		Sentiment:       SentimentNeutral,
		Score:           0,
		Priority:        PriorityLow,
		Freshness:       FreshnessOld,
		MarketBias:      BiasNeutral,
		Publisher:       c.FeedName,
		KeyLinks:        []string{},
		MarketsImpacted: []string{},
	}
}

// StoredItem is a candidate together with its annotation, as persisted.
type StoredItem struct {
	Fingerprint string
	FeedName    string
	Title       string
	Link        string
	Published   string
	Summary     string
	Annotation  Annotation
	CreatedAt   time.Time
}

// NewStoredItem joins a candidate with its annotation at creation time.
func NewStoredItem(c Candidate, a Annotation, createdAt time.Time) StoredItem {
	return StoredItem{
		Fingerprint: c.Fingerprint,
		FeedName:    c.FeedName,
		Title:       c.Title,
		Link:        c.Link,
		Published:   c.Published,
		Summary:     c.Summary,
		Annotation:  a,
		CreatedAt:   createdAt.UTC(),
	}
}

// Artifacts lists what a report run produced.
type Artifacts struct {
	DashboardPath string
	SnapshotPath  string
	DigestPath    string
	Digest        string
	Items         int
}
