package report

import (
	"fmt"
	"strings"
	"time"

	"BourseNews/internal/domain"
)

// DefaultDigestSize is the number of items listed in the digest.
const DefaultDigestSize = 10

// RenderDigest lists the first size items under a dated header.
func RenderDigest(items []domain.StoredItem, generatedAt time.Time, size int) string {
	if size <= 0 {
		size = DefaultDigestSize
	}
	if len(items) > size {
		items = items[:size]
	}

	lines := make([]string, 0, 2+4*len(items))
	lines = append(lines, fmt.Sprintf("BOURSENEWS — Summary for %s", generatedAt.Format("2006-01-02")), "")
	for _, item := range items {
		lines = append(lines,
			fmt.Sprintf("%s [%s] %s", marker(item.Annotation.Sentiment), item.FeedName, item.Title),
			"    "+item.Annotation.Summary,
			"    "+item.Link,
			"",
		)
	}

	return strings.Join(lines, "\n")
}

func marker(s domain.Sentiment) string {
	switch s {
	case domain.SentimentPositive:
		return "🟢"
	case domain.SentimentNegative:
		return "🔴"
	default:
		return "⚪"
	}
}
