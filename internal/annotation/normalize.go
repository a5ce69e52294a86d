package annotation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"BourseNews/internal/domain"
)

// Normalize turns a raw model reply into an annotation. It never fails: a reply without a
// decodable JSON object becomes the summary and every other field takes its default.
func Normalize(reply string, c domain.Candidate) domain.Annotation {
	text := strings.TrimSpace(reply)

	block, ok := FirstObject(text)
	if !ok {
		return fallback(text, c)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(block), &data); err != nil || data == nil {
		return fallback(text, c)
	}

	a := domain.Annotation{
		Priority:         domain.Priority(strings.ToLower(stringField(data, "priority", string(domain.PriorityLow)))),
		Freshness:        strings.ToLower(stringField(data, "publication_freshness", domain.FreshnessRecent)),
		MarketBias:       strings.ToLower(stringField(data, "market_bias", domain.BiasNeutral)),
		Sentiment:        domain.Sentiment(strings.ToLower(stringField(data, "sentiment", string(domain.SentimentNeutral)))),
		Score:            scoreField(data["score"]),
		TimeHorizon:      stringField(data, "time_horizon", ""),
		Confidence:       stringField(data, "confidence_level", ""),
		KeyLinks:         lo.Slice(listField(data["key_links"], false), 0, domain.MaxKeyLinks),
		InvestorTakeaway: stringField(data, "investor_takeaway", ""),
		Summary:          stringField(data, "ai_summary", ""),
		Publisher:        stringField(data, "publisher", ""),
		MarketsImpacted:  lo.Slice(listField(data["markets_impacted"], true), 0, domain.MaxMarketsImpacted),
	}

	if !a.Priority.Valid() {
		a.Priority = domain.PriorityLow
	}
	if !a.Sentiment.Valid() {
		a.Sentiment = domain.SentimentNeutral
	}
	if a.Summary == "" {
		a.Summary = a.InvestorTakeaway
	}
	if a.Summary == "" {
		a.Summary = c.Summary
	}
	if a.Publisher == "" {
		a.Publisher = c.FeedName
	}

	return a
}

func fallback(text string, c domain.Candidate) domain.Annotation {
	a := domain.DefaultAnnotation(c)
	a.Summary = text
	return a
}

// FirstObject returns the first balanced {...} block of text. Braces inside JSON strings are ignored.
func FirstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}

func stringField(data map[string]any, key, def string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return def
	}
	return normText(stringify(v))
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func scoreField(v any) int {
	var score int
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0
		}
		score = int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		score = n
	default:
		return 0
	}

	if !domain.ValidScore(score) {
		return 0
	}
	return score
}

func listField(v any, dropBlank bool) []string {
	raw, ok := v.([]any)
	if !ok {
		return []string{}
	}

	values := lo.Map(raw, func(x any, _ int) string { return normText(stringify(x)) })
	if dropBlank {
		values = lo.Filter(values, func(s string, _ int) bool { return s != "" })
	}
	return values
}

func normText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
