package annotation

import (
	"context"
	"fmt"
	"strings"

	"BourseNews/internal/domain"
	"BourseNews/internal/ports"
)

// Annotator asks a chat model for a market read of each candidate.
type Annotator struct {
	chat ports.ChatClient
}

var _ ports.Annotator = (*Annotator)(nil)

// NewAnnotator wraps the chat client.
func NewAnnotator(chat ports.ChatClient) *Annotator {
	return &Annotator{chat: chat}
}

// Annotate returns an error only when the chat service fails. Any reply, however malformed,
// is normalized into a valid annotation.
func (a *Annotator) Annotate(ctx context.Context, c domain.Candidate) (domain.Annotation, error) {
	if a == nil || a.chat == nil {
		return domain.Annotation{}, fmt.Errorf("annotator is not configured")
	}

	reply, err := a.chat.Complete(ctx, BuildPrompt(c))
	if err != nil {
		return domain.Annotation{}, fmt.Errorf("annotate %q: %w", c.Title, err)
	}

	return Normalize(reply, c), nil
}

const promptTemplate = `You are a senior macro and markets analyst covering equities, indices, rates,
commodities, currencies, crypto and ETFs. Turn the news item below into an actionable signal
for an investor, taking the publication date into account.

ARTICLE
Source: %s
Published: %s
Title: %s
Excerpt: %s
Link: %s

GUIDELINES
- Judge how fresh the information is and whether the market has likely priced it in already.
- Place it in the global macro context: company specific, sector wide or macro.
- Relate it to recent events and dominant narratives (risk-on or risk-off, rates, growth).
- Separate the immediate impact (hours, days) from the delayed one (weeks, months).
- Priority levels: critical for a structural catalyst, high for important news, medium for a
  useful confirmation, low for noise or information already priced in.

Answer STRICTLY with one JSON object using these fields:
{
  "priority": "critical|high|medium|low",
  "publication_freshness": "very_recent|recent|old",
  "ai_summary": "investor oriented synthesis, at most 15 sentences",
  "market_bias": "bullish|bearish|neutral|volatile",
  "sentiment": "positive|negative|neutral",
  "score": -2|-1|0|1|2,
  "time_horizon": "short_term|medium_term|long_term",
  "confidence_level": "low|moderate|high",
  "publisher": "short publisher name (Bloomberg, Reuters, FT...)",
  "markets_impacted": ["markets or assets affected, e.g. Nasdaq 100, USD, Oil, Bunds"],
  "key_links": ["link with other recent events", "confirmation or contradiction of a narrative"],
  "investor_takeaway": "why this matters to an investor today"
}

Stay factual and decision oriented. Do not overrate old information unless it reinforces a
recent signal.`

// BuildPrompt renders the annotation request for one candidate.
func BuildPrompt(c domain.Candidate) string {
	return strings.TrimSpace(fmt.Sprintf(promptTemplate, c.FeedName, c.Published, c.Title, c.Summary, c.Link))
}
