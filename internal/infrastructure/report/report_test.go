package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"BourseNews/internal/domain"
)

var generatedAt = time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)

func fixtureItems() []domain.StoredItem {
	bull := domain.NewStoredItem(
		domain.NewCandidate("Reuters - Markets", "Stocks <rally> & bonds", "https://example.com/rally", "Equities up", "Mon, 06 May 2024 08:00:00 GMT"),
		domain.Annotation{
			Summary:         "Risk-on <b>day</b>",
			Sentiment:       domain.SentimentPositive,
			Score:           2,
			Priority:        domain.PriorityHigh,
			Freshness:       "very_recent",
			MarketBias:      "bullish",
			Publisher:       "Reuters",
			KeyLinks:        []string{"soft landing"},
			MarketsImpacted: []string{"Nasdaq 100", "USD"},
		},
		generatedAt.Add(-time.Hour),
	)
	bear := domain.NewStoredItem(
		domain.NewCandidate("FT - Markets", "Oil slides", "https://example.com/oil", "", ""),
		domain.Annotation{
			Summary:   "Supply glut",
			Sentiment: domain.SentimentNegative,
			Score:     -1,
			Priority:  domain.PriorityMedium,
			Publisher: "FT",
			MarketsImpacted: []string{
				"Oil", "USD",
			},
		},
		generatedAt.Add(-2*time.Hour),
	)
	flat := domain.NewStoredItem(
		domain.NewCandidate("SEC - 8-K", "Filing", "https://example.com/8k", "Material event", ""),
		domain.DefaultAnnotation(domain.Candidate{FeedName: "SEC - 8-K"}),
		generatedAt.Add(-3*time.Hour),
	)
	return []domain.StoredItem{bull, bear, flat}
}

func TestRenderSnapshot(t *testing.T) {
	t.Parallel()

	raw, err := RenderSnapshot(fixtureItems())
	require.NoError(t, err)

	// No HTML escaping and two-space indentation.
	require.Contains(t, string(raw), `"title": "Stocks <rally> & bonds"`)
	require.True(t, strings.HasPrefix(string(raw), "[\n  {\n    \"id\": "))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 3)

	wantKeys := []string{
		"id", "feed_name", "title", "link", "published", "summary", "ai_summary", "sentiment", "score",
		"created_at", "priority", "publication_freshness", "market_bias", "time_horizon",
		"confidence_level", "key_links", "investor_takeaway", "publisher", "markets_impacted",
	}
	for _, obj := range decoded {
		require.Len(t, obj, len(wantKeys))
		for _, key := range wantKeys {
			require.Contains(t, obj, key)
		}
		require.IsType(t, []any{}, obj["key_links"])
		require.IsType(t, []any{}, obj["markets_impacted"])
	}

	require.Equal(t, "2024-05-06T08:30:00.000000Z", decoded[0]["created_at"])
	require.EqualValues(t, 2, decoded[0]["score"])
}

func TestRenderSnapshotEmpty(t *testing.T) {
	t.Parallel()

	raw, err := RenderSnapshot(nil)
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(raw))
}

func TestRenderDigest(t *testing.T) {
	t.Parallel()

	got := RenderDigest(fixtureItems(), generatedAt, 10)

	want := strings.Join([]string{
		"BOURSENEWS — Summary for 2024-05-06",
		"",
		"🟢 [Reuters - Markets] Stocks <rally> & bonds",
		"    Risk-on <b>day</b>",
		"    https://example.com/rally",
		"",
		"🔴 [FT - Markets] Oil slides",
		"    Supply glut",
		"    https://example.com/oil",
		"",
		"⚪ [SEC - 8-K] Filing",
		"    ",
		"    https://example.com/8k",
		"",
	}, "\n")
	require.Equal(t, want, got)
}

func TestRenderDigestLimit(t *testing.T) {
	t.Parallel()

	got := RenderDigest(fixtureItems(), generatedAt, 1)
	require.Contains(t, got, "Stocks <rally>")
	require.NotContains(t, got, "Oil slides")

	empty := RenderDigest(nil, generatedAt, 10)
	require.Equal(t, "BOURSENEWS — Summary for 2024-05-06\n", empty)
}

func TestRenderDashboard(t *testing.T) {
	t.Parallel()

	meta := DashboardMeta{Title: "BourseNews", Model: "gpt-test", GeneratedAt: generatedAt}
	raw, err := RenderDashboard(fixtureItems(), meta)
	require.NoError(t, err)
	page := string(raw)

	require.Contains(t, page, "Generated 2024-05-06 09:30:00")
	require.Contains(t, page, "Model: gpt-test")
	require.Contains(t, page, "Items: 3")

	require.Contains(t, page, `class="card item pos"`)
	require.Contains(t, page, `class="card item neg"`)
	require.Contains(t, page, `class="card item neu"`)
	require.Contains(t, page, `data-priority="high"`)
	require.Contains(t, page, `data-score="-1"`)
	require.Contains(t, page, `data-publisher="SEC - 8-K"`)
	require.Contains(t, page, `data-markets="Nasdaq 100,USD"`)
	require.Contains(t, page, `data-created-at="2024-05-06T08:30:00.000000Z"`)

	// Untrusted text is escaped.
	require.Contains(t, page, "Stocks &lt;rally&gt; &amp; bonds")
	require.NotContains(t, page, "<rally>")
	require.Contains(t, page, "Risk-on &lt;b&gt;day&lt;/b&gt;")

	// Filter options are sorted and de-duplicated.
	require.Equal(t, 1, strings.Count(page, `<option value="USD">USD</option>`))
	require.Less(t, strings.Index(page, `<option value="FT">`), strings.Index(page, `<option value="Reuters">`))
	require.Less(t, strings.Index(page, `<option value="Nasdaq 100">`), strings.Index(page, `<option value="Oil">`))
}

func TestRenderDashboardDeterministic(t *testing.T) {
	t.Parallel()

	meta := DashboardMeta{Model: "gpt-test", GeneratedAt: generatedAt}
	first, err := RenderDashboard(fixtureItems(), meta)
	require.NoError(t, err)
	second, err := RenderDashboard(fixtureItems(), meta)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestWriterWritesArtifacts(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(Options{
		DashboardPath: filepath.Join(dir, "dashboard.html"),
		SnapshotPath:  filepath.Join(dir, "items.json"),
		DigestPath:    filepath.Join(dir, "daily_summary.txt"),
		DigestSize:    10,
		Model:         "gpt-test",
	})

	artifacts, err := w.Write(context.Background(), fixtureItems(), generatedAt)
	require.NoError(t, err)
	require.Equal(t, 3, artifacts.Items)
	require.Contains(t, artifacts.Digest, "BOURSENEWS — Summary for 2024-05-06")

	for _, path := range []string{artifacts.DashboardPath, artifacts.SnapshotPath, artifacts.DigestPath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}

	digest, err := os.ReadFile(artifacts.DigestPath)
	require.NoError(t, err)
	require.Equal(t, artifacts.Digest, string(digest))

	// Rewriting with the same input yields identical bytes.
	before, err := os.ReadFile(artifacts.DashboardPath)
	require.NoError(t, err)
	_, err = w.Write(context.Background(), fixtureItems(), generatedAt)
	require.NoError(t, err)
	after, err := os.ReadFile(artifacts.DashboardPath)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestWriterCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWriter(Options{}).Write(ctx, nil, generatedAt)
	require.ErrorIs(t, err, context.Canceled)
}
