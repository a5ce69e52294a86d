package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"BourseNews/internal/domain"
)

type fakeSource struct {
	feeds map[string][]domain.Candidate
	fail  map[string]error
	calls []string
}

func (f *fakeSource) Fetch(_ context.Context, feed domain.Feed) ([]domain.Candidate, error) {
	f.calls = append(f.calls, feed.Name)
	if err := f.fail[feed.Name]; err != nil {
		return nil, err
	}
	return f.feeds[feed.Name], nil
}

type memoryRepository struct {
	mu        sync.Mutex
	items     map[string]domain.StoredItem
	order     []string
	upsertErr error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{items: map[string]domain.StoredItem{}}
}

func (m *memoryRepository) Exists(_ context.Context, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[fingerprint]
	return ok, nil
}

func (m *memoryRepository) Upsert(_ context.Context, item domain.StoredItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if _, ok := m.items[item.Fingerprint]; !ok {
		m.order = append(m.order, item.Fingerprint)
	}
	m.items[item.Fingerprint] = item
	return nil
}

func (m *memoryRepository) LoadRecent(_ context.Context, limit int) ([]domain.StoredItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StoredItem, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.items[m.order[i]])
	}
	return out, nil
}

type fakeAnnotator struct {
	fail  map[string]error
	calls int
}

func (f *fakeAnnotator) Annotate(_ context.Context, c domain.Candidate) (domain.Annotation, error) {
	f.calls++
	if err := f.fail[c.Title]; err != nil {
		return domain.Annotation{}, err
	}
	return domain.Annotation{
		Summary:         "annotated " + c.Title,
		Sentiment:       domain.SentimentPositive,
		Score:           1,
		Priority:        domain.PriorityHigh,
		Freshness:       domain.FreshnessRecent,
		MarketBias:      "bullish",
		Publisher:       "Wire",
		KeyLinks:        []string{},
		MarketsImpacted: []string{"USD"},
	}, nil
}

type fakeReporter struct {
	written [][]domain.StoredItem
	err     error
}

func (f *fakeReporter) Write(_ context.Context, items []domain.StoredItem, _ time.Time) (domain.Artifacts, error) {
	if f.err != nil {
		return domain.Artifacts{}, f.err
	}
	f.written = append(f.written, items)
	return domain.Artifacts{Items: len(items), Digest: "digest"}, nil
}

type fakeNotifier struct {
	digests []string
	err     error
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return f.err
}

type fakeMetrics struct {
	fetched, failed, stored, skipped, annotationFaults int
	finished                                           bool
}

func (f *fakeMetrics) FeedFetched(string, int) { f.fetched++ }
func (f *fakeMetrics) FeedFailed(string) { f.failed++ }
func (f *fakeMetrics) ItemStored(string) { f.stored++ }
func (f *fakeMetrics) ItemSkipped(string) { f.skipped++ }
func (f *fakeMetrics) AnnotationFailed(string) { f.annotationFaults++ }
func (f *fakeMetrics) RunFinished(time.Time, time.Time, int) { f.finished = true }

var testFeeds = []domain.Feed{
	{Name: "Wire A", URL: "https://a.example.com/rss"},
	{Name: "Wire B", URL: "https://b.example.com/rss"},
}

func candidates(feed string, titles ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(titles))
	for _, title := range titles {
		out = append(out, domain.NewCandidate(feed, title, "https://example.com/"+title, "excerpt "+title, ""))
	}
	return out
}

type harness struct {
	source    *fakeSource
	repo      *memoryRepository
	annotator *fakeAnnotator
	reporter  *fakeReporter
	notifier  *fakeNotifier
	metrics   *fakeMetrics
	pipeline  *Pipeline
}

func newHarness() *harness {
	h := &harness{
		source: &fakeSource{
			feeds: map[string][]domain.Candidate{
				"Wire A": candidates("Wire A", "fed", "oil"),
				"Wire B": candidates("Wire B", "gold"),
			},
			fail: map[string]error{},
		},
		repo:      newMemoryRepository(),
		annotator: &fakeAnnotator{fail: map[string]error{}},
		reporter:  &fakeReporter{},
		notifier:  &fakeNotifier{},
		metrics:   &fakeMetrics{},
	}
	h.pipeline = NewPipeline(PipelineDeps{
		Source:     h.source,
		Repository: h.repo,
		Annotator:  h.annotator,
		Reporter:   h.reporter,
		Notifier:   h.notifier,
		Metrics:    h.metrics,
	})
	return h
}

func TestRunStoresNewItemsAndRenders(t *testing.T) {
	t.Parallel()

	h := newHarness()
	report, err := h.pipeline.Run(context.Background(), testFeeds)
	require.NoError(t, err)

	require.NotEmpty(t, report.RunID)
	require.Equal(t, 3, report.NewItems)
	require.Zero(t, report.SkippedItems)
	require.Empty(t, report.FeedFaults)
	require.Empty(t, report.AnnotationFaults)
	require.Equal(t, []FeedOutcome{
		{Feed: "Wire A", Fetched: 2, New: 2},
		{Feed: "Wire B", Fetched: 1, New: 1},
	}, report.Feeds)

	require.Equal(t, []string{"Wire A", "Wire B"}, h.source.calls)
	require.Len(t, h.reporter.written, 1)
	require.Len(t, h.reporter.written[0], 3)
	require.Equal(t, 3, report.Artifacts.Items)
	require.Equal(t, []string{"digest"}, h.notifier.digests)
	require.True(t, h.metrics.finished)
	require.Equal(t, 3, h.metrics.stored)
}

func TestRunSecondPassCreatesNothing(t *testing.T) {
	t.Parallel()

	h := newHarness()
	_, err := h.pipeline.Run(context.Background(), testFeeds)
	require.NoError(t, err)

	report, err := h.pipeline.Run(context.Background(), testFeeds)
	require.NoError(t, err)
	require.Zero(t, report.NewItems)
	require.Equal(t, 3, report.SkippedItems)
	require.Equal(t, 3, h.annotator.calls)
	require.Len(t, h.repo.items, 3)

	// Artifacts are still rewritten from the store.
	require.Len(t, h.reporter.written, 2)
	require.Len(t, h.reporter.written[1], 3)
}

func TestRunIsolatesFeedFaults(t *testing.T) {
	t.Parallel()

	h := newHarness()
	boom := errors.New("connection refused")
	h.source.fail["Wire A"] = boom

	report, err := h.pipeline.Run(context.Background(), testFeeds)
	require.NoError(t, err)

	require.Len(t, report.FeedFaults, 1)
	require.Equal(t, "Wire A", report.FeedFaults[0].Feed)
	require.ErrorIs(t, report.FeedFaults[0].Err, boom)
	require.True(t, report.Feeds[0].Failed)
	require.Equal(t, 1, report.NewItems)
	require.Equal(t, 1, h.metrics.failed)
}

func TestRunStoresDefaultsOnAnnotationFault(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.annotator.fail["oil"] = errors.New("503")

	report, err := h.pipeline.Run(context.Background(), testFeeds)
	require.NoError(t, err)
	require.Equal(t, 3, report.NewItems)
	require.Len(t, report.AnnotationFaults, 1)
	require.Equal(t, "oil", report.AnnotationFaults[0].Title)
	require.Equal(t, "Wire A", report.AnnotationFaults[0].Feed)

	stored := h.repo.items[report.AnnotationFaults[0].Fingerprint]
	require.Equal(t, domain.SentimentNeutral, stored.Annotation.Sentiment)
	require.Zero(t, stored.Annotation.Score)
	require.Equal(t, domain.PriorityLow, stored.Annotation.Priority)
	require.Equal(t, domain.FreshnessOld, stored.Annotation.Freshness)
	require.Equal(t, "Wire A", stored.Annotation.Publisher)
}

func TestRunAbortsOnStorageFault(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.repo.upsertErr = errors.New("disk full")

	_, err := h.pipeline.Run(context.Background(), testFeeds)
	require.ErrorIs(t, err, h.repo.upsertErr)
	require.Empty(t, h.reporter.written)
	require.Equal(t, []string{"Wire A"}, h.source.calls)
}

func TestRunAbortsOnReportFault(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.reporter.err = errors.New("read-only fs")

	_, err := h.pipeline.Run(context.Background(), testFeeds)
	require.ErrorIs(t, err, h.reporter.err)
	require.Empty(t, h.notifier.digests)
}

func TestRunToleratesNotifierFault(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.notifier.err = errors.New("telegram down")

	report, err := h.pipeline.Run(context.Background(), testFeeds)
	require.NoError(t, err)
	require.Equal(t, 3, report.NewItems)
}

func TestRunStopsOnCancellation(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline.Run(ctx, testFeeds)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, h.source.calls)
}

func TestRunWaitsBetweenFeeds(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := NewPipeline(PipelineDeps{
		Source:     h.source,
		Repository: h.repo,
		Annotator:  h.annotator,
		Reporter:   h.reporter,
		FeedDelay:  30 * time.Millisecond,
	})

	started := time.Now()
	_, err := p.Run(context.Background(), testFeeds)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(started), 30*time.Millisecond)
}

func TestRunRequiresWiring(t *testing.T) {
	t.Parallel()

	_, err := NewPipeline(PipelineDeps{}).Run(context.Background(), testFeeds)
	require.Error(t, err)
}

func TestRenderUsesStore(t *testing.T) {
	t.Parallel()

	h := newHarness()
	_, err := h.pipeline.Run(context.Background(), testFeeds)
	require.NoError(t, err)

	artifacts, err := h.pipeline.Render(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, artifacts.Items)
	require.Equal(t, 3, h.annotator.calls)
}
