package ports

import (
	"context"
	"time"

	"BourseNews/internal/domain"
)

// FeedSource pulls candidate entries from one upstream feed.
type FeedSource interface {
	Fetch(ctx context.Context, feed domain.Feed) ([]domain.Candidate, error)
}

// ItemRepository persists annotated items for deduplication and reporting.
type ItemRepository interface {
	Exists(ctx context.Context, fingerprint string) (bool, error)
	Upsert(ctx context.Context, item domain.StoredItem) error
	LoadRecent(ctx context.Context, limit int) ([]domain.StoredItem, error)
}

// Annotator asks the reasoning service for a judgment on one candidate.
type Annotator interface {
	Annotate(ctx context.Context, candidate domain.Candidate) (domain.Annotation, error)
}

// ChatClient sends a prompt to an LLM chat API and returns the raw reply text.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ReportWriter renders the loaded corpus into output artifacts.
type ReportWriter interface {
	Write(ctx context.Context, items []domain.StoredItem, generatedAt time.Time) (domain.Artifacts, error)
}

// Notifier publishes the digest to an outbound channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// RunMetrics records pipeline counters for export.
type RunMetrics interface {
	FeedFetched(feed string, candidates int)
	FeedFailed(feed string)
	ItemStored(feed string)
	ItemSkipped(feed string)
	AnnotationFailed(feed string)
	RunFinished(started, finished time.Time, rendered int)
}
