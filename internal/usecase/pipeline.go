package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"BourseNews/internal/domain"
	"BourseNews/internal/logging"
	"BourseNews/internal/ports"
)

// DefaultRecentLimit bounds how many stored items are rendered.
const DefaultRecentLimit = 200

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.FeedSource
	Repository ports.ItemRepository
	Annotator  ports.Annotator
	Reporter   ports.ReportWriter
	Notifier   ports.Notifier
	Metrics    ports.RunMetrics
	Logger     *slog.Logger

	FeedDelay   time.Duration
	RecentLimit int
	Now         func() time.Time
}

// Pipeline implements the fetch, deduplicate, annotate, store and report workflow.
type Pipeline struct {
	source     ports.FeedSource
	repository ports.ItemRepository
	annotator  ports.Annotator
	reporter   ports.ReportWriter
	notifier   ports.Notifier
	metrics    ports.RunMetrics
	logger     *slog.Logger

	feedDelay   time.Duration
	recentLimit int
	now         func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	limit := deps.RecentLimit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	return &Pipeline{
		source:      deps.Source,
		repository:  deps.Repository,
		annotator:   deps.Annotator,
		reporter:    deps.Reporter,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logger:      logger,
		feedDelay:   deps.FeedDelay,
		recentLimit: limit,
		now:         now,
	}
}

// FeedFault records a feed that could not be fetched or parsed.
type FeedFault struct {
	Feed string
	Err  error
}

// AnnotationFault records a candidate stored with the default annotation.
type AnnotationFault struct {
	Feed        string
	Fingerprint string
	Title       string
	Err         error
}

// FeedOutcome counts what happened to one feed during a run.
type FeedOutcome struct {
	Feed    string
	Fetched int
	New     int
	Skipped int
	Failed  bool
}

// RunReport summarizes one pass of the pipeline.
type RunReport struct {
	RunID            string
	StartedAt        time.Time
	FinishedAt       time.Time
	Feeds            []FeedOutcome
	FeedFaults       []FeedFault
	AnnotationFaults []AnnotationFault
	NewItems         int
	SkippedItems     int
	Artifacts        domain.Artifacts
}

// Run processes feeds in order, then renders the artifacts from the store.
// Feed and annotation failures are collected in the report; storage and report failures abort.
func (p *Pipeline) Run(ctx context.Context, feeds []domain.Feed) (RunReport, error) {
	if p.source == nil || p.repository == nil || p.annotator == nil || p.reporter == nil {
		return RunReport{}, fmt.Errorf("pipeline is not fully wired")
	}

	report := RunReport{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
		Feeds:     make([]FeedOutcome, 0, len(feeds)),
	}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("run started", "feeds", len(feeds))

	for i, feed := range feeds {
		if i > 0 {
			if err := sleep(ctx, p.feedDelay); err != nil {
				return report, fmt.Errorf("run interrupted: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run interrupted: %w", err)
		}

		outcome, err := p.processFeed(ctx, logger, feed, &report)
		report.Feeds = append(report.Feeds, outcome)
		if err != nil {
			return report, err
		}
	}

	artifacts, err := p.render(ctx)
	if err != nil {
		return report, err
	}
	report.Artifacts = artifacts
	report.FinishedAt = p.now()

	p.publish(ctx, logger, artifacts.Digest)

	if p.metrics != nil {
		p.metrics.RunFinished(report.StartedAt, report.FinishedAt, artifacts.Items)
	}

	logger.Info("run finished",
		"new_items", report.NewItems,
		"skipped_items", report.SkippedItems,
		"feed_faults", len(report.FeedFaults),
		"annotation_faults", len(report.AnnotationFaults),
		"rendered", artifacts.Items,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)

	return report, nil
}

// Render rebuilds the artifacts from the store without fetching anything.
func (p *Pipeline) Render(ctx context.Context) (domain.Artifacts, error) {
	if p.repository == nil || p.reporter == nil {
		return domain.Artifacts{}, fmt.Errorf("pipeline is not wired for rendering")
	}
	return p.render(ctx)
}

func (p *Pipeline) render(ctx context.Context) (domain.Artifacts, error) {
	items, err := p.repository.LoadRecent(ctx, p.recentLimit)
	if err != nil {
		return domain.Artifacts{}, fmt.Errorf("load recent items: %w", err)
	}

	artifacts, err := p.reporter.Write(ctx, items, p.now())
	if err != nil {
		return domain.Artifacts{}, fmt.Errorf("write artifacts: %w", err)
	}
	return artifacts, nil
}

func (p *Pipeline) processFeed(ctx context.Context, logger *slog.Logger, feed domain.Feed, report *RunReport) (FeedOutcome, error) {
	outcome := FeedOutcome{Feed: feed.Name}
	logger = logger.With("feed", feed.Name)

	candidates, err := p.source.Fetch(ctx, feed)
	if err != nil {
		logger.Warn("feed fetch failed", "error", err)
		outcome.Failed = true
		report.FeedFaults = append(report.FeedFaults, FeedFault{Feed: feed.Name, Err: err})
		if p.metrics != nil {
			p.metrics.FeedFailed(feed.Name)
		}
		return outcome, nil
	}

	outcome.Fetched = len(candidates)
	if p.metrics != nil {
		p.metrics.FeedFetched(feed.Name, len(candidates))
	}
	logger.Debug("feed fetched", "candidates", len(candidates))

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return outcome, fmt.Errorf("run interrupted: %w", err)
		}

		exists, err := p.repository.Exists(ctx, candidate.Fingerprint)
		if err != nil {
			return outcome, fmt.Errorf("check item %s: %w", candidate.Fingerprint, err)
		}
		if exists {
			outcome.Skipped++
			report.SkippedItems++
			if p.metrics != nil {
				p.metrics.ItemSkipped(feed.Name)
			}
			continue
		}

		annotation, err := p.annotator.Annotate(ctx, candidate)
		if err != nil {
			logger.Warn("annotation failed, storing defaults", "title", candidate.Title, "error", err)
			annotation = domain.DefaultAnnotation(candidate)
			report.AnnotationFaults = append(report.AnnotationFaults, AnnotationFault{
				Feed:        feed.Name,
				Fingerprint: candidate.Fingerprint,
				Title:       candidate.Title,
				Err:         err,
			})
			if p.metrics != nil {
				p.metrics.AnnotationFailed(feed.Name)
			}
		}

		if err := p.repository.Upsert(ctx, domain.NewStoredItem(candidate, annotation, p.now())); err != nil {
			return outcome, fmt.Errorf("store item %s: %w", candidate.Fingerprint, err)
		}

		outcome.New++
		report.NewItems++
		if p.metrics != nil {
			p.metrics.ItemStored(feed.Name)
		}
	}

	logger.Info("feed processed", "fetched", outcome.Fetched, "new", outcome.New, "skipped", outcome.Skipped)
	return outcome, nil
}

func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, digest string) {
	if p.notifier == nil || digest == "" {
		return
	}
	if err := p.notifier.PublishDigest(ctx, digest); err != nil {
		logger.Warn("digest publication failed", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
