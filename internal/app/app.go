package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"BourseNews/internal/annotation"
	"BourseNews/internal/config"
	"BourseNews/internal/domain"
	"BourseNews/internal/infrastructure/feed"
	"BourseNews/internal/infrastructure/llm"
	"BourseNews/internal/infrastructure/metrics"
	"BourseNews/internal/infrastructure/report"
	"BourseNews/internal/infrastructure/scheduler"
	"BourseNews/internal/infrastructure/storage"
	"BourseNews/internal/infrastructure/telegram"
	"BourseNews/internal/logging"
	"BourseNews/internal/ports"
	"BourseNews/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	repo     *storage.SQLiteRepository
	metrics  *metrics.Recorder
	pipeline *usecase.Pipeline
}

// New opens the store and wires every adapter. An empty apiKey builds a render-only application.
func New(ctx context.Context, cfg config.Config, apiKey string, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	repo, err := storage.Open(ctx, cfg.Output.DatabasePath())
	if err != nil {
		return nil, err
	}

	chatClient := llm.NewChatGPTClient(cfg.ChatGPT, apiKey)

	var annotator ports.Annotator
	if apiKey != "" {
		annotator = annotation.NewAnnotator(chatClient)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	recorder := metrics.NewRecorder()

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     feed.NewFetcher(&http.Client{Timeout: cfg.Fetch.Timeout}, cfg.Fetch.MaxItemsPerFeed, cfg.Fetch.UserAgent),
		Repository: repo,
		Annotator:  annotator,
		Reporter: report.NewWriter(report.Options{
			DashboardPath: cfg.Output.DashboardPath(),
			SnapshotPath:  cfg.Output.SnapshotPath(),
			DigestPath:    cfg.Output.DigestPath(),
			DigestSize:    cfg.Report.DigestSize,
			Title:         cfg.Report.Title,
			Model:         chatClient.Model(),
		}),
		Notifier:    notifier,
		Metrics:     recorder,
		Logger:      baseLogger.With("component", "pipeline"),
		FeedDelay:   cfg.Fetch.FeedDelay,
		RecentLimit: cfg.Report.RecentLimit,
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		repo:     repo,
		metrics:  recorder,
		pipeline: pipeline,
	}, nil
}

// Close releases the store.
func (a *Application) Close() error {
	if a == nil || a.repo == nil {
		return nil
	}
	return a.repo.Close()
}

// Run performs a single pipeline execution over the configured feeds.
func (a *Application) Run(ctx context.Context) (usecase.RunReport, error) {
	runReport, err := a.pipeline.Run(ctx, a.cfg.DomainFeeds())
	if mErr := a.writeMetrics(); mErr != nil {
		a.logger.Warn("metrics not written", "error", mErr)
	}
	return runReport, err
}

// Render rebuilds the artifacts from the store without fetching.
func (a *Application) Render(ctx context.Context) (domain.Artifacts, error) {
	return a.pipeline.Render(ctx)
}

// Watch runs the pipeline now and then every interval until ctx is cancelled.
func (a *Application) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = a.cfg.Scheduler.Interval
	}

	driver := scheduler.NewIntervalScheduler(interval)
	sched := usecase.NewScheduler(driver, func(ctx context.Context) error {
		_, err := a.Run(ctx)
		return err
	}, a.logger.With("component", "scheduler"))

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("watching feeds", "interval", interval)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	return nil
}

func (a *Application) writeMetrics() error {
	path := a.cfg.Output.MetricsPath()
	if path == "" {
		return nil
	}
	return a.metrics.WriteTextfile(path)
}
