package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"BourseNews/internal/ports"
)

// Recorder keeps run counters in a private registry and dumps them as a Prometheus textfile.
type Recorder struct {
	registry *prometheus.Registry

	feedsFetched     *prometheus.CounterVec
	candidates       *prometheus.CounterVec
	feedFaults       *prometheus.CounterVec
	itemsStored      *prometheus.CounterVec
	itemsSkipped     *prometheus.CounterVec
	annotationFaults *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastRun          prometheus.Gauge
	rendered         prometheus.Gauge
}

var _ ports.RunMetrics = (*Recorder)(nil)

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		feedsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boursenews_feed_fetches_total",
			Help: "Successful feed fetches",
		}, []string{"feed"}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boursenews_feed_candidates_total",
			Help: "Candidate entries returned by feeds",
		}, []string{"feed"}),
		feedFaults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boursenews_feed_faults_total",
			Help: "Feed fetches that failed",
		}, []string{"feed"}),
		itemsStored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boursenews_items_stored_total",
			Help: "New items annotated and stored",
		}, []string{"feed"}),
		itemsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boursenews_items_skipped_total",
			Help: "Candidates skipped because they were already stored",
		}, []string{"feed"}),
		annotationFaults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boursenews_annotation_faults_total",
			Help: "Annotation calls that failed and fell back to defaults",
		}, []string{"feed"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "boursenews_run_duration_seconds",
			Help:    "Wall time of a full pipeline run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "boursenews_last_run_timestamp_seconds",
			Help: "Unix time of the last finished run",
		}),
		rendered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "boursenews_rendered_items",
			Help: "Items rendered into the artifacts by the last run",
		}),
	}
}

// Registry exposes the underlying gatherer.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) FeedFetched(feed string, candidates int) {
	r.feedsFetched.WithLabelValues(feed).Inc()
	r.candidates.WithLabelValues(feed).Add(float64(candidates))
}

func (r *Recorder) FeedFailed(feed string) { r.feedFaults.WithLabelValues(feed).Inc() }

func (r *Recorder) ItemStored(feed string) { r.itemsStored.WithLabelValues(feed).Inc() }

func (r *Recorder) ItemSkipped(feed string) { r.itemsSkipped.WithLabelValues(feed).Inc() }

func (r *Recorder) AnnotationFailed(feed string) { r.annotationFaults.WithLabelValues(feed).Inc() }

func (r *Recorder) RunFinished(started, finished time.Time, rendered int) {
	r.runDuration.Observe(finished.Sub(started).Seconds())
	r.lastRun.Set(float64(finished.Unix()))
	r.rendered.Set(float64(rendered))
}

// WriteTextfile dumps the registry in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
