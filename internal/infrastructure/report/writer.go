package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"BourseNews/internal/domain"
	"BourseNews/internal/ports"
)

// Options locates the artifacts and sets the page header.
type Options struct {
	DashboardPath string
	SnapshotPath  string
	DigestPath    string
	DigestSize    int
	Title         string
	Model         string
}

// Writer renders the dashboard, the JSON snapshot and the digest to files.
type Writer struct {
	opts Options
}

var _ ports.ReportWriter = (*Writer)(nil)

// NewWriter builds a file writer.
func NewWriter(opts Options) *Writer {
	return &Writer{opts: opts}
}

// Write overwrites the three artifacts from items.
func (w *Writer) Write(ctx context.Context, items []domain.StoredItem, generatedAt time.Time) (domain.Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return domain.Artifacts{}, err
	}

	snapshot, err := RenderSnapshot(items)
	if err != nil {
		return domain.Artifacts{}, err
	}
	dashboard, err := RenderDashboard(items, DashboardMeta{
		Title:       w.opts.Title,
		Model:       w.opts.Model,
		GeneratedAt: generatedAt,
	})
	if err != nil {
		return domain.Artifacts{}, err
	}
	digest := RenderDigest(items, generatedAt, w.opts.DigestSize)

	files := []struct {
		path string
		data []byte
	}{
		{w.opts.SnapshotPath, snapshot},
		{w.opts.DashboardPath, dashboard},
		{w.opts.DigestPath, []byte(digest)},
	}
	for _, f := range files {
		if err := writeFile(f.path, f.data); err != nil {
			return domain.Artifacts{}, err
		}
	}

	return domain.Artifacts{
		DashboardPath: w.opts.DashboardPath,
		SnapshotPath:  w.opts.SnapshotPath,
		DigestPath:    w.opts.DigestPath,
		Digest:        digest,
		Items:         len(items),
	}, nil
}

func writeFile(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("write artifact: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
