// Package gc implements the C10 garbage collector: a daily sweep of stale
// temp buffers/preview directories/terminal jobs, a 5-minute stall sweep
// that force-errors stuck jobs, and a 6-hour disk-pressure sweep that
// trims the oldest finished clips when usage crosses a threshold.
package gc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sys/unix"

	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/metrics"
)

const (
	retentionWindow   = 24 * time.Hour
	stallThreshold    = 30 * time.Minute
	diskPressureRatio = 0.90
	trimFraction      = 0.10
)

// Broker is the subset of jobs.Broker the collector needs.
type Broker interface {
	List() []domain.Job
	ForceError(id, reason string) (domain.Job, error)
	Delete(id string) error
}

type Collector struct {
	broker      Broker
	clock       clockwork.Clock
	tempDir     string
	clipsDir    string
	thumbsDir   string
	previewsDir string
}

func New(broker Broker, clock clockwork.Clock, tempDir, clipsDir, thumbsDir, previewsDir string) *Collector {
	return &Collector{
		broker:      broker,
		clock:       clock,
		tempDir:     tempDir,
		clipsDir:    clipsDir,
		thumbsDir:   thumbsDir,
		previewsDir: previewsDir,
	}
}

// Daily deletes temp buffers and preview directories older than 24h, and
// drops terminal jobs older than 24h from the registry, per §4.10.
func (c *Collector) Daily(ctx context.Context) error {
	now := c.clock.Now()
	deleted := c.purgeOlderThan(c.tempDir, now, retentionWindow, "temp_buffer")
	deleted += c.purgeOlderThan(c.previewsDir, now, retentionWindow, "preview_dir")

	for _, j := range c.broker.List() {
		if !j.State.Terminal() {
			continue
		}
		if now.Sub(j.UpdatedAt) <= retentionWindow {
			continue
		}
		if err := c.broker.Delete(j.ID); err != nil {
			slog.Warn("gc: delete terminal job failed", "job_id", j.ID, "error", err)
			continue
		}
		deleted++
	}

	slog.Info("gc: daily sweep complete", "entries_deleted", deleted)
	return nil
}

// StallSweep force-errors any non-terminal job whose updated_at is older
// than 30 minutes, per §4.8's watchdog contract.
func (c *Collector) StallSweep(ctx context.Context) error {
	now := c.clock.Now()
	var stalled int
	for _, j := range c.broker.List() {
		if j.State.Terminal() {
			continue
		}
		if now.Sub(j.UpdatedAt) < stallThreshold {
			continue
		}
		if _, err := c.broker.ForceError(j.ID, "stalled"); err != nil {
			slog.Warn("gc: stall sweep force-error failed", "job_id", j.ID, "error", err)
			continue
		}
		stalled++
	}
	if stalled > 0 {
		metrics.JobStalledTotal.Add(float64(stalled))
		slog.Warn("gc: stall sweep force-errored jobs", "count", stalled)
	}
	return nil
}

// DiskPressureSweep deletes the oldest 10% of finished clips (and paired
// thumbnails) by creation time when usage on the clips filesystem exceeds
// 90%, repeating until back under threshold or out of files.
func (c *Collector) DiskPressureSweep(ctx context.Context) error {
	ratio, err := diskUsageRatio(c.clipsDir)
	if err != nil {
		return fmt.Errorf("read disk usage: %w", err)
	}
	metrics.GCDiskUsageRatio.Set(ratio)
	if ratio <= diskPressureRatio {
		return nil
	}

	clips, err := filesSortedByAge(c.clipsDir)
	if err != nil {
		return fmt.Errorf("list clips: %w", err)
	}
	if len(clips) == 0 {
		return nil
	}

	trimCount := int(float64(len(clips)) * trimFraction)
	if trimCount < 1 {
		trimCount = 1
	}

	deleted := 0
	for _, name := range clips[:min(trimCount, len(clips))] {
		clipPath := filepath.Join(c.clipsDir, name)
		if err := os.Remove(clipPath); err != nil {
			slog.Warn("gc: disk pressure sweep failed to remove clip", "path", clipPath, "error", err)
			continue
		}
		deleted++
		thumbPath := filepath.Join(c.thumbsDir, name)
		_ = os.Remove(thumbPath)
	}

	metrics.GCFilesDeletedTotal.WithLabelValues("disk_pressure").Add(float64(deleted))
	slog.Warn("gc: disk pressure sweep ran", "usage_ratio", ratio, "deleted", deleted)
	return nil
}

func (c *Collector) purgeOlderThan(dir string, now time.Time, window time.Duration, sweepLabel string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	deleted := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= window {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("gc: purge failed", "path", path, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		metrics.GCFilesDeletedTotal.WithLabelValues(sweepLabel).Add(float64(deleted))
	}
	return deleted
}

func diskUsageRatio(dir string) (float64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	if total == 0 {
		return 0, nil
	}
	used := total - free
	return float64(used) / float64(total), nil
}

func filesSortedByAge(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type aged struct {
		name string
		mod  time.Time
	}
	var files []aged
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, aged{name: e.Name(), mod: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}
