package server

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/maauso/sticker-bridge/internal/convert"
	"github.com/maauso/sticker-bridge/internal/job"
	"github.com/maauso/sticker-bridge/internal/storage"
)

// Compile-time checks that the HTTP adapters implement the job ports.
var (
	_ job.Deliverer = (*StorageDeliverer)(nil)
	_ job.Notifier  = NopNotifier{}
)

// StorageDeliverer delivers HTTP job artifacts into storage: S3 when
// uploads are enabled, the local artifact directory otherwise.
type StorageDeliverer struct {
	store  storage.Storage
	upload bool
}

// NewStorageDeliverer creates a new StorageDeliverer.
func NewStorageDeliverer(store storage.Storage, upload bool) *StorageDeliverer {
	return &StorageDeliverer{store: store, upload: upload}
}

// Deliver stores the artifact and returns its URL or local path.
func (d *StorageDeliverer) Deliver(ctx context.Context, j *job.Job, artifact convert.Artifact) (string, error) {
	if d.upload {
		key := path.Join("artifacts", j.ID, artifact.FileName)
		url, err := d.store.Upload(ctx, key, bytes.NewReader(artifact.Data))
		if err != nil {
			return "", fmt.Errorf("upload artifact: %w", err)
		}
		return url, nil
	}

	p, err := d.store.SaveArtifact(ctx, artifact.FileName, bytes.NewReader(artifact.Data))
	if err != nil {
		return "", fmt.Errorf("save artifact: %w", err)
	}
	return p, nil
}

// NopNotifier is the Notifier for requests that have no chat to talk to.
type NopNotifier struct{}

// Placeholder does nothing.
func (NopNotifier) Placeholder(context.Context, int64, string) (int, error) { return 0, nil }

// Replace does nothing.
func (NopNotifier) Replace(context.Context, int64, int, string) error { return nil }

// Retract does nothing.
func (NopNotifier) Retract(context.Context, int64, int) error { return nil }

// JobPruner removes finished jobs.
type JobPruner interface {
	PruneJobs(ctx context.Context, maxAge time.Duration) ([]*job.Job, error)
}

// Janitor periodically forgets finished jobs and deletes their local artifacts.
type Janitor struct {
	jobs   JobPruner
	store  storage.Storage
	maxAge time.Duration
	logger *slog.Logger
}

// NewJanitor creates a new Janitor.
func NewJanitor(jobs JobPruner, store storage.Storage, maxAge time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{jobs: jobs, store: store, maxAge: maxAge, logger: logger}
}

// Sweep prunes once.
func (j *Janitor) Sweep(ctx context.Context) error {
	removed, err := j.jobs.PruneJobs(ctx, j.maxAge)
	if err != nil {
		return err
	}

	var paths []string
	for _, rj := range removed {
		if p := rj.ArtifactLocation; filepath.IsAbs(p) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	return j.store.RemoveArtifacts(ctx, paths)
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Sweep(ctx); err != nil {
				j.logger.Warn("job sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
