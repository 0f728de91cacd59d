// Package storage provides job workspaces and artifact storage.
// It defines the Storage interface (port) and implementations for local
// disk and S3 storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// Static errors for storage operations.
var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrInvalidJobID is returned when a job id cannot name a workspace directory.
	ErrInvalidJobID = errors.New("invalid job id for workspace")
)

// Workspaces hands out scoped per-job scratch directories.
type Workspaces interface {
	// WithWorkspace creates a directory owned by jobID, runs fn with its
	// path and removes the directory afterwards on every exit path.
	// fn's error is returned unchanged; removal errors are only logged.
	WithWorkspace(ctx context.Context, jobID string, fn func(dir string) error) error
}

// Storage defines the interface for workspaces and converted artifacts.
type Storage interface {
	Workspaces

	// SaveArtifact stores data under a file name derived from name and
	// returns its local path.
	SaveArtifact(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadArtifact opens a stored artifact.
	// The caller is responsible for closing the returned ReadCloser.
	LoadArtifact(ctx context.Context, path string) (io.ReadCloser, error)

	// RemoveArtifacts deletes stored artifacts. It keeps going when some
	// removals fail and returns all failures combined.
	RemoveArtifacts(ctx context.Context, paths []string) error

	// Upload stores data in S3 and returns its public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
