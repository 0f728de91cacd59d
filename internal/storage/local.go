package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
)

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

const artifactsDir = "artifacts"

// LocalStorage implements the Storage interface using local disk.
// Workspaces live directly under the root directory, one per job id;
// artifacts live in its artifacts subdirectory. It does not support S3
// uploads unless wrapped by S3Storage.
type LocalStorage struct {
	root      string
	logger    *slog.Logger
	removeAll func(string) error
}

// Option configures a LocalStorage.
type Option func(*LocalStorage)

// WithLogger sets the logger used to report cleanup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *LocalStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewLocalStorage creates a new LocalStorage rooted at root.
// If root is empty, a sticker-bridge directory under os.TempDir() is used.
// The directories are created if they don't exist.
func NewLocalStorage(root string, opts ...Option) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "sticker-bridge")
	}

	if err := os.MkdirAll(filepath.Join(root, artifactsDir), 0750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &LocalStorage{
		root:      root,
		logger:    slog.Default(),
		removeAll: os.RemoveAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the storage root directory.
func (s *LocalStorage) Root() string {
	return s.root
}

// WithWorkspace implements Workspaces.
func (s *LocalStorage) WithWorkspace(ctx context.Context, jobID string, fn func(dir string) error) error {
	if jobID == "" || jobID != filepath.Base(jobID) || jobID == "." || jobID == ".." || jobID == artifactsDir {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	defer func() {
		if err := s.removeAll(dir); err != nil {
			s.logger.Warn("failed to remove workspace",
				slog.String("job_id", jobID),
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
	}()

	return fn(dir)
}

// SaveArtifact writes data to a uniquely named file that keeps name's
// extension and returns the file path.
func (s *LocalStorage) SaveArtifact(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." {
		stem = "artifact"
	}

	f, err := os.CreateTemp(filepath.Join(s.root, artifactsDir), stem+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}

	path := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write artifact file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close artifact file: %w", err)
	}

	return path, nil
}

// LoadArtifact opens a stored artifact.
func (s *LocalStorage) LoadArtifact(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	f, err := os.Open(path) // #nosec G304 - path is recorded by the job service
	if err != nil {
		return nil, fmt.Errorf("open artifact file: %w", err)
	}
	return f, nil
}

// RemoveArtifacts deletes the given files. Missing files are not errors.
func (s *LocalStorage) RemoveArtifacts(ctx context.Context, paths []string) error {
	var errs error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, fmt.Errorf("context cancelled: %w", err))
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = multierr.Append(errs, fmt.Errorf("remove artifact %s: %w", p, err))
		}
	}
	return errs
}

// Upload is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Upload(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
