package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directories if not exist", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "nested", "root")

		s, err := NewLocalStorage(root)
		require.NoError(t, err)
		assert.Equal(t, root, s.Root())

		info, err := os.Stat(filepath.Join(root, artifactsDir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		s, err := NewLocalStorage("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(os.TempDir(), "sticker-bridge"), s.Root())
	})
}

func TestLocalStorage_WithWorkspace(t *testing.T) {
	ctx := context.Background()

	t.Run("directory exists during body and is removed after success", func(t *testing.T) {
		s := setupTestStorage(t)
		var seen string

		err := s.WithWorkspace(ctx, "job-1", func(dir string) error {
			seen = dir
			info, err := os.Stat(dir)
			require.NoError(t, err)
			assert.True(t, info.IsDir())
			return os.WriteFile(filepath.Join(dir, "frame_00001.png"), []byte("x"), 0600)
		})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(s.Root(), "job-1"), seen)
		assert.NoDirExists(t, seen)
	})

	t.Run("body error propagates unchanged and directory is removed", func(t *testing.T) {
		s := setupTestStorage(t)
		bodyErr := errors.New("decode failed")
		var seen string

		err := s.WithWorkspace(ctx, "job-2", func(dir string) error {
			seen = dir
			return bodyErr
		})
		assert.Same(t, bodyErr, err)
		assert.NoDirExists(t, seen)
	})

	t.Run("directory is removed when body panics", func(t *testing.T) {
		s := setupTestStorage(t)
		var seen string

		assert.Panics(t, func() {
			_ = s.WithWorkspace(ctx, "job-3", func(dir string) error {
				seen = dir
				panic("boom")
			})
		})
		assert.NoDirExists(t, seen)
	})

	t.Run("removal failure is logged, not surfaced", func(t *testing.T) {
		var logs bytes.Buffer
		s := setupTestStorage(t)
		s.logger = slog.New(slog.NewTextHandler(&logs, nil))
		s.removeAll = func(string) error { return errors.New("device busy") }

		err := s.WithWorkspace(ctx, "job-4", func(string) error { return nil })
		require.NoError(t, err)
		assert.Contains(t, logs.String(), "failed to remove workspace")
		assert.Contains(t, logs.String(), "device busy")

		bodyErr := errors.New("body failed")
		err = s.WithWorkspace(ctx, "job-5", func(string) error { return bodyErr })
		assert.Same(t, bodyErr, err)
	})

	t.Run("concurrent jobs get distinct directories", func(t *testing.T) {
		s := setupTestStorage(t)
		dirs := make(chan string, 2)
		done := make(chan struct{})

		go func() {
			_ = s.WithWorkspace(ctx, "job-a", func(dir string) error {
				dirs <- dir
				<-done
				return nil
			})
		}()
		err := s.WithWorkspace(ctx, "job-b", func(dir string) error {
			dirs <- dir
			return nil
		})
		require.NoError(t, err)
		first, second := <-dirs, <-dirs
		close(done)
		assert.NotEqual(t, first, second)
	})

	t.Run("rejects ids that are not a single path element", func(t *testing.T) {
		s := setupTestStorage(t)
		for _, id := range []string{"", ".", "..", "../escape", "a/b", artifactsDir} {
			called := false
			err := s.WithWorkspace(ctx, id, func(string) error {
				called = true
				return nil
			})
			assert.ErrorIs(t, err, ErrInvalidJobID, "id %q", id)
			assert.False(t, called)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		s := setupTestStorage(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := s.WithWorkspace(cctx, "job-6", func(string) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
		assert.NoDirExists(t, filepath.Join(s.Root(), "job-6"))
	})
}

func TestLocalStorage_SaveArtifact(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	t.Run("keeps extension and content", func(t *testing.T) {
		path, err := s.SaveArtifact(ctx, "Cats abc123.png", strings.NewReader("png data"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(filepath.Base(path), "Cats abc123_"))
		assert.Equal(t, ".png", filepath.Ext(path))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "png data", string(content))
	})

	t.Run("strips directories from the name", func(t *testing.T) {
		path, err := s.SaveArtifact(ctx, "../../evil.json", strings.NewReader("{}"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(s.Root(), artifactsDir), filepath.Dir(path))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.SaveArtifact(cctx, "x.png", strings.NewReader("data"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocalStorage_LoadArtifact(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	path, err := s.SaveArtifact(ctx, "load.json", strings.NewReader(`{"nm":"x"}`))
	require.NoError(t, err)

	reader, err := s.LoadArtifact(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, `{"nm":"x"}`, string(content))

	_, err = s.LoadArtifact(ctx, "/non/existent/file")
	assert.Error(t, err)
}

func TestLocalStorage_RemoveArtifacts(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files and ignores missing ones", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			path, err := s.SaveArtifact(ctx, "cleanup.png", strings.NewReader("data"))
			require.NoError(t, err)
			paths = append(paths, path)
		}
		paths = append(paths, "/non/existent/file")

		require.NoError(t, s.RemoveArtifacts(ctx, paths))
		for _, p := range paths {
			assert.NoFileExists(t, p)
		}
	})

	t.Run("combines failures", func(t *testing.T) {
		dir := t.TempDir()
		nonEmpty := filepath.Join(dir, "a")
		require.NoError(t, os.MkdirAll(filepath.Join(nonEmpty, "child"), 0750))
		other := filepath.Join(dir, "b")
		require.NoError(t, os.MkdirAll(filepath.Join(other, "child"), 0750))

		err := s.RemoveArtifacts(ctx, []string{nonEmpty, other})
		require.Error(t, err)
		assert.Contains(t, err.Error(), nonEmpty)
		assert.Contains(t, err.Error(), other)
	})
}

func TestLocalStorage_Upload(t *testing.T) {
	s := setupTestStorage(t)

	_, err := s.Upload(context.Background(), "key", strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrS3NotConfigured)
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()

	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}
