package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruteri/model-registry-backend/interfaces"
)

// FileBackend implements a storage backend using the local file system.
// The namespace is ignored: every object lives under a single root directory.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file storage backend rooted at baseDir,
// creating the directory if it does not exist.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileBackend{
		baseDir:     absDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", absDir),
	}, nil
}

// Upload copies localPath to {baseDir}/{objectKey}. Parent directories are
// created on demand. Bytes are written to a temporary file next to the
// destination and renamed into place, so a failed upload never leaves a
// truncated object behind.
func (b *FileBackend) Upload(ctx context.Context, localPath string, namespace string, objectKey string) (string, error) {
	start := time.Now()

	destination, err := b.getFilePath(objectKey)
	if err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open source file: %v", interfaces.ErrStorageIO, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory: %v", interfaces.ErrStorageIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destination), filepath.Base(destination)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: failed to create temporary file: %v", interfaces.ErrStorageIO, err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: src})
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpPath, destination)
	}
	if err != nil {
		os.Remove(tmpPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: failed to write file: %v", interfaces.ErrStorageIO, err)
	}

	b.log.Debug("Stored object in file",
		slog.String("path", destination),
		slog.Int64("size", written),
		slog.Duration("duration", time.Since(start)))

	return fmt.Sprintf("local://%s", destination), nil
}

// Download copies {baseDir}/{objectKey} into a new temporary file.
// Returns ErrObjectNotFound if the file doesn't exist.
func (b *FileBackend) Download(ctx context.Context, namespace string, objectKey string) (*interfaces.LocalObject, error) {
	source, err := b.getFilePath(objectKey)
	if err != nil {
		return nil, err
	}

	src, err := os.Open(source)
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open file: %v", interfaces.ErrStorageIO, err)
	}
	defer src.Close()

	obj, err := interfaces.LocalObjectFromReader(&contextReader{ctx: ctx, r: src}, "model-download-*")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	b.log.Debug("Fetched object from file", slog.String("path", source))

	return obj, nil
}

// Stat returns the size of the stored file or ErrObjectNotFound.
func (b *FileBackend) Stat(ctx context.Context, namespace string, objectKey string) (int64, error) {
	target, err := b.getFilePath(objectKey)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		return 0, interfaces.ErrObjectNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: failed to stat file: %v", interfaces.ErrStorageIO, err)
	}
	return info.Size(), nil
}

// Delete removes {baseDir}/{objectKey}. Missing files are ignored.
func (b *FileBackend) Delete(ctx context.Context, namespace string, objectKey string) error {
	target, err := b.getFilePath(objectKey)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove file: %v", interfaces.ErrStorageIO, err)
	}

	// Drop the per-model directory once it is empty; a non-empty directory is left alone.
	os.Remove(filepath.Dir(target))

	b.log.Debug("Removed object from file", slog.String("path", target))
	return nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

// BaseDir returns the root directory objects are stored under.
func (b *FileBackend) BaseDir() string {
	return b.baseDir
}

// getFilePath joins objectKey onto the base directory, rejecting keys that
// would escape it.
func (b *FileBackend) getFilePath(objectKey string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(objectKey, "/")))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: object key %q escapes the storage root", interfaces.ErrInvalidInput, objectKey)
	}
	return filepath.Join(b.baseDir, cleaned), nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
