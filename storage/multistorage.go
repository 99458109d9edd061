package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/model-registry-backend/interfaces"
)

// MultiStorageBackend replicates artifacts across several backends.
// Uploads go to every available backend; downloads are served by the first
// backend that has the object.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new replicating backend over backends, in priority order.
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Upload stores localPath in every available backend. It succeeds if at least
// one backend stored the object and returns the location reported by the
// first backend that succeeded.
func (m *MultiStorageBackend) Upload(ctx context.Context, localPath string, namespace string, objectKey string) (string, error) {
	start := time.Now()
	var location string
	var errs []error

	for _, backend := range m.backends {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("key", objectKey))
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		loc, err := backend.Upload(ctx, localPath, namespace, objectKey)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				slog.String("key", objectKey),
				"err", err)
			continue
		}

		if location == "" {
			location = loc
			m.log.Info("Successfully stored object",
				slog.String("backend_name", backend.Name()),
				slog.String("location", loc),
				slog.Duration("duration", time.Since(start)))
		}
	}

	if location == "" {
		m.log.Error("All backends failed to store object",
			slog.String("key", objectKey),
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: all backends failed to store %s: %v", interfaces.ErrStorageIO, objectKey, errors.Join(errs...))
	}

	return location, nil
}

// Download returns the object from the first available backend that has it.
// ErrObjectNotFound is only returned when every backend reported the object missing.
func (m *MultiStorageBackend) Download(ctx context.Context, namespace string, objectKey string) (*interfaces.LocalObject, error) {
	start := time.Now()
	var errs []error
	allNotFound := true

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("key", objectKey))
			allNotFound = false
			continue
		}

		obj, err := backend.Download(ctx, namespace, objectKey)
		if err == nil {
			m.log.Info("Successfully fetched object",
				slog.String("backend_name", backend.Name()),
				slog.String("key", objectKey),
				slog.Duration("duration", time.Since(start)))
			return obj, nil
		}

		if !errors.Is(err, interfaces.ErrObjectNotFound) {
			allNotFound = false
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("key", objectKey),
			"err", err)
	}

	if len(m.backends) > 0 && allNotFound {
		return nil, interfaces.ErrObjectNotFound
	}

	m.log.Error("All backends failed to fetch object",
		slog.String("key", objectKey),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("%w: all backends failed to fetch %s: %v", interfaces.ErrStorageIO, objectKey, errors.Join(errs...))
}

// Stat checks the backends in the same order as Download and reports the
// first one holding the object.
func (m *MultiStorageBackend) Stat(ctx context.Context, namespace string, objectKey string) (int64, error) {
	var errs []error
	allNotFound := true

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			allNotFound = false
			continue
		}

		size, err := interfaces.StatObject(ctx, backend, namespace, objectKey)
		if err == nil {
			return size, nil
		}
		if !errors.Is(err, interfaces.ErrObjectNotFound) {
			allNotFound = false
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
	}

	if len(m.backends) > 0 && allNotFound {
		return 0, interfaces.ErrObjectNotFound
	}
	return 0, fmt.Errorf("%w: all backends failed to stat %s: %v", interfaces.ErrStorageIO, objectKey, errors.Join(errs...))
}

// Delete removes the object from every backend that supports deletion.
func (m *MultiStorageBackend) Delete(ctx context.Context, namespace string, objectKey string) error {
	var errs []error
	for _, backend := range m.backends {
		deleter, ok := backend.(interfaces.ObjectDeleter)
		if !ok {
			continue
		}
		if err := deleter.Delete(ctx, namespace, objectKey); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Available checks if any backend is available
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI combines the location URIs of all wrapped backends.
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
