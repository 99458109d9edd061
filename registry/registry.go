package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/model-registry-backend/interfaces"
	"github.com/ruteri/model-registry-backend/metrics"
)

// Registry is the in-memory catalog of model records. A single reader/writer
// lock guards the whole table; backend I/O never runs while it is held.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*interfaces.ModelRecord

	backend       interfaces.StorageBackend
	namespace     string
	cascadeDelete bool
	now           func() time.Time
	newID         func() string
	log           *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithNamespace sets the namespace (bucket) artifacts are uploaded to.
func WithNamespace(namespace string) Option {
	return func(r *Registry) {
		r.namespace = namespace
	}
}

// WithCascadeDelete makes Delete remove the stored artifact as well, provided
// the backend implements interfaces.ObjectDeleter.
func WithCascadeDelete(enabled bool) Option {
	return func(r *Registry) {
		r.cascadeDelete = enabled
	}
}

// WithClock replaces the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithIDGenerator replaces the record id generator.
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) {
		r.newID = newID
	}
}

// New creates an empty registry storing artifacts in backend.
func New(backend interfaces.StorageBackend, log *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		records:   make(map[string]*interfaces.ModelRecord),
		backend:   backend,
		namespace: interfaces.DefaultNamespace,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		log:       log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create inserts a new record in status Created.
// Returns ErrDuplicateModelID if the generated id is already taken.
func (r *Registry) Create(ctx context.Context, name, version string) (interfaces.ModelRecord, error) {
	if err := interfaces.ValidateModelName(name); err != nil {
		return interfaces.ModelRecord{}, err
	}
	if err := interfaces.ValidateModelVersion(version); err != nil {
		return interfaces.ModelRecord{}, err
	}

	id := r.newID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; exists {
		return interfaces.ModelRecord{}, fmt.Errorf("%w: %s", interfaces.ErrDuplicateModelID, id)
	}

	now := r.now()
	record := &interfaces.ModelRecord{
		ID:        id,
		Name:      name,
		Version:   version,
		Status:    interfaces.Created,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.records[id] = record
	r.updateStatusMetrics()

	r.log.Info("Model created",
		slog.String("id", id),
		slog.String("name", name),
		slog.String("version", version))

	return *record, nil
}

// Get returns a snapshot of the record or ErrModelNotFound.
func (r *Registry) Get(ctx context.Context, id string) (interfaces.ModelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return interfaces.ModelRecord{}, fmt.Errorf("%w: %s", interfaces.ErrModelNotFound, id)
	}
	return *record, nil
}

// List returns a snapshot of every record, oldest first.
func (r *Registry) List(ctx context.Context) []interfaces.ModelRecord {
	r.mu.RLock()
	records := make([]interfaces.ModelRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, *record)
	}
	r.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

// Delete removes the record and reports whether it was present.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	record, ok := r.records[id]
	if ok {
		delete(r.records, id)
		r.updateStatusMetrics()
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.log.Info("Model deleted", slog.String("id", id))

	if r.cascadeDelete && record.Status.State != interfaces.StatusUploading {
		r.deleteArtifact(ctx, id, record.ObjectKey())
	}
	return true
}

// UploadArtifact stores the file at localPath as the record's artifact and
// marks the record Active. The record is Uploading while the transfer runs; a
// second upload for the same id fails with ErrUploadInProgress. If the backend
// fails or ctx is cancelled the record's status and updated_at are restored.
func (r *Registry) UploadArtifact(ctx context.Context, id string, localPath string) (string, error) {
	prior, objectKey, err := r.beginUpload(id)
	if err != nil {
		return "", err
	}

	start := time.Now()
	location, uploadErr := r.backend.Upload(ctx, localPath, r.namespace, objectKey)
	duration := time.Since(start)

	return r.finishUpload(ctx, id, objectKey, prior, location, uploadErr, duration)
}

// UploadArtifactFrom spools src into a temporary file and uploads it.
func (r *Registry) UploadArtifactFrom(ctx context.Context, id string, src io.Reader) (string, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return "", err
	}

	obj, err := interfaces.LocalObjectFromReader(src, "model-upload-*")
	if err != nil {
		return "", err
	}
	defer obj.Close()

	return r.UploadArtifact(ctx, id, obj.Path())
}

// DownloadArtifact fetches the artifact of an Active or Inactive record.
// The caller must Close the returned object.
func (r *Registry) DownloadArtifact(ctx context.Context, id string) (*interfaces.LocalObject, error) {
	record, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch record.Status.State {
	case interfaces.StatusActive, interfaces.StatusInactive:
	default:
		return nil, fmt.Errorf("%w: model %s has no stored artifact (status %s)", interfaces.ErrInvalidTransition, id, record.Status)
	}

	return r.backend.Download(ctx, r.namespace, record.ObjectKey())
}

// Activate moves an Inactive record back to Active.
func (r *Registry) Activate(ctx context.Context, id string) (interfaces.ModelRecord, error) {
	return r.transition(id, interfaces.StatusInactive, interfaces.Active)
}

// Deactivate moves an Active record to Inactive.
func (r *Registry) Deactivate(ctx context.Context, id string) (interfaces.ModelRecord, error) {
	return r.transition(id, interfaces.StatusActive, interfaces.Inactive)
}

// Verify checks that the artifact of an Active record is still present in the
// backend. A missing artifact moves the record to Error. Other backend errors
// are returned without changing the record. Backends implementing
// interfaces.ObjectStater are asked for metadata only; others are downloaded.
func (r *Registry) Verify(ctx context.Context, id string) (interfaces.ModelRecord, error) {
	record, err := r.Get(ctx, id)
	if err != nil {
		return interfaces.ModelRecord{}, err
	}
	if record.Status.State != interfaces.StatusActive {
		return interfaces.ModelRecord{}, fmt.Errorf("%w: only ACTIVE models can be verified, model %s is %s", interfaces.ErrInvalidTransition, id, record.Status)
	}

	_, err = interfaces.StatObject(ctx, r.backend, r.namespace, record.ObjectKey())
	if err == nil {
		return r.Get(ctx, id)
	}
	if !errors.Is(err, interfaces.ErrObjectNotFound) {
		return interfaces.ModelRecord{}, err
	}

	r.log.Warn("Model artifact missing from storage",
		slog.String("id", id),
		slog.String("key", record.ObjectKey()),
		slog.String("backend", r.backend.Name()))

	return r.transition(id, interfaces.StatusActive, interfaces.ErrorStatus("artifact missing: "+record.ObjectKey()))
}

// uploadSnapshot is what a failed upload restores.
type uploadSnapshot struct {
	status    interfaces.ModelStatus
	updatedAt time.Time
}

func (r *Registry) beginUpload(id string) (uploadSnapshot, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return uploadSnapshot{}, "", fmt.Errorf("%w: %s", interfaces.ErrModelNotFound, id)
	}
	if record.Status.State == interfaces.StatusUploading {
		return uploadSnapshot{}, "", fmt.Errorf("%w: model %s", interfaces.ErrUploadInProgress, id)
	}
	if !interfaces.CanTransition(record.Status.State, interfaces.StatusUploading) {
		return uploadSnapshot{}, "", fmt.Errorf("%w: %s -> %s", interfaces.ErrInvalidTransition, record.Status, interfaces.Uploading)
	}

	prior := uploadSnapshot{status: record.Status, updatedAt: record.UpdatedAt}
	record.Status = interfaces.Uploading
	record.UpdatedAt = r.nextTimestamp(record.UpdatedAt)
	r.updateStatusMetrics()

	return prior, record.ObjectKey(), nil
}

func (r *Registry) finishUpload(ctx context.Context, id, objectKey string, prior uploadSnapshot, location string, uploadErr error, duration time.Duration) (string, error) {
	backendName := r.backend.Name()

	r.mu.Lock()
	record, ok := r.records[id]
	if !ok || record.Status.State != interfaces.StatusUploading {
		r.mu.Unlock()
		r.log.Warn("Model deleted during upload",
			slog.String("id", id),
			slog.String("backend", backendName))
		metrics.RecordUpload(backendName, metrics.ResultFailure, duration)
		if uploadErr == nil && r.cascadeDelete {
			r.deleteArtifact(context.WithoutCancel(ctx), id, objectKey)
		}
		return "", fmt.Errorf("%w: %s", interfaces.ErrModelNotFound, id)
	}

	if uploadErr != nil {
		record.Status = prior.status
		record.UpdatedAt = prior.updatedAt
		r.updateStatusMetrics()
		r.mu.Unlock()

		result := metrics.ResultFailure
		if errors.Is(uploadErr, context.Canceled) || errors.Is(uploadErr, context.DeadlineExceeded) {
			result = metrics.ResultCanceled
		}
		metrics.RecordUpload(backendName, result, duration)

		r.log.Error("Model upload failed",
			slog.String("id", id),
			slog.String("backend", backendName),
			slog.Duration("duration", duration),
			"err", uploadErr)
		return "", uploadErr
	}

	record.Status = interfaces.Active
	record.UpdatedAt = r.nextTimestamp(record.UpdatedAt)
	r.updateStatusMetrics()
	r.mu.Unlock()

	metrics.RecordUpload(backendName, metrics.ResultSuccess, duration)
	r.log.Info("Model uploaded",
		slog.String("id", id),
		slog.String("location", location),
		slog.Duration("duration", duration))

	return location, nil
}

// transition applies an externally requested status change. The record must
// currently be in state from.
func (r *Registry) transition(id string, from interfaces.StatusState, to interfaces.ModelStatus) (interfaces.ModelRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return interfaces.ModelRecord{}, fmt.Errorf("%w: %s", interfaces.ErrModelNotFound, id)
	}
	if record.Status.State != from || !interfaces.CanTransition(from, to.State) {
		return interfaces.ModelRecord{}, fmt.Errorf("%w: %s -> %s", interfaces.ErrInvalidTransition, record.Status, to)
	}

	record.Status = to
	record.UpdatedAt = r.nextTimestamp(record.UpdatedAt)
	r.updateStatusMetrics()

	r.log.Info("Model status changed",
		slog.String("id", id),
		slog.String("status", to.String()))

	return *record, nil
}

func (r *Registry) deleteArtifact(ctx context.Context, id, objectKey string) {
	deleter, ok := r.backend.(interfaces.ObjectDeleter)
	if !ok {
		r.log.Warn("Storage backend cannot delete artifacts",
			slog.String("id", id),
			slog.String("backend", r.backend.Name()))
		return
	}
	if err := deleter.Delete(ctx, r.namespace, objectKey); err != nil {
		r.log.Error("Failed to delete model artifact",
			slog.String("id", id),
			slog.String("key", objectKey),
			"err", err)
	}
}

// nextTimestamp returns the current time, or prev+1ns if the clock has not
// advanced past prev. Must be called with the lock held.
func (r *Registry) nextTimestamp(prev time.Time) time.Time {
	now := r.now()
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

// updateStatusMetrics must be called with the lock held.
func (r *Registry) updateStatusMetrics() {
	counts := map[string]int{
		interfaces.StatusCreated.String():   0,
		interfaces.StatusUploading.String(): 0,
		interfaces.StatusActive.String():    0,
		interfaces.StatusInactive.String():  0,
		interfaces.StatusError.String():     0,
	}
	for _, record := range r.records {
		counts[record.Status.State.String()]++
	}
	metrics.SetModelCounts(counts)
}
