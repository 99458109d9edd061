package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	// ModelObjectExtension is the file extension the serving process scans for.
	ModelObjectExtension = ".model"

	// DefaultNamespace is the bucket / namespace artifacts are stored under.
	DefaultNamespace = "ml-platform-models"
)

var (
	// ErrModelNotFound is returned for an unknown model id.
	ErrModelNotFound = errors.New("model not found")

	// ErrDuplicateModelID is returned when an insert would overwrite an existing record.
	ErrDuplicateModelID = errors.New("model with this ID already exists")

	// ErrUploadInProgress is returned when an upload for the same model is already running.
	ErrUploadInProgress = errors.New("upload already in progress")

	// ErrInvalidTransition is returned when the requested status change is not allowed
	// from the record's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// StatusState enumerates the lifecycle states of a model record.
type StatusState int

const (
	StatusCreated StatusState = iota
	StatusUploading
	StatusActive
	StatusInactive
	StatusError
)

// String returns the wire name of the state.
func (s StatusState) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusUploading:
		return "UPLOADING"
	case StatusActive:
		return "ACTIVE"
	case StatusInactive:
		return "INACTIVE"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ModelStatus is the lifecycle status of a record. Reason is only set for StatusError.
type ModelStatus struct {
	State  StatusState
	Reason string
}

var (
	Created   = ModelStatus{State: StatusCreated}
	Uploading = ModelStatus{State: StatusUploading}
	Active    = ModelStatus{State: StatusActive}
	Inactive  = ModelStatus{State: StatusInactive}
)

// ErrorStatus returns an error status carrying reason.
func ErrorStatus(reason string) ModelStatus {
	return ModelStatus{State: StatusError, Reason: reason}
}

// String renders the status as CREATED, ACTIVE, ... or "ERROR: <reason>".
func (s ModelStatus) String() string {
	if s.State == StatusError {
		return fmt.Sprintf("ERROR: %s", s.Reason)
	}
	return s.State.String()
}

// ParseModelStatus is the inverse of ModelStatus.String.
func ParseModelStatus(s string) (ModelStatus, error) {
	if reason, ok := strings.CutPrefix(s, "ERROR: "); ok {
		return ErrorStatus(reason), nil
	}
	for _, st := range []StatusState{StatusCreated, StatusUploading, StatusActive, StatusInactive} {
		if s == st.String() {
			return ModelStatus{State: st}, nil
		}
	}
	return ModelStatus{}, fmt.Errorf("%w: unknown model status %q", ErrInvalidInput, s)
}

func (s ModelStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ModelStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseModelStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// allowedTransitions lists, per state, the states a record may move to.
var allowedTransitions = map[StatusState][]StatusState{
	StatusCreated:   {StatusUploading},
	StatusUploading: {StatusActive, StatusCreated, StatusInactive, StatusError},
	StatusActive:    {StatusUploading, StatusInactive, StatusError},
	StatusInactive:  {StatusUploading, StatusActive},
	StatusError:     {StatusUploading},
}

// CanTransition reports whether a record in status from may move to status to.
// Uploading may only fall back to the states an upload can start from.
func CanTransition(from, to StatusState) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ModelRecord is the registry's view of one model artifact.
type ModelRecord struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Version   string      `json:"version"`
	Status    ModelStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ObjectKey returns the storage key of the record's artifact.
func (r ModelRecord) ObjectKey() string {
	return ModelObjectKey(r.ID, r.Version)
}

// ModelObjectKey derives the storage key models/{id}/{version}.model.
func ModelObjectKey(id, version string) string {
	return path.Join("models", id, version+ModelObjectExtension)
}

// ValidateModelName checks a caller supplied model name.
func ValidateModelName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidInput)
	}
	return nil
}

// ValidateModelVersion checks that version can be used as a single path segment.
func ValidateModelVersion(version string) error {
	switch {
	case strings.TrimSpace(version) == "":
		return fmt.Errorf("%w: model version must not be empty", ErrInvalidInput)
	case version == "." || version == "..":
		return fmt.Errorf("%w: model version %q is reserved", ErrInvalidInput, version)
	case strings.ContainsAny(version, "/\\\x00"):
		return fmt.Errorf("%w: model version %q must not contain path separators", ErrInvalidInput, version)
	}
	return nil
}

// ModelRegistry is the set of operations the HTTP layer consumes.
type ModelRegistry interface {
	Create(ctx context.Context, name, version string) (ModelRecord, error)
	Get(ctx context.Context, id string) (ModelRecord, error)
	List(ctx context.Context) []ModelRecord
	Delete(ctx context.Context, id string) bool
	UploadArtifact(ctx context.Context, id string, localPath string) (string, error)
	UploadArtifactFrom(ctx context.Context, id string, r io.Reader) (string, error)
	DownloadArtifact(ctx context.Context, id string) (*LocalObject, error)
	Activate(ctx context.Context, id string) (ModelRecord, error)
	Deactivate(ctx context.Context, id string) (ModelRecord, error)
	Verify(ctx context.Context, id string) (ModelRecord, error)
}
