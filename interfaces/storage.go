package interfaces

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
)

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname (bucket for s3)
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   *url.Userinfo
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "ipfs", "vault", "memory":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   parsed.User,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// IsFile checks if this is a file system storage location.
func (loc StorageBackendLocation) IsFile() bool {
	return loc.Scheme == "file"
}

// IsS3 checks if this is an S3 storage location.
func (loc StorageBackendLocation) IsS3() bool {
	return loc.Scheme == "s3"
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrObjectNotFound is returned when the requested object does not exist in the storage backend.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStorageIO is returned when a backend cannot read the source or write the destination.
	// This covers unreadable local files, unwritable directories, network and service failures.
	ErrStorageIO = errors.New("storage i/o failure")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend moves artifact bytes between a local file and a durable
// location addressed by (namespace, objectKey). Implementations hold no
// mutable state after construction and are safe for concurrent use.
type StorageBackend interface {
	// Upload copies the full contents of localPath to (namespace, objectKey)
	// and returns a scheme-prefixed URI for the stored object. A non-nil
	// error means the object must be treated as not written.
	Upload(ctx context.Context, localPath string, namespace string, objectKey string) (string, error)

	// Download materializes (namespace, objectKey) into a fresh temporary
	// file. The caller must Close the returned object to release it.
	// Returns ErrObjectNotFound if the object does not exist.
	Download(ctx context.Context, namespace string, objectKey string) (*LocalObject, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// ObjectDeleter is implemented by backends able to remove stored objects.
// Deleting a missing object is not an error.
type ObjectDeleter interface {
	Delete(ctx context.Context, namespace string, objectKey string) error
}

// ObjectStater is implemented by backends able to check an object without
// fetching it. Stat returns the stored size or ErrObjectNotFound.
type ObjectStater interface {
	Stat(ctx context.Context, namespace string, objectKey string) (int64, error)
}

// StatObject checks an object through ObjectStater when backend implements
// it, otherwise by downloading and measuring it.
func StatObject(ctx context.Context, backend StorageBackend, namespace string, objectKey string) (int64, error) {
	if stater, ok := backend.(ObjectStater); ok {
		return stater.Stat(ctx, namespace, objectKey)
	}
	obj, err := backend.Download(ctx, namespace, objectKey)
	if err != nil {
		return 0, err
	}
	defer obj.Close()
	return obj.Size()
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports file://, s3://, ipfs://, vault://, memory://
	StorageBackendFor(location StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates a replicating storage backend.
	CreateMultiBackend(locations []StorageBackendLocation) (StorageBackend, error)
}

// LocalObject is a temporary file owned by the caller. Close releases the
// handle and removes the file from disk.
type LocalObject struct {
	*os.File
	path   string
	closed bool
}

// NewLocalObject creates an empty temporary file in the default temp directory.
func NewLocalObject(pattern string) (*LocalObject, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create temporary file: %v", ErrStorageIO, err)
	}
	return &LocalObject{File: f, path: f.Name()}, nil
}

// LocalObjectFromReader spools r into a new temporary file and rewinds it.
func LocalObjectFromReader(r io.Reader, pattern string) (*LocalObject, error) {
	obj, err := NewLocalObject(pattern)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(obj, r); err != nil {
		obj.Close()
		return nil, fmt.Errorf("%w: failed to write temporary file: %w", ErrStorageIO, err)
	}
	if err := obj.Rewind(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// Path returns the location of the temporary file.
func (o *LocalObject) Path() string {
	return o.path
}

// Size returns the current size of the file in bytes.
func (o *LocalObject) Size() (int64, error) {
	info, err := o.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageIO, err)
	}
	return info.Size(), nil
}

// Rewind seeks back to the start of the file.
func (o *LocalObject) Rewind() error {
	if _, err := o.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: failed to rewind temporary file: %v", ErrStorageIO, err)
	}
	return nil
}

// Close closes the file and removes it. Safe to call more than once.
func (o *LocalObject) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	closeErr := o.File.Close()
	if err := os.Remove(o.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return closeErr
}
