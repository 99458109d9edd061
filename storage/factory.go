package storage

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/model-registry-backend/interfaces"
)

// StorageBackendFactory creates storage backends from location URIs and
// manages multi-backend configurations for replicated storage.
type StorageBackendFactory struct {
	log        *slog.Logger
	passphrase string
}

// FactoryOption configures a StorageBackendFactory.
type FactoryOption func(*StorageBackendFactory)

// WithEncryptionPassphrase wraps every backend the factory creates in an
// EncryptedBackend keyed by passphrase.
func WithEncryptionPassphrase(passphrase string) FactoryOption {
	return func(sf *StorageBackendFactory) {
		sf.passphrase = passphrase
	}
}

// NewStorageBackendFactory creates a new factory instance that can create storage backends.
func NewStorageBackendFactory(logger *slog.Logger, opts ...FactoryOption) *StorageBackendFactory {
	sf := &StorageBackendFactory{log: logger}
	for _, opt := range opts {
		opt(sf)
	}
	return sf
}

// StorageBackendFor creates a storage backend from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:///abs/path - Local filesystem storage
//   - s3://[AK:SK@]bucket/?region=&endpoint=&path_style=true - Amazon S3 or compatible object storage
//   - ipfs://host:port/?timeout=30s - MFS of an IPFS node
//   - vault://host:port/mount?token=&tls=true - Vault KV v2
//   - memory:// - Process-local map
func (sf *StorageBackendFactory) StorageBackendFor(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	var backend interfaces.StorageBackend
	var err error

	switch strings.ToLower(location.Scheme) {
	case "file":
		backend, err = sf.createFileBackend(location)
	case "s3":
		backend, err = sf.createS3Backend(location)
	case "ipfs":
		backend, err = sf.createIPFSBackend(location)
	case "vault":
		backend, err = sf.createVaultBackend(location)
	case "memory":
		backend = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme: %s", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if sf.passphrase != "" {
		return NewEncryptedBackend(backend, sf.passphrase, sf.log)
	}
	return backend, nil
}

// CreateMultiBackend creates a replicating backend from a list of locations.
// Locations that fail to produce a backend are logged and skipped.
// Returns an error if no valid backends could be created.
func (sf *StorageBackendFactory) CreateMultiBackend(locations []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locations))

	for _, location := range locations {
		backend, err := sf.StorageBackendFor(location)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", location.String()))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no valid storage backends created", interfaces.ErrInvalidLocationURI)
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

// NamespaceFor picks the namespace to use with locations when none is
// configured. The namespace is the bucket for S3, so the bucket named by the
// first s3:// location wins; otherwise interfaces.DefaultNamespace.
func NamespaceFor(locations []interfaces.StorageBackendLocation) string {
	for _, location := range locations {
		if location.IsS3() && location.Host != "" {
			return location.Host
		}
	}
	return interfaces.DefaultNamespace
}

// createFileBackend handles file:///absolute/path and file://./relative/path.
func (sf *StorageBackendFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", location.String()))

	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI: %s", interfaces.ErrInvalidLocationURI, location.String())
	}

	return NewFileBackend(path, sf.log)
}

// createS3Backend handles s3://[ACCESS_KEY:SECRET_KEY@]bucket/?region=us-west-2&endpoint=http://minio:9000&path_style=true
// The host names the default bucket used when callers pass an empty namespace.
func (sf *StorageBackendFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating S3 backend", slog.String("bucket", location.Host))

	cfg := S3Config{
		Bucket:    location.Host,
		Region:    location.GetParam("region"),
		Endpoint:  location.GetParam("endpoint"),
		PathStyle: location.GetParamBool("path_style"),
	}

	if location.Auth != nil {
		cfg.AccessKey = location.Auth.Username()
		cfg.SecretKey, _ = location.Auth.Password()
		sf.log.Debug("Using embedded S3 credentials")
	}

	return NewS3Backend(cfg, sf.log)
}

// createIPFSBackend handles ipfs://host:port/?timeout=30s
func (sf *StorageBackendFactory) createIPFSBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating IPFS backend", slog.String("uri", location.String()))

	host, port, found := strings.Cut(location.Host, ":")
	if host == "" {
		return nil, fmt.Errorf("%w: missing IPFS host in %s", interfaces.ErrInvalidLocationURI, location.String())
	}
	if !found || port == "" {
		port = "5001"
	}

	timeout := 30 * time.Second
	if raw := location.GetParam("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid IPFS timeout %q: %v", interfaces.ErrInvalidLocationURI, raw, err)
		}
		timeout = parsed
	}

	return NewIPFSBackend(host, port, timeout, sf.log)
}

// createVaultBackend handles vault://host:port/mount?token=...&tls=true
// The mount defaults to "secret".
func (sf *StorageBackendFactory) createVaultBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating Vault backend", slog.String("host", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing Vault host", interfaces.ErrInvalidLocationURI)
	}

	scheme := "http"
	if location.GetParamBool("tls") {
		scheme = "https"
	}

	mount := strings.Trim(location.Path, "/")
	if mount == "" {
		mount = "secret"
	}

	return NewVaultBackend(fmt.Sprintf("%s://%s", scheme, location.Host), mount, location.GetParam("token"), nil, sf.log)
}
