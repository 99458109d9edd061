// Package interfaces defines the core contracts and types of the model registry,
// separating interface definitions from their implementations.
//
// # Registry Types
//
// ModelRecord: Metadata and lifecycle status of one model artifact. Records are
// owned by the registry and only change through its status transitions.
//
// ModelStatus: One of CREATED, UPLOADING, ACTIVE, INACTIVE or "ERROR: <reason>".
// CanTransition encodes which moves between states are allowed.
//
// ModelRegistry: The operations the HTTP layer consumes (create, get, list,
// delete, upload, download, activate, deactivate, verify).
//
// # Storage Interfaces
//
// StorageBackend: Moves a local file to and from a durable location addressed by
// a namespace (bucket) and an object key, returning a scheme-prefixed URI.
// Variants live in the storage package (file, S3, IPFS, Vault, memory).
//
// ObjectDeleter: Optional capability for backends able to remove objects.
//
// LocalObject: A caller-owned temporary file returned by downloads. Closing it
// removes the file.
//
// # Object Keys
//
// Artifacts are stored at models/{id}/{version}.model. This layout is the only
// coupling between the registry and the serving process and must not change.
//
// # Errors
//
// All failures are reported through the sentinel errors declared here and can be
// matched with errors.Is: ErrModelNotFound, ErrDuplicateModelID,
// ErrUploadInProgress, ErrInvalidTransition, ErrInvalidInput, ErrObjectNotFound,
// ErrStorageIO, ErrBackendUnavailable and ErrInvalidLocationURI.
package interfaces
