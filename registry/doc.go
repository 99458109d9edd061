// Package registry implements the in-memory catalog of model records and the
// upload workflow that moves a record from Created to Active.
//
// The Registry owns a single table of records guarded by a reader/writer lock.
// Reads (Get, List) run concurrently; every mutation takes the lock
// exclusively. Artifact transfer is delegated to an interfaces.StorageBackend
// chosen at startup and always runs with the lock released:
//
//  1. Under the lock the record is looked up and moved to Uploading. A record
//     that is already Uploading rejects the request with ErrUploadInProgress.
//  2. Without the lock the backend uploads the file to
//     models/{id}/{version}.model in the configured namespace.
//  3. Under the lock the record becomes Active with a strictly newer
//     updated_at, or, if the backend failed or the context was cancelled,
//     gets back its previous status and updated_at.
//
// # Status Lifecycle
//
//	CREATED   -> UPLOADING
//	UPLOADING -> ACTIVE | previous status
//	ACTIVE    -> UPLOADING | INACTIVE | ERROR
//	INACTIVE  -> UPLOADING | ACTIVE
//	ERROR     -> UPLOADING
//
// ERROR is set by Verify when the backend no longer has the artifact of an
// ACTIVE record.
//
// # Deletion
//
// Delete only removes the record by default. WithCascadeDelete(true) also
// removes the stored artifact when the backend implements
// interfaces.ObjectDeleter; failures are logged since the record is already gone.
//
// The table is not persisted: a restarted process starts empty while the
// artifacts stay in the backend.
package registry
