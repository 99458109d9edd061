// Package storage moves model artifacts between local files and durable
// storage through pluggable backends.
//
// Every backend implements interfaces.StorageBackend and addresses objects by
// a (namespace, objectKey) pair:
//
//   - FileBackend stores objects under a local root directory
//   - S3Backend stores objects in Amazon S3 or an S3-compatible service; the namespace is the bucket
//   - IPFSBackend stores objects in the mutable file system of an IPFS node
//   - VaultBackend stores small objects in a Vault KV v2 mount
//   - MemoryBackend keeps objects in process memory
//
// Uploads are all-or-nothing: a backend that returns an error has not made a
// partial object visible at the destination.
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/models/
//   - s3://AKIA...:secret@ml-platform-models/?region=eu-west-1
//   - s3://ml-platform-models/?endpoint=http://minio:9000&path_style=true
//   - ipfs://127.0.0.1:5001/?timeout=30s
//   - vault://vault.example.com:8200/secret?tls=true&token=s.xxxx
//   - memory://
//
// # Decorators
//
// EncryptedBackend seals artifacts with AES-256-GCM before handing them to the
// wrapped backend. The key is derived per object with argon2id from a
// passphrase and a random salt stored alongside the ciphertext.
//
// MultiStorageBackend replicates uploads to every available backend and
// serves downloads from the first backend that has the object.
//
// # Multi-Backend Example
//
//	factory := storage.NewStorageBackendFactory(logger)
//
//	var locations []interfaces.StorageBackendLocation
//	for _, uri := range []string{"file:///var/lib/models/", "s3://ml-platform-models/?region=us-east-1"} {
//	    location, err := interfaces.NewStorageBackendLocation(uri)
//	    if err != nil {
//	        return err
//	    }
//	    locations = append(locations, location)
//	}
//	backend, err := factory.CreateMultiBackend(locations)
package storage
