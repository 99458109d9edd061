/*
Package api holds the wire types and error mapping shared by the HTTP
handlers of the model registry and the serving process.

Subpackages:

  - modelhandler - registry endpoints (/models, uploads, lifecycle) and a Go client
  - servinghandler - serving endpoints (/predict, model load and unload) and a Go client

# Error Responses

Every non-2xx response carries a JSON body:

	{"message": "model not found: 6f1c..."}

Status codes are derived from the sentinel errors in package interfaces:

  - 400 Bad Request: ErrInvalidInput
  - 404 Not Found: ErrModelNotFound, ErrObjectNotFound
  - 409 Conflict: ErrDuplicateModelID, ErrUploadInProgress, ErrInvalidTransition
  - 413 Request Entity Too Large: upload exceeds the configured size limit
  - 502 Bad Gateway: ErrStorageIO, ErrBackendUnavailable
  - 500 Internal Server Error: anything else

# Timestamps

Record timestamps are encoded as RFC 3339 strings in UTC.
*/
package api
