/*
Package modelhandler exposes the model registry over HTTP.

Handler adapts an interfaces.ModelRegistry to a chi router. Records are
created and listed as JSON, artifacts are uploaded as the "file" field of a
multipart/form-data body and streamed to the configured storage backend
without being buffered in memory.

Errors are returned as {"message": "..."} with the status code chosen by
api.StatusCode: unknown ids map to 404, conflicting uploads and forbidden
status changes to 409, oversized bodies to 413 and storage failures to 502.

Client is the matching HTTP client used by cmd/modelctl and the tests.
*/
package modelhandler
