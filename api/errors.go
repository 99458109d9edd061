package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/model-registry-backend/interfaces"
)

// StatusCode maps an error returned by the registry or a storage backend to an HTTP status.
func StatusCode(err error) int {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, interfaces.ErrModelNotFound), errors.Is(err, interfaces.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrDuplicateModelID),
		errors.Is(err, interfaces.ErrUploadInProgress),
		errors.Is(err, interfaces.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, interfaces.ErrStorageIO), errors.Is(err, interfaces.ErrBackendUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON ErrorResponse with the status from StatusCode.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorMessage(w, StatusCode(err), err.Error())
}

// WriteErrorMessage writes a JSON ErrorResponse with an explicit status code.
func WriteErrorMessage(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{Message: message})
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// ResponseError is returned by the HTTP clients for non-2xx responses.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// ReadResponseError builds a ResponseError from resp, using the JSON message
// when present and the raw body otherwise.
func ReadResponseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return &ResponseError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}
	return &ResponseError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
