package modelhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/model-registry-backend/api"
	"github.com/ruteri/model-registry-backend/interfaces"
)

// DefaultMaxUploadBytes bounds the request body of an artifact upload.
const DefaultMaxUploadBytes int64 = 1 << 30

// UploadFormField is the multipart field carrying the artifact bytes.
const UploadFormField = "file"

// Handler serves the model registry HTTP API on top of an interfaces.ModelRegistry.
type Handler struct {
	registry       interfaces.ModelRegistry
	maxUploadBytes int64
	log            *slog.Logger
}

// NewHandler creates a new HTTP request handler for the model registry.
//
// Parameters:
//   - registry: the model catalog all requests operate on
//   - maxUploadBytes: upper bound of an upload request body, DefaultMaxUploadBytes if not positive
//   - log: Structured logger for operational insights
func NewHandler(registry interfaces.ModelRegistry, maxUploadBytes int64, log *slog.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		registry:       registry,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// RegisterRoutes configures the HTTP router with the registry endpoints:
//   - GET    / - health check
//   - POST   /models - create a model record
//   - GET    /models - list model records
//   - GET    /models/{id} - get one record
//   - DELETE /models/{id} - delete a record
//   - POST   /models/{id}/upload - upload the artifact (multipart field "file")
//   - GET    /models/{id}/artifact - download the artifact
//   - POST   /models/{id}/activate, /deactivate, /verify - lifecycle operations
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleHealth)
	r.Post("/models", h.HandleCreateModel)
	r.Get("/models", h.HandleListModels)
	r.Get("/models/{id}", h.HandleGetModel)
	r.Delete("/models/{id}", h.HandleDeleteModel)
	r.Post("/models/{id}/upload", h.HandleUploadModel)
	r.Get("/models/{id}/artifact", h.HandleDownloadArtifact)
	r.Post("/models/{id}/activate", h.HandleActivateModel)
	r.Post("/models/{id}/deactivate", h.HandleDeactivateModel)
	r.Post("/models/{id}/verify", h.HandleVerifyModel)
}

// HandleHealth reports that the API is up.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "Model Management API is healthy")
}

// HandleCreateModel creates a record from a JSON api.CreateModelRequest.
//
// Status codes:
//   - 201 Created: record created, body is api.ModelResponse
//   - 400 Bad Request: malformed JSON or empty name/version
func (h *Handler) HandleCreateModel(w http.ResponseWriter, r *http.Request) {
	var req api.CreateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("Invalid create request", "err", err)
		api.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	record, err := h.registry.Create(r.Context(), req.Name, req.Version)
	if err != nil {
		h.writeError(w, "Failed to create model", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, api.NewModelResponse(record))
}

// HandleListModels returns every record as a JSON array.
func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	records := h.registry.List(r.Context())

	response := make([]api.ModelResponse, 0, len(records))
	for _, record := range records {
		response = append(response, api.NewModelResponse(record))
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetModel returns one record or 404.
func (h *Handler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	record, err := h.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, "Failed to get model", err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.NewModelResponse(record))
}

// HandleDeleteModel removes a record.
//
// Status codes:
//   - 204 No Content: record removed
//   - 404 Not Found: unknown id
func (h *Handler) HandleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.registry.Delete(r.Context(), id) {
		api.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("model %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUploadModel streams the multipart field "file" into the registry.
// The body is limited to maxUploadBytes.
//
// Status codes:
//   - 200 OK: body is api.UploadResponse
//   - 400 Bad Request: not a multipart request or no "file" field
//   - 404 Not Found: unknown id
//   - 409 Conflict: an upload for the model is already running
//   - 413 Request Entity Too Large: body exceeds the limit
//   - 502 Bad Gateway: storage backend failure
func (h *Handler) HandleUploadModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		api.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("expected multipart/form-data: %v", err))
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.writeError(w, "Failed to read multipart body", fmt.Errorf("%w: malformed multipart body: %w", interfaces.ErrInvalidInput, err))
			return
		}

		if part.FormName() != UploadFormField {
			part.Close()
			continue
		}

		location, err := h.registry.UploadArtifactFrom(r.Context(), id, part)
		part.Close()
		if err != nil {
			h.writeError(w, "Failed to upload model", err)
			return
		}

		h.writeJSON(w, http.StatusOK, api.UploadResponse{
			Status:   "success",
			Location: location,
			GCSPath:  location,
		})
		return
	}

	api.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("missing %q field in multipart body", UploadFormField))
}

// HandleDownloadArtifact streams the stored artifact of an Active or Inactive record.
func (h *Handler) HandleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	record, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to get model", err)
		return
	}

	obj, err := h.registry.DownloadArtifact(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to download model artifact", err)
		return
	}
	defer obj.Close()

	filename := path.Base(record.ObjectKey())
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeContent(w, r, filename, record.UpdatedAt, obj)
}

// HandleActivateModel moves an INACTIVE record to ACTIVE.
func (h *Handler) HandleActivateModel(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, "activate", h.registry.Activate)
}

// HandleDeactivateModel moves an ACTIVE record to INACTIVE.
func (h *Handler) HandleDeactivateModel(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, "deactivate", h.registry.Deactivate)
}

// HandleVerifyModel checks that the artifact of an ACTIVE record still exists.
func (h *Handler) HandleVerifyModel(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, "verify", h.registry.Verify)
}

func (h *Handler) handleLifecycle(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id string) (interfaces.ModelRecord, error)) {
	record, err := fn(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, "Failed to "+op+" model", err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.NewModelResponse(record))
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	code := api.StatusCode(err)
	if code >= http.StatusInternalServerError {
		h.log.Error(msg, "err", err, slog.Int("status", code))
	} else {
		h.log.Debug(msg, "err", err, slog.Int("status", code))
	}
	api.WriteErrorMessage(w, code, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	if err := api.WriteJSON(w, code, v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
