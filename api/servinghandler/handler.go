package servinghandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/model-registry-backend/api"
	"github.com/ruteri/model-registry-backend/serving"
)

// Handler exposes a serving.Server over HTTP.
type Handler struct {
	server *serving.Server
	log    *slog.Logger
}

// NewHandler creates a new HTTP request handler for the serving process.
func NewHandler(server *serving.Server, log *slog.Logger) *Handler {
	return &Handler{
		server: server,
		log:    log,
	}
}

// RegisterRoutes configures the HTTP router with the serving endpoints:
//   - GET    / - health check
//   - POST   /predict - classify a feature vector
//   - POST   /models/{model_id} - load a model from the models directory
//   - DELETE /models/{model_id} - unload the loaded model
//   - GET    /models - describe the loaded model
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleHealth)
	r.Post("/predict", h.HandlePredict)
	r.Post("/models/{model_id}", h.HandleLoadModel)
	r.Delete("/models/{model_id}", h.HandleUnloadModel)
	r.Get("/models", h.HandleListModels)
}

// HandleHealth reports that the serving process is up.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ML Serving API is healthy")
}

// HandlePredict classifies the features of an api.PredictionRequest.
//
// Status codes:
//   - 200 OK: body is api.PredictionResponse
//   - 400 Bad Request: no model loaded, malformed body or wrong feature count
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req api.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	prediction, err := h.server.Predict(req.Features)
	if errors.Is(err, serving.ErrNoModelLoaded) {
		api.WriteErrorMessage(w, http.StatusBadRequest, "No model loaded")
		return
	}
	if err != nil {
		h.log.Debug("Prediction rejected", "err", err)
		api.WriteError(w, err)
		return
	}

	if err := api.WriteJSON(w, http.StatusOK, api.PredictionResponse{
		Prediction: prediction.Class,
		Confidence: prediction.Confidence,
	}); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

// HandleLoadModel loads {models_dir}/{model_id}/*.model into memory.
//
// Status codes:
//   - 200 OK: model loaded
//   - 400 Bad Request: malformed model id
//   - 404 Not Found: no model directory or no .model file
func (h *Handler) HandleLoadModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("model_id")

	if _, err := h.server.Load(r.Context(), id); err != nil {
		h.log.Error("Failed to load model", "err", err, slog.String("id", id))
		api.WriteError(w, err)
		return
	}

	writeText(w, http.StatusOK, "Model loaded successfully")
}

// HandleUnloadModel drops the loaded model if its id matches.
func (h *Handler) HandleUnloadModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("model_id")

	if err := h.server.Unload(id); err != nil {
		api.WriteError(w, err)
		return
	}

	writeText(w, http.StatusOK, fmt.Sprintf("Model %s deleted successfully", id))
}

// HandleListModels describes the loaded model, or reports loaded=false.
func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	info := api.LoadedModelInfo{Loaded: false}
	if current, ok := h.server.Current(); ok {
		info = api.LoadedModelInfo{
			Loaded:    true,
			ID:        current.ID,
			Path:      current.Path,
			SizeBytes: current.Size,
		}
	}

	if err := api.WriteJSON(w, http.StatusOK, api.LoadedModelsResponse{Model: info}); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, msg)
}
