package api

import (
	"time"

	"github.com/ruteri/model-registry-backend/interfaces"
)

// CreateModelRequest is the body of POST /models.
type CreateModelRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ModelResponse is the wire form of a model record.
type ModelResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewModelResponse converts a record to its wire form.
func NewModelResponse(record interfaces.ModelRecord) ModelResponse {
	return ModelResponse{
		ID:        record.ID,
		Name:      record.Name,
		Version:   record.Version,
		Status:    record.Status.String(),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

// UploadResponse is returned after a successful artifact upload.
// GCSPath carries the same URI as Location for dashboards that read gcs_path.
type UploadResponse struct {
	Status   string `json:"status"`
	Location string `json:"location"`
	GCSPath  string `json:"gcs_path"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Message string `json:"message"`
}

// PredictionRequest is the body of POST /predict.
// Features are [sepal length, sepal width, petal length, petal width].
type PredictionRequest struct {
	Features []float32 `json:"features"`
}

// PredictionResponse carries the predicted class index and its confidence.
type PredictionResponse struct {
	Prediction float32 `json:"prediction"`
	Confidence float32 `json:"confidence"`
}

// LoadedModelInfo describes the model held by the serving process.
// Only Loaded is set when no model is loaded.
type LoadedModelInfo struct {
	Loaded    bool   `json:"loaded"`
	ID        string `json:"id,omitempty"`
	Path      string `json:"path,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// LoadedModelsResponse is the body of GET /models on the serving process.
type LoadedModelsResponse struct {
	Model LoadedModelInfo `json:"model"`
}
