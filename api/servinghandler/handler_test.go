package servinghandler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/model-registry-backend/api"
	"github.com/ruteri/model-registry-backend/serving"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*serving.Server, http.Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := serving.NewServer(t.TempDir(), logger)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(srv, logger).RegisterRoutes(r)
	return srv, r
}

func writeModel(t *testing.T, modelsDir, id, content string) string {
	t.Helper()
	dir := filepath.Join(modelsDir, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "1.0.model")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	router.ServeHTTP(rr, httptest.NewRequest(method, path, reader))
	return rr
}

func TestHandleHealth(t *testing.T) {
	_, router := newTestServer(t)
	rr := serve(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ML Serving API is healthy", rr.Body.String())
}

func TestHandlePredict_NoModelLoaded(t *testing.T) {
	_, router := newTestServer(t)
	rr := serve(router, http.MethodPost, "/predict", `{"features":[5.1,3.5,1.4,0.2]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "No model loaded", resp.Message)
}

func TestLoadPredictUnload(t *testing.T) {
	srv, router := newTestServer(t)
	path := writeModel(t, srv.ModelsDir(), "m-1", "weights")

	rr := serve(router, http.MethodGet, "/models", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"model":{"loaded":false}}`, rr.Body.String())

	rr = serve(router, http.MethodPost, "/models/m-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Model loaded successfully", rr.Body.String())

	rr = serve(router, http.MethodGet, "/models", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var models api.LoadedModelsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &models))
	assert.Equal(t, api.LoadedModelInfo{Loaded: true, ID: "m-1", Path: path, SizeBytes: 7}, models.Model)

	tests := []struct {
		features   string
		prediction float32
		confidence float32
	}{
		{features: `[5.1,3.5,1.4,0.2]`, prediction: 0, confidence: 0.95},
		{features: `[6.0,2.9,4.5,1.5]`, prediction: 1, confidence: 0.85},
		{features: `[6.9,3.1,5.4,2.1]`, prediction: 2, confidence: 0.8},
	}
	for _, tt := range tests {
		rr = serve(router, http.MethodPost, "/predict", `{"features":`+tt.features+`}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var pred api.PredictionResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pred))
		assert.Equal(t, tt.prediction, pred.Prediction)
		assert.InDelta(t, tt.confidence, pred.Confidence, 1e-6)
	}

	rr = serve(router, http.MethodPost, "/predict", `{"features":[1,2,3]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "expected 4 features, got 3")

	rr = serve(router, http.MethodDelete, "/models/other", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(router, http.MethodDelete, "/models/m-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Model m-1 deleted successfully", rr.Body.String())

	rr = serve(router, http.MethodDelete, "/models/m-1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleLoadModel_Missing(t *testing.T) {
	srv, router := newTestServer(t)

	rr := serve(router, http.MethodPost, "/models/unknown", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.NoError(t, os.MkdirAll(filepath.Join(srv.ModelsDir(), "empty"), 0o755))
	rr = serve(router, http.MethodPost, "/models/empty", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "no model file found for empty")
}

func TestClient(t *testing.T) {
	srv, router := newTestServer(t)
	writeModel(t, srv.ModelsDir(), "m-2", "weights")

	ts := httptest.NewServer(router)
	defer ts.Close()

	client := NewClient(ts.URL)
	ctx := context.Background()

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ML Serving API is healthy", health)

	_, err = client.Predict(ctx, []float32{5.1, 3.5, 1.4, 0.2})
	var respErr *api.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusBadRequest, respErr.StatusCode)
	assert.Equal(t, "No model loaded", respErr.Message)

	msg, err := client.LoadModel(ctx, "m-2")
	require.NoError(t, err)
	assert.Equal(t, "Model loaded successfully", msg)

	info, err := client.LoadedModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m-2", info.ID)

	pred, err := client.Predict(ctx, []float32{6.9, 3.1, 5.4, 2.1})
	require.NoError(t, err)
	assert.Equal(t, float32(2), pred.Prediction)

	msg, err = client.UnloadModel(ctx, "m-2")
	require.NoError(t, err)
	assert.Equal(t, "Model m-2 deleted successfully", msg)
}
