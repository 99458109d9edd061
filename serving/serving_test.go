package serving

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/model-registry-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return srv
}

func placeModel(t *testing.T, dir, id, name, content string) string {
	t.Helper()
	modelDir := filepath.Join(dir, id)
	require.NoError(t, os.MkdirAll(modelDir, 0755))
	path := filepath.Join(modelDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		features   []float32
		class      float32
		confidence float32
	}{
		{"setosa", []float32{5.1, 3.5, 1.4, 0.2}, 0, 0.95},
		{"versicolor", []float32{6.4, 3.2, 4.5, 1.5}, 1, 0.85},
		{"boundary 2.5 is versicolor", []float32{0, 0, 2.5, 0}, 1, 0.85},
		{"virginica", []float32{6.3, 3.3, 6.0, 2.5}, 2, 0.8},
		{"boundary 5.0 is virginica", []float32{0, 0, 5.0, 0}, 2, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Classify(tt.features)
			require.NoError(t, err)
			assert.Equal(t, tt.class, p.Class)
			assert.Equal(t, tt.confidence, p.Confidence)
		})
	}

	_, err := Classify([]float32{1, 2, 3})
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
	assert.Contains(t, err.Error(), "expected 4 features, got 3")
}

func TestFindModelFile(t *testing.T) {
	dir := t.TempDir()

	_, err := FindModelFile(dir, "missing")
	assert.ErrorIs(t, err, interfaces.ErrModelNotFound)

	placeModel(t, dir, "m-1", "README.txt", "not a model")
	_, err = FindModelFile(dir, "m-1")
	assert.ErrorIs(t, err, interfaces.ErrModelNotFound)

	placeModel(t, dir, "m-1", "v2.model", "two")
	first := placeModel(t, dir, "m-1", "v1.model", "one")
	path, err := FindModelFile(dir, "m-1")
	require.NoError(t, err)
	assert.Equal(t, first, path)

	_, err = FindModelFile(dir, "../etc")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestServer_LoadPredictUnload(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.Predict([]float32{1, 1, 1, 1})
	assert.ErrorIs(t, err, ErrNoModelLoaded)

	_, ok := srv.Current()
	assert.False(t, ok)

	path := placeModel(t, srv.ModelsDir(), "m-1", "v1.model", "weights")
	loaded, err := srv.Load(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", loaded.ID)
	assert.Equal(t, path, loaded.Path)
	assert.Equal(t, int64(len("weights")), loaded.Size)

	current, ok := srv.Current()
	require.True(t, ok)
	assert.Equal(t, loaded, current)

	p, err := srv.Predict([]float32{5.1, 3.5, 1.4, 0.2})
	require.NoError(t, err)
	assert.Equal(t, float32(0), p.Class)

	_, err = srv.Predict([]float32{1})
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	err = srv.Unload("other")
	assert.ErrorIs(t, err, interfaces.ErrModelNotFound)

	require.NoError(t, srv.Unload("m-1"))
	err = srv.Unload("m-1")
	assert.ErrorIs(t, err, interfaces.ErrModelNotFound)

	_, err = srv.Predict([]float32{1, 1, 1, 1})
	assert.ErrorIs(t, err, ErrNoModelLoaded)
}

func TestServer_LoadReplacesCurrentModel(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	placeModel(t, srv.ModelsDir(), "m-1", "v1.model", "one")
	placeModel(t, srv.ModelsDir(), "m-2", "v1.model", "two")

	_, err := srv.Load(ctx, "m-1")
	require.NoError(t, err)
	_, err = srv.Load(ctx, "m-2")
	require.NoError(t, err)

	current, ok := srv.Current()
	require.True(t, ok)
	assert.Equal(t, "m-2", current.ID)

	_, err = srv.Load(ctx, "m-3")
	assert.ErrorIs(t, err, interfaces.ErrModelNotFound)

	current, ok = srv.Current()
	require.True(t, ok)
	assert.Equal(t, "m-2", current.ID)
}
