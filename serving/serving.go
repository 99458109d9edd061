package serving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ruteri/model-registry-backend/interfaces"
)

// FeatureCount is the number of features a prediction request must carry:
// sepal length, sepal width, petal length, petal width.
const FeatureCount = 4

// ErrNoModelLoaded is returned by Predict before any model has been loaded.
var ErrNoModelLoaded = errors.New("no model loaded")

// LoadedModel describes the model currently held in memory.
type LoadedModel struct {
	ID       string
	Path     string
	Size     int64
	LoadedAt time.Time
}

// Prediction is the result of classifying one feature vector.
type Prediction struct {
	Class      float32
	Confidence float32
}

// Server holds at most one model in memory and answers predictions with it.
// Models are read from {modelsDir}/{id}/*.model, the layout written by the
// file storage backend.
type Server struct {
	mu        sync.RWMutex
	modelsDir string
	current   *LoadedModel
	data      []byte
	log       *slog.Logger
}

// NewServer creates the models directory if needed and returns a server with no model loaded.
func NewServer(modelsDir string, log *slog.Logger) (*Server, error) {
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create models directory: %v", interfaces.ErrStorageIO, err)
	}
	return &Server{modelsDir: modelsDir, log: log}, nil
}

// ModelsDir returns the directory scanned by Load.
func (s *Server) ModelsDir() string {
	return s.modelsDir
}

// FindModelFile returns the first file with the .model extension in
// {modelsDir}/{id}, in lexical order.
func FindModelFile(modelsDir, id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, "/\\\x00") {
		return "", fmt.Errorf("%w: invalid model id %q", interfaces.ErrInvalidInput, id)
	}

	dir := filepath.Join(modelsDir, id)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: model %s not found", interfaces.ErrModelNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to read model directory: %v", interfaces.ErrStorageIO, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.Type().IsRegular() && filepath.Ext(entry.Name()) == interfaces.ModelObjectExtension {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: no model file found for %s", interfaces.ErrModelNotFound, id)
}

// Load reads the model file of id into memory, replacing any loaded model.
func (s *Server) Load(ctx context.Context, id string) (LoadedModel, error) {
	path, err := FindModelFile(s.modelsDir, id)
	if err != nil {
		return LoadedModel{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedModel{}, fmt.Errorf("%w: failed to read model file: %v", interfaces.ErrStorageIO, err)
	}
	if err := ctx.Err(); err != nil {
		return LoadedModel{}, err
	}

	loaded := &LoadedModel{
		ID:       id,
		Path:     path,
		Size:     int64(len(data)),
		LoadedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	previous := s.current
	s.current = loaded
	s.data = data
	s.mu.Unlock()

	if previous != nil && previous.ID != id {
		s.log.Info("Replaced loaded model", slog.String("previous", previous.ID))
	}
	s.log.Info("Model loaded",
		slog.String("id", id),
		slog.String("path", path),
		slog.Int64("size", loaded.Size))

	return *loaded, nil
}

// Unload drops the loaded model. It fails with ErrModelNotFound when no model
// is loaded or a different model is loaded.
func (s *Server) Unload(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return fmt.Errorf("%w: no model is currently loaded", interfaces.ErrModelNotFound)
	}
	if s.current.ID != id {
		return fmt.Errorf("%w: model %s is not loaded, currently loaded model has a different ID", interfaces.ErrModelNotFound, id)
	}

	s.current = nil
	s.data = nil
	s.log.Info("Model unloaded", slog.String("id", id))
	return nil
}

// Current returns the loaded model, if any.
func (s *Server) Current() (LoadedModel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return LoadedModel{}, false
	}
	return *s.current, true
}

// Predict classifies features with the loaded model.
func (s *Server) Predict(features []float32) (Prediction, error) {
	s.mu.RLock()
	loaded := s.data != nil
	s.mu.RUnlock()

	if !loaded {
		return Prediction{}, ErrNoModelLoaded
	}
	return Classify(features)
}

// Classify applies the petal length thresholds of the Iris rule set:
// below 2.5 is setosa (0), below 5.0 versicolor (1), otherwise virginica (2).
func Classify(features []float32) (Prediction, error) {
	if len(features) != FeatureCount {
		return Prediction{}, fmt.Errorf("%w: expected %d features, got %d", interfaces.ErrInvalidInput, FeatureCount, len(features))
	}

	petalLength := features[2]
	switch {
	case petalLength < 2.5:
		return Prediction{Class: 0, Confidence: 0.95}, nil
	case petalLength < 5.0:
		return Prediction{Class: 1, Confidence: 0.85}, nil
	default:
		return Prediction{Class: 2, Confidence: 0.8}, nil
	}
}
