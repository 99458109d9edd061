package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/model-registry-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMultiStorageBackend_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{
			name:     "all backends available",
			backends: []bool{true, true, true},
			expected: true,
		},
		{
			name:     "some backends available",
			backends: []bool{false, true, false},
			expected: true,
		},
		{
			name:     "no backends available",
			backends: []bool{false, false, false},
			expected: false,
		},
		{
			name:     "no backends",
			backends: []bool{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.StorageBackend
			for i, available := range tt.backends {
				mockStorage := &MockStorageBackend{BackendName: fmt.Sprintf("mock-A%x", i)}
				mockStorage.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, mockStorage)
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			multi := NewMultiStorageBackend(backends, logger)

			result := multi.Available(context.Background())
			assert.Equal(t, tt.expected, result)

			for _, backend := range backends {
				mockStorage := backend.(*MockStorageBackend)
				mockStorage.AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Download(t *testing.T) {
	testData := []byte("test data")
	testErr := errors.New("test error")
	key := interfaces.ModelObjectKey("m-1", "1.0")

	newObject := func(t *testing.T) *interfaces.LocalObject {
		obj, err := interfaces.LocalObjectFromReader(bytes.NewReader(testData), "multi-test-*")
		require.NoError(t, err)
		return obj
	}

	tests := []struct {
		name          string
		setupMocks    func(t *testing.T) []interfaces.StorageBackend
		expectedData  []byte
		expectedError error
	}{
		{
			name: "first backend successful",
			setupMocks: func(t *testing.T) []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{BackendName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Download", mock.Anything, "ns", key).Return(newObject(t), nil)

				mock2 := &MockStorageBackend{BackendName: "mock-B"}
				// This mock should not be called as the first one succeeds

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "first backend fails, second succeeds",
			setupMocks: func(t *testing.T) []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{BackendName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Download", mock.Anything, "ns", key).Return(nil, testErr)

				mock2 := &MockStorageBackend{BackendName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Download", mock.Anything, "ns", key).Return(newObject(t), nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "all backends report not found",
			setupMocks: func(t *testing.T) []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{BackendName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Download", mock.Anything, "ns", key).Return(nil, interfaces.ErrObjectNotFound)

				mock2 := &MockStorageBackend{BackendName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Download", mock.Anything, "ns", key).Return(nil, interfaces.ErrObjectNotFound)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedError: interfaces.ErrObjectNotFound,
		},
		{
			name: "all backends fail",
			setupMocks: func(t *testing.T) []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{BackendName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Download", mock.Anything, "ns", key).Return(nil, testErr)

				mock2 := &MockStorageBackend{BackendName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Download", mock.Anything, "ns", key).Return(nil, interfaces.ErrObjectNotFound)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedError: interfaces.ErrStorageIO,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func(t *testing.T) []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{BackendName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)
				// Download should not be called

				mock2 := &MockStorageBackend{BackendName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Download", mock.Anything, "ns", key).Return(newObject(t), nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedData: testData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks(t)
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			multi := NewMultiStorageBackend(backends, logger)

			obj, err := multi.Download(context.Background(), "ns", key)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, obj)
			} else {
				require.NoError(t, err)
				defer obj.Close()
				data, err := io.ReadAll(obj)
				require.NoError(t, err)
				assert.Equal(t, tt.expectedData, data)
			}

			for _, backend := range backends {
				mock := backend.(*MockStorageBackend)
				mock.AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Upload(t *testing.T) {
	testErr := errors.New("test error")
	key := interfaces.ModelObjectKey("m-1", "1.0")
	src := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(src, []byte("weights"), 0644))

	tests := []struct {
		name             string
		setupMocks       func() []interfaces.StorageBackend
		expectedLocation string
		expectedError    bool
	}{
		{
			name: "all backends successful",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{BackendName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upload", mock.Anything, src, "ns", key).Return("a://ns/"+key, nil)

				mock2 := &MockStorageBackend{BackendName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, src, "ns", key).Return("b://ns/"+key, nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedLocation: "a://ns/" + key,
		},
		{
			name: "some backends fail",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{BackendName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upload", mock.Anything, src, "ns", key).Return("", testErr)

				mock2 := &MockStorageBackend{BackendName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, src, "ns", key).Return("b://ns/"+key, nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedLocation: "b://ns/" + key,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{BackendName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upload", mock.Anything, src, "ns", key).Return("", testErr)

				mock2 := &MockStorageBackend{BackendName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, src, "ns", key).Return("", testErr)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedError: true,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{BackendName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)
				// Upload should not be called

				mock2 := &MockStorageBackend{BackendName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, src, "ns", key).Return("b://ns/"+key, nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedLocation: "b://ns/" + key,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			multi := NewMultiStorageBackend(backends, logger)

			location, err := multi.Upload(context.Background(), src, "ns", key)

			if tt.expectedError {
				assert.ErrorIs(t, err, interfaces.ErrStorageIO)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedLocation, location)

			for _, backend := range backends {
				mock := backend.(*MockStorageBackend)
				mock.AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_ReplicatesToMemoryBackends(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	primary := NewMemoryBackend()
	replica := NewMemoryBackend()
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{primary, replica}, logger)

	src := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(src, []byte("weights"), 0644))

	key := interfaces.ModelObjectKey("m-1", "1.0")
	location, err := multi.Upload(context.Background(), src, "ns", key)
	require.NoError(t, err)
	assert.Equal(t, "memory://ns/"+key, location)
	assert.Equal(t, []string{key}, primary.Keys("ns"))
	assert.Equal(t, []string{key}, replica.Keys("ns"))

	require.NoError(t, primary.Delete(context.Background(), "ns", key))

	obj, err := multi.Download(context.Background(), "ns", key)
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))

	require.NoError(t, multi.Delete(context.Background(), "ns", key))
	assert.Empty(t, replica.Keys("ns"))
}

func TestMultiStorageBackend_Stat(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	key := interfaces.ModelObjectKey("m-1", "1.0")

	t.Run("served by replica", func(t *testing.T) {
		primary := NewMemoryBackend()
		replica := NewMemoryBackend()
		multi := NewMultiStorageBackend([]interfaces.StorageBackend{primary, replica}, logger)

		_, err := replica.Upload(ctx, writeSource(t, "weights"), "ns", key)
		require.NoError(t, err)

		size, err := multi.Stat(ctx, "ns", key)
		require.NoError(t, err)
		assert.Equal(t, int64(len("weights")), size)
	})

	t.Run("missing everywhere", func(t *testing.T) {
		multi := NewMultiStorageBackend([]interfaces.StorageBackend{NewMemoryBackend(), NewMemoryBackend()}, logger)
		_, err := multi.Stat(ctx, "ns", key)
		assert.ErrorIs(t, err, interfaces.ErrObjectNotFound)
	})

	t.Run("falls back to download for backends without stat", func(t *testing.T) {
		failing := &MockStorageBackend{BackendName: "failing"}
		failing.On("Available", mock.Anything).Return(true)
		failing.On("Download", mock.Anything, "ns", key).Return(nil, fmt.Errorf("%w: timeout", interfaces.ErrStorageIO))

		multi := NewMultiStorageBackend([]interfaces.StorageBackend{failing, NewMemoryBackend()}, logger)
		_, err := multi.Stat(ctx, "ns", key)
		assert.ErrorIs(t, err, interfaces.ErrStorageIO)
		assert.NotErrorIs(t, err, interfaces.ErrObjectNotFound)
		failing.AssertExpectations(t)
	})
}
