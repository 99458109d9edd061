package storage

import (
	"context"

	"github.com/ruteri/model-registry-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockStorageBackend mocks the interfaces.StorageBackend interface
type MockStorageBackend struct {
	mock.Mock
	BackendName string
}

// Upload mocks the Upload method
func (m *MockStorageBackend) Upload(ctx context.Context, localPath string, namespace string, objectKey string) (string, error) {
	args := m.Called(ctx, localPath, namespace, objectKey)
	return args.String(0), args.Error(1)
}

// Download mocks the Download method
func (m *MockStorageBackend) Download(ctx context.Context, namespace string, objectKey string) (*interfaces.LocalObject, error) {
	args := m.Called(ctx, namespace, objectKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.LocalObject), args.Error(1)
}

// Available mocks the Available method
func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStorageBackend) Name() string {
	if m.BackendName == "" {
		return "mock"
	}
	return m.BackendName
}

func (m *MockStorageBackend) LocationURI() string {
	return "mock://" + m.Name()
}
