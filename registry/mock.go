package registry

import (
	"context"
	"io"

	"github.com/ruteri/model-registry-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockRegistry mocks the interfaces.ModelRegistry interface
type MockRegistry struct {
	mock.Mock
}

// Create mocks the Create method
func (m *MockRegistry) Create(ctx context.Context, name, version string) (interfaces.ModelRecord, error) {
	args := m.Called(ctx, name, version)
	return args.Get(0).(interfaces.ModelRecord), args.Error(1)
}

// Get mocks the Get method
func (m *MockRegistry) Get(ctx context.Context, id string) (interfaces.ModelRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.ModelRecord), args.Error(1)
}

// List mocks the List method
func (m *MockRegistry) List(ctx context.Context) []interfaces.ModelRecord {
	args := m.Called(ctx)
	return args.Get(0).([]interfaces.ModelRecord)
}

// Delete mocks the Delete method
func (m *MockRegistry) Delete(ctx context.Context, id string) bool {
	args := m.Called(ctx, id)
	return args.Bool(0)
}

// UploadArtifact mocks the UploadArtifact method
func (m *MockRegistry) UploadArtifact(ctx context.Context, id string, localPath string) (string, error) {
	args := m.Called(ctx, id, localPath)
	return args.String(0), args.Error(1)
}

// UploadArtifactFrom mocks the UploadArtifactFrom method
func (m *MockRegistry) UploadArtifactFrom(ctx context.Context, id string, r io.Reader) (string, error) {
	args := m.Called(ctx, id, r)
	return args.String(0), args.Error(1)
}

// DownloadArtifact mocks the DownloadArtifact method
func (m *MockRegistry) DownloadArtifact(ctx context.Context, id string) (*interfaces.LocalObject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.LocalObject), args.Error(1)
}

// Activate mocks the Activate method
func (m *MockRegistry) Activate(ctx context.Context, id string) (interfaces.ModelRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.ModelRecord), args.Error(1)
}

// Deactivate mocks the Deactivate method
func (m *MockRegistry) Deactivate(ctx context.Context, id string) (interfaces.ModelRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.ModelRecord), args.Error(1)
}

// Verify mocks the Verify method
func (m *MockRegistry) Verify(ctx context.Context, id string) (interfaces.ModelRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.ModelRecord), args.Error(1)
}

var _ interfaces.ModelRegistry = (*MockRegistry)(nil)
