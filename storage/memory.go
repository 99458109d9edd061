package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ruteri/model-registry-backend/interfaces"
)

// MemoryBackend keeps objects in a nested map guarded by an RWMutex. It is
// meant for tests and single-process demos; contents are lost on restart.
// Data is copied on upload and download so callers never share buffers.
//
// Layout: namespace -> objectKey -> bytes
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string]map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string]map[string][]byte)}
}

// Upload reads localPath fully before storing it, so a failed read stores nothing.
func (b *MemoryBackend) Upload(ctx context.Context, localPath string, namespace string, objectKey string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read source file: %v", interfaces.ErrStorageIO, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.objects[namespace]; !exists {
		b.objects[namespace] = make(map[string][]byte)
	}
	b.objects[namespace][objectKey] = data

	return fmt.Sprintf("memory://%s/%s", namespace, objectKey), nil
}

// Download writes a copy of the stored bytes into a temporary file or returns ErrObjectNotFound.
func (b *MemoryBackend) Download(ctx context.Context, namespace string, objectKey string) (*interfaces.LocalObject, error) {
	b.mu.RLock()
	data, ok := b.objects[namespace][objectKey]
	b.mu.RUnlock()
	if !ok {
		return nil, interfaces.ErrObjectNotFound
	}
	return interfaces.LocalObjectFromReader(bytes.NewReader(data), "model-download-*")
}

// Stat returns the stored size or ErrObjectNotFound.
func (b *MemoryBackend) Stat(ctx context.Context, namespace string, objectKey string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[namespace][objectKey]
	if !ok {
		return 0, interfaces.ErrObjectNotFound
	}
	return int64(len(data)), nil
}

// Delete removes the object if present.
func (b *MemoryBackend) Delete(ctx context.Context, namespace string, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects[namespace], objectKey)
	return nil
}

// Keys returns the object keys stored in namespace. The slice is a snapshot.
func (b *MemoryBackend) Keys(namespace string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.objects[namespace]))
	for key := range b.objects[namespace] {
		keys = append(keys, key)
	}
	return keys
}

func (b *MemoryBackend) Available(ctx context.Context) bool {
	return true
}

func (b *MemoryBackend) Name() string {
	return "memory"
}

func (b *MemoryBackend) LocationURI() string {
	return "memory://"
}
