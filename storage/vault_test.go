package storage

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ruteri/model-registry-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVault implements the KV v2 read/write/delete endpoints and sys/health.
type fakeVault struct {
	mu      sync.Mutex
	secrets map[string]map[string]interface{}
	tokens  []string
}

func newFakeVault(t *testing.T) (*fakeVault, *httptest.Server) {
	f := &fakeVault{secrets: make(map[string]map[string]interface{})}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeVault) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tokens = append(f.tokens, r.Header.Get("X-Vault-Token"))
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/v1/")
	if path == "sys/health" {
		json.NewEncoder(w).Encode(map[string]interface{}{"initialized": true, "sealed": false, "standby": false})
		return
	}

	mount, rest, _ := strings.Cut(path, "/")
	kind, rel, _ := strings.Cut(rest, "/")
	key := mount + "/" + rel

	switch {
	case (r.Method == http.MethodPut || r.Method == http.MethodPost) && kind == "data":
		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.secrets[key] = body.Data
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"version": 1}})
	case r.Method == http.MethodGet && kind == "data":
		data, ok := f.secrets[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"errors":[]}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data":     data,
				"metadata": map[string]interface{}{"version": 1},
			},
		})
	case r.Method == http.MethodDelete && kind == "metadata":
		delete(f.secrets, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"errors":[]}`)
	}
}

func TestVaultBackend_RoundTrip(t *testing.T) {
	fake, srv := newFakeVault(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := NewVaultBackend(srv.URL, "secret", "s.test-token", nil, logger)
	require.NoError(t, err)

	ctx := context.Background()
	key := interfaces.ModelObjectKey("m-1", "1.0")

	location, err := backend.Upload(ctx, writeSource(t, "weights"), interfaces.DefaultNamespace, key)
	require.NoError(t, err)
	assert.Equal(t, "vault://secret/ml-platform-models/models/m-1/1.0.model", location)

	obj, err := backend.Download(ctx, interfaces.DefaultNamespace, key)
	require.NoError(t, err)
	assert.Equal(t, "weights", readObject(t, obj))

	require.NoError(t, backend.Delete(ctx, interfaces.DefaultNamespace, key))

	_, err = backend.Download(ctx, interfaces.DefaultNamespace, key)
	assert.ErrorIs(t, err, interfaces.ErrObjectNotFound)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.NotEmpty(t, fake.tokens)
	assert.Equal(t, "s.test-token", fake.tokens[0])
}

func TestVaultBackend_DownloadMissing(t *testing.T) {
	_, srv := newFakeVault(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := NewVaultBackend(srv.URL, "secret", "token", nil, logger)
	require.NoError(t, err)

	obj, err := backend.Download(context.Background(), "ns", "models/none/1.model")
	assert.ErrorIs(t, err, interfaces.ErrObjectNotFound)
	assert.Nil(t, obj)
}

func TestVaultBackend_Available(t *testing.T) {
	_, srv := newFakeVault(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := NewVaultBackend(srv.URL, "/secret/", "token", nil, logger)
	require.NoError(t, err)

	assert.True(t, backend.Available(context.Background()))
	assert.Equal(t, "vault-secret", backend.Name())
}

func TestVaultBackend_DownloadCanceled(t *testing.T) {
	_, srv := newFakeVault(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := NewVaultBackend(srv.URL, "secret", "token", nil, logger)
	require.NoError(t, err)

	key := interfaces.ModelObjectKey("m-1", "1.0")
	_, err = backend.Upload(context.Background(), writeSource(t, "weights"), "ns", key)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	obj, err := backend.Download(ctx, "ns", key)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, interfaces.ErrStorageIO)
	assert.Nil(t, obj)
}
