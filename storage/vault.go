package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/model-registry-backend/interfaces"
)

// maxVaultObjectSize bounds artifacts accepted by the Vault backend. KV
// entries are held in Vault's storage as a single value, so only small
// models belong here.
const maxVaultObjectSize = 32 * 1024 * 1024

// VaultBackend implements a storage backend using the HashiCorp Vault KV v2
// secrets engine. Artifacts are stored base64-encoded at
// {mount}/data/{namespace}/{objectKey}.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a new Vault storage backend.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - token: Vault token; when empty the client falls back to VAULT_TOKEN
//   - clientCert: optional TLS client certificate for cert auth
//   - log: Structured logger for operational insights
func NewVaultBackend(address, mountPath, token string, clientCert *tls.Certificate, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address

	if clientCert != nil {
		config.HttpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{*clientCert},
				},
			},
			Timeout: 30 * time.Second,
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath),
	}, nil
}

// Upload stores the contents of localPath as a single KV v2 version.
// Vault applies the write atomically.
func (b *VaultBackend) Upload(ctx context.Context, localPath string, namespace string, objectKey string) (string, error) {
	start := time.Now()
	path := b.dataPath(namespace, objectKey)

	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read source file: %v", interfaces.ErrStorageIO, err)
	}
	if len(data) > maxVaultObjectSize {
		return "", fmt.Errorf("%w: artifact of %d bytes exceeds the Vault backend limit of %d bytes", interfaces.ErrStorageIO, len(data), maxVaultObjectSize)
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": base64.StdEncoding.EncodeToString(data),
			"size":    len(data),
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		b.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: failed to write to Vault: %v", interfaces.ErrStorageIO, err)
	}

	b.log.Debug("Stored object in Vault",
		slog.String("path", path),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return fmt.Sprintf("vault://%s/%s/%s", b.mountPath, strings.Trim(namespace, "/"), objectKey), nil
}

// Download reads the latest KV v2 version into a temporary file.
// Returns ErrObjectNotFound if the path holds no data.
func (b *VaultBackend) Download(ctx context.Context, namespace string, objectKey string) (*interfaces.LocalObject, error) {
	start := time.Now()
	path := b.dataPath(namespace, objectKey)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: failed to read from Vault: %v", interfaces.ErrStorageIO, err)
	}

	if secret == nil || secret.Data == nil {
		b.log.Debug("Object not found in Vault", slog.String("path", path))
		return nil, interfaces.ErrObjectNotFound
	}

	// KV v2 wraps the payload in a "data" map; a deleted version has nil data.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok || data == nil {
		return nil, interfaces.ErrObjectNotFound
	}

	content, ok := data["content"].(string)
	if !ok {
		b.log.Error("Invalid content format in Vault data", slog.String("path", path))
		return nil, fmt.Errorf("%w: invalid content format in Vault data", interfaces.ErrStorageIO)
	}

	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode Vault content: %v", interfaces.ErrStorageIO, err)
	}

	obj, err := interfaces.LocalObjectFromReader(bytes.NewReader(raw), "model-download-*")
	if err != nil {
		return nil, err
	}

	b.log.Debug("Fetched object from Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	return obj, nil
}

// Delete removes every version and the metadata of the object.
func (b *VaultBackend) Delete(ctx context.Context, namespace string, objectKey string) error {
	path := fmt.Sprintf("%s/metadata/%s", b.mountPath, b.relativePath(namespace, objectKey))
	if _, err := b.client.Logical().DeleteWithContext(ctx, path); err != nil {
		return fmt.Errorf("%w: failed to delete from Vault: %v", interfaces.ErrStorageIO, err)
	}
	return nil
}

// Available checks if the Vault backend is accessible.
// It uses the health endpoint to verify that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s", b.mountPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

func (b *VaultBackend) dataPath(namespace, objectKey string) string {
	return fmt.Sprintf("%s/data/%s", b.mountPath, b.relativePath(namespace, objectKey))
}

func (b *VaultBackend) relativePath(namespace, objectKey string) string {
	namespace = strings.Trim(namespace, "/")
	objectKey = strings.Trim(objectKey, "/")
	if namespace == "" {
		return objectKey
	}
	return namespace + "/" + objectKey
}
