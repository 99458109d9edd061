package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/model-registry-backend/interfaces"
)

// IPFSBackend implements a storage backend on top of the mutable file system
// (MFS) of an IPFS node. Objects live at /{namespace}/{objectKey}; the node
// keeps the resulting DAG pinned for as long as it is referenced from MFS.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates a new IPFS storage backend connected to the node API at host:port.
func NewIPFSBackend(host, port string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	sh := shell.NewShell(apiURL)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}

	return &IPFSBackend{
		shell:       sh,
		host:        host,
		port:        port,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/?timeout=%s", apiURL, timeout),
	}, nil
}

// Upload writes localPath to a temporary MFS path and moves it over the
// destination once the write has completed.
func (b *IPFSBackend) Upload(ctx context.Context, localPath string, namespace string, objectKey string) (string, error) {
	start := time.Now()
	destination := b.getMFSPath(namespace, objectKey)
	staging := destination + ".tmp-" + uuid.NewString()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open source file: %v", interfaces.ErrStorageIO, err)
	}
	defer f.Close()

	if err := b.shell.FilesWrite(ctx, staging, f,
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true),
	); err != nil {
		b.log.Error("Failed to write object to IPFS",
			slog.String("path", staging),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		b.shell.FilesRm(context.Background(), staging, true)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: failed to write object to IPFS: %v", interfaces.ErrStorageIO, err)
	}

	if err := b.shell.FilesRm(ctx, destination, true); err != nil && !isIPFSNotFound(err) {
		b.shell.FilesRm(context.Background(), staging, true)
		return "", fmt.Errorf("%w: failed to replace existing IPFS object: %v", interfaces.ErrStorageIO, err)
	}

	if err := b.shell.FilesMv(ctx, staging, destination); err != nil {
		b.shell.FilesRm(context.Background(), staging, true)
		return "", fmt.Errorf("%w: failed to move IPFS object into place: %v", interfaces.ErrStorageIO, err)
	}

	b.log.Debug("Stored object in IPFS",
		slog.String("path", destination),
		slog.Duration("duration", time.Since(start)))

	return fmt.Sprintf("ipfs://%s", strings.TrimPrefix(destination, "/")), nil
}

// Download reads /{namespace}/{objectKey} from MFS into a temporary file.
// Returns ErrObjectNotFound if the path does not exist.
func (b *IPFSBackend) Download(ctx context.Context, namespace string, objectKey string) (*interfaces.LocalObject, error) {
	start := time.Now()
	source := b.getMFSPath(namespace, objectKey)

	reader, err := b.shell.FilesRead(ctx, source)
	if err != nil {
		if isIPFSNotFound(err) {
			b.log.Debug("Object not found in IPFS",
				slog.String("path", source),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrObjectNotFound
		}

		b.log.Error("Failed to read object from IPFS",
			slog.String("path", source),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: failed to read object from IPFS: %v", interfaces.ErrStorageIO, err)
	}
	defer reader.Close()

	obj, err := interfaces.LocalObjectFromReader(reader, "model-download-*")
	if err != nil {
		return nil, err
	}

	b.log.Debug("Fetched object from IPFS",
		slog.String("path", source),
		slog.Duration("duration", time.Since(start)))

	return obj, nil
}

// Stat returns the size of the MFS entry or ErrObjectNotFound.
func (b *IPFSBackend) Stat(ctx context.Context, namespace string, objectKey string) (int64, error) {
	stat, err := b.shell.FilesStat(ctx, b.getMFSPath(namespace, objectKey))
	if err != nil {
		if isIPFSNotFound(err) {
			return 0, interfaces.ErrObjectNotFound
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: failed to stat IPFS object: %v", interfaces.ErrStorageIO, err)
	}
	return int64(stat.Size), nil
}

// Delete removes the MFS entry. The underlying blocks are garbage collected by the node.
func (b *IPFSBackend) Delete(ctx context.Context, namespace string, objectKey string) error {
	if err := b.shell.FilesRm(ctx, b.getMFSPath(namespace, objectKey), true); err != nil && !isIPFSNotFound(err) {
		return fmt.Errorf("%w: failed to remove IPFS object: %v", interfaces.ErrStorageIO, err)
	}
	return nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) getMFSPath(namespace, objectKey string) string {
	return path.Join("/", namespace, objectKey)
}

func isIPFSNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "file does not exist") || strings.Contains(msg, "no link named")
}
