package storage

import (
	"bufio"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ruteri/model-registry-backend/interfaces"
	"golang.org/x/crypto/argon2"
)

const (
	encryptionSaltSize  = 16
	encryptionNonceSize = 12
	encryptionKeySize   = 32

	// encryptionChunkSize is the plaintext size of every sealed chunk but the last.
	encryptionChunkSize = 64 * 1024
)

// ErrDecryptionFailed is returned when a stored object cannot be authenticated with the configured passphrase.
var ErrDecryptionFailed = errors.New("failed to decrypt stored object")

// EncryptedBackend wraps another backend and encrypts artifacts at rest with
// AES-256-GCM. Each object gets a fresh salt; the key is argon2id(passphrase, salt).
//
// Stored format: [salt (16 bytes)][base nonce (12 bytes)][chunk]...
//
// The plaintext is sealed in 64 KiB chunks so neither side holds the artifact
// in memory. Chunk i uses the base nonce with its last 8 bytes XORed with i,
// and its additional data is a single byte set to 1 only on the final chunk.
// Reordered, dropped or truncated chunks fail authentication.
type EncryptedBackend struct {
	inner      interfaces.StorageBackend
	passphrase []byte
	log        *slog.Logger
}

// NewEncryptedBackend wraps inner. The passphrase must not be empty.
func NewEncryptedBackend(inner interfaces.StorageBackend, passphrase string, log *slog.Logger) (*EncryptedBackend, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: encryption passphrase must not be empty", interfaces.ErrInvalidInput)
	}
	return &EncryptedBackend{
		inner:      inner,
		passphrase: []byte(passphrase),
		log:        log,
	}, nil
}

// Upload encrypts localPath into a temporary file and uploads that file
// through the wrapped backend.
func (b *EncryptedBackend) Upload(ctx context.Context, localPath string, namespace string, objectKey string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open source file: %v", interfaces.ErrStorageIO, err)
	}
	defer src.Close()

	tmp, err := interfaces.NewLocalObject("model-sealed-*")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if err := b.seal(ctx, tmp, src); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("%w: failed to flush encrypted file: %v", interfaces.ErrStorageIO, err)
	}

	return b.inner.Upload(ctx, tmp.Path(), namespace, objectKey)
}

// Download fetches the sealed object and returns its decrypted contents.
func (b *EncryptedBackend) Download(ctx context.Context, namespace string, objectKey string) (*interfaces.LocalObject, error) {
	sealedObj, err := b.inner.Download(ctx, namespace, objectKey)
	if err != nil {
		return nil, err
	}
	defer sealedObj.Close()

	obj, err := interfaces.NewLocalObject("model-download-*")
	if err != nil {
		return nil, err
	}

	if err := b.open(ctx, obj, sealedObj); err != nil {
		obj.Close()
		b.log.Error("Failed to decrypt object",
			slog.String("backend", b.inner.Name()),
			slog.String("key", objectKey),
			"err", err)
		return nil, err
	}

	if err := obj.Rewind(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// Stat reports the sealed size held by the wrapped backend, falling back to a
// download when the wrapped backend cannot stat. The object is not decrypted.
func (b *EncryptedBackend) Stat(ctx context.Context, namespace string, objectKey string) (int64, error) {
	return interfaces.StatObject(ctx, b.inner, namespace, objectKey)
}

// Delete forwards to the wrapped backend when it supports deletion.
func (b *EncryptedBackend) Delete(ctx context.Context, namespace string, objectKey string) error {
	deleter, ok := b.inner.(interfaces.ObjectDeleter)
	if !ok {
		return fmt.Errorf("%w: backend %s does not support deletion", interfaces.ErrStorageIO, b.inner.Name())
	}
	return deleter.Delete(ctx, namespace, objectKey)
}

func (b *EncryptedBackend) Available(ctx context.Context) bool {
	return b.inner.Available(ctx)
}

func (b *EncryptedBackend) Name() string {
	return "encrypted-" + b.inner.Name()
}

func (b *EncryptedBackend) LocationURI() string {
	return b.inner.LocationURI()
}

func (b *EncryptedBackend) deriveKey(salt []byte) []byte {
	return argon2.IDKey(b.passphrase, salt, 1, 64*1024, 4, encryptionKeySize)
}

func (b *EncryptedBackend) seal(ctx context.Context, dst io.Writer, src io.Reader) error {
	header := make([]byte, encryptionSaltSize+encryptionNonceSize)
	if _, err := io.ReadFull(rand.Reader, header); err != nil {
		return fmt.Errorf("failed to generate salt and nonce: %w", err)
	}
	salt, baseNonce := header[:encryptionSaltSize], header[encryptionSaltSize:]

	aead, err := newGCM(b.deriveKey(salt))
	if err != nil {
		return err
	}
	if _, err := dst.Write(header); err != nil {
		return fmt.Errorf("%w: failed to write encrypted file: %v", interfaces.ErrStorageIO, err)
	}

	in := bufio.NewReaderSize(src, encryptionChunkSize)
	plain := make([]byte, encryptionChunkSize)
	sealed := make([]byte, 0, encryptionChunkSize+aead.Overhead())
	nonce := make([]byte, aead.NonceSize())

	for counter := uint64(0); ; counter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(in, plain)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: failed to read source file: %v", interfaces.ErrStorageIO, err)
		}
		final := n < encryptionChunkSize
		if !final {
			if _, peekErr := in.Peek(1); peekErr == io.EOF {
				final = true
			}
		}

		chunkNonce(nonce, baseNonce, counter)
		sealed = aead.Seal(sealed[:0], nonce, plain[:n], chunkAD(final))
		if _, err := dst.Write(sealed); err != nil {
			return fmt.Errorf("%w: failed to write encrypted file: %v", interfaces.ErrStorageIO, err)
		}
		if final {
			return nil
		}
	}
}

func (b *EncryptedBackend) open(ctx context.Context, dst io.Writer, src io.Reader) error {
	in := bufio.NewReaderSize(src, encryptionChunkSize)

	header := make([]byte, encryptionSaltSize+encryptionNonceSize)
	if _, err := io.ReadFull(in, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: object too short", ErrDecryptionFailed)
		}
		return fmt.Errorf("%w: failed to read encrypted object: %v", interfaces.ErrStorageIO, err)
	}
	salt, baseNonce := header[:encryptionSaltSize], header[encryptionSaltSize:]

	aead, err := newGCM(b.deriveKey(salt))
	if err != nil {
		return err
	}

	chunk := make([]byte, encryptionChunkSize+aead.Overhead())
	plain := make([]byte, 0, encryptionChunkSize)
	nonce := make([]byte, aead.NonceSize())

	for counter := uint64(0); ; counter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(in, chunk)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: failed to read encrypted object: %v", interfaces.ErrStorageIO, err)
		}
		if n < aead.Overhead() {
			return fmt.Errorf("%w: object truncated", ErrDecryptionFailed)
		}
		final := n < len(chunk)
		if !final {
			if _, peekErr := in.Peek(1); peekErr == io.EOF {
				final = true
			}
		}

		chunkNonce(nonce, baseNonce, counter)
		plain, err = aead.Open(plain[:0], nonce, chunk[:n], chunkAD(final))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
		}
		if _, err := dst.Write(plain); err != nil {
			return fmt.Errorf("%w: failed to write decrypted object: %v", interfaces.ErrStorageIO, err)
		}
		if final {
			return nil
		}
	}
}

// chunkNonce writes the nonce of chunk counter into dst.
func chunkNonce(dst, base []byte, counter uint64) {
	copy(dst, base)
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], counter)
	offset := len(dst) - len(ctr)
	for i := range ctr {
		dst[offset+i] ^= ctr[i]
	}
}

func chunkAD(final bool) []byte {
	if final {
		return []byte{1}
	}
	return []byte{0}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
