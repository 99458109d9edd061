package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/model-registry-backend/interfaces"
)

// S3Config configures an S3Backend.
type S3Config struct {
	// Bucket is used when a call passes an empty namespace.
	Bucket string

	Region   string
	Endpoint string

	// AccessKey and SecretKey enable static credentials. When empty the
	// default AWS credential chain (environment, shared config, instance role) is used.
	AccessKey string
	SecretKey string

	// PathStyle forces path-style addressing, required by most S3-compatible servers.
	PathStyle bool
}

// S3Backend implements a storage backend using Amazon S3 or compatible services.
// The namespace passed to Upload and Download is the bucket name.
type S3Backend struct {
	client        *s3.S3
	defaultBucket string
	log           *slog.Logger
	locationURI   string
}

// NewS3Backend creates a new S3 storage backend.
func NewS3Backend(cfg S3Config, log *slog.Logger) (*S3Backend, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	uri := fmt.Sprintf("s3://%s/?region=%s", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", cfg.Endpoint)
	}

	awsCfg := aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle),
	}

	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		log.Warn("No static S3 credentials provided - falling back to the default AWS credential chain")
	}

	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Backend{
		client:        s3.New(sess),
		defaultBucket: cfg.Bucket,
		log:           log,
		locationURI:   uri,
	}, nil
}

// Upload puts the contents of localPath at s3://{namespace}/{objectKey} with a
// single PutObject call; S3 only makes an object visible once the whole body
// has been received.
func (b *S3Backend) Upload(ctx context.Context, localPath string, namespace string, objectKey string) (string, error) {
	start := time.Now()
	bucket := b.bucket(namespace)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open source file: %v", interfaces.ErrStorageIO, err)
	}
	defer f.Close()

	_, err = b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(objectKey),
		Body:        f,
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		b.log.Error("Failed to upload object to S3",
			slog.String("bucket", bucket),
			slog.String("key", objectKey),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: failed to upload object to S3: %v", interfaces.ErrStorageIO, err)
	}

	b.log.Debug("Stored object in S3",
		slog.String("bucket", bucket),
		slog.String("key", objectKey),
		slog.Duration("duration", time.Since(start)))

	return fmt.Sprintf("s3://%s/%s", bucket, objectKey), nil
}

// Download streams s3://{namespace}/{objectKey} into a temporary file.
// Returns ErrObjectNotFound if the object doesn't exist.
func (b *S3Backend) Download(ctx context.Context, namespace string, objectKey string) (*interfaces.LocalObject, error) {
	start := time.Now()
	bucket := b.bucket(namespace)

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			b.log.Debug("Object not found in S3",
				slog.String("bucket", bucket),
				slog.String("key", objectKey),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrObjectNotFound
		}

		b.log.Error("Failed to get object from S3",
			slog.String("bucket", bucket),
			slog.String("key", objectKey),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: failed to get object from S3: %v", interfaces.ErrStorageIO, err)
	}
	defer result.Body.Close()

	obj, err := interfaces.LocalObjectFromReader(result.Body, "model-download-*")
	if err != nil {
		b.log.Error("Failed to read object body",
			slog.String("bucket", bucket),
			slog.String("key", objectKey),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, err
	}

	b.log.Debug("Fetched object from S3",
		slog.String("bucket", bucket),
		slog.String("key", objectKey),
		slog.Duration("duration", time.Since(start)))

	return obj, nil
}

// Stat issues a HeadObject for s3://{namespace}/{objectKey} and returns its content length.
func (b *S3Backend) Stat(ctx context.Context, namespace string, objectKey string) (int64, error) {
	bucket := b.bucket(namespace)
	result, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, interfaces.ErrObjectNotFound
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: failed to head object in S3: %v", interfaces.ErrStorageIO, err)
	}
	return aws.Int64Value(result.ContentLength), nil
}

// Delete removes s3://{namespace}/{objectKey}. S3 reports success for missing keys.
func (b *S3Backend) Delete(ctx context.Context, namespace string, objectKey string) error {
	bucket := b.bucket(namespace)
	_, err := b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("%w: failed to delete object from S3: %v", interfaces.ErrStorageIO, err)
	}
	return nil
}

// Available checks if the S3 backend is accessible by attempting to head the default bucket.
func (b *S3Backend) Available(ctx context.Context) bool {
	if b.defaultBucket == "" {
		return true
	}

	start := time.Now()
	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.defaultBucket),
	})
	if err != nil {
		b.log.Warn("S3 backend unavailable",
			slog.String("bucket", b.defaultBucket),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *S3Backend) Name() string {
	if b.defaultBucket == "" {
		return "s3"
	}
	return fmt.Sprintf("s3-%s", b.defaultBucket)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *S3Backend) LocationURI() string {
	return b.locationURI
}

func (b *S3Backend) bucket(namespace string) string {
	if namespace == "" {
		return b.defaultBucket
	}
	return namespace
}

// isS3NotFound reports whether err means the key does not exist. A missing
// bucket is a configuration problem and is not treated as not-found.
func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		case s3.ErrCodeNoSuchBucket:
			return false
		}
	}

	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode() == http.StatusNotFound
	}
	return false
}
