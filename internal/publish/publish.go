// Package publish uploads generated datasets to S3-compatible object storage.
package publish

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nvandessel/battsim/internal/config"
	"github.com/nvandessel/battsim/internal/constants"
	"github.com/nvandessel/battsim/internal/dataset"
	"github.com/nvandessel/battsim/internal/sanitize"
)

// Object identifies an uploaded dataset.
type Object struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	ETag   string `json:"etag,omitempty"`
	Size   int64  `json:"size"`
}

// Publisher uploads a local dataset file.
type Publisher interface {
	// Publish uploads the file at localPath under key. Metadata is stored
	// as object user metadata.
	Publish(ctx context.Context, localPath, key string, metadata map[string]string) (*Object, error)
}

// S3Publisher publishes to a bucket through the MinIO client.
type S3Publisher struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates a publisher from configuration. It does not contact the server.
func New(cfg config.PublishConfig) (*S3Publisher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("publish endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &S3Publisher{client: client, bucket: cfg.Bucket, prefix: sanitize.KeySegment(cfg.Prefix)}, nil
}

// Bucket returns the destination bucket.
func (p *S3Publisher) Bucket() string {
	return p.bucket
}

// EnsureBucket creates the bucket if it does not exist.
func (p *S3Publisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("s3 bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("s3 make bucket: %w", err)
	}
	return nil
}

// Publish uploads localPath to the bucket. The configured prefix is
// prepended to key.
func (p *S3Publisher) Publish(ctx context.Context, localPath, key string, metadata map[string]string) (*Object, error) {
	objectKey := path.Join(p.prefix, key)

	info, err := p.client.FPutObject(ctx, p.bucket, objectKey, localPath, minio.PutObjectOptions{
		ContentType:  ContentType(localPath),
		UserMetadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put object: %w", err)
	}

	return &Object{Bucket: info.Bucket, Key: info.Key, ETag: info.ETag, Size: info.Size}, nil
}

// ObjectKey builds the key a dataset is published under:
// <domain>/<batch>/<file name>, each part reduced to key-safe characters.
func ObjectKey(domain, batchID, localPath string) string {
	return path.Join(sanitize.KeySegment(domain), sanitize.KeySegment(batchID), sanitize.KeySegment(filepath.Base(localPath)))
}

// ContentType returns the MIME type for a dataset file.
func ContentType(localPath string) string {
	if dataset.FormatForPath(localPath) == constants.FormatArrow {
		return "application/vnd.apache.arrow.file"
	}
	return "text/csv"
}

// Metadata returns the user metadata attached to a published dataset.
// Keys are lower-case; S3 stores them with the X-Amz-Meta- prefix.
func Metadata(runID, domain string, seed int64, rows int, checksum string) map[string]string {
	return map[string]string{
		"run-id":   runID,
		"domain":   domain,
		"seed":     fmt.Sprint(seed),
		"rows":     fmt.Sprint(rows),
		"checksum": strings.TrimPrefix(checksum, "sha256:"),
	}
}
