// Package archive uploads exported board reports to S3-compatible
// object storage. The uploader is optional; a nil *Uploader disables it.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Uploader struct {
	client *minio.Client
	bucket string
}

// NewUploader connects to the object store and ensures the bucket
// exists. Returns (nil, nil) when no endpoint is configured.
func NewUploader(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Uploader{client: client, bucket: cfg.Bucket}, nil
}

// Enabled reports whether uploads will actually happen.
func (u *Uploader) Enabled() bool {
	return u != nil
}

// Upload stores an exported report under the given object name.
func (u *Uploader) Upload(ctx context.Context, objectName string, data []byte, contentType string) error {
	if u == nil {
		return nil
	}
	_, err := u.client.PutObject(ctx, u.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", objectName, err)
	}
	return nil
}

// ObjectName builds a dated storage key for a board's export.
func ObjectName(boardID, filename string, now time.Time) string {
	return fmt.Sprintf("reports/%s/%s/%s", now.Format("2006/01"), boardID, filename)
}
