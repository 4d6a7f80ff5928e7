// Package objstore uploads files to S3-compatible object storage and hands
// back presigned download links.
package objstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignExpiry is the lifetime of the download links returned by Upload.
const PresignExpiry = time.Hour

// Config configures the store.
type Config struct {
	// EndpointURL is the service URL, e.g. http://minio:9000. Empty selects AWS.
	EndpointURL string
	Region      string
	AccessKey   string
	SecretKey   string
	Bucket      string
	UseSSL      bool
}

// bucketAPI is the subset of *minio.Client used by Store.
type bucketAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Store uploads objects into one bucket.
type Store struct {
	api    bucketAPI
	bucket string
	region string

	mu    sync.Mutex
	ready bool
}

// endpoint splits an endpoint URL into the host minio expects and whether
// TLS should be used.
func endpoint(raw string, useSSL bool) (string, bool, error) {
	if raw == "" {
		return "s3.amazonaws.com", true, nil
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid endpoint url %q: missing host", raw)
	}
	return u.Host, useSSL || u.Scheme == "https", nil
}

// New connects a Store using path-style addressing.
func New(cfg Config) (*Store, error) {
	host, secure, err := endpoint(cfg.EndpointURL, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return newStore(client, cfg.Bucket, cfg.Region), nil
}

func newStore(api bucketAPI, bucket, region string) *Store {
	return &Store{api: api, bucket: bucket, region: region}
}

// Bucket returns the target bucket name.
func (s *Store) Bucket() string { return s.bucket }

// ensureBucket creates the bucket on first use. A failed attempt is retried
// on the next upload.
func (s *Store) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	s.ready = true
	return nil
}

// Upload puts the file at path under key and returns a presigned GET URL.
func (s *Store) Upload(ctx context.Context, path, key, contentType string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	if _, err := s.api.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	u, err := s.api.PresignedGetObject(ctx, s.bucket, key, PresignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}
