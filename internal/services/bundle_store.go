package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/BradenHooton/csm/internal/config"
)

// BundleStore keeps support bundle archives
type BundleStore interface {
	Put(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
	// Location describes where key lives, for display
	Location(key string) string
}

// S3API is the part of the S3 client used for bundles
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3BundleStore uploads bundles to an S3 compatible bucket
type S3BundleStore struct {
	client S3API
	bucket string
}

// NewS3BundleStore builds a client for cfg. A custom endpoint targets S3
// compatible services such as the cluster's own object store.
func NewS3BundleStore(ctx context.Context, cfg config.SupportBundleConfig) (*S3BundleStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewS3BundleStoreWithClient(client, cfg.Bucket), nil
}

func NewS3BundleStoreWithClient(client S3API, bucket string) *S3BundleStore {
	return &S3BundleStore{client: client, bucket: bucket}
}

func (s *S3BundleStore) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/gzip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *S3BundleStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *S3BundleStore) Location(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// FileBundleStore keeps bundles below a local directory
type FileBundleStore struct {
	dir string
}

func NewFileBundleStore(dir string) *FileBundleStore {
	return &FileBundleStore{dir: dir}
}

func (s *FileBundleStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid bundle key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *FileBundleStore) Put(_ context.Context, key string, body []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("failed to create bundle directory: %w", err)
	}
	if err := os.WriteFile(p, body, 0o640); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key; a missing file is not an error
func (s *FileBundleStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *FileBundleStore) Location(key string) string {
	p, err := s.path(key)
	if err != nil {
		return key
	}
	return p
}
