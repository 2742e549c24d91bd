package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/config"
)

// minioStorage implements IObjectStorage on a MinIO server.
type minioStorage struct {
	client  *minio.Client
	bucket  string
	baseURL string
	logger  *zap.Logger
}

// NewMinioStorage connects to MinIO and makes sure the bucket exists.
func NewMinioStorage(cfg *config.Config, logger *zap.Logger) (IObjectStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", cfg.MinioEndpoint, err)
	}

	ctx := context.Background()
	if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, errBucketExists := client.BucketExists(ctx, cfg.S3Bucket)
		if errBucketExists != nil || !exists {
			return nil, fmt.Errorf("failed to make/verify bucket %s: (make: %v / exists_check: %v)", cfg.S3Bucket, err, errBucketExists)
		}
	}
	logger.Info("MinIO storage ready", zap.String("endpoint", cfg.MinioEndpoint), zap.String("bucket", cfg.S3Bucket))

	baseURL := cfg.PublicAssetBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s/%s", client.EndpointURL().String(), cfg.S3Bucket)
	}

	return &minioStorage{
		client:  client,
		bucket:  cfg.S3Bucket,
		baseURL: baseURL,
		logger:  logger,
	}, nil
}

// Put without Overwrite checks for the key first. Two writers racing on the
// same key can both pass the check; keys carry a nanosecond timestamp so this
// needs the same owner uploading twice within one tick.
func (s *minioStorage) Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error {
	if !opts.Overwrite {
		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return fmt.Errorf("put %s: %w", key, ErrObjectExists)
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return fmt.Errorf("failed to stat object %s: %w", key, err)
		}
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		s.logger.Error("MinIO PutObject failed", zap.String("bucket", s.bucket), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", key, s.bucket, err)
	}
	s.logger.Debug("MinIO object stored", zap.String("key", info.Key), zap.Int64("size", info.Size))
	return nil
}

func (s *minioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("get %s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return obj, nil
}

func (s *minioStorage) PublicURL(key string) string {
	return publicURL(s.baseURL, key)
}

// New picks the driver named by cfg.StorageDriver.
func New(cfg *config.Config, logger *zap.Logger) (IObjectStorage, error) {
	if cfg.StorageDriver == config.StorageDriverMinio {
		return NewMinioStorage(cfg, logger)
	}
	return NewS3Storage(cfg, logger)
}
