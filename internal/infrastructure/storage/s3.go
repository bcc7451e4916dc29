package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"

	"github.com/mkazymov/imgcache/internal/config"
	"github.com/mkazymov/imgcache/internal/domain"
)

type s3Storage struct {
	client      *minio.Client
	bucket      string
	originalDir string
	variantDir  string
}

func NewS3Storage(cfg *config.StorageConfig) (domain.VariantStore, error) {
	if cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	if cfg.OriginalDir == "" {
		cfg.OriginalDir = "full"
	}
	if cfg.VariantDir == "" {
		cfg.VariantDir = "thumb"
	}

	creds := credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, "")
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check s3 bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			zlog.Logger.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("unable to create bucket, ensure it exists and credentials are correct")
		} else {
			zlog.Logger.Info().Str("bucket", cfg.S3Bucket).Msg("created s3 bucket")
		}
	}

	return &s3Storage{
		client:      client,
		bucket:      cfg.S3Bucket,
		originalDir: cfg.OriginalDir,
		variantDir:  cfg.VariantDir,
	}, nil
}

func (s *s3Storage) OpenOriginal(ctx context.Context, sourceID string) (io.ReadCloser, error) {
	if sourceID == "" || sourceID != path.Base(sourceID) {
		zlog.Logger.Warn().Str("source_id", sourceID).Msg("rejecting source id that is not a bare object name")
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, sourceID)
	}
	return s.getObject(ctx, path.Join(s.originalDir, sourceID+".jpg"))
}

func (s *s3Storage) Lookup(ctx context.Context, key string) (*domain.Variant, error) {
	objectName := path.Join(s.variantDir, key)

	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", objectName).Msg("failed to get variant object")
		return nil, fmt.Errorf("get object %s: %w", objectName, err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return &domain.Variant{Key: key, Exists: false}, nil
		}
		zlog.Logger.Error().Err(err).Str("object", objectName).Msg("failed to stat variant object")
		return nil, fmt.Errorf("stat object %s: %w", objectName, err)
	}

	width, height, err := probeDimensions(obj)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("object", objectName).Msg("cached variant unreadable, treating as miss")
		return &domain.Variant{Key: key, Exists: false}, nil
	}

	return &domain.Variant{Key: key, Exists: true, Width: width, Height: height}, nil
}

func (s *s3Storage) OpenVariant(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.getObject(ctx, path.Join(s.variantDir, key))
}

func (s *s3Storage) getObject(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", objectPath).Msg("failed to get object")
		return nil, fmt.Errorf("get object %s: %w", objectPath, err)
	}

	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectPath)
		}
		zlog.Logger.Error().Err(err).Str("object", objectPath).Msg("object not found or inaccessible")
		return nil, fmt.Errorf("stat object %s: %w", objectPath, err)
	}

	return obj, nil
}

func (s *s3Storage) Persist(ctx context.Context, key string, r io.Reader) error {
	if r == nil {
		zlog.Logger.Error().Str("key", key).Msg("reader is nil")
		return fmt.Errorf("reader is nil")
	}

	objectName := path.Join(s.variantDir, key)

	// A single PutObject is atomic on the object store side; concurrent
	// writers of the same key overwrite each other whole.
	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, -1, minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", objectName).Msg("failed to put variant to s3")
		return fmt.Errorf("put object %s: %w", objectName, err)
	}

	zlog.Logger.Info().Str("path", objectName).Msg("variant saved to s3")
	return nil
}
