package storage

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"

	"github.com/wb-go/wbf/zlog"

	"github.com/mkazymov/imgcache/internal/config"
	"github.com/mkazymov/imgcache/internal/domain"
)

var ErrObjectNotFound = errors.New("object not found")

func New(cfg *config.StorageConfig) (domain.VariantStore, error) {
	switch cfg.Type {
	case "local":
		zlog.Logger.Info().Msg("Initializing local storage")
		return NewLocalStorage(cfg)
	case "s3":
		zlog.Logger.Info().Msg("Initializing S3 storage")
		return NewS3Storage(cfg)
	default:
		zlog.Logger.Error().Str("type", cfg.Type).Msg("Unsupported storage type, use 'local' or 's3'")
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// probeDimensions reads just the JPEG header to get the stored size.
func probeDimensions(r io.Reader) (int, int, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
