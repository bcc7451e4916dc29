package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wb-go/wbf/zlog"

	"github.com/mkazymov/imgcache/internal/config"
	"github.com/mkazymov/imgcache/internal/domain"
)

type localStorage struct {
	basePath    string
	originalDir string
	variantDir  string
}

func NewLocalStorage(cfg *config.StorageConfig) (domain.VariantStore, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("LocalPath is empty, set storage.local_path in config or env")
	}
	if cfg.OriginalDir == "" {
		cfg.OriginalDir = "full"
	}
	if cfg.VariantDir == "" {
		cfg.VariantDir = "thumb"
	}

	storage := &localStorage{
		basePath:    cfg.LocalPath,
		originalDir: cfg.OriginalDir,
		variantDir:  cfg.VariantDir,
	}

	// Originals must be servable from the start; the variant directory is
	// created lazily on the first write.
	originalPath := filepath.Join(storage.basePath, storage.originalDir)
	if err := os.MkdirAll(originalPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create original directory: %w", err)
	}

	return storage, nil
}

func (s *localStorage) OpenOriginal(ctx context.Context, sourceID string) (io.ReadCloser, error) {
	if sourceID == "" || sourceID != filepath.Base(sourceID) {
		zlog.Logger.Warn().Str("source_id", sourceID).Msg("rejecting source id that is not a bare file name")
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, sourceID)
	}

	fullPath := filepath.Join(s.basePath, s.originalDir, sourceID+".jpg")

	// Single open attempt; absence is read off the error rather than a
	// separate existence check.
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, sourceID)
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to open original")
		return nil, fmt.Errorf("open original %s: %w", fullPath, err)
	}

	return file, nil
}

func (s *localStorage) Lookup(ctx context.Context, key string) (*domain.Variant, error) {
	fullPath := filepath.Join(s.basePath, s.variantDir, key)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.Variant{Key: key, Exists: false}, nil
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to open variant for lookup")
		return nil, fmt.Errorf("open variant %s: %w", fullPath, err)
	}
	defer file.Close()

	width, height, err := probeDimensions(file)
	if err != nil {
		// An unreadable cached file is as good as a miss; regeneration
		// will overwrite it.
		zlog.Logger.Warn().Err(err).Str("path", fullPath).Msg("cached variant unreadable, treating as miss")
		return &domain.Variant{Key: key, Exists: false}, nil
	}

	return &domain.Variant{Key: key, Exists: true, Width: width, Height: height}, nil
}

func (s *localStorage) OpenVariant(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.basePath, s.variantDir, key)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to open variant")
		return nil, fmt.Errorf("open variant %s: %w", fullPath, err)
	}

	return file, nil
}

func (s *localStorage) Persist(ctx context.Context, key string, r io.Reader) error {
	if r == nil {
		zlog.Logger.Error().Str("key", key).Msg("reader is nil")
		return fmt.Errorf("reader is nil")
	}

	dir := filepath.Join(s.basePath, s.variantDir)

	// MkdirAll succeeds when another request already created the directory.
	if err := os.MkdirAll(dir, 0755); err != nil {
		zlog.Logger.Error().Err(err).Str("path", dir).Msg("failed to create variant directory")
		return fmt.Errorf("create variant directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, key+".tmp-*")
	if err != nil {
		zlog.Logger.Error().Err(err).Str("key", key).Msg("failed to create temp file")
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}

	written, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		zlog.Logger.Error().Err(err).Str("key", key).Msg("failed to write variant")
		return fmt.Errorf("write variant %s: %w", key, err)
	}
	if written == 0 {
		os.Remove(tmp.Name())
		zlog.Logger.Error().Str("key", key).Msg("no bytes written to variant")
		return fmt.Errorf("no bytes written to variant %s", key)
	}

	// Atomic replace-or-create: concurrent writers of the same key race but
	// the last rename wins with no torn file.
	fullPath := filepath.Join(dir, key)
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to move variant into place")
		return fmt.Errorf("rename variant %s: %w", key, err)
	}

	zlog.Logger.Info().
		Str("key", key).
		Int64("bytes", written).
		Msg("variant saved successfully")

	return nil
}
