package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/mkazymov/imgcache/internal/domain"
	"github.com/mkazymov/imgcache/internal/infrastructure/storage"
	"github.com/mkazymov/imgcache/internal/resolver"
	"github.com/mkazymov/imgcache/internal/variant"
)

type ImageUsecase struct {
	store    domain.VariantStore
	engine   domain.ResizeEngine
	strategy retry.Strategy

	persistWG sync.WaitGroup
}

func NewImageUsecase(
	store domain.VariantStore,
	engine domain.ResizeEngine,
	strategy retry.Strategy,
) *ImageUsecase {
	return &ImageUsecase{
		store:    store,
		engine:   engine,
		strategy: strategy,
	}
}

// Serve runs one request through the pipeline: open the original, resolve
// the target dimensions, then pick the original / cached / new path.
func (u *ImageUsecase) Serve(ctx context.Context, sourceID string, query domain.Query) (*domain.Served, error) {
	// Source existence is checked before any dimension work.
	file, err := u.store.OpenOriginal(ctx, sourceID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, domain.ErrImageNotFound
		}
		zlog.Logger.Error().Err(err).Str("source_id", sourceID).Msg("failed to open original")
		return nil, domain.ErrImageNotFound
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("source_id", sourceID).Msg("failed to read original")
		return nil, domain.ErrImageNotFound
	}

	origDims, err := u.engine.Probe(data)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("source_id", sourceID).Msg("failed to probe original dimensions")
		return nil, fmt.Errorf("%w: %v", domain.ErrProcessingFailed, err)
	}

	resolved, err := resolver.Resolve(origDims, query)
	if err != nil {
		return nil, err
	}

	// Resolved target equal to the source on both axes: no variant lookup,
	// no resize.
	if resolved == origDims {
		zlog.Logger.Info().
			Str("source_id", sourceID).
			Int("width", origDims.Width).
			Int("height", origDims.Height).
			Msg("serving original image")
		return &domain.Served{
			Origin: domain.OriginOriginal,
			Data:   data,
			Width:  origDims.Width,
			Height: origDims.Height,
		}, nil
	}

	key := variant.Filename(sourceID, resolved)

	if served := u.serveCached(ctx, sourceID, key, resolved); served != nil {
		return served, nil
	}

	out, outDims, err := u.engine.Resize(sourceID, data, resolved)
	if err != nil {
		zlog.Logger.Error().Err(err).
			Str("source_id", sourceID).
			Int("width", resolved.Width).
			Int("height", resolved.Height).
			Msg("resize failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrProcessingFailed, err)
	}

	// Best-effort write-behind: the response is already decided, a failed
	// persist only costs the next request a regeneration. The detached
	// context lets the write finish after a client disconnect.
	u.persistWG.Add(1)
	go func(ctx context.Context) {
		defer u.persistWG.Done()
		u.persistVariant(ctx, key, out)
	}(context.WithoutCancel(ctx))

	return &domain.Served{
		Origin: domain.OriginNew,
		Data:   out,
		Width:  outDims.Width,
		Height: outDims.Height,
	}, nil
}

// serveCached returns the stored variant when it exists with exactly the
// resolved dimensions. Any store trouble is logged and reported as a miss.
func (u *ImageUsecase) serveCached(ctx context.Context, sourceID, key string, resolved domain.Dimensions) *domain.Served {
	v, err := u.store.Lookup(ctx, key)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("key", key).Msg("variant lookup failed, regenerating")
		return nil
	}
	if !v.Exists || v.Width != resolved.Width || v.Height != resolved.Height {
		return nil
	}

	rc, err := u.store.OpenVariant(ctx, key)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("key", key).Msg("cached variant unreadable, regenerating")
		return nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("key", key).Msg("failed to read cached variant, regenerating")
		return nil
	}

	zlog.Logger.Info().
		Str("source_id", sourceID).
		Str("key", key).
		Msg("serving cached variant")

	return &domain.Served{
		Origin: domain.OriginCached,
		Data:   data,
		Width:  v.Width,
		Height: v.Height,
	}
}

func (u *ImageUsecase) persistVariant(ctx context.Context, key string, data []byte) {
	attempts := u.strategy.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := u.strategy.Delay

	var err error
	for i := 0; i < attempts; i++ {
		if err = u.store.Persist(ctx, key, bytes.NewReader(data)); err == nil {
			return
		}
		zlog.Logger.Warn().Err(err).
			Str("key", key).
			Int("attempt", i+1).
			Int("attempts", attempts).
			Msg("variant persist attempt failed")
		if i < attempts-1 {
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * u.strategy.Backoff)
		}
	}

	// Swallowed: the client already has the bytes.
	zlog.Logger.Error().Err(err).Str("key", key).Msg("giving up persisting variant")
}

// Wait blocks until all background variant writes have finished. Called on
// shutdown so in-flight writes are not cut off mid-file.
func (u *ImageUsecase) Wait() {
	u.persistWG.Wait()
}
