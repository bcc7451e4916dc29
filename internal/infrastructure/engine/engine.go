// Package engine wraps decode, resample and re-encode of JPEG data.
package engine

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"time"

	"github.com/disintegration/imaging"
	gocache "github.com/patrickmn/go-cache"
	"github.com/wb-go/wbf/zlog"

	"github.com/mkazymov/imgcache/internal/config"
	"github.com/mkazymov/imgcache/internal/domain"
)

type Engine struct {
	quality int
	filter  imaging.ResampleFilter

	// decoded caches decoded source images per source id. Nil when the
	// cache is disabled in config; there is no process-wide toggle.
	decoded *gocache.Cache
}

func New(cfg *config.ProcessingConfig) *Engine {
	quality := cfg.OutputQuality
	if quality <= 0 || quality > 100 {
		zlog.Logger.Warn().Int("output_quality", cfg.OutputQuality).Msg("Invalid output quality, using default")
		quality = 90
	}

	e := &Engine{
		quality: quality,
		filter:  resampleFilter(cfg.ResampleFilter),
	}

	if cfg.DecodeCache {
		ttl := time.Duration(cfg.DecodeCacheTTLSec) * time.Second
		e.decoded = gocache.New(ttl, 2*ttl)
	}

	zlog.Logger.Info().
		Int("output_quality", quality).
		Str("resample_filter", cfg.ResampleFilter).
		Bool("decode_cache", cfg.DecodeCache).
		Msg("Resize engine initialized")

	return e
}

func resampleFilter(name string) imaging.ResampleFilter {
	switch name {
	case "linear":
		return imaging.Linear
	case "box":
		return imaging.Box
	case "nearest":
		return imaging.NearestNeighbor
	case "catmullrom":
		return imaging.CatmullRom
	case "", "lanczos":
		return imaging.Lanczos
	default:
		zlog.Logger.Warn().Str("resample_filter", name).Msg("Unknown resample filter, using lanczos")
		return imaging.Lanczos
	}
}

// Probe reads only the image header and reports the encoded dimensions.
func (e *Engine) Probe(data []byte) (domain.Dimensions, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.Dimensions{}, fmt.Errorf("decode config: %w", err)
	}
	return domain.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// Resize decodes the source, resamples it to exactly the target dimensions
// and re-encodes as JPEG. The returned dimensions are read back from the
// produced image.
func (e *Engine) Resize(sourceID string, data []byte, target domain.Dimensions) ([]byte, domain.Dimensions, error) {
	img, err := e.decode(sourceID, data)
	if err != nil {
		return nil, domain.Dimensions{}, err
	}

	resized := imaging.Resize(img, target.Width, target.Height, e.filter)
	if resized.Bounds().Dx() == 0 || resized.Bounds().Dy() == 0 {
		zlog.Logger.Error().
			Int("target_width", target.Width).
			Int("target_height", target.Height).
			Msg("resize produced empty image")
		return nil, domain.Dimensions{}, fmt.Errorf("resize produced empty image")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(e.quality)); err != nil {
		zlog.Logger.Error().Err(err).Str("source_id", sourceID).Msg("failed to encode resized image")
		return nil, domain.Dimensions{}, fmt.Errorf("encode image: %w", err)
	}
	if buf.Len() == 0 {
		return nil, domain.Dimensions{}, fmt.Errorf("empty buffer after encoding")
	}

	out := domain.Dimensions{
		Width:  resized.Bounds().Dx(),
		Height: resized.Bounds().Dy(),
	}

	zlog.Logger.Info().
		Str("source_id", sourceID).
		Int("width", out.Width).
		Int("height", out.Height).
		Int("buffer_size", buf.Len()).
		Msg("image resized successfully")

	return buf.Bytes(), out, nil
}

func (e *Engine) decode(sourceID string, data []byte) (image.Image, error) {
	if e.decoded != nil && sourceID != "" {
		if cached, ok := e.decoded.Get(sourceID); ok {
			return cached.(image.Image), nil
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		zlog.Logger.Error().Err(err).Str("source_id", sourceID).Msg("failed to decode image")
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		zlog.Logger.Error().Str("source_id", sourceID).Msg("decoded image is empty")
		return nil, fmt.Errorf("decoded image is empty")
	}

	if e.decoded != nil && sourceID != "" {
		e.decoded.Set(sourceID, img, gocache.DefaultExpiration)
	}

	return img, nil
}
