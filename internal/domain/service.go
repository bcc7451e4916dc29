package domain

import (
	"context"
	"io"
)

type ImageService interface {
	// Serve resolves the requested dimensions against the source image and
	// returns the original, a cached variant or a freshly generated one.
	Serve(ctx context.Context, sourceID string, query Query) (*Served, error)
}

// VariantStore is the backing store: a read-only originals area and a
// read/write variants area. Lookup reports absence via Exists=false, never
// through an error.
type VariantStore interface {
	OpenOriginal(ctx context.Context, sourceID string) (io.ReadCloser, error)
	Lookup(ctx context.Context, key string) (*Variant, error)
	OpenVariant(ctx context.Context, key string) (io.ReadCloser, error)
	Persist(ctx context.Context, key string, r io.Reader) error
}

// ResizeEngine decodes, resamples and re-encodes raster data. Probe reads
// only enough to report the image dimensions.
type ResizeEngine interface {
	Probe(data []byte) (Dimensions, error)
	Resize(sourceID string, data []byte, target Dimensions) ([]byte, Dimensions, error)
}
