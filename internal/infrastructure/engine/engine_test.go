package engine

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkazymov/imgcache/internal/config"
	"github.com/mkazymov/imgcache/internal/domain"
)

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 120, G: 60, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func newTestEngine(decodeCache bool) *Engine {
	return New(&config.ProcessingConfig{
		OutputQuality:     90,
		ResampleFilter:    "lanczos",
		DecodeCache:       decodeCache,
		DecodeCacheTTLSec: 60,
	})
}

func TestProbe(t *testing.T) {
	e := newTestEngine(false)

	dims, err := e.Probe(testJPEG(t, 600, 500))
	require.NoError(t, err)
	assert.Equal(t, domain.Dimensions{Width: 600, Height: 500}, dims)
}

func TestProbeRejectsGarbage(t *testing.T) {
	e := newTestEngine(false)

	_, err := e.Probe([]byte("not an image at all"))
	assert.Error(t, err)
}

func TestResizeProducesExactDimensions(t *testing.T) {
	e := newTestEngine(false)
	src := testJPEG(t, 600, 500)

	out, dims, err := e.Resize("fjord", src, domain.Dimensions{Width: 200, Height: 167})
	require.NoError(t, err)
	assert.Equal(t, domain.Dimensions{Width: 200, Height: 167}, dims)

	probed, err := e.Probe(out)
	require.NoError(t, err)
	assert.Equal(t, dims, probed)
}

func TestResizeAllowsDistortion(t *testing.T) {
	e := newTestEngine(false)
	src := testJPEG(t, 600, 500)

	// Both axes requested: no aspect ratio enforcement.
	_, dims, err := e.Resize("fjord", src, domain.Dimensions{Width: 300, Height: 300})
	require.NoError(t, err)
	assert.Equal(t, domain.Dimensions{Width: 300, Height: 300}, dims)
}

func TestResizeRejectsGarbage(t *testing.T) {
	e := newTestEngine(false)

	_, _, err := e.Resize("fjord", []byte("garbage"), domain.Dimensions{Width: 10, Height: 10})
	assert.Error(t, err)
}

func TestResizeWithDecodeCache(t *testing.T) {
	e := newTestEngine(true)
	src := testJPEG(t, 600, 500)

	first, dims, err := e.Resize("fjord", src, domain.Dimensions{Width: 200, Height: 167})
	require.NoError(t, err)
	assert.Equal(t, domain.Dimensions{Width: 200, Height: 167}, dims)

	// Second call hits the decoded cache and must produce identical output.
	second, _, err := e.Resize("fjord", src, domain.Dimensions{Width: 200, Height: 167})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
