package usecase

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/mkazymov/imgcache/internal/config"
	"github.com/mkazymov/imgcache/internal/domain"
	"github.com/mkazymov/imgcache/internal/infrastructure/engine"
	"github.com/mkazymov/imgcache/internal/infrastructure/storage"
	"github.com/mkazymov/imgcache/internal/variant"
)

type fakeStore struct {
	mu          sync.Mutex
	originals   map[string][]byte
	variants    map[string][]byte
	variantDims map[string]domain.Dimensions
	lookupErr   error
	persistErr  error
	persisted   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		originals:   make(map[string][]byte),
		variants:    make(map[string][]byte),
		variantDims: make(map[string]domain.Dimensions),
	}
}

func (f *fakeStore) OpenOriginal(ctx context.Context, sourceID string) (io.ReadCloser, error) {
	data, ok := f.originals[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, sourceID)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Lookup(ctx context.Context, key string) (*domain.Variant, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.variants[key]; !ok {
		return &domain.Variant{Key: key, Exists: false}, nil
	}
	dims := f.variantDims[key]
	return &domain.Variant{Key: key, Exists: true, Width: dims.Width, Height: dims.Height}, nil
}

func (f *fakeStore) OpenVariant(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.variants[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Persist(ctx context.Context, key string, r io.Reader) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variants[key] = data
	f.variantDims[key] = domain.Dimensions{Width: cfg.Width, Height: cfg.Height}
	f.persisted = append(f.persisted, key)
	return nil
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func axis(v float64) *float64 {
	return &v
}

func newTestUsecase(t *testing.T) (*ImageUsecase, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	eng := engine.New(&config.ProcessingConfig{OutputQuality: 90, ResampleFilter: "lanczos"})
	strategy := retry.Strategy{Attempts: 2, Delay: time.Millisecond, Backoff: 2.0}
	return NewImageUsecase(store, eng, strategy), store
}

func TestServeOriginalWhenNoQuery(t *testing.T) {
	u, store := newTestUsecase(t)
	src := testJPEG(t, 600, 500)
	store.originals["fjord"] = src

	served, err := u.Serve(context.Background(), "fjord", domain.Query{})
	require.NoError(t, err)

	assert.Equal(t, domain.OriginOriginal, served.Origin)
	assert.Equal(t, 600, served.Width)
	assert.Equal(t, 500, served.Height)
	assert.Equal(t, src, served.Data)

	u.Wait()
	assert.Empty(t, store.persisted, "serving the original must not write a variant")
}

func TestServeOriginalWhenResolvedMatchesSource(t *testing.T) {
	u, store := newTestUsecase(t)
	store.originals["fjord"] = testJPEG(t, 600, 500)

	served, err := u.Serve(context.Background(), "fjord", domain.Query{Width: axis(600), Height: axis(500)})
	require.NoError(t, err)
	assert.Equal(t, domain.OriginOriginal, served.Origin)
}

func TestServeNotFound(t *testing.T) {
	u, _ := newTestUsecase(t)

	_, err := u.Serve(context.Background(), "missing", domain.Query{Width: axis(200)})
	assert.ErrorIs(t, err, domain.ErrImageNotFound)
}

func TestServeNotFoundBeforeValidation(t *testing.T) {
	u, _ := newTestUsecase(t)

	// Source existence is checked first, so bad dimensions on a missing
	// source still report not-found.
	_, err := u.Serve(context.Background(), "missing", domain.Query{Height: axis(-200)})
	assert.ErrorIs(t, err, domain.ErrImageNotFound)
}

func TestServeInvalidDimensions(t *testing.T) {
	u, store := newTestUsecase(t)
	store.originals["fjord"] = testJPEG(t, 600, 500)

	_, err := u.Serve(context.Background(), "fjord", domain.Query{Height: axis(-200)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidDimensions)
	assert.Contains(t, err.Error(), "height")

	u.Wait()
	assert.Empty(t, store.persisted)
}

func TestServeNewThenCached(t *testing.T) {
	u, store := newTestUsecase(t)
	store.originals["fjord"] = testJPEG(t, 600, 500)
	query := domain.Query{Width: axis(300), Height: axis(300)}

	first, err := u.Serve(context.Background(), "fjord", query)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginNew, first.Origin)
	assert.Equal(t, 300, first.Width)
	assert.Equal(t, 300, first.Height)

	u.Wait()
	key := variant.Filename("fjord", domain.Dimensions{Width: 300, Height: 300})
	assert.Contains(t, store.persisted, key)

	second, err := u.Serve(context.Background(), "fjord", query)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginCached, second.Origin)
	assert.Equal(t, 300, second.Width)
	assert.Equal(t, 300, second.Height)
	assert.Equal(t, first.Data, second.Data)
}

func TestServeAutoScaledCacheRoundTrip(t *testing.T) {
	u, store := newTestUsecase(t)
	store.originals["fjord"] = testJPEG(t, 600, 500) // ratio 1.2

	first, err := u.Serve(context.Background(), "fjord", domain.Query{Width: axis(200)})
	require.NoError(t, err)
	assert.Equal(t, domain.OriginNew, first.Origin)
	assert.Equal(t, 200, first.Width)
	assert.Equal(t, 167, first.Height)

	u.Wait()

	second, err := u.Serve(context.Background(), "fjord", domain.Query{Width: axis(200)})
	require.NoError(t, err)
	assert.Equal(t, domain.OriginCached, second.Origin)
}

func TestServeRegeneratesOnStoredDimensionMismatch(t *testing.T) {
	u, store := newTestUsecase(t)
	store.originals["fjord"] = testJPEG(t, 600, 500)

	// A stale record under the right key but with the wrong stored size
	// must not be served.
	key := variant.Filename("fjord", domain.Dimensions{Width: 300, Height: 300})
	store.variants[key] = testJPEG(t, 300, 200)
	store.variantDims[key] = domain.Dimensions{Width: 300, Height: 200}

	served, err := u.Serve(context.Background(), "fjord", domain.Query{Width: axis(300), Height: axis(300)})
	require.NoError(t, err)
	assert.Equal(t, domain.OriginNew, served.Origin)
	assert.Equal(t, 300, served.Width)
	assert.Equal(t, 300, served.Height)
}

func TestServeLookupErrorDegradesToMiss(t *testing.T) {
	u, store := newTestUsecase(t)
	store.originals["fjord"] = testJPEG(t, 600, 500)
	store.lookupErr = fmt.Errorf("disk on fire")

	served, err := u.Serve(context.Background(), "fjord", domain.Query{Width: axis(300), Height: axis(300)})
	require.NoError(t, err)
	assert.Equal(t, domain.OriginNew, served.Origin)
}

func TestServePersistFailureDoesNotAffectResponse(t *testing.T) {
	u, store := newTestUsecase(t)
	store.originals["fjord"] = testJPEG(t, 600, 500)
	store.persistErr = fmt.Errorf("disk full")

	served, err := u.Serve(context.Background(), "fjord", domain.Query{Width: axis(300), Height: axis(300)})
	require.NoError(t, err)
	assert.Equal(t, domain.OriginNew, served.Origin)

	u.Wait()
	assert.Empty(t, store.persisted)
}

func TestServeCorruptOriginal(t *testing.T) {
	u, store := newTestUsecase(t)
	store.originals["broken"] = []byte("this is not a jpeg")

	_, err := u.Serve(context.Background(), "broken", domain.Query{Width: axis(100)})
	assert.ErrorIs(t, err, domain.ErrProcessingFailed)
}
