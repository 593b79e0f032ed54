package dominant

import (
	"context"
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/calhue/internal/cache"
	"github.com/jmylchreest/calhue/internal/colour"
	"github.com/jmylchreest/calhue/internal/image"
)

// writePrimaries writes a 2x2 image: red, red / blue, green.
func writePrimaries(t *testing.T, path string) {
	t.Helper()

	img := stdimage.NewRGBA(stdimage.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{R: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})
	img.Set(1, 1, color.RGBA{G: 255, A: 255})

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// countingLoader wraps a FileLoader and counts pixel loads.
type countingLoader struct {
	*image.FileLoader
	loads atomic.Int32
}

func (l *countingLoader) LoadPixels(path string) (colour.Pixels, error) {
	l.loads.Add(1)
	return l.FileLoader.LoadPixels(path)
}

func config(n int) colour.Config {
	return colour.Config{ColourCount: n, QuantisationBits: colour.DefaultQuantisationBits}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(colour.Config{})
	assert.ErrorIs(t, err, colour.ErrInvalidConfig)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "n=5,bits=5,max=512", Fingerprint(colour.DefaultConfig(), 512))
	assert.Equal(t, "n=5,bits=5,max=0", Fingerprint(colour.DefaultConfig(), -1))
}

func TestExtractPrimaries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "primaries.png")
	writePrimaries(t, path)

	svc, err := New(config(3))
	require.NoError(t, err)

	got, err := svc.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ff0000", "00ff00", "0000ff"}, got)
}

func TestExtractFewerThanRequested(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "primaries.png")
	writePrimaries(t, path)

	svc, err := New(config(8))
	require.NoError(t, err)

	got, err := svc.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestExtractUsesCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "primaries.png")
	writePrimaries(t, path)

	loader := &countingLoader{FileLoader: image.NewFileLoader()}
	c := cache.New(cache.NewSidecarStore(""), cache.WithFingerprint(Fingerprint(config(3), 0)))
	svc, err := New(config(3), WithLoader(loader), WithCache(c))
	require.NoError(t, err)

	first, err := svc.Extract(ctx, path)
	require.NoError(t, err)
	second, err := svc.Extract(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), loader.loads.Load())
	assert.FileExists(t, filepath.Join(dir, "primaries.colours"))

	refreshed, err := svc.Refresh(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, first, refreshed)
	assert.Equal(t, int32(2), loader.loads.Load())
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	notImage := filepath.Join(dir, "text.png")
	require.NoError(t, os.WriteFile(notImage, []byte("hello"), 0o600))

	c := cache.New(cache.NewSidecarStore(""))

	for _, svcOpts := range [][]Option{nil, {WithCache(c)}} {
		svc, err := New(config(3), svcOpts...)
		require.NoError(t, err)

		_, err = svc.Extract(context.Background(), filepath.Join(dir, "missing.png"))
		assert.ErrorIs(t, err, image.ErrSourceUnavailable)

		_, err = svc.Extract(context.Background(), notImage)
		assert.ErrorIs(t, err, image.ErrSourceUnavailable)
	}

	_, err := os.Stat(filepath.Join(dir, "text.colours"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "failed extractions must not be cached")
}

func TestExtractCancelled(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "primaries.png")
	writePrimaries(t, path)

	svc, err := New(config(3))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Extract(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		p := filepath.Join(dir, name)
		writePrimaries(t, p)
		paths = append(paths, p)
	}
	missing := filepath.Join(dir, "missing.png")
	paths = append(paths[:2], append([]string{missing}, paths[2:]...)...)

	svc, err := New(config(2))
	require.NoError(t, err)

	for _, workers := range []int{0, 1, 3} {
		results, err := svc.ExtractBatch(context.Background(), paths, workers)
		require.NoError(t, err)
		require.Len(t, results, len(paths))

		for i, r := range results {
			assert.Equal(t, paths[i], r.Path, "results keep input order")
			if r.Path == missing {
				assert.ErrorIs(t, r.Err, image.ErrSourceUnavailable)
				assert.Nil(t, r.Colours)
				continue
			}
			require.NoError(t, r.Err)
			assert.Equal(t, []string{"ff0000", "00ff00"}, r.Colours)
		}
		assert.Equal(t, 1, Failed(results))
	}
}

func TestExtractBatchCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	for _, p := range paths {
		writePrimaries(t, p)
	}

	svc, err := New(config(2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := svc.ExtractBatch(ctx, paths, 2)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Equal(t, 2, Failed(results))
}

func TestExtractBatchEmpty(t *testing.T) {
	t.Parallel()

	svc, err := New(colour.DefaultConfig())
	require.NoError(t, err)

	results, err := svc.ExtractBatch(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}
