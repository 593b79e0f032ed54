package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/calhue/internal/image"
)

// counter returns a ComputeFunc yielding colours and a pointer to its call count.
func counter(colours ...string) (ComputeFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context) ([]string, error) {
		calls.Add(1)
		return colours, nil
	}, &calls
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("image bytes"), 0o600))
	return path
}

// touch moves the source mtime past anything written so far.
func touch(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
}

type failingStore struct {
	Store
	saves atomic.Int32
}

func (s *failingStore) Save(context.Context, string, []byte) error {
	s.saves.Add(1)
	return errors.New("disk full")
}

func TestLookupOrComputeHit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	source := writeSource(t, dir, "jan.jpg")
	c := New(NewSidecarStore(""), WithFingerprint("fp"), WithLogger(hclog.NewNullLogger()))
	compute, calls := counter("ff0000", "00ff00")

	got, err := c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"ff0000", "00ff00"}, got)
	assert.FileExists(t, filepath.Join(dir, "jan.colours"))

	got, err = c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"ff0000", "00ff00"}, got)
	assert.Equal(t, int32(1), calls.Load(), "second call must be served from the cache")

	// A fresh cache over the same store sees the persisted record.
	other := New(NewSidecarStore(""), WithFingerprint("fp"))
	_, err = other.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestLookupOrComputeTouchedSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := writeSource(t, t.TempDir(), "feb.png")
	c := New(NewSidecarStore(""))
	compute, calls := counter("2f8dab")

	_, err := c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	touch(t, source)

	got, err := c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"2f8dab"}, got)
	assert.Equal(t, int32(2), calls.Load(), "modified source must be recomputed")
}

func TestLookupOrComputeCorruptArtifact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	source := writeSource(t, dir, "mar.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mar.colours"), []byte("garbage: [\x00"), 0o600))

	c := New(NewSidecarStore(""))
	compute, calls := counter("123456")

	got, err := c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"123456"}, got)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), c.Stats().Corrupt)

	// The corrupt artifact was replaced by a valid one.
	_, err = c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookupOrComputePersistFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := writeSource(t, t.TempDir(), "apr.png")
	store := &failingStore{Store: NewSidecarStore("")}
	c := New(store)
	compute, calls := counter("abcdef")

	got, err := c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err, "persist failures are not fatal")
	assert.Equal(t, []string{"abcdef"}, got)

	_, err = c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(2), store.saves.Load())
	assert.Equal(t, int64(2), c.Stats().PersistFailures)
}

func TestLookupOrComputeComputeError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := writeSource(t, t.TempDir(), "may.png")
	store := NewSidecarStore("")
	c := New(store)
	boom := errors.New("decode failed")

	_, err := c.LookupOrCompute(ctx, source, func(context.Context) ([]string, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Load(ctx, source)
	assert.ErrorIs(t, err, ErrNotFound, "nothing is persisted on failure")
}

func TestLookupOrComputeMissingSource(t *testing.T) {
	t.Parallel()

	c := New(NewSidecarStore(""))
	compute, calls := counter("000000")

	_, err := c.LookupOrCompute(context.Background(), filepath.Join(t.TempDir(), "gone.png"), compute)
	assert.ErrorIs(t, err, image.ErrSourceUnavailable)

	_, err = c.LookupOrCompute(context.Background(), t.TempDir(), compute)
	assert.ErrorIs(t, err, image.ErrSourceUnavailable)

	assert.Zero(t, calls.Load())
}

func TestLookupOrComputeSharedSidecar(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// jun.png and jun.jpg map to the same sidecar; each must see its own result.
	dir := t.TempDir()
	png := writeSource(t, dir, "jun.png")
	jpg := writeSource(t, dir, "jun.jpg")
	c := New(NewSidecarStore(""))

	computePNG, pngCalls := counter("111111")
	computeJPG, jpgCalls := counter("222222")

	got, err := c.LookupOrCompute(ctx, png, computePNG)
	require.NoError(t, err)
	assert.Equal(t, []string{"111111"}, got)

	got, err = c.LookupOrCompute(ctx, jpg, computeJPG)
	require.NoError(t, err)
	assert.Equal(t, []string{"222222"}, got)

	assert.Equal(t, int32(1), pngCalls.Load())
	assert.Equal(t, int32(1), jpgCalls.Load())
}

func TestLookupOrComputeFingerprintChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := writeSource(t, t.TempDir(), "jul.png")
	compute, calls := counter("333333")

	_, err := New(NewSidecarStore(""), WithFingerprint("n=5")).LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)

	_, err = New(NewSidecarStore(""), WithFingerprint("n=6")).LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestLookupOrComputeDirStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := writeSource(t, t.TempDir(), "aug.png")
	store, err := NewDirStore(t.TempDir(), "")
	require.NoError(t, err)
	c := New(store)
	compute, calls := counter("444444")

	for range 3 {
		got, err := c.LookupOrCompute(ctx, source, compute)
		require.NoError(t, err)
		assert.Equal(t, []string{"444444"}, got)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookupOrComputeReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := writeSource(t, t.TempDir(), "sep.png")
	c := New(NewSidecarStore(""))
	compute, _ := counter("555555")

	_, err := c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)

	got, err := c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	got[0] = "000000"

	again, err := c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"555555"}, again)
}

func TestLookupOrComputeConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := writeSource(t, t.TempDir(), "oct.png")
	c := New(NewSidecarStore(""))
	compute, _ := counter("666666")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.LookupOrCompute(ctx, source, compute)
			if err == nil && (len(got) != 1 || got[0] != "666666") {
				err = errors.New("unexpected result")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	stats := c.Stats()
	assert.Equal(t, int64(16), stats.Hits+stats.Misses)
	assert.Zero(t, stats.Corrupt)
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := writeSource(t, t.TempDir(), "nov.png")
	c := New(NewSidecarStore(""))

	_, err := c.LookupOrCompute(ctx, source, func(context.Context) ([]string, error) {
		return []string{"aaaaaa"}, nil
	})
	require.NoError(t, err)

	got, err := c.Refresh(ctx, source, func(context.Context) ([]string, error) {
		return []string{"bbbbbb"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bbbbbb"}, got)

	rec, valid, err := c.Peek(ctx, source)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, []string{"bbbbbb"}, rec.Colours)
}

func TestInvalidateAndPeek(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := writeSource(t, t.TempDir(), "dec.png")
	c := New(NewSidecarStore(""), WithFingerprint("fp"))
	compute, calls := counter("777777")

	_, _, err := c.Peek(ctx, source)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)

	rec, valid, err := c.Peek(ctx, source)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, "fp", rec.Fingerprint)
	assert.Equal(t, []string{"777777"}, rec.Colours)

	touch(t, source)
	_, valid, err = c.Peek(ctx, source)
	require.NoError(t, err)
	assert.False(t, valid)

	require.NoError(t, c.Invalidate(ctx, source))
	assert.ErrorIs(t, c.Invalidate(ctx, source), ErrNotFound)

	_, err = c.LookupOrCompute(ctx, source, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPeekCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := writeSource(t, dir, "bad.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.colours"), []byte("format: nope\n"), 0o600))

	_, _, err := New(NewSidecarStore("")).Peek(context.Background(), source)
	assert.ErrorIs(t, err, ErrCorrupt)
}
