// Package cache persists dominant colour results per source image and decides
// when a stored result can be reused.
//
// A stored result is reused only while the source image has not been modified
// since the result was computed. Corrupt or unreadable artifacts are treated
// as misses, and failures to persist a fresh result are logged but never
// returned to the caller.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/calhue/internal/image"
)

// ComputeFunc produces the ordered hex colour list for a source on a miss.
type ComputeFunc func(ctx context.Context) ([]string, error)

// Stats counts cache outcomes since the cache was created.
type Stats struct {
	Hits            int64 `json:"hits" yaml:"hits"`
	Misses          int64 `json:"misses" yaml:"misses"`
	Corrupt         int64 `json:"corrupt" yaml:"corrupt"`
	PersistFailures int64 `json:"persist_failures" yaml:"persist_failures"`
}

// Cache looks up stored results and computes fresh ones on a miss.
// It is safe for concurrent use.
type Cache struct {
	store       Store
	fingerprint string
	logger      hclog.Logger

	hits            atomic.Int64
	misses          atomic.Int64
	corrupt         atomic.Int64
	persistFailures atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for cache events.
func WithLogger(logger hclog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger.Named("cache")
		}
	}
}

// WithFingerprint ties stored results to the extraction settings that
// produced them. Records with a different fingerprint are treated as stale.
func WithFingerprint(fingerprint string) Option {
	return func(c *Cache) {
		c.fingerprint = fingerprint
	}
}

// New creates a Cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying artifact store.
func (c *Cache) Store() Store {
	return c.store
}

// Fingerprint returns the extraction fingerprint records must match.
func (c *Cache) Fingerprint() string {
	return c.fingerprint
}

// LookupOrCompute returns the stored colours for source when they are still
// valid, otherwise runs compute, persists its result and returns it.
//
// Errors from compute are returned unchanged and nothing is persisted. A
// missing or unreadable source fails with image.ErrSourceUnavailable.
func (c *Cache) LookupOrCompute(ctx context.Context, source string, compute ComputeFunc) ([]string, error) {
	path, modTime, err := sourceInfo(source)
	if err != nil {
		return nil, err
	}

	if rec, ok := c.lookup(ctx, path, modTime); ok {
		c.hits.Add(1)
		return slices.Clone(rec.Colours), nil
	}
	c.misses.Add(1)

	return c.computeAndPersist(ctx, path, modTime, compute)
}

// Refresh recomputes and persists the colours for source regardless of any
// stored record.
func (c *Cache) Refresh(ctx context.Context, source string, compute ComputeFunc) ([]string, error) {
	path, modTime, err := sourceInfo(source)
	if err != nil {
		return nil, err
	}
	return c.computeAndPersist(ctx, path, modTime, compute)
}

// Invalidate removes the stored artifact for source. It returns ErrNotFound
// when there was nothing to remove.
func (c *Cache) Invalidate(ctx context.Context, source string) error {
	path := absPath(source)
	if err := c.store.Delete(ctx, path); err != nil {
		return err
	}
	c.logger.Debug("cache invalidated", "path", path, "location", c.store.Location(path))
	return nil
}

// Peek returns the stored record for source and whether it would currently
// be served by LookupOrCompute. It returns ErrNotFound when no artifact
// exists and ErrCorrupt when the artifact cannot be decoded.
func (c *Cache) Peek(ctx context.Context, source string) (Record, bool, error) {
	path := absPath(source)

	art, err := c.store.Load(ctx, path)
	if err != nil {
		return Record{}, false, err
	}

	rec, err := Decode(art.Data)
	if err != nil {
		return Record{}, false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return rec, false, nil
	}
	return rec, c.stale(rec, art, path, info.ModTime()) == "", nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Corrupt:         c.corrupt.Load(),
		PersistFailures: c.persistFailures.Load(),
	}
}

func (c *Cache) lookup(ctx context.Context, path string, modTime time.Time) (Record, bool) {
	art, err := c.store.Load(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Debug("cache miss", "path", path, "reason", "no artifact")
		} else {
			c.corrupt.Add(1)
			c.logger.Warn("cache artifact unreadable, recomputing", "path", path, "error", err)
		}
		return Record{}, false
	}

	rec, err := Decode(art.Data)
	if err != nil {
		c.corrupt.Add(1)
		c.logger.Warn("cache artifact corrupt, recomputing", "path", path, "location", art.Location, "error", err)
		return Record{}, false
	}

	if reason := c.stale(rec, art, path, modTime); reason != "" {
		c.logger.Debug("cache miss", "path", path, "reason", reason)
		return Record{}, false
	}

	c.logger.Debug("cache hit", "path", path, "location", art.Location)
	return rec, true
}

// stale reports why rec cannot be served for a source modified at modTime,
// or "" when it can.
func (c *Cache) stale(rec Record, art Artifact, path string, modTime time.Time) string {
	switch {
	case rec.Source != path:
		return "source mismatch"
	case rec.Fingerprint != c.fingerprint:
		return "settings changed"
	case modTime.After(rec.SourceModTime):
		return "source modified"
	case modTime.After(art.WrittenAt):
		return "source newer than artifact"
	}
	return ""
}

func (c *Cache) computeAndPersist(ctx context.Context, path string, modTime time.Time, compute ComputeFunc) ([]string, error) {
	colours, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.persist(ctx, path, modTime, colours); err != nil {
		c.persistFailures.Add(1)
		c.logger.Warn("failed to persist cache artifact", "path", path, "error", err)
	}

	return colours, nil
}

func (c *Cache) persist(ctx context.Context, path string, modTime time.Time, colours []string) error {
	data, err := NewRecord(path, modTime, c.fingerprint, colours).Encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := c.store.Save(ctx, path, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	c.logger.Debug("cache artifact written", "path", path, "location", c.store.Location(path))
	return nil
}

// sourceInfo resolves source to an absolute path and reads its modification
// time. It runs before compute, so a write during extraction leaves the
// record stale.
func sourceInfo(source string) (string, time.Time, error) {
	path := absPath(source)

	info, err := os.Stat(path)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %s: %w", image.ErrSourceUnavailable, source, err)
	}
	if info.IsDir() {
		return "", time.Time{}, fmt.Errorf("%w: path is a directory, not a file: %s", image.ErrSourceUnavailable, source)
	}

	return path, info.ModTime(), nil
}

func absPath(source string) string {
	if abs, err := filepath.Abs(source); err == nil {
		return abs
	}
	return source
}
