// Package dominant ties image loading, colour extraction and result caching
// together behind a path-based API.
package dominant

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/calhue/internal/cache"
	"github.com/jmylchreest/calhue/internal/colour"
	"github.com/jmylchreest/calhue/internal/image"
)

// Service extracts dominant colours from image files.
type Service struct {
	config    colour.Config
	extractor colour.Extractor
	loader    image.Loader
	cache     *cache.Cache
	logger    hclog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLoader sets the image loader. Defaults to an image.FileLoader with no
// downscaling.
func WithLoader(loader image.Loader) Option {
	return func(s *Service) {
		s.loader = loader
	}
}

// WithCache enables result caching. Without it every call recomputes.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithLogger sets the service logger.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger.Named("dominant")
		}
	}
}

// New creates a Service for the given extraction settings.
func New(config colour.Config, opts ...Option) (*Service, error) {
	extractor, err := colour.NewExtractor(config)
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:    config,
		extractor: extractor,
		loader:    image.NewFileLoader(),
		logger:    hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fingerprint identifies every setting that changes extraction output,
// including the loader's downscale bound.
func Fingerprint(config colour.Config, maxDimension int) string {
	return fmt.Sprintf("%s,max=%d", config.Fingerprint(), max(maxDimension, 0))
}

// Config returns the extraction settings.
func (s *Service) Config() colour.Config {
	return s.config
}

// Cache returns the result cache, or nil when caching is disabled.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Extract returns the dominant colours of the image at path as lowercase hex
// codes, most dominant first. Cached results are reused while the image is
// unmodified.
func (s *Service) Extract(ctx context.Context, path string) ([]string, error) {
	if s.cache == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.compute(path)(ctx)
	}
	return s.cache.LookupOrCompute(ctx, path, s.compute(path))
}

// Refresh recomputes the colours for path and replaces any cached result.
func (s *Service) Refresh(ctx context.Context, path string) ([]string, error) {
	if s.cache == nil {
		return s.compute(path)(ctx)
	}
	return s.cache.Refresh(ctx, path, s.compute(path))
}

func (s *Service) compute(path string) cache.ComputeFunc {
	return func(context.Context) ([]string, error) {
		start := time.Now()

		px, err := s.loader.LoadPixels(path)
		if err != nil {
			return nil, err
		}

		colours, err := s.extractor.Extract(px)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		hexes := colour.HexStrings(colours)
		s.logger.Debug("extracted dominant colours",
			"path", path,
			"size", fmt.Sprintf("%dx%d", px.Width, px.Height),
			"colours", len(hexes),
			"elapsed", time.Since(start),
		)
		return hexes, nil
	}
}

// Result is the outcome of one image in a batch.
type Result struct {
	Path    string
	Colours []string
	Err     error
}

// ExtractBatch extracts every path using at most workers concurrent
// extractions (runtime.NumCPU when workers <= 0). Results are returned in
// input order; a failing image records its error and the batch continues.
// Cancellation is observed between images: images not started when ctx is
// cancelled carry ctx.Err(), which is also returned.
func (s *Service) ExtractBatch(ctx context.Context, paths []string, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]Result, len(paths))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, path := range paths {
		results[i].Path = path

		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			colours, err := s.Extract(ctx, path)
			if err != nil {
				s.logger.Warn("extraction failed", "path", path, "error", err)
			}
			results[i].Colours = colours
			results[i].Err = err
			return nil
		})
	}

	_ = g.Wait()

	return results, ctx.Err()
}

// Failed counts the results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
