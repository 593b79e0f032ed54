package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jmylchreest/calhue/internal/cache"
	"github.com/jmylchreest/calhue/internal/config"
	"github.com/jmylchreest/calhue/internal/dominant"
	"github.com/jmylchreest/calhue/internal/image"
)

// errCacheDisabled is returned by commands that need a cache when the
// backend is "none".
var errCacheDisabled = errors.New("result cache is disabled (cache.backend is none)")

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newStore opens the configured cache backend. It returns a nil Store when
// caching is disabled. The closer releases backend connections.
func newStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nopCloser{}, nil

	case config.BackendDir:
		root := cfg.Dir
		if root == "" {
			dir, err := cache.DefaultCacheDir()
			if err != nil {
				return nil, nil, err
			}
			root = dir
		}
		store, err := cache.NewDirStore(root, cfg.Extension)
		if err != nil {
			return nil, nil, err
		}
		return store, nopCloser{}, nil

	case config.BackendRedis:
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedisStore(client, cfg.Redis.Prefix), client, nil

	default:
		return cache.NewSidecarStore(cfg.Extension), nopCloser{}, nil
	}
}

// newCache wraps the configured store in a Cache keyed to the current
// extraction settings. It returns a nil Cache when caching is disabled.
func (a *app) newCache(ctx context.Context) (*cache.Cache, io.Closer, error) {
	store, closer, err := newStore(ctx, a.cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s cache: %w", a.cfg.Cache.Backend, err)
	}
	if store == nil {
		return nil, closer, nil
	}

	c := cache.New(store,
		cache.WithLogger(a.logger),
		cache.WithFingerprint(dominant.Fingerprint(a.cfg.Extractor(), a.cfg.MaxDimension)),
	)
	return c, closer, nil
}

// newService builds a dominant.Service from the resolved configuration.
// When useCache is false results are always recomputed and never stored.
func (a *app) newService(ctx context.Context, useCache bool) (*dominant.Service, io.Closer, error) {
	opts := []dominant.Option{
		dominant.WithLogger(a.logger),
		dominant.WithLoader(image.NewFileLoader(image.WithMaxDimension(a.cfg.MaxDimension))),
	}

	var closer io.Closer = nopCloser{}
	if useCache {
		c, cl, err := a.newCache(ctx)
		if err != nil {
			return nil, nil, err
		}
		closer = cl
		if c != nil {
			opts = append(opts, dominant.WithCache(c))
		}
	}

	svc, err := dominant.New(a.cfg.Extractor(), opts...)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return svc, closer, nil
}
