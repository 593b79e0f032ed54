package dominant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/calhue/internal/cache"
	"github.com/jmylchreest/calhue/internal/image"
)

// DefaultDebounce is how long a file must be quiet before it is re-extracted.
const DefaultDebounce = 250 * time.Millisecond

// Update reports a change observed by Watch.
type Update struct {
	Path    string
	Colours []string
	Err     error

	// Removed is set when the image was deleted or renamed away.
	Removed bool
}

// WatchOptions configures Watch.
type WatchOptions struct {
	// Debounce delays extraction until a file has stopped changing.
	// Defaults to DefaultDebounce.
	Debounce time.Duration

	// Initial extracts every image already in the directory before
	// watching for changes.
	Initial bool
}

// Watch keeps results for the images in dir current. Created or written
// images are extracted once they settle; removed images have their cached
// result invalidated. Every outcome is passed to fn from the calling
// goroutine. Watch blocks until ctx is cancelled.
func (s *Service) Watch(ctx context.Context, dir string, opts WatchOptions, fn func(Update)) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	s.logger.Debug("watching directory", "dir", dir, "debounce", opts.Debounce)

	if opts.Initial {
		// An empty directory is not an error here.
		paths, _ := image.ScanDirectoryForImages(dir)
		for _, path := range paths {
			if ctx.Err() != nil {
				return nil
			}
			fn(s.update(ctx, path))
		}
	}

	due := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !image.IsImageFile(event.Name) {
				continue
			}

			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				if t, ok := timers[event.Name]; ok {
					t.Stop()
					delete(timers, event.Name)
				}
				fn(s.removed(ctx, event.Name))

			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				if t, ok := timers[event.Name]; ok {
					t.Reset(opts.Debounce)
					continue
				}
				path := event.Name
				timers[path] = time.AfterFunc(opts.Debounce, func() {
					select {
					case due <- path:
					case <-ctx.Done():
					}
				})
			}

		case path := <-due:
			delete(timers, path)
			fn(s.update(ctx, path))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("file system watch error", "dir", dir, "error", err)
		}
	}
}

func (s *Service) update(ctx context.Context, path string) Update {
	colours, err := s.Extract(ctx, path)
	if err != nil {
		s.logger.Warn("extraction failed", "path", path, "error", err)
	}
	return Update{Path: path, Colours: colours, Err: err}
}

func (s *Service) removed(ctx context.Context, path string) Update {
	u := Update{Path: path, Removed: true}
	if s.cache == nil {
		return u
	}
	if err := s.cache.Invalidate(ctx, path); err != nil && !errors.Is(err, cache.ErrNotFound) {
		u.Err = err
	}
	return u
}
