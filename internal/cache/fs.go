package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// SidecarStore keeps each artifact next to its source image, with the
// image's extension replaced by ext.
type SidecarStore struct {
	ext string
}

// NewSidecarStore creates a SidecarStore. An empty ext selects DefaultExtension.
func NewSidecarStore(ext string) *SidecarStore {
	return &SidecarStore{ext: normaliseExt(ext)}
}

// Location returns the sidecar path for source.
func (s *SidecarStore) Location(source string) string {
	return SidecarPath(source, s.ext)
}

// Load reads the sidecar artifact for source.
func (s *SidecarStore) Load(_ context.Context, source string) (Artifact, error) {
	return readArtifact(s.Location(source))
}

// Save atomically writes the sidecar artifact for source.
func (s *SidecarStore) Save(_ context.Context, source string, data []byte) error {
	return writeFileAtomic(s.Location(source), data)
}

// Delete removes the sidecar artifact for source.
func (s *SidecarStore) Delete(_ context.Context, source string) error {
	return removeArtifact(s.Location(source))
}

// SidecarPath replaces the extension of source with ext. A source that
// already carries ext gets ext appended so the artifact never overwrites it.
func SidecarPath(source, ext string) string {
	ext = normaliseExt(ext)
	if strings.EqualFold(filepath.Ext(source), ext) {
		return source + ext
	}
	return strings.TrimSuffix(source, filepath.Ext(source)) + ext
}

// DirStore keeps artifacts in a single cache directory, named by a hash of
// the absolute source path.
type DirStore struct {
	root string
	ext  string
}

// NewDirStore creates a DirStore rooted at root. An empty root selects
// DefaultCacheDir.
func NewDirStore(root, ext string) (*DirStore, error) {
	if root == "" {
		dir, err := DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		root = dir
	}
	return &DirStore{root: root, ext: normaliseExt(ext)}, nil
}

// DefaultCacheDir returns the default cache directory path.
func DefaultCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		// Fallback to home directory if cache dir not available.
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine cache directory: %w", err)
		}
		return filepath.Join(home, ".cache", "calhue"), nil
	}
	return filepath.Join(cacheDir, "calhue"), nil
}

// Root returns the cache directory.
func (s *DirStore) Root() string {
	return s.root
}

// Location returns the artifact path for source.
func (s *DirStore) Location(source string) string {
	return filepath.Join(s.root, KeyFor(source)+s.ext)
}

// Load reads the artifact for source.
func (s *DirStore) Load(_ context.Context, source string) (Artifact, error) {
	return readArtifact(s.Location(source))
}

// Save atomically writes the artifact for source, creating the cache
// directory if needed.
func (s *DirStore) Save(_ context.Context, source string, data []byte) error {
	if err := os.MkdirAll(s.root, dirPerm); err != nil { // #nosec G301 - Cache directory needs standard permissions
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return writeFileAtomic(s.Location(source), data)
}

// Delete removes the artifact for source.
func (s *DirStore) Delete(_ context.Context, source string) error {
	return removeArtifact(s.Location(source))
}

// KeyFor derives a stable key from the absolute form of source.
func KeyFor(source string) string {
	if abs, err := filepath.Abs(source); err == nil {
		source = abs
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(source))
}

func normaliseExt(ext string) string {
	if ext == "" {
		return DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

func readArtifact(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, fmt.Errorf("failed to stat cache artifact %s: %w", path, err)
	}

	data, err := os.ReadFile(path) // #nosec G304 - Path derived from the source image path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, fmt.Errorf("failed to read cache artifact %s: %w", path, err)
	}

	return Artifact{Data: data, WrittenAt: info.ModTime(), Location: path}, nil
}

func removeArtifact(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove cache artifact %s: %w", path, err)
	}
	return nil
}

// writeFileAtomic writes data to a temporary file in the destination
// directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmpFile.Name()

	// Clean up temp file on error.
	defer func() {
		if _, err := os.Stat(tmpName); err == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		return fmt.Errorf("failed to set cache file permissions: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}

	return nil
}
