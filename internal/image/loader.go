// Package image loads source images from disk and turns them into pixel
// buffers for colour extraction.
package image

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format
	_ "image/jpeg" // Register JPEG format
	_ "image/png"  // Register PNG format
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format

	"github.com/jmylchreest/calhue/internal/colour"
)

// ErrSourceUnavailable is returned when a source image is missing, unreadable,
// not a regular file or cannot be decoded.
var ErrSourceUnavailable = errors.New("source image unavailable")

// Loader handles loading images from various sources.
type Loader interface {
	// Load loads an image from the given path.
	Load(path string) (image.Image, error)

	// LoadPixels loads an image and converts it to a pixel buffer.
	LoadPixels(path string) (colour.Pixels, error)
}

// FileLoader loads images from the local filesystem.
type FileLoader struct {
	maxDimension int
}

// Option configures a FileLoader.
type Option func(*FileLoader)

// WithMaxDimension downscales decoded images so that neither side exceeds n
// pixels. Zero or a negative value disables downscaling.
func WithMaxDimension(n int) Option {
	return func(l *FileLoader) {
		l.maxDimension = n
	}
}

// NewFileLoader creates a new FileLoader instance.
func NewFileLoader(opts ...Option) *FileLoader {
	l := &FileLoader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxDimension returns the configured downscale bound, or 0 when disabled.
func (l *FileLoader) MaxDimension() int {
	return l.maxDimension
}

// Load loads an image from a file path.
// Supported formats: JPEG, PNG, GIF, WebP.
func (l *FileLoader) Load(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: image path cannot be empty", ErrSourceUnavailable)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: image file not found: %s", ErrSourceUnavailable, path)
		}
		return nil, fmt.Errorf("%w: failed to stat image file %s: %w", ErrSourceUnavailable, path, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%w: path is a directory, not a file: %s", ErrSourceUnavailable, path)
	}

	file, err := os.Open(path) // #nosec G304 - User-specified image path, intended to be read
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open image file %s: %w", ErrSourceUnavailable, path, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image %s (format: %s): %w", ErrSourceUnavailable, path, format, err)
	}

	return l.downscale(img), nil
}

// LoadPixels loads an image and converts it to a row-major pixel buffer.
// A zero-size image yields colour.ErrInvalidInput.
func (l *FileLoader) LoadPixels(path string) (colour.Pixels, error) {
	img, err := l.Load(path)
	if err != nil {
		return colour.Pixels{}, err
	}

	px, err := colour.PixelsFromImage(img)
	if err != nil {
		return colour.Pixels{}, fmt.Errorf("%s: %w", path, err)
	}
	return px, nil
}

// downscale shrinks img to fit within maxDimension on both axes using
// nearest-neighbour sampling, which never introduces colours absent from the
// source.
func (l *FileLoader) downscale(img image.Image) image.Image {
	if l.maxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= l.maxDimension && b.Dy() <= l.maxDimension {
		return img
	}
	return imaging.Fit(img, l.maxDimension, l.maxDimension, imaging.NearestNeighbor)
}

// ValidateImagePath checks that path is an existing regular file whose header
// decodes as a supported image format.
func ValidateImagePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: image path cannot be empty", ErrSourceUnavailable)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: image file not found: %s", ErrSourceUnavailable, path)
		}
		return fmt.Errorf("%w: failed to access image path: %w", ErrSourceUnavailable, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: path is a directory, not a file: %s", ErrSourceUnavailable, path)
	}

	file, err := os.Open(path) // #nosec G304 - User-specified image path, intended to be read
	if err != nil {
		return fmt.Errorf("%w: failed to open image file: %w", ErrSourceUnavailable, err)
	}
	defer file.Close()

	if _, _, err := image.DecodeConfig(file); err != nil {
		return fmt.Errorf("%w: unsupported or invalid image format: %w", ErrSourceUnavailable, err)
	}

	return nil
}

// SupportedImageExtensions returns a list of supported image file extensions.
func SupportedImageExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
}

// IsImageFile checks if a file has a supported image extension.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(SupportedImageExtensions(), ext)
}

// ScanDirectoryForImages scans a directory and returns all image files in
// lexical order. It does not recurse into subdirectories, but follows symlinks.
func ScanDirectoryForImages(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var imageFiles []string
	for _, entry := range entries {
		fullPath := filepath.Join(dirPath, entry.Name())

		// For symlinks, stat the target to determine if it's a file.
		info, err := os.Stat(fullPath)
		if err != nil {
			// Skip entries we can't stat (broken symlinks, permission issues).
			continue
		}

		if info.IsDir() {
			continue
		}

		if IsImageFile(entry.Name()) {
			imageFiles = append(imageFiles, fullPath)
		}
	}

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no supported image files found in directory: %s", dirPath)
	}

	return imageFiles, nil
}

// GetImageDimensions returns the width and height of an image without fully loading it.
func GetImageDimensions(path string) (width, height int, err error) {
	file, err := os.Open(path) // #nosec G304 - User-specified image path, intended to be read
	if err != nil {
		return 0, 0, fmt.Errorf("%w: failed to open image: %w", ErrSourceUnavailable, err)
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: failed to decode image config: %w", ErrSourceUnavailable, err)
	}

	return config.Width, config.Height, nil
}
