package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no artifact exists for a source.
	ErrNotFound = errors.New("cache artifact not found")

	// ErrCorrupt marks an artifact that cannot be decoded or fails validation.
	ErrCorrupt = errors.New("cache artifact corrupt")

	// ErrPersist marks a failure to write an artifact.
	ErrPersist = errors.New("cache artifact not persisted")
)

// DefaultExtension is appended to artifact names by the file-based stores.
const DefaultExtension = ".colours"

// Artifact is the raw stored form of a record.
type Artifact struct {
	Data      []byte
	WrittenAt time.Time
	Location  string
}

// Store persists encoded records, one artifact per source image.
type Store interface {
	// Load returns the artifact for source, or ErrNotFound.
	Load(ctx context.Context, source string) (Artifact, error)

	// Save replaces the artifact for source. Readers never observe a
	// partially written artifact.
	Save(ctx context.Context, source string, data []byte) error

	// Delete removes the artifact for source, or returns ErrNotFound.
	Delete(ctx context.Context, source string) error

	// Location describes where the artifact for source lives.
	Location(source string) string
}
