package colour

import (
	"fmt"
)

const (
	// DefaultColourCount is the number of dominant colours extracted when
	// no count is configured.
	DefaultColourCount = 5

	// MaxColourCount bounds the number of colours that may be requested.
	MaxColourCount = 256
)

// Extractor defines the interface for dominant colour extraction.
type Extractor interface {
	// Extract returns up to the configured number of dominant colours,
	// first-selected first.
	Extract(px Pixels) ([]RGB, error)
}

// Config holds configuration for colour extraction.
type Config struct {
	ColourCount      int
	QuantisationBits int
}

// DefaultConfig returns the default extractor configuration.
func DefaultConfig() Config {
	return Config{
		ColourCount:      DefaultColourCount,
		QuantisationBits: DefaultQuantisationBits,
	}
}

// Validate validates the extractor configuration.
func (c Config) Validate() error {
	if c.ColourCount < 1 {
		return fmt.Errorf("%w: colour count must be at least 1, got %d", ErrInvalidConfig, c.ColourCount)
	}
	if c.ColourCount > MaxColourCount {
		return fmt.Errorf("%w: colour count too large: %d (maximum: %d)", ErrInvalidConfig, c.ColourCount, MaxColourCount)
	}
	if c.QuantisationBits < MinQuantisationBits || c.QuantisationBits > MaxQuantisationBits {
		return fmt.Errorf("%w: quantisation bits must be between %d and %d, got %d",
			ErrInvalidConfig, MinQuantisationBits, MaxQuantisationBits, c.QuantisationBits)
	}
	return nil
}

// Fingerprint identifies the settings that affect extraction output.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("n=%d,bits=%d", c.ColourCount, c.QuantisationBits)
}

// DominantExtractor implements Extractor with bucket quantisation followed by
// farthest-point CIEDE2000 selection.
type DominantExtractor struct {
	config Config
}

// NewExtractor creates a DominantExtractor after validating the configuration.
func NewExtractor(config Config) (*DominantExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &DominantExtractor{config: config}, nil
}

// Extract builds the palette for px and selects the dominant colours from it.
func (e *DominantExtractor) Extract(px Pixels) ([]RGB, error) {
	return Extract(px, e.config)
}

// Extract runs the full pipeline on a pixel buffer: palette quantisation and
// dominant colour selection. The result may hold fewer than
// cfg.ColourCount colours when the image has fewer distinct buckets.
func Extract(px Pixels, cfg Config) ([]RGB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	palette, err := BuildPalette(px, cfg.QuantisationBits)
	if err != nil {
		return nil, err
	}

	return SelectDominant(palette, cfg.ColourCount), nil
}
