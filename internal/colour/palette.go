package colour

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Quantisation depth bounds, in bits per channel.
const (
	MinQuantisationBits     = 1
	MaxQuantisationBits     = 8
	DefaultQuantisationBits = 5
)

// Entry is a palette colour together with the number of pixels that were
// quantised into its bucket.
type Entry struct {
	Colour RGB `json:"colour"`
	Weight int `json:"weight"`
}

// Palette is the deduplicated, weighted set of colours observed in an image.
// A Palette is immutable once built.
type Palette struct {
	entries []Entry
	total   int
}

// NewPalette builds a palette from explicit entries. Entries with a
// non-positive weight are dropped; entries whose colours are equal are merged.
func NewPalette(entries []Entry) *Palette {
	p := &Palette{entries: make([]Entry, 0, len(entries))}
	index := make(map[RGB]int, len(entries))
	for _, e := range entries {
		if e.Weight < 1 {
			continue
		}
		if i, ok := index[e.Colour]; ok {
			p.entries[i].Weight += e.Weight
		} else {
			index[e.Colour] = len(p.entries)
			p.entries = append(p.entries, e)
		}
		p.total += e.Weight
	}
	return p
}

// BuildPalette quantises every pixel to bits per channel and counts the
// pixels falling in each bucket. Each entry carries the original colour of
// the first pixel (row-major) seen in its bucket, not the quantised value.
func BuildPalette(px Pixels, bits int) (*Palette, error) {
	if err := px.Validate(); err != nil {
		return nil, err
	}
	if bits < MinQuantisationBits || bits > MaxQuantisationBits {
		return nil, fmt.Errorf("%w: quantisation bits must be between %d and %d, got %d",
			ErrInvalidConfig, MinQuantisationBits, MaxQuantisationBits, bits)
	}

	shift := uint(8 - bits)
	index := make(map[uint32]int)
	p := &Palette{total: len(px.Pix)}

	for _, c := range px.Pix {
		key := uint32(c.R>>shift)<<16 | uint32(c.G>>shift)<<8 | uint32(c.B>>shift)
		if i, ok := index[key]; ok {
			p.entries[i].Weight++
			continue
		}
		index[key] = len(p.entries)
		p.entries = append(p.entries, Entry{Colour: c, Weight: 1})
	}

	return p, nil
}

// Len returns the number of entries in the palette.
func (p *Palette) Len() int {
	return len(p.entries)
}

// TotalWeight returns the sum of all entry weights.
func (p *Palette) TotalWeight() int {
	return p.total
}

// Entries returns a copy of the palette entries.
func (p *Palette) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Get returns the entry at the specified index.
// Returns an error if the index is out of bounds.
func (p *Palette) Get(index int) (Entry, error) {
	if index < 0 || index >= len(p.entries) {
		return Entry{}, fmt.Errorf("index out of bounds: %d (palette has %d entries)", index, len(p.entries))
	}
	return p.entries[index], nil
}

// All returns an iterator over all entries in the palette.
func (p *Palette) All() func(func(int, Entry) bool) {
	return func(yield func(int, Entry) bool) {
		for i, e := range p.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// EntryJSON represents a palette entry in JSON output format.
type EntryJSON struct {
	Hex    string  `json:"hex"`
	RGB    RGB     `json:"rgb"`
	Weight int     `json:"weight"`
	Share  float64 `json:"share"`
}

// PaletteJSON represents the palette in JSON format.
type PaletteJSON struct {
	Count   int         `json:"count"`
	Total   int         `json:"total"`
	Entries []EntryJSON `json:"entries"`
}

// ToJSON converts the palette to JSON format.
func (p *Palette) ToJSON() ([]byte, error) {
	entries := make([]EntryJSON, len(p.entries))
	for i, e := range p.entries {
		entries[i] = EntryJSON{
			Hex:    e.Colour.Hex(),
			RGB:    e.Colour,
			Weight: e.Weight,
			Share:  p.share(e),
		}
	}

	return json.MarshalIndent(PaletteJSON{
		Count:   len(p.entries),
		Total:   p.total,
		Entries: entries,
	}, "", "  ")
}

// String returns a human-readable string representation of the palette.
func (p *Palette) String() string {
	if len(p.entries) == 0 {
		return "Empty palette"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Palette with %d colours:\n", len(p.entries))
	for i, e := range p.entries {
		fmt.Fprintf(&sb, "  %2d: %s (%s) x%d\n", i+1, e.Colour.Hex(), e.Colour.String(), e.Weight)
	}
	return sb.String()
}

func (p *Palette) share(e Entry) float64 {
	if p.total == 0 {
		return 0
	}
	return float64(e.Weight) / float64(p.total)
}
