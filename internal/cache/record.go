package cache

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/calhue/internal/colour"
)

const (
	// RecordFormat tags every artifact written by this package.
	RecordFormat = "calhue/dominant-colours"

	// RecordVersion is the current record layout version.
	RecordVersion = 1
)

// Record is the persisted result of one extraction.
type Record struct {
	Format        string    `yaml:"format"`
	Version       int       `yaml:"version"`
	Source        string    `yaml:"source"`
	SourceModTime time.Time `yaml:"source_mtime"`
	Fingerprint   string    `yaml:"fingerprint"`
	Colours       []string  `yaml:"colours"`
	Checksum      string    `yaml:"checksum"`
}

// NewRecord builds a sealed record for source.
func NewRecord(source string, modTime time.Time, fingerprint string, colours []string) Record {
	r := Record{
		Format:        RecordFormat,
		Version:       RecordVersion,
		Source:        source,
		SourceModTime: modTime.UTC(),
		Fingerprint:   fingerprint,
		Colours:       append([]string{}, colours...),
	}
	r.Checksum = r.sum()
	return r
}

// sum hashes the canonical form of every field except the checksum itself.
func (r Record) sum() string {
	var b strings.Builder
	b.WriteString(r.Format)
	b.WriteByte('\n')
	b.WriteString(strconv.Itoa(r.Version))
	b.WriteByte('\n')
	b.WriteString(r.Source)
	b.WriteByte('\n')
	b.WriteString(r.SourceModTime.UTC().Format(time.RFC3339Nano))
	b.WriteByte('\n')
	b.WriteString(r.Fingerprint)
	b.WriteByte('\n')
	b.WriteString(strings.Join(r.Colours, ","))
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

// Encode renders the record as a YAML document.
func (r Record) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("failed to encode cache record: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode cache record: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses an encoded record. Anything that is not a well-formed,
// checksummed record of the current version fails with ErrCorrupt.
func Decode(data []byte) (Record, error) {
	var r Record

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if r.Format != RecordFormat {
		return Record{}, fmt.Errorf("%w: unexpected format %q", ErrCorrupt, r.Format)
	}
	if r.Version != RecordVersion {
		return Record{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, r.Version)
	}
	if r.Source == "" {
		return Record{}, fmt.Errorf("%w: missing source", ErrCorrupt)
	}
	for i, hex := range r.Colours {
		v, err := colour.HexToInt(hex)
		if err != nil || colour.IntToHex(v) != hex {
			return Record{}, fmt.Errorf("%w: colour %d is not a lowercase hex code: %q", ErrCorrupt, i, hex)
		}
	}
	if r.Checksum != r.sum() {
		return Record{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	return r, nil
}
