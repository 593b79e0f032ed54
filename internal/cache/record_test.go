package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	mtime := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	return NewRecord("/photos/jan.jpg", mtime, "n=5,bits=5,max=512", []string{"2f8dab", "ff0000", "000000"})
}

func TestRecordEncodeDecode(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	data, err := rec.Encode()
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "format: calhue/dominant-colours")
	assert.Contains(t, text, "version: 1")
	assert.Contains(t, text, "source_mtime: 2026-01-02T03:04:05.123456789Z")
	assert.Contains(t, text, "checksum: ")

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, rec.Source, got.Source)
	assert.True(t, rec.SourceModTime.Equal(got.SourceModTime))
	assert.Equal(t, rec.Fingerprint, got.Fingerprint)
	assert.Equal(t, rec.Colours, got.Colours)
	assert.Equal(t, rec.Checksum, got.Checksum)
}

func TestNewRecordNormalisesTime(t *testing.T) {
	t.Parallel()

	zone := time.FixedZone("AEST", 10*60*60)
	local := time.Date(2026, 3, 1, 9, 0, 0, 0, zone)

	rec := NewRecord("/a.png", local, "", nil)
	assert.Equal(t, time.UTC, rec.SourceModTime.Location())
	assert.True(t, rec.SourceModTime.Equal(local))
	assert.NotNil(t, rec.Colours)
}

func TestNewRecordCopiesColours(t *testing.T) {
	t.Parallel()

	colours := []string{"ffffff"}
	rec := NewRecord("/a.png", time.Now(), "", colours)
	colours[0] = "000000"
	assert.Equal(t, []string{"ffffff"}, rec.Colours)
}

func TestDecodeEmptyColourList(t *testing.T) {
	t.Parallel()

	data, err := NewRecord("/blank.png", time.Now(), "fp", nil).Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, got.Colours)
}

func TestDecodeCorrupt(t *testing.T) {
	t.Parallel()

	valid, err := sampleRecord().Encode()
	require.NoError(t, err)

	replace := func(old, new string) []byte {
		return []byte(strings.Replace(string(valid), old, new, 1))
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not yaml", data: []byte("colours: [unterminated")},
		{name: "wrong shape", data: []byte("- just\n- a list\n")},
		{name: "unknown field", data: append(append([]byte{}, valid...), []byte("extra: true\n")...)},
		{name: "wrong format", data: replace("calhue/dominant-colours", "other/format")},
		{name: "future version", data: replace("version: 1", "version: 2")},
		{name: "tampered colour", data: replace("ff0000", "fe0000")},
		{name: "malformed colour", data: replace("ff0000", "red")},
		{name: "uppercase colour", data: replace("2f8dab", "2F8DAB")},
		{name: "tampered source", data: replace("/photos/jan.jpg", "/photos/feb.jpg")},
		{name: "tampered mtime", data: replace("05.123456789Z", "06.123456789Z")},
		{name: "tampered fingerprint", data: replace("bits=5", "bits=4")},
		{name: "missing checksum", data: replace("checksum: ", "checksum: x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
