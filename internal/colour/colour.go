// Package colour provides dominant colour extraction: sRGB/CIELAB conversion,
// CIEDE2000 distance, palette quantisation and diverse colour selection.
package colour

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB represents a color in RGB format.
type RGB struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

// String returns the RGB color as a string in the format "rgb(r, g, b)".
func (rgb RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", rgb.R, rgb.G, rgb.B)
}

// Hex returns the colour as a 6-digit lowercase hex string without a leading
// hash (e.g., "2f8dab").
func (rgb RGB) Hex() string {
	return IntToHex(rgb.Int())
}

// Int packs the colour into a 24-bit integer (0xRRGGBB).
func (rgb RGB) Int() uint32 {
	return uint32(rgb.R)<<16 | uint32(rgb.G)<<8 | uint32(rgb.B)
}

// Lab returns the CIELAB representation of the colour.
func (rgb RGB) Lab() Lab {
	return RGBToLab(rgb.R, rgb.G, rgb.B)
}

// FromInt unpacks a 24-bit integer (0xRRGGBB). Bits above 24 are ignored.
func FromInt(v uint32) RGB {
	return RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}
}

// IntToHex renders the low 24 bits of v as a zero-padded lowercase hex string.
func IntToHex(v uint32) string {
	return fmt.Sprintf("%06x", v&0xffffff)
}

// HexToInt parses a 6-digit hex colour. A leading "#" and upper-case digits
// are accepted.
func HexToInt(s string) (uint32, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, fmt.Errorf("invalid hex colour %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return uint32(v), nil
}

// ParseHex parses a hex colour string into an RGB value.
func ParseHex(s string) (RGB, error) {
	v, err := HexToInt(s)
	if err != nil {
		return RGB{}, err
	}
	return FromInt(v), nil
}

// Lab is a colour in CIELAB space (D65 white point).
type Lab struct {
	L float64
	A float64
	B float64
}

// D65 reference white.
const (
	whiteX = 0.95047
	whiteY = 1.00000
	whiteZ = 1.08883
)

// RGBToLab converts 8-bit sRGB components to CIELAB.
func RGBToLab(r, g, b uint8) Lab {
	rl := srgbToLinear(float64(r) / 255.0)
	gl := srgbToLinear(float64(g) / 255.0)
	bl := srgbToLinear(float64(b) / 255.0)

	// Linear sRGB to XYZ (D65).
	x := 0.4124564*rl + 0.3575761*gl + 0.1804375*bl
	y := 0.2126729*rl + 0.7151522*gl + 0.0721750*bl
	z := 0.0193339*rl + 0.1191920*gl + 0.9503041*bl

	fx := labF(x / whiteX)
	fy := labF(y / whiteY)
	fz := labF(z / whiteZ)

	return Lab{
		L: 116.0*fy - 16.0,
		A: 500.0 * (fx - fy),
		B: 200.0 * (fy - fz),
	}
}

// LabDistanceSquaredComponents returns the squared per-axis differences
// between two Lab colours. Their sum is the squared CIE76 distance.
func LabDistanceSquaredComponents(x, y Lab) (dL2, da2, db2 float64) {
	dL := x.L - y.L
	da := x.A - y.A
	db := x.B - y.B
	return dL * dL, da * da, db * db
}

// srgbToLinear removes the sRGB transfer function from a channel in [0, 1].
func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func labF(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta*delta*delta {
		return math.Cbrt(t)
	}
	return t/(3.0*delta*delta) + 4.0/29.0
}
