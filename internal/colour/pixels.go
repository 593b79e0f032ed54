package colour

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrInvalidInput is returned when a pixel buffer is empty or malformed.
	ErrInvalidInput = errors.New("invalid pixel buffer")

	// ErrInvalidConfig is returned for out-of-range extraction settings.
	ErrInvalidConfig = errors.New("invalid extraction config")
)

// Pixels is a decoded rectangular image stored row-major, one RGB triple per pixel.
type Pixels struct {
	Width  int
	Height int
	Pix    []RGB
}

// Validate checks that the buffer is non-empty and that its declared
// dimensions match the number of pixels.
func (p Pixels) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidInput, p.Width, p.Height)
	}
	if len(p.Pix) == 0 {
		return fmt.Errorf("%w: no pixels", ErrInvalidInput)
	}
	if p.Width*p.Height != len(p.Pix) {
		return fmt.Errorf("%w: %dx%d declared but %d pixels present",
			ErrInvalidInput, p.Width, p.Height, len(p.Pix))
	}
	return nil
}

// At returns the pixel at (x, y). The caller must stay within bounds.
func (p Pixels) At(x, y int) RGB {
	return p.Pix[y*p.Width+x]
}

// PixelsFromImage copies a decoded image into a pixel buffer.
// Alpha is ignored; channels are reduced from 16 to 8 bits.
func PixelsFromImage(img image.Image) (Pixels, error) {
	if img == nil {
		return Pixels{}, fmt.Errorf("%w: image cannot be nil", ErrInvalidInput)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return Pixels{}, fmt.Errorf("%w: image is empty (%dx%d)", ErrInvalidInput, width, height)
	}

	pix := make([]RGB, 0, width*height)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pix = append(pix, RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)})
		}
	}

	return Pixels{Width: width, Height: height, Pix: pix}, nil
}
