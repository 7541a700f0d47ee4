// Package atlas provides texture atlas geometry and sprite region extraction.
package atlas

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/exp/constraints"
)

// Atlas errors.
var (
	ErrInvalidBuffer = errors.New("invalid pixel buffer")
	ErrOutOfBounds   = errors.New("region out of atlas bounds")
)

// PixelFormat identifies the channel layout of a PixelBuffer.
type PixelFormat uint8

// Supported pixel formats.
const (
	FormatUnknown PixelFormat = iota
	Gray8                     // 1 byte, luminance
	RGBA8                     // 4 bytes, R G B A
	BGRA8                     // 4 bytes, B G R A
)

// BytesPerPixel returns the span of one pixel, or 0 for an unknown format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case Gray8:
		return 1
	case RGBA8, BGRA8:
		return 4
	default:
		return 0
	}
}

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case Gray8:
		return "Gray8"
	case RGBA8:
		return "RGBA8"
	case BGRA8:
		return "BGRA8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// PixelBuffer is a row-major pixel array with no row padding.
type PixelBuffer struct {
	Pix    []byte
	Width  int
	Height int
	Format PixelFormat
}

// NewPixelBuffer allocates a zeroed buffer of the given size.
func NewPixelBuffer(width, height int, format PixelFormat) PixelBuffer {
	return PixelBuffer{
		Pix:    make([]byte, width*height*format.BytesPerPixel()),
		Width:  width,
		Height: height,
		Format: format,
	}
}

// BytesPerPixel returns the buffer's span.
func (b PixelBuffer) BytesPerPixel() int {
	return b.Format.BytesPerPixel()
}

// Stride returns the number of bytes in one row.
func (b PixelBuffer) Stride() int {
	return b.Width * b.BytesPerPixel()
}

// Bounds returns the buffer rectangle anchored at the origin.
func (b PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// Validate checks that the pixel slice matches the declared dimensions.
func (b PixelBuffer) Validate() error {
	span := b.BytesPerPixel()
	if span <= 0 {
		return fmt.Errorf("%w: unknown format %s", ErrInvalidBuffer, b.Format)
	}
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrInvalidBuffer, b.Width, b.Height)
	}
	if b.Width != 0 && b.Height > math.MaxInt/b.Width/span {
		return fmt.Errorf("%w: size %dx%d overflows", ErrInvalidBuffer, b.Width, b.Height)
	}
	if want := b.Width * b.Height * span; len(b.Pix) != want {
		return fmt.Errorf("%w: expected %d bytes for %dx%d %s, got %d",
			ErrInvalidBuffer, want, b.Width, b.Height, b.Format, len(b.Pix))
	}
	return nil
}

// Size is a width/height pair in pixels.
type Size struct {
	W, H int
}

// String returns the size as "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}

// Region describes one sprite packed into an atlas.
// Size is the packed (storage) size, not the display size of a rotated sprite.
type Region struct {
	Name    string
	Origin  image.Point
	Size    Size
	Rotated bool
}

// Bounds returns the rectangle the region occupies in atlas space.
func (r Region) Bounds() image.Rectangle {
	return image.Rect(r.Origin.X, r.Origin.Y, r.Origin.X+r.Size.W, r.Origin.Y+r.Size.H)
}

// Atlas is one packed texture and the regions that live in it.
type Atlas struct {
	Name    string   // Destination directory name
	Texture string   // Handle passed to the texture source
	Size    Size     // Page size declared by the manifest, zero if omitted
	Regions []Region // In manifest order
}

// within reports whether lo <= v <= hi.
func within[T constraints.Integer](v, lo, hi T) bool {
	return v >= lo && v <= hi
}
