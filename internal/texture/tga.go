package texture

import (
	"fmt"

	"github.com/Faultbox/atlas-export/pkg/atlas"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

const tgaHeaderSize = 18

// DecodeTGA decodes an uncompressed or RLE true-color TGA into a BGRA8
// buffer. TGA stores pixels as B, G, R[, A] so no swizzle is needed; 24-bit
// images get an opaque alpha channel.
func DecodeTGA(data []byte) (atlas.PixelBuffer, error) {
	if len(data) < tgaHeaderSize {
		return atlas.PixelBuffer{}, fmt.Errorf("%w: TGA data too short", ErrCorrupt)
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return atlas.PixelBuffer{}, fmt.Errorf("%w: color-mapped TGA", ErrUnsupported)
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return atlas.PixelBuffer{}, fmt.Errorf("%w: TGA type %d", ErrUnsupported, imageType)
	}
	if bpp != 24 && bpp != 32 {
		return atlas.PixelBuffer{}, fmt.Errorf("%w: TGA bit depth %d", ErrUnsupported, bpp)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return atlas.PixelBuffer{}, fmt.Errorf("%w: TGA data truncated", ErrCorrupt)
	}
	pixelData := data[offset:]

	out := atlas.NewPixelBuffer(width, height, atlas.BGRA8)
	d := tgaDecoder{
		out:         out,
		span:        bpp / 8,
		topToBottom: descriptor&0x20 != 0,
	}

	var err error
	if imageType == TGATypeUncompressed {
		err = d.raw(pixelData)
	} else {
		err = d.rle(pixelData)
	}
	if err != nil {
		return atlas.PixelBuffer{}, err
	}
	return out, nil
}

type tgaDecoder struct {
	out         atlas.PixelBuffer
	span        int
	topToBottom bool
}

// put stores the n-th pixel in file order. Bottom-up files are flipped.
func (d *tgaDecoder) put(n int, px []byte) {
	x := n % d.out.Width
	y := n / d.out.Width
	if !d.topToBottom {
		y = d.out.Height - 1 - y
	}
	i := (y*d.out.Width + x) * 4
	d.out.Pix[i] = px[0]
	d.out.Pix[i+1] = px[1]
	d.out.Pix[i+2] = px[2]
	if d.span == 4 {
		d.out.Pix[i+3] = px[3]
	} else {
		d.out.Pix[i+3] = 0xFF
	}
}

func (d *tgaDecoder) raw(data []byte) error {
	count := d.out.Width * d.out.Height
	if len(data) < count*d.span {
		return fmt.Errorf("%w: TGA pixel data truncated", ErrCorrupt)
	}
	for n := 0; n < count; n++ {
		d.put(n, data[n*d.span:])
	}
	return nil
}

func (d *tgaDecoder) rle(data []byte) error {
	count := d.out.Width * d.out.Height
	n, pos := 0, 0

	for n < count {
		if pos >= len(data) {
			return fmt.Errorf("%w: TGA RLE data truncated at pixel %d", ErrCorrupt, n)
		}
		packet := data[pos]
		pos++
		run := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// Run-length packet: one pixel repeated
			if pos+d.span > len(data) {
				return fmt.Errorf("%w: TGA RLE packet truncated", ErrCorrupt)
			}
			px := data[pos : pos+d.span]
			pos += d.span
			for i := 0; i < run && n < count; i++ {
				d.put(n, px)
				n++
			}
			continue
		}

		// Raw packet: run literal pixels
		if pos+run*d.span > len(data) {
			return fmt.Errorf("%w: TGA raw packet truncated", ErrCorrupt)
		}
		for i := 0; i < run && n < count; i++ {
			d.put(n, data[pos:])
			pos += d.span
			n++
		}
	}
	return nil
}
