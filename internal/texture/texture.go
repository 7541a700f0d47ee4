// Package texture loads atlas textures into BGRA8 pixel buffers.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"path"
	"strings"

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration

	"github.com/Faultbox/atlas-export/internal/source"
	"github.com/Faultbox/atlas-export/pkg/atlas"
)

// Texture errors.
var (
	ErrUnsupported = errors.New("unsupported texture format")
	ErrCorrupt     = errors.New("corrupt texture data")
)

// Decode decodes texture bytes into a BGRA8 buffer. name selects the TGA
// decoder by extension; other formats are sniffed from the data.
func Decode(name string, data []byte) (atlas.PixelBuffer, error) {
	if strings.EqualFold(path.Ext(name), ".tga") {
		return DecodeTGA(data)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return atlas.PixelBuffer{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
		}
		return atlas.PixelBuffer{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return FromImage(img), nil
}

// FromImage converts any image to a BGRA8 buffer with straight alpha.
func FromImage(img image.Image) atlas.PixelBuffer {
	b := img.Bounds()
	src, ok := img.(*image.NRGBA)
	if !ok {
		src = image.NewNRGBA(b)
		draw.Draw(src, b, img, b.Min, draw.Src)
	}

	out := atlas.NewPixelBuffer(b.Dx(), b.Dy(), atlas.BGRA8)
	stride := out.Stride()
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := out.Pix[y*stride : (y+1)*stride]
		for i := 0; i < len(dst); i += 4 {
			dst[i] = row[i+2]
			dst[i+1] = row[i+1]
			dst[i+2] = row[i]
			dst[i+3] = row[i+3]
		}
	}
	return out
}

// Provider loads base-level texture pixels from a Source.
type Provider struct {
	src source.Source
}

// NewProvider creates a provider reading from src.
func NewProvider(src source.Source) *Provider {
	return &Provider{src: src}
}

// BaseLevelPixels reads and decodes the texture at path.
func (p *Provider) BaseLevelPixels(path string) (atlas.PixelBuffer, error) {
	data, err := p.src.Read(path)
	if err != nil {
		return atlas.PixelBuffer{}, err
	}
	buf, err := Decode(path, data)
	if err != nil {
		return atlas.PixelBuffer{}, err
	}
	return buf, nil
}
