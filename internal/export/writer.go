package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/atlas-export/pkg/atlas"
)

const maxSegmentLen = 255

// Windows device names that cannot be used as file names on any platform
// the output may be copied to.
var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// ValidatePath checks that path can be created as an output file.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidDestinationPath)
	}
	rest := path[len(filepath.VolumeName(path)):]
	for _, c := range rest {
		if c < 0x20 || c == 0x7f {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidDestinationPath, path)
		}
		if strings.ContainsRune(`<>:"|?*`, c) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidDestinationPath, path, c)
		}
	}
	for _, seg := range splitPath(rest) {
		if len(seg) > maxSegmentLen {
			return fmt.Errorf("%w: %q has a segment longer than %d bytes", ErrInvalidDestinationPath, path, maxSegmentLen)
		}
	}
	base := filepath.Base(path)
	if reservedNames[strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))] {
		return fmt.Errorf("%w: %q is a reserved device name", ErrInvalidDestinationPath, base)
	}
	return nil
}

// ValidateName checks a relative atlas or sprite name. Names may contain
// slashes for sub-folders but must stay inside the destination directory.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDestinationPath)
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) || filepath.VolumeName(name) != "" {
		return fmt.Errorf("%w: %q is absolute", ErrInvalidDestinationPath, name)
	}
	for _, seg := range splitPath(name) {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q has an empty or relative segment", ErrInvalidDestinationPath, name)
		}
	}
	return nil
}

func splitPath(p string) []string {
	return strings.Split(strings.ReplaceAll(p, `\`, "/"), "/")
}

// PNGWriter encodes pixel buffers as PNG files.
type PNGWriter struct {
	encoder png.Encoder
}

// NewPNGWriter creates a writer using the given compression level.
func NewPNGWriter(level png.CompressionLevel) *PNGWriter {
	return &PNGWriter{encoder: png.Encoder{CompressionLevel: level}}
}

// WriteImage validates path, encodes buf and writes it atomically.
func (w *PNGWriter) WriteImage(buf atlas.PixelBuffer, path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}

	img, err := toImage(buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	var data bytes.Buffer
	if err := w.encoder.Encode(&data, img); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data.Bytes(), 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// toImage wraps buf in an image.Image. BGRA is swizzled into straight-alpha
// NRGBA; the channel values themselves are untouched.
func toImage(buf atlas.PixelBuffer) (image.Image, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if buf.Width == 0 || buf.Height == 0 {
		return nil, fmt.Errorf("empty image %dx%d", buf.Width, buf.Height)
	}

	rect := image.Rect(0, 0, buf.Width, buf.Height)
	switch buf.Format {
	case atlas.Gray8:
		return &image.Gray{Pix: buf.Pix, Stride: buf.Stride(), Rect: rect}, nil
	case atlas.RGBA8:
		return &image.NRGBA{Pix: buf.Pix, Stride: buf.Stride(), Rect: rect}, nil
	case atlas.BGRA8:
		img := image.NewNRGBA(rect)
		for i := 0; i < len(buf.Pix); i += 4 {
			img.Pix[i] = buf.Pix[i+2]
			img.Pix[i+1] = buf.Pix[i+1]
			img.Pix[i+2] = buf.Pix[i]
			img.Pix[i+3] = buf.Pix[i+3]
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported pixel format %s", buf.Format)
	}
}
