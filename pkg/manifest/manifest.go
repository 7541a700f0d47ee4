// Package manifest parses sprite sheet descriptors produced by common atlas packers.
package manifest

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/Faultbox/atlas-export/pkg/atlas"
)

// Manifest errors.
var (
	ErrUnknownFormat     = errors.New("unknown manifest format")
	ErrMalformedManifest = errors.New("malformed manifest")
)

// Format identifies a manifest syntax.
type Format int

// Supported manifest formats.
const (
	FormatUnknown Format = iota
	FormatSpine           // Spine / libGDX .atlas
	FormatTexturePacker   // TexturePacker JSON (hash or array)
	FormatBMFont          // AngelCode BMFont text .fnt
	FormatYAML            // native .atlas.yaml
	FormatTOML            // native .atlas.toml
)

var formatNames = map[Format]string{
	FormatSpine:         "spine",
	FormatTexturePacker: "texturepacker",
	FormatBMFont:        "bmfont",
	FormatYAML:          "yaml",
	FormatTOML:          "toml",
}

// String returns the format name used in configuration files.
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// AllFormats returns every supported format.
func AllFormats() []Format {
	return []Format{FormatSpine, FormatTexturePacker, FormatBMFont, FormatYAML, FormatTOML}
}

// ParseFormat converts a configuration name to a Format.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// DetectFormat guesses the manifest format from a file name.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".atlas.yaml"), strings.HasSuffix(lower, ".atlas.yml"):
		return FormatYAML
	case strings.HasSuffix(lower, ".atlas.toml"):
		return FormatTOML
	case strings.HasSuffix(lower, ".atlas"):
		return FormatSpine
	case strings.HasSuffix(lower, ".fnt"):
		return FormatBMFont
	case strings.HasSuffix(lower, ".json"):
		return FormatTexturePacker
	default:
		return FormatUnknown
	}
}

// Sheet is one texture page and the regions packed into it.
type Sheet struct {
	Texture string // Texture path relative to the manifest
	Width   int    // Declared page size, 0 if the manifest omits it
	Height  int
	Regions []atlas.Region
}

// Parse decodes a manifest. name is only used in error messages.
func Parse(format Format, name string, data []byte) ([]Sheet, error) {
	var (
		sheets []Sheet
		err    error
	)
	switch format {
	case FormatSpine:
		sheets, err = ParseSpine(data)
	case FormatTexturePacker:
		sheets, err = ParseTexturePacker(data)
	case FormatBMFont:
		sheets, err = ParseBMFont(data)
	case FormatYAML:
		sheets, err = ParseYAML(data)
	case FormatTOML:
		sheets, err = ParseTOML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s manifest %s: %w", format, name, err)
	}
	return sheets, nil
}

// trimImageExt drops a trailing image extension from a sprite name,
// since packers commonly keep the source file name.
func trimImageExt(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".tga", ".bmp", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".webp":
		return strings.TrimSuffix(name, path.Ext(name))
	}
	return name
}

// storageSize converts a logical sprite size to the size it occupies in the
// texture. Packers that list rotated sprites by display size need this.
func storageSize(w, h int, rotated bool) atlas.Size {
	if rotated {
		return atlas.Size{W: h, H: w}
	}
	return atlas.Size{W: w, H: h}
}
