package manifest

import (
	"fmt"
	"image"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/atlas-export/pkg/atlas"
)

// regionDoc is one region in a native sheet. Coordinates are in storage
// space: w and h describe the packed rectangle even when rotated is set.
type regionDoc struct {
	Name    string `yaml:"name" toml:"name"`
	X       int    `yaml:"x" toml:"x"`
	Y       int    `yaml:"y" toml:"y"`
	W       int    `yaml:"w" toml:"w"`
	H       int    `yaml:"h" toml:"h"`
	Rotated bool   `yaml:"rotated" toml:"rotated"`
}

type pageDoc struct {
	Texture string      `yaml:"texture" toml:"texture"`
	Width   int         `yaml:"width" toml:"width"`
	Height  int         `yaml:"height" toml:"height"`
	Regions []regionDoc `yaml:"regions" toml:"regions"`
}

// sheetDoc accepts either a single page at the top level or a pages list.
type sheetDoc struct {
	Texture string      `yaml:"texture" toml:"texture"`
	Width   int         `yaml:"width" toml:"width"`
	Height  int         `yaml:"height" toml:"height"`
	Regions []regionDoc `yaml:"regions" toml:"regions"`
	Pages   []pageDoc   `yaml:"pages" toml:"pages"`
}

// ParseYAML parses a native YAML sheet.
func ParseYAML(data []byte) ([]Sheet, error) {
	var doc sheetDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	return doc.sheets()
}

// ParseTOML parses a native TOML sheet.
func ParseTOML(data []byte) ([]Sheet, error) {
	var doc sheetDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	return doc.sheets()
}

func (d *sheetDoc) sheets() ([]Sheet, error) {
	pages := d.Pages
	if d.Texture != "" {
		top := pageDoc{Texture: d.Texture, Width: d.Width, Height: d.Height, Regions: d.Regions}
		pages = append([]pageDoc{top}, pages...)
	} else if len(d.Regions) > 0 {
		return nil, fmt.Errorf("%w: regions without a texture", ErrMalformedManifest)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrMalformedManifest)
	}

	sheets := make([]Sheet, 0, len(pages))
	for i, p := range pages {
		if p.Texture == "" {
			return nil, fmt.Errorf("%w: page %d has no texture", ErrMalformedManifest, i)
		}
		s := Sheet{
			Texture: p.Texture,
			Width:   p.Width,
			Height:  p.Height,
			Regions: make([]atlas.Region, 0, len(p.Regions)),
		}
		for j, r := range p.Regions {
			if r.Name == "" {
				return nil, fmt.Errorf("%w: page %d region %d has no name", ErrMalformedManifest, i, j)
			}
			s.Regions = append(s.Regions, atlas.Region{
				Name:    r.Name,
				Origin:  image.Pt(r.X, r.Y),
				Size:    atlas.Size{W: r.W, H: r.H},
				Rotated: r.Rotated,
			})
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}
