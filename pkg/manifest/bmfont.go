package manifest

import (
	"bytes"
	"fmt"
	"image"
	"sort"

	"github.com/fzipp/bmfont"

	"github.com/Faultbox/atlas-export/pkg/atlas"
)

// ParseBMFont parses an AngelCode BMFont text descriptor. Every page becomes
// a sheet and every glyph a region named after its code point.
func ParseBMFont(data []byte) ([]Sheet, error) {
	desc, err := bmfont.ReadDescriptor(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	if len(desc.Pages) == 0 {
		return nil, fmt.Errorf("%w: font has no pages", ErrMalformedManifest)
	}

	files := make(map[int]string, len(desc.Pages))
	pageIDs := make([]int, 0, len(desc.Pages))
	for _, p := range desc.Pages {
		files[int(p.ID)] = p.File
		pageIDs = append(pageIDs, int(p.ID))
	}
	sort.Ints(pageIDs)

	sheetIndex := make(map[int]int, len(pageIDs))
	sheets := make([]Sheet, 0, len(pageIDs))
	for _, id := range pageIDs {
		sheetIndex[id] = len(sheets)
		sheets = append(sheets, Sheet{
			Texture: files[id],
			Width:   int(desc.Common.ScaleW),
			Height:  int(desc.Common.ScaleH),
		})
	}

	type glyph struct {
		code, page int
		x, y, w, h int
	}
	glyphs := make([]glyph, 0, len(desc.Chars))
	for _, c := range desc.Chars {
		glyphs = append(glyphs, glyph{
			code: int(c.ID),
			page: int(c.Page),
			x:    int(c.X),
			y:    int(c.Y),
			w:    int(c.Width),
			h:    int(c.Height),
		})
	}
	sort.Slice(glyphs, func(i, j int) bool {
		return glyphs[i].code < glyphs[j].code
	})

	for _, g := range glyphs {
		idx, ok := sheetIndex[g.page]
		if !ok {
			return nil, fmt.Errorf("%w: glyph U+%04X references missing page %d", ErrMalformedManifest, g.code, g.page)
		}
		sheets[idx].Regions = append(sheets[idx].Regions, atlas.Region{
			Name:   fmt.Sprintf("U+%04X", g.code),
			Origin: image.Pt(g.x, g.y),
			Size:   atlas.Size{W: g.w, H: g.h},
		})
	}
	return sheets, nil
}
