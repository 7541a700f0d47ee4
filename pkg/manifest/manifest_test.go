package manifest

import (
	"errors"
	"image"
	"testing"

	"github.com/Faultbox/atlas-export/pkg/atlas"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		expected Format
	}{
		{"hero.atlas", FormatSpine},
		{"ui/Hero.ATLAS", FormatSpine},
		{"hero.atlas.yaml", FormatYAML},
		{"hero.atlas.yml", FormatYAML},
		{"hero.atlas.toml", FormatTOML},
		{"font.fnt", FormatBMFont},
		{"sheet.json", FormatTexturePacker},
		{"sheet.png", FormatUnknown},
		{"config.yaml", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.name); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range AllFormats() {
		got, err := ParseFormat(f.String())
		if err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", f.String(), err)
		}
		if got != f {
			t.Errorf("expected %s, got %s", f, got)
		}
	}

	if _, err := ParseFormat("psd"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestParse_UnknownFormat(t *testing.T) {
	_, err := Parse(FormatUnknown, "x.bin", nil)
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

const spineLegacy = `
hero.png
size: 64,32
format: RGBA8888
filter: Linear,Linear
repeat: none
head
  rotate: false
  xy: 0, 0
  size: 16, 16
  orig: 16, 16
  offset: 0, 0
  index: -1
arm
  rotate: true
  xy: 16, 0
  size: 8, 20
  orig: 8, 20
  offset: 0, 0
  index: -1
walk
  rotate: false
  xy: 40, 0
  size: 4, 4
  orig: 4, 4
  offset: 0, 0
  index: 2

hero2.png
size: 16,16
format: RGBA8888
filter: Linear,Linear
repeat: none
leg
  rotate: false
  xy: 1, 2
  size: 3, 4
  orig: 3, 4
  offset: 0, 0
  index: -1
`

func TestParseSpine_Legacy(t *testing.T) {
	sheets, err := ParseSpine([]byte(spineLegacy))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	if len(sheets) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(sheets))
	}

	first := sheets[0]
	if first.Texture != "hero.png" {
		t.Errorf("expected texture hero.png, got %s", first.Texture)
	}
	if first.Width != 64 || first.Height != 32 {
		t.Errorf("expected page 64x32, got %dx%d", first.Width, first.Height)
	}
	if len(first.Regions) != 3 {
		t.Fatalf("expected 3 regions, got %d", len(first.Regions))
	}

	head := first.Regions[0]
	if head.Name != "head" || head.Rotated || head.Size != (atlas.Size{W: 16, H: 16}) {
		t.Errorf("unexpected head region: %+v", head)
	}

	// Rotated sizes are listed unrotated and must come back as storage size.
	arm := first.Regions[1]
	if !arm.Rotated {
		t.Error("expected arm to be rotated")
	}
	if arm.Origin != image.Pt(16, 0) {
		t.Errorf("expected arm origin (16,0), got %v", arm.Origin)
	}
	if arm.Size != (atlas.Size{W: 20, H: 8}) {
		t.Errorf("expected arm storage size 20x8, got %s", arm.Size)
	}

	if walk := first.Regions[2]; walk.Name != "walk_2" {
		t.Errorf("expected indexed name walk_2, got %s", walk.Name)
	}

	second := sheets[1]
	if second.Texture != "hero2.png" || len(second.Regions) != 1 {
		t.Fatalf("unexpected second page: %+v", second)
	}
	if leg := second.Regions[0]; leg.Origin != image.Pt(1, 2) || leg.Size != (atlas.Size{W: 3, H: 4}) {
		t.Errorf("unexpected leg region: %+v", leg)
	}
}

func TestParseSpine_Bounds(t *testing.T) {
	data := "page.png\nsize: 32, 32\npma: true\nicon\nbounds: 2, 3, 5, 7\nrotate: 90\n"

	sheets, err := ParseSpine([]byte(data))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(sheets) != 1 || len(sheets[0].Regions) != 1 {
		t.Fatalf("expected 1 page with 1 region, got %+v", sheets)
	}

	r := sheets[0].Regions[0]
	if r.Name != "icon" || !r.Rotated {
		t.Errorf("unexpected region: %+v", r)
	}
	if r.Origin != image.Pt(2, 3) || r.Size != (atlas.Size{W: 7, H: 5}) {
		t.Errorf("expected origin (2,3) size 7x5, got %v %s", r.Origin, r.Size)
	}
}

func TestParseSpine_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"attribute first", "size: 1, 1\n"},
		{"bad rotation", "p.png\nr\n  rotate: 45\n  xy: 0, 0\n  size: 1, 1\n"},
		{"bad xy", "p.png\nr\n  xy: 0\n  size: 1, 1\n"},
		{"missing size", "p.png\nr\n  xy: 0, 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpine([]byte(tt.data))
			if !errors.Is(err, ErrMalformedManifest) {
				t.Errorf("expected ErrMalformedManifest, got %v", err)
			}
		})
	}
}

const texturePackerHash = `{
  "frames": {
    "zeta.png": {"frame": {"x": 0, "y": 0, "w": 4, "h": 2}, "rotated": false, "trimmed": false},
    "alpha.png": {"frame": {"x": 4, "y": 0, "w": 3, "h": 2}, "rotated": true, "trimmed": false}
  },
  "meta": {"image": "sheet.png", "size": {"w": 8, "h": 4}, "format": "RGBA8888"}
}`

func TestParseTexturePacker_Hash(t *testing.T) {
	sheets, err := ParseTexturePacker([]byte(texturePackerHash))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(sheets) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(sheets))
	}

	s := sheets[0]
	if s.Texture != "sheet.png" || s.Width != 8 || s.Height != 4 {
		t.Errorf("unexpected sheet meta: %+v", s)
	}
	if len(s.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(s.Regions))
	}

	// File order is kept, not sorted.
	if s.Regions[0].Name != "zeta" || s.Regions[1].Name != "alpha" {
		t.Errorf("expected order [zeta alpha], got [%s %s]", s.Regions[0].Name, s.Regions[1].Name)
	}
	if got := s.Regions[1].Size; got != (atlas.Size{W: 2, H: 3}) {
		t.Errorf("expected rotated storage size 2x3, got %s", got)
	}
}

func TestParseTexturePacker_Array(t *testing.T) {
	data := `{"frames": [
		{"filename": "a.png", "frame": {"x": 1, "y": 1, "w": 2, "h": 2}, "rotated": false},
		{"filename": "dir/b", "frame": {"x": 3, "y": 1, "w": 1, "h": 2}, "rotated": false}
	], "meta": {"image": "s.png"}}`

	sheets, err := ParseTexturePacker([]byte(data))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	regions := sheets[0].Regions
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regions))
	}
	if regions[0].Name != "a" || regions[1].Name != "dir/b" {
		t.Errorf("unexpected names: %s, %s", regions[0].Name, regions[1].Name)
	}
}

func TestParseTexturePacker_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"no image", `{"frames": {}, "meta": {}}`},
		{"no frames", `{"meta": {"image": "s.png"}}`},
		{"frames scalar", `{"frames": 3, "meta": {"image": "s.png"}}`},
		{"unnamed array frame", `{"frames": [{"frame": {"x":0,"y":0,"w":1,"h":1}}], "meta": {"image": "s.png"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTexturePacker([]byte(tt.data))
			if !errors.Is(err, ErrMalformedManifest) {
				t.Errorf("expected ErrMalformedManifest, got %v", err)
			}
		})
	}
}

const bmfontText = `info face="Test" size=16 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=16 base=13 scaleW=64 scaleH=32 pages=2 packed=0 alphaChnl=0 redChnl=4 greenChnl=4 blueChnl=4
page id=0 file="test_0.png"
page id=1 file="test_1.png"
chars count=3
char id=66   x=10    y=0     width=8     height=12    xoffset=0     yoffset=1     xadvance=9     page=0  chnl=15
char id=65   x=0     y=0     width=9     height=12    xoffset=0     yoffset=1     xadvance=9     page=0  chnl=15
char id=67   x=0     y=0     width=7     height=12    xoffset=1     yoffset=1     xadvance=8     page=1  chnl=15
`

func TestParseBMFont(t *testing.T) {
	sheets, err := ParseBMFont([]byte(bmfontText))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(sheets))
	}

	if sheets[0].Texture != "test_0.png" || sheets[1].Texture != "test_1.png" {
		t.Errorf("unexpected textures: %s, %s", sheets[0].Texture, sheets[1].Texture)
	}
	if sheets[0].Width != 64 || sheets[0].Height != 32 {
		t.Errorf("expected page size 64x32, got %dx%d", sheets[0].Width, sheets[0].Height)
	}

	first := sheets[0].Regions
	if len(first) != 2 {
		t.Fatalf("expected 2 glyphs on page 0, got %d", len(first))
	}
	if first[0].Name != "U+0041" || first[1].Name != "U+0042" {
		t.Errorf("expected glyphs sorted by code point, got %s, %s", first[0].Name, first[1].Name)
	}
	if first[1].Origin != image.Pt(10, 0) || first[1].Size != (atlas.Size{W: 8, H: 12}) {
		t.Errorf("unexpected glyph B: %+v", first[1])
	}

	if len(sheets[1].Regions) != 1 || sheets[1].Regions[0].Name != "U+0043" {
		t.Errorf("unexpected page 1 glyphs: %+v", sheets[1].Regions)
	}
}

const nativeYAML = `
texture: main.png
width: 32
height: 32
regions:
  - name: coin
    x: 0
    y: 0
    w: 8
    h: 8
  - name: sword
    x: 8
    y: 0
    w: 16
    h: 4
    rotated: true
pages:
  - texture: extra.png
    regions:
      - name: gem
        x: 1
        y: 1
        w: 2
        h: 2
`

func TestParseYAML(t *testing.T) {
	sheets, err := ParseYAML([]byte(nativeYAML))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(sheets))
	}

	main := sheets[0]
	if main.Texture != "main.png" || len(main.Regions) != 2 {
		t.Fatalf("unexpected main page: %+v", main)
	}

	// Native sheets are already in storage space.
	sword := main.Regions[1]
	if !sword.Rotated || sword.Size != (atlas.Size{W: 16, H: 4}) {
		t.Errorf("unexpected sword region: %+v", sword)
	}

	if sheets[1].Texture != "extra.png" || sheets[1].Regions[0].Name != "gem" {
		t.Errorf("unexpected extra page: %+v", sheets[1])
	}
}

const nativeTOML = `
texture = "main.png"

[[regions]]
name = "coin"
x = 0
y = 0
w = 8
h = 8

[[regions]]
name = "sword"
x = 8
y = 0
w = 16
h = 4
rotated = true
`

func TestParseTOML(t *testing.T) {
	sheets, err := ParseTOML([]byte(nativeTOML))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(sheets) != 1 {
		t.Fatalf("expected 1 page, got %d", len(sheets))
	}
	regions := sheets[0].Regions
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regions))
	}
	if regions[1].Name != "sword" || !regions[1].Rotated || regions[1].Origin != image.Pt(8, 0) {
		t.Errorf("unexpected sword region: %+v", regions[1])
	}
}

func TestParseNative_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"regions without texture", "regions:\n  - name: a\n"},
		{"unnamed region", "texture: a.png\nregions:\n  - x: 1\n"},
		{"page without texture", "pages:\n  - width: 3\n"},
		{"bad yaml", "texture: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.data))
			if !errors.Is(err, ErrMalformedManifest) {
				t.Errorf("expected ErrMalformedManifest, got %v", err)
			}
		})
	}
}
