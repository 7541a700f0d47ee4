package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"

	"github.com/Faultbox/atlas-export/pkg/atlas"
)

type tpRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type tpFrame struct {
	Filename string `json:"filename"`
	Frame    tpRect `json:"frame"`
	Rotated  bool   `json:"rotated"`
}

type tpMeta struct {
	Image string `json:"image"`
	Size  struct {
		W int `json:"w"`
		H int `json:"h"`
	} `json:"size"`
}

type tpDocument struct {
	Frames json.RawMessage `json:"frames"`
	Meta   tpMeta          `json:"meta"`
}

// ParseTexturePacker parses a TexturePacker JSON export in either the
// "hash" or the "array" layout. Frame order follows the file.
func ParseTexturePacker(data []byte) ([]Sheet, error) {
	var doc tpDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	if doc.Meta.Image == "" {
		return nil, fmt.Errorf("%w: meta.image is missing", ErrMalformedManifest)
	}

	frames, err := decodeFrames(doc.Frames)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}

	sheet := Sheet{
		Texture: doc.Meta.Image,
		Width:   doc.Meta.Size.W,
		Height:  doc.Meta.Size.H,
		Regions: make([]atlas.Region, 0, len(frames)),
	}
	for _, f := range frames {
		if f.Filename == "" {
			return nil, fmt.Errorf("%w: frame without a name", ErrMalformedManifest)
		}
		sheet.Regions = append(sheet.Regions, atlas.Region{
			Name:    trimImageExt(f.Filename),
			Origin:  image.Pt(f.Frame.X, f.Frame.Y),
			Size:    storageSize(f.Frame.W, f.Frame.H, f.Rotated),
			Rotated: f.Rotated,
		})
	}
	return []Sheet{sheet}, nil
}

// decodeFrames reads the frames value. A JSON object is walked token by
// token so that the order of keys survives.
func decodeFrames(raw json.RawMessage) ([]tpFrame, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("frames is missing")
	}

	if raw[0] == '[' {
		var frames []tpFrame
		if err := json.Unmarshal(raw, &frames); err != nil {
			return nil, err
		}
		return frames, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("frames must be an object or array")
	}

	var frames []tpFrame
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var f tpFrame
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("frame %q: %v", name, err)
		}
		f.Filename = name
		frames = append(frames, f)
	}
	return frames, nil
}
