package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/Faultbox/atlas-export/pkg/atlas"
)

// spineRegion accumulates the attributes of one region entry.
type spineRegion struct {
	name    string
	x, y    int
	w, h    int
	rotated bool
	index   int
	hasXY   bool
	hasSize bool
}

// ParseSpine parses a Spine / libGDX texture atlas.
//
// Both the legacy layout (xy/size keys, rotate: true) and the 4.x layout
// (bounds key, rotate: 90) are accepted. Sizes for rotated regions are given
// unrotated and are converted to storage size.
func ParseSpine(data []byte) ([]Sheet, error) {
	var (
		sheets   []Sheet
		page     *Sheet
		region   *spineRegion
		needPage = true
		lineNo   int
	)

	flush := func() error {
		if region == nil {
			return nil
		}
		r, err := region.toRegion()
		if err != nil {
			return err
		}
		page.Regions = append(page.Regions, r)
		region = nil
		return nil
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lineNo++
		raw := strings.TrimRight(sc.Text(), "\r")
		line := strings.TrimSpace(raw)

		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			needPage = true
			continue
		}

		key, value, isAttr := strings.Cut(line, ":")
		if !isAttr {
			if needPage {
				if err := flush(); err != nil {
					return nil, err
				}
				sheets = append(sheets, Sheet{Texture: line})
				page = &sheets[len(sheets)-1]
				needPage = false
				continue
			}
			if err := flush(); err != nil {
				return nil, err
			}
			region = &spineRegion{name: line, index: -1}
			continue
		}

		if page == nil {
			return nil, fmt.Errorf("%w: line %d: attribute before page name", ErrMalformedManifest, lineNo)
		}
		needPage = false
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var err error
		if region == nil {
			err = applyPageAttr(page, key, value)
		} else {
			err = region.apply(key, value)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedManifest, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrMalformedManifest)
	}
	return sheets, nil
}

func applyPageAttr(page *Sheet, key, value string) error {
	if key != "size" {
		// format, filter, repeat, pma, scale do not affect extraction
		return nil
	}
	v, err := parseInts(value, 2)
	if err != nil {
		return fmt.Errorf("page size: %v", err)
	}
	page.Width, page.Height = v[0], v[1]
	return nil
}

func (r *spineRegion) apply(key, value string) error {
	switch key {
	case "rotate":
		switch value {
		case "true", "90":
			r.rotated = true
		case "false", "0":
			r.rotated = false
		default:
			return fmt.Errorf("region %q: unsupported rotation %q", r.name, value)
		}
	case "xy":
		v, err := parseInts(value, 2)
		if err != nil {
			return fmt.Errorf("region %q xy: %v", r.name, err)
		}
		r.x, r.y, r.hasXY = v[0], v[1], true
	case "size":
		v, err := parseInts(value, 2)
		if err != nil {
			return fmt.Errorf("region %q size: %v", r.name, err)
		}
		r.w, r.h, r.hasSize = v[0], v[1], true
	case "bounds":
		v, err := parseInts(value, 4)
		if err != nil {
			return fmt.Errorf("region %q bounds: %v", r.name, err)
		}
		r.x, r.y, r.w, r.h = v[0], v[1], v[2], v[3]
		r.hasXY, r.hasSize = true, true
	case "index":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("region %q index: %v", r.name, err)
		}
		r.index = n
	}
	return nil
}

func (r *spineRegion) toRegion() (atlas.Region, error) {
	if !r.hasXY || !r.hasSize {
		return atlas.Region{}, fmt.Errorf("%w: region %q missing position or size", ErrMalformedManifest, r.name)
	}
	name := r.name
	if r.index >= 0 {
		name = fmt.Sprintf("%s_%d", name, r.index)
	}
	return atlas.Region{
		Name:    name,
		Origin:  image.Pt(r.x, r.y),
		Size:    storageSize(r.w, r.h, r.rotated),
		Rotated: r.rotated,
	}, nil
}

// parseInts parses a comma separated list of exactly n integers.
func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
