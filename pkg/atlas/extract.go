package atlas

import "fmt"

// OutputSize returns the dimensions of the image Extract produces for r.
// Rotated regions are stored turned 90°, so their axes are swapped.
func OutputSize(r Region) Size {
	if r.Rotated {
		return Size{W: r.Size.H, H: r.Size.W}
	}
	return r.Size
}

// CheckRegion reports whether r lies entirely inside src.
func CheckRegion(src PixelBuffer, r Region) error {
	if r.Size.W < 0 || r.Size.H < 0 {
		return fmt.Errorf("%w: region %q has negative size %s", ErrOutOfBounds, r.Name, r.Size)
	}
	if !within(r.Origin.X, 0, src.Width-r.Size.W) || !within(r.Origin.Y, 0, src.Height-r.Size.H) {
		return fmt.Errorf("%w: region %q %v exceeds atlas %v", ErrOutOfBounds, r.Name, r.Bounds(), src.Bounds())
	}
	return nil
}

// Extract copies region r out of src into a newly allocated buffer.
//
// Unrotated regions are copied row by row. Rotated regions are read column by
// column from the right edge of the stored rectangle, which undoes the 90°
// turn applied at packing time; the result is OutputSize(r) large.
func Extract(src PixelBuffer, r Region) (PixelBuffer, error) {
	if err := src.Validate(); err != nil {
		return PixelBuffer{}, err
	}
	if err := CheckRegion(src, r); err != nil {
		return PixelBuffer{}, err
	}

	span := src.BytesPerPixel()
	w, h := r.Size.W, r.Size.H
	x, y := r.Origin.X, r.Origin.Y
	out := make([]byte, 0, w*h*span)

	if r.Rotated {
		for i := 0; i < w; i++ {
			col := x + w - i - 1
			for j := 0; j < h; j++ {
				off := ((y+j)*src.Width + col) * span
				out = append(out, src.Pix[off:off+span]...)
			}
		}
	} else {
		rowBytes := w * span
		for i := 0; i < h; i++ {
			off := ((y+i)*src.Width + x) * span
			out = append(out, src.Pix[off:off+rowBytes]...)
		}
	}

	size := OutputSize(r)
	return PixelBuffer{
		Pix:    out,
		Width:  size.W,
		Height: size.H,
		Format: src.Format,
	}, nil
}
