package pfs

import (
	"fmt"
	"image"
)

// Shift returns a copy of f translated by (dx, dy). Pixels shifted in
// from outside the frame are zero; pixels shifted out are dropped.
// The border loss is deliberate: alignment only cares about the
// region the exposures have in common.
func Shift(f *Frame, dx, dy int) *Frame {
	out := NewFrame(f.width, f.height)
	for k, v := range f.tags {
		out.tags[k] = v
	}
	for _, name := range f.names {
		src := f.channels[name]
		dst := out.CreateChannel(name)
		for y := 0; y < f.height; y++ {
			sy := y - dy
			if sy < 0 || sy >= f.height {
				continue
			}
			for x := 0; x < f.width; x++ {
				sx := x - dx
				if sx < 0 || sx >= f.width {
					continue
				}
				dst.Set(x, y, src.Get(sx, sy))
			}
		}
	}
	return out
}

// Cut returns the sub-frame covered by r (inclusive-exclusive
// corners). The rectangle must lie inside the frame.
func Cut(f *Frame, r image.Rectangle) (*Frame, error) {
	if r.Empty() || r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > f.width || r.Max.Y > f.height {
		return nil, fmt.Errorf("pfs: crop %v outside %dx%d frame", r, f.width, f.height)
	}
	out := NewFrame(r.Dx(), r.Dy())
	for k, v := range f.tags {
		out.tags[k] = v
	}
	for _, name := range f.names {
		CopyArrayRect(f.channels[name], out.CreateChannel(name), r)
	}
	return out, nil
}
