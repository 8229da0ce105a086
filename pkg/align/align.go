// Package align figures out the integer translation that maps each
// exposure onto the first one. Two interchangeable strategies exist:
// the in-memory MTB pyramid search, and delegation to an external
// alignment executable. Only one strategy is active per session.
package align

import (
	"context"
	"image"

	"hdrfuse/pkg/pfs"
)

// An Aligner computes one (dx, dy) pixel offset per frame, relative
// to the first frame. The offsets are meant to be fed straight into
// the exposure set's ApplyShifts.
type Aligner interface {
	Align(ctx context.Context, frames []*pfs.Frame) ([]image.Point, error)
}

// grayscale quantizes a frame's luminance to 8 bits, the working
// currency of the MTB search.
func grayscale(f *pfs.Frame) []uint8 {
	xc, yc, zc := f.XYZChannels()
	w, h := f.Width(), f.Height()
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Integer-friendly luma weights (54, 183, 19)/256.
			lum := (54.0*xc.Get(x, y) + 183.0*yc.Get(x, y) + 19.0*zc.Get(x, y)) / 256.0 * 255.0
			if lum < 0 {
				lum = 0
			}
			if lum > 255 {
				lum = 255
			}
			out[y*w+x] = uint8(lum)
		}
	}
	return out
}
