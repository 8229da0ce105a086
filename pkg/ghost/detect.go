// Package ghost finds the regions where subjects moved between
// exposures, and rebuilds the fused radiance there from ghost-free
// gradient data.
package ghost

import (
	"fmt"
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"hdrfuse/pkg/pfs"
	"hdrfuse/pkg/stack"
)

// GridSize is the patch grid resolution: ghost presence is flagged
// per cell of a GridSize x GridSize grid over the image.
const GridSize = 10

// A Grid is one detection result's cell flags, indexed [col][row].
type Grid [GridSize][GridSize]bool

// Cell reports whether the cell (i, j) is flagged.
func (g *Grid) Cell(i, j int) bool { return g[i][j] }

// SetCell overrides a cell flag, for callers that let a user touch up
// the detection before reconstruction.
func (g *Grid) SetCell(i, j int, flagged bool) { g[i][j] = flagged }

// Flagged counts the set cells.
func (g *Grid) Flagged() int {
	n := 0
	for i := range g {
		for j := range g[i] {
			if g[i][j] {
				n++
			}
		}
	}
	return n
}

// A Detection is the outcome of one ComputePatches run.
type Detection struct {
	Grid      Grid
	Reference int     // index of the reference exposure, h0
	Percent   float64 // fraction of flagged cells, 0-100
}

const lumFloor = 1.0 / 65535.0

func log2c(v float32) float64 {
	f := float64(v)
	if f < lumFloor {
		f = lumFloor
	}
	return math.Log2(f)
}

// averageLuminance prefers the metadata-derived value and falls back
// to the frame's own mean luminance, so detection stays defined for
// exposures without EXIF.
func averageLuminance(it *stack.Item) float64 {
	if it.HasLum {
		return it.AvgLum
	}
	xc, yc, zc := it.Frame.XYZChannels()
	sum := 0.0
	for y := 0; y < it.Frame.Height(); y++ {
		for x := 0; x < it.Frame.Width(); x++ {
			sum += 0.2126*float64(xc.Get(x, y)) + 0.7152*float64(yc.Get(x, y)) + 0.0722*float64(zc.Get(x, y))
		}
	}
	lum := sum / float64(it.Frame.Width()*it.Frame.Height())
	if lum < lumFloor {
		lum = lumFloor
	}
	return lum
}

// hueSquaredMean scores each exposure by how far its per-pixel hue
// strays from the across-bracket mean hue. The minimum scorer is the
// most color-neutral frame, our best bet for a reference that isn't
// dominated by a moving subject.
func hueSquaredMean(items []*stack.Item) []float64 {
	w := items[0].Frame.Width()
	h := items[0].Frame.Height()
	he := make([]float64, len(items))
	hues := make([]float64, len(items))

	type planes struct{ x, y, z []float32 }
	chans := make([]planes, len(items))
	for i, it := range items {
		xc, yc, zc := it.Frame.XYZChannels()
		chans[i] = planes{xc.RawData(), yc.RawData(), zc.RawData()}
	}

	for p := 0; p < w*h; p++ {
		mean := 0.0
		for i := range items {
			c := colorful.Color{
				R: float64(chans[i].x[p]),
				G: float64(chans[i].y[p]),
				B: float64(chans[i].z[p]),
			}
			hue, _, _ := c.Hsv()
			hues[i] = hue
			mean += hue
		}
		mean /= float64(len(items))
		for i := range items {
			d := hues[i] - mean
			he[i] += d * d
		}
	}
	for i := range he {
		he[i] /= float64(w * h)
	}
	return he
}

// sdv computes the per-channel standard deviation of the deltaEV- and
// offset-adjusted log difference between two exposures, the global
// normalization the patch comparison is scored against.
func sdv(ref, other *stack.Item, deltaEV float64, dx, dy int) [3]float64 {
	w := ref.Frame.Width()
	h := ref.Frame.Height()
	var out [3]float64

	for c, name := range [3]string{pfs.ChanX, pfs.ChanY, pfs.ChanZ} {
		a := ref.Frame.Channel(name)
		b := other.Frame.Channel(name)
		diffs := make([]float64, 0, w*h)
		for y := 0; y < h; y++ {
			sy := y + dy
			if sy < 0 || sy >= h {
				continue
			}
			for x := 0; x < w; x++ {
				sx := x + dx
				if sx < 0 || sx >= w {
					continue
				}
				diffs = append(diffs, log2c(a.Get(x, y))-log2c(b.Get(sx, sy))-deltaEV)
			}
		}
		if len(diffs) == 0 {
			out[c] = 1
			continue
		}
		_, sd := stat.MeanStdDev(diffs, nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1e-9
		}
		out[c] = sd
	}
	return out
}

// comparePatch reports whether the cell (ci, cj) disagrees between
// the reference and another exposure: the cell's mean log difference,
// adjusted for deltaEV and the relative offset, exceeds threshold
// standard deviations on any channel.
func comparePatch(ref, other *stack.Item, ci, cj, gridX, gridY int,
	threshold float64, s [3]float64, deltaEV float64, dx, dy int) bool {

	w := ref.Frame.Width()
	h := ref.Frame.Height()

	for c, name := range [3]string{pfs.ChanX, pfs.ChanY, pfs.ChanZ} {
		a := ref.Frame.Channel(name)
		b := other.Frame.Channel(name)

		var refVals, otherVals []float64
		for y := cj * gridY; y < (cj+1)*gridY && y < h; y++ {
			sy := y + dy
			if sy < 0 || sy >= h {
				continue
			}
			for x := ci * gridX; x < (ci+1)*gridX && x < w; x++ {
				sx := x + dx
				if sx < 0 || sx >= w {
					continue
				}
				refVals = append(refVals, log2c(a.Get(x, y)))
				otherVals = append(otherVals, log2c(b.Get(sx, sy)))
			}
		}
		if len(refVals) == 0 {
			continue
		}
		d := stat.Mean(refVals, nil) - stat.Mean(otherVals, nil) - deltaEV
		if math.Abs(d) > threshold*s[c] {
			return true
		}
	}
	return false
}

// ComputePatches compares every exposure against the reference over
// the patch grid and flags disagreeing cells. Flags accumulate: a
// cell marked against any exposure stays marked. The result is a pure
// function of (exposures, offsets, threshold).
func ComputePatches(items []*stack.Item, offsets []image.Point, threshold float64) (Detection, error) {
	if len(items) < 2 {
		return Detection{}, fmt.Errorf("ghost detection needs at least 2 exposures, have %d", len(items))
	}
	if len(offsets) == 0 {
		offsets = make([]image.Point, len(items))
	}
	if len(offsets) != len(items) {
		return Detection{}, fmt.Errorf("have %d offsets for %d exposures", len(offsets), len(items))
	}

	he := hueSquaredMean(items)
	h0 := 0
	for i, v := range he {
		if v < he[h0] {
			h0 = i
		}
	}

	det := Detection{Reference: h0}
	gridX := items[0].Frame.Width() / GridSize
	gridY := items[0].Frame.Height() / GridSize
	if gridX < 1 {
		gridX = 1
	}
	if gridY < 1 {
		gridY = 1
	}

	for h := range items {
		if h == h0 {
			continue
		}
		deltaEV := math.Log2(averageLuminance(items[h0])) - math.Log2(averageLuminance(items[h]))
		dx := offsets[h0].X - offsets[h].X
		dy := offsets[h0].Y - offsets[h].Y
		s := sdv(items[h0], items[h], deltaEV, dx, dy)

		for cj := 0; cj < GridSize; cj++ {
			for ci := 0; ci < GridSize; ci++ {
				if comparePatch(items[h0], items[h], ci, cj, gridX, gridY, threshold, s, deltaEV, dx, dy) {
					det.Grid[ci][cj] = true
				}
			}
		}
	}

	det.Percent = float64(det.Grid.Flagged()) / float64(GridSize*GridSize) * 100.0
	log.Info().Int("reference", h0).Float64("flagged_pct", det.Percent).Msg("ghost detection done")
	return det, nil
}
