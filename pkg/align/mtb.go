package align

import (
	"context"
	"image"
	"math"

	"github.com/rs/zerolog/log"

	"hdrfuse/pkg/pfs"
)

// MTB is the always-available in-memory strategy: a median-threshold
// bitmap pyramid search for the integer translation that minimizes
// pixel disagreement, robust to the exposure differences across a
// bracket (Ward's method).
type MTB struct {
	MaxShift int // largest offset considered, default 64
}

type gray struct {
	w, h int
	v    []uint8
}

func (g gray) at(x, y int) uint8 { return g.v[y*g.w+x] }

func (g gray) downsample() gray {
	w, h := g.w/2, g.h/2
	out := gray{w: w, h: h, v: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := int(g.at(2*x, 2*y)) + int(g.at(2*x+1, 2*y)) +
				int(g.at(2*x, 2*y+1)) + int(g.at(2*x+1, 2*y+1))
			out.v[y*w+x] = uint8(sum / 4)
		}
	}
	return out
}

func (g gray) median() uint8 {
	var counts [256]int
	for _, v := range g.v {
		counts[v]++
	}
	half := len(g.v) / 2
	seen := 0
	for i, c := range counts {
		seen += c
		if seen > half {
			return uint8(i)
		}
	}
	return 255
}

// bitmaps returns the median-threshold bitmap and the exclusion
// bitmap (pixels too close to the median to be trusted).
func (g gray) bitmaps() (mtb, ebm []bool) {
	med := int(g.median())
	mtb = make([]bool, len(g.v))
	ebm = make([]bool, len(g.v))
	for i, v := range g.v {
		mtb[i] = int(v) > med
		d := int(v) - med
		if d < 0 {
			d = -d
		}
		ebm[i] = d > 4
	}
	return mtb, ebm
}

type pyramidLevel struct {
	g        gray
	mtb, ebm []bool
}

func buildPyramid(g gray, levels int) []pyramidLevel {
	pyr := make([]pyramidLevel, 0, levels)
	for i := 0; i < levels; i++ {
		lvl := pyramidLevel{g: g}
		lvl.mtb, lvl.ebm = g.bitmaps()
		pyr = append(pyr, lvl)
		if i < levels-1 {
			g = g.downsample()
		}
	}
	return pyr
}

// diffCount scores applying shift p to b: the number of disagreeing
// trusted pixels in the overlap.
func diffCount(a, b pyramidLevel, p image.Point) int {
	count := 0
	for y := 0; y < a.g.h; y++ {
		sy := y - p.Y
		if sy < 0 || sy >= b.g.h {
			continue
		}
		for x := 0; x < a.g.w; x++ {
			sx := x - p.X
			if sx < 0 || sx >= b.g.w {
				continue
			}
			i, j := y*a.g.w+x, sy*b.g.w+sx
			if a.ebm[i] && b.ebm[j] && a.mtb[i] != b.mtb[j] {
				count++
			}
		}
	}
	return count
}

func expShift(a, b []pyramidLevel, level int) image.Point {
	var cur image.Point
	if level < len(a)-1 {
		cur = expShift(a, b, level+1)
		cur.X *= 2
		cur.Y *= 2
	}
	best, bestErr := cur, math.MaxInt
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			p := image.Pt(cur.X+dx, cur.Y+dy)
			if err := diffCount(a[level], b[level], p); err < bestErr {
				best, bestErr = p, err
			}
		}
	}
	return best
}

func (m MTB) Align(ctx context.Context, frames []*pfs.Frame) ([]image.Point, error) {
	offsets := make([]image.Point, len(frames))
	if len(frames) < 2 {
		return offsets, nil
	}

	maxShift := m.MaxShift
	if maxShift <= 0 {
		maxShift = 64
	}
	w, h := frames[0].Width(), frames[0].Height()
	levels := 1
	for (1<<levels) <= maxShift && (w>>levels) >= 16 && (h>>levels) >= 16 {
		levels++
	}

	ref := buildPyramid(gray{w: w, h: h, v: grayscale(frames[0])}, levels)
	for i := 1; i < len(frames); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pyr := buildPyramid(gray{w: w, h: h, v: grayscale(frames[i])}, levels)
		offsets[i] = expShift(ref, pyr, 0)
		log.Debug().Int("item", i).Int("dx", offsets[i].X).Int("dy", offsets[i].Y).Msg("mtb alignment")
	}
	return offsets, nil
}
