package ghost

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog/log"

	"hdrfuse/pkg/pde"
	"hdrfuse/pkg/pfs"
	"hdrfuse/pkg/taskgroup"
)

// Options selects which regions of the fused result get rebuilt from
// the reference exposure's gradients. Exactly one of Grid or Mask
// must be set. Mask values above 0.5 mark ghosted pixels.
type Options struct {
	Grid *Grid
	Mask *pfs.Array2D
}

const irradianceFloor = 1e-6

// awbNorm is the Minkowski exponent for the shades-of-gray white
// balance applied after reconstruction.
const awbNorm = 6.0

// Deghost rebuilds the fused frame in the gradient domain: ghosted
// regions take their gradients from the reference exposure, the rest
// keep the fused gradients, and a Poisson solve integrates the
// blended field back into radiance per channel.
//
// Cancellation is polled at progress checkpoints; on cancellation no
// partial frame is returned, only ctx.Err().
func Deghost(ctx context.Context, ghosted, ref *pfs.Frame, opt Options, progress *taskgroup.Progress) (*pfs.Frame, error) {
	if ghosted.Width() != ref.Width() || ghosted.Height() != ref.Height() {
		return nil, errors.New("fused frame and reference exposure sizes differ")
	}
	if (opt.Grid == nil) == (opt.Mask == nil) {
		return nil, errors.New("exactly one of grid or mask must be given")
	}

	w := ghosted.Width()
	h := ghosted.Height()

	var isGhost func(x, y int) bool
	if opt.Mask != nil {
		if opt.Mask.Cols() != w || opt.Mask.Rows() != h {
			return nil, errors.New("mask size differs from frame size")
		}
		m := opt.Mask
		isGhost = func(x, y int) bool { return m.Get(x, y) > 0.5 }
	} else {
		g := opt.Grid
		gridX := w / GridSize
		gridY := h / GridSize
		if gridX < 1 {
			gridX = 1
		}
		if gridY < 1 {
			gridY = 1
		}
		isGhost = func(x, y int) bool {
			ci := x / gridX
			cj := y / gridY
			if ci >= GridSize {
				ci = GridSize - 1
			}
			if cj >= GridSize {
				cj = GridSize - 1
			}
			return g[ci][cj]
		}
	}

	step := func(pct int) error {
		progress.Report(pct)
		return ctx.Err()
	}

	gx, gy, gz := ghosted.XYZChannels()
	rx, ry, rz := ref.XYZChannels()
	fused := [3]*pfs.Array2D{gx, gy, gz}
	good := [3]*pfs.Array2D{rx, ry, rz}

	var divs [3]*pfs.Array2D
	err := taskgroup.Run(ctx, 3, 3, func(ctx context.Context, c int) error {
		divs[c] = blendedDivergence(fused[c], good[c], isGhost)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := step(40); err != nil {
		return nil, err
	}

	var lum [3]*pfs.Array2D
	for c, pct := range [3]int{60, 76, 93} {
		lum[c] = pde.Solve(divs[c], false)
		divs[c].Release()
		if err := step(pct); err != nil {
			return nil, err
		}
	}

	out := pfs.NewFrame(w, h)
	ox, oy, oz := out.CreateXYZChannels()
	outCh := [3]*pfs.Array2D{ox, oy, oz}
	for c, pct := range [3]int{94, 95, 96} {
		src := lum[c].RawData()
		dst := outCh[c].RawData()
		for i := range src {
			dst[i] = float32(math.Exp(float64(src[i])))
		}
		lum[c].Release()
		if err := step(pct); err != nil {
			return nil, err
		}
	}

	clampToZero(outCh)
	shadesOfGrayAWB(outCh)
	if err := step(100); err != nil {
		return nil, err
	}
	log.Debug().Int("width", w).Int("height", h).Msg("deghost reconstruction done")
	return out, nil
}

// blendedDivergence turns a channel into log irradiance, takes
// forward-difference gradients with ghosted regions replaced by the
// reference's gradients, and returns the divergence of the blend.
//
// Boundary divergence terms are doubled so the field is exactly in
// the range of the discrete operator the DCT solver inverts. With no
// ghosted cells the solve then reproduces the input up to an additive
// constant.
func blendedDivergence(fusedCh, goodCh *pfs.Array2D, isGhost func(x, y int) bool) *pfs.Array2D {
	w := fusedCh.Cols()
	h := fusedCh.Rows()

	logF := logIrradiance(fusedCh)
	logG := logIrradiance(goodCh)
	defer logF.Release()
	defer logG.Release()

	bx := pfs.NewArray2D(w, h)
	by := pfs.NewArray2D(w, h)
	defer bx.Release()
	defer by.Release()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := logF
			if isGhost(x, y) {
				src = logG
			}
			if x < w-1 {
				bx.Set(x, y, src.Get(x+1, y)-src.Get(x, y))
			}
			if y < h-1 {
				by.Set(x, y, src.Get(x, y+1)-src.Get(x, y))
			}
		}
	}

	div := pfs.NewArray2D(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var tx, ty float32
			switch {
			case x == 0:
				tx = 2 * bx.Get(0, y)
			case x == w-1:
				tx = -2 * bx.Get(w-2, y)
			default:
				tx = bx.Get(x, y) - bx.Get(x-1, y)
			}
			switch {
			case y == 0:
				ty = 2 * by.Get(x, 0)
			case y == h-1:
				ty = -2 * by.Get(x, h-2)
			default:
				ty = by.Get(x, y) - by.Get(x, y-1)
			}
			div.Set(x, y, tx+ty)
		}
	}
	return div
}

func logIrradiance(ch *pfs.Array2D) *pfs.Array2D {
	out := pfs.NewArray2D(ch.Cols(), ch.Rows())
	src := ch.RawData()
	dst := out.RawData()
	for i, v := range src {
		f := float64(v)
		if f < irradianceFloor {
			f = irradianceFloor
		}
		dst[i] = float32(math.Log(f))
	}
	return out
}

// clampToZero shifts all three channels up by the joint minimum, but
// only when that minimum is negative.
func clampToZero(chans [3]*pfs.Array2D) {
	min := float32(math.Inf(1))
	for _, ch := range chans {
		for _, v := range ch.RawData() {
			if v < min {
				min = v
			}
		}
	}
	if min >= 0 {
		return
	}
	for _, ch := range chans {
		data := ch.RawData()
		for i := range data {
			data[i] -= min
		}
	}
}

// shadesOfGrayAWB rebalances the channels so their Minkowski means
// agree, a gray-world white balance generalized to higher norms.
func shadesOfGrayAWB(chans [3]*pfs.Array2D) {
	var norms [3]float64
	for c, ch := range chans {
		sum := 0.0
		data := ch.RawData()
		for _, v := range data {
			sum += math.Pow(float64(v), awbNorm)
		}
		norms[c] = math.Pow(sum/float64(len(data)), 1/awbNorm)
	}
	gray := (norms[0] + norms[1] + norms[2]) / 3
	for c, ch := range chans {
		if norms[c] <= 0 {
			continue
		}
		gain := float32(gray / norms[c])
		data := ch.RawData()
		for i := range data {
			data[i] *= gain
		}
	}
}
