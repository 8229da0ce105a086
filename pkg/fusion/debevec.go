package fusion

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/skypies/util/histogram"

	"hdrfuse/pkg/pfs"
)

// Fusion operator kinds.
const (
	OperatorDebevec = "debevec"
)

// An Exposure is one aligned input to the fusion operator. Scale is
// the EV normalization factor 2^(ev - evOffset); exposures without
// metadata fuse at scale 1, anchored to the offset.
type Exposure struct {
	Frame *pfs.Frame
	Scale float64
}

// An Operator fuses the exposures, per pixel and per channel, into a
// single linear radiance frame.
type Operator func(exps []Exposure, rc *ResponseCurve, wf *WeightFunction) *pfs.Frame

// Operators is the dispatch table of fusion operators, built at
// startup so there is no hidden registration order to worry about.
var Operators = map[string]Operator{
	OperatorDebevec: Debevec,
}

var (
	// When CollectHistograms is set, Debevec accumulates one
	// log2-radiance histogram per exposure; handy when eyeballing how
	// the weights spread radiance across the bracket.
	CollectHistograms bool
	Hists             []histogram.Histogram
)

// Fuse EV-normalizes the exposures and runs the named operator. The
// exposures must already be aligned and of identical dimensions.
func Fuse(exps []Exposure, rc *ResponseCurve, wf *WeightFunction, operatorKind string) (*pfs.Frame, error) {
	op, ok := Operators[operatorKind]
	if !ok {
		return nil, fmt.Errorf("no fusion operator named %q", operatorKind)
	}
	log.Debug().Str("operator", operatorKind).Str("response", rc.Kind).Str("weight", wf.Kind).
		Int("exposures", len(exps)).Msg("fusing exposures")
	return op(exps, rc, wf), nil
}

// Debevec computes the classic weighted-average radiance estimate:
// for each pixel and channel, sum(w * scale * response) / sum(w).
// When every sample weighs zero the single highest-weight sample is
// used; failing even that, the pixel is black.
func Debevec(exps []Exposure, rc *ResponseCurve, wf *WeightFunction) *pfs.Frame {
	w := exps[0].Frame.Width()
	h := exps[0].Frame.Height()
	maxCode := float64(rc.MaxCode())

	if CollectHistograms {
		Hists = make([]histogram.Histogram, len(exps))
		for i := range Hists {
			Hists[i] = histogram.Histogram{NumBuckets: 256, ValMin: 0, ValMax: 256}
		}
	}

	out := pfs.NewFrame(w, h)
	for _, name := range []string{pfs.ChanX, pfs.ChanY, pfs.ChanZ} {
		dst := out.CreateChannel(name)
		srcs := make([]*pfs.Array2D, len(exps))
		for i, e := range exps {
			srcs[i] = e.Frame.Channel(name)
		}

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				num, den := 0.0, 0.0
				bestW, bestVal := -1.0, 0.0
				for i := range exps {
					code := int(float64(srcs[i].Get(x, y))*maxCode + 0.5)
					wgt := wf.At(code)
					val := exps[i].Scale * rc.At(code)
					num += wgt * val
					den += wgt
					if wgt > bestW {
						bestW, bestVal = wgt, val
					}
				}
				switch {
				case den > 0:
					dst.Set(x, y, float32(num/den))
				case bestW >= 0:
					// All weights zero, e.g. saturated in every
					// exposure. Keep the least-bad sample.
					dst.Set(x, y, float32(bestVal))
				default:
					dst.Set(x, y, 0)
				}
			}
		}
	}

	if CollectHistograms {
		for i := range exps {
			ex, ey, ez := exps[i].Frame.XYZChannels()
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					avg := float64(ex.Get(x, y)+ey.Get(x, y)+ez.Get(x, y)) / 3.0 * exps[i].Scale
					if avg > 0 {
						Hists[i].Add(histogram.ScalarVal(int(math.Log2(avg)*25.6 + 128)))
					}
				}
			}
		}
	}

	return out
}
