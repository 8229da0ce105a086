package fusion

import (
	"fmt"
	"math"
)

// Weight function kinds.
const (
	WeightTriangular = "triangular"
	WeightPlateau    = "plateau"
	WeightGaussian   = "gaussian"
)

// A WeightFunction maps a code value to a blend weight in [0,1],
// favoring well-exposed pixels. The extreme codes always weigh zero,
// so clipped samples never contribute.
type WeightFunction struct {
	Kind    string
	samples []float64
}

// NewWeightFunction builds one of the analytic weight shapes for the
// given bit depth.
func NewWeightFunction(kind string, bitDepth int) (*WeightFunction, error) {
	n := 1 << bitDepth
	wf := &WeightFunction{Kind: kind, samples: make([]float64, n)}
	max := float64(n - 1)

	var shape func(v float64) float64
	switch kind {
	case WeightTriangular:
		shape = func(v float64) float64 { return 1.0 - math.Abs(2.0*v-1.0) }
	case WeightPlateau:
		shape = func(v float64) float64 { return 1.0 - math.Pow(2.0*v-1.0, 12.0) }
	case WeightGaussian:
		shape = func(v float64) float64 { return math.Exp(-32.0 * (v - 0.5) * (v - 0.5)) }
	default:
		return nil, fmt.Errorf("no weight function named %q", kind)
	}

	for i := range wf.samples {
		wf.samples[i] = shape(float64(i) / max)
	}
	wf.samples[0] = 0
	wf.samples[n-1] = 0
	return wf, nil
}

// At returns the weight for a code value.
func (wf *WeightFunction) At(code int) float64 {
	if code < 0 || code >= len(wf.samples) {
		return 0
	}
	return wf.samples[code]
}
