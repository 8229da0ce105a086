package fusion

import (
	"math"
	"testing"
)

func TestWeightEndpointsAreZero(t *testing.T) {
	for _, kind := range []string{WeightTriangular, WeightPlateau, WeightGaussian} {
		wf, err := NewWeightFunction(kind, 8)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if wf.At(0) != 0 || wf.At(255) != 0 {
			t.Errorf("%s: endpoints = %v, %v, want 0, 0", kind, wf.At(0), wf.At(255))
		}
		if wf.At(-1) != 0 || wf.At(256) != 0 {
			t.Errorf("%s: out of range codes should weigh 0", kind)
		}
	}
}

func TestWeightShapes(t *testing.T) {
	tri, _ := NewWeightFunction(WeightTriangular, 8)
	plat, _ := NewWeightFunction(WeightPlateau, 8)
	gauss, _ := NewWeightFunction(WeightGaussian, 8)

	// All shapes peak at the middle of the code range.
	mid := 127
	for _, wf := range []*WeightFunction{tri, plat, gauss} {
		for code := 1; code < 255; code++ {
			if wf.At(code) > wf.At(mid)+1e-9 && code != mid && code != 128 {
				t.Errorf("%s: At(%d)=%v exceeds midpoint weight %v", wf.Kind, code, wf.At(code), wf.At(mid))
			}
		}
	}

	// The plateau is much flatter than the triangle away from center.
	if plat.At(64) < tri.At(64) {
		t.Error("plateau should dominate triangular at quarter scale")
	}

	v := 64.0 / 255.0
	want := math.Exp(-32.0 * (v - 0.5) * (v - 0.5))
	if got := gauss.At(64); math.Abs(got-want) > 1e-12 {
		t.Errorf("gaussian At(64) = %v, want %v", got, want)
	}
}

func TestWeightUnknownKind(t *testing.T) {
	if _, err := NewWeightFunction("boxcar", 8); err == nil {
		t.Error("unknown weight kind should error")
	}
}
