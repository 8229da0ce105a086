package pde

import (
	"math"
	"testing"

	"hdrfuse/pkg/pfs"
)

// applyLaplacian evaluates the discrete operator Solve inverts:
// second differences in the interior, doubled mirror terms on the
// boundary.
func applyLaplacian(u *pfs.Array2D) *pfs.Array2D {
	w := u.Cols()
	h := u.Rows()
	f := pfs.NewArray2D(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var tx, ty float64
			switch {
			case x == 0:
				tx = 2 * float64(u.Get(1, y)-u.Get(0, y))
			case x == w-1:
				tx = 2 * float64(u.Get(w-2, y)-u.Get(w-1, y))
			default:
				tx = float64(u.Get(x+1, y)) - 2*float64(u.Get(x, y)) + float64(u.Get(x-1, y))
			}
			switch {
			case y == 0:
				ty = 2 * float64(u.Get(x, 1)-u.Get(x, 0))
			case y == h-1:
				ty = 2 * float64(u.Get(x, h-2)-u.Get(x, h-1))
			default:
				ty = float64(u.Get(x, y+1)) - 2*float64(u.Get(x, y)) + float64(u.Get(x, y-1))
			}
			f.Set(x, y, float32(tx+ty))
		}
	}
	return f
}

func TestSolveRecoversFieldUpToConstant(t *testing.T) {
	const w, h = 16, 12
	u0 := pfs.NewArray2D(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := math.Sin(float64(x)*0.4) + 0.3*math.Cos(float64(y)*0.7)
			u0.Set(x, y, float32(v))
		}
	}

	f := applyLaplacian(u0)
	u := Solve(f, false)

	// The solution is defined up to an additive constant; anchor on
	// the corner and compare differences.
	shift := u.Get(0, 0) - u0.Get(0, 0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := float64(u.Get(x, y) - u0.Get(x, y) - shift)
			if math.Abs(d) > 1e-3 {
				t.Fatalf("(%d,%d): residual %v after constant shift", x, y, d)
			}
		}
	}
}

func TestSolveShiftsMaxToZero(t *testing.T) {
	const w, h = 8, 8
	f := pfs.NewArray2D(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, float32((x*31+y*17)%7)-3)
		}
	}

	u := Solve(f, true)
	max := float32(math.Inf(-1))
	for _, v := range u.RawData() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatal("solution contains NaN or Inf")
		}
		if v > max {
			max = v
		}
	}
	if math.Abs(float64(max)) > 1e-5 {
		t.Errorf("max of solution = %v, want 0", max)
	}
}
