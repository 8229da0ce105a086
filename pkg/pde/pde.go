// Package pde solves the Poisson equation laplace(U) = F with Neumann
// boundary conditions, the way the PFSTMO pde_fft solver does it: move
// into the eigenvector space of the discrete Laplacian with a 2D DCT,
// divide by the eigenvalues, and transform back.
//
// The transform is the unnormalized DCT-I (what fftw calls REDFT00),
// consumed as a black box from gonum's dsp/fourier package.
package pde

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"hdrfuse/pkg/pfs"
)

// fourier.DCT keeps internal scratch state, so a plan must not be
// shared by concurrent Transform calls. Plans are cached per length
// and the lock is held only for the single transform call.
var plans = struct {
	sync.Mutex
	byN map[int]*fourier.DCT
}{byN: map[int]*fourier.DCT{}}

func dct1(n int, dst, src []float64) {
	plans.Lock()
	t, ok := plans.byN[n]
	if !ok {
		t = fourier.NewDCT(n)
		plans.byN[n] = t
	}
	t.Transform(dst, src)
	plans.Unlock()
}

type grid struct {
	w, h int
	v    []float64
}

func newGrid(w, h int) *grid { return &grid{w: w, h: h, v: make([]float64, w*h)} }

func (g *grid) get(x, y int) float64    { return g.v[y*g.w+x] }
func (g *grid) set(x, y int, f float64) { g.v[y*g.w+x] = f }

// dct2 applies the 2D DCT-I in place, one pass over rows and one over
// columns.
func (g *grid) dct2() {
	row := make([]float64, g.w)
	for y := 0; y < g.h; y++ {
		dct1(g.w, row, g.v[y*g.w:(y+1)*g.w])
		copy(g.v[y*g.w:(y+1)*g.w], row)
	}
	colIn := make([]float64, g.h)
	colOut := make([]float64, g.h)
	for x := 0; x < g.w; x++ {
		for y := 0; y < g.h; y++ {
			colIn[y] = g.get(x, y)
		}
		dct1(g.h, colOut, colIn)
		for y := 0; y < g.h; y++ {
			g.set(x, y, colOut[y])
		}
	}
}

// transformNormal2EV maps the grid into eigenvector space.
func (g *grid) transformNormal2EV() {
	g.dct2()
	scale := 1.0 / float64((g.h-1)*(g.w-1))
	for i := range g.v {
		g.v[i] *= scale
	}
	for x := 0; x < g.w; x++ {
		g.set(x, 0, g.get(x, 0)*0.5)
		g.set(x, g.h-1, g.get(x, g.h-1)*0.5)
	}
	for y := 0; y < g.h; y++ {
		g.set(0, y, g.get(0, y)*0.5)
		g.set(g.w-1, y, g.get(g.w-1, y)*0.5)
	}
}

// transformEV2Normal maps back out of eigenvector space. The DCT-I is
// not exactly its own inverse, so the input is rescaled first.
func (g *grid) transformEV2Normal() {
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			g.set(x, y, g.get(x, y)*0.25)
		}
	}
	for x := 1; x < g.w-1; x++ {
		g.set(x, 0, g.get(x, 0)*0.5)
		g.set(x, g.h-1, g.get(x, g.h-1)*0.5)
	}
	for y := 1; y < g.h-1; y++ {
		g.set(0, y, g.get(0, y)*0.5)
		g.set(g.w-1, y, g.get(g.w-1, y)*0.5)
	}
	g.dct2()
}

// lambda returns the eigenvalues of the 1D discrete Laplace operator.
func lambda(n int) []float64 {
	v := make([]float64, n)
	for i := 0; i < n; i++ {
		u := math.Sin(float64(i) / float64(2*(n-1)) * math.Pi)
		v[i] = -4.0 * u * u
	}
	return v
}

// makeCompatibleBoundary adjusts the boundary of F so that the
// Neumann problem has an exact solution (the integral condition).
func makeCompatibleBoundary(g *grid) {
	sum := 0.0
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			sum += g.get(x, y)
		}
	}
	for x := 1; x < g.w-1; x++ {
		sum += 0.5 * (g.get(x, 0) + g.get(x, g.h-1))
	}
	for y := 1; y < g.h-1; y++ {
		sum += 0.5 * (g.get(0, y) + g.get(g.w-1, y))
	}
	sum += 0.25 * (g.get(0, 0) + g.get(0, g.h-1) + g.get(g.w-1, 0) + g.get(g.w-1, g.h-1))

	add := -sum / float64(g.h+g.w-3)
	for x := 0; x < g.w; x++ {
		g.set(x, 0, g.get(x, 0)+add)
		g.set(x, g.h-1, g.get(x, g.h-1)+add)
	}
	for y := 1; y < g.h-1; y++ {
		g.set(0, y, g.get(0, y)+add)
		g.set(g.w-1, y, g.get(g.w-1, y)+add)
	}
}

// Solve returns the field U with laplace(U) = F, up to an additive
// constant. If adjustBound is set, the boundary of F is first nudged
// so an exact solution exists; otherwise a minimum-error solution is
// returned. F is not modified. The solution is shifted so that its
// maximum is zero, which keeps a later exp() well behaved.
func Solve(F *pfs.Array2D, adjustBound bool) *pfs.Array2D {
	w, h := F.Cols(), F.Rows()

	g := newGrid(w, h)
	raw := F.RawData()
	for i := range raw {
		g.v[i] = float64(raw[i])
	}

	if adjustBound {
		makeCompatibleBoundary(g)
	}

	g.transformNormal2EV()

	l1 := lambda(h)
	l2 := lambda(w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x == 0 && y == 0 {
				g.set(x, y, 0) // any value works, only shifts the solution
			} else {
				g.set(x, y, g.get(x, y)/(l1[y]+l2[x]))
			}
		}
	}

	g.transformEV2Normal()

	max := 0.0
	for _, v := range g.v {
		if v > max {
			max = v
		}
	}

	U := pfs.NewArray2D(w, h)
	out := U.RawData()
	for i := range out {
		out[i] = float32(g.v[i] - max)
	}
	return U
}
