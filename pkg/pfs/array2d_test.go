package pfs

import (
	"image"
	"testing"
)

func TestArray2DGetSet(t *testing.T) {
	a := NewArray2D(4, 3)
	if a.Cols() != 4 || a.Rows() != 3 {
		t.Fatalf("got %dx%d, want 4x3", a.Cols(), a.Rows())
	}
	a.Set(2, 1, 7.5)
	if got := a.Get(2, 1); got != 7.5 {
		t.Errorf("Get(2,1) = %v, want 7.5", got)
	}
	// Row-major layout: (2,1) is index 1*4+2.
	if got := a.RawData()[6]; got != 7.5 {
		t.Errorf("RawData()[6] = %v, want 7.5", got)
	}
}

func TestWrapArray2D(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	a := WrapArray2D(3, 2, data)
	if a.Owned() {
		t.Error("wrapped array claims to own its data")
	}
	if got := a.Get(1, 1); got != 5 {
		t.Errorf("Get(1,1) = %v, want 5", got)
	}
	a.Set(0, 0, 9)
	if data[0] != 9 {
		t.Error("write through wrapper did not reach backing slice")
	}

	defer func() {
		if recover() == nil {
			t.Error("wrapping a short slice did not panic")
		}
	}()
	WrapArray2D(3, 3, data)
}

func TestFillScale(t *testing.T) {
	a := NewArray2D(2, 2)
	a.Fill(3)
	a.Scale(0.5)
	for i, v := range a.RawData() {
		if v != 1.5 {
			t.Fatalf("index %d = %v, want 1.5", i, v)
		}
	}
}

func TestCopyArrayRect(t *testing.T) {
	src := NewArray2D(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, float32(y*4+x))
		}
	}
	dst := NewArray2D(2, 2)
	CopyArrayRect(src, dst, image.Rect(1, 1, 3, 3))
	want := [][2]int{{1, 1}, {2, 1}, {1, 2}, {2, 2}}
	for i, p := range want {
		got := dst.RawData()[i]
		if got != float32(p[1]*4+p[0]) {
			t.Errorf("dst[%d] = %v, want %v", i, got, p[1]*4+p[0])
		}
	}
}

func TestCopyArrayRectBounds(t *testing.T) {
	src := NewArray2D(4, 4)
	dst := NewArray2D(2, 2)
	defer func() {
		if recover() == nil {
			t.Error("out of bounds rect did not panic")
		}
	}()
	CopyArrayRect(src, dst, image.Rect(3, 3, 5, 5))
}

func TestElementwiseOps(t *testing.T) {
	x := NewArray2D(2, 1)
	y := NewArray2D(2, 1)
	z := NewArray2D(2, 1)
	x.Fill(6)
	y.Fill(2)

	MultiplyArrays(z, x, y)
	if z.Get(0, 0) != 12 {
		t.Errorf("multiply = %v, want 12", z.Get(0, 0))
	}
	DivideArrays(z, x, y)
	if z.Get(0, 0) != 3 {
		t.Errorf("divide = %v, want 3", z.Get(0, 0))
	}
}

func TestDimensionMismatchPanics(t *testing.T) {
	x := NewArray2D(2, 2)
	y := NewArray2D(3, 2)
	defer func() {
		if recover() == nil {
			t.Error("mismatched sizes did not panic")
		}
	}()
	MultiplyArrays(x, x, y)
}

func TestClone(t *testing.T) {
	a := NewArray2D(2, 2)
	a.Set(1, 1, 4)
	b := a.Clone()
	b.Set(1, 1, 5)
	if a.Get(1, 1) != 4 {
		t.Error("clone shares storage with original")
	}
}
