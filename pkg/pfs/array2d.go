// Package pfs holds the in-memory image model: 2D float buffers and
// the multi-channel Frame container they are assembled into.
package pfs

import (
	"fmt"
	"image"
)

// An Array2D is a rectangular grid of float32 values, stored
// row-major. An array either owns its buffer, or wraps a buffer
// belonging to someone else (used to alias a Frame channel in place
// without copying).
type Array2D struct {
	cols  int
	rows  int
	data  []float32
	owned bool
}

// NewArray2D allocates an owning array of the given dimensions.
func NewArray2D(cols, rows int) *Array2D {
	return &Array2D{
		cols:  cols,
		rows:  rows,
		data:  make([]float32, cols*rows),
		owned: true,
	}
}

// WrapArray2D wraps an existing buffer without taking ownership.
// The buffer length must be exactly cols*rows.
func WrapArray2D(cols, rows int, data []float32) *Array2D {
	if len(data) != cols*rows {
		panic(fmt.Sprintf("pfs: wrap %dx%d over buffer of %d values", cols, rows, len(data)))
	}
	return &Array2D{cols: cols, rows: rows, data: data, owned: false}
}

func (a *Array2D) Cols() int          { return a.cols }
func (a *Array2D) Rows() int          { return a.rows }
func (a *Array2D) Owned() bool        { return a.owned }
func (a *Array2D) RawData() []float32 { return a.data }

func (a *Array2D) Get(x, y int) float32    { return a.data[y*a.cols+x] }
func (a *Array2D) Set(x, y int, v float32) { a.data[y*a.cols+x] = v }

// Release drops the buffer if the array owns it. A wrapping array
// never touches the buffer it was given.
func (a *Array2D) Release() {
	if a.owned {
		a.data = nil
	}
}

// Clone returns an owning deep copy.
func (a *Array2D) Clone() *Array2D {
	b := NewArray2D(a.cols, a.rows)
	copy(b.data, a.data)
	return b
}

func (a *Array2D) sameSizeAs(b *Array2D) {
	if a.cols != b.cols || a.rows != b.rows {
		panic(fmt.Sprintf("pfs: dimension mismatch %dx%d vs %dx%d", a.cols, a.rows, b.cols, b.rows))
	}
}

// Fill sets every value.
func (a *Array2D) Fill(v float32) {
	for i := range a.data {
		a.data[i] = v
	}
}

// Scale multiplies every value by f.
func (a *Array2D) Scale(f float32) {
	for i := range a.data {
		a.data[i] *= f
	}
}

// CopyArray copies every value of src into dst. The arrays must have
// identical dimensions.
func CopyArray(src, dst *Array2D) {
	src.sameSizeAs(dst)
	copy(dst.data, src.data)
}

// CopyArrayRect copies the sub-rectangle r of src into dst. The
// rectangle is inclusive-exclusive, must lie inside src, and must
// exactly match dst's dimensions.
func CopyArrayRect(src, dst *Array2D, r image.Rectangle) {
	if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > src.cols || r.Max.Y > src.rows {
		panic(fmt.Sprintf("pfs: rect %v outside %dx%d source", r, src.cols, src.rows))
	}
	if r.Dx() != dst.cols || r.Dy() != dst.rows {
		panic(fmt.Sprintf("pfs: rect %v does not fill %dx%d destination", r, dst.cols, dst.rows))
	}
	for y := 0; y < dst.rows; y++ {
		from := (y+r.Min.Y)*src.cols + r.Min.X
		copy(dst.data[y*dst.cols:(y+1)*dst.cols], src.data[from:from+dst.cols])
	}
}

// MultiplyArrays computes z = x * y elementwise.
func MultiplyArrays(z, x, y *Array2D) {
	x.sameSizeAs(y)
	x.sameSizeAs(z)
	for i := range z.data {
		z.data[i] = x.data[i] * y.data[i]
	}
}

// DivideArrays computes z = x / y elementwise.
func DivideArrays(z, x, y *Array2D) {
	x.sameSizeAs(y)
	x.sameSizeAs(z)
	for i := range z.data {
		z.data[i] = x.data[i] / y.data[i]
	}
}
