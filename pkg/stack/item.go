// Package stack owns the bracketed exposure set: loading, EV
// normalization, alignment shifts and crops, and driving fusion.
package stack

import (
	"fmt"
	"image"

	"hdrfuse/pkg/imgio"
	"hdrfuse/pkg/pfs"
)

// An Item is one loaded exposure: the full-resolution frame it owns,
// a downscaled preview for display, and the exposure metadata derived
// at load time. EV and average luminance may be absent; absence is a
// state of the item, never an error.
type Item struct {
	Filename string
	Frame    *pfs.Frame
	Preview  image.Image
	BitDepth int

	HasEV  bool
	EV     float64
	HasLum bool
	AvgLum float64
}

func newItem(path string, res imgio.Result) *Item {
	return &Item{
		Filename: path,
		Frame:    res.Frame,
		Preview:  res.Preview,
		BitDepth: res.BitDepth,
		HasEV:    res.Meta.HasEV,
		EV:       res.Meta.EV,
		HasLum:   res.Meta.HasLum,
		AvgLum:   res.Meta.AvgLum,
	}
}

// IsValid reports whether the item carries a decoded frame.
func (it *Item) IsValid() bool { return it != nil && it.Frame != nil }

func (it *Item) String() string {
	ev := "no EV"
	if it.HasEV {
		ev = fmt.Sprintf("EV %+.2f", it.EV)
	}
	return fmt.Sprintf("%s: %dx%d %d-bit, %s", it.Filename,
		it.Frame.Width(), it.Frame.Height(), it.BitDepth, ev)
}
