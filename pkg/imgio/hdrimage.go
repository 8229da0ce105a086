package imgio

import (
	"image"
	"image/color"

	"github.com/mdouchement/hdr/hdrcolor"

	"hdrfuse/pkg/pfs"
)

// HDRImage adapts a radiance frame to the hdr.Image interface, so it
// can feed the RGBE codec and the tonemapping operators directly.
type HDRImage struct {
	frame   *pfs.Frame
	x, y, z *pfs.Array2D
}

func NewHDRImage(f *pfs.Frame) *HDRImage {
	x, y, z := f.XYZChannels()
	return &HDRImage{frame: f, x: x, y: y, z: z}
}

// Implement image.Image.
func (h *HDRImage) ColorModel() color.Model { return hdrcolor.RGBModel }
func (h *HDRImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, h.frame.Width(), h.frame.Height())
}
func (h *HDRImage) At(x, y int) color.Color { return h.HDRAt(x, y) }

// Implement hdr.Image.
func (h *HDRImage) HDRAt(x, y int) hdrcolor.Color {
	return hdrcolor.RGB{
		R: float64(h.x.Get(x, y)),
		G: float64(h.y.Get(x, y)),
		B: float64(h.z.Get(x, y)),
	}
}
func (h *HDRImage) Size() int { return h.frame.Width() * h.frame.Height() }
