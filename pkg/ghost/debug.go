package ghost

import (
	"fmt"

	"github.com/fogleman/gg"
)

// DebugPNG renders the detection grid at the given pixel size, with
// flagged cells filled red, and saves it for inspection.
func (d *Detection) DebugPNG(w, h int, filename string) error {
	dc := gg.NewContext(w, h)
	dc.SetRGB(0.15, 0.15, 0.15)
	dc.Clear()

	cw := float64(w) / GridSize
	ch := float64(h) / GridSize
	for i := 0; i < GridSize; i++ {
		for j := 0; j < GridSize; j++ {
			if d.Grid[i][j] {
				dc.SetRGBA(0.9, 0.1, 0.1, 0.8)
				dc.DrawRectangle(float64(i)*cw, float64(j)*ch, cw, ch)
				dc.Fill()
			}
		}
	}

	dc.SetRGBA(1, 1, 1, 0.4)
	dc.SetLineWidth(1)
	for i := 1; i < GridSize; i++ {
		dc.DrawLine(float64(i)*cw, 0, float64(i)*cw, float64(h))
		dc.DrawLine(0, float64(i)*ch, float64(w), float64(i)*ch)
	}
	dc.Stroke()

	dc.SetRGB(1, 1, 1)
	dc.DrawString(fmt.Sprintf("ref=%d flagged=%.0f%%", d.Reference, d.Percent), 10, 20)
	return dc.SavePNG(filename)
}
