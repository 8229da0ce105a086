package imgio

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/rs/zerolog/log"
	"github.com/rwcarlsen/goexif/exif"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"hdrfuse/pkg/pfs"
)

// WriteParams selects encoder behavior for WriteTIFF.
type WriteParams struct {
	Compression string // "none", "deflate", "lzw"; default deflate
}

// WriteTIFF writes the frame's X/Y/Z channels as a 16-bit RGB TIFF,
// clamping values to [0,1].
func WriteTIFF(f *pfs.Frame, path string, params WriteParams) error {
	var comp tiff.CompressionType
	switch params.Compression {
	case "", "deflate":
		comp = tiff.Deflate
	case "none":
		comp = tiff.Uncompressed
	case "lzw":
		comp = tiff.LZW
	default:
		return fmt.Errorf("unknown tiff compression %q", params.Compression)
	}

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open+w %s: %w", path, err)
	}
	defer w.Close()

	return tiff.Encode(w, ImageFromFrame(f), &tiff.Options{Compression: comp})
}

// WritePNG writes any raster as PNG.
func WritePNG(img image.Image, path string) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open+w %s: %w", path, err)
	}
	defer w.Close()
	return png.Encode(w, img)
}

// WriteRGBE writes a linear radiance frame as a Radiance .hdr file,
// loadable by the usual HDR tooling.
func WriteRGBE(f *pfs.Frame, path string) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open+w %s: %w", path, err)
	}
	defer w.Close()

	if err := rgbe.Encode(w, NewHDRImage(f)); err != nil {
		return fmt.Errorf("encoding RGBE %s: %w", path, err)
	}
	return nil
}

// ImageFromFrame clamps the frame's radiance planes into a 16-bit
// LDR raster.
func ImageFromFrame(f *pfs.Frame) *image.RGBA64 {
	xc, yc, zc := f.XYZChannels()
	img := image.NewRGBA64(image.Rect(0, 0, f.Width(), f.Height()))
	to16 := func(v float32) uint16 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 0xFFFF
		}
		return uint16(v * 0xFFFF)
	}
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			img.SetRGBA64(x, y, color.RGBA64{
				R: to16(xc.Get(x, y)),
				G: to16(yc.Get(x, y)),
				B: to16(zc.Get(x, y)),
				A: 0xFFFF,
			})
		}
	}
	return img
}

// MakePreview downscales a raster so its longest edge is maxDim, for
// cheap UI display.
func MakePreview(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		out := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out
	}
	if w > h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}

// ShiftPreview translates a preview raster, zero-filling the exposed
// border, mirroring what pfs.Shift does to the full frame.
func ShiftPreview(img image.Image, dx, dy int) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, image.Rect(0, 0, b.Dx(), b.Dy()).Add(image.Pt(dx, dy)), img, b.Min, draw.Src)
	return out
}

// CropPreview cuts a preview raster to r (in preview coordinates).
func CropPreview(img image.Image, r image.Rectangle) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min.Add(r.Min), draw.Src)
	return out
}

// CopyExif is the post-write metadata step: it extracts the source
// file's raw EXIF block and stores it alongside the destination as a
// sidecar (Go has no in-place TIFF EXIF writer). Missing source EXIF
// is not an error.
func CopyExif(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("exif copy, open %s: %w", src, err)
	}
	defer f.Close()

	ex, err := exif.Decode(f)
	if err != nil {
		log.Debug().Str("file", src).Msg("exif copy: source has no EXIF")
		return nil
	}
	// Decode accepts any well-formed TIFF, so a bare raster still parses.
	// Only write the sidecar when the source carries an actual EXIF IFD.
	if _, err := ex.Get(exif.ExifIFDPointer); err != nil {
		log.Debug().Str("file", src).Msg("exif copy: source has no EXIF")
		return nil
	}
	if err := os.WriteFile(dst+".exif", ex.Raw, 0o644); err != nil {
		return fmt.Errorf("exif copy, write %s.exif: %w", dst, err)
	}
	return nil
}
