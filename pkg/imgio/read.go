// Package imgio is the file I/O collaborator: decoding exposures into
// frames, extracting the EXIF exposure metadata, and writing TIFF,
// PNG and Radiance RGBE outputs.
package imgio

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"

	"hdrfuse/pkg/pfs"
)

// ExposureMeta is what the EXIF block tells us about how an exposure
// was taken. Absence of a value is a distinct state, never zero.
type ExposureMeta struct {
	HasEV  bool
	EV     float64 // log2 scale, ISO-100 referenced
	HasLum bool
	AvgLum float64 // average scene luminance estimate
}

// A Result is one decoded exposure.
type Result struct {
	Frame    *pfs.Frame
	BitDepth int
	Preview  image.Image
	Meta     ExposureMeta
}

// A Reader decodes an exposure file. It exists as an interface so the
// orchestration layer can be exercised without touching the disk.
type Reader interface {
	Read(path string) (Result, error)
}

// FileReader is the production Reader.
type FileReader struct {
	PreviewMax int // longest preview edge; 0 means the default 256
}

func (r FileReader) Read(path string) (Result, error) {
	img, bitDepth, err := decodeImage(path)
	if err != nil {
		return Result{}, err
	}

	max := r.PreviewMax
	if max <= 0 {
		max = 256
	}

	res := Result{
		Frame:    FrameFromImage(img),
		BitDepth: bitDepth,
		Preview:  MakePreview(img, max),
		Meta:     ReadExposureMeta(path),
	}
	return res, nil
}

func decodeImage(path string) (image.Image, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open+r %s: %w", path, err)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		img, err = tiff.Decode(f)
	case ".png":
		img, err = png.Decode(f)
	default:
		img, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", path, err)
	}

	bitDepth := 8
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		bitDepth = 16
	}
	return img, bitDepth, nil
}

// FrameFromImage converts a decoded raster into a frame with X/Y/Z
// channels holding the red, green and blue planes normalized to [0,1].
func FrameFromImage(img image.Image) *pfs.Frame {
	b := img.Bounds()
	fr := pfs.NewFrame(b.Dx(), b.Dy())
	xc, yc, zc := fr.CreateXYZChannels()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			xc.Set(x, y, float32(r)/0xFFFF)
			yc.Set(x, y, float32(g)/0xFFFF)
			zc.Set(x, y, float32(bl)/0xFFFF)
		}
	}
	return fr
}

// ReadExposureMeta extracts EV and average scene luminance from the
// EXIF ISO/aperture/shutter triple. Any missing or unparsable tag
// leaves the corresponding value absent; that is per-item state, not
// an error.
func ReadExposureMeta(path string) ExposureMeta {
	var meta ExposureMeta

	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	ex, err := exif.Decode(f)
	if err != nil {
		log.Debug().Str("file", path).Msg("no EXIF block")
		return meta
	}

	iso, err1 := tagInt(ex, exif.ISOSpeedRatings)
	fnum, err2 := tagRat(ex, exif.FNumber)
	expo, err3 := tagRat(ex, exif.ExposureTime)
	if err1 != nil || err2 != nil || err3 != nil ||
		iso <= 0 || fnum <= 0 || expo <= 0 {
		log.Debug().Str("file", path).Msg("EXIF exposure triple incomplete")
		return meta
	}

	// The FNumber/ExposureTime/ISO triple fully defines the exposure;
	// exposure compensation is informational only.
	meta.HasEV = true
	meta.EV = math.Log2(fnum * fnum * 100.0 / (expo * float64(iso)))
	meta.HasLum = true
	meta.AvgLum = expo * float64(iso) / (fnum * fnum * 12.07488)
	return meta
}

func tagInt(ex *exif.Exif, name exif.FieldName) (int64, error) {
	tag, err := ex.Get(name)
	if err != nil {
		return 0, err
	}
	return tag.Int64(0)
}

func tagRat(ex *exif.Exif, name exif.FieldName) (float64, error) {
	tag, err := ex.Get(name)
	if err != nil {
		return 0, err
	}
	num, denom, err := tag.Rat2(0)
	if err != nil {
		return 0, err
	}
	if denom == 0 {
		return 0, fmt.Errorf("%s: zero denominator", name)
	}
	return float64(num) / float64(denom), nil
}
