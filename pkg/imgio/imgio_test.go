package imgio

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"hdrfuse/pkg/pfs"
)

func rampFrame(w, h int) *pfs.Frame {
	f := pfs.NewFrame(w, h)
	xc, yc, zc := f.CreateXYZChannels()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float32(x+y*w) / float32(w*h)
			xc.Set(x, y, v)
			yc.Set(x, y, v/2)
			zc.Set(x, y, 1-v)
		}
	}
	return f
}

func TestTIFFRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.tiff")
	src := rampFrame(16, 8)

	if err := WriteTIFF(src, path, WriteParams{Compression: "deflate"}); err != nil {
		t.Fatalf("WriteTIFF: %v", err)
	}

	res, err := FileReader{}.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if res.BitDepth != 16 {
		t.Errorf("BitDepth = %d, want 16", res.BitDepth)
	}
	if res.Meta.HasEV || res.Meta.HasLum {
		t.Error("a bare TIFF should carry no exposure metadata")
	}
	if res.Frame.Width() != 16 || res.Frame.Height() != 8 {
		t.Fatalf("frame is %dx%d, want 16x8", res.Frame.Width(), res.Frame.Height())
	}

	sx, _, _ := src.XYZChannels()
	rx, _, _ := res.Frame.XYZChannels()
	for _, p := range [][2]int{{0, 0}, {5, 3}, {15, 7}} {
		want := float64(sx.Get(p[0], p[1]))
		got := float64(rx.Get(p[0], p[1]))
		// One quantization step at 16 bits.
		if math.Abs(got-want) > 1.0/65535.0+1e-9 {
			t.Errorf("(%d,%d): %v, want %v", p[0], p[1], got, want)
		}
	}
}

func TestWritePNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.png")
	if err := WritePNG(ImageFromFrame(rampFrame(8, 8)), path); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		t.Errorf("png not written: %v", err)
	}
}

func TestWriteRGBE(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.hdr")
	if err := WriteRGBE(rampFrame(8, 8), path); err != nil {
		t.Fatalf("WriteRGBE: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || len(b) == 0 {
		t.Fatalf("hdr not written: %v", err)
	}
}

func TestMakePreview(t *testing.T) {
	img := ImageFromFrame(rampFrame(200, 100))
	p := MakePreview(img, 50)
	if p.Bounds().Dx() != 50 || p.Bounds().Dy() != 25 {
		t.Errorf("preview is %v, want 50x25", p.Bounds())
	}

	// Already small images pass through unscaled.
	small := ImageFromFrame(rampFrame(20, 10))
	q := MakePreview(small, 50)
	if q.Bounds().Dx() != 20 || q.Bounds().Dy() != 10 {
		t.Errorf("small preview is %v, want 20x10", q.Bounds())
	}
}

func TestHDRImageAdapter(t *testing.T) {
	f := rampFrame(4, 4)
	img := NewHDRImage(f)
	if img.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Errorf("bounds = %v", img.Bounds())
	}
	r, _, _, _ := img.HDRAt(2, 2).HDRRGBA()
	xc, _, _ := f.XYZChannels()
	if math.Abs(r-float64(xc.Get(2, 2))) > 1e-6 {
		t.Errorf("HDRAt red = %v, want %v", r, xc.Get(2, 2))
	}
}

func TestCopyExifWithoutSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.tiff")
	if err := WriteTIFF(rampFrame(4, 4), src, WriteParams{}); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "dst.tiff")
	// No EXIF in the source is not an error, and no sidecar appears.
	if err := CopyExif(src, dst); err != nil {
		t.Errorf("CopyExif: %v", err)
	}
	if _, err := os.Stat(dst + ".exif"); err == nil {
		t.Error("sidecar written despite missing EXIF")
	}
}
