package pfs

import (
	"image"
	"testing"
)

func TestFrameChannels(t *testing.T) {
	f := NewFrame(3, 2)

	if x, y, z := f.XYZChannels(); x != nil || y != nil || z != nil {
		t.Fatal("XYZChannels on empty frame should be all nil")
	}

	a := f.CreateChannel(ChanX)
	if b := f.CreateChannel(ChanX); b != a {
		t.Error("CreateChannel on existing name should return the existing channel")
	}
	if f.Channel(ChanX) != a {
		t.Error("Channel lookup does not return the created channel")
	}

	f.CreateXYZChannels()
	x, y, z := f.XYZChannels()
	if x == nil || y == nil || z == nil {
		t.Fatal("XYZChannels after CreateXYZChannels should be non-nil")
	}
	if x != a {
		t.Error("CreateXYZChannels replaced the existing X channel")
	}
	_ = y
	_ = z

	f.RemoveChannel(ChanY)
	if xx, yy, zz := f.XYZChannels(); xx != nil || yy != nil || zz != nil {
		t.Error("XYZChannels should be all-or-nothing after removing Y")
	}
}

func TestFrameTags(t *testing.T) {
	f := NewFrame(1, 1)
	f.SetTag("FILE_NAME", "a.tiff")
	if f.Tag("FILE_NAME") != "a.tiff" {
		t.Error("tag roundtrip failed")
	}

	g := f.Clone()
	g.SetTag("FILE_NAME", "b.tiff")
	if f.Tag("FILE_NAME") != "a.tiff" {
		t.Error("clone shares tag map with original")
	}
}

func TestShift(t *testing.T) {
	f := NewFrame(3, 3)
	x, _, _ := f.CreateXYZChannels()
	x.Set(0, 0, 1)

	g := Shift(f, 1, 2)
	gx, _, _ := g.XYZChannels()
	if got := gx.Get(1, 2); got != 1 {
		t.Errorf("shifted pixel = %v, want 1", got)
	}
	if got := gx.Get(0, 0); got != 0 {
		t.Errorf("vacated pixel = %v, want 0", got)
	}
}

func TestCut(t *testing.T) {
	f := NewFrame(4, 4)
	x, _, _ := f.CreateXYZChannels()
	x.Set(2, 3, 5)

	g, err := Cut(f, image.Rect(1, 1, 4, 4))
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	if g.Width() != 3 || g.Height() != 3 {
		t.Fatalf("cut frame is %dx%d, want 3x3", g.Width(), g.Height())
	}
	gx, _, _ := g.XYZChannels()
	if got := gx.Get(1, 2); got != 5 {
		t.Errorf("cut pixel = %v, want 5", got)
	}

	if _, err := Cut(f, image.Rect(2, 2, 6, 6)); err == nil {
		t.Error("cut outside the frame should error")
	}
}
