package fusion

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestResponseLinear(t *testing.T) {
	rc, err := NewResponseCurve(ResponseLinear, 8)
	if err != nil {
		t.Fatalf("NewResponseCurve: %v", err)
	}
	if rc.MaxCode() != 255 {
		t.Fatalf("MaxCode = %d, want 255", rc.MaxCode())
	}
	if rc.At(0) != 0 || rc.At(255) != 1 {
		t.Errorf("endpoints = %v, %v, want 0, 1", rc.At(0), rc.At(255))
	}
	if got := rc.At(128); math.Abs(got-128.0/255.0) > 1e-12 {
		t.Errorf("At(128) = %v", got)
	}
	// Out of range codes clamp.
	if rc.At(-5) != 0 || rc.At(999) != 1 {
		t.Error("out of range codes should clamp to the endpoints")
	}
}

func TestResponseGamma(t *testing.T) {
	rc, err := NewResponseCurve(ResponseGamma, 8)
	if err != nil {
		t.Fatalf("NewResponseCurve: %v", err)
	}
	want := math.Pow(100.0/255.0, 2.2)
	if got := rc.At(100); math.Abs(got-want) > 1e-12 {
		t.Errorf("At(100) = %v, want %v", got, want)
	}
}

func TestResponseUnknownKind(t *testing.T) {
	if _, err := NewResponseCurve("sigmoid", 8); err == nil {
		t.Error("unknown curve kind should error")
	}
}

func TestResponseSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curve.m")

	rc, _ := NewResponseCurve(ResponseGamma, 8)
	if err := rc.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadResponseCurve(path, 8)
	if err != nil {
		t.Fatalf("LoadResponseCurve: %v", err)
	}
	for code := 0; code <= 255; code += 17 {
		if math.Abs(got.At(code)-rc.At(code)) > 1e-9 {
			t.Fatalf("At(%d) = %v, want %v", code, got.At(code), rc.At(code))
		}
	}
}

func TestResponseLoadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	cases := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.m")},
		{"bad count", write("badcount.m", "# c\nfour\n")},
		{"wrong depth", write("depth.m", "16\n0 0\n")},
		{"bad sample", write("badsample.m", "4\n0 zero\n")},
		{"out of order", write("order.m", "4\n0 0\n2 0.5\n")},
		{"truncated", write("short.m", "4\n0 0\n1 0.25\n")},
	}
	for _, c := range cases {
		_, err := LoadResponseCurve(c.path, 2)
		if err == nil {
			t.Errorf("%s: load succeeded, want error", c.name)
			continue
		}
		var lerr *ResponseCurveLoadError
		if !errors.As(err, &lerr) {
			t.Errorf("%s: error %T is not a ResponseCurveLoadError", c.name, err)
		}
	}
}

func TestResponseLoadSkipsComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.m")
	body := "# comment\n\n4\n# another\n0 0\n1 0.25\n2 0.5\n3 1\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	rc, err := LoadResponseCurve(path, 2)
	if err != nil {
		t.Fatalf("LoadResponseCurve: %v", err)
	}
	if rc.At(2) != 0.5 {
		t.Errorf("At(2) = %v, want 0.5", rc.At(2))
	}
}
