package align

import (
	"errors"
	"image"
	"testing"
)

func TestParseOffsets(t *testing.T) {
	out := []byte("aligner v1.2 starting\n1 -3 2\n0 0 0\n2 10 -7\ndone in 0.4s\n")
	offsets, err := ParseOffsets(out, 3)
	if err != nil {
		t.Fatalf("ParseOffsets: %v", err)
	}
	want := []image.Point{{0, 0}, {-3, 2}, {10, -7}}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offsets[%d] = %v, want %v", i, offsets[i], want[i])
		}
	}
}

func TestParseOffsetsErrors(t *testing.T) {
	cases := []struct {
		name string
		out  string
	}{
		{"missing item", "0 0 0\n"},
		{"repeated item", "0 0 0\n1 1 1\n1 2 2\n"},
		{"index out of range", "0 0 0\n5 1 1\n"},
	}
	for _, c := range cases {
		if _, err := ParseOffsets([]byte(c.out), 2); err == nil {
			t.Errorf("%s: parse succeeded, want error", c.name)
		}
	}
}

func TestProcessErrorUnwrap(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &ProcessError{Tool: "align_image_stack", Err: inner, Output: "boom"}
	if !errors.Is(err, inner) {
		t.Error("ProcessError should unwrap to the underlying error")
	}
}
