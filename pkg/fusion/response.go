// Package fusion combines a set of EV-normalized exposures into one
// linear radiance frame: a response curve maps code values to linear
// irradiance, a weight function says how trustworthy each code value
// is, and a fusion operator blends the per-exposure samples.
package fusion

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"
)

// Response curve kinds.
const (
	ResponseLinear = "linear"
	ResponseGamma  = "gamma"
)

const responseGamma = 2.2

// A ResponseCurve maps raw code values (0 .. 2^bitDepth-1) to linear
// irradiance in [0,1]. It is sampled once up front, so lookups during
// fusion are just an index.
type ResponseCurve struct {
	Kind     string
	BitDepth int
	samples  []float64
}

// A ResponseCurveLoadError reports a calibration file that could not
// be used. It aborts the pending load batch, never a fusion call.
type ResponseCurveLoadError struct {
	Path   string
	Reason string
}

func (e *ResponseCurveLoadError) Error() string {
	return fmt.Sprintf("response curve %s: %s", e.Path, e.Reason)
}

// NewResponseCurve builds one of the analytic curves for the given
// bit depth.
func NewResponseCurve(kind string, bitDepth int) (*ResponseCurve, error) {
	n := 1 << bitDepth
	rc := &ResponseCurve{Kind: kind, BitDepth: bitDepth, samples: make([]float64, n)}
	max := float64(n - 1)

	switch kind {
	case ResponseLinear:
		for i := range rc.samples {
			rc.samples[i] = float64(i) / max
		}
	case ResponseGamma:
		for i := range rc.samples {
			rc.samples[i] = math.Pow(float64(i)/max, responseGamma)
		}
	default:
		return nil, fmt.Errorf("no response curve named %q", kind)
	}
	return rc, nil
}

// At returns the linear irradiance for a code value.
func (rc *ResponseCurve) At(code int) float64 {
	if code < 0 {
		code = 0
	}
	if code >= len(rc.samples) {
		code = len(rc.samples) - 1
	}
	return rc.samples[code]
}

// MaxCode is the largest representable code value.
func (rc *ResponseCurve) MaxCode() int { return len(rc.samples) - 1 }

// LoadResponseCurve reads a persisted calibration curve. The file is
// implicitly keyed by bit depth: its sample count must be exactly
// 2^bitDepth.
func LoadResponseCurve(path string, bitDepth int) (*ResponseCurve, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResponseCurveLoadError{Path: path, Reason: err.Error()}
	}
	defer f.Close()

	want := 1 << bitDepth
	rc := &ResponseCurve{Kind: "file", BitDepth: bitDepth}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 64*1024)
	n := -1
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if n < 0 {
			if _, err := fmt.Sscanf(line, "%d", &n); err != nil {
				return nil, &ResponseCurveLoadError{Path: path, Reason: "malformed sample count: " + line}
			}
			if n != want {
				return nil, &ResponseCurveLoadError{
					Path:   path,
					Reason: fmt.Sprintf("curve has %d samples, bit depth %d needs %d", n, bitDepth, want),
				}
			}
			rc.samples = make([]float64, 0, n)
			continue
		}
		var idx int
		var val float64
		if _, err := fmt.Sscanf(line, "%d %g", &idx, &val); err != nil {
			return nil, &ResponseCurveLoadError{Path: path, Reason: "malformed sample: " + line}
		}
		if idx != len(rc.samples) {
			return nil, &ResponseCurveLoadError{Path: path, Reason: fmt.Sprintf("sample %d out of order", idx)}
		}
		rc.samples = append(rc.samples, val)
	}
	if err := sc.Err(); err != nil {
		return nil, &ResponseCurveLoadError{Path: path, Reason: err.Error()}
	}
	if n < 0 || len(rc.samples) != n {
		return nil, &ResponseCurveLoadError{
			Path:   path,
			Reason: fmt.Sprintf("expected %d samples, got %d", n, len(rc.samples)),
		}
	}
	return rc, nil
}

// Save persists the curve in the format LoadResponseCurve reads.
func (rc *ResponseCurve) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("response curve save: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# hdrfuse response curve, kind %s, bit depth %d\n", rc.Kind, rc.BitDepth)
	fmt.Fprintf(w, "%d\n", len(rc.samples))
	for i, v := range rc.samples {
		fmt.Fprintf(w, "%d %g\n", i, v)
	}
	return w.Flush()
}
