package align

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"hdrfuse/pkg/pfs"
)

// A ProcessError is a terminal failure of the external alignment
// tool. It is surfaced distinctly from load errors so a caller can
// offer retry or fall back to the MTB strategy.
type ProcessError struct {
	Tool   string
	Err    error
	Output string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("alignment process %s: %v", e.Tool, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// External delegates alignment to an executable. The tool is handed
// the exposure files (plus a crop flag) and must emit one line per
// item on stdout: "index dx dy", integer pixel offsets relative to
// item 0. Anything else it prints is ignored.
type External struct {
	Exe   string
	Args  []string
	Crop  bool     // ask the tool to compute a common crop
	Files []string // the exposure files, in set order

	tempFiles []string
}

// AddTempFile registers an artifact to delete in Cleanup.
func (a *External) AddTempFile(path string) { a.tempFiles = append(a.tempFiles, path) }

// Cleanup removes the temporary artifacts of the last run.
func (a *External) Cleanup() {
	for _, f := range a.tempFiles {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			log.Warn().Str("file", f).Err(err).Msg("aligner temp file not removed")
		}
	}
	a.tempFiles = nil
}

func (a *External) Align(ctx context.Context, frames []*pfs.Frame) ([]image.Point, error) {
	args := append([]string{}, a.Args...)
	if a.Crop {
		args = append(args, "-C")
	}
	args = append(args, a.Files...)

	cmd := exec.CommandContext(ctx, a.Exe, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Info().Str("exe", a.Exe).Int("files", len(a.Files)).Msg("spawning external aligner")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProcessError{Tool: a.Exe, Err: err, Output: stderr.String()}
	}

	offsets, err := ParseOffsets(stdout.Bytes(), len(a.Files))
	if err != nil {
		return nil, &ProcessError{Tool: a.Exe, Err: err, Output: stdout.String()}
	}
	return offsets, nil
}

// ParseOffsets extracts n "index dx dy" lines from aligner output.
// Every index in [0,n) must appear exactly once.
func ParseOffsets(out []byte, n int) ([]image.Point, error) {
	offsets := make([]image.Point, n)
	seen := make([]bool, n)

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		var idx, dx, dy int
		if _, err := fmt.Sscanf(line, "%d %d %d", &idx, &dx, &dy); err != nil {
			continue
		}
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("offset index %d out of range [0,%d)", idx, n)
		}
		if seen[idx] {
			return nil, fmt.Errorf("offset index %d repeated", idx)
		}
		seen[idx] = true
		offsets[idx] = image.Pt(dx, dy)
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("no offset reported for item %d", i)
		}
	}
	return offsets, nil
}
