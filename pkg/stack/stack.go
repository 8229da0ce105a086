package stack

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"hdrfuse/pkg/align"
	"hdrfuse/pkg/fusion"
	"hdrfuse/pkg/imgio"
	"hdrfuse/pkg/pfs"
	"hdrfuse/pkg/taskgroup"
)

// ErrSizeMismatch means committed exposures differ in pixel
// dimensions. The whole set is cleared when this is raised; a
// partially mismatched set is never retained.
var ErrSizeMismatch = errors.New("exposures in the set have different pixel sizes")

// A LoadError reports one file that failed to decode. A single
// LoadError fails the whole pending batch.
type LoadError struct {
	Filename string
	Err      error
}

func (e *LoadError) Error() string { return fmt.Sprintf("loading %s: %v", e.Filename, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// A Stack is the ordered set of exposures being merged. The stack
// exclusively owns its committed items: loads stage into a private
// buffer and commit at a single point, and nothing may mutate the set
// while fusion or reconstruction is reading it.
type Stack struct {
	Config  Config
	Reader  imgio.Reader
	Workers int // parallel loads; 0 means one per CPU

	items    []*Item
	evOffset float64
	response *fusion.ResponseCurve // non-nil once a calibration file is loaded
}

func New(cfg Config) *Stack {
	return &Stack{Config: cfg, Reader: imgio.FileReader{}}
}

func (s *Stack) Len() int          { return len(s.items) }
func (s *Stack) Item(i int) *Item  { return s.items[i] }
func (s *Stack) Items() []*Item    { return s.items }
func (s *Stack) EVOffset() float64 { return s.evOffset }

// Frames returns the items' frames in set order.
func (s *Stack) Frames() []*pfs.Frame {
	out := make([]*pfs.Frame, len(s.items))
	for i, it := range s.items {
		out[i] = it.Frame
	}
	return out
}

// Filenames returns the items' load paths in set order.
func (s *Stack) Filenames() []string {
	out := make([]string, len(s.items))
	for i, it := range s.items {
		out[i] = it.Filename
	}
	return out
}

// LoadFiles decodes the given paths concurrently and commits them to
// the set in the order given (not completion order), skipping paths
// already present. Any single failure, or cancellation, discards the
// whole staged batch; previously committed items are untouched. After
// a successful commit the EV offset is recomputed and the set-wide
// size invariant is enforced: on mismatch the entire set is cleared
// and ErrSizeMismatch returned.
func (s *Stack) LoadFiles(ctx context.Context, paths []string, progress *taskgroup.Progress) error {
	var fresh []string
	staged := make(map[string]bool, len(paths))
	for _, p := range paths {
		if s.indexOf(p) >= 0 || staged[p] {
			log.Debug().Str("file", p).Msg("already loaded, skipping")
			continue
		}
		staged[p] = true
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return nil
	}

	// Private staging buffer; committed only below, at one point.
	staging := make([]*Item, len(fresh))
	var done atomic.Int32

	err := taskgroup.Run(ctx, len(fresh), s.Workers, func(ctx context.Context, i int) error {
		res, err := s.Reader.Read(fresh[i])
		if err != nil {
			return &LoadError{Filename: fresh[i], Err: err}
		}
		staging[i] = newItem(fresh[i], res)
		progress.Report(int(done.Add(1)) * 100 / len(fresh))
		return nil
	})
	if err != nil {
		return err // staged results dropped wholesale
	}

	// A configured calibration curve loads against the batch's bit
	// depth; a malformed file aborts the pending batch without
	// touching committed items.
	if s.Config.ResponseCurveIn != "" && s.response == nil {
		rc, err := fusion.LoadResponseCurve(s.Config.ResponseCurveIn, staging[0].BitDepth)
		if err != nil {
			return err
		}
		s.response = rc
	}

	for _, it := range staging {
		if it.IsValid() {
			s.items = append(s.items, it)
		}
	}
	s.refreshEVOffset()

	if !s.framesHaveSameSize() {
		s.items = nil
		s.refreshEVOffset()
		return ErrSizeMismatch
	}

	log.Info().Int("items", len(s.items)).Float64("ev_offset", s.evOffset).Msg("exposures loaded")
	return nil
}

func (s *Stack) indexOf(path string) int {
	for i, it := range s.items {
		if it.Filename == path {
			return i
		}
	}
	return -1
}

func (s *Stack) framesHaveSameSize() bool {
	if len(s.items) < 2 {
		return true
	}
	w, h := s.items[0].Frame.Width(), s.items[0].Frame.Height()
	for _, it := range s.items[1:] {
		if it.Frame.Width() != w || it.Frame.Height() != h {
			return false
		}
	}
	return true
}

// refreshEVOffset recomputes the normalization offset: the lower
// median of the defined exposure values. Anchoring fusion to the
// mid exposure keeps the result stable against outliers and against
// whatever EV origin the camera used.
func (s *Stack) refreshEVOffset() {
	var evs []float64
	for _, it := range s.items {
		if it.HasEV {
			evs = append(evs, it.EV)
		}
	}
	switch len(evs) {
	case 0:
		s.evOffset = 0
	case 1:
		s.evOffset = evs[0]
	default:
		sort.Float64s(evs)
		s.evOffset = evs[(len(evs)+1)/2-1]
	}
}

// RemoveFile drops the item at idx and recomputes the EV offset.
func (s *Stack) RemoveFile(idx int) {
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.refreshEVOffset()
}

// Clear empties the set.
func (s *Stack) Clear() {
	s.items = nil
	s.refreshEVOffset()
}

// Reset returns the stack to its just-constructed state: committed
// items and any loaded calibration curve are dropped. In-flight loads
// are stopped by canceling the context passed to LoadFiles; their
// staged results never commit.
func (s *Stack) Reset() {
	s.Clear()
	s.response = nil
}

// FilesWithoutExif lists items that carry no average luminance, for
// the caller to warn about.
func (s *Stack) FilesWithoutExif() []string {
	var out []string
	for _, it := range s.items {
		if !it.HasLum {
			out = append(out, it.Filename)
		}
	}
	return out
}

// EVs returns each item's exposure value, NaN where undefined.
func (s *Stack) EVs() []float64 {
	out := make([]float64, len(s.items))
	for i, it := range s.items {
		if it.HasEV {
			out[i] = it.EV
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// ApplyShifts translates every item's frame and preview by its
// (dx, dy). Border pixels shifted outside the frame are dropped and
// exposed pixels zero-filled; only the region common to all exposures
// matters downstream.
func (s *Stack) ApplyShifts(offsets []image.Point) {
	for i, it := range s.items {
		if i >= len(offsets) || offsets[i] == (image.Point{}) {
			continue
		}
		it.Frame = pfs.Shift(it.Frame, offsets[i].X, offsets[i].Y)
		if it.Preview != nil {
			// Offsets are in frame pixels; scale down to the preview.
			pdx := offsets[i].X * it.Preview.Bounds().Dx() / it.Frame.Width()
			pdy := offsets[i].Y * it.Preview.Bounds().Dy() / it.Frame.Height()
			it.Preview = imgio.ShiftPreview(it.Preview, pdx, pdy)
		}
	}
}

// Crop cuts every item's frame to r (inclusive-exclusive corners) and
// scales the crop onto each preview. The rectangle must be inside
// every frame.
func (s *Stack) Crop(r image.Rectangle) error {
	for _, it := range s.items {
		f := it.Frame
		if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > f.Width() || r.Max.Y > f.Height() {
			return fmt.Errorf("crop %v outside %s", r, it.Filename)
		}
	}
	for _, it := range s.items {
		cropped, err := pfs.Cut(it.Frame, r)
		if err != nil {
			return err
		}
		it.Frame = cropped
		if it.Preview != nil {
			// Regenerate rather than scale the old preview; crops can
			// change the aspect ratio.
			max := it.Preview.Bounds().Dx()
			if dy := it.Preview.Bounds().Dy(); dy > max {
				max = dy
			}
			it.Preview = imgio.MakePreview(imgio.ImageFromFrame(it.Frame), max)
		}
	}
	return nil
}

// Align runs the chosen strategy and returns per-item offsets, ready
// for ApplyShifts.
func (s *Stack) Align(ctx context.Context, aligner align.Aligner) ([]image.Point, error) {
	return aligner.Align(ctx, s.Frames())
}

// Fuse normalizes each exposure by 2^(ev - evOffset) and runs the
// configured fusion operator, producing the linear radiance frame.
// If a response-curve output path is configured, the curve used is
// persisted afterwards.
func (s *Stack) Fuse() (*pfs.Frame, error) {
	if len(s.items) == 0 {
		return nil, errors.New("no exposures to fuse")
	}

	rc := s.response
	if rc == nil {
		var err error
		rc, err = fusion.NewResponseCurve(s.Config.ResponseCurve, s.items[0].BitDepth)
		if err != nil {
			return nil, err
		}
	}
	wf, err := fusion.NewWeightFunction(s.Config.WeightFunction, s.items[0].BitDepth)
	if err != nil {
		return nil, err
	}

	exps := make([]fusion.Exposure, len(s.items))
	for i, it := range s.items {
		scale := 1.0
		if it.HasEV {
			scale = math.Exp2(it.EV - s.evOffset)
		}
		exps[i] = fusion.Exposure{Frame: it.Frame, Scale: scale}
	}

	out, err := fusion.Fuse(exps, rc, wf, s.Config.FusionOperator)
	if err != nil {
		return nil, err
	}

	if s.Config.ResponseCurveOut != "" {
		if err := rc.Save(s.Config.ResponseCurveOut); err != nil {
			log.Warn().Err(err).Msg("response curve not persisted")
		}
	}
	return out, nil
}

// SaveImages writes each item as prefix_<i>.tiff and runs the
// metadata copy step per written file. The written paths are
// returned, e.g. to hand to the external aligner.
func (s *Stack) SaveImages(prefix string, params imgio.WriteParams) ([]string, error) {
	paths := make([]string, 0, len(s.items))
	for i, it := range s.items {
		path := fmt.Sprintf("%s_%d.tiff", prefix, i)
		if err := imgio.WriteTIFF(it.Frame, path, params); err != nil {
			return nil, err
		}
		if err := imgio.CopyExif(it.Filename, path); err != nil {
			log.Warn().Err(err).Msg("exif copy failed")
		}
		paths = append(paths, path)
	}
	return paths, nil
}
