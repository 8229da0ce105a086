package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/tiff"

	"hdrfuse/pkg/align"
	"hdrfuse/pkg/fusion"
	"hdrfuse/pkg/ghost"
	"hdrfuse/pkg/imgio"
	"hdrfuse/pkg/pfs"
	"hdrfuse/pkg/stack"
	"hdrfuse/pkg/taskgroup"
	"hdrfuse/pkg/tonemap"
)

var (
	fConfig    string
	fVerbosity int
	fOutput    string

	fWeight      string
	fResponse    string
	fOperator    string
	fResponseIn  string
	fResponseOut string

	fAligner     string
	fAlignerExe  string
	fAlignerCrop bool

	fDeghost   bool
	fThreshold float64
	fMask      string

	fTonemapper string
)

func init() {
	flag.StringVar(&fConfig, "config", "", "YAML config file, flags override it")
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fOutput, "o", "fused", "output prefix, writes <prefix>.hdr")

	flag.StringVar(&fWeight, "weight", fusion.WeightTriangular, "weight function: triangular, plateau or gaussian")
	flag.StringVar(&fResponse, "response", fusion.ResponseLinear, "response curve: linear or gamma")
	flag.StringVar(&fOperator, "operator", fusion.OperatorDebevec, "fusion operator")
	flag.StringVar(&fResponseIn, "responsein", "", "load a measured response curve from this file")
	flag.StringVar(&fResponseOut, "responseout", "", "save the response curve used to this file")

	flag.StringVar(&fAligner, "align", "mtb", "alignment: mtb, external or none")
	flag.StringVar(&fAlignerExe, "alignexe", "align_image_stack", "external aligner executable")
	flag.BoolVar(&fAlignerCrop, "aligncrop", false, "ask the external aligner to crop to the common area")

	flag.BoolVar(&fDeghost, "deghost", false, "detect moving subjects and rebuild those regions")
	flag.Float64Var(&fThreshold, "threshold", 0.5, "ghost detection threshold, in standard deviations")
	flag.StringVar(&fMask, "mask", "", "grayscale mask image marking ghosted pixels, overrides detection")

	flag.StringVar(&fTonemapper, "tonemapper", "", "also write a tone mapped PNG: "+tonemap.List())
}

func main() {
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if fVerbosity > 0 {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] exposure1.tiff exposure2.tiff ...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := stack.NewConfig()
	if fConfig != "" {
		var err error
		if cfg, err = stack.LoadConfig(fConfig); err != nil {
			log.Fatal().Err(err).Msg("bad config")
		}
	}
	applyFlags(&cfg)

	if cfg.Verbosity > 0 {
		log.Debug().Msgf("configuration:\n%s", cfg.AsYaml())
		fusion.CollectHistograms = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, flag.Args()); err != nil {
		if ctx.Err() != nil {
			log.Warn().Msg("interrupted")
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("failed")
	}
}

// applyFlags copies only the flags given on the command line over the
// config, so a config file still wins for flags left at defaults.
func applyFlags(cfg *stack.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			cfg.Verbosity = fVerbosity
		case "weight":
			cfg.WeightFunction = fWeight
		case "response":
			cfg.ResponseCurve = fResponse
		case "operator":
			cfg.FusionOperator = fOperator
		case "responsein":
			cfg.ResponseCurveIn = fResponseIn
		case "responseout":
			cfg.ResponseCurveOut = fResponseOut
		case "align":
			cfg.Aligner = fAligner
		case "alignexe":
			cfg.AlignerExe = fAlignerExe
		case "aligncrop":
			cfg.AlignerCrop = fAlignerCrop
		case "tonemapper":
			cfg.Tonemapper = fTonemapper
		}
	})
}

func run(ctx context.Context, cfg stack.Config, files []string) error {
	s := stack.New(cfg)

	loadProgress := taskgroup.NewProgress(func(pct int) {
		log.Debug().Int("pct", pct).Msg("load progress")
	})

	if err := s.LoadFiles(ctx, files, loadProgress); err != nil {
		return err
	}
	for _, f := range s.FilesWithoutExif() {
		log.Warn().Str("file", f).Msg("no usable EXIF, exposure treated as EV 0")
	}

	offsets, err := alignStack(ctx, s)
	if err != nil {
		return err
	}
	s.ApplyShifts(offsets)

	fused, err := s.Fuse()
	if err != nil {
		return err
	}

	if cfg.Verbosity > 0 && fusion.CollectHistograms {
		for i, h := range fusion.Hists {
			log.Debug().Msgf("exposure %d radiance histogram: %v", i, h)
		}
	}

	if fDeghost || fMask != "" {
		// Progress is strictly increasing, so the reconstruction pipeline
		// gets its own tracker rather than reusing the saturated load one.
		recon := taskgroup.NewProgress(func(pct int) {
			log.Debug().Int("pct", pct).Msg("deghost progress")
		})
		recon.Report(20)
		fused, err = deghostStack(ctx, s, fused, recon)
		if err != nil {
			return err
		}
	}

	out := fOutput + ".hdr"
	if err := imgio.WriteRGBE(fused, out); err != nil {
		return err
	}
	log.Info().Str("file", out).Msg("radiance map written")

	if cfg.Tonemapper != "" && cfg.Tonemapper != "none" {
		img, err := tonemap.Perform(fused, cfg.Tonemapper)
		if err != nil {
			return err
		}
		ldr := fmt.Sprintf("%s-%s.png", fOutput, cfg.Tonemapper)
		if err := imgio.WritePNG(img, ldr); err != nil {
			return err
		}
		log.Info().Str("file", ldr).Msg("tone mapped image written")
	}
	return nil
}

func alignStack(ctx context.Context, s *stack.Stack) ([]image.Point, error) {
	switch s.Config.Aligner {
	case "", "none":
		return make([]image.Point, s.Len()), nil

	case "mtb":
		return s.Align(ctx, &align.MTB{})

	case "external":
		dir, err := os.MkdirTemp("", "hdrfuse")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
		paths, err := s.SaveImages(filepath.Join(dir, "exp"), imgio.WriteParams{Compression: "deflate"})
		if err != nil {
			return nil, err
		}
		ext := &align.External{
			Exe:   s.Config.AlignerExe,
			Args:  s.Config.AlignerArgs,
			Crop:  s.Config.AlignerCrop,
			Files: paths,
		}
		defer ext.Cleanup()
		return s.Align(ctx, ext)
	}
	return nil, fmt.Errorf("aligner %q not recognized, want mtb, external or none", s.Config.Aligner)
}

func deghostStack(ctx context.Context, s *stack.Stack, fused *pfs.Frame, progress *taskgroup.Progress) (*pfs.Frame, error) {
	var opt ghost.Options
	refIdx := 0

	if fMask != "" {
		m, err := loadMask(fMask, fused.Width(), fused.Height())
		if err != nil {
			return nil, err
		}
		opt.Mask = m
	} else {
		// Frames are already shifted into alignment, so detection
		// runs with zero relative offsets.
		det, err := ghost.ComputePatches(s.Items(), nil, fThreshold)
		if err != nil {
			return nil, err
		}
		refIdx = det.Reference
		opt.Grid = &det.Grid
		if s.Config.Verbosity > 0 {
			if err := det.DebugPNG(fused.Width(), fused.Height(), fOutput+"-grid.png"); err != nil {
				log.Warn().Err(err).Msg("grid render failed")
			}
		}
	}

	return ghost.Deghost(ctx, fused, s.Item(refIdx).Frame, opt, progress)
}

// loadMask reads a grayscale image into a mask array, normalizing
// luma to 0..1.
func loadMask(path string, w, h int) (*pfs.Array2D, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("mask decode %s: %w", path, err)
	}
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return nil, fmt.Errorf("mask is %dx%d, exposures are %dx%d", b.Dx(), b.Dy(), w, h)
	}
	m := pfs.NewArray2D(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum := (54*r + 183*g + 19*bb) >> 8
			m.Set(x, y, float32(lum)/65535.0)
		}
	}
	return m, nil
}
