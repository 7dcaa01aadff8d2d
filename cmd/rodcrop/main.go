package main

import (
	"flag"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/rodcrop/internal/config"
	"github.com/ironsheep/rodcrop/internal/imaging"
	"github.com/ironsheep/rodcrop/internal/logging"
	"github.com/ironsheep/rodcrop/internal/motion"
	"github.com/ironsheep/rodcrop/internal/opticalflow"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const defaultBoxColor = "#FF3B30"

// options holds the parsed command line.
type options struct {
	configPath string
	inDir      string
	outDir     string
	annotate   bool
	boxColor   color.Color
}

// summary counts per-frame outcomes of one run.
type summary struct {
	Frames   int
	Detected int
	Cropped  int
	Failed   int

	// EmptyCrops counts frames whose crop covered no pixels.
	EmptyCrops int
}

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("rodcrop %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			fmt.Printf("  Flow backend: %s\n", opticalflow.Backend)
			return
		case "--help", "-h", "help":
			printUsage(os.Stdout)
			return
		}
	}

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rodcrop: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rodcrop: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rodcrop: %v\n", err)
		os.Exit(1)
	}

	logger.Debugf("rodcrop %s (built %s, commit %s, backend %s)", Version, BuildTime, GitCommit, opticalflow.Backend)

	sum, err := run(cfg, opts, logger)
	if err != nil {
		logger.WithError(err).Fatal("run failed")
	}
	logger.WithFields(logging.Fields{
		"frames":   sum.Frames,
		"detected": sum.Detected,
		"cropped":  sum.Cropped,
		"failed":   sum.Failed,
		"empty":    sum.EmptyCrops,
	}).Info("done")
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "rodcrop - crop recorded frames around a vertically moving rod")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: rodcrop -in <frames dir> -out <output dir> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -config <file>      JSON configuration file")
	fmt.Fprintln(w, "  -in <dir>           Directory of input frames, read in file name order")
	fmt.Fprintln(w, "  -out <dir>          Directory for output frames (PNG)")
	fmt.Fprintln(w, "  -annotate           Write full frames with the crop outlined instead of crops")
	fmt.Fprintf(w, "  -box-color <hex>    Outline color for -annotate (default %s)\n", defaultBoxColor)
	fmt.Fprintln(w, "  --version, -v       Print version information")
	fmt.Fprintln(w, "  --help, -h          Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintf(w, "  %s=debug    Enable debug logging\n", config.EnvLogLevel)
	fmt.Fprintf(w, "  %s=<file>    Also write logs to a rotating file\n", config.EnvLogFile)
	fmt.Fprintln(w, "  OPTICALFLOW_*                Override any opticalflow setting")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "A .env file in the working directory is loaded before the environment is read.")
}

// parseFlags parses args (without the program name).
func parseFlags(args []string, errOut io.Writer) (*options, error) {
	fs := flag.NewFlagSet("rodcrop", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() { printUsage(errOut) }

	opts := &options{}
	var boxColor string
	fs.StringVar(&opts.configPath, "config", "", "JSON configuration file")
	fs.StringVar(&opts.inDir, "in", "", "directory of input frames")
	fs.StringVar(&opts.outDir, "out", "", "directory for output frames")
	fs.BoolVar(&opts.annotate, "annotate", false, "outline the crop on full frames")
	fs.StringVar(&boxColor, "box-color", defaultBoxColor, "outline color")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.inDir == "" || opts.outDir == "" {
		return nil, errors.New("-in and -out are required")
	}

	c, err := colorful.Hex(boxColor)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid -box-color %q", boxColor)
	}
	opts.boxColor = c
	return opts, nil
}

// run feeds every frame of opts.inDir through one tracker and writes the
// output frames to opts.outDir.
//
// A crop that covers no pixels of the native frame cannot be encoded; the
// uncropped frame is written instead and the frame is counted in
// summary.EmptyCrops. Decode and write errors abort the run.
//
// trackerOpts are applied after the logger option.
func run(cfg *config.Config, opts *options, logger logrus.FieldLogger, trackerOpts ...motion.Option) (summary, error) {
	var sum summary

	src, err := imaging.OpenFrameDir(opts.inDir)
	if err != nil {
		return sum, err
	}

	tracker, err := motion.NewTracker(cfg.OpticalFlow, append([]motion.Option{motion.WithLogger(logger)}, trackerOpts...)...)
	if err != nil {
		return sum, errors.Wrap(err, "create tracker")
	}
	log := logger.WithField("stream", tracker.ID().String())
	log.WithFields(logging.Fields{"frames": src.Len(), "in": opts.inDir}).Info("processing frames")

	for {
		path, frame, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, err
		}
		sum.Frames++

		res := tracker.Track(frame)
		switch {
		case res.Err != nil:
			sum.Failed++
		case res.Detected:
			sum.Detected++
		}
		entry := log.WithField("frame", filepath.Base(path))
		entry.Debug(res.String())

		out := res.Frame
		if res.Cropped {
			if out.Bounds().Empty() {
				entry.WithField("bounds", res.Bounds).Warn("crop is empty, writing uncropped frame")
				sum.EmptyCrops++
				out = frame
			} else {
				sum.Cropped++
			}
		}
		if opts.annotate {
			out = frame
			if res.Cropped {
				out = imaging.DrawBounds(frame, res.Bounds.Rect(), opts.boxColor, 2)
			}
		}
		if err := imaging.SaveFrame(out, outputPath(opts.outDir, path)); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// outputPath maps an input frame path to a PNG of the same base name in dir.
func outputPath(dir, in string) string {
	base := filepath.Base(in)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".png")
}
