package main

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/evimo/align"
	"go.viam.com/evimo/annotation"
	"go.viam.com/evimo/backproject"
	"go.viam.com/evimo/calibration"
	"go.viam.com/evimo/config"
	"go.viam.com/evimo/dataset"
	"go.viam.com/evimo/groundtruth"
	"go.viam.com/evimo/rimage"
	"go.viam.com/evimo/ros"
)

// options reads the configuration file, if any, and applies the command line overrides.
func options(c *cli.Context) (config.Options, error) {
	opts := config.Default()
	if fn := c.String(flagConfig); fn != "" {
		var err error
		if opts, err = config.Read(fn); err != nil {
			return config.Options{}, err
		}
	}
	if folder := c.String(flagFolder); folder != "" {
		opts.Folder = folder
	} else if c.Args().Present() {
		opts.Folder = c.Args().First()
	}

	if c.IsSet(flagFPS) {
		opts.FPS = c.Float64(flagFPS)
	}
	if c.IsSet(flagSliceWidth) {
		opts.SliceWidth = c.Float64(flagSliceWidth)
	}
	if c.IsSet(flagStartTS) {
		opts.StartTS = c.Float64(flagStartTS)
	}
	if c.IsSet(flagWithImages) {
		opts.WithImages = c.Bool(flagWithImages)
	}
	if c.IsSet(flagNoBackground) {
		opts.NoBackground = c.Bool(flagNoBackground)
	}
	if c.IsSet(flagNumbering) {
		opts.Numbering = config.Numbering(c.String(flagNumbering))
	}

	if c.IsSet(flagTimestamp) {
		opts.Refine.Timestamp = c.Float64(flagTimestamp)
	}
	if c.IsSet(flagWindow) {
		opts.Refine.Window = c.Float64(flagWindow)
	}
	if c.IsSet(flagFramerate) {
		opts.Refine.Framerate = c.Float64(flagFramerate)
	}
	if c.IsSet(flagSteps) {
		opts.Refine.Steps = c.Int(flagSteps)
	}
	if c.IsSet(flagDumpClouds) {
		opts.Refine.DumpClouds = c.Bool(flagDumpClouds)
	}
	return opts, opts.Validate()
}

// openSequence opens the dataset folder and ingests its recording.
func openSequence(c *cli.Context) (*dataset.Session, error) {
	opts, err := options(c)
	if err != nil {
		return nil, err
	}
	logger.Infow("options", "options", opts.String())
	s, err := dataset.Open(opts, logger)
	if err != nil {
		return nil, err
	}
	applyTimeSliders(c, s)
	bag := c.String(flagBag)
	if bag == "" {
		if bag, err = ros.FindBag(opts.Folder); err != nil {
			return nil, err
		}
	}
	if err := ros.Load(bag, s); err != nil {
		return nil, errors.Wrapf(err, "cannot load %q", bag)
	}
	return s, nil
}

// GenerateAction synchronizes the sequence and writes its ground truth folder.
func GenerateAction(c *cli.Context) error {
	s, err := openSequence(c)
	if err != nil {
		return err
	}
	specs := align.Session(s, align.SessionOptions(s))
	if len(specs) == 0 {
		return errors.New("no frames could be synchronized")
	}
	frames := annotation.NewFrames(specs)
	scene := annotation.SceneFromSession(s)
	if err := annotation.GenerateAll(c.Context, scene, frames, logger.Sublogger("annotation")); err != nil {
		return err
	}

	var images []image.Image
	if s.Options.WithImages {
		images = s.Images
	}
	if err := groundtruth.Write(c.Context, s.Options.Folder, scene, frames, s.Events, images, logger); err != nil {
		return err
	}
	logger.Infow("ground truth written", "frames", len(frames),
		"folder", filepath.Join(s.Options.Folder, groundtruth.FolderName))
	return nil
}

// RefineAction fits the camera extrinsic to the events of a window and reports the result.
func RefineAction(c *cli.Context) error {
	s, err := openSequence(c)
	if err != nil {
		return err
	}
	ropts := s.Options.Refine
	b, err := backproject.New(c.Context, s, ropts, logger.Sublogger("backproject"))
	if err != nil {
		return err
	}
	if err := b.Generate(c.Context); err != nil {
		return err
	}
	logger.Infow("initial alignment", "score", b.Score(), "inverse_score", b.InverseScore())
	if err := b.Refine(c.Context, ropts.Steps, backproject.DefaultStep); err != nil {
		return err
	}
	if ropts.DumpClouds {
		if err := b.SaveClouds(c.Context, s.Options.Folder); err != nil {
			return err
		}
	}
	logger.Infow("refined alignment", "score", b.Score(), "inverse_score", b.InverseScore())
	fmt.Fprintln(c.App.Writer, s.Extrinsics.Table())
	s.ApplyExtrinsicDelta()
	if !c.Bool(flagSave) {
		return nil
	}
	return calibration.WriteExtrinsicsFile(filepath.Join(s.Options.Folder, calibration.ExtrinsicsFile), s.Extrinsics)
}

// PreviewAction renders one frame as an overlay PNG.
func PreviewAction(c *cli.Context) error {
	s, err := openSequence(c)
	if err != nil {
		return err
	}
	frames := annotation.NewFrames(align.Session(s, align.SessionOptions(s)))
	if len(frames) == 0 {
		return errors.New("no frames could be synchronized")
	}
	viewer := annotation.NewViewer(s, frames, logger.Sublogger("preview"))
	viewer.Select(c.Int(flagFrame))
	tuneSession(c, s)
	viewer.Refresh()

	f := viewer.Current()
	var img image.Image
	if f.HasImage() && f.ImageIndex < len(s.Images) {
		img = s.Images[f.ImageIndex]
	}
	out := rimage.Overlay(f.Depth, f.Mask, img)
	if c.Bool(flagEvents) {
		if err := f.DrawEvents(out, s.Events); err != nil {
			return err
		}
	}
	logger.Infow("rendered frame",
		"frame", f.ID, "ts", f.Timestamp, "events", f.EventHigh-f.EventLow,
		"slice_width", s.SliceWidth(), "filtering_window", s.FilteringWindow(),
		"extrinsics", s.Extrinsics.String())
	return rimage.WriteImageToFile(c.String(flagOut), out)
}

// applyTimeSliders moves the clock correction sliders given on the command line. They must be
// set before the recording is ingested.
func applyTimeSliders(c *cli.Context, s *dataset.Session) {
	if !c.IsSet(flagTPos) && !c.IsSet(flagTImg) {
		return
	}
	posePos, imagePos := s.Extrinsics.TimeSliders()
	if c.IsSet(flagTPos) {
		posePos = c.Int(flagTPos)
	}
	if c.IsSet(flagTImg) {
		imagePos = c.Int(flagTImg)
	}
	s.SetTimeSliders(posePos, imagePos)
}

// tuneSession applies the preview tuning flags in the order reset, slider, nudge, slice width,
// smoothing window.
func tuneSession(c *cli.Context, s *dataset.Session) {
	if c.Bool(flagResetDelta) {
		s.ResetExtrinsicDelta()
	}
	for _, axis := range calibration.Axes {
		if c.IsSet(sliderFlag(axis)) {
			s.SetExtrinsicSlider(axis, c.Int(sliderFlag(axis)))
		}
		if c.IsSet(axis.String()) {
			s.NudgeExtrinsic(axis, c.Float64(axis.String()))
		}
	}
	if c.IsSet(flagSliceSteps) {
		s.AdjustSliceWidth(c.Int(flagSliceSteps))
	}
	if c.IsSet(flagFilterSteps) {
		s.AdjustFilteringWindow(c.Int(flagFilterSteps))
	}
}

// ExportEventsAction writes the aligned events of the sequence as text.
func ExportEventsAction(c *cli.Context) error {
	s, err := openSequence(c)
	if err != nil {
		return err
	}
	var out io.Writer = c.App.Writer
	if fn := c.String(flagOut); fn != "" {
		//nolint:gosec
		f, err := os.Create(fn)
		if err != nil {
			return err
		}
		defer goutils.UncheckedErrorFunc(f.Close)
		out = f
	}
	return s.Events.WriteText(out)
}
