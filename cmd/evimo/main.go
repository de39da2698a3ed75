// Package main is the evimo command line: it turns a recorded sequence into ground truth and
// refines its camera calibration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"go.viam.com/evimo/calibration"
	"go.viam.com/evimo/logging"
)

const (
	flagConfig       = "config"
	flagDebug        = "debug"
	flagLogLevel     = "log-level"
	flagLogFile      = "log-file"
	flagFolder       = "folder"
	flagBag          = "bag"
	flagFPS          = "fps"
	flagSliceWidth   = "slice-width"
	flagStartTS      = "start-ts"
	flagWithImages   = "with-images"
	flagNoBackground = "no-background"
	flagNumbering    = "numbering"
	flagTimestamp    = "timestamp"
	flagWindow       = "window"
	flagFramerate    = "framerate"
	flagSteps        = "steps"
	flagDumpClouds   = "dump-clouds"
	flagOut          = "out"
	flagSave         = "save"
	flagFrame        = "frame"
	flagTPos         = "t-pos"
	flagTImg         = "t-img"
	flagEvents       = "events"
	flagSliceSteps   = "slice-width-steps"
	flagFilterSteps  = "filter-window-steps"
	flagResetDelta   = "reset-delta"
)

var (
	logger   = logging.NewLogger("evimo")
	closeLog = func() error { return nil }
)

func newApp() *cli.App {
	sequenceFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  flagBag,
			Usage: "read the recording from `FILE` instead of the only .bag in the folder",
		},
		&cli.BoolFlag{
			Name:  flagNoBackground,
			Usage: "do not render the room model",
		},
		&cli.IntFlag{
			Name:  flagTPos,
			Usage: "pose to event clock correction slider `POSITION`",
		},
		&cli.IntFlag{
			Name:  flagTImg,
			Usage: "image to event clock correction slider `POSITION`",
		},
	}
	return &cli.App{
		Name:  "evimo",
		Usage: "generate depth and mask ground truth for event camera recordings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    flagFolder,
				Aliases: []string{"f"},
				Usage:   "dataset folder",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "minimum `LEVEL` to log (debug, info, warn, error)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logging.LevelFromString(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			if c.Bool(flagDebug) {
				level = logging.DEBUG
			}
			if fn := c.String(flagLogFile); fn != "" {
				logger, closeLog = logging.NewFileLogger("evimo", fn, level)
				return nil
			}
			logger.SetLevel(level)
			return nil
		},
		After: func(c *cli.Context) error {
			return closeLog()
		},
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "write depth maps, masks and meta.json for every synchronized frame",
				Flags: append([]cli.Flag{
					&cli.Float64Flag{Name: flagFPS, Usage: "ground truth frame rate"},
					&cli.Float64Flag{Name: flagSliceWidth, Usage: "event slice width in seconds"},
					&cli.Float64Flag{Name: flagStartTS, Usage: "seconds to skip at the start of the recording"},
					&cli.BoolFlag{Name: flagWithImages, Usage: "synchronize on camera images and export them"},
					&cli.StringFlag{Name: flagNumbering, Usage: "frame numbering: skip-aware or sequential"},
				}, sequenceFlags...),
				Action: GenerateAction,
			},
			{
				Name:  "refine",
				Usage: "refine the camera extrinsic by fitting masks to the event cloud",
				Flags: append([]cli.Flag{
					&cli.Float64Flag{Name: flagTimestamp, Usage: "center of the event window in seconds; negative uses the whole recording"},
					&cli.Float64Flag{Name: flagWindow, Usage: "event window width in seconds"},
					&cli.Float64Flag{Name: flagFramerate, Usage: "rate of the frames rendered inside the window"},
					&cli.IntFlag{Name: flagSteps, Usage: "number of minimization steps"},
					&cli.BoolFlag{Name: flagDumpClouds, Usage: "write the event, mask and roi clouds as PCD files"},
					&cli.BoolFlag{Name: flagSave, Usage: "overwrite the folder's extrinsics with the refined calibration"},
				}, sequenceFlags...),
				Action: RefineAction,
			},
			{
				Name:  "preview",
				Usage: "render one frame over its camera image, optionally with the extrinsic nudged",
				Flags: append(append([]cli.Flag{
					&cli.IntFlag{Name: flagFrame, Usage: "index of the synchronized frame to render"},
					&cli.StringFlag{Name: flagOut, Value: "preview.png", Usage: "output `FILE`"},
					&cli.BoolFlag{Name: flagEvents, Usage: "mark the events of the frame's slice"},
					&cli.IntFlag{Name: flagSliceSteps, Usage: "widen (positive) or narrow the event slice by 5 ms steps"},
					&cli.IntFlag{Name: flagFilterSteps, Usage: "grow (positive) or shrink the pose smoothing window by 10 ms steps"},
					&cli.BoolFlag{Name: flagResetDelta, Usage: "start from a zero extrinsic delta"},
				}, nudgeFlags()...), sequenceFlags...),
				Action: PreviewAction,
			},
			{
				Name:  "export-events",
				Usage: "write the aligned events as text",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagOut, Usage: "output `FILE`, stdout if empty"},
				}, sequenceFlags...),
				Action: ExportEventsAction,
			},
		},
	}
}

// nudgeFlags has two flags per extrinsic axis: one named after it that adds to its delta and one
// that moves its slider.
func nudgeFlags() []cli.Flag {
	flags := make([]cli.Flag, 0, 2*len(calibration.Axes))
	for _, axis := range calibration.Axes {
		flags = append(flags,
			&cli.Float64Flag{
				Name:  axis.String(),
				Usage: "add to the " + axis.String() + " extrinsic delta (meters or radians)",
			},
			&cli.IntFlag{
				Name:  sliderFlag(axis),
				Usage: "move the " + axis.String() + " delta slider to `POSITION`",
			},
		)
	}
	return flags
}

func sliderFlag(axis calibration.Axis) string {
	return axis.String() + "-slider"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
