// Package config defines the options of an annotation run and how they are read.
package config

import (
	"fmt"

	"github.com/pkg/errors"
)

// Numbering selects how output frames are numbered.
type Numbering string

const (
	// NumberingSkipAware numbers frames by candidate, so skipped candidates leave gaps.
	NumberingSkipAware Numbering = "skip-aware"
	// NumberingSequential numbers accepted frames 0, 1, 2, ...
	NumberingSequential Numbering = "sequential"
)

// ObjectIDs are the object slots a dataset can enable.
var ObjectIDs = []int{1, 2, 3}

// Topics are the recorded topic names the ingestion reads.
type Topics struct {
	Camera  string         `json:"camera"`
	Events  string         `json:"events"`
	Images  string         `json:"images"`
	Objects map[int]string `json:"objects"`
}

// RefineOptions configure the calibration refinement command.
type RefineOptions struct {
	// Timestamp is the center of the event window, in seconds after the first event.
	Timestamp float64 `json:"timestamp"`
	// Window is the width of the event window in seconds.
	Window float64 `json:"window"`
	// Framerate of the frames regenerated inside the window.
	Framerate float64 `json:"framerate"`
	Steps     int     `json:"steps"`
	// DumpClouds writes the event, mask and roi clouds as PCD files after the last step.
	DumpClouds bool `json:"dump_clouds"`
}

// Options is the full configuration of one run.
type Options struct {
	Folder string `json:"folder"`

	FPS                   float64   `json:"fps"`
	PoseFilteringWindow   float64   `json:"pose_filtering_window"`
	SliceWidth            float64   `json:"slice_width"`
	StartTS               float64   `json:"start_ts"`
	TimeBias              float64   `json:"time_bias"`
	MisalignmentTolerance float64   `json:"misalignment_tolerance"`
	Numbering             Numbering `json:"numbering"`

	NoBackground bool `json:"no_background"`
	WithImages   bool `json:"with_images"`

	// ResX is the sensor height in rows and ResY its width in columns.
	ResX int `json:"res_x"`
	ResY int `json:"res_y"`

	Topics Topics `json:"topics"`
	// ModelsDir holds one directory per model name with a model.pcd or model.ply.
	ModelsDir  string         `json:"models_dir"`
	Models     map[int]string `json:"models"`
	Background string         `json:"background"`

	Refine RefineOptions `json:"refine"`
}

// Default returns the options used when nothing else is configured.
func Default() Options {
	return Options{
		FPS:                   40,
		PoseFilteringWindow:   0.04,
		SliceWidth:            0.03,
		StartTS:               0.2,
		MisalignmentTolerance: 0.005,
		Numbering:             NumberingSkipAware,
		ResX:                  260,
		ResY:                  346,
		Topics: Topics{
			Camera: "/vicon/DVS346",
			Events: "/dvs/events",
			Images: "/dvs/image_raw",
			Objects: map[int]string{
				1: "/vicon/Object_1",
				2: "/vicon/Object_2",
				3: "/vicon/Object_3",
			},
		},
		ModelsDir:  "objects",
		Models:     map[int]string{1: "toy_car", 2: "toy_plane", 3: "cup"},
		Background: "room",
		Refine: RefineOptions{
			Window:    0.4,
			Framerate: 200,
			Steps:     10,
		},
	}
}

// Validate checks the options for values a run cannot work with.
func (o *Options) Validate() error {
	if o.Folder == "" {
		return errors.New("no dataset folder specified")
	}
	if o.FPS <= 0 {
		return errors.Errorf("fps must be positive, got %v", o.FPS)
	}
	if o.PoseFilteringWindow < 0 {
		return errors.Errorf("pose_filtering_window must not be negative, got %v", o.PoseFilteringWindow)
	}
	if o.SliceWidth < 0 {
		return errors.Errorf("slice_width must not be negative, got %v", o.SliceWidth)
	}
	if o.MisalignmentTolerance < 0 {
		return errors.Errorf("misalignment_tolerance must not be negative, got %v", o.MisalignmentTolerance)
	}
	switch o.Numbering {
	case NumberingSkipAware, NumberingSequential:
	default:
		return errors.Errorf("unknown numbering %q", o.Numbering)
	}
	if o.ResX <= 0 || o.ResY <= 0 {
		return errors.Errorf("invalid resolution %dx%d", o.ResX, o.ResY)
	}
	if o.Topics.Camera == "" || o.Topics.Events == "" {
		return errors.New("camera and event topics are required")
	}
	for id := range o.Topics.Objects {
		if id < 1 || id > 255 {
			return errors.Errorf("object id %d does not fit in a mask", id)
		}
	}
	if o.Refine.Window <= 0 || o.Refine.Framerate <= 0 {
		return errors.New("refine window and framerate must be positive")
	}
	return nil
}

func (o Options) String() string {
	return fmt.Sprintf("folder=%s fps=%v window=%v slice=%v numbering=%s images=%v background=%v",
		o.Folder, o.FPS, o.PoseFilteringWindow, o.SliceWidth, o.Numbering, o.WithImages, !o.NoBackground)
}
