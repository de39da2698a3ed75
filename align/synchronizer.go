// Package align picks the output frames of a sequence and matches every stream to them.
package align

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"go.viam.com/evimo/config"
	"go.viam.com/evimo/dataset"
	"go.viam.com/evimo/events"
	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/trajectory"
)

// timeEpsilon absorbs float error when comparing grid times to sample times.
const timeEpsilon = 1e-9

// FrameSpec is one synchronized output frame. It holds indices only.
type FrameSpec struct {
	ID            int
	Timestamp     float64
	CameraIndex   int
	ObjectIndices map[int]int
	// EventLow and EventHigh bound the event slice [EventLow, EventHigh).
	EventLow   int
	EventHigh  int
	ImageIndex int
}

// HasImage reports whether the frame was taken at an image timestamp.
func (f FrameSpec) HasImage() bool {
	return f.ImageIndex >= 0
}

// Options configure a Synchronizer.
type Options struct {
	FPS        float64
	StartTS    float64
	SliceWidth float64
	Tolerance  float64
	Numbering  config.Numbering
	// ImageTimes switches to one reference per image when non-nil.
	ImageTimes []float64
}

// Synchronizer walks the streams with one forward-only cursor each.
type Synchronizer struct {
	camera  trajectory.TimeSeries
	objects map[int]trajectory.TimeSeries
	events  events.Array
	opts    Options
	logger  logging.Logger
}

// NewSynchronizer returns a synchronizer over the given streams.
func NewSynchronizer(camera trajectory.TimeSeries, objects map[int]trajectory.TimeSeries, evs events.Array,
	opts Options, logger logging.Logger,
) *Synchronizer {
	return &Synchronizer{camera: camera, objects: objects, events: evs, opts: opts, logger: logger}
}

func (s *Synchronizer) reference(k int) (float64, int, bool) {
	if s.opts.ImageTimes != nil {
		if k >= len(s.opts.ImageTimes) {
			return 0, -1, false
		}
		return s.opts.ImageTimes[k], k, true
	}
	ref := s.opts.StartTS + float64(k)/s.opts.FPS
	// the grid stops before the last camera sample
	if n := s.camera.Len(); n == 0 || ref >= s.camera.TimeAt(n-1)-timeEpsilon {
		return 0, -1, false
	}
	return ref, -1, true
}

func advance(series trajectory.TimeSeries, cursor int, ref float64) int {
	for cursor < series.Len() && series.TimeAt(cursor) < ref-timeEpsilon {
		cursor++
	}
	return cursor
}

// Run returns the accepted frames in reference time order. Grid references only advance the
// cursors; the frame itself takes the time of the camera sample found. It stops when the camera or any
// non-empty object trajectory runs out of samples.
func (s *Synchronizer) Run() []FrameSpec {
	ids := lo.Keys(s.objects)
	sort.Ints(ids)

	var frames []FrameSpec
	camCursor := 0
	objCursors := make(map[int]int, len(ids))
	low, high := 0, 0
	accepted := 0
	for candidate := 0; ; candidate++ {
		ref, imageIdx, ok := s.reference(candidate)
		if !ok {
			break
		}

		camCursor = advance(s.camera, camCursor, ref)
		if camCursor >= s.camera.Len() {
			break
		}
		exhausted := false
		for _, id := range ids {
			tj := s.objects[id]
			objCursors[id] = advance(tj, objCursors[id], ref)
			if tj.Len() > 0 && objCursors[id] >= tj.Len() {
				exhausted = true
			}
		}
		if exhausted {
			break
		}
		if imageIdx < 0 {
			// grid frames are stamped at the camera sample their depth is rendered from
			ref = s.camera.TimeAt(camCursor)
		}

		maxErr := 0.0
		for _, id := range ids {
			if tj := s.objects[id]; tj.Len() > 0 {
				maxErr = math.Max(maxErr, math.Abs(ref-tj.TimeAt(objCursors[id])))
			}
		}
		if maxErr > s.opts.Tolerance+timeEpsilon {
			s.logger.Warnw("trajectory timestamp misalignment; skipping frame",
				"candidate", candidate, "ts", ref, "misalignment", maxErr)
			continue
		}

		low, high = s.events.Window(ref, s.opts.SliceWidth, low, high)

		frame := FrameSpec{
			ID:            candidate,
			Timestamp:     ref,
			CameraIndex:   camCursor,
			ObjectIndices: make(map[int]int, len(ids)),
			EventLow:      low,
			EventHigh:     high,
			ImageIndex:    imageIdx,
		}
		if s.opts.Numbering == config.NumberingSequential {
			frame.ID = accepted
		}
		for _, id := range ids {
			if s.objects[id].Len() > 0 {
				frame.ObjectIndices[id] = objCursors[id]
			}
		}
		frames = append(frames, frame)
		accepted++
	}
	s.logger.Infow("timestamp alignment done", "frames", len(frames))
	return frames
}

// SessionOptions returns the synchronizer options a session is configured with.
func SessionOptions(s *dataset.Session) Options {
	opts := Options{
		FPS:        s.Options.FPS,
		StartTS:    s.Options.StartTS,
		SliceWidth: s.SliceWidth(),
		Tolerance:  s.Options.MisalignmentTolerance,
		Numbering:  s.Options.Numbering,
	}
	if s.Options.WithImages {
		opts.ImageTimes = s.ImageTimes
	}
	return opts
}

// Session synchronizes the streams of an ingested session.
func Session(s *dataset.Session, opts Options) []FrameSpec {
	objects := make(map[int]trajectory.TimeSeries, len(s.ObjectTrajectories))
	for id, tj := range s.ObjectTrajectories {
		objects[id] = tj
	}
	return NewSynchronizer(s.CameraTrajectory, objects, s.Events, opts, s.Logger().Sublogger("align")).Run()
}
