// Package dataset holds the session context of one recorded sequence: calibration, enabled
// objects, models, aligned trajectories, events and images, and the live tuning state.
package dataset

import (
	"image"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"

	"go.viam.com/evimo/calibration"
	"go.viam.com/evimo/config"
	"go.viam.com/evimo/events"
	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/pointcloud"
	"go.viam.com/evimo/rimage/transform"
	"go.viam.com/evimo/trajectory"
)

const (
	sliceWidthStep      = 0.005
	filteringWindowStep = 0.01
)

// Session is the state shared by every stage of a run. Ingested data is read only once Ingest
// returns; the tuning methods mark the session modified so that viewers regenerate lazily.
type Session struct {
	Options config.Options

	Camera     *transform.CameraModel
	Extrinsics *calibration.Extrinsics
	Enabled    map[int]bool

	// Background is already placed in the tracking frame. Nil when disabled.
	Background pointcloud.PointCloud
	Clouds     map[int]pointcloud.PointCloud

	CameraTrajectory   *trajectory.Trajectory
	ObjectTrajectories map[int]*trajectory.Trajectory
	Events             events.Array
	Images             []image.Image
	ImageTimes         []float64

	// TimeOffset is the host time, in seconds, that became zero.
	TimeOffset float64

	sliceWidth float64
	modified   atomic.Bool
	logger     logging.Logger
}

// New returns an empty session.
func New(opts config.Options, camera *transform.CameraModel, extrinsics *calibration.Extrinsics,
	enabled map[int]bool, logger logging.Logger,
) *Session {
	if enabled == nil {
		enabled = map[int]bool{}
	}
	return &Session{
		Options:            opts,
		Camera:             camera,
		Extrinsics:         extrinsics,
		Enabled:            enabled,
		Clouds:             map[int]pointcloud.PointCloud{},
		CameraTrajectory:   trajectory.New(opts.PoseFilteringWindow),
		ObjectTrajectories: map[int]*trajectory.Trajectory{},
		sliceWidth:         opts.SliceWidth,
		logger:             logger,
	}
}

// Logger returns the session logger.
func (s *Session) Logger() logging.Logger {
	return s.logger
}

// ObjectTopics returns the tracker topics of the enabled objects.
func (s *Session) ObjectTopics() map[int]string {
	return lo.PickBy(s.Options.Topics.Objects, func(id int, _ string) bool {
		return s.Enabled[id]
	})
}

// ObjectIDs returns the ids of the objects with a non-empty trajectory, ascending.
func (s *Session) ObjectIDs() []int {
	ids := lo.Keys(lo.PickBy(s.ObjectTrajectories, func(_ int, tj *trajectory.Trajectory) bool {
		return tj.Len() > 0
	}))
	sort.Ints(ids)
	return ids
}

// Ingest aligns the raw streams onto the event clock and fills the trajectories, events and
// images. Zero is the host time of the first event message shifted by the event to host offset.
func (s *Session) Ingest(streams Streams) error {
	eventToHost := s.Extrinsics.EventToHost()
	eventToHostNs := int64(math.Round(eventToHost * 1e9))

	var firstReceived int64
	var firstStamp int64
	found := false
	var evs events.Array
	for _, msg := range streams.EventMessages {
		if msg.Width > 0 && msg.Height > 0 {
			s.setResolution(msg.Height, msg.Width)
		}
		for _, e := range msg.Events {
			if !found {
				firstReceived, firstStamp, found = msg.Received, e.Stamp, true
			}
			// host time: the first message's receive time advanced by the sensor clock
			ev := events.Event{Row: e.Y, Col: e.X, Timestamp: firstReceived + (e.Stamp - firstStamp) + eventToHostNs}
			if e.Polarity {
				ev.Polarity = 1
			}
			evs = append(evs, ev)
		}
	}
	if !found {
		return errors.New("no events in the recording")
	}
	evs.CheckSorted(s.logger)

	poseToHost := s.Extrinsics.PoseToHost() + s.Options.TimeBias
	imageToHost := s.Extrinsics.ImageToHost()
	s.TimeOffset = float64(firstReceived)/1e9 + eventToHost

	// the first event lands on zero
	s.Events = evs.SubtractTime(firstReceived + eventToHostNs)

	s.CameraTrajectory = s.buildTrajectory(streams.Camera, poseToHost, "camera")
	s.ObjectTrajectories = map[int]*trajectory.Trajectory{}
	for id, samples := range streams.Objects {
		tj := s.buildTrajectory(lo.Reject(samples, func(p PoseSample, _ int) bool { return p.Occluded }),
			poseToHost, "object")
		s.ObjectTrajectories[id] = tj
		if tj.Len() > 0 {
			s.logger.Infow("read object poses", "object", id, "poses", tj.Len())
			if _, ok := s.Clouds[id]; !ok {
				s.logger.Warnw("no point cloud for trajectory", "object", id)
			}
		}
	}

	s.Images, s.ImageTimes = nil, nil
	for _, img := range streams.Images {
		ts := img.Stamp + imageToHost - s.TimeOffset
		if ts < 0 {
			continue
		}
		s.Images = append(s.Images, img.Image)
		s.ImageTimes = append(s.ImageTimes, ts)
	}
	if s.Options.WithImages && len(s.Images) == 0 {
		s.logger.Warn("no images found; generating at the configured frame rate")
		s.Options.WithImages = false
	}

	s.logger.Infow("ingested recording",
		"events", len(s.Events), "camera_poses", s.CameraTrajectory.Len(),
		"images", len(s.Images), "time_offset", s.TimeOffset)
	return nil
}

func (s *Session) buildTrajectory(samples []PoseSample, offset float64, name string) *trajectory.Trajectory {
	tj := trajectory.New(s.Options.PoseFilteringWindow)
	for _, p := range samples {
		tj.Add(trajectory.NewPoseWithMarkers(p.Stamp+offset, p.Transform, p.OccludedMarkers, p.TotalMarkers))
	}
	if !tj.Check(s.logger.Sublogger(name)) {
		s.logger.Warnw("trajectory is not sorted", "trajectory", name)
	}
	tj.SubtractTime(s.TimeOffset)
	return tj
}

func (s *Session) setResolution(rows, cols int) {
	if s.Camera == nil || (s.Camera.Height == rows && s.Camera.Width == cols) {
		return
	}
	s.logger.Infow("sensor resolution from event stream", "rows", rows, "cols", cols)
	intr := *s.Camera.PinholeCameraIntrinsics
	intr.Height, intr.Width = rows, cols
	s.Camera = &transform.CameraModel{PinholeCameraIntrinsics: &intr, Distortion: s.Camera.Distortion}
	s.Options.ResX, s.Options.ResY = rows, cols
}

// MarkModified flags that generated buffers are stale.
func (s *Session) MarkModified() {
	s.modified.Store(true)
}

// ConsumeModified clears the modified flag and reports whether it was set.
func (s *Session) ConsumeModified() bool {
	return s.modified.CompareAndSwap(true, false)
}

// SliceWidth returns the event slice width in seconds.
func (s *Session) SliceWidth() float64 {
	return s.sliceWidth
}

// AdjustSliceWidth widens (positive steps) or narrows the event slice by 5 ms per step.
func (s *Session) AdjustSliceWidth(steps int) {
	s.sliceWidth = math.Max(0, s.sliceWidth+float64(steps)*sliceWidthStep)
	s.MarkModified()
}

// FilteringWindow returns the pose smoothing window in seconds.
func (s *Session) FilteringWindow() float64 {
	return s.Options.PoseFilteringWindow
}

// AdjustFilteringWindow changes the pose smoothing window of every trajectory by 10 ms per step.
func (s *Session) AdjustFilteringWindow(steps int) {
	w := math.Max(0, s.Options.PoseFilteringWindow+float64(steps)*filteringWindowStep)
	s.Options.PoseFilteringWindow = w
	s.CameraTrajectory.SetFilteringWindow(w)
	for _, tj := range s.ObjectTrajectories {
		tj.SetFilteringWindow(w)
	}
	s.MarkModified()
}

// NudgeExtrinsic adds v to one axis of the extrinsic delta.
func (s *Session) NudgeExtrinsic(axis calibration.Axis, v float64) {
	s.Extrinsics.Nudge(axis, v)
	s.MarkModified()
}

// SetExtrinsicSlider moves one extrinsic delta slider.
func (s *Session) SetExtrinsicSlider(axis calibration.Axis, pos int) {
	s.Extrinsics.SetSlider(axis, pos)
	s.MarkModified()
}

// ResetExtrinsicDelta zeroes the extrinsic delta.
func (s *Session) ResetExtrinsicDelta() {
	s.Extrinsics.Reset()
	s.MarkModified()
}

// SetTimeSliders moves the pose and image clock correction sliders. The offsets are applied by
// Ingest, so call it before ingesting.
func (s *Session) SetTimeSliders(posePos, imagePos int) {
	s.Extrinsics.SetTimeSliders(posePos, imagePos)
	pose, img := s.Extrinsics.TimeSliders()
	s.logger.Infow("time correction sliders", "t_pos", pose, "t_img", img,
		"pose_to_event", s.Extrinsics.PoseToEvent(), "image_to_event", s.Extrinsics.ImageToEvent())
	s.MarkModified()
}

// ApplyExtrinsicDelta folds the extrinsic delta into the base transform.
func (s *Session) ApplyExtrinsicDelta() {
	s.Extrinsics.Apply()
	s.logger.Infow("applied extrinsic calibration", "extrinsics", s.Extrinsics.String())
	s.MarkModified()
}
