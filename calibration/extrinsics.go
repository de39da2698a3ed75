// Package calibration holds the camera calibration of a session: read-only intrinsics and an
// extrinsic transform made of a base pose plus a live adjustable delta.
package calibration

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/evimo/spatialmath"
	"go.viam.com/evimo/utils"
)

const (
	// SliderMax is the largest slider position. Position SliderMax/2 is a zero delta.
	SliderMax = 1000

	linearScale  = 10
	angularScale = 10
	timeScale    = 5
)

// Axis names one of the six extrinsic delta components.
type Axis int

// The delta axes, in the order the refinement loop visits them.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisRoll
	AxisPitch
	AxisYaw
)

// Axes lists every delta axis.
var Axes = []Axis{AxisX, AxisY, AxisZ, AxisRoll, AxisPitch, AxisYaw}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	case AxisRoll:
		return "roll"
	case AxisPitch:
		return "pitch"
	case AxisYaw:
		return "yaw"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

func (a Axis) scale() float64 {
	if a >= AxisRoll {
		return angularScale
	}
	return linearScale
}

// SliderValue maps a slider position to the value it stands for.
func SliderValue(pos int, scale float64) float64 {
	return float64(pos-SliderMax/2) / (SliderMax * scale)
}

// SliderPosition maps a value to the nearest slider position, clamped to [0, SliderMax].
func SliderPosition(v, scale float64) int {
	return utils.ClampInt(int(math.Round(v*SliderMax*scale))+SliderMax/2, 0, SliderMax)
}

// TimeOffsets are the clock offsets between the recorded streams, in seconds.
type TimeOffsets struct {
	PoseToEvent  float64
	ImageToEvent float64
}

// Extrinsics is the camera to tracking-frame transform plus the background placement. The
// camera transform is the base pose composed with a delta given by six slider positions.
// Extrinsics is not safe for concurrent mutation; callers snapshot Camera() before fanning out.
type Extrinsics struct {
	translation r3.Vector
	rpy         spatialmath.EulerAngles
	sliders     [6]int

	background spatialmath.Pose

	offsets     TimeOffsets
	poseSlider  int
	imageSlider int
}

// NewExtrinsics returns extrinsics with centered sliders.
func NewExtrinsics(translation r3.Vector, rpy spatialmath.EulerAngles, background spatialmath.Pose, offsets TimeOffsets) *Extrinsics {
	if background == nil {
		background = spatialmath.NewZeroPose()
	}
	e := &Extrinsics{
		translation: translation,
		rpy:         rpy,
		background:  background,
		offsets:     offsets,
		poseSlider:  SliderMax / 2,
		imageSlider: SliderMax / 2,
	}
	e.Reset()
	return e
}

// Base returns the base translation and roll, pitch, yaw.
func (e *Extrinsics) Base() (r3.Vector, spatialmath.EulerAngles) {
	return e.translation, e.rpy
}

// Slider returns the slider position of an axis.
func (e *Extrinsics) Slider(a Axis) int {
	return e.sliders[a]
}

// SetSlider moves the slider of an axis, clamped to [0, SliderMax].
func (e *Extrinsics) SetSlider(a Axis, pos int) {
	e.sliders[a] = utils.ClampInt(pos, 0, SliderMax)
}

// Delta returns the current delta value of an axis, in meters or radians.
func (e *Extrinsics) Delta(a Axis) float64 {
	return SliderValue(e.sliders[a], a.scale())
}

// Nudge adds v to the delta of an axis. The result is quantized to the slider resolution and
// clamped to the slider range.
func (e *Extrinsics) Nudge(a Axis, v float64) {
	e.sliders[a] = SliderPosition(e.Delta(a)+v, a.scale())
}

// Reset zeroes the delta.
func (e *Extrinsics) Reset() {
	for i := range e.sliders {
		e.sliders[i] = SliderMax / 2
	}
}

// Apply folds the delta into the base pose and zeroes it.
func (e *Extrinsics) Apply() {
	cam := e.Camera()
	e.translation = cam.Point()
	e.rpy = *cam.Orientation().EulerAngles()
	e.Reset()
}

// Camera returns the effective camera extrinsic: base composed with delta.
func (e *Extrinsics) Camera() spatialmath.Pose {
	base := spatialmath.NewPose(e.translation, &spatialmath.EulerAngles{Roll: e.rpy.Roll, Pitch: e.rpy.Pitch, Yaw: e.rpy.Yaw})
	delta := spatialmath.NewPose(
		r3.Vector{X: e.Delta(AxisX), Y: e.Delta(AxisY), Z: e.Delta(AxisZ)},
		&spatialmath.EulerAngles{Roll: e.Delta(AxisRoll), Pitch: e.Delta(AxisPitch), Yaw: e.Delta(AxisYaw)},
	)
	return spatialmath.Compose(base, delta)
}

// Background returns the background to tracking-frame transform.
func (e *Extrinsics) Background() spatialmath.Pose {
	return e.background
}

// SetTimeSliders moves the pose-to-event and image-to-event correction sliders.
func (e *Extrinsics) SetTimeSliders(posePos, imagePos int) {
	e.poseSlider = utils.ClampInt(posePos, 0, SliderMax)
	e.imageSlider = utils.ClampInt(imagePos, 0, SliderMax)
}

// TimeSliders returns the pose-to-event and image-to-event slider positions.
func (e *Extrinsics) TimeSliders() (int, int) {
	return e.poseSlider, e.imageSlider
}

// PoseToEvent is the pose to event clock offset including the slider correction.
func (e *Extrinsics) PoseToEvent() float64 {
	return e.offsets.PoseToEvent + SliderValue(e.poseSlider, timeScale)
}

// ImageToEvent is the image to event clock offset including the slider correction.
func (e *Extrinsics) ImageToEvent() float64 {
	return e.offsets.ImageToEvent + SliderValue(e.imageSlider, timeScale)
}

// ImageToHost is the image to host clock offset. Images are stamped by the host.
func (e *Extrinsics) ImageToHost() float64 {
	return 0
}

// EventToHost is the event to host clock offset.
func (e *Extrinsics) EventToHost() float64 {
	return e.ImageToHost() - e.ImageToEvent()
}

// PoseToHost is the pose to host clock offset.
func (e *Extrinsics) PoseToHost() float64 {
	return e.EventToHost() + e.PoseToEvent()
}

// String prints the base transform and time offsets in the extrinsics file layout.
func (e *Extrinsics) String() string {
	return fmt.Sprintf("%g %g %g %g %g %g (pose to event %gs, image to event %gs)",
		e.translation.X, e.translation.Y, e.translation.Z, e.rpy.Roll, e.rpy.Pitch, e.rpy.Yaw,
		e.PoseToEvent(), e.ImageToEvent())
}
