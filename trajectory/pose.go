package trajectory

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/evimo/spatialmath"
)

// Pose is a rigid transform sampled at Timestamp (seconds). Occlusion is the fraction of
// motion capture markers hidden for the sample, 1 when unusable, NaN when unknown.
type Pose struct {
	Timestamp float64
	Transform spatialmath.Pose
	Occlusion float64
}

// NewPose returns a pose with unknown occlusion.
func NewPose(ts float64, transform spatialmath.Pose) Pose {
	return Pose{Timestamp: ts, Transform: transform, Occlusion: math.NaN()}
}

// NewPoseWithMarkers returns a pose whose occlusion is occluded/total. A sample without markers
// is fully occluded.
func NewPoseWithMarkers(ts float64, transform spatialmath.Pose, occluded, total int) Pose {
	return Pose{Timestamp: ts, Transform: transform, Occlusion: OcclusionRatio(occluded, total)}
}

// OcclusionRatio is the fraction of occluded markers.
func OcclusionRatio(occluded, total int) float64 {
	if total <= 0 {
		return 1
	}
	return float64(occluded) / float64(total)
}

// Translation returns the translation part.
func (p Pose) Translation() r3.Vector {
	return p.Transform.Point()
}

// RPY returns roll, pitch and yaw in radians.
func (p Pose) RPY() *spatialmath.EulerAngles {
	return p.Transform.Orientation().EulerAngles()
}

// Quaternion returns the orientation as a unit quaternion.
func (p Pose) Quaternion() quat.Number {
	return p.Transform.Orientation().Quaternion()
}

// Sub returns p expressed relative to other. Occlusion is the worse of the two.
func (p Pose) Sub(other Pose) Pose {
	return Pose{
		Timestamp: p.Timestamp,
		Transform: spatialmath.PoseBetween(other.Transform, p.Transform),
		Occlusion: maxOcclusion(p.Occlusion, other.Occlusion),
	}
}

// Scale multiplies translation and roll, pitch, yaw by s.
func (p Pose) Scale(s float64) Pose {
	return Pose{
		Timestamp: p.Timestamp,
		Transform: spatialmath.PoseScale(p.Transform, s),
		Occlusion: p.Occlusion,
	}
}

func maxOcclusion(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Max(a, b)
}
