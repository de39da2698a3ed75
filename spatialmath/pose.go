package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a 6dof rigid transform: a translation and an orientation.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point r3.Vector
	q     quat.Number
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return &pose{q: quat.Number{Real: 1}}
}

// NewPose builds a pose from a translation and an orientation.
func NewPose(point r3.Vector, o Orientation) Pose {
	if o == nil {
		o = NewZeroOrientation()
	}
	return &pose{point: point, q: Normalize(o.Quaternion())}
}

// NewPoseFromPoint builds a translation-only pose.
func NewPoseFromPoint(point r3.Vector) Pose {
	return &pose{point: point, q: quat.Number{Real: 1}}
}

func (p *pose) Point() r3.Vector {
	return p.point
}

func (p *pose) Orientation() Orientation {
	q := quaternion(p.q)
	return &q
}

func (p *pose) String() string {
	ea := QuatToEulerAngles(p.q)
	return fmt.Sprintf("{X:%.4f Y:%.4f Z:%.4f R:%.4f P:%.4f Y:%.4f}",
		p.point.X, p.point.Y, p.point.Z, ea.Roll, ea.Pitch, ea.Yaw)
}

// Compose returns the transform a * b, i.e. b expressed in the frame a is expressed in.
func Compose(a, b Pose) Pose {
	qa := a.Orientation().Quaternion()
	return &pose{
		point: a.Point().Add(rotate(qa, b.Point())),
		q:     Normalize(quat.Mul(qa, b.Orientation().Quaternion())),
	}
}

// PoseInverse returns the inverse transform of p.
func PoseInverse(p Pose) Pose {
	qInv := quat.Conj(p.Orientation().Quaternion())
	return &pose{
		point: rotate(qInv, p.Point()).Mul(-1),
		q:     qInv,
	}
}

// PoseBetween returns the pose of b relative to a, inverse(a) * b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// PoseScale scales translation and roll, pitch and yaw componentwise. It is used to turn a pose
// difference into a rate.
func PoseScale(p Pose, s float64) Pose {
	ea := p.Orientation().EulerAngles()
	scaled := &EulerAngles{Roll: ea.Roll * s, Pitch: ea.Pitch * s, Yaw: ea.Yaw * s}
	return &pose{point: p.Point().Mul(s), q: scaled.Quaternion()}
}

// TransformPoint applies p to a point.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return p.Point().Add(rotate(p.Orientation().Quaternion(), pt))
}

// PoseAlmostEqual checks translation and orientation within a fixed tolerance.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-6)
}

// PoseAlmostEqualEps checks translation within eps and orientation within 1e-5.
func PoseAlmostEqualEps(a, b Pose, eps float64) bool {
	return a.Point().Sub(b.Point()).Norm() <= eps && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}
