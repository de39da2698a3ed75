// Package spatialmath defines rigid poses and the orientation parameterizations used by
// trajectories, calibration and point cloud transforms.
package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Orientation is an interface used to express the different parameterizations of the orientation
// of a rigid object or a frame of reference in 3D Euclidean space.
type Orientation interface {
	Quaternion() quat.Number
	EulerAngles() *EulerAngles
}

// NewZeroOrientation returns an orientatation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &quaternion{1, 0, 0, 0}
}

// OrientationAlmostEqual will return a bool describing whether 2 orientations are approximately equal.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), 1e-5)
}

// QuaternionAlmostEqual is an equality test for two quaternions which also accepts q == -p.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	near := func(a, b quat.Number) bool {
		return math.Abs(a.Real-b.Real) <= tol &&
			math.Abs(a.Imag-b.Imag) <= tol &&
			math.Abs(a.Jmag-b.Jmag) <= tol &&
			math.Abs(a.Kmag-b.Kmag) <= tol
	}
	return near(a, b) || near(a, quat.Scale(-1, b))
}

type quaternion quat.Number

// NewQuaternion returns the orientation for the given quaternion, normalized.
func NewQuaternion(w, x, y, z float64) Orientation {
	q := Normalize(quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z})
	return (*quaternion)(&q)
}

func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

func (q *quaternion) EulerAngles() *EulerAngles {
	return QuatToEulerAngles(quat.Number(*q))
}

// Normalize scales a quaternion to unit length. The zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/norm, q)
}

// EulerAngles are roll, pitch and yaw in radians applied about the fixed x, y and z axes in
// that order, so that R = Rz(yaw) * Ry(pitch) * Rx(roll).
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// NewEulerAngles returns zero rotation.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{}
}

// EulerAngles returns itself.
func (ea *EulerAngles) EulerAngles() *EulerAngles {
	return ea
}

// Quaternion converts the angles to a unit quaternion.
func (ea *EulerAngles) Quaternion() quat.Number {
	cr, sr := math.Cos(ea.Roll/2), math.Sin(ea.Roll/2)
	cp, sp := math.Cos(ea.Pitch/2), math.Sin(ea.Pitch/2)
	cy, sy := math.Cos(ea.Yaw/2), math.Sin(ea.Yaw/2)

	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// QuatToEulerAngles converts a unit quaternion to roll, pitch and yaw. The pitch argument is
// clamped so gimbal lock yields ±pi/2 instead of NaN.
func QuatToEulerAngles(q quat.Number) *EulerAngles {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	return &EulerAngles{
		Roll:  math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y)),
		Pitch: pitch,
		Yaw:   math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z)),
	}
}
