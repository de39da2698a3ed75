package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// PoseToMat4 returns the homogeneous matrix of p. Transforming many points through one matrix
// avoids a quaternion sandwich per point.
func PoseToMat4(p Pose) mgl64.Mat4 {
	q := p.Orientation().Quaternion()
	rot := mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}.Mat4()
	pt := p.Point()
	return mgl64.Translate3D(pt.X, pt.Y, pt.Z).Mul4(rot)
}

// TransformByMat4 applies a homogeneous matrix to a point.
func TransformByMat4(m mgl64.Mat4, pt r3.Vector) r3.Vector {
	out := m.Mul4x1(mgl64.Vec4{pt.X, pt.Y, pt.Z, 1})
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}
}
