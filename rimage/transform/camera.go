package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// MinDepth is the smallest depth, along the first axis, that still projects.
const MinDepth = 1e-5

// CameraModel is a pinhole camera with lens distortion.
type CameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               Distorter `json:"distortion"`
}

// NewCameraModel validates intrinsics and distortion. A nil distorter means no distortion.
func NewCameraModel(intrinsics *PinholeCameraIntrinsics, distortion Distorter) (*CameraModel, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if distortion == nil {
		distortion = &RationalRadial{}
	}
	if err := distortion.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "bad distortion")
	}
	return &CameraModel{PinholeCameraIntrinsics: intrinsics, Distortion: distortion}, nil
}

// Normalize returns the undistorted normalized coordinates (pz/px, py/px) of a camera frame
// point, or false when the point is behind or too close to the camera.
func Normalize(p r3.Vector) (float64, float64, bool) {
	if p.X < MinDepth {
		return 0, 0, false
	}
	return p.Z / p.X, p.Y / p.X, true
}

// Project maps a camera frame point to a (row, col) pixel position.
func (cm *CameraModel) Project(p r3.Vector) (float64, float64, bool) {
	x, y, ok := Normalize(p)
	if !ok {
		return 0, 0, false
	}
	x, y = cm.Distortion.Transform(x, y)
	return cm.Fx*x + cm.Ppx, cm.Fy*y + cm.Ppy, true
}

// Unproject maps a (row, col) pixel position back to undistorted normalized coordinates.
func (cm *CameraModel) Unproject(row, col float64) (float64, float64) {
	x := (row - cm.Ppx) / cm.Fx
	y := (col - cm.Ppy) / cm.Fy
	return cm.Distortion.InverseTransform(x, y)
}

// Rows is the buffer height.
func (cm *CameraModel) Rows() int {
	return cm.Height
}

// Cols is the buffer width.
func (cm *CameraModel) Cols() int {
	return cm.Width
}
