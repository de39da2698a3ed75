package pointcloud

import (
	"github.com/golang/geo/r3"

	"go.viam.com/evimo/spatialmath"
)

// ApplyPose returns a new cloud with every point moved by pose. Data is shared.
func ApplyPose(cloud PointCloud, pose spatialmath.Pose) (PointCloud, error) {
	m := spatialmath.PoseToMat4(pose)
	out := NewWithPrealloc(cloud.Size())
	var err error
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		err = out.Set(spatialmath.TransformByMat4(m, p), d)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
