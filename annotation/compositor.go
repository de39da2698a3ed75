// Package annotation renders per-frame depth and instance masks from object and background
// clouds.
package annotation

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"go.viam.com/evimo/dataset"
	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/pointcloud"
	"go.viam.com/evimo/rimage"
	"go.viam.com/evimo/rimage/transform"
	"go.viam.com/evimo/spatialmath"
	"go.viam.com/evimo/trajectory"
)

const (
	// minRange is the smallest range that is drawn and the value below which a pixel is unset.
	minRange = 0.001

	backgroundSplat = 5.0
	objectSplat     = 1.0
)

// Scene is everything a frame is rendered from. It is read only while frames are generated.
type Scene struct {
	Camera *transform.CameraModel
	// Extrinsic is the camera extrinsic fixed for the whole generation pass.
	Extrinsic spatialmath.Pose

	Background pointcloud.PointCloud
	Clouds     map[int]pointcloud.PointCloud

	CameraTrajectory   *trajectory.Trajectory
	ObjectTrajectories map[int]*trajectory.Trajectory
}

// SceneFromSession snapshots the session for one generation pass.
func SceneFromSession(s *dataset.Session) *Scene {
	return &Scene{
		Camera:             s.Camera,
		Extrinsic:          s.Extrinsics.Camera(),
		Background:         s.Background,
		Clouds:             s.Clouds,
		CameraTrajectory:   s.CameraTrajectory,
		ObjectTrajectories: s.ObjectTrajectories,
	}
}

// splatter writes points into one depth and mask pair.
type splatter struct {
	camera *transform.CameraModel
	depth  *rimage.DepthMap
	mask   *rimage.Mask
}

func (sp *splatter) splat(p r3.Vector, id uint8, scale float64) {
	rng := p.X
	if rng < minRange {
		return
	}
	fr, fc, ok := sp.camera.Project(p)
	if !ok {
		return
	}
	rows, cols := sp.camera.Rows(), sp.camera.Cols()
	if fr < 0 || fc < 0 || fr >= float64(rows) || fc >= float64(cols) {
		return
	}
	row, col := int(fr), int(fc)
	half := int(math.Floor(scale / rng))
	v := float32(rng)
	for r := max(0, row-half); r <= min(rows-1, row+half); r++ {
		for c := max(0, col-half); c <= min(cols-1, col+half); c++ {
			mr, mc := rows-1-r, cols-1-c
			if existing := sp.depth.At(mr, mc); existing < minRange || existing > v {
				sp.depth.Set(mr, mc, v)
				sp.mask.Set(mr, mc, id)
			}
		}
	}
}

// Composite renders the background and objects seen from camPose. objPoses maps object ids to
// their poses; an id without a cloud is logged and skipped.
func Composite(scene *Scene, camPose spatialmath.Pose, objPoses map[int]spatialmath.Pose, logger logging.Logger,
) (*rimage.DepthMap, *rimage.Mask) {
	sp := &splatter{
		camera: scene.Camera,
		depth:  rimage.NewEmptyDepthMap(scene.Camera.Cols(), scene.Camera.Rows()),
		mask:   rimage.NewEmptyMask(scene.Camera.Cols(), scene.Camera.Rows()),
	}
	toCamera := spatialmath.PoseInverse(spatialmath.Compose(camPose, scene.Extrinsic))

	if scene.Background != nil {
		m := spatialmath.PoseToMat4(toCamera)
		scene.Background.Iterate(0, 0, func(p r3.Vector, _ pointcloud.Data) bool {
			sp.splat(spatialmath.TransformByMat4(m, p), 0, backgroundSplat)
			return true
		})
	}

	ids := lo.Keys(objPoses)
	sort.Ints(ids)
	for _, id := range ids {
		cloud, ok := scene.Clouds[id]
		if !ok || cloud == nil {
			logger.Warnw("no point cloud for object; skipping", "object", id)
			continue
		}
		m := spatialmath.PoseToMat4(spatialmath.Compose(toCamera, objPoses[id]))
		cloud.Iterate(0, 0, func(p r3.Vector, _ pointcloud.Data) bool {
			sp.splat(spatialmath.TransformByMat4(m, p), uint8(id), objectSplat)
			return true
		})
	}
	return sp.depth, sp.mask
}
