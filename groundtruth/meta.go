// Package groundtruth writes the ground_truth folder of a sequence: per frame depth and mask
// PNGs, the aggregate meta.json and the events.txt export.
package groundtruth

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"go.viam.com/evimo/annotation"
	"go.viam.com/evimo/rimage/transform"
	"go.viam.com/evimo/trajectory"
)

// Meta is the global calibration of the sequence.
type Meta struct {
	Fx   float64 `json:"fx"`
	Fy   float64 `json:"fy"`
	Cx   float64 `json:"cx"`
	Cy   float64 `json:"cy"`
	K1   float64 `json:"k1"`
	K2   float64 `json:"k2"`
	K3   float64 `json:"k3"`
	K4   float64 `json:"k4"`
	ResX int     `json:"res_x"`
	ResY int     `json:"res_y"`
}

// Translation is in meters.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RPY is roll, pitch and yaw in radians.
type RPY struct {
	R float64 `json:"r"`
	P float64 `json:"p"`
	Y float64 `json:"y"`
}

// Quaternion is a unit quaternion.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PoseRecord is one pose as written to meta.json. Occlusion is omitted when unknown.
type PoseRecord struct {
	T         Translation `json:"t"`
	RPY       RPY         `json:"rpy"`
	Q         Quaternion  `json:"q"`
	Occlusion *float64    `json:"occlusion,omitempty"`
}

// MotionRecord pairs a pose with its velocity.
type MotionRecord struct {
	Pos PoseRecord  `json:"pos"`
	Vel *PoseRecord `json:"vel,omitempty"`
}

// FrameRecord describes one frame. Objects are keyed by object id.
type FrameRecord struct {
	ID      int                  `json:"id"`
	TS      float64              `json:"ts"`
	Camera  MotionRecord         `json:"cam"`
	Objects map[int]MotionRecord `json:"objects,omitempty"`

	GTFrame string `json:"gt_frame,omitempty"`
	Image   string `json:"classical_frame,omitempty"`
}

// Record is the content of meta.json.
type Record struct {
	Meta           Meta          `json:"meta"`
	Frames         []FrameRecord `json:"frames"`
	FullTrajectory []FrameRecord `json:"full_trajectory"`
}

// NewPoseRecord converts a trajectory pose.
func NewPoseRecord(p trajectory.Pose) PoseRecord {
	t := p.Translation()
	rpy := p.RPY()
	q := p.Quaternion()
	rec := PoseRecord{
		T:   Translation{X: t.X, Y: t.Y, Z: t.Z},
		RPY: RPY{R: rpy.Roll, P: rpy.Pitch, Y: rpy.Yaw},
		Q:   Quaternion{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag},
	}
	if !math.IsNaN(p.Occlusion) {
		occ := p.Occlusion
		rec.Occlusion = &occ
	}
	return rec
}

// MetaFromCamera returns the calibration block for a camera.
func MetaFromCamera(cam *transform.CameraModel) Meta {
	k := make([]float64, 4)
	copy(k, cam.Distortion.Parameters())
	return Meta{
		Fx: cam.Fx, Fy: cam.Fy, Cx: cam.Ppx, Cy: cam.Ppy,
		K1: k[0], K2: k[1], K3: k[2], K4: k[3],
		ResX: cam.Rows(), ResY: cam.Cols(),
	}
}

func motion(tj *trajectory.Trajectory, i int) MotionRecord {
	vel := NewPoseRecord(tj.Velocity(i))
	return MotionRecord{Pos: NewPoseRecord(tj.At(i)), Vel: &vel}
}

// NewFrameRecord describes a generated frame with smoothed poses and velocities.
func NewFrameRecord(scene *annotation.Scene, f *annotation.Frame) FrameRecord {
	rec := FrameRecord{
		ID:      f.ID,
		TS:      f.Timestamp,
		Camera:  motion(scene.CameraTrajectory, f.CameraIndex),
		Objects: make(map[int]MotionRecord, len(f.ObjectIndices)),
		GTFrame: depthName(f.ID),
	}
	if f.HasImage() {
		rec.Image = imageName(f.ID)
	}
	for _, id := range f.ObjectIDs() {
		rec.Objects[id] = motion(scene.ObjectTrajectories[id], f.ObjectIndices[id])
	}
	return rec
}

// FullTrajectory lists every raw camera pose with the object poses nearest to it in time.
func FullTrajectory(scene *annotation.Scene) []FrameRecord {
	ids := lo.Keys(lo.PickBy(scene.ObjectTrajectories, func(_ int, tj *trajectory.Trajectory) bool {
		return tj.Len() > 0
	}))
	sort.Ints(ids)
	hints := make(map[int]int, len(ids))

	cam := scene.CameraTrajectory
	records := make([]FrameRecord, 0, cam.Len())
	for i := 0; i < cam.Len(); i++ {
		p := cam.Raw(i)
		rec := FrameRecord{
			ID:      i,
			TS:      p.Timestamp,
			Camera:  MotionRecord{Pos: NewPoseRecord(p)},
			Objects: make(map[int]MotionRecord, len(ids)),
		}
		for _, id := range ids {
			tj := scene.ObjectTrajectories[id]
			hints[id] = tj.Nearest(p.Timestamp, hints[id])
			rec.Objects[id] = MotionRecord{Pos: NewPoseRecord(tj.Raw(hints[id]))}
		}
		records = append(records, rec)
	}
	return records
}

// NewRecord assembles meta.json for a set of generated frames.
func NewRecord(scene *annotation.Scene, frames []*annotation.Frame) *Record {
	return &Record{
		Meta: MetaFromCamera(scene.Camera),
		Frames: lo.Map(frames, func(f *annotation.Frame, _ int) FrameRecord {
			return NewFrameRecord(scene, f)
		}),
		FullTrajectory: FullTrajectory(scene),
	}
}
