package annotation

import (
	"context"
	"image"
	"image/color"
	"sort"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"go.viam.com/evimo/align"
	"go.viam.com/evimo/dataset"
	"go.viam.com/evimo/events"
	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/rimage"
	"go.viam.com/evimo/spatialmath"
	"go.viam.com/evimo/trajectory"
)

// Frame is one output frame: its synchronized indices and, once generated, its buffers. A
// frame owns its buffers.
type Frame struct {
	align.FrameSpec

	Depth *rimage.DepthMap
	Mask  *rimage.Mask
}

// NewFrames wraps synchronized frame specs.
func NewFrames(specs []align.FrameSpec) []*Frame {
	return lo.Map(specs, func(spec align.FrameSpec, _ int) *Frame {
		return &Frame{FrameSpec: spec}
	})
}

// ObjectIDs returns the ids of the objects matched to the frame, ascending.
func (f *Frame) ObjectIDs() []int {
	ids := lo.Keys(f.ObjectIndices)
	sort.Ints(ids)
	return ids
}

// CameraPose is the smoothed camera pose of the frame.
func (f *Frame) CameraPose(scene *Scene) trajectory.Pose {
	return scene.CameraTrajectory.At(f.CameraIndex)
}

// ObjectPose is the smoothed pose of one matched object.
func (f *Frame) ObjectPose(scene *Scene, id int) trajectory.Pose {
	return scene.ObjectTrajectories[id].At(f.ObjectIndices[id])
}

var (
	positiveEventColor = color.RGBA{R: 255, G: 40, B: 0, A: 255}
	negativeEventColor = color.RGBA{R: 0, G: 20, B: 255, A: 255}
)

// Events returns the frame's slice of evs as a view. The view is empty when the slice is.
func (f *Frame) Events(evs events.Array) (trajectory.View, error) {
	if f.EventHigh <= f.EventLow {
		return trajectory.View{}, nil
	}
	return trajectory.Slice(evs, f.EventLow, f.EventHigh-1)
}

// DrawEvents marks every event of the frame's slice on img at its pixel, positive events in
// red and negative ones in blue.
func (f *Frame) DrawEvents(img *image.RGBA, evs events.Array) error {
	view, err := f.Events(evs)
	if err != nil {
		return err
	}
	for k := 0; k < view.Len(); k++ {
		e := evs[view.Index(k)]
		if !image.Pt(e.Col, e.Row).In(img.Bounds()) {
			continue
		}
		c := negativeEventColor
		if e.Polarity > 0 {
			c = positiveEventColor
		}
		img.SetRGBA(e.Col, e.Row, c)
	}
	return nil
}

// Generate renders the frame's depth and mask, replacing earlier buffers.
func (f *Frame) Generate(scene *Scene, logger logging.Logger) {
	objPoses := make(map[int]spatialmath.Pose, len(f.ObjectIndices))
	for id := range f.ObjectIndices {
		objPoses[id] = f.ObjectPose(scene, id).Transform
	}
	f.Depth, f.Mask = Composite(scene, f.CameraPose(scene).Transform, objPoses, logger.With("frame", f.ID))
}

// GenerateAll renders every frame concurrently, one task per frame, and returns once all are
// done. The scene must not change until it returns.
func GenerateAll(ctx context.Context, scene *Scene, frames []*Frame, logger logging.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range frames {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f.Generate(scene, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Infow("generated ground truth", "frames", len(frames))
	return nil
}

// Viewer regenerates a frame lazily as the session is tuned.
type Viewer struct {
	session *dataset.Session
	frames  []*Frame
	current int
	logger  logging.Logger
}

// NewViewer returns a viewer on the first frame. The first Refresh always renders.
func NewViewer(session *dataset.Session, frames []*Frame, logger logging.Logger) *Viewer {
	session.MarkModified()
	return &Viewer{session: session, frames: frames, logger: logger}
}

// Select moves to frame i, clamped to the available frames.
func (v *Viewer) Select(i int) {
	i = max(0, min(i, len(v.frames)-1))
	if i != v.current {
		v.current = i
		v.session.MarkModified()
	}
}

// Current returns the selected frame, or nil when there are none.
func (v *Viewer) Current() *Frame {
	if len(v.frames) == 0 {
		return nil
	}
	return v.frames[v.current]
}

// Refresh regenerates the selected frame if the session changed since the last refresh and
// reports whether it did.
func (v *Viewer) Refresh() bool {
	f := v.Current()
	if f == nil || !v.session.ConsumeModified() {
		return false
	}
	// the slice width may have been tuned
	f.EventLow, f.EventHigh = v.session.Events.Window(f.Timestamp, v.session.SliceWidth(), f.EventLow, f.EventHigh)
	f.Generate(SceneFromSession(v.session), v.logger)
	return true
}
