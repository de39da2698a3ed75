package backproject

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/evimo/annotation"
	"go.viam.com/evimo/calibration"
	"go.viam.com/evimo/config"
	"go.viam.com/evimo/dataset"
	"go.viam.com/evimo/events"
	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/pointcloud"
	"go.viam.com/evimo/rimage"
	"go.viam.com/evimo/rimage/transform"
	"go.viam.com/evimo/spatialmath"
	"go.viam.com/evimo/trajectory"
)

func TestMeanMatch(t *testing.T) {
	cloud := pointcloud.New()
	for i := 0; i < 5; i++ {
		test.That(t, cloud.Set(r3.Vector{X: float64(i) / pixelScale}, pointcloud.NewBasicData()), test.ShouldBeNil)
	}
	tree := pointcloud.ToKDTree(cloud)
	test.That(t, meanMatch(cloud, tree), test.ShouldEqual, 0)

	shifted := pointcloud.New()
	test.That(t, shifted.Set(r3.Vector{Z: 0.1}, pointcloud.NewBasicData()), test.ShouldBeNil)
	test.That(t, meanMatch(shifted, tree), test.ShouldAlmostEqual, 0.01)

	// beyond the match threshold nothing is counted
	far := pointcloud.New()
	test.That(t, far.Set(r3.Vector{Z: 1}, pointcloud.NewBasicData()), test.ShouldBeNil)
	test.That(t, meanMatch(far, tree), test.ShouldEqual, 0)
	test.That(t, meanMatch(nil, tree), test.ShouldEqual, 0)
}

func TestBoundary(t *testing.T) {
	mask := rimage.NewEmptyMask(5, 5)
	mask.Set(2, 2, 2)
	b := boundary(mask)
	test.That(t, len(b), test.ShouldEqual, 1)
	test.That(t, len(b[2]), test.ShouldEqual, 8)
	test.That(t, b[2], test.ShouldNotContain, r3.Vector{X: 2 / pixelScale, Y: 2 / pixelScale})
	test.That(t, b[2], test.ShouldContain, r3.Vector{X: 1 / pixelScale, Y: 3 / pixelScale})
}

// testSession renders a flat square one meter ahead of a static camera and fires events on the
// outline of its mask every 10 ms.
func testSession(t *testing.T) *dataset.Session {
	t.Helper()
	cam, err := transform.NewCameraModel(&transform.PinholeCameraIntrinsics{
		Width: 40, Height: 40, Fx: 40, Fy: 40, Ppx: 20, Ppy: 20,
	}, nil)
	test.That(t, err, test.ShouldBeNil)
	opts := config.Default()
	opts.PoseFilteringWindow = 0
	ext := calibration.NewExtrinsics(r3.Vector{}, spatialmath.EulerAngles{}, nil, calibration.TimeOffsets{})
	s := dataset.New(opts, cam, ext, map[int]bool{1: true}, logging.NewTestLogger(t))

	square := pointcloud.New()
	for y := -10; y <= 10; y++ {
		for z := -10; z <= 10; z++ {
			test.That(t, square.Set(r3.Vector{Y: float64(y) / 100, Z: float64(z) / 100}, pointcloud.NewBasicData()), test.ShouldBeNil)
		}
	}
	s.Clouds[1] = square

	objPose := spatialmath.NewPoseFromPoint(r3.Vector{X: 1})
	s.CameraTrajectory = trajectory.New(0)
	objTj := trajectory.New(0)
	for _, ts := range []float64{0, 0.01, 0.02} {
		s.CameraTrajectory.Add(trajectory.NewPose(ts, spatialmath.NewZeroPose()))
		objTj.Add(trajectory.NewPose(ts, objPose))
	}
	s.ObjectTrajectories[1] = objTj

	scene := annotation.SceneFromSession(s)
	_, mask := annotation.Composite(scene, spatialmath.NewZeroPose(),
		map[int]spatialmath.Pose{1: objPose}, logging.NewTestLogger(t))
	dil := mask.Dilate()
	for ms := 0; ms <= 20; ms += 10 {
		for row := 0; row < mask.Height(); row++ {
			for col := 0; col < mask.Width(); col++ {
				if dil.At(row, col) > mask.At(row, col) {
					s.Events = append(s.Events, events.Event{Row: row, Col: col, Timestamp: int64(ms) * 1000000})
				}
			}
		}
	}
	return s
}

func TestBackprojectorAligned(t *testing.T) {
	ctx := context.Background()
	s := testSession(t)
	b, err := New(ctx, s, config.RefineOptions{Timestamp: 0.01, Window: 0.02}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(b.Frames()), test.ShouldEqual, 3)
	test.That(t, b.EventCloud().Size(), test.ShouldEqual, len(s.Events))

	test.That(t, b.Generate(ctx), test.ShouldBeNil)
	test.That(t, b.ObjectIDs(), test.ShouldResemble, []int{1})
	test.That(t, b.MaskCloud().Size(), test.ShouldBeGreaterThan, 0)
	test.That(t, b.ROICloud().Size(), test.ShouldBeGreaterThan, 0)
	test.That(t, b.Score(), test.ShouldEqual, 0)
	test.That(t, b.InverseScore(), test.ShouldEqual, 0)

	dir := t.TempDir()
	test.That(t, b.SaveClouds(ctx, dir), test.ShouldBeNil)
	back, err := pointcloud.NewFromFile(filepath.Join(dir, "mask_cloud_1.pcd"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Size(), test.ShouldEqual, b.maskClouds[1].Size())
	_, err = pointcloud.NewFromFile(filepath.Join(dir, "raw_cloud.pcd"))
	test.That(t, err, test.ShouldBeNil)
}

func TestEventSlicesSeedEventCloud(t *testing.T) {
	ctx := context.Background()
	s := testSession(t)
	b, err := New(ctx, s, config.RefineOptions{Timestamp: 0.01, Window: 0.02}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	frames := b.Frames()
	perBurst := len(s.Events) / 3
	// a 30 ms slice around 10 ms holds the bursts at 0, 10 and 20 ms
	test.That(t, frames[1].EventLow, test.ShouldEqual, 0)
	test.That(t, frames[1].EventHigh, test.ShouldEqual, len(s.Events))
	// around 20 ms it starts at the 10 ms burst
	test.That(t, frames[2].EventLow, test.ShouldEqual, perBurst)
	want := b.EventCloud().Size()

	// stale slices only slow the search down
	frames[0].EventLow, frames[len(frames)-1].EventHigh = len(s.Events), 0
	test.That(t, b.refreshEventCloud(ctx), test.ShouldBeNil)
	test.That(t, b.EventCloud().Size(), test.ShouldEqual, want)
}

func TestMinimizationStepNeverWorsens(t *testing.T) {
	ctx := context.Background()
	s := testSession(t)
	s.NudgeExtrinsic(calibration.AxisY, 0.03)
	b, err := New(ctx, s, config.RefineOptions{Timestamp: 0.01, Window: 0.02}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, b.Generate(ctx), test.ShouldBeNil)
	before := b.InverseScore()
	test.That(t, b.Refine(ctx, 2, DefaultStep), test.ShouldBeNil)
	test.That(t, b.InverseScore(), test.ShouldBeLessThanOrEqualTo, before)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	test.That(t, b.Refine(cancelled, 1, DefaultStep), test.ShouldNotBeNil)
}

func TestBackprojectorWholeRecording(t *testing.T) {
	s := testSession(t)
	b, err := New(context.Background(), s, config.RefineOptions{Window: -1, Framerate: 100}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.timestamp, test.ShouldAlmostEqual, 0.01)
	test.That(t, b.window, test.ShouldAlmostEqual, 0.02)
	test.That(t, len(b.Frames()), test.ShouldBeGreaterThanOrEqualTo, 2)

	s.Events = nil
	_, err = New(context.Background(), s, config.RefineOptions{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
