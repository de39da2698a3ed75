package pointcloud

import (
	"bytes"
	"context"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/evimo/spatialmath"
)

func TestPointCloudBasic(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(NewVector(1, 2, 3), NewValueData(2)), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(-1, 0, 5), NewColoredData(color.NRGBA{1, 2, 3, 255})), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)

	// same position replaces data
	test.That(t, pc.Set(NewVector(1, 2, 3), NewValueData(7)), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	d, ok := pc.At(1, 2, 3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d.Value(), test.ShouldEqual, 7)
	_, ok = pc.At(0, 0, 0)
	test.That(t, ok, test.ShouldBeFalse)

	meta := pc.MetaData()
	test.That(t, meta.HasColor, test.ShouldBeTrue)
	test.That(t, meta.HasValue, test.ShouldBeTrue)
	test.That(t, meta.MinX, test.ShouldEqual, -1)
	test.That(t, meta.MaxZ, test.ShouldEqual, 5)

	count := 0
	for batch := 0; batch < 3; batch++ {
		pc.Iterate(3, batch, func(p r3.Vector, d Data) bool {
			count++
			return true
		})
	}
	test.That(t, count, test.ShouldEqual, 2)
}

func TestApplyPose(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(NewVector(1, 0, 0), NewValueData(1)), test.ShouldBeNil)
	pose := spatialmath.NewPose(r3.Vector{Z: 2}, &spatialmath.EulerAngles{Yaw: math.Pi / 2})
	moved, err := ApplyPose(pc, pose)
	test.That(t, err, test.ShouldBeNil)
	pts := Points(moved)
	test.That(t, len(pts), test.ShouldEqual, 1)
	test.That(t, pts[0].P.X, test.ShouldAlmostEqual, 0)
	test.That(t, pts[0].P.Y, test.ShouldAlmostEqual, 1)
	test.That(t, pts[0].P.Z, test.ShouldAlmostEqual, 2)
	test.That(t, pts[0].D.Value(), test.ShouldEqual, 1)
}

func gridCloud(n int, step float64) PointCloud {
	pc := New()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			_ = pc.Set(NewVector(float64(i)*step, float64(j)*step, 0), NewValueData(i*n+j))
		}
	}
	return pc
}

func TestKDTree(t *testing.T) {
	kd := ToKDTree(gridCloud(10, 1))
	test.That(t, kd.Size(), test.ShouldEqual, 100)

	p, d, dist2, ok := kd.NearestNeighbor(NewVector(3.2, 4.9, 0.5))
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p, test.ShouldResemble, NewVector(3, 5, 0))
	test.That(t, d.Value(), test.ShouldEqual, 35)
	test.That(t, dist2, test.ShouldAlmostEqual, 0.04+0.01+0.25)

	within := kd.RadiusNearestNeighbors(NewVector(5, 5, 0), 1.01, true)
	test.That(t, len(within), test.ShouldEqual, 5)
	test.That(t, within[0].P, test.ShouldResemble, NewVector(5, 5, 0))
	within = kd.RadiusNearestNeighbors(NewVector(5, 5, 0), 1.01, false)
	test.That(t, len(within), test.ShouldEqual, 4)

	knn := kd.KNearestNeighbors(NewVector(0, 0, 0), 3, false)
	test.That(t, len(knn), test.ShouldEqual, 3)
	test.That(t, knn[0].P.Norm(), test.ShouldEqual, 1)
	test.That(t, knn[2].P.Norm(), test.ShouldAlmostEqual, math.Sqrt2)

	empty := ToKDTree(New())
	_, _, _, ok = empty.NearestNeighbor(NewVector(0, 0, 0))
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, empty.RadiusNearestNeighbors(NewVector(0, 0, 0), 1, true), test.ShouldBeEmpty)
}

func TestRadiusOutlierFilter(t *testing.T) {
	pc := gridCloud(5, 0.01)
	test.That(t, pc.Set(NewVector(10, 10, 10), NewBasicData()), test.ShouldBeNil)

	filtered, err := RadiusOutlierFilter(context.Background(), pc, 0.025, 4)
	test.That(t, err, test.ShouldBeNil)
	_, ok := filtered.At(10, 10, 10)
	test.That(t, ok, test.ShouldBeFalse)
	// every grid point has at least four neighbours inside 2.5 steps
	test.That(t, filtered.Size(), test.ShouldEqual, 25)
}

func TestPCDRoundTrip(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(NewVector(0.5, -1.25, 2), NewColoredData(color.NRGBA{10, 20, 30, 255})), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(1, 2, 3), NewColoredData(color.NRGBA{200, 100, 0, 255})), test.ShouldBeNil)

	for _, kind := range []PCDType{PCDAscii, PCDBinary} {
		var buf bytes.Buffer
		test.That(t, ToPCD(pc, &buf, kind), test.ShouldBeNil)
		back, err := ReadPCD(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.Size(), test.ShouldEqual, 2)
		d, ok := back.At(0.5, -1.25, 2)
		test.That(t, ok, test.ShouldBeTrue)
		r, g, b := d.RGB255()
		test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{10, 20, 30})
	}

	fn := filepath.Join(t.TempDir(), "cloud.pcd")
	test.That(t, WriteToPCDFile(pc, fn, PCDBinary), test.ShouldBeNil)
	back, err := NewFromFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Size(), test.ShouldEqual, 2)

	var buf bytes.Buffer
	test.That(t, ToPCD(pc, &buf, PCDCompressed), test.ShouldNotBeNil)
}

func TestReadPCDErrors(t *testing.T) {
	_, err := ReadPCD(bytes.NewBufferString("VERSION .6\n"))
	test.That(t, err, test.ShouldNotBeNil)

	bad := "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\nWIDTH 2\nHEIGHT 1\n" +
		"VIEWPOINT 0 0 0 1 0 0 0\nPOINTS 3\nDATA ascii\n"
	_, err = ReadPCD(bytes.NewBufferString(bad))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "POINTS")
}

func TestReadPLY(t *testing.T) {
	ply := "ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\n" +
		"property uchar red\nproperty uchar green\nproperty uchar blue\nend_header\n" +
		"0.5 1 -2 255 0 10\n1 1 1 0 0 0\n"
	pc, err := ReadPLY(bytes.NewBufferString(ply))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	d, ok := pc.At(0.5, 1, -2)
	test.That(t, ok, test.ShouldBeTrue)
	r, g, b := d.RGB255()
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{255, 0, 10})

	_, err = ReadPLY(bytes.NewBufferString("not a ply\n"))
	test.That(t, err, test.ShouldNotBeNil)
}
