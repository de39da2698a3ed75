package calibration

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/spatialmath"
)

func TestSliders(t *testing.T) {
	e := NewExtrinsics(r3.Vector{X: 1, Y: 2, Z: 3}, spatialmath.EulerAngles{}, nil, TimeOffsets{})
	for _, a := range Axes {
		test.That(t, e.Slider(a), test.ShouldEqual, SliderMax/2)
		test.That(t, e.Delta(a), test.ShouldEqual, 0)
	}
	test.That(t, spatialmath.PoseAlmostEqual(e.Camera(), spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Y: 2, Z: 3})), test.ShouldBeTrue)

	e.Nudge(AxisX, 0.001)
	test.That(t, e.Slider(AxisX), test.ShouldEqual, 510)
	test.That(t, e.Delta(AxisX), test.ShouldAlmostEqual, 0.001)
	test.That(t, e.Camera().Point().X, test.ShouldAlmostEqual, 1.001)

	// quantized to the slider resolution
	e.Nudge(AxisY, 0.00012)
	test.That(t, e.Slider(AxisY), test.ShouldEqual, 501)

	// clamped to the slider range
	e.Nudge(AxisYaw, 1)
	test.That(t, e.Slider(AxisYaw), test.ShouldEqual, SliderMax)
	test.That(t, e.Delta(AxisYaw), test.ShouldAlmostEqual, 0.05)
	e.SetSlider(AxisZ, -20)
	test.That(t, e.Slider(AxisZ), test.ShouldEqual, 0)
	test.That(t, e.Delta(AxisZ), test.ShouldAlmostEqual, -0.05)

	e.Reset()
	test.That(t, e.Slider(AxisYaw), test.ShouldEqual, SliderMax/2)
	test.That(t, e.Camera().Point().X, test.ShouldAlmostEqual, 1)
}

func TestApplyFoldsDelta(t *testing.T) {
	e := NewExtrinsics(r3.Vector{X: 1}, spatialmath.EulerAngles{Yaw: math.Pi / 2}, nil, TimeOffsets{})
	e.Nudge(AxisX, 0.01)
	e.Nudge(AxisRoll, 0.02)
	before := e.Camera()
	// the delta is expressed in the base frame
	test.That(t, before.Point().X, test.ShouldAlmostEqual, 1)
	test.That(t, before.Point().Y, test.ShouldAlmostEqual, 0.01)

	e.Apply()
	for _, a := range Axes {
		test.That(t, e.Slider(a), test.ShouldEqual, SliderMax/2)
	}
	test.That(t, spatialmath.PoseAlmostEqual(e.Camera(), before), test.ShouldBeTrue)
	_, rpy := e.Base()
	test.That(t, rpy.Yaw, test.ShouldAlmostEqual, math.Pi/2)
}

func TestTimeOffsets(t *testing.T) {
	e := NewExtrinsics(r3.Vector{}, spatialmath.EulerAngles{}, nil, TimeOffsets{PoseToEvent: 0.1, ImageToEvent: 0.02})
	test.That(t, e.PoseToEvent(), test.ShouldAlmostEqual, 0.1)
	test.That(t, e.EventToHost(), test.ShouldAlmostEqual, -0.02)
	test.That(t, e.PoseToHost(), test.ShouldAlmostEqual, 0.08)

	e.SetTimeSliders(600, 2000)
	pose, image := e.TimeSliders()
	test.That(t, pose, test.ShouldEqual, 600)
	test.That(t, image, test.ShouldEqual, SliderMax)
	test.That(t, e.PoseToEvent(), test.ShouldAlmostEqual, 0.12)
	test.That(t, e.ImageToEvent(), test.ShouldAlmostEqual, 0.12)
}

func TestParseIntrinsics(t *testing.T) {
	cm, err := ParseIntrinsics(strings.NewReader("200 210 130 173\n"), 260, 346)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.Fx, test.ShouldEqual, 200)
	test.That(t, cm.Ppy, test.ShouldEqual, 173)
	test.That(t, cm.Rows(), test.ShouldEqual, 260)
	test.That(t, cm.Cols(), test.ShouldEqual, 346)
	test.That(t, cm.Distortion.Parameters(), test.ShouldResemble, []float64{0, 0, 0, 0})

	cm, err = ParseIntrinsics(strings.NewReader("200 210 130 173 0.1 -0.01 0.001 0.2"), 260, 346)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.Distortion.Parameters(), test.ShouldResemble, []float64{0.1, -0.01, 0.001, 0.2})

	_, err = ParseIntrinsics(strings.NewReader("200 210 130"), 260, 346)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ParseIntrinsics(strings.NewReader("-1 210 130 173"), 260, 346)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseExtrinsics(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	e, err := ParseExtrinsics(strings.NewReader("0.1 0.2 0.3 0 0 1.5\n1 2 3 1 0 0 0\n0.05 -0.01\n"), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessageSnippet("not specified").Len(), test.ShouldEqual, 0)
	tr, rpy := e.Base()
	test.That(t, tr, test.ShouldResemble, r3.Vector{X: 0.1, Y: 0.2, Z: 0.3})
	test.That(t, rpy.Yaw, test.ShouldEqual, 1.5)
	test.That(t, e.Background().Point(), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, e.PoseToEvent(), test.ShouldAlmostEqual, 0.05)
	test.That(t, e.ImageToEvent(), test.ShouldAlmostEqual, -0.01)

	e, err = ParseExtrinsics(strings.NewReader("0.1 0.2 0.3 0 0 1.5\n1 2 3 1 0 0 0\n"), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessageSnippet("not specified").Len(), test.ShouldEqual, 2)
	test.That(t, e.PoseToEvent(), test.ShouldEqual, 0)

	_, err = ParseExtrinsics(strings.NewReader("0.1 0.2 0.3 0 0 1.5\n1 2 3\n"), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Qw")
	_, err = ParseExtrinsics(strings.NewReader("0.1 0.2"), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadFiles(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	_, err := ReadIntrinsicsFile(filepath.Join(dir, IntrinsicsFile), 260, 346)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadExtrinsicsFile(filepath.Join(dir, ExtrinsicsFile), logger)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, os.WriteFile(filepath.Join(dir, IntrinsicsFile), []byte("1 1 1 1"), 0o600), test.ShouldBeNil)
	_, err = ReadIntrinsicsFile(filepath.Join(dir, IntrinsicsFile), 260, 346)
	test.That(t, err, test.ShouldBeNil)
}

func TestWriteExtrinsics(t *testing.T) {
	logger := logging.NewTestLogger(t)
	e, err := ParseExtrinsics(strings.NewReader("0.1 0.2 0.3 0 0 1.5\n1 2 3 1 0 0 0\n0.05 -0.01\n"), logger)
	test.That(t, err, test.ShouldBeNil)
	e.Nudge(AxisX, 0.01)

	fn := filepath.Join(t.TempDir(), ExtrinsicsFile)
	test.That(t, WriteExtrinsicsFile(fn, e), test.ShouldBeNil)
	back, err := ReadExtrinsicsFile(fn, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqualEps(back.Camera(), e.Camera(), 1e-6), test.ShouldBeTrue)
	test.That(t, back.Background().Point(), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, back.PoseToEvent(), test.ShouldAlmostEqual, 0.05)
	test.That(t, back.ImageToEvent(), test.ShouldAlmostEqual, -0.01)
}

func TestExtrinsicsTable(t *testing.T) {
	e := NewExtrinsics(r3.Vector{X: 0.5}, spatialmath.EulerAngles{Yaw: math.Pi / 2}, nil, TimeOffsets{PoseToEvent: 0.02})
	e.Nudge(AxisZ, 0.03)
	out := e.Table()
	test.That(t, out, test.ShouldContainSubstring, "base")
	test.That(t, out, test.ShouldContainSubstring, "0.5000")
	test.That(t, out, test.ShouldContainSubstring, "90.000")
	test.That(t, out, test.ShouldContainSubstring, "0.0300")
	test.That(t, out, test.ShouldContainSubstring, "0.0200s")
}
