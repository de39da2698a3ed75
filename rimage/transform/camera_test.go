package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func testIntrinsics() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{Width: 346, Height: 260, Fx: 200, Fy: 201, Ppx: 130, Ppy: 173}
}

func TestCheckValid(t *testing.T) {
	var missing *PinholeCameraIntrinsics
	test.That(t, errors.Is(missing.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)

	bad := testIntrinsics()
	bad.Fy = 0
	err := bad.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Fy")

	_, err = NewCameraModel(testIntrinsics(), &RationalRadial{K1: math.NaN()})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProjectPinhole(t *testing.T) {
	cm, err := NewCameraModel(testIntrinsics(), nil)
	test.That(t, err, test.ShouldBeNil)

	row, col, ok := cm.Project(r3.Vector{X: 2, Y: 0.5, Z: -0.25})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, row, test.ShouldAlmostEqual, 200*-0.125+130)
	test.That(t, col, test.ShouldAlmostEqual, 201*0.25+173)

	_, _, ok = cm.Project(r3.Vector{X: 0, Y: 1, Z: 1})
	test.That(t, ok, test.ShouldBeFalse)
	_, _, ok = cm.Project(r3.Vector{X: -1, Y: 1, Z: 1})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestProjectDistorted(t *testing.T) {
	rr, err := NewRationalRadial([]float64{0.1, 0.01})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rr.Parameters(), test.ShouldResemble, []float64{0.1, 0.01, 0, 0})
	cm, err := NewCameraModel(testIntrinsics(), rr)
	test.That(t, err, test.ShouldBeNil)

	p := r3.Vector{X: 1, Y: 0.3, Z: 0.4}
	r2 := 0.3*0.3 + 0.4*0.4
	dist := 1 + 0.1*r2 + 0.01*r2*r2
	row, col, ok := cm.Project(p)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, row, test.ShouldAlmostEqual, 200*0.4*dist+130)
	test.That(t, col, test.ShouldAlmostEqual, 201*0.3*dist+173)

	x, y := cm.Unproject(row, col)
	test.That(t, x, test.ShouldAlmostEqual, 0.4, 1e-9)
	test.That(t, y, test.ShouldAlmostEqual, 0.3, 1e-9)

	_, err = NewRationalRadial([]float64{1, 2, 3, 4, 5})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRoundTripWithoutDistortion(t *testing.T) {
	cm, err := NewCameraModel(testIntrinsics(), &RationalRadial{})
	test.That(t, err, test.ShouldBeNil)
	for _, p := range []r3.Vector{{X: 1, Y: 0, Z: 0}, {X: 3, Y: -1, Z: 2}, {X: 0.5, Y: 0.2, Z: -0.1}} {
		wantX, wantY, ok := Normalize(p)
		test.That(t, ok, test.ShouldBeTrue)
		row, col, ok := cm.Project(p)
		test.That(t, ok, test.ShouldBeTrue)
		x, y := cm.Unproject(row, col)
		test.That(t, x, test.ShouldAlmostEqual, wantX)
		test.That(t, y, test.ShouldAlmostEqual, wantY)
	}
}

func TestNewDistorter(t *testing.T) {
	d, err := NewDistorter(RationalRadialDistortionType, []float64{0.2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.ModelType(), test.ShouldEqual, RationalRadialDistortionType)
	_, err = NewDistorter("fisheye", nil)
	test.That(t, err, test.ShouldNotBeNil)
}
