package calibration

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/rimage/transform"
	"go.viam.com/evimo/spatialmath"
)

// Calibration file names inside a dataset folder.
const (
	IntrinsicsFile = "calib.txt"
	ExtrinsicsFile = "extrinsics.txt"
)

type floatReader struct {
	scanner *bufio.Scanner
}

func newFloatReader(r io.Reader) *floatReader {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	return &floatReader{scanner: scanner}
}

// next returns the next number. ok is false at the end of input or on a token that is not a
// number.
func (fr *floatReader) next() (float64, bool) {
	if !fr.scanner.Scan() {
		return 0, false
	}
	v, err := strconv.ParseFloat(fr.scanner.Text(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (fr *floatReader) nextN(n int) ([]float64, bool) {
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v, ok := fr.next()
		if !ok {
			return out, false
		}
		out = append(out, v)
	}
	return out, true
}

// ParseIntrinsics reads `fx fy cx cy [k1 k2 k3 k4]` and builds the camera model for a sensor of
// the given rows and columns.
func ParseIntrinsics(r io.Reader, rows, cols int) (*transform.CameraModel, error) {
	fr := newFloatReader(r)
	vals, ok := fr.nextN(4)
	if !ok {
		return nil, errors.New("expected a single line containing fx fy cx cy {k1 k2 k3 k4}")
	}
	ks, _ := fr.nextN(4)
	dist, err := transform.NewRationalRadial(ks)
	if err != nil {
		return nil, err
	}
	return transform.NewCameraModel(&transform.PinholeCameraIntrinsics{
		Width:  cols,
		Height: rows,
		Fx:     vals[0],
		Fy:     vals[1],
		Ppx:    vals[2],
		Ppy:    vals[3],
	}, dist)
}

// ParseExtrinsics reads `x y z R P Y`, then the background placement `x y z qw qx qy qz`, then
// the optional pose-to-event and image-to-event time offsets. Missing offsets are zero.
func ParseExtrinsics(r io.Reader, logger logging.Logger) (*Extrinsics, error) {
	fr := newFloatReader(r)
	cam, ok := fr.nextN(6)
	if !ok {
		return nil, errors.New("camera to tracking frame is supposed to be in <x y z R P Y> format")
	}
	bg, ok := fr.nextN(7)
	if !ok {
		return nil, errors.New("background to tracking frame is supposed to be in <x y z Qw Qx Qy Qz> format")
	}

	var offsets TimeOffsets
	if offsets.PoseToEvent, ok = fr.next(); !ok {
		logger.Warn("pose to event time offset is not specified; setting to 0")
	}
	if offsets.ImageToEvent, ok = fr.next(); !ok {
		logger.Warn("image to event time offset is not specified; setting to 0")
	}

	background := spatialmath.NewPose(
		r3.Vector{X: bg[0], Y: bg[1], Z: bg[2]},
		spatialmath.NewQuaternion(bg[3], bg[4], bg[5], bg[6]),
	)
	return NewExtrinsics(
		r3.Vector{X: cam[0], Y: cam[1], Z: cam[2]},
		spatialmath.EulerAngles{Roll: cam[3], Pitch: cam[4], Yaw: cam[5]},
		background,
		offsets,
	), nil
}

// ReadIntrinsicsFile opens and parses an intrinsics file.
func ReadIntrinsicsFile(path string, rows, cols int) (*transform.CameraModel, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open camera intrinsic calibration file")
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	cm, err := ParseIntrinsics(f, rows, cols)
	if err != nil {
		return nil, errors.Wrapf(err, "camera calibration read error in %q", path)
	}
	return cm, nil
}

// ReadExtrinsicsFile opens and parses an extrinsics file.
func ReadExtrinsicsFile(path string, logger logging.Logger) (*Extrinsics, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open extrinsic calibration file")
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	e, err := ParseExtrinsics(f, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "extrinsic calibration read error in %q", path)
	}
	return e, nil
}
