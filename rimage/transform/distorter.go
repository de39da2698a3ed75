package transform

import (
	"math"

	"github.com/pkg/errors"
)

// DistortionType is the name of the distortion model.
type DistortionType string

const (
	// NoDistortionType leaves normalized coordinates untouched.
	NoDistortionType = DistortionType("no_distortion")
	// RationalRadialDistortionType is the radial model with a rational k4 term.
	RationalRadialDistortionType = DistortionType("rational_radial")
)

// Distorter maps undistorted normalized coordinates to distorted ones, and back.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	Transform(x, y float64) (float64, float64)
	InverseTransform(x, y float64) (float64, float64)
}

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrap(errors.New("invalid distortion_parameters"), msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case NoDistortionType, "":
		return &RationalRadial{}, nil
	case RationalRadialDistortionType:
		return NewRationalRadial(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}

// RationalRadial scales normalized coordinates by
// (1 + k1*r² + k2*r⁴ + k3*r⁶) / (1 + k4*r²).
type RationalRadial struct {
	K1 float64 `json:"k1"`
	K2 float64 `json:"k2"`
	K3 float64 `json:"k3"`
	K4 float64 `json:"k4"`
}

// NewRationalRadial takes in up to four coefficients, missing ones are zero.
func NewRationalRadial(inp []float64) (*RationalRadial, error) {
	if len(inp) > 4 {
		return nil, errors.Errorf("list of parameters too long, expected max 4, got %d", len(inp))
	}
	padded := make([]float64, 4)
	copy(padded, inp)
	rr := &RationalRadial{padded[0], padded[1], padded[2], padded[3]}
	return rr, rr.CheckValid()
}

// CheckValid rejects coefficients that are not finite.
func (rr *RationalRadial) CheckValid() error {
	if rr == nil {
		return InvalidDistortionError("RationalRadial shaped distortion_parameters not provided")
	}
	for _, k := range rr.Parameters() {
		if math.IsNaN(k) || math.IsInf(k, 0) {
			return InvalidDistortionError("coefficients must be finite")
		}
	}
	return nil
}

// ModelType returns the type of distortion model.
func (rr *RationalRadial) ModelType() DistortionType {
	return RationalRadialDistortionType
}

// Parameters returns k1, k2, k3, k4.
func (rr *RationalRadial) Parameters() []float64 {
	if rr == nil {
		return []float64{}
	}
	return []float64{rr.K1, rr.K2, rr.K3, rr.K4}
}

func (rr *RationalRadial) factor(r2 float64) float64 {
	return (1 + rr.K1*r2 + rr.K2*r2*r2 + rr.K3*r2*r2*r2) / (1 + rr.K4*r2)
}

// Transform distorts normalized coordinates.
func (rr *RationalRadial) Transform(x, y float64) (float64, float64) {
	if rr == nil {
		return x, y
	}
	dist := rr.factor(x*x + y*y)
	return x * dist, y * dist
}

// InverseTransform undistorts normalized coordinates by fixed point iteration on the radial
// factor. Without distortion it returns its input.
func (rr *RationalRadial) InverseTransform(xd, yd float64) (float64, float64) {
	if rr == nil || (rr.K1 == 0 && rr.K2 == 0 && rr.K3 == 0 && rr.K4 == 0) {
		return xd, yd
	}

	const maxIterations = 20
	const tolerance = 1e-12

	xu, yu := xd, yd
	for i := 0; i < maxIterations; i++ {
		dist := rr.factor(xu*xu + yu*yu)
		if dist == 0 {
			break
		}
		nx, ny := xd/dist, yd/dist
		done := math.Abs(nx-xu) < tolerance && math.Abs(ny-yu) < tolerance
		xu, yu = nx, ny
		if done {
			break
		}
	}
	return xu, yu
}
