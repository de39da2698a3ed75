package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// NewVector returns the vector (x, y, z).
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// Data is what a cloud stores next to a position: an optional display color and an optional
// integer label, which the annotation clouds use for object ids.
type Data interface {
	HasColor() bool
	RGB255() (uint8, uint8, uint8)
	Color() color.Color
	SetColor(c color.NRGBA) Data

	HasValue() bool
	Value() int
	SetValue(v int) Data
}

// pointData is the only Data implementation. Setters mutate and return the receiver.
type pointData struct {
	rgb   color.NRGBA
	label int
	flags uint8
}

const (
	flagColor uint8 = 1 << iota
	flagLabel
)

// NewBasicData returns data with neither color nor label.
func NewBasicData() Data {
	return &pointData{}
}

// NewColoredData returns data carrying color c.
func NewColoredData(c color.NRGBA) Data {
	return &pointData{rgb: c, flags: flagColor}
}

// NewValueData returns data labelled v.
func NewValueData(v int) Data {
	return &pointData{label: v, flags: flagLabel}
}

func (d *pointData) HasColor() bool { return d.flags&flagColor != 0 }

func (d *pointData) RGB255() (uint8, uint8, uint8) { return d.rgb.R, d.rgb.G, d.rgb.B }

func (d *pointData) Color() color.Color { return d.rgb }

func (d *pointData) SetColor(c color.NRGBA) Data {
	d.rgb = c
	d.flags |= flagColor
	return d
}

func (d *pointData) HasValue() bool { return d.flags&flagLabel != 0 }

func (d *pointData) Value() int { return d.label }

func (d *pointData) SetValue(v int) Data {
	d.label = v
	d.flags |= flagLabel
	return d
}

// PointAndData pairs a position with its data in query results.
type PointAndData struct {
	P r3.Vector
	D Data
}
