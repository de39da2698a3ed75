// Package rimage holds the per-frame depth and mask buffers and their image encodings.
package rimage

import (
	"image"
	"image/color"
	"math"
)

// DepthMap is a row-major buffer of ranges in meters. Zero means no surface.
type DepthMap struct {
	width  int
	height int

	data []float32
}

// NewEmptyDepthMap returns a zeroed depth map.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{width: width, height: height, data: make([]float32, width*height)}
}

// Width returns the number of columns.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DepthMap) Height() int {
	return dm.height
}

// At returns the range at (row, col).
func (dm *DepthMap) At(row, col int) float32 {
	return dm.data[row*dm.width+col]
}

// Set stores the range at (row, col).
func (dm *DepthMap) Set(row, col int, v float32) {
	dm.data[row*dm.width+col] = v
}

// MinMax returns the smallest and largest non-zero ranges. Both are zero for an empty map.
func (dm *DepthMap) MinMax() (float32, float32) {
	lo, hi := float32(math.MaxFloat32), float32(0)
	for _, v := range dm.data {
		if v <= 0 {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == 0 {
		return 0, 0
	}
	return lo, hi
}

// ToGray16 encodes ranges as millimeters.
func (dm *DepthMap) ToGray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, dm.width, dm.height))
	for row := 0; row < dm.height; row++ {
		for col := 0; col < dm.width; col++ {
			mm := math.Round(float64(dm.At(row, col)) * 1000)
			if mm > math.MaxUint16 {
				mm = math.MaxUint16
			}
			if mm < 0 {
				mm = 0
			}
			img.SetGray16(col, row, color.Gray16{Y: uint16(mm)})
		}
	}
	return img
}

// Mask is a row-major buffer of object ids. Zero means background or empty.
type Mask struct {
	width  int
	height int

	data []uint8
}

// NewEmptyMask returns a zeroed mask.
func NewEmptyMask(width, height int) *Mask {
	return &Mask{width: width, height: height, data: make([]uint8, width*height)}
}

// Width returns the number of columns.
func (m *Mask) Width() int {
	return m.width
}

// Height returns the number of rows.
func (m *Mask) Height() int {
	return m.height
}

// At returns the id at (row, col).
func (m *Mask) At(row, col int) uint8 {
	return m.data[row*m.width+col]
}

// Set stores the id at (row, col).
func (m *Mask) Set(row, col int, id uint8) {
	m.data[row*m.width+col] = id
}

// Dilate returns the 3x3 maximum filter of the mask.
func (m *Mask) Dilate() *Mask {
	out := NewEmptyMask(m.width, m.height)
	for row := 0; row < m.height; row++ {
		for col := 0; col < m.width; col++ {
			var best uint8
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					r, c := row+dr, col+dc
					if r < 0 || c < 0 || r >= m.height || c >= m.width {
						continue
					}
					if v := m.At(r, c); v > best {
						best = v
					}
				}
			}
			out.Set(row, col, best)
		}
	}
	return out
}

// ToGray encodes the raw ids.
func (m *Mask) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.width, m.height))
	for row := 0; row < m.height; row++ {
		for col := 0; col < m.width; col++ {
			img.SetGray(col, row, color.Gray{Y: m.At(row, col)})
		}
	}
	return img
}
