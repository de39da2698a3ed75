package pointcloud

import (
	"image/color"
	"io"

	"github.com/chenzhekl/goply"
	"github.com/pkg/errors"
)

// ReadPLY reads the vertices of an ascii PLY file, with their colors when present. Faces are
// ignored.
func ReadPLY(in io.Reader) (pc PointCloud, err error) {
	// the ply parser panics on malformed input
	defer func() {
		if r := recover(); r != nil {
			pc = nil
			err = errors.Errorf("invalid ply: %v", r)
		}
	}()

	ply := goply.New(in)
	vertices := ply.Elements("vertex")
	if len(vertices) == 0 {
		return nil, errors.New("ply has no vertices")
	}
	pc = NewWithPrealloc(len(vertices))
	for i, v := range vertices {
		x, errX := plyFloat(v, "x")
		y, errY := plyFloat(v, "y")
		z, errZ := plyFloat(v, "z")
		if errX != nil || errY != nil || errZ != nil {
			return nil, errors.Errorf("vertex %d is missing a coordinate", i)
		}
		d := NewBasicData()
		if r, ok := v.Property("red").(uint8); ok {
			g, _ := v.Property("green").(uint8)
			b, _ := v.Property("blue").(uint8)
			d = NewColoredData(color.NRGBA{r, g, b, 255})
		}
		if err := pc.Set(NewVector(x, y, z), d); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func plyFloat(elem goply.PlyElement, name string) (float64, error) {
	switch v := elem.Property(name).(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int32:
		return float64(v), nil
	case nil:
		return 0, errors.Errorf("missing property %s", name)
	default:
		return 0, errors.Errorf("unsupported type %T for property %s", v, name)
	}
}
