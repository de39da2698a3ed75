package ros

import (
	"image"
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/evimo/dataset"
	"go.viam.com/evimo/spatialmath"
)

// Stamp is a ROS time.
type Stamp struct {
	Secs  int64
	Nsecs int64
}

// Nanos returns the stamp in nanoseconds.
func (s Stamp) Nanos() int64 {
	return s.Secs*1e9 + s.Nsecs
}

// Seconds returns the stamp in seconds.
func (s Stamp) Seconds() float64 {
	return float64(s.Secs) + float64(s.Nsecs)/1e9
}

// Header is std_msgs/Header.
type Header struct {
	Seq     int
	Stamp   Stamp
	FrameID string `json:"frame_id"`
}

// Point is geometry_msgs/Point.
type Point struct {
	X float64
	Y float64
	Z float64
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64
	Y float64
	Z float64
	W float64
}

// Marker is one tracked marker of a vicon subject.
type Marker struct {
	Name        string
	SubjectName string `json:"subject_name"`
	Position    Point
	Occluded    bool
}

// SubjectMessage is a vicon/Subject message. Meta holds the time the bag recorded it.
type SubjectMessage struct {
	Meta Stamp
	Data struct {
		Header      Header
		Name        string
		Occluded    bool
		Position    Point
		Orientation Quaternion
		Markers     []Marker
	}
}

// PoseSample converts the subject to a pose stamped by its header.
func (m *SubjectMessage) PoseSample() dataset.PoseSample {
	d := &m.Data
	sample := dataset.PoseSample{
		Stamp:        d.Header.Stamp.Seconds(),
		Occluded:     d.Occluded,
		TotalMarkers: len(d.Markers),
		Transform: spatialmath.NewPose(
			r3.Vector{X: d.Position.X, Y: d.Position.Y, Z: d.Position.Z},
			spatialmath.NewQuaternion(d.Orientation.W, d.Orientation.X, d.Orientation.Y, d.Orientation.Z),
		),
	}
	for _, marker := range d.Markers {
		if marker.Occluded {
			sample.OccludedMarkers++
		}
	}
	return sample
}

// EventArrayMessage is a dvs_msgs/EventArray message.
type EventArrayMessage struct {
	Meta Stamp
	Data struct {
		Header Header
		Height int
		Width  int
		Events []struct {
			X        int
			Y        int
			TS       Stamp `json:"ts"`
			Polarity bool
		}
	}
}

// EventMessage converts the array, keeping the time the bag recorded it as the receive time.
func (m *EventArrayMessage) EventMessage() dataset.EventMessage {
	out := dataset.EventMessage{
		Received: m.Meta.Nanos(),
		Width:    m.Data.Width,
		Height:   m.Data.Height,
		Events:   make([]dataset.EventSample, 0, len(m.Data.Events)),
	}
	for _, e := range m.Data.Events {
		out.Events = append(out.Events, dataset.EventSample{X: e.X, Y: e.Y, Stamp: e.TS.Nanos(), Polarity: e.Polarity})
	}
	return out
}

// ImageMessage is a sensor_msgs/Image message.
type ImageMessage struct {
	Meta Stamp
	Data struct {
		Header      Header
		Height      int
		Width       int
		Encoding    string
		IsBigendian uint8 `json:"is_bigendian"`
		Step        int
		Data        []byte
	}
}

// Image decodes mono8, mono16, rgb8 and bgr8 images.
func (m *ImageMessage) Image() (image.Image, error) {
	d := &m.Data
	rect := image.Rect(0, 0, d.Width, d.Height)
	bpp := map[string]int{"mono8": 1, "8UC1": 1, "mono16": 2, "16UC1": 2, "rgb8": 3, "bgr8": 3}[d.Encoding]
	if bpp == 0 {
		return nil, errors.Errorf("unsupported image encoding %q", d.Encoding)
	}
	step := d.Step
	if step == 0 {
		step = d.Width * bpp
	}
	if step < d.Width*bpp || len(d.Data) < step*d.Height {
		return nil, errors.Errorf("image data too short: %d bytes for %dx%d %s", len(d.Data), d.Width, d.Height, d.Encoding)
	}

	switch bpp {
	case 1:
		img := image.NewGray(rect)
		for y := 0; y < d.Height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+d.Width], d.Data[y*step:])
		}
		return img, nil
	case 2:
		img := image.NewGray16(rect)
		for y := 0; y < d.Height; y++ {
			for x := 0; x < d.Width; x++ {
				lo, hi := d.Data[y*step+2*x], d.Data[y*step+2*x+1]
				if d.IsBigendian != 0 {
					lo, hi = hi, lo
				}
				img.SetGray16(x, y, color.Gray16{Y: uint16(hi)<<8 | uint16(lo)})
			}
		}
		return img, nil
	default:
		img := image.NewNRGBA(rect)
		for y := 0; y < d.Height; y++ {
			for x := 0; x < d.Width; x++ {
				px := d.Data[y*step+3*x : y*step+3*x+3]
				c := color.NRGBA{R: px[0], G: px[1], B: px[2], A: 255}
				if d.Encoding == "bgr8" {
					c.R, c.B = c.B, c.R
				}
				img.SetNRGBA(x, y, c)
			}
		}
		return img, nil
	}
}

// ImageSample converts the image, stamped by its header.
func (m *ImageMessage) ImageSample() (dataset.ImageSample, error) {
	img, err := m.Image()
	if err != nil {
		return dataset.ImageSample{}, err
	}
	return dataset.ImageSample{Stamp: m.Data.Header.Stamp.Seconds(), Image: img}, nil
}
