package dataset

import (
	"image"

	"go.viam.com/evimo/spatialmath"
)

// PoseSample is one tracker message as recorded, stamped by the tracker clock in seconds.
type PoseSample struct {
	Stamp     float64
	Transform spatialmath.Pose
	// Occluded is set when the tracker lost the whole subject.
	Occluded        bool
	OccludedMarkers int
	TotalMarkers    int
}

// EventSample is one sensor event, stamped by the sensor clock in nanoseconds.
type EventSample struct {
	X, Y     int
	Stamp    int64
	Polarity bool
}

// EventMessage is a batch of events and the host time in nanoseconds it was received at.
type EventMessage struct {
	Received int64
	Width    int
	Height   int
	Events   []EventSample
}

// ImageSample is one camera image stamped by the host clock in seconds.
type ImageSample struct {
	Stamp float64
	Image image.Image
}

// Streams are the raw recorded streams of a sequence, each in arrival order.
type Streams struct {
	Camera        []PoseSample
	Objects       map[int][]PoseSample
	EventMessages []EventMessage
	Images        []ImageSample
}
