package align

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/evimo/config"
	"go.viam.com/evimo/events"
	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/trajectory"
)

type series []float64

func (s series) Len() int             { return len(s) }
func (s series) TimeAt(i int) float64 { return s[i] }

var cameraTimes = series{0, 0.025, 0.05, 0.075, 0.1}

func defaultOptions() Options {
	return Options{FPS: 40, SliceWidth: 0.03, Tolerance: 0.005, Numbering: config.NumberingSkipAware}
}

func eventsEvery10ms(n int) events.Array {
	evs := make(events.Array, n)
	for i := range evs {
		evs[i] = events.Event{Timestamp: int64(i) * 10000000}
	}
	return evs
}

func TestSynchronizerGrid(t *testing.T) {
	frames := NewSynchronizer(cameraTimes, nil, nil, defaultOptions(), logging.NewTestLogger(t)).Run()
	test.That(t, len(frames), test.ShouldEqual, 4)
	for i, f := range frames {
		test.That(t, f.ID, test.ShouldEqual, i)
		test.That(t, f.Timestamp, test.ShouldAlmostEqual, cameraTimes[i])
		test.That(t, f.CameraIndex, test.ShouldEqual, i)
		test.That(t, f.HasImage(), test.ShouldBeFalse)
		test.That(t, f.ObjectIndices, test.ShouldBeEmpty)
	}
}

func TestSynchronizerStartOffset(t *testing.T) {
	opts := defaultOptions()
	opts.StartTS = 0.2
	frames := NewSynchronizer(cameraTimes, nil, nil, opts, logging.NewTestLogger(t)).Run()
	test.That(t, frames, test.ShouldBeEmpty)

	opts.StartTS = 0.01
	frames = NewSynchronizer(cameraTimes, nil, nil, opts, logging.NewTestLogger(t)).Run()
	test.That(t, len(frames), test.ShouldEqual, 4)
	// the camera cursor lands on the first sample at or after the reference
	test.That(t, frames[0].CameraIndex, test.ShouldEqual, 1)
}

func TestSynchronizerCameraTime(t *testing.T) {
	// a 200 Hz camera whose samples trail the 40 Hz grid by 3 ms
	camera := make(series, 21)
	for i := range camera {
		camera[i] = 0.003 + float64(i)*0.005
	}
	evs := make(events.Array, 12)
	for i := range evs {
		evs[i] = events.Event{Timestamp: int64(i) * 5000000}
	}
	objects := map[int]trajectory.TimeSeries{1: camera}

	frames := NewSynchronizer(camera, objects, evs, defaultOptions(), logging.NewTestLogger(t)).Run()
	test.That(t, len(frames), test.ShouldEqual, 5)
	for i, f := range frames {
		test.That(t, f.CameraIndex, test.ShouldEqual, 5*i)
		test.That(t, f.Timestamp, test.ShouldEqual, camera[f.CameraIndex])
	}
	// ref 3ms: [0, 18ms) holds events at 0, 5, 10, 15 ms
	test.That(t, frames[0].EventLow, test.ShouldEqual, 0)
	test.That(t, frames[0].EventHigh, test.ShouldEqual, 4)
	// ref 28ms: [13ms, 43ms) holds events at 15..40 ms
	test.That(t, frames[1].EventLow, test.ShouldEqual, 3)
	test.That(t, frames[1].EventHigh, test.ShouldEqual, 9)

	// a 3 ms offset against an object sampled on the grid is within tolerance; 6 ms is not
	objects[1] = series{0, 0.025, 0.05, 0.075, 0.1}
	frames = NewSynchronizer(camera, objects, nil, defaultOptions(), logging.NewTestLogger(t)).Run()
	test.That(t, len(frames), test.ShouldEqual, 5)
	shifted := make(series, len(camera))
	for i := range camera {
		shifted[i] = camera[i] + 0.003
	}
	logger, logs := logging.NewObservedTestLogger(t)
	frames = NewSynchronizer(shifted, objects, nil, defaultOptions(), logger).Run()
	test.That(t, frames, test.ShouldBeEmpty)
	test.That(t, logs.FilterMessageSnippet("misalignment").Len(), test.ShouldBeGreaterThan, 0)
}

func TestSynchronizerEventRange(t *testing.T) {
	frames := NewSynchronizer(cameraTimes, nil, eventsEvery10ms(11), defaultOptions(), logging.NewTestLogger(t)).Run()
	test.That(t, len(frames), test.ShouldEqual, 4)
	// ref 0: [0, 15ms) clamped at zero
	test.That(t, frames[0].EventLow, test.ShouldEqual, 0)
	test.That(t, frames[0].EventHigh, test.ShouldEqual, 2)
	// ref 25ms: [10ms, 40ms)
	test.That(t, frames[1].EventLow, test.ShouldEqual, 1)
	test.That(t, frames[1].EventHigh, test.ShouldEqual, 4)
	for _, f := range frames {
		test.That(t, f.EventLow, test.ShouldBeLessThanOrEqualTo, f.EventHigh)
	}

	// cursors may reach the end of the events
	frames = NewSynchronizer(cameraTimes, nil, eventsEvery10ms(3), defaultOptions(), logging.NewTestLogger(t)).Run()
	test.That(t, frames[3].EventLow, test.ShouldEqual, 3)
	test.That(t, frames[3].EventHigh, test.ShouldEqual, 3)
}

func TestSynchronizerMisalignment(t *testing.T) {
	objects := map[int]trajectory.TimeSeries{
		1: series{0, 0.025, 0.06, 0.075, 0.1},
		2: series{},
	}

	logger, logs := logging.NewObservedTestLogger(t)
	frames := NewSynchronizer(cameraTimes, objects, nil, defaultOptions(), logger).Run()
	test.That(t, len(frames), test.ShouldEqual, 3)
	test.That(t, logs.FilterMessageSnippet("misalignment").Len(), test.ShouldEqual, 1)
	test.That(t, []int{frames[0].ID, frames[1].ID, frames[2].ID}, test.ShouldResemble, []int{0, 1, 3})
	test.That(t, frames[2].ObjectIndices, test.ShouldResemble, map[int]int{1: 3})

	opts := defaultOptions()
	opts.Numbering = config.NumberingSequential
	frames = NewSynchronizer(cameraTimes, objects, nil, opts, logging.NewTestLogger(t)).Run()
	test.That(t, []int{frames[0].ID, frames[1].ID, frames[2].ID}, test.ShouldResemble, []int{0, 1, 2})

	opts.Tolerance = 0.02
	frames = NewSynchronizer(cameraTimes, objects, nil, opts, logging.NewTestLogger(t)).Run()
	test.That(t, len(frames), test.ShouldEqual, 4)
}

func TestSynchronizerObjectExhausted(t *testing.T) {
	objects := map[int]trajectory.TimeSeries{1: series{0, 0.025}}
	frames := NewSynchronizer(cameraTimes, objects, nil, defaultOptions(), logging.NewTestLogger(t)).Run()
	test.That(t, len(frames), test.ShouldEqual, 2)
}

func TestSynchronizerImages(t *testing.T) {
	opts := defaultOptions()
	opts.ImageTimes = []float64{0.01, 0.03, 0.2}
	frames := NewSynchronizer(cameraTimes, nil, nil, opts, logging.NewTestLogger(t)).Run()
	test.That(t, len(frames), test.ShouldEqual, 2)
	test.That(t, frames[0].Timestamp, test.ShouldEqual, 0.01)
	test.That(t, frames[0].CameraIndex, test.ShouldEqual, 1)
	test.That(t, frames[1].ImageIndex, test.ShouldEqual, 1)
	test.That(t, frames[1].HasImage(), test.ShouldBeTrue)
}

func TestSynchronizerEmptyCamera(t *testing.T) {
	frames := NewSynchronizer(series{}, nil, nil, defaultOptions(), logging.NewTestLogger(t)).Run()
	test.That(t, frames, test.ShouldBeEmpty)
}
