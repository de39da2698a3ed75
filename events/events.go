// Package events holds the global, time ordered event stream of the sensor.
package events

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"go.viam.com/evimo/logging"
)

// Event is one brightness change reported by the sensor at pixel (Row, Col). Timestamp is in
// nanoseconds.
type Event struct {
	Row       int
	Col       int
	Timestamp int64
	Polarity  uint8
}

// Seconds returns the timestamp in seconds.
func (e Event) Seconds() float64 {
	return float64(e.Timestamp) / 1e9
}

// Array is the event stream in arrival order. It satisfies trajectory.TimeSeries.
type Array []Event

// Len returns the number of events.
func (a Array) Len() int {
	return len(a)
}

// TimeAt returns the timestamp of event i in seconds.
func (a Array) TimeAt(i int) float64 {
	return a[i].Seconds()
}

// CheckSorted logs a warning for the first event that is earlier than its predecessor. The
// order is left as is.
func (a Array) CheckSorted(logger logging.Logger) bool {
	for i := 1; i < len(a); i++ {
		if a[i].Timestamp < a[i-1].Timestamp {
			logger.Warnw("events are not sorted by timestamp; keeping arrival order",
				"index", i, "ts_ns", a[i].Timestamp, "previous_ts_ns", a[i-1].Timestamp)
			return false
		}
	}
	return true
}

// SubtractTime drops events earlier than ns nanoseconds and shifts the rest by -ns.
func (a Array) SubtractTime(ns int64) Array {
	drop := 0
	for drop < len(a) && a[drop].Timestamp < ns {
		drop++
	}
	out := a[drop:]
	for i := range out {
		out[i].Timestamp -= ns
	}
	return out
}

// Seek returns the index of the first event at or after ns nanoseconds, len(a) when there is
// none. It walks from hint, so a hint near the answer keeps the search short. The array must
// be sorted.
func (a Array) Seek(ns int64, hint int) int {
	i := max(0, min(hint, len(a)))
	for i > 0 && a[i-1].Timestamp >= ns {
		i--
	}
	for i < len(a) && a[i].Timestamp < ns {
		i++
	}
	return i
}

// Window returns the bounds [low, high) of the events within width/2 seconds of ts, starting
// no earlier than zero. The hints seed the two searches.
func (a Array) Window(ts, width float64, lowHint, highHint int) (int, int) {
	low := a.Seek(int64(math.Round(math.Max(0, ts-width/2)*1e9)), lowHint)
	high := a.Seek(int64(math.Round((ts+width/2)*1e9)), max(highHint, low))
	return low, max(low, high)
}

// WriteText writes one "<seconds> <row> <col> <polarity>" line per event in order.
func (a Array) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range a {
		if _, err := fmt.Fprintf(bw, "%.9f %d %d %d\n", e.Seconds(), e.Row, e.Col, e.Polarity); err != nil {
			return err
		}
	}
	return bw.Flush()
}
