package trajectory

import (
	"math"

	"github.com/pkg/errors"
)

// ErrBadSlice is returned when a view is requested with bounds outside its series.
var ErrBadSlice = errors.New("invalid slice bounds")

// TimeSeries is a sequence of samples sorted by timestamp, in seconds.
type TimeSeries interface {
	Len() int
	TimeAt(i int) float64
}

// FindNearest returns the index of the sample closest in time to t. The search walks from hint
// toward t, so a hint taken from the previous of a series of increasing queries keeps each walk
// short. Among equally close samples the lowest index wins, which makes the result independent
// of the hint. FindNearest panics on an empty series.
func FindNearest(series TimeSeries, t float64, hint int) int {
	n := series.Len()
	if n == 0 {
		panic("nearest timestamp search on an empty series")
	}
	best := hint
	if best < 0 {
		best = 0
	}
	if best >= n {
		best = n - 1
	}
	bestErr := math.Abs(series.TimeAt(best) - t)

	switch {
	case series.TimeAt(best) < t:
		for i := best + 1; i < n; i++ {
			ts := series.TimeAt(i)
			if e := math.Abs(ts - t); e < bestErr {
				best, bestErr = i, e
			}
			if ts >= t {
				break
			}
		}
	case series.TimeAt(best) > t:
		for i := best - 1; i >= 0; i-- {
			ts := series.TimeAt(i)
			if e := math.Abs(ts - t); e <= bestErr {
				best, bestErr = i, e
			}
			if ts <= t {
				break
			}
		}
	}

	// equally close samples lie immediately before best
	for best > 0 {
		e := math.Abs(series.TimeAt(best-1) - t)
		if e > bestErr {
			break
		}
		best, bestErr = best-1, e
	}
	return best
}

// View is a bounds-checked, non-owning window [First, Last] over a TimeSeries.
type View struct {
	series      TimeSeries
	first, last int
}

// Slice returns the inclusive view [first, last] of series.
func Slice(series TimeSeries, first, last int) (View, error) {
	if first < 0 || first > last || last >= series.Len() {
		return View{}, errors.Wrapf(ErrBadSlice, "[%d, %d] of series with %d samples", first, last, series.Len())
	}
	return View{series: series, first: first, last: last}, nil
}

// TimeSlice returns the view spanning the samples nearest to t0 and t1. The hint seeds the
// search for t0; the t0 result seeds the search for t1. The view is never reversed.
func TimeSlice(series TimeSeries, t0, t1 float64, hint int) (View, error) {
	if series.Len() == 0 {
		return View{}, errors.Wrap(ErrBadSlice, "time slice of an empty series")
	}
	if t0 > t1 {
		return View{}, errors.Wrapf(ErrBadSlice, "time slice [%f, %f] is reversed", t0, t1)
	}
	first := FindNearest(series, t0, hint)
	last := FindNearest(series, t1, first)
	// an unsorted series can put the end before the start
	return Slice(series, min(first, last), max(first, last))
}

// First is the index of the first sample in the underlying series.
func (v View) First() int {
	return v.first
}

// Last is the index of the last sample in the underlying series.
func (v View) Last() int {
	return v.last
}

// Len is the number of samples in the view.
func (v View) Len() int {
	if v.series == nil {
		return 0
	}
	return v.last - v.first + 1
}

// TimeAt returns the timestamp of the i-th sample of the view.
func (v View) TimeAt(i int) float64 {
	if i < 0 || i >= v.Len() {
		panic(errors.Wrapf(ErrBadSlice, "index %d of view with %d samples", i, v.Len()))
	}
	return v.series.TimeAt(v.first + i)
}

// Index maps a view index to an index of the underlying series.
func (v View) Index(i int) int {
	if i < 0 || i >= v.Len() {
		panic(errors.Wrapf(ErrBadSlice, "index %d of view with %d samples", i, v.Len()))
	}
	return v.first + i
}
