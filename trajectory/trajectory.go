// Package trajectory holds timed pose sequences with windowed smoothing and nearest timestamp
// lookup.
package trajectory

import (
	"fmt"

	"github.com/golang/geo/r3"

	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/spatialmath"
)

// Trajectory is the pose history of one tracked entity. Poses are appended in arrival order
// and read back through At, which smooths over the filtering window.
//
// Indexing an empty trajectory or past its end panics.
type Trajectory struct {
	poses           []Pose
	filteringWindow float64
}

// New returns an empty trajectory smoothed over filteringWindow seconds.
func New(filteringWindow float64) *Trajectory {
	return &Trajectory{filteringWindow: filteringWindow}
}

// SetFilteringWindow changes the smoothing window, in seconds. Zero disables smoothing.
func (t *Trajectory) SetFilteringWindow(window float64) {
	t.filteringWindow = window
}

// FilteringWindow returns the smoothing window in seconds.
func (t *Trajectory) FilteringWindow() float64 {
	return t.filteringWindow
}

// Add appends a pose.
func (t *Trajectory) Add(p Pose) {
	t.poses = append(t.poses, p)
}

// Len returns the number of poses.
func (t *Trajectory) Len() int {
	return len(t.poses)
}

// TimeAt returns the timestamp of pose i.
func (t *Trajectory) TimeAt(i int) float64 {
	t.mustIndex(i)
	return t.poses[i].Timestamp
}

// Check reports whether timestamps are non-decreasing, logging the first violation.
func (t *Trajectory) Check(logger logging.Logger) bool {
	for i := 1; i < len(t.poses); i++ {
		if t.poses[i].Timestamp < t.poses[i-1].Timestamp {
			logger.Warnw("trajectory check failed: timestamps decrease",
				"index", i, "ts", t.poses[i].Timestamp, "previous", t.poses[i-1].Timestamp)
			return false
		}
	}
	return true
}

// SubtractTime drops every pose earlier than ts and shifts the rest by -ts.
func (t *Trajectory) SubtractTime(ts float64) {
	drop := 0
	for drop < len(t.poses) && t.poses[drop].Timestamp < ts {
		drop++
	}
	t.poses = t.poses[drop:]
	for i := range t.poses {
		t.poses[i].Timestamp -= ts
	}
}

// Raw returns pose i without smoothing.
func (t *Trajectory) Raw(i int) Pose {
	t.mustIndex(i)
	return t.poses[i]
}

// At returns the average of the poses within half the filtering window of pose i. Translation
// and roll, pitch, yaw are averaged componentwise; timestamp and occlusion are those of pose i.
func (t *Trajectory) At(i int) Pose {
	t.mustIndex(i)
	center := t.poses[i]
	if t.filteringWindow <= 0 {
		return center
	}

	half := t.filteringWindow / 2
	view, err := TimeSlice(t, center.Timestamp-half, center.Timestamp+half, i)
	if err != nil {
		return center
	}

	var tr r3.Vector
	var roll, pitch, yaw float64
	for k := 0; k < view.Len(); k++ {
		p := t.poses[view.Index(k)]
		tr = tr.Add(p.Translation())
		rpy := p.RPY()
		roll += rpy.Roll
		pitch += rpy.Pitch
		yaw += rpy.Yaw
	}
	n := float64(view.Len())
	avg := &spatialmath.EulerAngles{Roll: roll / n, Pitch: pitch / n, Yaw: yaw / n}

	return Pose{
		Timestamp: center.Timestamp,
		Transform: spatialmath.NewPose(tr.Mul(1/n), avg),
		Occlusion: center.Occlusion,
	}
}

// Nearest returns the index of the pose closest to ts, searching from hint.
func (t *Trajectory) Nearest(ts float64, hint int) int {
	return FindNearest(t, ts, hint)
}

// Velocity is the difference between the smoothed neighbours of pose i divided by their time
// difference. At either end the pose itself stands in for the missing neighbour.
func (t *Trajectory) Velocity(i int) Pose {
	t.mustIndex(i)
	next, prev := i+1, i-1
	if next >= len(t.poses) {
		next = i
	}
	if prev < 0 {
		prev = i
	}

	p0, p1 := t.At(next), t.At(prev)
	dt := p0.Timestamp - p1.Timestamp
	if dt == 0 {
		return Pose{Timestamp: t.poses[i].Timestamp, Transform: spatialmath.NewZeroPose(), Occlusion: t.poses[i].Occlusion}
	}
	v := p0.Sub(p1).Scale(1 / dt)
	v.Timestamp = t.poses[i].Timestamp
	return v
}

func (t *Trajectory) mustIndex(i int) {
	if len(t.poses) == 0 {
		panic("access to an empty trajectory")
	}
	if i < 0 || i >= len(t.poses) {
		panic(fmt.Sprintf("trajectory index %d out of range [0, %d)", i, len(t.poses)))
	}
}
