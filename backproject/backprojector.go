// Package backproject refines the camera extrinsic by matching the outlines of the generated
// masks against the events in a short window, both placed in a (row, col, time) space.
package backproject

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/evimo/align"
	"go.viam.com/evimo/annotation"
	"go.viam.com/evimo/calibration"
	"go.viam.com/evimo/config"
	"go.viam.com/evimo/dataset"
	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/pointcloud"
	"go.viam.com/evimo/rimage"
)

const (
	// pixelScale maps pixels to cloud units.
	pixelScale = 200.0
	// timeScale maps seconds to cloud units.
	timeScale = 2.0

	outlierRadius       = 5 / pixelScale
	outlierMinNeighbors = 10
	roiRadius           = 3 / pixelScale
	// matchThreshold bounds the squared distance of a counted match.
	matchThreshold = 4 / pixelScale

	// DefaultStep is the coordinate descent step, in meters or radians.
	DefaultStep = 0.001
)

var eventColor = color.NRGBA{R: 0, G: 20, B: 255, A: 255}

// Backprojector holds the event cloud of a time window and the mask clouds of the frames
// regenerated inside it.
type Backprojector struct {
	session   *dataset.Session
	timestamp float64
	window    float64
	frames    []*annotation.Frame

	eventCloud pointcloud.PointCloud
	eventTree  *pointcloud.KDTree

	maskCloud  pointcloud.PointCloud
	maskClouds map[int]pointcloud.PointCloud
	roiCloud   pointcloud.PointCloud
	roiClouds  map[int]pointcloud.PointCloud

	logger logging.Logger
}

// New builds the frames of the window described by opts and the filtered event cloud. A
// non-positive window spans every event. A non-positive framerate places one frame on every
// camera pose instead of a regular grid.
func New(ctx context.Context, s *dataset.Session, opts config.RefineOptions, logger logging.Logger) (*Backprojector, error) {
	if len(s.Events) == 0 {
		return nil, errors.New("no events to refine against")
	}
	if s.CameraTrajectory.Len() == 0 {
		return nil, errors.New("no camera poses to refine with")
	}
	b := &Backprojector{
		session:   s,
		timestamp: opts.Timestamp,
		window:    opts.Window,
		logger:    logger,
	}
	if b.window <= 0 || b.timestamp < 0 {
		first, last := s.Events[0].Seconds(), s.Events[len(s.Events)-1].Seconds()
		b.timestamp = (first + last) / 2
		b.window = last - first
	}
	b.frames = annotation.NewFrames(b.frameSpecs(opts.Framerate))
	logger.Infow("refinement window",
		"timestamp", b.timestamp, "window", b.window, "frames", len(b.frames))

	if err := b.refreshEventCloud(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backprojector) start() float64 {
	return math.Max(0, b.timestamp-b.window/2)
}

func (b *Backprojector) end() float64 {
	return b.timestamp + b.window/2
}

// toZ maps a time to the third cloud axis.
func (b *Backprojector) toZ(ts float64) float64 {
	return (ts - (b.timestamp - b.window/2)) * timeScale
}

func (b *Backprojector) frameSpecs(framerate float64) []align.FrameSpec {
	s := b.session
	var times []float64
	if framerate > 0 {
		for ts := b.start(); ts < b.end(); ts += 1 / framerate {
			times = append(times, ts)
		}
	} else {
		for i := 0; i < s.CameraTrajectory.Len(); i++ {
			times = append(times, s.CameraTrajectory.TimeAt(i))
		}
	}

	ids := s.ObjectIDs()
	camHint := 0
	evLow, evHigh := 0, 0
	objHints := make(map[int]int, len(ids))
	specs := make([]align.FrameSpec, 0, len(times))
	for i, ts := range times {
		camHint = s.CameraTrajectory.Nearest(ts, camHint)
		evLow, evHigh = s.Events.Window(ts, s.SliceWidth(), evLow, evHigh)
		spec := align.FrameSpec{
			ID:            i,
			Timestamp:     ts,
			CameraIndex:   camHint,
			ObjectIndices: make(map[int]int, len(ids)),
			EventLow:      evLow,
			EventHigh:     evHigh,
			ImageIndex:    -1,
		}
		for _, id := range ids {
			objHints[id] = s.ObjectTrajectories[id].Nearest(ts, objHints[id])
			spec.ObjectIndices[id] = objHints[id]
		}
		specs = append(specs, spec)
	}
	return specs
}

// Frames returns the frames regenerated on every step.
func (b *Backprojector) Frames() []*annotation.Frame {
	return b.frames
}

func (b *Backprojector) refreshEventCloud(ctx context.Context) error {
	evs := b.session.Events
	startNs, endNs := int64(math.Round(b.start()*1e9)), int64(math.Round(b.end()*1e9))
	// the frame event slices bracket the window closely
	lowHint, highHint := 0, len(evs)
	if len(b.frames) > 0 {
		lowHint, highHint = b.frames[0].EventLow, b.frames[len(b.frames)-1].EventHigh
	}
	low := evs.Seek(startNs, lowHint)
	high := evs.Seek(endNs+1, max(highHint, low))
	raw := pointcloud.NewWithPrealloc(max(0, high-low))
	for _, e := range evs[low:max(low, high)] {
		p := r3.Vector{
			X: float64(e.Row) / pixelScale,
			Y: float64(e.Col) / pixelScale,
			Z: b.toZ(e.Seconds()),
		}
		if err := raw.Set(p, pointcloud.NewColoredData(eventColor)); err != nil {
			return err
		}
	}
	filtered, err := pointcloud.RadiusOutlierFilter(ctx, raw, outlierRadius, outlierMinNeighbors)
	if err != nil {
		return err
	}
	b.logger.Debugw("event cloud", "raw", raw.Size(), "filtered", filtered.Size())
	b.eventCloud = filtered
	b.eventTree = pointcloud.ToKDTree(filtered)
	return nil
}

// EventCloud returns the filtered event cloud.
func (b *Backprojector) EventCloud() pointcloud.PointCloud {
	return b.eventCloud
}

// MaskCloud returns the union of the mask boundary clouds of the last generation.
func (b *Backprojector) MaskCloud() pointcloud.PointCloud {
	return b.maskCloud
}

// ROICloud returns the events near any mask boundary.
func (b *Backprojector) ROICloud() pointcloud.PointCloud {
	return b.roiCloud
}

// boundary returns the pixels the 3x3 dilation of mask adds, with the id that dilated into them.
func boundary(mask *rimage.Mask) map[int][]r3.Vector {
	dil := mask.Dilate()
	out := map[int][]r3.Vector{}
	for row := 0; row < mask.Height(); row++ {
		for col := 0; col < mask.Width(); col++ {
			id := dil.At(row, col)
			if id <= mask.At(row, col) {
				continue
			}
			out[int(id)] = append(out[int(id)], r3.Vector{X: float64(row) / pixelScale, Y: float64(col) / pixelScale})
		}
	}
	return out
}

func idData(id int) pointcloud.Data {
	r, g, bl := rimage.IDColor(uint8(id)).Clamped().RGB255()
	return pointcloud.NewColoredData(color.NRGBA{R: r, G: g, B: bl, A: 255}).SetValue(id)
}

// Generate regenerates every frame with the current extrinsic and rebuilds the mask and ROI
// clouds.
func (b *Backprojector) Generate(ctx context.Context) error {
	scene := annotation.SceneFromSession(b.session)
	if err := annotation.GenerateAll(ctx, scene, b.frames, b.logger); err != nil {
		return err
	}

	b.maskCloud = pointcloud.New()
	b.maskClouds = map[int]pointcloud.PointCloud{}
	for _, f := range b.frames {
		z := b.toZ(f.Timestamp)
		for id, pts := range boundary(f.Mask) {
			cloud, ok := b.maskClouds[id]
			if !ok {
				cloud = pointcloud.New()
				b.maskClouds[id] = cloud
			}
			d := idData(id)
			for _, p := range pts {
				p.Z = z
				if err := multiSet(p, d, cloud, b.maskCloud); err != nil {
					return err
				}
			}
		}
	}
	return b.refreshROI()
}

func multiSet(p r3.Vector, d pointcloud.Data, clouds ...pointcloud.PointCloud) error {
	for _, c := range clouds {
		if err := c.Set(p, d); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backprojector) refreshROI() error {
	b.roiCloud = pointcloud.New()
	b.roiClouds = map[int]pointcloud.PointCloud{}
	for _, id := range b.ObjectIDs() {
		roi := pointcloud.New()
		d := idData(id)
		var err error
		b.maskClouds[id].Iterate(0, 0, func(p r3.Vector, _ pointcloud.Data) bool {
			for _, near := range b.eventTree.RadiusNearestNeighbors(p, roiRadius, true) {
				if err = multiSet(near.P, d, roi, b.roiCloud); err != nil {
					return false
				}
			}
			return true
		})
		if err != nil {
			return err
		}
		b.roiClouds[id] = roi
	}
	return nil
}

// ObjectIDs returns the ids with a mask boundary in the last generation, ascending.
func (b *Backprojector) ObjectIDs() []int {
	ids := lo.Keys(b.maskClouds)
	sort.Ints(ids)
	return ids
}

// meanMatch averages the squared distance from every point of from to its nearest neighbour in
// tree, counting only matches within matchThreshold. It is 0 when nothing matches.
func meanMatch(from pointcloud.PointCloud, tree *pointcloud.KDTree) float64 {
	if from == nil {
		return 0
	}
	var dists []float64
	from.Iterate(0, 0, func(p r3.Vector, _ pointcloud.Data) bool {
		if _, _, d2, ok := tree.NearestNeighbor(p); ok && d2 <= matchThreshold {
			dists = append(dists, d2)
		}
		return true
	})
	if len(dists) == 0 {
		return 0
	}
	return stat.Mean(dists, nil)
}

// Score matches the mask boundaries against the events.
func (b *Backprojector) Score() float64 {
	return meanMatch(b.maskCloud, b.eventTree)
}

// InverseScore matches the events near the boundaries against the mask boundaries.
func (b *Backprojector) InverseScore() float64 {
	if b.maskCloud == nil {
		return 0
	}
	return meanMatch(b.roiCloud, pointcloud.ToKDTree(b.maskCloud))
}

// MinimizationStep does one pass of coordinate descent on the extrinsic delta over x, y, z,
// roll, pitch and yaw. Each axis tries +step, then -step, and returns to where it started when
// neither beats the score it started from. Every trial regenerates all frames.
func (b *Backprojector) MinimizationStep(ctx context.Context, step float64) error {
	if b.maskCloud == nil {
		if err := b.Generate(ctx); err != nil {
			return err
		}
	}
	baseline := b.InverseScore()
	b.logger.Infow("score before step", "score", b.Score(), "inverse_score", baseline)

	try := func(axis calibration.Axis, v float64) (float64, error) {
		b.session.NudgeExtrinsic(axis, v)
		if err := b.Generate(ctx); err != nil {
			return 0, err
		}
		return b.InverseScore(), nil
	}
	for _, axis := range calibration.Axes {
		score, err := try(axis, step)
		if err != nil {
			return err
		}
		if score > baseline {
			if score, err = try(axis, -2*step); err != nil {
				return err
			}
		}
		if score > baseline {
			if score, err = try(axis, step); err != nil {
				return err
			}
		}
		baseline = score
	}
	b.logger.Infow("score after step", "score", b.Score(), "inverse_score", baseline,
		"extrinsics", b.session.Extrinsics.String())
	return nil
}

// Refine runs steps minimization steps.
func (b *Backprojector) Refine(ctx context.Context, steps int, step float64) error {
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.MinimizationStep(ctx, step); err != nil {
			return errors.Wrapf(err, "step %d", i)
		}
	}
	return nil
}

// SaveClouds writes the event cloud and the per object mask and ROI clouds into dir as binary
// PCD files.
func (b *Backprojector) SaveClouds(ctx context.Context, dir string) error {
	if err := b.Generate(ctx); err != nil {
		return err
	}
	b.logger.Infow("saving clouds", "dir", dir)
	if err := pointcloud.WriteToPCDFile(b.eventCloud, filepath.Join(dir, "raw_cloud.pcd"), pointcloud.PCDBinary); err != nil {
		return err
	}
	for _, id := range b.ObjectIDs() {
		if err := pointcloud.WriteToPCDFile(b.maskClouds[id],
			filepath.Join(dir, fmt.Sprintf("mask_cloud_%d.pcd", id)), pointcloud.PCDBinary); err != nil {
			return err
		}
		if err := pointcloud.WriteToPCDFile(b.roiClouds[id],
			filepath.Join(dir, fmt.Sprintf("roi_cloud_%d.pcd", id)), pointcloud.PCDBinary); err != nil {
			return err
		}
	}
	return nil
}
