package pointcloud

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// kdPoint is a cloud point that remembers its index so queries can return its data.
type kdPoint struct {
	pos r3.Vector
	idx int
}

func (p kdPoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.pos.X
	case 1:
		return p.pos.Y
	default:
		return p.pos.Z
	}
}

// Compare returns the signed distance of p from the plane passing through c and
// perpendicular to the dimension d.
func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(kdPoint).coord(d)
}

// Dims returns the number of dimensions described by the receiver.
func (p kdPoint) Dims() int {
	return 3
}

// Distance returns the squared Euclidean distance between c and the receiver.
func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	return p.pos.Sub(c.(kdPoint).pos).Norm2()
}

type kdPoints []kdPoint

func (p kdPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p kdPoints) Len() int                              { return len(p) }
func (p kdPoints) Pivot(d kdtree.Dim) int                { return kdPlane{kdPoints: p, Dim: d}.Pivot() }
func (p kdPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type kdPlane struct {
	kdtree.Dim
	kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	return p.kdPoints[i].coord(p.Dim) < p.kdPoints[j].coord(p.Dim)
}
func (p kdPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.kdPoints = p.kdPoints[start:end]
	return p
}
func (p kdPlane) Swap(i, j int) { p.kdPoints[i], p.kdPoints[j] = p.kdPoints[j], p.kdPoints[i] }

// KDTree is a static spatial index over a point cloud. Distances it reports are Euclidean.
type KDTree struct {
	tree   *kdtree.Tree
	points []PointAndData
}

// ToKDTree indexes every point of the cloud.
func ToKDTree(cloud PointCloud) *KDTree {
	points := Points(cloud)
	kps := make(kdPoints, len(points))
	for i, pd := range points {
		kps[i] = kdPoint{pos: pd.P, idx: i}
	}
	return &KDTree{tree: kdtree.New(kps, false), points: points}
}

// Size returns the number of indexed points.
func (kd *KDTree) Size() int {
	return len(kd.points)
}

// Points returns the indexed points.
func (kd *KDTree) Points() []PointAndData {
	return kd.points
}

// NearestNeighbor returns the closest point to p, its data, the squared distance to it and
// whether the tree holds any point.
func (kd *KDTree) NearestNeighbor(p r3.Vector) (r3.Vector, Data, float64, bool) {
	if len(kd.points) == 0 {
		return r3.Vector{}, nil, 0, false
	}
	c, dist2 := kd.tree.Nearest(kdPoint{pos: p, idx: -1})
	if c == nil {
		return r3.Vector{}, nil, 0, false
	}
	pd := kd.points[c.(kdPoint).idx]
	return pd.P, pd.D, dist2, true
}

// KNearestNeighbors returns up to k points closest to p, nearest first.
func (kd *KDTree) KNearestNeighbors(p r3.Vector, k int, includeSelf bool) []PointAndData {
	if len(kd.points) == 0 || k <= 0 {
		return nil
	}
	want := k
	if !includeSelf {
		want++
	}
	keeper := kdtree.NewNKeeper(want)
	kd.tree.NearestSet(keeper, kdPoint{pos: p, idx: -1})
	return kd.collect(keeper.Heap, p, includeSelf, k)
}

// RadiusNearestNeighbors returns every point within radius r of p, nearest first.
func (kd *KDTree) RadiusNearestNeighbors(p r3.Vector, r float64, includeSelf bool) []PointAndData {
	if len(kd.points) == 0 {
		return nil
	}
	keeper := kdtree.NewDistKeeper(r * r)
	kd.tree.NearestSet(keeper, kdPoint{pos: p, idx: -1})
	return kd.collect(keeper.Heap, p, includeSelf, -1)
}

func (kd *KDTree) collect(found kdtree.Heap, p r3.Vector, includeSelf bool, limit int) []PointAndData {
	out := make([]PointAndData, 0, len(found))
	for _, c := range found {
		if c.Comparable == nil {
			continue
		}
		pd := kd.points[c.Comparable.(kdPoint).idx]
		if !includeSelf && pd.P == p {
			continue
		}
		out = append(out, pd)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
