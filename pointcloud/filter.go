package pointcloud

import (
	"context"

	"go.viam.com/evimo/utils"
)

// RadiusOutlierFilter keeps the points that have at least minNeighbors other points within
// radius. Order is preserved.
func RadiusOutlierFilter(ctx context.Context, cloud PointCloud, radius float64, minNeighbors int) (PointCloud, error) {
	kd := ToKDTree(cloud)
	points := kd.Points()
	keep := make([]bool, len(points))

	if err := utils.ParallelEach(ctx, len(points), func(i int) error {
		keep[i] = len(kd.RadiusNearestNeighbors(points[i].P, radius, false)) >= minNeighbors
		return nil
	}); err != nil {
		return nil, err
	}

	out := NewWithPrealloc(len(points))
	for i, pd := range points {
		if !keep[i] {
			continue
		}
		if err := out.Set(pd.P, pd.D); err != nil {
			return nil, err
		}
	}
	return out, nil
}
