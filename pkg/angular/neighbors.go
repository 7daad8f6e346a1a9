// Package angular models gradient directions on the unit sphere: k-nearest
// angular neighbor search and the greedy set cover that prunes redundant
// direction neighborhoods.
package angular

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// dirPoint is a unit gradient direction tagged with its position in the
// direction table. Points are compared by Euclidean coordinates; on unit
// vectors the chord length grows with the angle, so Euclidean nearest is
// angular nearest.
type dirPoint struct {
	X, Y, Z float64
	Index   int
}

// Compare implements the kdtree.Comparable interface
func (p dirPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(dirPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p dirPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p dirPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(dirPoint)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// dirPoints is a collection of dirPoint that satisfies kdtree.Interface
type dirPoints []dirPoint

func (p dirPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p dirPoints) Len() int { return len(p) }
func (p dirPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p dirPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(dirPlane{dirPoints: p, Dim: d}, kdtree.MedianOfRandoms(dirPlane{dirPoints: p, Dim: d}, 100))
}

// dirPlane implements sort.Interface and kdtree.SortSlicer for dirPoints
type dirPlane struct {
	dirPoints
	kdtree.Dim
}

func (p dirPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.dirPoints[i].X < p.dirPoints[j].X
	case 1:
		return p.dirPoints[i].Y < p.dirPoints[j].Y
	case 2:
		return p.dirPoints[i].Z < p.dirPoints[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p dirPlane) Slice(start, end int) kdtree.SortSlicer {
	return dirPlane{dirPoints: p.dirPoints[start:end], Dim: p.Dim}
}

func (p dirPlane) Swap(i, j int) {
	p.dirPoints[i], p.dirPoints[j] = p.dirPoints[j], p.dirPoints[i]
}

// Neighbors returns, for every direction, the indices of its k angularly
// nearest directions, closest first. Unless noSymmetry is set, each
// direction's antipode is added to the search set before the query and the
// results are collapsed back onto the original indices, so a direction
// acquired at the opposite polarity still counts as a neighbor. The
// direction itself is never among its own neighbors.
func Neighbors(dirs [][3]float64, k int, noSymmetry bool) ([][]int, error) {
	n := len(dirs)
	if n == 0 {
		return nil, fmt.Errorf("no directions given")
	}

	points := make(dirPoints, 0, 2*n)
	for i, d := range dirs {
		points = append(points, dirPoint{X: d[0], Y: d[1], Z: d[2], Index: i})
	}
	if !noSymmetry {
		for i, d := range dirs {
			points = append(points, dirPoint{X: -d[0], Y: -d[1], Z: -d[2], Index: n + i})
		}
	}
	if k < 1 || k > len(points)-1 {
		return nil, fmt.Errorf("cannot find %d neighbors among %d directions", k, len(points))
	}

	tree := kdtree.New(points, true)

	out := make([][]int, n)
	for i := 0; i < n; i++ {
		query := dirPoint{X: dirs[i][0], Y: dirs[i][1], Z: dirs[i][2], Index: i}

		// One extra slot because the query point itself is in the tree.
		keeper := kdtree.NewNKeeper(k + 1)
		tree.NearestSet(keeper, query)

		type hit struct {
			dist  float64
			index int
		}
		hits := make([]hit, 0, keeper.Len())
		for _, item := range keeper.Heap {
			if item.Comparable == nil {
				continue
			}
			p := item.Comparable.(dirPoint)
			if p.Index == i {
				continue
			}
			hits = append(hits, hit{dist: item.Dist, index: p.Index})
		}
		sort.Slice(hits, func(a, b int) bool {
			if hits[a].dist != hits[b].dist {
				return hits[a].dist < hits[b].dist
			}
			return hits[a].index < hits[b].index
		})
		if len(hits) > k {
			hits = hits[:k]
		}

		idx := make([]int, len(hits))
		for j, h := range hits {
			idx[j] = h.index % n
		}
		out[i] = idx
	}
	return out, nil
}
