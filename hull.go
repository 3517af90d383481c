package dtanet

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// monotoneChains returns lower (left to right) and upper (right to left) chains of the convex hull
func monotoneChains(points []orb.Point) ([]orb.Point, []orb.Point) {
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] == pts[j][0] {
			return pts[i][1] < pts[j][1]
		}
		return pts[i][0] < pts[j][0]
	})
	lower := make([]orb.Point, 0, len(pts))
	for _, p := range pts {
		for len(lower) >= 2 && crossProduct(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	upper := make([]orb.Point, 0, len(pts))
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && crossProduct(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	return lower, upper
}

// ConvexHull returns convex hull of given points in clockwise order starting from the leftmost point.
// The ring is not closed
func ConvexHull(points []orb.Point) []orb.Point {
	if len(points) < 3 {
		out := make([]orb.Point, len(points))
		copy(out, points)
		return out
	}
	lower, upper := monotoneChains(points)
	// Upper chain walked left to right, then lower chain walked right to left
	ring := make([]orb.Point, 0, len(lower)+len(upper))
	for i := len(upper) - 1; i >= 0; i-- {
		ring = appendDistinct(ring, upper[i])
	}
	for i := len(lower) - 1; i >= 0; i-- {
		ring = appendDistinct(ring, lower[i])
	}
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	return ring
}

// SegmentedHull builds a tight (possibly concave) hull: the x-range is sliced into numBins equal-width bins,
// the convex hull of every bin is computed and the upper chains (topmost points) of the bins are joined
// left to right, then the lower chains right to left. Result is clockwise and not closed
func SegmentedHull(points []orb.Point, numBins int) []orb.Point {
	if numBins <= 1 || len(points) < 3 {
		return ConvexHull(points)
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p[0])
		maxX = math.Max(maxX, p[0])
	}
	width := (maxX - minX) / float64(numBins)
	if width == 0 {
		return ConvexHull(points)
	}
	bins := make([][]orb.Point, numBins)
	for _, p := range points {
		idx := int((p[0] - minX) / width)
		if idx >= numBins {
			idx = numBins - 1
		}
		bins[idx] = append(bins[idx], p)
	}
	uppers := make([][]orb.Point, 0, numBins)
	lowers := make([][]orb.Point, 0, numBins)
	for _, bin := range bins {
		if len(bin) == 0 {
			continue
		}
		lower, upper := monotoneChains(bin)
		uppers = append(uppers, upper)
		lowers = append(lowers, lower)
	}
	ring := make([]orb.Point, 0, len(points))
	for _, upper := range uppers {
		for i := len(upper) - 1; i >= 0; i-- {
			ring = appendDistinct(ring, upper[i])
		}
	}
	for b := len(lowers) - 1; b >= 0; b-- {
		lower := lowers[b]
		for i := len(lower) - 1; i >= 0; i-- {
			ring = appendDistinct(ring, lower[i])
		}
	}
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	return ring
}

func appendDistinct(ring []orb.Point, p orb.Point) []orb.Point {
	if len(ring) > 0 && ring[len(ring)-1] == p {
		return ring
	}
	return append(ring, p)
}

// PointInPolygon returns true if pt is inside of polygon (ray casting, odd number of crossings).
// Polygon may be given either closed or not
func PointInPolygon(pt orb.Point, polygon []orb.Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		pi, pj := polygon[i], polygon[j]
		if (pi[1] > pt[1]) != (pj[1] > pt[1]) {
			xCross := (pj[0]-pi[0])*(pt[1]-pi[1])/(pj[1]-pi[1]) + pi[0]
			if pt[0] < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
