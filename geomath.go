package dtanet

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	pi180    = math.Pi / 180.0
	pi180Rev = 180.0 / math.Pi
	twoPi    = 2 * math.Pi
)

// degreesToRadians deg = r * pi / 180
func degreesToRadians(d float64) float64 {
	return d * pi180
}

// radiansToDegrees r = deg  * 180 / pi
func radiansToDegrees(d float64) float64 {
	return d * pi180Rev
}

// findDistance returns Euclidean distance between two points
func findDistance(p, q orb.Point) float64 {
	xdistance := p[0] - q[0]
	ydistance := p[1] - q[1]
	return math.Sqrt(xdistance*xdistance + ydistance*ydistance)
}

// getLength returns Euclidean length of given line
func getLength(line orb.LineString) float64 {
	totalLength := 0.0
	if len(line) < 2 {
		return totalLength
	}
	for i := 1; i < len(line); i++ {
		totalLength += findDistance(line[i-1], line[i])
	}
	return totalLength
}

// crossProduct returns z-component of (a - o) x (b - o)
func crossProduct(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// Direction returns signed direction of p0 -> p1 -> p2:
// 1 for counterclockwise turn, -1 for clockwise turn, 0 for collinear points
func Direction(p0, p1, p2 orb.Point) int {
	cp := crossProduct(p0, p1, p2)
	if cp > 0 {
		return 1
	}
	if cp < 0 {
		return -1
	}
	return 0
}

// onSegment returns true if r (known to be collinear with p and q) lies within segment [p, q]
func onSegment(p, q, r orb.Point) bool {
	return math.Min(p[0], q[0]) <= r[0] && r[0] <= math.Max(p[0], q[0]) &&
		math.Min(p[1], q[1]) <= r[1] && r[1] <= math.Max(p[1], q[1])
}

// SegmentsIntersect returns true if segments [p1, p2] and [p3, p4] properly cross each other
func SegmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := Direction(p3, p4, p1)
	d2 := Direction(p3, p4, p2)
	d3 := Direction(p1, p2, p3)
	d4 := Direction(p1, p2, p4)
	return d1*d2 < 0 && d3*d4 < 0
}

// SegmentsIntersectOrTouch is SegmentsIntersect plus the case of an endpoint of one segment lying on the other one
func SegmentsIntersectOrTouch(p1, p2, p3, p4 orb.Point) bool {
	if SegmentsIntersect(p1, p2, p3, p4) {
		return true
	}
	if Direction(p3, p4, p1) == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if Direction(p3, p4, p2) == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if Direction(p1, p2, p3) == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if Direction(p1, p2, p4) == 0 && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

// PolylinesCross returns true if any sub-segment of l1 properly crosses any sub-segment of l2
func PolylinesCross(l1, l2 orb.LineString) bool {
	for i := 1; i < len(l1); i++ {
		for j := 1; j < len(l2); j++ {
			if SegmentsIntersect(l1[i-1], l1[i], l2[j-1], l2[j]) {
				return true
			}
		}
	}
	return false
}

// MidPoint returns middle point of segment [p, q]
func MidPoint(p, q orb.Point) orb.Point {
	return orb.Point{(p[0] + q[0]) / 2.0, (p[1] + q[1]) / 2.0}
}

// DistanceFromPointToSegment returns distance from pt to segment [a, b] and position of the closest point
// on the segment as a fraction in [0, 1]
func DistanceFromPointToSegment(pt, a, b orb.Point) (float64, float64) {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return findDistance(pt, a), 0.0
	}
	t := ((pt[0]-a[0])*dx + (pt[1]-a[1])*dy) / segLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := orb.Point{a[0] + t*dx, a[1] + t*dy}
	return findDistance(pt, closest), t
}

// DistanceFromPointToPolyline returns distance from pt to given polyline and position t in [0, 1] of the
// closest point measured along the whole polyline
func DistanceFromPointToPolyline(pt orb.Point, line orb.LineString) (float64, float64) {
	if len(line) == 0 {
		return math.Inf(1), 0
	}
	if len(line) == 1 {
		return findDistance(pt, line[0]), 0
	}
	total := getLength(line)
	best := math.Inf(1)
	bestPos := 0.0
	walked := 0.0
	for i := 1; i < len(line); i++ {
		segLen := findDistance(line[i-1], line[i])
		dist, t := DistanceFromPointToSegment(pt, line[i-1], line[i])
		if dist < best {
			best = dist
			bestPos = walked + t*segLen
		}
		walked += segLen
	}
	if total == 0 {
		return best, 0
	}
	t := bestPos / total
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return best, t
}

// Check if two segments intersects and returns intersections Point
// p1, p2 - first segment
// p3, p4 - second segment
// Note: lines are treated as infinite, so the point could lay outside of both segments
func intersect(p1, p2, p3, p4 orb.Point) (orb.Point, error) {
	a1 := p2[1] - p1[1]
	b1 := p1[0] - p2[0]
	c1 := a1*p1[0] + b1*p1[1]
	a2 := p4[1] - p3[1]
	b2 := p3[0] - p4[0]
	c2 := a2*p3[0] + b2*p3[1]

	det := a1*b2 - a2*b1
	if det == 0 {
		return orb.Point{}, fmt.Errorf("The lines are parallel")
	}
	x := (b2*c1 - b1*c2) / det
	y := (a1*c2 - a2*c1) / det
	return orb.Point{x, y}, nil
}

// offsetCurve returns line shifted by distance to the left side (negative distance shifts to the right)
func offsetCurve(line orb.LineString, distance float64) orb.LineString {
	var result orb.LineString
	var segments [][2]orb.Point

	for i := 1; i < len(line); i++ {
		p1 := line[i-1]
		p2 := line[i]
		vec := [2]float64{p2[0] - p1[0], p2[1] - p1[1]}
		vecLen := math.Sqrt(vec[0]*vec[0] + vec[1]*vec[1])
		if vecLen == 0 {
			continue
		}
		vec = [2]float64{vec[0] / vecLen, vec[1] / vecLen}
		// Rotate by 90 degrees and scale
		offset := [2]float64{-vec[1] * distance, vec[0] * distance}
		op1 := orb.Point{p1[0] + offset[0], p1[1] + offset[1]}
		op2 := orb.Point{p2[0] + offset[0], p2[1] + offset[1]}
		segments = append(segments, [2]orb.Point{op1, op2})
	}
	if len(segments) == 0 {
		return copyLine(line)
	}

	result = append(result, segments[0][0])
	for i := 1; i < len(segments); i++ {
		seg1 := segments[i-1]
		seg2 := segments[i]
		intersection, err := intersect(seg1[0], seg1[1], seg2[0], seg2[1])
		if err != nil {
			continue
		}
		result = append(result, intersection)
	}
	result = append(result, segments[len(segments)-1][1])
	return result
}

// pointOnSegmentByFraction returns a point on given segment using fraction of its length
func pointOnSegmentByFraction(p, q orb.Point, fraction float64) orb.Point {
	return orb.Point{
		(1-fraction)*p[0] + (fraction * q[0]),
		(1-fraction)*p[1] + (fraction * q[1]),
	}
}

// pointAlongLine returns the point located at given distance from the start of the line and index of the point
// right before it. Returns false when distance exceeds the line length
func pointAlongLine(line orb.LineString, distance float64) (orb.Point, int, bool) {
	if len(line) == 0 {
		return orb.Point{}, -1, false
	}
	if distance <= 0 {
		return line[0], 0, distance == 0
	}
	cl := 0.0
	for i := 1; i < len(line); i++ {
		ol := cl
		segLen := findDistance(line[i-1], line[i])
		cl += segLen
		if distance <= cl && segLen > 0 {
			return pointOnSegmentByFraction(line[i-1], line[i], (distance-ol)/segLen), i - 1, true
		}
	}
	return line[len(line)-1], len(line) - 2, false
}

// extendLine returns point located past the end of the line continuing its last segment
func extendLine(line orb.LineString, pastEnd float64) orb.Point {
	last := line[len(line)-1]
	prev := line[len(line)-2]
	segLen := findDistance(prev, last)
	if segLen == 0 {
		return last
	}
	return orb.Point{
		last[0] + (last[0]-prev[0])/segLen*pastEnd,
		last[1] + (last[1]-prev[1])/segLen*pastEnd,
	}
}

// reverseLine reverses order of points in given line. Returns new slice
func reverseLine(pts orb.LineString) orb.LineString {
	inputLen := len(pts)
	output := make(orb.LineString, inputLen)
	for i, n := range pts {
		j := inputLen - i - 1
		output[j] = n
	}
	return output
}

// copyLine returns copy of given line
func copyLine(pts orb.LineString) orb.LineString {
	output := make(orb.LineString, len(pts))
	copy(output, pts)
	return output
}

// referenceAngle returns clockwise angle (radians) in [0, 2π) from +x axis to vector (to - from)
func referenceAngle(from, to orb.Point) float64 {
	dx := to[0] - from[0]
	dy := to[1] - from[1]
	if dx == 0 && dy == 0 {
		return 0
	}
	angle := math.Atan2(-dy, dx)
	if angle < 0 {
		angle += twoPi
	}
	if angle >= twoPi {
		angle -= twoPi
	}
	return angle
}

// orientationDegrees returns clockwise angle (degrees) in [0, 360) from north to vector (to - from)
func orientationDegrees(from, to orb.Point) float64 {
	dx := to[0] - from[0]
	dy := to[1] - from[1]
	if dx == 0 && dy == 0 {
		return 0
	}
	deg := radiansToDegrees(math.Atan2(dx, dy))
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

const (
	HEADING_NB = "NB"
	HEADING_EB = "EB"
	HEADING_SB = "SB"
	HEADING_WB = "WB"
)

// HeadingForOrientation classifies orientation (degrees clockwise from north) into NB/EB/SB/WB
func HeadingForOrientation(deg float64) string {
	switch {
	case deg >= 315 || deg < 45:
		return HEADING_NB
	case deg < 135:
		return HEADING_EB
	case deg < 225:
		return HEADING_SB
	default:
		return HEADING_WB
	}
}

// angleBetweenVectors returns counterclockwise angle (degrees) in (-180, 180] from vector a to vector b
func angleBetweenVectors(a0, a1, b0, b1 orb.Point) float64 {
	angle1 := math.Atan2(a1[1]-a0[1], a1[0]-a0[0])
	angle2 := math.Atan2(b1[1]-b0[1], b1[0]-b0[0])
	angle := angle2 - angle1
	for angle <= -math.Pi {
		angle += twoPi
	}
	for angle > math.Pi {
		angle -= twoPi
	}
	return radiansToDegrees(angle)
}
