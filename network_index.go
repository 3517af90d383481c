package dtanet

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/kyroy/kdtree"
	"github.com/paulmach/orb"
)

// indexedNode adapts node to kdtree.Point
type indexedNode struct {
	node *Node
}

func (in indexedNode) Dimensions() int {
	return 2
}

func (in indexedNode) Dimension(i int) float64 {
	switch i {
	case 0:
		return in.node.geom[0]
	case 1:
		return in.node.geom[1]
	default:
		panic("invalid dimension")
	}
}

// indexedLink adapts road link envelope to rtreego.Spatial
type indexedLink struct {
	link     *Link
	envelope rtreego.Rect
}

func (il *indexedLink) Bounds() rtreego.Rect {
	return il.envelope
}

// envelopeEps pads degenerate (horizontal or vertical) envelopes
const envelopeEps = 1e-9

func linkEnvelope(link *Link) rtreego.Rect {
	bound := link.Bound()
	w := math.Max(bound.Max[0]-bound.Min[0], envelopeEps)
	h := math.Max(bound.Max[1]-bound.Min[1], envelopeEps)
	rect, _ := rtreego.NewRect(rtreego.Point{bound.Min[0], bound.Min[1]}, []float64{w, h})
	return rect
}

func (net *Network) nodeIndex() *kdtree.KDTree {
	if net.nodeTree == nil {
		pts := make([]kdtree.Point, 0, len(net.nodes))
		for _, node := range net.Nodes() {
			pts = append(pts, indexedNode{node: node})
		}
		net.nodeTree = kdtree.New(pts)
	}
	return net.nodeTree
}

func (net *Network) roadLinkIndex() *rtreego.Rtree {
	if net.linkTree == nil {
		net.linkTree = rtreego.NewTree(2, 25, 50)
		for _, link := range net.RoadLinks() {
			net.linkTree.Insert(&indexedLink{link: link, envelope: linkEnvelope(link)})
		}
	}
	return net.linkTree
}

// FindNodeNearestToPoint returns the node closest to (x, y) which satisfies filter (nil accepts everything).
// When bbox is given only nodes inside of it are considered
func (net *Network) FindNodeNearestToPoint(x, y float64, filter func(*Node) bool, bbox *orb.Bound) (*Node, float64, error) {
	pt := orb.Point{x, y}
	if bbox != nil {
		var best *Node
		bestDist := math.Inf(1)
		for _, node := range net.Nodes() {
			if !bbox.Contains(node.geom) || (filter != nil && !filter(node)) {
				continue
			}
			if d := findDistance(pt, node.geom); d < bestDist {
				best, bestDist = node, d
			}
		}
		if best == nil {
			return nil, 0, dtaErrorf("no node found near (%f, %f) inside of given bounding box", x, y)
		}
		return best, bestDist, nil
	}
	total := len(net.nodes)
	if total == 0 {
		return nil, 0, dtaErrorf("network has no nodes")
	}
	tree := net.nodeIndex()
	query := indexedNode{node: &Node{geom: pt}}
	for k := 1; ; k *= 2 {
		if k > total {
			k = total
		}
		var best *Node
		bestDist := math.Inf(1)
		for _, found := range tree.KNN(query, k) {
			node := found.(indexedNode).node
			if filter != nil && !filter(node) {
				continue
			}
			d := findDistance(pt, node.geom)
			if d < bestDist || (d == bestDist && best != nil && node.ID < best.ID) {
				best, bestDist = node, d
			}
		}
		if best != nil {
			return best, bestDist, nil
		}
		if k == total {
			break
		}
	}
	return nil, 0, dtaErrorf("no node satisfying filter found near (%f, %f)", x, y)
}

// LinkDistance is a road link with its distance to the query point and the position (t in [0, 1]) of the
// closest point along the link
type LinkDistance struct {
	Link     *Link
	Distance float64
	T        float64
}

// FindNRoadLinksNearestToPoint returns up to n road links closest to (x, y) ordered by distance. When quickDist
// is positive links whose envelopes are farther than quickDist are rejected without exact computation
func (net *Network) FindNRoadLinksNearestToPoint(x, y float64, n int, quickDist float64) []LinkDistance {
	if n <= 0 {
		return []LinkDistance{}
	}
	tree := net.roadLinkIndex()
	pt := orb.Point{x, y}
	if quickDist > 0 {
		search, err := rtreego.NewRect(rtreego.Point{x - quickDist, y - quickDist}, []float64{2 * quickDist, 2 * quickDist})
		if err != nil {
			return []LinkDistance{}
		}
		return nearestLinks(pt, tree.SearchIntersect(search), n, quickDist)
	}
	total := tree.Size()
	// Envelope distance is a lower bound of exact distance: the k nearest envelopes are enough once the k-th
	// envelope is farther than the n-th exact distance
	for k := n*4 + 8; ; k *= 2 {
		if k > total {
			k = total
		}
		candidates := tree.NearestNeighbors(k, rtreego.Point{x, y})
		result := nearestLinks(pt, candidates, n, 0)
		if k == total || len(result) < n {
			return result
		}
		var last *indexedLink
		for i := len(candidates) - 1; i >= 0 && last == nil; i-- {
			if candidates[i] != nil {
				last = candidates[i].(*indexedLink)
			}
		}
		if last == nil || envelopeDistance(last.envelope, pt) > result[n-1].Distance {
			return result
		}
	}
}

// envelopeDistance returns distance from pt to the closest point of rect
func envelopeDistance(rect rtreego.Rect, pt orb.Point) float64 {
	var sq float64
	for i := 0; i < 2; i++ {
		lo := rect.PointCoord(i)
		hi := lo + rect.LengthsCoord(i)
		d := math.Max(math.Max(lo-pt[i], 0), pt[i]-hi)
		sq += d * d
	}
	return math.Sqrt(sq)
}

// nearestLinks computes exact distances of candidates and keeps the n closest ones
func nearestLinks(pt orb.Point, candidates []rtreego.Spatial, n int, quickDist float64) []LinkDistance {
	result := make([]LinkDistance, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		link := c.(*indexedLink).link
		d, t := DistanceFromPointToPolyline(pt, link.Geometry())
		if quickDist > 0 && d > quickDist {
			continue
		}
		result = append(result, LinkDistance{Link: link, Distance: d, T: t})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Distance == result[j].Distance {
			return result[i].Link.ID < result[j].Link.ID
		}
		return result[i].Distance < result[j].Distance
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
