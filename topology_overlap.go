package dtanet

import (
	"math"

	"github.com/paulmach/orb"
)

// departurePoint returns the first polyline point after node when walking link away from node
func departurePoint(link *Link, node *Node) orb.Point {
	if link.startNode == node {
		if len(link.shapePoints) > 0 {
			return link.shapePoints[0]
		}
		return link.endNode.geom
	}
	if len(link.shapePoints) > 0 {
		return link.shapePoints[len(link.shapePoints)-1]
	}
	return link.startNode.geom
}

// minAngleAtNode returns absolute angle (degrees) between two links measured at shared node
func minAngleAtNode(a, b *Link, node *Node) float64 {
	angle := angleBetweenVectors(node.geom, departurePoint(a, node), node.geom, departurePoint(b, node))
	return math.Abs(angle)
}

// isReversePair returns true for opposite directions of the same street
func isReversePair(a, b *Link) bool {
	return a.startNode == b.endNode && a.endNode == b.startNode
}

// OverlappingLinksAtNode returns pairs of adjacent links which leave node at an angle not greater than overlap
// threshold. Opposite directions of the same street are not reported
func (net *Network) OverlappingLinksAtNode(node *Node) [][2]*Link {
	links := node.AdjacentLinks()
	out := make([][2]*Link, 0)
	for i := 0; i < len(links); i++ {
		for j := i + 1; j < len(links); j++ {
			a, b := links[i], links[j]
			if isReversePair(a, b) {
				continue
			}
			if minAngleAtNode(a, b, node) <= net.cfg.OverlapThresholdDegrees {
				out = append(out, [2]*Link{a, b})
			}
		}
	}
	return out
}

func virtualEnd(link *Link) *Node {
	if link.startNode.IsVirtualNode() {
		return link.startNode
	}
	if link.endNode.IsVirtualNode() {
		return link.endNode
	}
	return nil
}

// HandleOverlappingLinks logs every pair of overlapping links (when warn is set). When moveVirtualNodeDist is
// positive and one of links has virtual node endpoint, that node is probed around to resolve the overlap.
// Returns number of found and resolved overlaps
func (net *Network) HandleOverlappingLinks(warn bool, moveVirtualNodeDist float64) (int, int) {
	found, resolved := 0, 0
	for _, node := range net.Nodes() {
		for _, pair := range net.OverlappingLinksAtNode(node) {
			a, b := pair[0], pair[1]
			if minAngleAtNode(a, b, node) > net.cfg.OverlapThresholdDegrees {
				// resolved by previous probing
				continue
			}
			found++
			if warn {
				logger.Warnf("Links %d and %d overlap at node %d (angle %.3f)", a.ID, b.ID, node.ID, minAngleAtNode(a, b, node))
			}
			if moveVirtualNodeDist <= 0 {
				continue
			}
			vnode := virtualEnd(a)
			if vnode == nil || vnode == node {
				vnode = virtualEnd(b)
			}
			if vnode == nil || vnode == node {
				continue
			}
			before := len(net.OverlappingLinksAtNode(node))
			ok := net.probeNodePosition(vnode, moveVirtualNodeDist, func() bool {
				return minAngleAtNode(a, b, node) > net.cfg.OverlapThresholdDegrees &&
					len(net.OverlappingLinksAtNode(node)) < before &&
					len(net.OverlappingLinksAtNode(vnode)) == 0
			})
			if ok {
				resolved++
				logger.Infof("Overlap of links %d and %d resolved by moving virtual node %d", a.ID, b.ID, vnode.ID)
			}
		}
	}
	return found, resolved
}

// HandleShortLinks finds road links and connectors shorter than minLength. They are logged when warn is set and
// stretched to minLength when setLength is set. Returns number of short links
func (net *Network) HandleShortLinks(minLength float64, warn, setLength bool) int {
	cnt := 0
	for _, link := range net.Links() {
		if link.IsVirtualLink() || link.length >= minLength {
			continue
		}
		cnt++
		if warn {
			logger.Warnf("Link %d (%d -> %d) is too short: %f < %f", link.ID, link.startNode.ID, link.endNode.ID, link.length, minLength)
		}
		if setLength {
			link.SetLength(minLength)
		}
	}
	return cnt
}
