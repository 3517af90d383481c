package dtanet

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	minSplitFraction = 0.01
	maxSplitFraction = 0.99
	// Links meeting at (1,1) midblock node are merged only when they are this close (degrees) to a straight line
	mergeOrientationTolerance = 10.0
)

// rebuildMovement creates copy of movement between other links at node and puts it in place of the old one
// inside of every time plan of the node and every higher priority list at the node
func (net *Network) rebuildMovement(old *Movement, node *Node, in, out *Link) (*Movement, error) {
	mov, err := NewMovement(node, in, out, old.freeflowSpeed, old.permission, old.numLanes, old.incomingLane, old.outgoingLane, old.followupTime)
	if err != nil {
		return nil, err
	}
	mov.turnTypeOverride = old.turnTypeOverride
	mov.higherPriority = append(mov.higherPriority, old.higherPriority...)
	if err := net.AddMovement(mov); err != nil {
		return nil, err
	}
	for _, plan := range node.timePlans {
		plan.replaceMovement(old, mov)
	}
	for _, link := range node.incomingLinks {
		for _, other := range link.outgoingMovements {
			other.replaceHigherPriorityMovement(old, mov)
		}
	}
	return mov, nil
}

// splitShapePoints divides shape points into the parts before and after the split point
func splitShapePoints(shape []orb.Point, idx int, pt orb.Point) ([]orb.Point, []orb.Point) {
	first := make([]orb.Point, 0, idx)
	second := make([]orb.Point, 0, len(shape)-idx)
	for i, sp := range shape {
		if sp == pt {
			continue
		}
		if i < idx {
			first = append(first, sp)
		} else {
			second = append(second, sp)
		}
	}
	return first, second
}

// splitSingleLink replaces link by (start -> mid) and (mid -> end) and rebuilds its movements
func (net *Network) splitSingleLink(link *Link, midNode *Node, shapeIdx int, fraction float64) (*Link, *Link, error) {
	attrs1 := link.Attributes()
	attrs2 := link.Attributes()
	if link.autoLength {
		attrs1.Length, attrs2.Length = -1, -1
	} else {
		attrs1.Length = fraction * link.length
		attrs2.Length = (1 - fraction) * link.length
	}
	link1, err := NewRoadLink(net.NewLinkID(), link.startNode, midNode, attrs1)
	if err != nil {
		return nil, nil, err
	}
	shape1, shape2 := splitShapePoints(link.shapePoints, shapeIdx, midNode.geom)
	link1.SetShapePoints(shape1)
	link1.copyLanePermissions(link)
	if err := net.AddLink(link1); err != nil {
		return nil, nil, err
	}
	link2, err := NewRoadLink(net.NewLinkID(), midNode, link.endNode, attrs2)
	if err != nil {
		return nil, nil, err
	}
	link2.SetShapePoints(shape2)
	link2.copyLanePermissions(link)
	if err := net.AddLink(link2); err != nil {
		return nil, nil, err
	}
	if link.shifts != nil {
		link1.SetShifts(link.shifts.Start, 0)
		link2.SetShifts(0, link.shifts.End)
	}

	for _, mov := range link.IncomingMovements() {
		if _, err := net.rebuildMovement(mov, link.startNode, mov.incomingLink, link1); err != nil {
			return nil, nil, err
		}
	}
	for _, mov := range link.OutgoingMovements() {
		if _, err := net.rebuildMovement(mov, link.endNode, link2, mov.outgoingLink); err != nil {
			return nil, nil, err
		}
	}
	if err := net.RemoveLink(link); err != nil {
		return nil, nil, err
	}

	thru, err := NewMovement(midNode, link1, link2, link1.freeflowSpeed, net.movementPermission(link1, link2, net.scenario.AllGroup()), link1.numLanes, -1, -1, -1)
	if err != nil {
		return nil, nil, err
	}
	if err := net.AddMovement(thru); err != nil {
		return nil, nil, err
	}
	return link1, link2, nil
}

// SplitLink splits road link at given fraction of its polyline creating new midblock road node. When
// splitReverseLink is set the reverse link is split at the same node and prohibited U-turns are added there
func (net *Network) SplitLink(link *Link, splitReverseLink bool, fraction float64) (*Node, error) {
	if !link.IsRoadLink() {
		return nil, dtaErrorf("only road links can be split, link %d is %s", link.ID, link.kind)
	}
	if fraction <= minSplitFraction || fraction >= maxSplitFraction {
		return nil, dtaErrorf("split fraction %f of link %d must be in (%.2f, %.2f)", fraction, link.ID, minSplitFraction, maxSplitFraction)
	}
	pt, shapeIdx, err := link.CoordinatesAndShapePointIdxAlongLink(fraction)
	if err != nil {
		return nil, err
	}
	reverse, hasReverse := net.GetReverseLink(link)
	hasReverse = hasReverse && splitReverseLink && reverse.IsRoadLink()

	midNode := NewRoadNode(net.NewNodeID(), pt[0], pt[1], GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", link.level)
	if err := net.AddNode(midNode); err != nil {
		return nil, err
	}
	link1, link2, err := net.splitSingleLink(link, midNode, shapeIdx, fraction)
	if err != nil {
		return nil, err
	}
	if !hasReverse {
		logger.Debugf("Link %d split at node %d", link.ID, midNode.ID)
		return midNode, nil
	}

	_, rt := DistanceFromPointToPolyline(pt, reverse.Geometry())
	if rt <= 0 || rt >= 1 {
		rt = 1 - fraction
	}
	_, rShapeIdx, err := reverse.CoordinatesAndShapePointIdxAlongLink(rt)
	if err != nil {
		return nil, err
	}
	rlink1, rlink2, err := net.splitSingleLink(reverse, midNode, rShapeIdx, rt)
	if err != nil {
		return nil, err
	}
	prohibited := net.scenario.ProhibitedGroup()
	for _, pair := range [][2]*Link{{link1, rlink2}, {rlink1, link2}} {
		uturn, err := NewMovement(midNode, pair[0], pair[1], pair[0].freeflowSpeed, prohibited, pair[0].numLanes, -1, -1, -1)
		if err != nil {
			return nil, err
		}
		if err := net.AddMovement(uturn); err != nil {
			return nil, err
		}
	}
	logger.Debugf("Links %d and %d split at node %d", link.ID, reverse.ID, midNode.ID)
	return midNode, nil
}

func sameLanePermissions(a, b *Link) bool {
	if len(a.lanePermissions) != len(b.lanePermissions) {
		return false
	}
	for lane, group := range a.lanePermissions {
		other, ok := b.lanePermissions[lane]
		if !ok || other.Name != group.Name {
			return false
		}
	}
	return true
}

// canMerge checks preconditions of MergeLinks. Orientation is checked for (1,1) nodes only
func (net *Network) canMerge(link1, link2 *Link, checkOrientation bool) error {
	if !link1.IsRoadLink() || !link2.IsRoadLink() {
		return dtaErrorf("only road links can be merged: link %d is %s, link %d is %s", link1.ID, link1.kind, link2.ID, link2.kind)
	}
	if link1.endNode != link2.startNode {
		return dtaErrorf("links %d and %d are not sequential", link1.ID, link2.ID)
	}
	if link1.startNode == link2.endNode {
		return dtaErrorf("links %d and %d form a loop", link1.ID, link2.ID)
	}
	node := link1.endNode
	if !node.IsMidblockNode() || node.GetNumAdjacentLinks() != node.GetNumAdjacentRoadLinks() {
		return dtaErrorf("node %d between links %d and %d is not a midblock node", node.ID, link1.ID, link2.ID)
	}
	if node.HasTimePlan() {
		return dtaErrorf("node %d between links %d and %d is signalized", node.ID, link1.ID, link2.ID)
	}
	in, _ := node.GetCardinality()
	if checkOrientation && in == 1 && math.Abs(link1.GetAngle(link2, true)) > mergeOrientationTolerance {
		return dtaErrorf("links %d and %d have different orientation at node %d", link1.ID, link2.ID, node.ID)
	}
	if !sameAttributes(link1.Attributes(), link2.Attributes()) || link1.autoLength != link2.autoLength {
		return dtaErrorf("links %d and %d have different attributes", link1.ID, link2.ID)
	}
	if !sameLanePermissions(link1, link2) {
		return dtaErrorf("links %d and %d have different lane permissions", link1.ID, link2.ID)
	}
	return nil
}

// MergeLinks replaces two sequential links sharing midblock node by one link. The node is removed if orphan
func (net *Network) MergeLinks(link1, link2 *Link) (*Link, error) {
	if err := net.canMerge(link1, link2, true); err != nil {
		return nil, err
	}
	return net.mergeLinks(link1, link2)
}

func (net *Network) mergeLinks(link1, link2 *Link) (*Link, error) {
	node := link1.endNode
	attrs := link1.Attributes()
	if link1.autoLength {
		attrs.Length = -1
	} else {
		attrs.Length = link1.length + link2.length
	}
	merged, err := NewRoadLink(net.NewLinkID(), link1.startNode, link2.endNode, attrs)
	if err != nil {
		return nil, err
	}
	shape := make([]orb.Point, 0, len(link1.shapePoints)+len(link2.shapePoints)+1)
	shape = append(shape, link1.shapePoints...)
	shape = append(shape, node.geom)
	shape = append(shape, link2.shapePoints...)
	merged.SetShapePoints(shape)
	merged.copyLanePermissions(link1)
	if link1.shifts != nil || link2.shifts != nil {
		s1, _ := link1.Shifts()
		s2, _ := link2.Shifts()
		merged.SetShifts(s1.Start, s2.End)
	}
	if err := net.AddLink(merged); err != nil {
		return nil, err
	}
	for _, mov := range link1.IncomingMovements() {
		if _, err := net.rebuildMovement(mov, link1.startNode, mov.incomingLink, merged); err != nil {
			return nil, err
		}
	}
	for _, mov := range link2.OutgoingMovements() {
		out := mov.outgoingLink
		if out == link1 {
			continue
		}
		if _, err := net.rebuildMovement(mov, link2.endNode, merged, out); err != nil {
			return nil, err
		}
	}
	if err := net.RemoveLink(link1); err != nil {
		return nil, err
	}
	if err := net.RemoveLink(link2); err != nil {
		return nil, err
	}
	if node.GetNumAdjacentLinks() == 0 {
		if err := net.RemoveNode(node); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// RemoveShapePointNodes merges links across every midblock node of cardinality (1,1) or (2,2). Nodes with
// links that can't be merged are kept. Returns number of removed nodes
func (net *Network) RemoveShapePointNodes() (int, error) {
	removed := 0
	for _, node := range net.RoadNodes() {
		if !net.HasNodeForID(node.ID) || !node.IsMidblockNode() {
			continue
		}
		in, _ := node.GetCardinality()
		pairs := make([][2]*Link, 0, 2)
		if in == 1 {
			pairs = append(pairs, [2]*Link{node.incomingLinks[0], node.outgoingLinks[0]})
		} else {
			for _, inLink := range node.incomingLinks {
				for _, outLink := range node.outgoingLinks {
					if outLink.endNode != inLink.startNode {
						pairs = append(pairs, [2]*Link{inLink, outLink})
					}
				}
			}
		}
		ok := len(pairs) == in
		for _, pair := range pairs {
			if err := net.canMerge(pair[0], pair[1], in == 1); err != nil {
				logger.Debugf("Node %d is kept: %s", node.ID, err)
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for _, pair := range pairs {
			if _, err := net.mergeLinks(pair[0], pair[1]); err != nil {
				return removed, err
			}
		}
		if !net.HasNodeForID(node.ID) {
			removed++
		}
	}
	logger.Infof("%d shape point nodes removed", removed)
	return removed, nil
}
