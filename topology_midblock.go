package dtanet

import (
	"sort"

	"github.com/paulmach/orb"
)

// MidblockOptions tunes relocation of connectors from intersections to midblocks
type MidblockOptions struct {
	// Road links for which SplitVeto returns true are never split (e.g. freeways and ramps)
	SplitVeto LinkPredicate
	// Road links shorter than this (link length units) are not split. Zero means network default
	MinSplitLength float64
	// When positive, virtual node is probed around by this distance if no candidate is visible
	MoveVirtualNodeDist float64
}

// probeOffsets returns eight neighbouring offsets of given distance in random order
func (net *Network) probeOffsets(dist float64) []orb.Point {
	offsets := []orb.Point{
		{dist, 0}, {-dist, 0}, {0, dist}, {0, -dist},
		{dist, dist}, {dist, -dist}, {-dist, dist}, {-dist, -dist},
	}
	net.rnd.Shuffle(len(offsets), func(i, j int) { offsets[i], offsets[j] = offsets[j], offsets[i] })
	return offsets
}

// probeNodePosition moves node to each of eight offsets until accept returns true. The original position is
// restored when no offset is accepted
func (net *Network) probeNodePosition(node *Node, dist float64, accept func() bool) bool {
	origin := node.geom
	for _, offset := range net.probeOffsets(dist) {
		net.MoveNode(node, origin[0]+offset[0], origin[1]+offset[1])
		if accept() {
			return true
		}
	}
	net.MoveNode(node, origin[0], origin[1])
	return false
}

func vetoed(veto LinkPredicate, link *Link) bool {
	return veto != nil && veto(link)
}

// splitCandidates returns adjacent road links of roadNode which may be split for connector anchored at anchor,
// longest first
func (net *Network) splitCandidates(roadNode, anchor *Node, opts MidblockOptions, minLength float64) []*Link {
	adjacent := make([]*Link, 0, roadNode.GetNumAdjacentLinks())
	for _, link := range roadNode.AdjacentLinks() {
		if link.IsRoadLink() && !vetoed(opts.SplitVeto, link) {
			adjacent = append(adjacent, link)
		}
	}
	laneWidth := net.cfg.LaneWidth
	candidates := make([]*Link, 0, len(adjacent))
	for _, link := range adjacent {
		if link.length < minLength {
			continue
		}
		sight := orb.LineString{anchor.geom, link.MidPoint()}
		visible := true
		for _, other := range adjacent {
			if other == link {
				continue
			}
			if rev, ok := net.GetReverseLink(link); ok && rev == other {
				continue
			}
			if PolylinesCross(sight, other.CenterLine(laneWidth)) {
				visible = false
				break
			}
		}
		if visible {
			candidates = append(candidates, link)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].length == candidates[j].length {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].length > candidates[j].length
	})
	return candidates
}

// otherEnd returns endpoint of link different from node
func otherEnd(link *Link, node *Node) *Node {
	if link.startNode == node {
		return link.endNode
	}
	return link.startNode
}

// connectorMovements adds movements between connector and every road link at its road end
func (net *Network) connectorMovements(connector *Link) error {
	all := net.scenario.AllGroup()
	if connector.EndIsRoadNode() {
		node := connector.endNode
		for _, out := range node.outgoingLinks {
			if out.IsVirtualLink() || connector.movementTo(out) != nil || out.endNode == connector.startNode {
				continue
			}
			mov, err := NewMovement(node, connector, out, connector.freeflowSpeed, net.movementPermission(connector, out, all), lesserLanes(connector, out), -1, -1, -1)
			if err != nil {
				return err
			}
			if err := net.AddMovement(mov); err != nil {
				return err
			}
		}
		return nil
	}
	node := connector.startNode
	for _, in := range node.incomingLinks {
		if in.IsVirtualLink() || in.movementTo(connector) != nil || in.startNode == connector.endNode {
			continue
		}
		mov, err := NewMovement(node, in, connector, in.freeflowSpeed, net.movementPermission(in, connector, all), lesserLanes(in, connector), -1, -1, -1)
		if err != nil {
			return err
		}
		if err := net.AddMovement(mov); err != nil {
			return err
		}
	}
	return nil
}

func lesserLanes(a, b *Link) int {
	if a.numLanes < b.numLanes {
		return a.numLanes
	}
	return b.numLanes
}

// relocateAnchor moves connectors between anchor and roadNode to a midblock node. Returns false if no suitable
// midblock was found
func (net *Network) relocateAnchor(roadNode, anchor *Node, opts MidblockOptions, minLength float64) (bool, []*Link, error) {
	candidates := net.splitCandidates(roadNode, anchor, opts, minLength)
	if len(candidates) == 0 && opts.MoveVirtualNodeDist > 0 && !anchor.IsCentroid() {
		net.probeNodePosition(anchor, opts.MoveVirtualNodeDist, func() bool {
			candidates = net.splitCandidates(roadNode, anchor, opts, minLength)
			return len(candidates) > 0
		})
	}
	if len(candidates) == 0 {
		return false, nil, nil
	}
	var target *Node
	for _, link := range candidates {
		if end := otherEnd(link, roadNode); end.IsMidblockNode() {
			target = end
			break
		}
	}
	if target == nil {
		var err error
		target, err = net.SplitLink(candidates[0], true, 0.5)
		if err != nil {
			return false, nil, err
		}
	}
	moved := make([]*Link, 0, 2)
	for _, link := range roadNode.AdjacentLinks() {
		if !link.IsConnector() || otherEnd(link, roadNode) != anchor {
			continue
		}
		replacement, err := net.replaceConnectorEnd(link, target, true, true)
		if err != nil {
			return false, nil, err
		}
		if err := net.connectorMovements(replacement); err != nil {
			return false, nil, err
		}
		moved = append(moved, replacement)
	}
	logger.Debugf("Connectors of node %d moved from intersection %d to midblock node %d", anchor.ID, roadNode.ID, target.ID)
	return true, moved, nil
}

// MoveCentroidConnectorsFromIntersectionsToMidblocks moves every connector attached to an intersection to
// a midblock node on one of the adjacent road links (splitting the link when needed). Lane counts of moved
// connectors are reconciled and duplicate connectors are collapsed. Returns number of relocated anchors
func (net *Network) MoveCentroidConnectorsFromIntersectionsToMidblocks(opts MidblockOptions) (int, error) {
	minLength := opts.MinSplitLength
	if minLength <= 0 {
		minLength = net.cfg.MinSplitLinkLength
	}
	relocated := 0
	moved := make([]*Link, 0)
	for _, roadNode := range net.RoadNodes() {
		if !net.HasNodeForID(roadNode.ID) || !roadNode.HasConnector() || roadNode.IsJunction() {
			continue
		}
		anchors := make([]*Node, 0)
		seen := make(map[NodeID]struct{})
		for _, link := range roadNode.AdjacentLinks() {
			if !link.IsConnector() {
				continue
			}
			anchor := otherEnd(link, roadNode)
			if _, ok := seen[anchor.ID]; ok {
				continue
			}
			seen[anchor.ID] = struct{}{}
			anchors = append(anchors, anchor)
		}
		sort.Slice(anchors, func(i, j int) bool { return anchors[i].ID < anchors[j].ID })
		for _, anchor := range anchors {
			ok, links, err := net.relocateAnchor(roadNode, anchor, opts, minLength)
			if err != nil {
				return relocated, err
			}
			if !ok {
				logger.Warnf("Can't find midblock for connectors between node %d and intersection %d", anchor.ID, roadNode.ID)
				continue
			}
			relocated++
			moved = append(moved, links...)
		}
	}
	for _, connector := range moved {
		if net.links[connector.ID] != connector {
			continue
		}
		if err := net.reconcileConnectorLanes(connector); err != nil {
			return relocated, err
		}
	}
	if _, err := net.RemoveDuplicateConnectors(); err != nil {
		return relocated, err
	}
	logger.Infof("%d connector anchors moved to midblocks", relocated)
	return relocated, nil
}

// reconcileConnectorLanes sets lane count of connector: boundary connectors get sum of road lanes entering (for
// outgoing connectors) or exiting (for incoming ones) the road node, others adopt the lanes of through road link
func (net *Network) reconcileConnectorLanes(connector *Link) error {
	centroid, err := net.connectorCentroid(connector)
	if err != nil {
		return err
	}
	var roadNode *Node
	var roadLinks []*Link
	if connector.StartIsRoadNode() {
		roadNode = connector.startNode
		roadLinks = roadNode.incomingLinks
	} else {
		roadNode = connector.endNode
		roadLinks = roadNode.outgoingLinks
	}
	total, widest := 0, 0
	for _, link := range roadLinks {
		if !link.IsRoadLink() {
			continue
		}
		total += link.numLanes
		if link.numLanes > widest {
			widest = link.numLanes
		}
	}
	if total == 0 {
		return nil
	}
	if centroid.IsBoundary() {
		return connector.SetNumLanes(total)
	}
	if through := throughRoadLink(roadNode, roadLinks, otherEnd(connector, roadNode)); through != nil {
		return connector.SetNumLanes(through.numLanes)
	}
	return connector.SetNumLanes(widest)
}

// throughRoadLink picks among road links at node the one which continues through node to another road link
// (U-turns aside). When both directions continue, the link having anchor on its right side wins
func throughRoadLink(node *Node, roadLinks []*Link, anchor *Node) *Link {
	var through []*Link
	for _, link := range roadLinks {
		if !link.IsRoadLink() {
			continue
		}
		from := otherEnd(link, node)
		for _, other := range node.AdjacentLinks() {
			if other == link || !other.IsRoadLink() || otherEnd(other, node) == from {
				continue
			}
			if (link.endNode == node) == (other.startNode == node) {
				through = append(through, link)
				break
			}
		}
	}
	if len(through) == 0 {
		return nil
	}
	sort.Slice(through, func(i, j int) bool { return through[i].ID < through[j].ID })
	for _, link := range through {
		if crossProduct(link.startNode.geom, link.endNode.geom, anchor.geom) < 0 {
			return link
		}
	}
	return through[0]
}

// RemoveDuplicateConnectors collapses connectors leading from different virtual nodes of the same centroid to the
// same road node: only connectors of the lowest-id virtual node are kept. Virtual nodes left without connectors
// are removed. Returns number of removed connectors
func (net *Network) RemoveDuplicateConnectors() (int, error) {
	type key struct {
		centroid NodeID
		road     NodeID
	}
	keep := make(map[key]*Node)
	for _, connector := range net.Connectors() {
		anchor := otherEnd(connector, roadEnd(connector))
		if !anchor.IsVirtualNode() {
			continue
		}
		centroid, err := net.CentroidForVirtualNode(anchor)
		if err != nil {
			continue
		}
		k := key{centroid.ID, roadEnd(connector).ID}
		if current, ok := keep[k]; !ok || anchor.ID < current.ID {
			keep[k] = anchor
		}
	}
	removed := 0
	for _, connector := range net.Connectors() {
		anchor := otherEnd(connector, roadEnd(connector))
		if !anchor.IsVirtualNode() {
			continue
		}
		centroid, err := net.CentroidForVirtualNode(anchor)
		if err != nil {
			continue
		}
		if keep[key{centroid.ID, roadEnd(connector).ID}] == anchor {
			continue
		}
		if err := net.RemoveLink(connector); err != nil {
			return removed, err
		}
		removed++
		hasConnector := false
		for _, link := range anchor.AdjacentLinks() {
			if link.IsConnector() {
				hasConnector = true
				break
			}
		}
		if !hasConnector {
			if err := net.RemoveNode(anchor); err != nil {
				return removed, err
			}
		}
	}
	if removed > 0 {
		logger.Infof("%d duplicate connectors removed", removed)
	}
	return removed, nil
}

func roadEnd(connector *Link) *Node {
	if connector.startNode.IsRoadNode() {
		return connector.startNode
	}
	return connector.endNode
}
