package dtanet

import (
	"github.com/paulmach/orb"
)

// centroidAndRoadNode returns (centroid, road node) ends of connector if it links them directly
func centroidAndRoadNode(link *Link) (*Node, *Node, bool) {
	if !link.IsConnector() {
		return nil, nil, false
	}
	switch {
	case link.startNode.IsCentroid() && link.endNode.IsRoadNode():
		return link.startNode, link.endNode, true
	case link.startNode.IsRoadNode() && link.endNode.IsCentroid():
		return link.endNode, link.startNode, true
	}
	return nil, nil, false
}

// virtualNodePosition returns point located at distance from centroid along the connector. Centroid's own
// coordinates are used when connector is too short
func virtualNodePosition(connector *Link, centroid *Node, distance float64) orb.Point {
	if distance <= 0 {
		return centroid.geom
	}
	pt, err := connector.CoordinatesAlongLink(connector.startNode == centroid, distance, false)
	if err != nil {
		return centroid.geom
	}
	return pt
}

// replaceConnectorEnd creates connector equal to the given one but with the non-road end (or the road end when
// replaceRoadEnd is set) moved to node. Movements at the kept end are rebuilt, the old connector is removed
func (net *Network) replaceConnectorEnd(connector *Link, node *Node, replaceRoadEnd bool, autoLength bool) (*Link, error) {
	start, end := connector.startNode, connector.endNode
	startIsRoad := start.IsRoadNode()
	if startIsRoad != replaceRoadEnd {
		end = node
	} else {
		start = node
	}
	attrs := connector.Attributes()
	if autoLength {
		attrs.Length = -1
	}
	replacement, err := NewConnector(net.NewLinkID(), start, end, attrs)
	if err != nil {
		return nil, err
	}
	if !replaceRoadEnd {
		replacement.SetShapePoints(connector.shapePoints)
	}
	replacement.copyLanePermissions(connector)
	if err := net.AddLink(replacement); err != nil {
		return nil, err
	}
	if !replaceRoadEnd {
		// Movements at the road end survive
		if startIsRoad {
			for _, mov := range connector.IncomingMovements() {
				if _, err := net.rebuildMovement(mov, replacement.startNode, mov.incomingLink, replacement); err != nil {
					return nil, err
				}
			}
		} else {
			for _, mov := range connector.OutgoingMovements() {
				if _, err := net.rebuildMovement(mov, replacement.endNode, replacement, mov.outgoingLink); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := net.RemoveLink(connector); err != nil {
		return nil, err
	}
	return replacement, nil
}

// InsertVirtualNodeBetweenCentroidsAndRoadNodes puts virtual node between every centroid and road node connected
// directly by connector. Virtual node is placed at distance (coordinate units) from the centroid along the connector,
// non-positive distance falls back to Config.VirtualNodeDistance. Reverse connector shares the same virtual node.
// Ids of virtual nodes start from startVirtualNodeID (or from max node id + 1 when it is not positive). Returns
// number of created virtual nodes
func (net *Network) InsertVirtualNodeBetweenCentroidsAndRoadNodes(startVirtualNodeID NodeID, distance float64) (int, error) {
	if distance <= 0 {
		distance = net.cfg.VirtualNodeDistance
	}
	nextID := startVirtualNodeID
	if nextID <= 0 {
		nextID = net.NewNodeID()
	}
	created := 0
	for _, connector := range net.Connectors() {
		if !net.HasLinkForID(connector.ID) || net.links[connector.ID] != connector {
			continue
		}
		centroid, roadNode, ok := centroidAndRoadNode(connector)
		if !ok {
			continue
		}
		for net.HasNodeForID(nextID) {
			nextID++
		}
		pos := virtualNodePosition(connector, centroid, distance)
		virtualNode := NewVirtualNode(nextID, pos[0], pos[1], "", centroid.Level)
		if err := net.AddNode(virtualNode); err != nil {
			return created, err
		}
		nextID++
		created++

		pending := []*Link{connector}
		if reverse, ok := net.GetReverseLink(connector); ok && reverse.IsConnector() {
			pending = append(pending, reverse)
		}
		for _, conn := range pending {
			var vlink *Link
			var err error
			if conn.startNode == centroid {
				vlink, err = NewVirtualLink(net.NewLinkID(), centroid, virtualNode, "")
			} else {
				vlink, err = NewVirtualLink(net.NewLinkID(), virtualNode, centroid, "")
			}
			if err != nil {
				return created, err
			}
			if err := net.AddLink(vlink); err != nil {
				return created, err
			}
			if _, err := net.replaceConnectorEnd(conn, virtualNode, false, false); err != nil {
				return created, err
			}
		}
		logger.Debugf("Virtual node %d inserted between centroid %d and road node %d", virtualNode.ID, centroid.ID, roadNode.ID)
	}
	logger.Infof("%d virtual nodes inserted", created)
	return created, nil
}

// CentroidForVirtualNode returns centroid linked to virtual node by virtual link
func (net *Network) CentroidForVirtualNode(node *Node) (*Node, error) {
	for _, link := range node.AdjacentLinks() {
		if !link.IsVirtualLink() {
			continue
		}
		if link.startNode.IsCentroid() {
			return link.startNode, nil
		}
		return link.endNode, nil
	}
	return nil, dtaErrorf("virtual node %d is not linked to any centroid", node.ID)
}

// connectorCentroid returns centroid behind the connector (directly or via virtual node)
func (net *Network) connectorCentroid(connector *Link) (*Node, error) {
	anchor := connector.startNode
	if anchor.IsRoadNode() {
		anchor = connector.endNode
	}
	if anchor.IsCentroid() {
		return anchor, nil
	}
	return net.CentroidForVirtualNode(anchor)
}
