package dtanet

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

const (
	SECTION_NODES           = "NODES"
	SECTION_CENTROIDS       = "CENTROIDS"
	SECTION_LINKS           = "LINKS"
	SECTION_LANE_PERMS      = "LANE_PERMS"
	SECTION_LINK_EVENTS     = "LINK_EVENTS"
	SECTION_LANE_EVENTS     = "LANE_EVENTS"
	SECTION_VIRTUAL_LINKS   = "VIRTUAL_LINKS"
	SECTION_MOVEMENTS       = "MOVEMENTS"
	SECTION_MOVEMENT_EVENTS = "MOVEMENT_EVENTS"

	SECTION_SHIFTS   = "SHIFTS"
	SECTION_VERTICES = "VERTICES"
)

var baseNetworkSections = []string{
	SECTION_NODES,
	SECTION_CENTROIDS,
	SECTION_LINKS,
	SECTION_LANE_PERMS,
	SECTION_LINK_EVENTS,
	SECTION_LANE_EVENTS,
	SECTION_VIRTUAL_LINKS,
	SECTION_MOVEMENTS,
	SECTION_MOVEMENT_EVENTS,
}

var advancedNetworkSections = []string{
	SECTION_SHIFTS,
	SECTION_VERTICES,
}

var eventSections = []string{SECTION_LINK_EVENTS, SECTION_LANE_EVENTS, SECTION_MOVEMENT_EVENTS}

// ReadNetwork reads base network file and (optionally) advanced network file
func ReadNetwork(scn *Scenario, basePath, advancedPath string, options ...func(*Network)) (*Network, error) {
	net := NewNetwork(scn, options...)
	base, err := readSectionedFile(basePath, baseNetworkSections)
	if err != nil {
		return nil, err
	}
	if err := net.readBaseNetwork(base); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't read base network '%s'", basePath))
	}
	if advancedPath != "" {
		advanced, err := readSectionedFile(advancedPath, advancedNetworkSections)
		if err != nil {
			return nil, err
		}
		if err := net.readAdvancedNetwork(advanced); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't read advanced network '%s'", advancedPath))
		}
	}
	logger.Infof("Read network: %s", net)
	return net, nil
}

func (net *Network) readBaseNetwork(sf *sectionedFile) error {
	nodeRecords, err := sf.records(SECTION_NODES)
	if err != nil {
		return err
	}
	for _, rec := range nodeRecords {
		fp, err := newFieldParser(rec, 7)
		if err != nil {
			return err
		}
		id, x, y := fp.asInt(0), fp.asFloat(1), fp.asFloat(2)
		control, priority, geometryType, level := fp.asInt(3), fp.asInt(4), fp.asInt(5), fp.asInt(6)
		if fp.err != nil {
			return fp.err
		}
		if control != int(CONTROL_UNSIGNALIZED) && control != int(CONTROL_SIGNALIZED) {
			return dtaErrorf("node %d: bad control type %d", id, control)
		}
		if !validPriorityTemplate(priority) {
			return dtaErrorf("node %d: bad priority template %d", id, priority)
		}
		var node *Node
		switch GeometryType(geometryType) {
		case GEOMETRY_VIRTUAL:
			node = NewVirtualNode(NodeID(id), x, y, fp.str(7), level)
		case GEOMETRY_INTERSECTION, GEOMETRY_JUNCTION:
			node = NewRoadNode(NodeID(id), x, y, GeometryType(geometryType), ControlType(control), PriorityTemplate(priority), fp.str(7), level)
		case GEOMETRY_CENTROID:
			return dtaErrorf("node %d: centroids belong to %s section", id, SECTION_CENTROIDS)
		default:
			return dtaErrorf("node %d: bad geometry type %d", id, geometryType)
		}
		if err := net.AddNode(node); err != nil {
			return err
		}
	}

	centroidRecords, err := sf.records(SECTION_CENTROIDS)
	if err != nil {
		return err
	}
	for _, rec := range centroidRecords {
		fp, err := newFieldParser(rec, 4)
		if err != nil {
			return err
		}
		id, x, y, level := fp.asInt(0), fp.asFloat(1), fp.asFloat(2), fp.asInt(3)
		if fp.err != nil {
			return fp.err
		}
		if err := net.AddNode(NewCentroid(NodeID(id), x, y, fp.str(4), level)); err != nil {
			return err
		}
	}

	linkRecords, err := sf.records(SECTION_LINKS)
	if err != nil {
		return err
	}
	for _, rec := range linkRecords {
		fp, err := newFieldParser(rec, 12)
		if err != nil {
			return err
		}
		id, startID, endID := fp.asInt(0), fp.asInt(1), fp.asInt(2)
		attrs := LinkAttributes{
			FacilityType:          fp.asInt(4),
			Length:                fp.asFloat(5),
			FreeflowSpeed:         fp.asFloat(6),
			EffectiveLengthFactor: fp.asFloat(7),
			ResponseTimeFactor:    fp.asFloat(8),
			NumLanes:              fp.asInt(9),
			Roundabout:            fp.asInt(10) != 0,
			Level:                 fp.asInt(11),
			Label:                 fp.str(12),
		}
		if len(fp.fields) > 13 {
			attrs.Group = fp.asInt(13)
		}
		if len(fp.fields) > 14 {
			attrs.TollLink = fp.asInt(14) != 0
		}
		if fp.err != nil {
			return fp.err
		}
		start, err := net.GetNodeForID(NodeID(startID))
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Link %d", id))
		}
		end, err := net.GetNodeForID(NodeID(endID))
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Link %d", id))
		}
		var link *Link
		if start.IsRoadNode() && end.IsRoadNode() {
			link, err = NewRoadLink(LinkID(id), start, end, attrs)
		} else {
			link, err = NewConnector(LinkID(id), start, end, attrs)
		}
		if err != nil {
			return err
		}
		if err := net.AddLink(link); err != nil {
			return err
		}
	}

	for _, rec := range sf.optionalRecords(SECTION_LANE_PERMS) {
		fp, err := newFieldParser(rec, 3)
		if err != nil {
			return err
		}
		linkID, lane := fp.asInt(0), fp.asInt(1)
		if fp.err != nil {
			return fp.err
		}
		link, err := net.GetLinkForID(LinkID(linkID))
		if err != nil {
			return err
		}
		group, err := net.scenario.GetVehicleClassGroup(fp.str(2))
		if err != nil {
			return err
		}
		if err := link.AddLanePermission(lane, group); err != nil {
			return err
		}
	}

	for _, section := range eventSections {
		if recs := sf.optionalRecords(section); len(recs) > 0 {
			net.events[section] = append([]string{}, recs...)
		}
	}

	for _, rec := range sf.optionalRecords(SECTION_VIRTUAL_LINKS) {
		fp, err := newFieldParser(rec, 2)
		if err != nil {
			return err
		}
		centroidID, connectorID := fp.asInt(0), fp.asInt(1)
		if fp.err != nil {
			return fp.err
		}
		if err := net.addVirtualLinkForConnector(NodeID(centroidID), LinkID(connectorID)); err != nil {
			return err
		}
	}

	movementRecords, err := sf.records(SECTION_MOVEMENTS)
	if err != nil {
		return err
	}
	for _, rec := range movementRecords {
		fp, err := newFieldParser(rec, 9)
		if err != nil {
			return err
		}
		nodeID, inID, outID := fp.asInt(0), fp.asInt(1), fp.asInt(2)
		speed := fp.asFloat(3)
		lanes, inLane, outLane := fp.asInt(5), fp.asInt(6), fp.asInt(7)
		followup := fp.asFloat(8)
		if fp.err != nil {
			return fp.err
		}
		node, err := net.GetNodeForID(NodeID(nodeID))
		if err != nil {
			return err
		}
		in, err := net.GetLinkForID(LinkID(inID))
		if err != nil {
			return err
		}
		out, err := net.GetLinkForID(LinkID(outID))
		if err != nil {
			return err
		}
		group, err := net.scenario.GetVehicleClassGroup(fp.str(4))
		if err != nil {
			return err
		}
		mov, err := NewMovement(node, in, out, speed, group, lanes, inLane, outLane, followup)
		if err != nil {
			return err
		}
		if err := net.AddMovement(mov); err != nil {
			return err
		}
	}
	return nil
}

// addVirtualLinkForConnector links centroid with the non-road end of connector
func (net *Network) addVirtualLinkForConnector(centroidID NodeID, connectorID LinkID) error {
	centroid, err := net.GetNodeForID(centroidID)
	if err != nil {
		return err
	}
	if !centroid.IsCentroid() {
		return dtaErrorf("node %d of virtual link is not a centroid", centroidID)
	}
	connector, err := net.GetLinkForID(connectorID)
	if err != nil {
		return err
	}
	if !connector.IsConnector() {
		return dtaErrorf("link %d of virtual link is not a connector", connectorID)
	}
	var start, end *Node
	if connector.StartIsRoadNode() {
		start, end = connector.endNode, centroid
	} else {
		start, end = centroid, connector.startNode
	}
	if net.HasLinkForNodeIdPair(start.ID, end.ID) {
		return nil
	}
	vlink, err := NewVirtualLink(net.NewLinkID(), start, end, "")
	if err != nil {
		return err
	}
	return net.AddLink(vlink)
}

func (net *Network) readAdvancedNetwork(sf *sectionedFile) error {
	for _, rec := range sf.optionalRecords(SECTION_SHIFTS) {
		fp, err := newFieldParser(rec, 3)
		if err != nil {
			return err
		}
		id, startShift, endShift := fp.asInt(0), fp.asFloat(1), fp.asFloat(2)
		if fp.err != nil {
			return fp.err
		}
		link, err := net.GetLinkForID(LinkID(id))
		if err != nil {
			return err
		}
		link.SetShifts(startShift, endShift)
	}
	shapes := make(map[LinkID][]orb.Point)
	order := make([]LinkID, 0)
	for _, rec := range sf.optionalRecords(SECTION_VERTICES) {
		fp, err := newFieldParser(rec, 4)
		if err != nil {
			return err
		}
		id, x, y := LinkID(fp.asInt(0)), fp.asFloat(2), fp.asFloat(3)
		if fp.err != nil {
			return fp.err
		}
		if _, ok := shapes[id]; !ok {
			order = append(order, id)
		}
		shapes[id] = append(shapes[id], orb.Point{x, y})
	}
	for _, id := range order {
		link, err := net.GetLinkForID(id)
		if err != nil {
			return err
		}
		link.SetShapePoints(shapes[id])
		net.updateAutoLength(link)
	}
	net.invalidateIndices()
	return nil
}

// WriteNetwork writes base network file and (when advancedPath is not empty) advanced network file
func (net *Network) WriteNetwork(basePath, advancedPath string) error {
	if err := writeFile(basePath, net.writeBaseNetwork); err != nil {
		return err
	}
	if advancedPath == "" {
		return nil
	}
	return writeFile(advancedPath, net.writeAdvancedNetwork)
}

// writeFile buffers output of fn. Buffered writer keeps the first write error and returns it on Flush
func writeFile(path string, fn func(w io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't create file '%s'", path))
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, fmt.Sprintf("Can't close file '%s'", path))
		}
	}()
	w := bufio.NewWriter(file)
	if err := fn(w); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't write file '%s'", path))
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't flush file '%s'", path))
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (net *Network) writeBaseNetwork(w io.Writer) error {
	fmt.Fprintf(w, "<DYNAMEQ>\n<VERSION_1.8>\n<BASE_NETWORK_FILE>\n* Created by dtanet\n")
	fmt.Fprintf(w, "%s\n*        id           x           y  control  priority  type  level  label\n", SECTION_NODES)
	for _, node := range net.Nodes() {
		if node.IsCentroid() {
			continue
		}
		fmt.Fprintf(w, "%d %s %s %d %d %d %d %s\n", node.ID, formatFloat(node.geom[0]), formatFloat(node.geom[1]), node.control, node.priority, node.geometryType, node.Level, quote(node.Label))
	}
	fmt.Fprintf(w, "%s\n*        id           x           y  level  label\n", SECTION_CENTROIDS)
	for _, node := range net.Centroids() {
		fmt.Fprintf(w, "%d %s %s %d %s\n", node.ID, formatFloat(node.geom[0]), formatFloat(node.geom[1]), node.Level, quote(node.Label))
	}
	fmt.Fprintf(w, "%s\n*  id  start  end  rev  faci  len  fspeed  lenfac  resfac  lanes  rabout  level  label  group  toll\n", SECTION_LINKS)
	for _, link := range net.Links() {
		if link.IsVirtualLink() {
			continue
		}
		rev := -1
		if reverse, ok := net.GetReverseLink(link); ok && !reverse.IsVirtualLink() {
			rev = int(reverse.ID)
		}
		length := link.length
		if link.autoLength {
			length = -1
		}
		fmt.Fprintf(w, "%d %d %d %d %d %s %s %s %s %d %d %d %s %d %d\n", link.ID, link.startNode.ID, link.endNode.ID, rev, link.facilityType,
			formatFloat(length), formatFloat(link.freeflowSpeed), formatFloat(link.effectiveLengthFactor), formatFloat(link.responseTimeFactor),
			link.numLanes, boolToInt(link.roundabout), link.level, quote(link.Label), link.group, boolToInt(link.tollLink))
	}
	fmt.Fprintf(w, "%s\n*  link_id  lane_id  group\n", SECTION_LANE_PERMS)
	for _, link := range net.Links() {
		for _, lane := range link.LanesWithPermissions() {
			group, _ := link.GetLanePermission(lane)
			fmt.Fprintf(w, "%d %d %s\n", link.ID, lane, group.Name)
		}
	}
	for _, section := range []string{SECTION_LINK_EVENTS, SECTION_LANE_EVENTS} {
		fmt.Fprintf(w, "%s\n", section)
		for _, rec := range net.events[section] {
			fmt.Fprintf(w, "%s\n", rec)
		}
	}
	fmt.Fprintf(w, "%s\n*  centroid_id  connector_id\n", SECTION_VIRTUAL_LINKS)
	for _, vlink := range net.VirtualLinks() {
		centroid, vnode := vlink.startNode, vlink.endNode
		if vnode.IsCentroid() {
			centroid, vnode = vnode, centroid
		}
		for _, connector := range vnode.AdjacentLinks() {
			if !connector.IsConnector() {
				continue
			}
			// direction of connector follows direction of virtual link
			if (vlink.startNode == centroid) != (connector.startNode == vnode) {
				continue
			}
			fmt.Fprintf(w, "%d %d\n", centroid.ID, connector.ID)
			break
		}
	}
	fmt.Fprintf(w, "%s\n*  at_node  inlink  outlink  fspeed  perms  lanes  inlane  outlane  followup\n", SECTION_MOVEMENTS)
	for _, mov := range net.Movements() {
		fmt.Fprintf(w, "%d %d %d %s %s %d %d %d %s\n", mov.node.ID, mov.incomingLink.ID, mov.outgoingLink.ID, formatFloat(mov.freeflowSpeed),
			mov.permission.Name, mov.numLanes, mov.incomingLane, mov.outgoingLane, formatFloat(mov.followupTime))
	}
	fmt.Fprintf(w, "%s\n", SECTION_MOVEMENT_EVENTS)
	for _, rec := range net.events[SECTION_MOVEMENT_EVENTS] {
		if _, err := fmt.Fprintf(w, "%s\n", rec); err != nil {
			return err
		}
	}
	return nil
}

func (net *Network) writeAdvancedNetwork(w io.Writer) error {
	fmt.Fprintf(w, "<DYNAMEQ>\n<VERSION_1.8>\n<ADVANCED_NETWORK_FILE>\n* Created by dtanet\n")
	fmt.Fprintf(w, "%s\n*  link_id  start_shift  end_shift\n", SECTION_SHIFTS)
	for _, link := range net.Links() {
		if shifts, ok := link.Shifts(); ok {
			fmt.Fprintf(w, "%d %s %s\n", link.ID, formatFloat(shifts.Start), formatFloat(shifts.End))
		}
	}
	fmt.Fprintf(w, "%s\n*  link_id  sequence_num  x_coord  y_coord\n", SECTION_VERTICES)
	for _, link := range net.Links() {
		for i, pt := range link.shapePoints {
			if _, err := fmt.Fprintf(w, "%d %d %s %s\n", link.ID, i, formatFloat(pt[0]), formatFloat(pt[1])); err != nil {
				return err
			}
		}
	}
	return nil
}
