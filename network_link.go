package dtanet

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

/* Links stuff */

type LinkID int

type LinkKind uint16

const (
	LINK_ROAD = LinkKind(iota + 1)
	LINK_CONNECTOR
	LINK_VIRTUAL
)

func (iotaIdx LinkKind) String() string {
	return [...]string{"undefined", "road", "connector", "virtual"}[iotaIdx]
}

// LinkPredicate is evaluated against a link. Used to veto splitting or to filter links out of path search
type LinkPredicate func(link *Link) bool

// LinkAttributes is the attribute vector of a road link or connector
type LinkAttributes struct {
	Label                 string
	FacilityType          int
	Length                float64
	FreeflowSpeed         float64
	EffectiveLengthFactor float64
	ResponseTimeFactor    float64
	NumLanes              int
	Roundabout            bool
	Level                 int
	Group                 int
	TollLink              bool
}

// LaneShifts are lateral offsets (in lanes) of the link's ends
type LaneShifts struct {
	Start float64
	End   float64
}

// Link is a directed edge of the network. Kind discriminates road links, connectors and virtual links
type Link struct {
	startNode *Node
	endNode   *Node
	Label     string
	ID        LinkID
	kind      LinkKind

	facilityType          int
	length                float64
	autoLength            bool
	freeflowSpeed         float64
	effectiveLengthFactor float64
	responseTimeFactor    float64
	numLanes              int
	roundabout            bool
	level                 int
	group                 int
	tollLink              bool
	shifts                *LaneShifts
	shapePoints           []orb.Point
	lanePermissions       map[int]*VehicleClassGroup

	outgoingMovements []*Movement
	incomingMovements []*Movement

	results *flowSeries
}

func newLink(id LinkID, kind LinkKind, start, end *Node, attrs LinkAttributes) *Link {
	return &Link{
		startNode:             start,
		endNode:               end,
		Label:                 attrs.Label,
		ID:                    id,
		kind:                  kind,
		facilityType:          attrs.FacilityType,
		length:                attrs.Length,
		autoLength:            attrs.Length < 0,
		freeflowSpeed:         attrs.FreeflowSpeed,
		effectiveLengthFactor: attrs.EffectiveLengthFactor,
		responseTimeFactor:    attrs.ResponseTimeFactor,
		numLanes:              attrs.NumLanes,
		roundabout:            attrs.Roundabout,
		level:                 attrs.Level,
		group:                 attrs.Group,
		tollLink:              attrs.TollLink,
		shapePoints:           make([]orb.Point, 0),
		lanePermissions:       make(map[int]*VehicleClassGroup),
		outgoingMovements:     make([]*Movement, 0),
		incomingMovements:     make([]*Movement, 0),
		results:               newFlowSeries(),
	}
}

// NewRoadLink creates link between two road nodes
func NewRoadLink(id LinkID, start, end *Node, attrs LinkAttributes) (*Link, error) {
	if start == nil || end == nil {
		return nil, dtaErrorf("road link %d must have both start and end nodes", id)
	}
	if !start.IsRoadNode() || !end.IsRoadNode() {
		return nil, dtaErrorf("road link %d (%d -> %d) must connect two road nodes", id, start.ID, end.ID)
	}
	if attrs.NumLanes < 1 {
		return nil, dtaErrorf("road link %d must have at least one lane, got %d", id, attrs.NumLanes)
	}
	return newLink(id, LINK_ROAD, start, end, attrs), nil
}

// NewConnector creates link with exactly one road node endpoint, the other one is a centroid or a virtual node
func NewConnector(id LinkID, start, end *Node, attrs LinkAttributes) (*Link, error) {
	if start == nil || end == nil {
		return nil, dtaErrorf("connector %d must have both start and end nodes", id)
	}
	if start.IsRoadNode() == end.IsRoadNode() {
		return nil, dtaErrorf("connector %d (%d -> %d) must have exactly one road node endpoint", id, start.ID, end.ID)
	}
	if attrs.NumLanes < 1 {
		return nil, dtaErrorf("connector %d must have at least one lane, got %d", id, attrs.NumLanes)
	}
	return newLink(id, LINK_CONNECTOR, start, end, attrs), nil
}

// NewVirtualLink creates link between centroid and virtual node. It carries no capacity attributes
func NewVirtualLink(id LinkID, start, end *Node, label string) (*Link, error) {
	if start == nil || end == nil {
		return nil, dtaErrorf("virtual link %d must have both start and end nodes", id)
	}
	okDirect := start.IsCentroid() && end.IsVirtualNode()
	okReverse := start.IsVirtualNode() && end.IsCentroid()
	if !okDirect && !okReverse {
		return nil, dtaErrorf("virtual link %d (%d -> %d) must connect centroid and virtual node", id, start.ID, end.ID)
	}
	link := newLink(id, LINK_VIRTUAL, start, end, LinkAttributes{Label: label, Length: -1, NumLanes: 1})
	return link, nil
}

func (link *Link) Kind() LinkKind {
	return link.kind
}

// IsRoadLink returns true for links between two road nodes only (connectors are excluded)
func (link *Link) IsRoadLink() bool {
	return link.kind == LINK_ROAD
}

func (link *Link) IsConnector() bool {
	return link.kind == LINK_CONNECTOR
}

func (link *Link) IsVirtualLink() bool {
	return link.kind == LINK_VIRTUAL
}

// IsRoadOrConnector returns true if the link may carry movements
func (link *Link) IsRoadOrConnector() bool {
	return link.kind == LINK_ROAD || link.kind == LINK_CONNECTOR
}

func (link *Link) StartNode() *Node {
	return link.startNode
}

func (link *Link) EndNode() *Node {
	return link.endNode
}

// StartIsRoadNode returns true for connectors leaving the road network side
func (link *Link) StartIsRoadNode() bool {
	return link.startNode.IsRoadNode()
}

// EndIsRoadNode returns true for connectors entering the road network
func (link *Link) EndIsRoadNode() bool {
	return link.endNode.IsRoadNode()
}

// Attributes returns attribute vector of the link (length included)
func (link *Link) Attributes() LinkAttributes {
	return LinkAttributes{
		Label:                 link.Label,
		FacilityType:          link.facilityType,
		Length:                link.length,
		FreeflowSpeed:         link.freeflowSpeed,
		EffectiveLengthFactor: link.effectiveLengthFactor,
		ResponseTimeFactor:    link.responseTimeFactor,
		NumLanes:              link.numLanes,
		Roundabout:            link.roundabout,
		Level:                 link.level,
		Group:                 link.group,
		TollLink:              link.tollLink,
	}
}

// sameAttributes compares everything but the length
func sameAttributes(a, b LinkAttributes) bool {
	a.Length, b.Length = 0, 0
	return a == b
}

func (link *Link) FacilityType() int {
	return link.facilityType
}

func (link *Link) SetFacilityType(ft int) {
	link.facilityType = ft
}

func (link *Link) FreeflowSpeed() float64 {
	return link.freeflowSpeed
}

func (link *Link) SetFreeflowSpeed(speed float64) {
	link.freeflowSpeed = speed
}

func (link *Link) EffectiveLengthFactor() float64 {
	return link.effectiveLengthFactor
}

func (link *Link) ResponseTimeFactor() float64 {
	return link.responseTimeFactor
}

func (link *Link) NumLanes() int {
	return link.numLanes
}

// SetNumLanes changes lane count. Lane permissions of removed lanes are dropped
func (link *Link) SetNumLanes(numLanes int) error {
	if numLanes < 1 {
		return dtaErrorf("link %d must have at least one lane, got %d", link.ID, numLanes)
	}
	link.numLanes = numLanes
	for lane := range link.lanePermissions {
		if lane >= numLanes {
			delete(link.lanePermissions, lane)
		}
	}
	return nil
}

func (link *Link) IsRoundabout() bool {
	return link.roundabout
}

func (link *Link) Level() int {
	return link.level
}

func (link *Link) Group() int {
	return link.group
}

func (link *Link) IsTollLink() bool {
	return link.tollLink
}

func (link *Link) SetTollLink(toll bool) {
	link.tollLink = toll
}

// GetLength returns length in link-length units
func (link *Link) GetLength() float64 {
	return link.length
}

// SetLength sets explicit length. Negative value makes length derived from geometry on the next update
func (link *Link) SetLength(length float64) {
	link.length = length
	link.autoLength = length < 0
}

// HasAutoLength returns true if length is derived from geometry
func (link *Link) HasAutoLength() bool {
	return link.autoLength
}

func (link *Link) Shifts() (LaneShifts, bool) {
	if link.shifts == nil {
		return LaneShifts{}, false
	}
	return *link.shifts, true
}

func (link *Link) SetShifts(startShift, endShift float64) {
	link.shifts = &LaneShifts{Start: startShift, End: endShift}
}

// ShapePoints returns copy of intermediate vertices
func (link *Link) ShapePoints() []orb.Point {
	out := make([]orb.Point, len(link.shapePoints))
	copy(out, link.shapePoints)
	return out
}

func (link *Link) GetNumShapePoints() int {
	return len(link.shapePoints)
}

func (link *Link) AddShapePoint(pt orb.Point) {
	link.shapePoints = append(link.shapePoints, pt)
}

func (link *Link) SetShapePoints(pts []orb.Point) {
	link.shapePoints = make([]orb.Point, len(pts))
	copy(link.shapePoints, pts)
}

// Geometry returns polyline (start, shape points..., end)
func (link *Link) Geometry() orb.LineString {
	line := make(orb.LineString, 0, len(link.shapePoints)+2)
	line = append(line, link.startNode.geom)
	line = append(line, link.shapePoints...)
	line = append(line, link.endNode.geom)
	return line
}

// GetLengthFromCoordinates returns euclidean length of the polyline in coordinate units
func (link *Link) GetLengthFromCoordinates() float64 {
	return getLength(link.Geometry())
}

// ReferenceAngle returns clockwise angle (radians) in [0, 2π) from +x axis to (end - start)
func (link *Link) ReferenceAngle() float64 {
	return referenceAngle(link.startNode.geom, link.endNode.geom)
}

func (link *Link) sideSegment(usingShapepoints, atEnd bool) (orb.Point, orb.Point) {
	if !usingShapepoints || len(link.shapePoints) == 0 {
		return link.startNode.geom, link.endNode.geom
	}
	if atEnd {
		return link.shapePoints[len(link.shapePoints)-1], link.endNode.geom
	}
	return link.startNode.geom, link.shapePoints[0]
}

// GetOrientation returns orientation in degrees clockwise from north in [0, 360)
func (link *Link) GetOrientation(usingShapepoints, atEnd bool) float64 {
	from, to := link.sideSegment(usingShapepoints, atEnd)
	return orientationDegrees(from, to)
}

// GetDirection returns one of NB/EB/SB/WB
func (link *Link) GetDirection(usingShapepoints, atEnd bool) string {
	return HeadingForOrientation(link.GetOrientation(usingShapepoints, atEnd))
}

// GetAngle returns angle in degrees (-180, 180] from this link to other. Positive values mean other turns left
func (link *Link) GetAngle(other *Link, usingShapepoints bool) float64 {
	a0, a1 := link.sideSegment(usingShapepoints, true)
	b0, b1 := other.sideSegment(usingShapepoints, false)
	return angleBetweenVectors(a0, a1, b0, b1)
}

// CenterLine returns polyline shifted to the right by half of carriageway width plus lane shifts
func (link *Link) CenterLine(laneWidth float64) orb.LineString {
	line := link.Geometry()
	if link.kind == LINK_VIRTUAL {
		return line
	}
	center := offsetCurve(line, -float64(link.numLanes)*laneWidth/2.0)
	if link.shifts == nil || len(center) < 2 {
		return center
	}
	if link.shifts.Start != 0 {
		center[0] = shiftRight(center[0], center[1], center[0], link.shifts.Start*laneWidth)
	}
	if link.shifts.End != 0 {
		n := len(center)
		center[n-1] = shiftRight(center[n-2], center[n-1], center[n-1], link.shifts.End*laneWidth)
	}
	return center
}

// shiftRight moves pt perpendicular to the right of (from -> to) by distance
func shiftRight(from, to, pt orb.Point, distance float64) orb.Point {
	dx := to[0] - from[0]
	dy := to[1] - from[1]
	l := math.Sqrt(dx*dx + dy*dy)
	if l == 0 {
		return pt
	}
	return orb.Point{pt[0] + dy/l*distance, pt[1] - dx/l*distance}
}

// CoordinatesAlongLink returns point located at distance (coordinate units) from the start (or from the end when
// fromStart is false) along the polyline. Distances beyond the polyline are errors unless goPastEnd
func (link *Link) CoordinatesAlongLink(fromStart bool, distance float64, goPastEnd bool) (orb.Point, error) {
	if distance < 0 {
		return orb.Point{}, dtaErrorf("distance along link %d must be non-negative, got %f", link.ID, distance)
	}
	line := link.Geometry()
	if !fromStart {
		line = reverseLine(line)
	}
	total := getLength(line)
	if distance == total {
		return line[len(line)-1], nil
	}
	pt, _, ok := pointAlongLine(line, distance)
	if ok {
		return pt, nil
	}
	if !goPastEnd {
		return orb.Point{}, dtaErrorf("distance %f exceeds length %f of link %d", distance, total, link.ID)
	}
	return extendLine(line, distance-total), nil
}

// CoordinatesAndShapePointIdxAlongLink returns point at given fraction of the polyline and the number of shape
// points located before that point
func (link *Link) CoordinatesAndShapePointIdxAlongLink(fraction float64) (orb.Point, int, error) {
	if fraction < 0 || fraction > 1 {
		return orb.Point{}, -1, dtaErrorf("fraction along link %d must be in [0, 1], got %f", link.ID, fraction)
	}
	line := link.Geometry()
	total := getLength(line)
	if total == 0 {
		return line[0], 0, nil
	}
	pt, segIdx, ok := pointAlongLine(line, fraction*total)
	if !ok {
		return line[len(line)-1], len(link.shapePoints), nil
	}
	// segment segIdx spans geometry points [segIdx, segIdx+1], shape point k is geometry point k+1
	return pt, segIdx, nil
}

// MidPoint returns point in the middle of the link's polyline
func (link *Link) MidPoint() orb.Point {
	pt, _, _ := link.CoordinatesAndShapePointIdxAlongLink(0.5)
	return pt
}

// Bound returns bounding box of the link's polyline
func (link *Link) Bound() orb.Bound {
	return link.Geometry().Bound()
}

/* lane permissions */

// AddLanePermission assigns vehicle class group to the lane. Lane index is zero-based
func (link *Link) AddLanePermission(lane int, group *VehicleClassGroup) error {
	if link.kind == LINK_VIRTUAL {
		return dtaErrorf("virtual link %d can't have lane permissions", link.ID)
	}
	if lane < 0 || lane >= link.numLanes {
		return dtaErrorf("lane %d is out of range [0, %d) for link %d", lane, link.numLanes, link.ID)
	}
	if group == nil {
		return dtaErrorf("nil vehicle class group for lane %d of link %d", lane, link.ID)
	}
	link.lanePermissions[lane] = group
	return nil
}

// GetLanePermission returns group assigned to the lane if any
func (link *Link) GetLanePermission(lane int) (*VehicleClassGroup, bool) {
	group, ok := link.lanePermissions[lane]
	return group, ok
}

// LanesWithPermissions returns sorted lane indices which have explicit permissions
func (link *Link) LanesWithPermissions() []int {
	lanes := make([]int, 0, len(link.lanePermissions))
	for lane := range link.lanePermissions {
		lanes = append(lanes, lane)
	}
	sort.Ints(lanes)
	return lanes
}

// AllowsAllClasses returns true if every lane admits every vehicle class. Lanes without explicit permission admit all
func (link *Link) AllowsAllClasses() bool {
	for _, group := range link.lanePermissions {
		if !group.AllowsAll() {
			return false
		}
	}
	return true
}

// permittedGroup returns union of lane groups registered in scenario
func (link *Link) permittedGroup(scn *Scenario) *VehicleClassGroup {
	if link.AllowsAllClasses() || len(link.lanePermissions) < link.numLanes {
		return scn.AllGroup()
	}
	var result *VehicleClassGroup
	for _, lane := range link.LanesWithPermissions() {
		group := link.lanePermissions[lane]
		if result == nil {
			result = group
			continue
		}
		result = scn.UnionGroups(result, group)
	}
	return result
}

func (link *Link) copyLanePermissions(from *Link) {
	for lane, group := range from.lanePermissions {
		if lane < link.numLanes {
			link.lanePermissions[lane] = group
		}
	}
}

/* movements */

// OutgoingMovements returns movements leaving the link in insertion order
func (link *Link) OutgoingMovements() []*Movement {
	out := make([]*Movement, len(link.outgoingMovements))
	copy(out, link.outgoingMovements)
	return out
}

// IncomingMovements returns movements entering the link
func (link *Link) IncomingMovements() []*Movement {
	out := make([]*Movement, len(link.incomingMovements))
	copy(out, link.incomingMovements)
	return out
}

func (link *Link) GetNumOutgoingMovements() int {
	return len(link.outgoingMovements)
}

func (link *Link) GetNumIncomingMovements() int {
	return len(link.incomingMovements)
}

// GetOutgoingMovement returns movement towards the outgoing link which ends at given node
func (link *Link) GetOutgoingMovement(nodeID NodeID) (*Movement, error) {
	for _, mov := range link.outgoingMovements {
		if mov.outgoingLink.endNode.ID == nodeID {
			return mov, nil
		}
	}
	return nil, dtaErrorf("link %d (%d -> %d) has no outgoing movement towards node %d", link.ID, link.startNode.ID, link.endNode.ID, nodeID)
}

// HasOutgoingMovement returns true if there is movement towards the outgoing link which ends at given node
func (link *Link) HasOutgoingMovement(nodeID NodeID) bool {
	_, err := link.GetOutgoingMovement(nodeID)
	return err == nil
}

func (link *Link) movementTo(out *Link) *Movement {
	for _, mov := range link.outgoingMovements {
		if mov.outgoingLink == out {
			return mov
		}
	}
	return nil
}

// GetNumAllowedOutgoingMovements counts outgoing movements which are not prohibited
func (link *Link) GetNumAllowedOutgoingMovements() int {
	cnt := 0
	for _, mov := range link.outgoingMovements {
		if !mov.IsProhibited() {
			cnt++
		}
	}
	return cnt
}
