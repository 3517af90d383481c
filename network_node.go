package dtanet

import (
	"sort"

	"github.com/paulmach/orb"
)

/* Nodes stuff */

type NodeID int

type NodeKind uint16

const (
	NODE_ROAD = NodeKind(iota + 1)
	NODE_CENTROID
	NODE_VIRTUAL
)

func (iotaIdx NodeKind) String() string {
	return [...]string{"undefined", "road", "centroid", "virtual"}[iotaIdx]
}

type GeometryType uint16

const (
	GEOMETRY_INTERSECTION = GeometryType(1)
	GEOMETRY_JUNCTION     = GeometryType(2)
	GEOMETRY_VIRTUAL      = GeometryType(99)
	GEOMETRY_CENTROID     = GeometryType(100)
)

func (gt GeometryType) String() string {
	switch gt {
	case GEOMETRY_INTERSECTION:
		return "intersection"
	case GEOMETRY_JUNCTION:
		return "junction"
	case GEOMETRY_VIRTUAL:
		return "virtual"
	case GEOMETRY_CENTROID:
		return "centroid"
	}
	return "undefined"
}

type ControlType uint16

const (
	CONTROL_UNSIGNALIZED = ControlType(iota)
	CONTROL_SIGNALIZED
)

func (iotaIdx ControlType) String() string {
	return [...]string{"unsignalized", "signalized"}[iotaIdx]
}

type PriorityTemplate uint16

const (
	PRIORITY_NONE         = PriorityTemplate(0)
	PRIORITY_ALL_WAY_STOP = PriorityTemplate(1)
	PRIORITY_TWO_WAY_STOP = PriorityTemplate(2)
	PRIORITY_ROUNDABOUT   = PriorityTemplate(3)
	PRIORITY_MERGE        = PriorityTemplate(4)
	PRIORITY_SIGNALIZED   = PriorityTemplate(11)
)

func (pt PriorityTemplate) String() string {
	switch pt {
	case PRIORITY_NONE:
		return "none"
	case PRIORITY_ALL_WAY_STOP:
		return "all_way_stop"
	case PRIORITY_TWO_WAY_STOP:
		return "two_way_stop"
	case PRIORITY_ROUNDABOUT:
		return "roundabout"
	case PRIORITY_MERGE:
		return "merge"
	case PRIORITY_SIGNALIZED:
		return "signalized"
	}
	return "undefined"
}

func validPriorityTemplate(v int) bool {
	switch PriorityTemplate(v) {
	case PRIORITY_NONE, PRIORITY_ALL_WAY_STOP, PRIORITY_TWO_WAY_STOP, PRIORITY_ROUNDABOUT, PRIORITY_MERGE, PRIORITY_SIGNALIZED:
		return true
	}
	return false
}

// Node is a vertex of the network. Kind discriminates road nodes, centroids and virtual nodes
type Node struct {
	incomingLinks []*Link
	outgoingLinks []*Link
	Label         string
	ID            NodeID
	Level         int
	kind          NodeKind
	geometryType  GeometryType
	geom          orb.Point

	/* Road nodes only */
	control   ControlType
	priority  PriorityTemplate
	timePlans map[*PlanCollectionInfo]*TimePlan

	/* Centroids only */
	boundary bool
}

// NewRoadNode creates road node
func NewRoadNode(id NodeID, x, y float64, geometryType GeometryType, control ControlType, priority PriorityTemplate, label string, level int) *Node {
	return &Node{
		incomingLinks: make([]*Link, 0),
		outgoingLinks: make([]*Link, 0),
		Label:         label,
		ID:            id,
		Level:         level,
		kind:          NODE_ROAD,
		geometryType:  geometryType,
		geom:          orb.Point{x, y},
		control:       control,
		priority:      priority,
		timePlans:     make(map[*PlanCollectionInfo]*TimePlan),
	}
}

// NewCentroid creates centroid (origin/destination endpoint)
func NewCentroid(id NodeID, x, y float64, label string, level int) *Node {
	return &Node{
		incomingLinks: make([]*Link, 0),
		outgoingLinks: make([]*Link, 0),
		Label:         label,
		ID:            id,
		Level:         level,
		kind:          NODE_CENTROID,
		geometryType:  GEOMETRY_CENTROID,
		geom:          orb.Point{x, y},
	}
}

// NewVirtualNode creates node mediating between centroid and road node
func NewVirtualNode(id NodeID, x, y float64, label string, level int) *Node {
	return &Node{
		incomingLinks: make([]*Link, 0),
		outgoingLinks: make([]*Link, 0),
		Label:         label,
		ID:            id,
		Level:         level,
		kind:          NODE_VIRTUAL,
		geometryType:  GEOMETRY_VIRTUAL,
		geom:          orb.Point{x, y},
	}
}

func (node *Node) Kind() NodeKind {
	return node.kind
}

func (node *Node) IsRoadNode() bool {
	return node.kind == NODE_ROAD
}

func (node *Node) IsCentroid() bool {
	return node.kind == NODE_CENTROID
}

func (node *Node) IsVirtualNode() bool {
	return node.kind == NODE_VIRTUAL
}

func (node *Node) X() float64 {
	return node.geom[0]
}

func (node *Node) Y() float64 {
	return node.geom[1]
}

func (node *Node) Point() orb.Point {
	return node.geom
}

func (node *Node) GeometryType() GeometryType {
	return node.geometryType
}

func (node *Node) SetGeometryType(gt GeometryType) {
	node.geometryType = gt
}

func (node *Node) Control() ControlType {
	return node.control
}

func (node *Node) SetControl(control ControlType) {
	node.control = control
}

func (node *Node) Priority() PriorityTemplate {
	return node.priority
}

func (node *Node) SetPriority(priority PriorityTemplate) {
	node.priority = priority
}

// IsSignalized returns true if road node is under traffic light control
func (node *Node) IsSignalized() bool {
	return node.control == CONTROL_SIGNALIZED
}

// IsBoundary returns true if centroid is tagged as external (boundary) zone
func (node *Node) IsBoundary() bool {
	return node.boundary
}

func (node *Node) SetBoundary(boundary bool) {
	node.boundary = boundary
}

// IncomingLinks returns copy of incoming links sorted clockwise by reference angle
func (node *Node) IncomingLinks() []*Link {
	out := make([]*Link, len(node.incomingLinks))
	copy(out, node.incomingLinks)
	return out
}

// OutgoingLinks returns copy of outgoing links sorted clockwise by reference angle
func (node *Node) OutgoingLinks() []*Link {
	out := make([]*Link, len(node.outgoingLinks))
	copy(out, node.outgoingLinks)
	return out
}

// AdjacentLinks returns incoming links followed by outgoing links
func (node *Node) AdjacentLinks() []*Link {
	out := make([]*Link, 0, len(node.incomingLinks)+len(node.outgoingLinks))
	out = append(out, node.incomingLinks...)
	out = append(out, node.outgoingLinks...)
	return out
}

func (node *Node) GetNumIncomingLinks() int {
	return len(node.incomingLinks)
}

func (node *Node) GetNumOutgoingLinks() int {
	return len(node.outgoingLinks)
}

func (node *Node) GetNumAdjacentLinks() int {
	return len(node.incomingLinks) + len(node.outgoingLinks)
}

// GetNumAdjacentRoadLinks counts adjacent links which are neither connectors nor virtual links
func (node *Node) GetNumAdjacentRoadLinks() int {
	cnt := 0
	for _, link := range node.AdjacentLinks() {
		if link.IsRoadLink() {
			cnt++
		}
	}
	return cnt
}

// HasConnector returns true if any adjacent link is a connector
func (node *Node) HasConnector() bool {
	for _, link := range node.AdjacentLinks() {
		if link.IsConnector() {
			return true
		}
	}
	return false
}

// UpstreamRoadNodes returns distinct start nodes of incoming road links
func (node *Node) UpstreamRoadNodes() []*Node {
	return distinctNodes(node.incomingLinks, func(l *Link) *Node { return l.startNode })
}

// DownstreamRoadNodes returns distinct end nodes of outgoing road links
func (node *Node) DownstreamRoadNodes() []*Node {
	return distinctNodes(node.outgoingLinks, func(l *Link) *Node { return l.endNode })
}

func distinctNodes(links []*Link, pick func(*Link) *Node) []*Node {
	seen := make(map[NodeID]struct{})
	out := []*Node{}
	for _, link := range links {
		if !link.IsRoadLink() {
			continue
		}
		n := pick(link)
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetCardinality returns number of incoming and outgoing road links (connectors and virtual links are ignored)
func (node *Node) GetCardinality() (int, int) {
	in, out := 0, 0
	for _, link := range node.incomingLinks {
		if link.IsRoadLink() {
			in++
		}
	}
	for _, link := range node.outgoingLinks {
		if link.IsRoadLink() {
			out++
		}
	}
	return in, out
}

// IsJunction returns true if the road network passes through the node as a single street: the node has
// cardinality 1 on at least one side, or every adjacent road link leads to the same two neighbours
func (node *Node) IsJunction() bool {
	if !node.IsRoadNode() {
		return false
	}
	in, out := node.GetCardinality()
	if in == 0 && out == 0 {
		return false
	}
	if in == 1 || out == 1 {
		return true
	}
	neighbours := make(map[NodeID]struct{})
	for _, n := range node.UpstreamRoadNodes() {
		neighbours[n.ID] = struct{}{}
	}
	for _, n := range node.DownstreamRoadNodes() {
		neighbours[n.ID] = struct{}{}
	}
	return len(neighbours) <= 2
}

// IsIntersection returns true for road nodes which are not junctions
func (node *Node) IsIntersection() bool {
	return node.IsRoadNode() && !node.IsJunction()
}

// IsMidblockNode returns true if node is a shape point in disguise: cardinality (1,1) or (2,2) and exactly
// two distinct road neighbours
func (node *Node) IsMidblockNode() bool {
	if !node.IsRoadNode() {
		return false
	}
	in, out := node.GetCardinality()
	if !((in == 1 && out == 1) || (in == 2 && out == 2)) {
		return false
	}
	up := node.UpstreamRoadNodes()
	down := node.DownstreamRoadNodes()
	if in == 1 {
		return up[0].ID != down[0].ID
	}
	if len(up) != 2 || len(down) != 2 {
		return false
	}
	return up[0].ID == down[0].ID && up[1].ID == down[1].ID
}

// Movements returns movements at the node ordered by incoming link
func (node *Node) Movements() []*Movement {
	out := make([]*Movement, 0)
	for _, in := range node.incomingLinks {
		out = append(out, in.outgoingMovements...)
	}
	return out
}

// GetNumMovements returns number of movements at the node
func (node *Node) GetNumMovements() int {
	cnt := 0
	for _, in := range node.incomingLinks {
		cnt += len(in.outgoingMovements)
	}
	return cnt
}

// GetTimePlan returns time plan of given plan collection
func (node *Node) GetTimePlan(collection *PlanCollectionInfo) (*TimePlan, bool) {
	plan, ok := node.timePlans[collection]
	return plan, ok
}

// TimePlans returns time plans sorted by start time of their plan collections
func (node *Node) TimePlans() []*TimePlan {
	plans := make([]*TimePlan, 0, len(node.timePlans))
	for _, plan := range node.timePlans {
		plans = append(plans, plan)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].collection.StartTime == plans[j].collection.StartTime {
			return plans[i].collection.Name < plans[j].collection.Name
		}
		return plans[i].collection.StartTime < plans[j].collection.StartTime
	})
	return plans
}

// HasTimePlan returns true if node owns at least one time plan
func (node *Node) HasTimePlan() bool {
	return len(node.timePlans) > 0
}

// AddTimePlan attaches time plan to the road node. Only one plan per plan collection is allowed
func (node *Node) AddTimePlan(plan *TimePlan) error {
	if !node.IsRoadNode() {
		return dtaErrorf("time plan can be attached to road node only, node %d is %s", node.ID, node.kind)
	}
	if plan.node != node {
		return dtaErrorf("time plan belongs to node %d, not to node %d", plan.node.ID, node.ID)
	}
	if _, ok := node.timePlans[plan.collection]; ok {
		return dtaErrorf("node %d already has time plan for plan collection %s", node.ID, plan.collection.Name)
	}
	node.timePlans[plan.collection] = plan
	return nil
}

// RemoveTimePlan detaches time plan of given plan collection
func (node *Node) RemoveTimePlan(collection *PlanCollectionInfo) {
	delete(node.timePlans, collection)
}

/* adjacency maintenance (network owns these calls) */

func insertSortedByAngle(links []*Link, link *Link) []*Link {
	links = append(links, link)
	sort.SliceStable(links, func(i, j int) bool {
		ai, aj := links[i].ReferenceAngle(), links[j].ReferenceAngle()
		if ai == aj {
			return links[i].ID < links[j].ID
		}
		return ai < aj
	})
	return links
}

func removeLinkFromSlice(links []*Link, link *Link) ([]*Link, bool) {
	for i, l := range links {
		if l == link {
			return append(links[:i], links[i+1:]...), true
		}
	}
	return links, false
}

func (node *Node) resortLinks() {
	less := func(links []*Link) func(i, j int) bool {
		return func(i, j int) bool {
			ai, aj := links[i].ReferenceAngle(), links[j].ReferenceAngle()
			if ai == aj {
				return links[i].ID < links[j].ID
			}
			return ai < aj
		}
	}
	sort.SliceStable(node.incomingLinks, less(node.incomingLinks))
	sort.SliceStable(node.outgoingLinks, less(node.outgoingLinks))
}
