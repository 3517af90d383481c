package dtanet

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/kyroy/kdtree"
	"github.com/samber/lo"
)

type nodePair struct {
	start NodeID
	end   NodeID
}

// Network owns nodes, links and movements and keeps the indices (by id, by endpoint pair, adjacency) in sync
type Network struct {
	scenario        *Scenario
	cfg             Config
	rnd             *rand.Rand
	nodes           map[NodeID]*Node
	links           map[LinkID]*Link
	linksByNodePair map[nodePair]*Link
	planCollections map[string]*PlanCollectionInfo
	// Raw records of event sections, written back as they were read
	events          map[string][]string
	maxNodeID       NodeID
	maxLinkID       LinkID

	// Lazy spatial indices. Any topology mutation drops them
	nodeTree *kdtree.KDTree
	linkTree *rtreego.Rtree

	window *simWindow
}

// NewNetwork creates empty network for given scenario
func NewNetwork(scn *Scenario, options ...func(*Network)) *Network {
	cfg := DefaultConfig()
	net := &Network{
		scenario:        scn,
		cfg:             cfg,
		nodes:           make(map[NodeID]*Node),
		links:           make(map[LinkID]*Link),
		linksByNodePair: make(map[nodePair]*Link),
		planCollections: make(map[string]*PlanCollectionInfo),
		events:          make(map[string][]string),
		window:          &simWindow{startMin: cfg.SimStartMin, endMin: cfg.SimEndMin, stepMin: cfg.SimStepMin},
	}
	for _, option := range options {
		option(net)
	}
	if net.rnd == nil {
		net.rnd = rand.New(rand.NewSource(net.cfg.RandomSeed))
	}
	return net
}

func (net *Network) Scenario() *Scenario {
	return net.scenario
}

func (net *Network) Config() Config {
	return net.cfg
}

func (net *Network) LaneWidth() float64 {
	return net.cfg.LaneWidth
}

// Rand returns random source used by jittering and probing
func (net *Network) Rand() *rand.Rand {
	return net.rnd
}

func (net *Network) String() string {
	return fmt.Sprintf(`
Network:
	nodes: %d (road: %d, centroids: %d, virtual: %d)
	links: %d (road: %d, connectors: %d, virtual: %d)
	movements: %d
	plan collections: %d
	`,
		net.GetNumNodes(), net.GetNumRoadNodes(), net.GetNumCentroids(), net.GetNumVirtualNodes(),
		net.GetNumLinks(), net.GetNumRoadLinks(), net.GetNumConnectors(), net.GetNumVirtualLinks(),
		net.GetNumMovements(),
		len(net.planCollections),
	)
}

func (net *Network) invalidateIndices() {
	net.nodeTree = nil
	net.linkTree = nil
}

/* ids */

// NewNodeID returns max node id + 1
func (net *Network) NewNodeID() NodeID {
	return net.maxNodeID + 1
}

// NewLinkID returns max link id + 1
func (net *Network) NewLinkID() LinkID {
	return net.maxLinkID + 1
}

func (net *Network) recomputeMaxIDs() {
	net.maxNodeID = 0
	for id := range net.nodes {
		if id > net.maxNodeID {
			net.maxNodeID = id
		}
	}
	net.maxLinkID = 0
	for id := range net.links {
		if id > net.maxLinkID {
			net.maxLinkID = id
		}
	}
}

/* nodes */

// AddNode registers node. Fails if id is already used
func (net *Network) AddNode(node *Node) error {
	if node == nil {
		return dtaErrorf("can't add nil node")
	}
	if _, ok := net.nodes[node.ID]; ok {
		return dtaErrorf("node %d already exists in the network", node.ID)
	}
	net.nodes[node.ID] = node
	if node.ID > net.maxNodeID {
		net.maxNodeID = node.ID
	}
	net.invalidateIndices()
	return nil
}

// RemoveNode removes every adjacent link and then the node itself
func (net *Network) RemoveNode(node *Node) error {
	if node == nil {
		return dtaErrorf("can't remove nil node")
	}
	if registered, ok := net.nodes[node.ID]; !ok || registered != node {
		return dtaErrorf("node %d is not in the network", node.ID)
	}
	for _, link := range node.AdjacentLinks() {
		if err := net.RemoveLink(link); err != nil {
			return err
		}
	}
	delete(net.nodes, node.ID)
	if node.ID == net.maxNodeID {
		net.recomputeMaxIDs()
	}
	net.invalidateIndices()
	return nil
}

// GetNodeForID returns node by identifier
func (net *Network) GetNodeForID(id NodeID) (*Node, error) {
	node, ok := net.nodes[id]
	if !ok {
		return nil, dtaErrorf("node %d does not exist in the network", id)
	}
	return node, nil
}

// HasNodeForID checks presence of node
func (net *Network) HasNodeForID(id NodeID) bool {
	_, ok := net.nodes[id]
	return ok
}

// RenameNode changes node identifier. Centroids may not be renamed
func (net *Network) RenameNode(oldID, newID NodeID) error {
	node, err := net.GetNodeForID(oldID)
	if err != nil {
		return err
	}
	if node.IsCentroid() {
		return dtaErrorf("centroid %d can't be renamed", oldID)
	}
	if oldID == newID {
		return nil
	}
	if _, ok := net.nodes[newID]; ok {
		return dtaErrorf("can't rename node %d to %d: node %d already exists", oldID, newID, newID)
	}
	for _, link := range node.AdjacentLinks() {
		delete(net.linksByNodePair, nodePair{link.startNode.ID, link.endNode.ID})
	}
	delete(net.nodes, oldID)
	node.ID = newID
	net.nodes[newID] = node
	for _, link := range node.AdjacentLinks() {
		net.linksByNodePair[nodePair{link.startNode.ID, link.endNode.ID}] = link
	}
	net.recomputeMaxIDs()
	net.invalidateIndices()
	return nil
}

// MoveNode changes node coordinates. Derived lengths and adjacency orders of the node and its neighbours are updated
func (net *Network) MoveNode(node *Node, x, y float64) {
	node.geom[0] = x
	node.geom[1] = y
	for _, link := range node.AdjacentLinks() {
		net.updateAutoLength(link)
		link.startNode.resortLinks()
		link.endNode.resortLinks()
	}
	net.invalidateIndices()
}

/* links */

// AddLink registers link: both endpoints must be registered, id and (start, end) pair must be free
func (net *Network) AddLink(link *Link) error {
	if link == nil {
		return dtaErrorf("can't add nil link")
	}
	if _, ok := net.links[link.ID]; ok {
		return dtaErrorf("link %d already exists in the network", link.ID)
	}
	pair := nodePair{link.startNode.ID, link.endNode.ID}
	if existing, ok := net.linksByNodePair[pair]; ok {
		return dtaErrorf("link %d already connects nodes %d and %d", existing.ID, pair.start, pair.end)
	}
	if registered, ok := net.nodes[pair.start]; !ok || registered != link.startNode {
		return dtaErrorf("start node %d of link %d is not in the network", pair.start, link.ID)
	}
	if registered, ok := net.nodes[pair.end]; !ok || registered != link.endNode {
		return dtaErrorf("end node %d of link %d is not in the network", pair.end, link.ID)
	}
	net.updateAutoLength(link)
	link.results.window = net.window
	net.links[link.ID] = link
	net.linksByNodePair[pair] = link
	link.startNode.outgoingLinks = insertSortedByAngle(link.startNode.outgoingLinks, link)
	link.endNode.incomingLinks = insertSortedByAngle(link.endNode.incomingLinks, link)
	if link.ID > net.maxLinkID {
		net.maxLinkID = link.ID
	}
	net.invalidateIndices()
	return nil
}

func (net *Network) updateAutoLength(link *Link) {
	if link.autoLength {
		link.length = link.GetLengthFromCoordinates() * net.cfg.LengthUnitsPerCoordinateUnit
	}
}

// RemoveLink prohibits and detaches movements of the link first, then drops it from both endpoints and indices
func (net *Network) RemoveLink(link *Link) error {
	if link == nil {
		return dtaErrorf("can't remove nil link")
	}
	if registered, ok := net.links[link.ID]; !ok || registered != link {
		return dtaErrorf("link %d is not in the network", link.ID)
	}
	for _, mov := range link.OutgoingMovements() {
		net.detachMovement(mov)
	}
	for _, mov := range link.IncomingMovements() {
		net.detachMovement(mov)
	}
	link.startNode.outgoingLinks, _ = removeLinkFromSlice(link.startNode.outgoingLinks, link)
	link.endNode.incomingLinks, _ = removeLinkFromSlice(link.endNode.incomingLinks, link)
	delete(net.links, link.ID)
	delete(net.linksByNodePair, nodePair{link.startNode.ID, link.endNode.ID})
	if link.ID == net.maxLinkID {
		net.recomputeMaxIDs()
	}
	net.invalidateIndices()
	return nil
}

// GetLinkForID returns link by identifier
func (net *Network) GetLinkForID(id LinkID) (*Link, error) {
	link, ok := net.links[id]
	if !ok {
		return nil, dtaErrorf("link %d does not exist in the network", id)
	}
	return link, nil
}

func (net *Network) HasLinkForID(id LinkID) bool {
	_, ok := net.links[id]
	return ok
}

// GetLinkForNodeIdPair returns link connecting given nodes
func (net *Network) GetLinkForNodeIdPair(startID, endID NodeID) (*Link, error) {
	link, ok := net.linksByNodePair[nodePair{startID, endID}]
	if !ok {
		return nil, dtaErrorf("no link connects node %d to node %d", startID, endID)
	}
	return link, nil
}

func (net *Network) HasLinkForNodeIdPair(startID, endID NodeID) bool {
	_, ok := net.linksByNodePair[nodePair{startID, endID}]
	return ok
}

// GetReverseLink returns link going in opposite direction if any
func (net *Network) GetReverseLink(link *Link) (*Link, bool) {
	reverse, ok := net.linksByNodePair[nodePair{link.endNode.ID, link.startNode.ID}]
	return reverse, ok
}

// RenameLink changes link identifier
func (net *Network) RenameLink(oldID, newID LinkID) error {
	link, err := net.GetLinkForID(oldID)
	if err != nil {
		return err
	}
	if oldID == newID {
		return nil
	}
	if _, ok := net.links[newID]; ok {
		return dtaErrorf("can't rename link %d to %d: link %d already exists", oldID, newID, newID)
	}
	delete(net.links, oldID)
	link.ID = newID
	net.links[newID] = link
	net.recomputeMaxIDs()
	return nil
}

/* movements */

// AddMovement attaches movement to its incoming and outgoing links
func (net *Network) AddMovement(mov *Movement) error {
	if registered, ok := net.nodes[mov.node.ID]; !ok || registered != mov.node {
		return dtaErrorf("node %d of movement %s is not in the network", mov.node.ID, mov.ID())
	}
	if registered, ok := net.links[mov.incomingLink.ID]; !ok || registered != mov.incomingLink {
		return dtaErrorf("incoming link %d of movement %s is not in the network", mov.incomingLink.ID, mov.ID())
	}
	if registered, ok := net.links[mov.outgoingLink.ID]; !ok || registered != mov.outgoingLink {
		return dtaErrorf("outgoing link %d of movement %s is not in the network", mov.outgoingLink.ID, mov.ID())
	}
	if mov.incomingLink.movementTo(mov.outgoingLink) != nil {
		return dtaErrorf("movement %s already exists", mov.ID())
	}
	mov.results.window = net.window
	mov.incomingLink.outgoingMovements = append(mov.incomingLink.outgoingMovements, mov)
	mov.outgoingLink.incomingMovements = append(mov.outgoingLink.incomingMovements, mov)
	return nil
}

// RemoveMovement detaches movement from its links. Fails if movement is not attached
func (net *Network) RemoveMovement(mov *Movement) error {
	if mov == nil {
		return dtaErrorf("can't remove nil movement")
	}
	if mov.incomingLink.movementTo(mov.outgoingLink) != mov {
		return dtaErrorf("movement %s is not attached to link %d", mov.ID(), mov.incomingLink.ID)
	}
	net.detachMovement(mov)
	return nil
}

// detachMovement prohibits movement and removes every reference to it (links, phases, priorities)
func (net *Network) detachMovement(mov *Movement) {
	if net.scenario != nil {
		mov.permission = net.scenario.ProhibitedGroup()
	}
	for i, m := range mov.incomingLink.outgoingMovements {
		if m == mov {
			mov.incomingLink.outgoingMovements = append(mov.incomingLink.outgoingMovements[:i], mov.incomingLink.outgoingMovements[i+1:]...)
			break
		}
	}
	for i, m := range mov.outgoingLink.incomingMovements {
		if m == mov {
			mov.outgoingLink.incomingMovements = append(mov.outgoingLink.incomingMovements[:i], mov.outgoingLink.incomingMovements[i+1:]...)
			break
		}
	}
	for _, plan := range mov.node.timePlans {
		plan.removeMovement(mov)
	}
	for _, in := range mov.node.incomingLinks {
		for _, other := range in.outgoingMovements {
			other.removeHigherPriorityMovement(mov)
		}
	}
}

// ProhibitMovement assigns prohibited group to movement
func (net *Network) ProhibitMovement(mov *Movement) {
	mov.permission = net.scenario.ProhibitedGroup()
}

// GetMovement returns movement for triple of node ids "inStart atNode outEnd"
func (net *Network) GetMovement(startID, atID, endID NodeID) (*Movement, error) {
	in, err := net.GetLinkForNodeIdPair(startID, atID)
	if err != nil {
		return nil, err
	}
	return in.GetOutgoingMovement(endID)
}

// movementPermission returns group for synthesized movement between given links
func (net *Network) movementPermission(in, out *Link, defaultGroup *VehicleClassGroup) *VehicleClassGroup {
	if in.AllowsAllClasses() && out.AllowsAllClasses() {
		return defaultGroup
	}
	group := net.scenario.IntersectGroups(in.permittedGroup(net.scenario), out.permittedGroup(net.scenario))
	if defaultGroup != nil && !defaultGroup.AllowsAll() {
		group = net.scenario.IntersectGroups(group, defaultGroup)
	}
	return group
}

// AddAllMovements synthesizes movement for every pair of incoming/outgoing non-virtual links without one.
// U-turns are added as prohibited unless includeUTurns is set
func (net *Network) AddAllMovements(defaultGroup *VehicleClassGroup, includeUTurns bool) error {
	if defaultGroup == nil {
		defaultGroup = net.scenario.AllGroup()
	}
	added := 0
	for _, node := range net.Nodes() {
		if node.IsCentroid() {
			continue
		}
		for _, in := range node.incomingLinks {
			if in.IsVirtualLink() {
				continue
			}
			for _, out := range node.outgoingLinks {
				if out.IsVirtualLink() || in.movementTo(out) != nil {
					continue
				}
				permission := net.movementPermission(in, out, defaultGroup)
				if !includeUTurns && out.endNode == in.startNode {
					permission = net.scenario.ProhibitedGroup()
				}
				numLanes := lo.Min([]int{in.numLanes, out.numLanes})
				mov, err := NewMovement(node, in, out, in.freeflowSpeed, permission, numLanes, -1, -1, -1)
				if err != nil {
					return err
				}
				if err := net.AddMovement(mov); err != nil {
					return err
				}
				added++
			}
		}
	}
	logger.Debugf("%d movements added", added)
	return nil
}

// ApplyTurnTypeOverrides sets turn types for movements given by id "inStart atNode outEnd". Failures are logged
// and the rest of overrides is still applied. Returns number of applied overrides
func (net *Network) ApplyTurnTypeOverrides(overrides map[string]TurnType) int {
	applied := 0
	keys := lo.Keys(overrides)
	sort.Strings(keys)
	for _, key := range keys {
		var startID, atID, endID NodeID
		if _, err := fmt.Sscanf(key, "%d %d %d", &startID, &atID, &endID); err != nil {
			logger.Warnf("Can't parse movement id '%s': %s", key, err)
			continue
		}
		mov, err := net.GetMovement(startID, atID, endID)
		if err != nil {
			logger.Warnf("Can't apply turn type override for movement '%s': %s", key, err)
			continue
		}
		if _, err := parseTurnType(string(overrides[key])); err != nil {
			logger.Warnf("Can't apply turn type override for movement '%s': %s", key, err)
			continue
		}
		mov.SetTurnTypeOverride(overrides[key])
		applied++
	}
	return applied
}

/* iterators: snapshots sorted by id */

func (net *Network) collectNodes(pred func(*Node) bool) []*Node {
	out := make([]*Node, 0, len(net.nodes))
	for _, node := range net.nodes {
		if pred == nil || pred(node) {
			out = append(out, node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (net *Network) collectLinks(pred func(*Link) bool) []*Link {
	out := make([]*Link, 0, len(net.links))
	for _, link := range net.links {
		if pred == nil || pred(link) {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (net *Network) Nodes() []*Node {
	return net.collectNodes(nil)
}

func (net *Network) RoadNodes() []*Node {
	return net.collectNodes((*Node).IsRoadNode)
}

func (net *Network) Centroids() []*Node {
	return net.collectNodes((*Node).IsCentroid)
}

func (net *Network) VirtualNodes() []*Node {
	return net.collectNodes((*Node).IsVirtualNode)
}

func (net *Network) Links() []*Link {
	return net.collectLinks(nil)
}

func (net *Network) RoadLinks() []*Link {
	return net.collectLinks((*Link).IsRoadLink)
}

func (net *Network) Connectors() []*Link {
	return net.collectLinks((*Link).IsConnector)
}

func (net *Network) VirtualLinks() []*Link {
	return net.collectLinks((*Link).IsVirtualLink)
}

// Movements returns movements of links sorted by id, in insertion order within each link
func (net *Network) Movements() []*Movement {
	out := make([]*Movement, 0)
	for _, link := range net.Links() {
		out = append(out, link.outgoingMovements...)
	}
	return out
}

func (net *Network) countNodes(kind NodeKind) int {
	return lo.CountBy(lo.Values(net.nodes), func(n *Node) bool { return n.kind == kind })
}

func (net *Network) countLinks(kind LinkKind) int {
	return lo.CountBy(lo.Values(net.links), func(l *Link) bool { return l.kind == kind })
}

func (net *Network) GetNumNodes() int {
	return len(net.nodes)
}

func (net *Network) GetNumRoadNodes() int {
	return net.countNodes(NODE_ROAD)
}

func (net *Network) GetNumCentroids() int {
	return net.countNodes(NODE_CENTROID)
}

func (net *Network) GetNumVirtualNodes() int {
	return net.countNodes(NODE_VIRTUAL)
}

func (net *Network) GetNumLinks() int {
	return len(net.links)
}

func (net *Network) GetNumRoadLinks() int {
	return net.countLinks(LINK_ROAD)
}

func (net *Network) GetNumConnectors() int {
	return net.countLinks(LINK_CONNECTOR)
}

func (net *Network) GetNumVirtualLinks() int {
	return net.countLinks(LINK_VIRTUAL)
}

func (net *Network) GetNumMovements() int {
	cnt := 0
	for _, link := range net.links {
		cnt += len(link.outgoingMovements)
	}
	return cnt
}

/* plan collections */

// AddPlanCollectionInfo registers plan collection. Names are unique
func (net *Network) AddPlanCollectionInfo(info *PlanCollectionInfo) error {
	if _, ok := net.planCollections[info.Name]; ok {
		return dtaErrorf("plan collection %s already exists", info.Name)
	}
	net.planCollections[info.Name] = info
	return nil
}

// GetPlanCollectionInfo returns plan collection by name
func (net *Network) GetPlanCollectionInfo(name string) (*PlanCollectionInfo, error) {
	info, ok := net.planCollections[name]
	if !ok {
		return nil, dtaErrorf("plan collection %s does not exist", name)
	}
	return info, nil
}

// PlanCollections returns registered plan collections sorted by start time
func (net *Network) PlanCollections() []*PlanCollectionInfo {
	out := lo.Values(net.planCollections)
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime == out[j].StartTime {
			return out[i].Name < out[j].Name
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// CheckInvariants verifies adjacency, endpoint pair index and movement consistency
func (net *Network) CheckInvariants() error {
	for _, link := range net.Links() {
		if !lo.Contains(link.startNode.outgoingLinks, link) {
			return dtaErrorf("link %d is missing in outgoing links of node %d", link.ID, link.startNode.ID)
		}
		if !lo.Contains(link.endNode.incomingLinks, link) {
			return dtaErrorf("link %d is missing in incoming links of node %d", link.ID, link.endNode.ID)
		}
		if net.linksByNodePair[nodePair{link.startNode.ID, link.endNode.ID}] != link {
			return dtaErrorf("link %d is not indexed by its node pair", link.ID)
		}
		for lane := range link.lanePermissions {
			if lane < 0 || lane >= link.numLanes {
				return dtaErrorf("link %d has permission for lane %d out of range", link.ID, lane)
			}
		}
		for _, mov := range link.outgoingMovements {
			if mov.incomingLink.endNode != mov.node || mov.outgoingLink.startNode != mov.node {
				return dtaErrorf("movement %s is inconsistent with its links", mov.ID())
			}
		}
	}
	for _, node := range net.Nodes() {
		for _, link := range node.AdjacentLinks() {
			if registered, ok := net.links[link.ID]; !ok || registered != link {
				return dtaErrorf("node %d references link %d which is not in the network", node.ID, link.ID)
			}
		}
		for i := 1; i < len(node.outgoingLinks); i++ {
			if node.outgoingLinks[i-1].ReferenceAngle() > node.outgoingLinks[i].ReferenceAngle() {
				return dtaErrorf("outgoing links of node %d are not sorted", node.ID)
			}
		}
		for i := 1; i < len(node.incomingLinks); i++ {
			if node.incomingLinks[i-1].ReferenceAngle() > node.incomingLinks[i].ReferenceAngle() {
				return dtaErrorf("incoming links of node %d are not sorted", node.ID)
			}
		}
	}
	return nil
}
