package dtanet

import (
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScenario(t *testing.T) *Scenario {
	scn, err := NewScenario(NewTime(7, 0, 0), NewTime(9, 0, 0))
	require.NoError(t, err)
	return scn
}

func roadAttrs(label string) LinkAttributes {
	return LinkAttributes{
		Label:                 label,
		FacilityType:          FACILITY_ARTERIAL,
		Length:                -1,
		FreeflowSpeed:         30,
		EffectiveLengthFactor: 1,
		ResponseTimeFactor:    1,
		NumLanes:              2,
	}
}

func gridLinkID(start, end NodeID) LinkID {
	return LinkID(10*int(start) + int(end))
}

// buildGrid returns two four-legged crossings: node 5 in the middle of nodes 1-4 and node 4 in the middle
// of nodes 5-8. Every road link is two-way, lengths equal coordinate distances
func buildGrid(t *testing.T) (*Scenario, *Network) {
	scn := testScenario(t)
	net := NewNetwork(scn, WithLengthUnits(1.0))
	coords := map[NodeID]orb.Point{
		1: {0, 100}, 2: {100, 200}, 3: {100, 0}, 4: {200, 100},
		5: {100, 100}, 6: {200, 200}, 7: {300, 100}, 8: {200, 0},
	}
	ids := make([]int, 0, len(coords))
	for id := range coords {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		pt := coords[NodeID(id)]
		geomType := GEOMETRY_JUNCTION
		if id == 4 || id == 5 {
			geomType = GEOMETRY_INTERSECTION
		}
		require.NoError(t, net.AddNode(NewRoadNode(NodeID(id), pt.X(), pt.Y(), geomType, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0)))
	}
	pairs := [][2]NodeID{{1, 5}, {2, 5}, {3, 5}, {4, 5}, {4, 6}, {4, 7}, {4, 8}}
	for _, pair := range pairs {
		for _, dir := range [][2]NodeID{{pair[0], pair[1]}, {pair[1], pair[0]}} {
			start, err := net.GetNodeForID(dir[0])
			require.NoError(t, err)
			end, err := net.GetNodeForID(dir[1])
			require.NoError(t, err)
			label := "Main St"
			if start.X() == end.X() {
				label = "Cross Ave"
			}
			link, err := NewRoadLink(gridLinkID(dir[0], dir[1]), start, end, roadAttrs(label))
			require.NoError(t, err)
			require.NoError(t, net.AddLink(link))
		}
	}
	require.NoError(t, net.AddAllMovements(scn.AllGroup(), false))
	return scn, net
}

func mustLink(t *testing.T, net *Network, start, end NodeID) *Link {
	link, err := net.GetLinkForNodeIdPair(start, end)
	require.NoError(t, err)
	return link
}

func mustNode(t *testing.T, net *Network, id NodeID) *Node {
	node, err := net.GetNodeForID(id)
	require.NoError(t, err)
	return node
}

func allowedEnds(link *Link) []NodeID {
	out := make([]NodeID, 0)
	for _, mov := range link.OutgoingMovements() {
		if !mov.IsProhibited() {
			out = append(out, mov.EndNode().ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestGridNetwork(t *testing.T) {
	_, net := buildGrid(t)
	assert.Equal(t, 8, net.GetNumNodes())
	assert.Equal(t, 14, net.GetNumLinks())
	assert.Equal(t, 14, net.GetNumRoadLinks())
	require.NoError(t, net.CheckInvariants())

	in := mustLink(t, net, 1, 5)
	assert.Equal(t, []NodeID{2, 3, 4}, allowedEnds(in))
	uturn, err := in.GetOutgoingMovement(1)
	require.NoError(t, err)
	assert.True(t, uturn.IsUTurn())
	assert.True(t, uturn.IsProhibited())

	thru, err := net.GetMovement(1, 5, 4)
	require.NoError(t, err)
	assert.Equal(t, "EBTH", thru.GetDirectionTurnType())
	left, err := net.GetMovement(1, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, "EBLT", left.GetDirectionTurnType())
	right, err := net.GetMovement(1, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, "EBRT", right.GetDirectionTurnType())

	assert.Equal(t, 100.0, in.GetLength())
	assert.True(t, in.HasAutoLength())
	assert.True(t, mustNode(t, net, 5).IsIntersection())
	assert.True(t, mustNode(t, net, 1).IsJunction())
	assert.Equal(t, NodeID(9), net.NewNodeID())
	assert.Equal(t, LinkID(85), net.NewLinkID())
}

func TestAddLinkKeepsAdjacencySorted(t *testing.T) {
	_, net := buildGrid(t)
	for _, node := range net.Nodes() {
		out := node.OutgoingLinks()
		for i := 1; i < len(out); i++ {
			assert.LessOrEqual(t, out[i-1].ReferenceAngle(), out[i].ReferenceAngle(), "outgoing links of node %d", node.ID)
		}
		in := node.IncomingLinks()
		for i := 1; i < len(in); i++ {
			assert.LessOrEqual(t, in[i-1].ReferenceAngle(), in[i].ReferenceAngle(), "incoming links of node %d", node.ID)
		}
	}
	// East first, then south (clockwise from +x), west, north
	out := mustNode(t, net, 5).OutgoingLinks()
	ends := make([]NodeID, len(out))
	for i, link := range out {
		ends[i] = link.EndNode().ID
	}
	assert.Equal(t, []NodeID{4, 3, 1, 2}, ends)
}

func TestAddLinkErrors(t *testing.T) {
	_, net := buildGrid(t)
	n1 := mustNode(t, net, 1)
	n5 := mustNode(t, net, 5)

	dup, err := NewRoadLink(gridLinkID(1, 5), n1, mustNode(t, net, 3), roadAttrs(""))
	require.NoError(t, err)
	assert.Error(t, net.AddLink(dup), "link id is already used")

	parallel, err := NewRoadLink(1000, n1, n5, roadAttrs(""))
	require.NoError(t, err)
	err = net.AddLink(parallel)
	assert.Error(t, err, "node pair is already connected")
	assert.True(t, IsDtaError(err))

	foreign := NewRoadNode(500, 0, 0, GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0)
	orphan, err := NewRoadLink(1001, foreign, n5, roadAttrs(""))
	require.NoError(t, err)
	assert.Error(t, net.AddLink(orphan), "start node is not registered")

	_, err = NewRoadLink(1002, n1, n5, LinkAttributes{NumLanes: 0})
	assert.Error(t, err)

	centroid := NewCentroid(600, 0, 0, "", 0)
	_, err = NewRoadLink(1003, centroid, n5, roadAttrs(""))
	assert.Error(t, err)
	_, err = NewConnector(1004, n1, n5, roadAttrs(""))
	assert.Error(t, err, "connector needs exactly one road end")
	_, err = NewVirtualLink(1005, centroid, n5, "")
	assert.Error(t, err)

	assert.Error(t, net.AddNode(NewRoadNode(5, 0, 0, GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0)))
	_, err = net.GetNodeForID(42)
	assert.True(t, IsDtaError(err))
	_, err = net.GetLinkForID(42)
	assert.True(t, IsDtaError(err))
}

func TestRemoveLink(t *testing.T) {
	scn, net := buildGrid(t)
	victim := mustLink(t, net, 5, 4)
	incoming := victim.IncomingMovements()
	require.NotEmpty(t, incoming)

	require.NoError(t, net.RemoveLink(victim))
	assert.False(t, net.HasLinkForID(victim.ID))
	assert.False(t, net.HasLinkForNodeIdPair(5, 4))
	for _, link := range mustNode(t, net, 5).OutgoingLinks() {
		assert.NotSame(t, victim, link)
	}
	for _, link := range mustNode(t, net, 4).IncomingLinks() {
		assert.NotSame(t, victim, link)
	}
	for _, mov := range net.Movements() {
		assert.NotSame(t, victim, mov.IncomingLink())
		assert.NotSame(t, victim, mov.OutgoingLink())
	}
	for _, mov := range incoming {
		assert.Same(t, scn.ProhibitedGroup(), mov.Permission(), "removed movement %s must be prohibited", mov.ID())
	}
	assert.Equal(t, []NodeID{2, 3}, allowedEnds(mustLink(t, net, 1, 5)))
	require.NoError(t, net.CheckInvariants())
	assert.Error(t, net.RemoveLink(victim))
}

func TestRemoveNode(t *testing.T) {
	_, net := buildGrid(t)
	require.NoError(t, net.RemoveNode(mustNode(t, net, 7)))
	assert.Equal(t, 7, net.GetNumNodes())
	assert.Equal(t, 12, net.GetNumLinks())
	assert.False(t, net.HasLinkForNodeIdPair(4, 7))
	assert.Equal(t, NodeID(9), net.NewNodeID())
	require.NoError(t, net.CheckInvariants())

	err := net.RemoveNode(nil)
	require.Error(t, err)
	assert.True(t, IsDtaError(err))
	assert.Error(t, net.RemoveLink(nil))
	assert.Error(t, net.RemoveMovement(nil))
	assert.Equal(t, 7, net.GetNumNodes())
}

func TestMovementConsistency(t *testing.T) {
	_, net := buildGrid(t)
	for _, mov := range net.Movements() {
		assert.Same(t, mov.AtNode(), mov.IncomingLink().EndNode())
		assert.Same(t, mov.AtNode(), mov.OutgoingLink().StartNode())
	}
	// 4 legs give 16 movements at each crossing, dead ends give one U-turn each
	assert.Equal(t, 16+16+6, net.GetNumMovements())

	n5 := mustNode(t, net, 5)
	_, err := NewMovement(n5, mustLink(t, net, 5, 4), mustLink(t, net, 5, 1), 30, net.Scenario().AllGroup(), 1, -1, -1, -1)
	assert.Error(t, err, "incoming link must end at node")
	_, err = NewMovement(n5, mustLink(t, net, 1, 5), mustLink(t, net, 4, 5), 30, net.Scenario().AllGroup(), 1, -1, -1, -1)
	assert.Error(t, err, "outgoing link must start at node")

	existing, err := net.GetMovement(1, 5, 4)
	require.NoError(t, err)
	again, err := NewMovement(n5, existing.IncomingLink(), existing.OutgoingLink(), 30, net.Scenario().AllGroup(), 1, -1, -1, -1)
	require.NoError(t, err)
	assert.Error(t, net.AddMovement(again), "movement between same links already exists")

	net.ProhibitMovement(existing)
	assert.True(t, existing.IsProhibited())
	require.NoError(t, net.RemoveMovement(existing))
	assert.False(t, existing.IncomingLink().HasOutgoingMovement(4))
	assert.Error(t, net.RemoveMovement(existing))
}

func TestRenameRoundTrip(t *testing.T) {
	_, net := buildGrid(t)
	before := net.String()

	require.NoError(t, net.RenameNode(5, 50))
	assert.False(t, net.HasNodeForID(5))
	assert.True(t, net.HasLinkForNodeIdPair(1, 50))
	assert.False(t, net.HasLinkForNodeIdPair(1, 5))
	_, err := net.GetMovement(1, 50, 4)
	require.NoError(t, err)
	assert.Equal(t, NodeID(51), net.NewNodeID())
	assert.Error(t, net.RenameNode(50, 4), "target id is taken")

	require.NoError(t, net.RenameLink(gridLinkID(1, 5), 1000))
	assert.True(t, net.HasLinkForID(1000))
	require.NoError(t, net.RenameLink(1000, gridLinkID(1, 5)))

	require.NoError(t, net.RenameNode(50, 5))
	assert.Equal(t, before, net.String())
	assert.True(t, net.HasLinkForNodeIdPair(1, 5))
	assert.Equal(t, NodeID(9), net.NewNodeID())
	require.NoError(t, net.CheckInvariants())

	centroid := NewCentroid(100, 0, 0, "", 0)
	require.NoError(t, net.AddNode(centroid))
	assert.Error(t, net.RenameNode(100, 101), "centroids keep their ids")
}

func TestCoordinatesAlongLink(t *testing.T) {
	_, net := buildGrid(t)
	link := mustLink(t, net, 1, 5)
	length := link.GetLengthFromCoordinates()

	pt, err := link.CoordinatesAlongLink(true, 0, false)
	require.NoError(t, err)
	assert.Equal(t, link.StartNode().Point(), pt)

	pt, err = link.CoordinatesAlongLink(true, length, false)
	require.NoError(t, err)
	assert.Equal(t, link.EndNode().Point(), pt)

	pt, err = link.CoordinatesAlongLink(false, 25, false)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{75, 100}, pt)

	_, err = link.CoordinatesAlongLink(true, length+10, false)
	assert.Error(t, err)
	pt, err = link.CoordinatesAlongLink(true, length+10, true)
	require.NoError(t, err)
	assert.InDelta(t, 110.0, pt.X(), 1e-9)
	assert.InDelta(t, 100.0, pt.Y(), 1e-9)

	_, err = link.CoordinatesAlongLink(true, -1, false)
	assert.Error(t, err)

	link.SetShapePoints([]orb.Point{{50, 150}})
	assert.Equal(t, orb.Point{50, 150}, link.Geometry()[1])
	pt, err = link.CoordinatesAlongLink(true, link.GetLengthFromCoordinates(), false)
	require.NoError(t, err)
	assert.Equal(t, link.EndNode().Point(), pt)
}

func TestLinkAngles(t *testing.T) {
	_, net := buildGrid(t)
	links := net.Links()
	for _, a := range links {
		for _, b := range links {
			angle := a.GetAngle(b, true)
			assert.Greater(t, angle, -180.0)
			assert.LessOrEqual(t, angle, 180.0)
			back := b.GetAngle(a, true)
			if angle < 179.9 {
				assert.InDelta(t, -angle, back, 1e-9, "angle between %d and %d", a.ID, b.ID)
			}
		}
	}
	assert.InDelta(t, 90.0, mustLink(t, net, 1, 5).GetAngle(mustLink(t, net, 5, 2), true), 1e-9)
	assert.InDelta(t, -90.0, mustLink(t, net, 1, 5).GetAngle(mustLink(t, net, 5, 3), true), 1e-9)
	assert.InDelta(t, 180.0, mustLink(t, net, 1, 5).GetAngle(mustLink(t, net, 5, 1), true), 1e-9)
}

func TestLanePermissions(t *testing.T) {
	scn, net := buildGrid(t)
	require.NoError(t, scn.AddVehicleClass("Car"))
	require.NoError(t, scn.AddVehicleClass("Truck"))
	carOnly := NewVehicleClassGroup("CarOnly", "Car", "#ff0000")
	require.NoError(t, scn.AddVehicleClassGroup(carOnly))

	link := mustLink(t, net, 1, 5)
	assert.True(t, link.AllowsAllClasses())
	require.NoError(t, link.AddLanePermission(0, carOnly))
	assert.Error(t, link.AddLanePermission(2, carOnly), "lane index out of range")
	group, ok := link.GetLanePermission(0)
	require.True(t, ok)
	assert.Same(t, carOnly, group)
	assert.Equal(t, []int{0}, link.LanesWithPermissions())
	assert.False(t, link.AllowsAllClasses())
	assert.Error(t, link.SetNumLanes(0))
	require.NoError(t, net.CheckInvariants())
}
