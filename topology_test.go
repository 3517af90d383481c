package dtanet

import (
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectorAttrs() LinkAttributes {
	return LinkAttributes{
		FacilityType:          FACILITY_CONNECTOR,
		Length:                -1,
		FreeflowSpeed:         30,
		EffectiveLengthFactor: 1,
		ResponseTimeFactor:    1,
		NumLanes:              1,
	}
}

// addCentroid puts centroid at given point and connects it to road node in both directions
func addCentroid(t *testing.T, net *Network, id NodeID, x, y float64, roadID NodeID) *Node {
	centroid := NewCentroid(id, x, y, "", 0)
	require.NoError(t, net.AddNode(centroid))
	road := mustNode(t, net, roadID)
	out, err := NewConnector(net.NewLinkID(), centroid, road, connectorAttrs())
	require.NoError(t, err)
	require.NoError(t, net.AddLink(out))
	in, err := NewConnector(net.NewLinkID(), road, centroid, connectorAttrs())
	require.NoError(t, err)
	require.NoError(t, net.AddLink(in))
	require.NoError(t, net.AddAllMovements(net.Scenario().AllGroup(), false))
	return centroid
}

func TestSplitLink(t *testing.T) {
	_, net := buildGrid(t)
	link := mustLink(t, net, 1, 5)
	mid, err := net.SplitLink(link, true, 0.5)
	require.NoError(t, err)

	assert.Equal(t, NodeID(9), mid.ID)
	assert.Equal(t, orb.Point{50, 100}, mid.Point())
	assert.Equal(t, 9, net.GetNumNodes())
	assert.Equal(t, 16, net.GetNumLinks())
	assert.False(t, net.HasLinkForNodeIdPair(1, 5))
	assert.False(t, net.HasLinkForNodeIdPair(5, 1))
	assert.True(t, mid.IsJunction())
	assert.True(t, mid.IsMidblockNode())

	thru, err := net.GetMovement(1, 9, 5)
	require.NoError(t, err)
	assert.False(t, thru.IsProhibited())
	assert.Equal(t, TURN_THRU, thru.GetTurnType())
	uturn, err := net.GetMovement(1, 9, 1)
	require.NoError(t, err)
	assert.True(t, uturn.IsProhibited())

	// Movements of the split link survive at both ends
	assert.Equal(t, []NodeID{2, 3, 4}, allowedEnds(mustLink(t, net, 9, 5)))
	fromNorth := mustLink(t, net, 2, 5)
	assert.True(t, fromNorth.HasOutgoingMovement(9))

	first := mustLink(t, net, 1, 9)
	second := mustLink(t, net, 9, 5)
	assert.Equal(t, 50.0, first.GetLength())
	assert.Equal(t, 50.0, second.GetLength())
	assert.True(t, sameAttributes(first.Attributes(), roadAttrs("Main St")))
	require.NoError(t, net.CheckInvariants())

	_, err = net.SplitLink(first, false, 1.0)
	assert.Error(t, err)
	_, err = net.SplitLink(first, false, 0)
	assert.Error(t, err)
}

func TestSplitLinkWithShapePoints(t *testing.T) {
	_, net := buildGrid(t)
	link := mustLink(t, net, 1, 5)
	link.SetLength(300)
	link.SetShapePoints([]orb.Point{{0, 200}, {100, 200}})

	mid, err := net.SplitLink(link, false, 0.5)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{50, 200}, mid.Point())
	first := mustLink(t, net, 1, mid.ID)
	second := mustLink(t, net, mid.ID, 5)
	assert.Equal(t, []orb.Point{{0, 200}}, first.ShapePoints())
	assert.Equal(t, []orb.Point{{100, 200}}, second.ShapePoints())
	assert.Equal(t, 150.0, first.GetLength())
	assert.Equal(t, 150.0, second.GetLength())
	assert.True(t, net.HasLinkForNodeIdPair(5, 1), "reverse link is kept")
}

func TestSplitAndMergeRestoresLink(t *testing.T) {
	_, net := buildGrid(t)
	original := mustLink(t, net, 1, 5).Attributes()
	reverseOriginal := mustLink(t, net, 5, 1).Attributes()

	_, err := net.SplitLink(mustLink(t, net, 1, 5), true, 0.3)
	require.NoError(t, err)
	removed, err := net.RemoveShapePointNodes()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.Equal(t, 8, net.GetNumNodes())
	assert.Equal(t, 14, net.GetNumLinks())
	merged := mustLink(t, net, 1, 5)
	assert.InDelta(t, original.Length, merged.GetLength(), 1e-9)
	assert.True(t, sameAttributes(original, merged.Attributes()))
	assert.True(t, merged.HasAutoLength())
	reverse := mustLink(t, net, 5, 1)
	assert.InDelta(t, reverseOriginal.Length, reverse.GetLength(), 1e-9)

	assert.Equal(t, []NodeID{2, 3, 4}, allowedEnds(merged))
	uturn, err := net.GetMovement(1, 5, 1)
	require.NoError(t, err)
	assert.True(t, uturn.IsProhibited())
	assert.True(t, mustLink(t, net, 2, 5).HasOutgoingMovement(1))
	require.NoError(t, net.CheckInvariants())
}

func higherPriorityIDs(mov *Movement) []string {
	ids := make([]string, 0)
	for _, hp := range mov.HigherPriorityMovements() {
		ids = append(ids, hp.Movement.ID())
	}
	return ids
}

func TestSplitAndMergeKeepPriorities(t *testing.T) {
	_, net := buildGrid(t)
	require.NoError(t, mustMovement(t, net, 1, 5, 4).AddHigherPriorityMovement(mustMovement(t, net, 3, 5, 2), 4.5, 30))
	require.NoError(t, mustMovement(t, net, 1, 5, 4).AddHigherPriorityMovement(mustMovement(t, net, 4, 5, 1), 3, 20))

	south, err := net.SplitLink(mustLink(t, net, 3, 5), true, 0.5)
	require.NoError(t, err)
	yielding := mustMovement(t, net, 1, 5, 4)
	assert.Equal(t, []string{fmt.Sprintf("%d 5 2", south.ID), "4 5 1"}, higherPriorityIDs(yielding))

	west, err := net.SplitLink(mustLink(t, net, 1, 5), true, 0.5)
	require.NoError(t, err)
	yielding = mustMovement(t, net, west.ID, 5, 4)
	assert.Equal(t, []string{fmt.Sprintf("%d 5 2", south.ID), fmt.Sprintf("4 5 %d", west.ID)}, higherPriorityIDs(yielding))
	hp := yielding.HigherPriorityMovements()
	assert.Equal(t, 4.5, hp[0].CriticalGap)
	assert.Equal(t, 30.0, hp[0].CriticalWait)
	assert.Equal(t, 3.0, hp[1].CriticalGap)
	assert.Equal(t, 20.0, hp[1].CriticalWait)

	removed, err := net.RemoveShapePointNodes()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	yielding = mustMovement(t, net, 1, 5, 4)
	assert.Equal(t, []string{"3 5 2", "4 5 1"}, higherPriorityIDs(yielding))
	hp = yielding.HigherPriorityMovements()
	assert.Equal(t, 4.5, hp[0].CriticalGap)
	assert.Equal(t, 20.0, hp[1].CriticalWait)
	require.NoError(t, net.CheckInvariants())
}

func TestMergeLinksErrors(t *testing.T) {
	_, net := buildGrid(t)
	_, err := net.MergeLinks(mustLink(t, net, 1, 5), mustLink(t, net, 5, 4))
	assert.Error(t, err, "node 5 is an intersection")
	_, err = net.MergeLinks(mustLink(t, net, 1, 5), mustLink(t, net, 4, 7))
	assert.Error(t, err, "links are not sequential")

	mid, err := net.SplitLink(mustLink(t, net, 1, 5), false, 0.5)
	require.NoError(t, err)
	second := mustLink(t, net, mid.ID, 5)
	second.SetFreeflowSpeed(50)
	_, err = net.MergeLinks(mustLink(t, net, 1, mid.ID), second)
	assert.Error(t, err, "attributes differ")
	second.SetFreeflowSpeed(30)
	merged, err := net.MergeLinks(mustLink(t, net, 1, mid.ID), second)
	require.NoError(t, err)
	assert.False(t, net.HasNodeForID(mid.ID))
	assert.Equal(t, 100.0, merged.GetLength())
}

func TestInsertVirtualNodes(t *testing.T) {
	_, net := buildGrid(t)
	centroid := addCentroid(t, net, 9, 0, 200, 5)
	require.Equal(t, 2, net.GetNumConnectors())

	created, err := net.InsertVirtualNodeBetweenCentroidsAndRoadNodes(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, net.GetNumVirtualNodes())
	assert.Equal(t, 2, net.GetNumVirtualLinks())
	assert.Equal(t, 2, net.GetNumConnectors())

	virtual := net.VirtualNodes()[0]
	assert.Equal(t, NodeID(10), virtual.ID)
	assert.Equal(t, centroid.Point(), virtual.Point())
	for _, link := range centroid.AdjacentLinks() {
		assert.True(t, link.IsVirtualLink(), "link %d at centroid must be virtual", link.ID)
	}
	assert.True(t, net.HasLinkForNodeIdPair(10, 5))
	assert.True(t, net.HasLinkForNodeIdPair(5, 10))
	owner, err := net.CentroidForVirtualNode(virtual)
	require.NoError(t, err)
	assert.Same(t, centroid, owner)

	// Movements at the road end are rebuilt for the new connectors
	mov, err := net.GetMovement(10, 5, 4)
	require.NoError(t, err)
	assert.False(t, mov.IsProhibited())
	require.NoError(t, net.CheckInvariants())

	again, err := net.InsertVirtualNodeBetweenCentroidsAndRoadNodes(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, again)
}

func TestInsertVirtualNodesAtDistance(t *testing.T) {
	_, net := buildGrid(t)
	centroid := addCentroid(t, net, 9, 0, 200, 5)
	created, err := net.InsertVirtualNodeBetweenCentroidsAndRoadNodes(100, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	virtual := mustNode(t, net, 100)
	assert.True(t, virtual.IsVirtualNode())
	assert.InDelta(t, 10.0, findDistance(centroid.Point(), virtual.Point()), 1e-9)
	assert.Equal(t, 1, net.GetNumVirtualNodes())
}

func TestInsertVirtualNodesDefaultDistance(t *testing.T) {
	net := NewNetwork(testScenario(t), WithLengthUnits(1.0), WithVirtualNodeDistance(25))
	require.NoError(t, net.AddNode(NewRoadNode(1, 100, 0, GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0)))
	centroid := addCentroid(t, net, 9, 0, 0, 1)

	created, err := net.InsertVirtualNodeBetweenCentroidsAndRoadNodes(0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, created)
	virtual := net.VirtualNodes()[0]
	assert.Equal(t, orb.Point{25, 0}, virtual.Point())
	assert.InDelta(t, 25.0, findDistance(centroid.Point(), virtual.Point()), 1e-9)
}

func TestMoveConnectorsToMidblocks(t *testing.T) {
	_, net := buildGrid(t)
	centroid := addCentroid(t, net, 9, 0, 200, 5)
	_, err := net.InsertVirtualNodeBetweenCentroidsAndRoadNodes(0, 0)
	require.NoError(t, err)

	relocated, err := net.MoveCentroidConnectorsFromIntersectionsToMidblocks(MidblockOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, relocated)

	assert.Equal(t, 11, net.GetNumNodes())
	assert.Equal(t, 20, net.GetNumLinks())
	for _, connector := range net.Connectors() {
		road := roadEnd(connector)
		assert.True(t, road.IsJunction(), "connector %d is attached to intersection %d", connector.ID, road.ID)
	}
	// Longest visible link from the virtual node is west leg of node 5, split in the middle
	mid := mustNode(t, net, 11)
	assert.Equal(t, orb.Point{50, 100}, mid.Point())
	assert.True(t, net.HasLinkForNodeIdPair(10, 11))
	assert.True(t, net.HasLinkForNodeIdPair(11, 10))
	assert.False(t, mustNode(t, net, 5).HasConnector())
	for _, link := range centroid.AdjacentLinks() {
		assert.True(t, link.IsVirtualLink())
	}
	mov, err := net.GetMovement(10, 11, 5)
	require.NoError(t, err)
	assert.False(t, mov.IsProhibited())
	require.NoError(t, net.CheckInvariants())
}

func TestMovedConnectorsTakeThroughLinkLanes(t *testing.T) {
	_, net := buildGrid(t)
	require.NoError(t, mustLink(t, net, 1, 5).SetNumLanes(3))
	require.NoError(t, mustLink(t, net, 5, 1).SetNumLanes(1))
	require.NoError(t, mustLink(t, net, 2, 5).SetNumLanes(4))
	require.NoError(t, mustLink(t, net, 5, 2).SetNumLanes(4))
	addCentroid(t, net, 9, 0, 200, 5)
	_, err := net.InsertVirtualNodeBetweenCentroidsAndRoadNodes(0, 0)
	require.NoError(t, err)

	relocated, err := net.MoveCentroidConnectorsFromIntersectionsToMidblocks(MidblockOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, relocated)

	// Zone lies north of the westbound half, so both connectors follow it
	assert.Equal(t, 3, mustLink(t, net, 1, 11).NumLanes())
	assert.Equal(t, 1, mustLink(t, net, 11, 1).NumLanes())
	assert.Equal(t, 1, mustLink(t, net, 11, 10).NumLanes())
	assert.Equal(t, 1, mustLink(t, net, 10, 11).NumLanes())
	require.NoError(t, net.CheckInvariants())
}

func TestMoveBoundaryConnectorsSumLanes(t *testing.T) {
	_, net := buildGrid(t)
	require.NoError(t, mustLink(t, net, 1, 5).SetNumLanes(3))
	require.NoError(t, mustLink(t, net, 5, 1).SetNumLanes(1))
	centroid := addCentroid(t, net, 9, 0, 200, 5)
	centroid.SetBoundary(true)
	_, err := net.InsertVirtualNodeBetweenCentroidsAndRoadNodes(0, 0)
	require.NoError(t, err)

	relocated, err := net.MoveCentroidConnectorsFromIntersectionsToMidblocks(MidblockOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, relocated)
	assert.Equal(t, 4, mustLink(t, net, 11, 10).NumLanes())
	assert.Equal(t, 4, mustLink(t, net, 10, 11).NumLanes())
}

func TestMoveConnectorsRespectsVeto(t *testing.T) {
	_, net := buildGrid(t)
	addCentroid(t, net, 9, 0, 200, 5)
	_, err := net.InsertVirtualNodeBetweenCentroidsAndRoadNodes(0, 0)
	require.NoError(t, err)

	opts := MidblockOptions{
		SplitVeto: func(link *Link) bool {
			return link.FacilityType() == FACILITY_ARTERIAL
		},
	}
	relocated, err := net.MoveCentroidConnectorsFromIntersectionsToMidblocks(opts)
	require.NoError(t, err)
	assert.Equal(t, 0, relocated)
	assert.True(t, mustNode(t, net, 5).HasConnector())
	assert.Equal(t, 18, net.GetNumLinks())
}

func TestHandleOverlappingLinks(t *testing.T) {
	_, net := buildGrid(t)
	require.NoError(t, net.AddNode(NewRoadNode(20, 200, 100.5, GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0)))
	link, err := NewRoadLink(520, mustNode(t, net, 5), mustNode(t, net, 20), roadAttrs("Spur"))
	require.NoError(t, err)
	require.NoError(t, net.AddLink(link))

	assert.Len(t, net.OverlappingLinksAtNode(mustNode(t, net, 5)), 2)
	assert.Empty(t, net.OverlappingLinksAtNode(mustNode(t, net, 1)))
	found, resolved := net.HandleOverlappingLinks(false, 0)
	assert.Equal(t, 2, found)
	assert.Equal(t, 0, resolved)
}

func TestHandleShortLinks(t *testing.T) {
	_, net := buildGrid(t)
	assert.Equal(t, 0, net.HandleShortLinks(50, false, false))
	assert.Equal(t, 14, net.HandleShortLinks(150, false, true))
	assert.Equal(t, 150.0, mustLink(t, net, 1, 5).GetLength())
	assert.Equal(t, 0, net.HandleShortLinks(150, false, false))
}
