package dtanet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeIDs(path []*Node) []NodeID {
	ids := make([]NodeID, len(path))
	for i, node := range path {
		ids[i] = node.ID
	}
	return ids
}

func linkIDs(path []*Link) []LinkID {
	ids := make([]LinkID, len(path))
	for i, link := range path {
		ids[i] = link.ID
	}
	return ids
}

func TestLabelCorrectingWithLabelsOnNodes(t *testing.T) {
	_, net := buildGrid(t)
	source := mustNode(t, net, 1)
	tree := LabelCorrectingWithLabelsOnNodes(net, source, true)

	path, err := GetShortestPathBetweenNodes(tree, source, mustNode(t, net, 7))
	require.NoError(t, err)
	assert.Equal(t, []NodeID{1, 5, 4, 7}, nodeIDs(path))
	assert.Equal(t, 300.0, tree.Label(7))
	assert.Equal(t, 0.0, tree.Label(1))
	for _, node := range net.Nodes() {
		assert.True(t, tree.Reached(node.ID), "node %d must be reached", node.ID)
	}

	empty, err := GetShortestPathBetweenNodes(tree, source, source)
	require.NoError(t, err)
	assert.Empty(t, empty)
	_, err = GetShortestPathBetweenNodes(tree, mustNode(t, net, 2), mustNode(t, net, 7))
	assert.Error(t, err, "tree is built from another source")
}

func TestLabelCorrectingSkipsVirtualLinks(t *testing.T) {
	_, net := buildGrid(t)
	centroid := addCentroid(t, net, 9, 0, 200, 5)
	_, err := net.InsertVirtualNodeBetweenCentroidsAndRoadNodes(0, 0)
	require.NoError(t, err)

	tree := LabelCorrectingWithLabelsOnNodes(net, mustNode(t, net, 1), false)
	assert.True(t, tree.Reached(10), "virtual node is reachable by connector")
	assert.False(t, tree.Reached(centroid.ID), "virtual links are never relaxed")

	tree = LabelCorrectingWithLabelsOnNodes(net, mustNode(t, net, 1), true)
	assert.False(t, tree.Reached(10))
	assert.Equal(t, 300.0, tree.Label(7))
	assert.True(t, math.IsInf(tree.Label(centroid.ID), 1))
}

func TestLabelSettingWithLabelsOnNodes(t *testing.T) {
	_, net := buildGrid(t)
	source := mustNode(t, net, 1)
	dest := mustNode(t, net, 7)

	tree := LabelSettingWithLabelsOnNodes(net, source, LabelSettingOptions{})
	path, err := GetShortestPathBetweenNodes(tree, source, dest)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{1, 5, 4, 7}, nodeIDs(path))
	correcting := LabelCorrectingWithLabelsOnNodes(net, source, true)
	for _, node := range net.Nodes() {
		assert.Equal(t, correcting.Label(node.ID), tree.Label(node.ID), "label of node %d", node.ID)
	}

	limited := LabelSettingWithLabelsOnNodes(net, source, LabelSettingOptions{MaxLabel: 150})
	assert.True(t, limited.Reached(5))
	assert.False(t, limited.Reached(4))

	early := LabelSettingWithLabelsOnNodes(net, source, LabelSettingOptions{EndVertex: mustNode(t, net, 5)})
	assert.True(t, early.Reached(5))
	assert.False(t, early.Reached(7))

	withOffset := LabelSettingWithLabelsOnNodes(net, source, LabelSettingOptions{SourceLabel: 10})
	assert.Equal(t, 310.0, withOffset.Label(7))

	blocked := LabelSettingWithLabelsOnNodes(net, source, LabelSettingOptions{
		Filter: func(link *Link) bool {
			return link.StartNode().ID == 4 && link.EndNode().ID == 7
		},
	})
	assert.False(t, blocked.Reached(7))
	_, err = GetShortestPathBetweenNodes(blocked, source, dest)
	assert.Error(t, err)

	byLanes := LabelSettingWithLabelsOnNodes(net, source, LabelSettingOptions{
		Cost: func(link *Link) float64 {
			return float64(link.NumLanes())
		},
	})
	assert.Equal(t, 6.0, byLanes.Label(7))
}

func TestLabelsOnLinks(t *testing.T) {
	_, net := buildGrid(t)
	source := mustLink(t, net, 1, 5)
	dest := mustLink(t, net, 4, 7)

	tree := LabelCorrectingWithLabelsOnLinks(net, source, nil)
	path, err := GetShortestPathBetweenLinks(tree, source, dest)
	require.NoError(t, err)
	assert.Equal(t, []LinkID{gridLinkID(1, 5), gridLinkID(5, 4), gridLinkID(4, 7)}, linkIDs(path))
	assert.Equal(t, 200.0, tree.Label(dest.ID))
	assert.False(t, tree.Reached(gridLinkID(5, 1)), "U-turn is prohibited")

	setting := LabelSettingWithLabelsOnLinks(net, source, LinkLabelSettingOptions{EndLink: dest})
	path, err = GetShortestPathBetweenLinks(setting, source, dest)
	require.NoError(t, err)
	assert.Len(t, path, 3)
	assert.Equal(t, 200.0, setting.Label(dest.ID))

	thru, err := net.GetMovement(1, 5, 4)
	require.NoError(t, err)
	net.ProhibitMovement(thru)
	tree = LabelCorrectingWithLabelsOnLinks(net, source, nil)
	assert.False(t, tree.Reached(dest.ID), "every detour ends at a dead end with prohibited U-turn")
	_, err = GetShortestPathBetweenLinks(tree, source, dest)
	assert.Error(t, err)

	filtered := LabelSettingWithLabelsOnLinks(net, mustLink(t, net, 2, 5), LinkLabelSettingOptions{
		Filter: func(link *Link) bool {
			return link.EndNode().ID == 7
		},
	})
	assert.True(t, filtered.Reached(gridLinkID(5, 4)))
	assert.False(t, filtered.Reached(dest.ID))
}

func TestReachabilityIndex(t *testing.T) {
	scn := testScenario(t)
	net := NewNetwork(scn, WithLengthUnits(1.0))
	a := NewRoadNode(1, 0, 0, GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0)
	b := NewRoadNode(2, 100, 0, GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0)
	c := NewRoadNode(3, 200, 0, GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0)
	zone := NewCentroid(10, 50, 50, "", 0)
	other := NewCentroid(11, 200, 50, "", 0)
	for _, node := range []*Node{a, b, c, zone, other} {
		require.NoError(t, net.AddNode(node))
	}
	road, err := NewRoadLink(1, b, c, roadAttrs(""))
	require.NoError(t, err)
	require.NoError(t, net.AddLink(road))
	for i, pair := range [][2]*Node{{a, zone}, {zone, b}, {c, other}} {
		conn, err := NewConnector(LinkID(100+i), pair[0], pair[1], connectorAttrs())
		require.NoError(t, err)
		require.NoError(t, net.AddLink(conn))
	}

	idx, err := NewReachabilityIndex(net)
	require.NoError(t, err)
	assert.True(t, idx.HasPath(a, zone))
	assert.True(t, idx.HasPath(zone, b))
	assert.True(t, idx.HasPath(zone, other))
	assert.False(t, idx.HasPath(a, b), "paths never pass through centroids")
	assert.False(t, idx.HasPath(a, other))
	assert.False(t, idx.HasPath(c, a))
	assert.True(t, idx.HasPath(a, a))
	assert.Equal(t, -1.0, idx.Distance(a, b))
	assert.InDelta(t, 150.0, idx.Distance(b, other), 1e-9)

	stranger := NewRoadNode(99, 0, 0, GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0)
	assert.False(t, idx.HasPath(stranger, a))
}
