package dtanet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoadLabel(t *testing.T) {
	cases := map[string]string{
		"Main St":           "MAIN",
		"  main   street ":  "MAIN",
		"First Avenue":      "1ST",
		"W. Third St.":      "3RD",
		"North Broadway":    "BROADWAY",
		"Van Ness Ave":      "VAN NESS",
		"Avenue":            "AVENUE",
		"Embarcadero":       "EMBARCADERO",
		"twentieth street":  "20TH",
		"Geary Blvd":        "GEARY",
		"S Van Ness Avenue": "VAN NESS",
	}
	for label, expected := range cases {
		assert.Equal(t, expected, NormalizeRoadLabel(label), "label '%s'", label)
	}
}

func TestLabelRatio(t *testing.T) {
	assert.Equal(t, 1.0, LabelRatio("MAIN", "MAIN"))
	assert.Equal(t, 1.0, LabelRatio("", ""))
	assert.Equal(t, 0.0, LabelRatio("ABC", "XYZ"))
	assert.InDelta(t, 0.9, LabelRatio("WASHINGTON", "WASHINGTN"), 1e-9)
	assert.True(t, labelsMatch("WASHINGTON", "WASHINGTN", 0.8))
	assert.False(t, labelsMatch("3RD", "5TH", 0.5), "numeric labels use stricter cutoff")
}

// buildLabeledGrid relabels cross streets of the grid: node 5 is Main St & First St, node 4 is Main St & Washington Ave
func buildLabeledGrid(t *testing.T) *Network {
	_, net := buildGrid(t)
	for _, pair := range [][2]NodeID{{2, 5}, {5, 2}, {3, 5}, {5, 3}} {
		mustLink(t, net, pair[0], pair[1]).Label = "First St"
	}
	for _, pair := range [][2]NodeID{{4, 6}, {6, 4}, {4, 8}, {8, 4}} {
		mustLink(t, net, pair[0], pair[1]).Label = "Washington Ave"
	}
	return net
}

func TestFindNodeForRoadLabels(t *testing.T) {
	net := buildLabeledGrid(t)

	node, err := net.FindNodeForRoadLabels([]string{"main street", "1st st"}, 0)
	require.NoError(t, err)
	assert.Equal(t, NodeID(5), node.ID)

	node, err = net.FindNodeForRoadLabels([]string{"Washingtn Avenue", "Main"}, 0)
	require.NoError(t, err)
	assert.Equal(t, NodeID(4), node.ID)

	node, err = net.FindNodeForRoadLabels([]string{"Washington"}, 0)
	require.NoError(t, err)
	assert.Equal(t, NodeID(4), node.ID, "the lowest id wins")

	_, err = net.FindNodeForRoadLabels([]string{"Main", "2nd St"}, 0)
	assert.Error(t, err)
	_, err = net.FindNodeForRoadLabels([]string{"Washingtn Avenue", "Main"}, 1)
	assert.Error(t, err, "exact match is required")
	_, err = net.FindNodeForRoadLabels([]string{" "}, 0)
	assert.Error(t, err)
}

func TestFindLinksForRoadLabels(t *testing.T) {
	net := buildLabeledGrid(t)

	links, err := net.FindLinksForRoadLabels("Main St", HEADING_EB, "First St", "Washington Ave", 0)
	require.NoError(t, err)
	assert.Equal(t, []LinkID{gridLinkID(5, 4)}, linkIDs(links))

	links, err = net.FindLinksForRoadLabels("Main St", HEADING_WB, "Washington Ave", "First St", 0)
	require.NoError(t, err)
	assert.Equal(t, []LinkID{gridLinkID(4, 5)}, linkIDs(links))

	_, err = net.FindLinksForRoadLabels("Main St", HEADING_WB, "First St", "Washington Ave", 0)
	assert.Error(t, err, "walking away from the destination hits dead end")
	_, err = net.FindLinksForRoadLabels("Main St", HEADING_EB, "First St", "First St", 0)
	assert.Error(t, err)
}

func TestFindLinksForRoadLabelsFollowsExactStreet(t *testing.T) {
	net := buildLabeledGrid(t)
	mustLink(t, net, 5, 4).Label = "Maine St"
	require.True(t, labelsMatch("MAIN", "MAINE", 0.75))

	_, err := net.FindLinksForRoadLabels("Main St", HEADING_EB, "First St", "Washington Ave", 0.75)
	assert.Error(t, err, "Maine St is another street")

	links, err := net.FindLinksForRoadLabels("Main St", HEADING_WB, "Washington Ave", "First St", 0.75)
	require.NoError(t, err)
	assert.Equal(t, []LinkID{gridLinkID(4, 5)}, linkIDs(links))
}

func TestFindMovementForRoadLabels(t *testing.T) {
	net := buildLabeledGrid(t)

	mov, err := net.FindMovementForRoadLabels("Main St", HEADING_EB, "First St", HEADING_NB, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "1 5 2", mov.ID())
	assert.True(t, mov.IsLeftTurn())

	mov, err = net.FindMovementForRoadLabels("Main", HEADING_EB, "Main", HEADING_EB, "Washington", 0)
	require.NoError(t, err)
	assert.Equal(t, "5 4 7", mov.ID())

	_, err = net.FindMovementForRoadLabels("Main St", HEADING_SB, "First St", HEADING_NB, "", 0)
	assert.Error(t, err)
}
