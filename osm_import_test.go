package dtanet

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Main Street runs west to east through a signalized junction, a one way residential street leaves it to the north
const testOSMData = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="0" lon="0"/>
  <node id="2" lat="0" lon="0.001"/>
  <node id="3" lat="0" lon="0.002">
    <tag k="highway" v="traffic_signals"/>
  </node>
  <node id="4" lat="0.001" lon="0.002"/>
  <node id="5" lat="0" lon="0.003"/>
  <way id="100">
    <nd ref="1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <nd ref="5"/>
    <tag k="highway" v="primary"/>
    <tag k="name" v="Main Street"/>
    <tag k="maxspeed" v="30 mph"/>
    <tag k="lanes" v="4"/>
  </way>
  <way id="101">
    <nd ref="3"/>
    <nd ref="4"/>
    <tag k="highway" v="residential"/>
    <tag k="oneway" v="yes"/>
  </way>
  <way id="102">
    <nd ref="4"/>
    <nd ref="5"/>
    <tag k="highway" v="footway"/>
  </way>
  <relation id="200">
    <member type="way" ref="100" role="from"/>
    <member type="node" ref="3" role="via"/>
    <member type="way" ref="101" role="to"/>
    <tag k="type" v="restriction"/>
    <tag k="restriction" v="no_left_turn"/>
  </relation>
</osm>`

func TestImportOSM(t *testing.T) {
	scn := testScenario(t)
	net, err := ImportOSM(scn, strings.NewReader(testOSMData), ImportOSMOptions{}, WithLengthUnits(1.0))
	require.NoError(t, err)
	require.NoError(t, net.CheckInvariants())

	assert.Equal(t, 4, net.GetNumRoadNodes())
	assert.Equal(t, 5, net.GetNumRoadLinks())
	assert.Equal(t, 8, net.GetNumMovements())

	junction := mustNode(t, net, 2)
	assert.True(t, junction.IsSignalized())
	assert.Equal(t, GEOMETRY_INTERSECTION, junction.GeometryType())
	assert.Equal(t, GEOMETRY_JUNCTION, mustNode(t, net, 1).GeometryType())

	west := mustLink(t, net, 1, 2)
	assert.Equal(t, "Main Street", west.Label)
	assert.Equal(t, 2, west.NumLanes())
	assert.InDelta(t, 30*1.609344, west.FreeflowSpeed(), 1e-9)
	assert.Equal(t, FACILITY_ARTERIAL, west.FacilityType())
	assert.Equal(t, 1, west.GetNumShapePoints())
	assert.InDelta(t, west.GetLengthFromCoordinates(), west.GetLength(), 1e-6)
	assert.Equal(t, 1, mustLink(t, net, 2, 1).GetNumShapePoints())

	north := mustLink(t, net, 2, 4)
	assert.Equal(t, 1, north.NumLanes())
	assert.Equal(t, 30.0, north.FreeflowSpeed())
	assert.False(t, net.HasLinkForNodeIdPair(4, 2), "residential street is one way")
	assert.False(t, net.HasLinkForNodeIdPair(4, 3), "footways are not imported")

	assert.True(t, mustMovement(t, net, 1, 2, 4).IsProhibited())
	assert.True(t, mustMovement(t, net, 3, 2, 4).IsProhibited())
	assert.False(t, mustMovement(t, net, 1, 2, 3).IsProhibited())
	assert.True(t, mustMovement(t, net, 1, 2, 1).IsProhibited(), "U-turn")
}

func TestImportOSMHighwayFilter(t *testing.T) {
	scn := testScenario(t)
	net, err := ImportOSM(scn, strings.NewReader(testOSMData), ImportOSMOptions{Highways: []string{"residential"}, StartNodeID: 100, StartLinkID: 500})
	require.NoError(t, err)
	assert.Equal(t, 2, net.GetNumRoadNodes())
	assert.Equal(t, 1, net.GetNumRoadLinks())
	assert.True(t, net.HasNodeForID(100))
	assert.True(t, net.HasLinkForID(500))

	_, err = ImportOSM(scn, strings.NewReader(testOSMData), ImportOSMOptions{Highways: []string{"runway"}})
	assert.Error(t, err)
	_, err = ImportOSM(scn, strings.NewReader(testOSMData), ImportOSMOptions{Format: "shp"})
	assert.Error(t, err)
	_, err = ImportOSMFile(scn, filepath.Join(t.TempDir(), "map.txt"), ImportOSMOptions{})
	assert.Error(t, err)
}

func TestParseMaxSpeed(t *testing.T) {
	assert.Equal(t, 50.0, parseMaxSpeed("50"))
	assert.Equal(t, 60.0, parseMaxSpeed("60 km/h"))
	assert.InDelta(t, 40.2336, parseMaxSpeed("25 mph"), 1e-9)
	assert.Equal(t, -1.0, parseMaxSpeed("walk"))
	assert.Equal(t, 3, parseLanes("3;2"))
	assert.Equal(t, -1, parseLanes("none"))
}
