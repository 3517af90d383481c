package dtanet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZones creates three centroids around two road nodes: 2 -> 101 -> 102 -> 6 and 9 -> 101.
// Centroid 6 has no outgoing connector and centroid 9 has no incoming one
func buildZones(t *testing.T) *Network {
	net := NewNetwork(testScenario(t), WithLengthUnits(1.0))
	nodes := []*Node{
		NewCentroid(2, 0, 0, "", 0),
		NewCentroid(6, 300, 0, "", 0),
		NewCentroid(9, 0, 50, "", 0),
		NewRoadNode(101, 100, 0, GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0),
		NewRoadNode(102, 200, 0, GEOMETRY_JUNCTION, CONTROL_UNSIGNALIZED, PRIORITY_NONE, "", 0),
	}
	for _, node := range nodes {
		require.NoError(t, net.AddNode(node))
	}
	road, err := NewRoadLink(1, mustNode(t, net, 101), mustNode(t, net, 102), roadAttrs("Main St"))
	require.NoError(t, err)
	require.NoError(t, net.AddLink(road))
	for i, pair := range [][2]NodeID{{2, 101}, {102, 6}, {9, 101}} {
		conn, err := NewConnector(LinkID(10+i), mustNode(t, net, pair[0]), mustNode(t, net, pair[1]), connectorAttrs())
		require.NoError(t, err)
		require.NoError(t, net.AddLink(conn))
	}
	return net
}

func writeTempFile(t *testing.T, name, content string) string {
	fname := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fname, []byte(content), 0644))
	return fname
}

func TestNewDemand(t *testing.T) {
	net := buildZones(t)
	demand, err := NewDemand(net, "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 15)
	require.NoError(t, err)
	assert.Equal(t, 4, demand.GetNumSlices())
	assert.Equal(t, []Time{NewTime(7, 15, 0), NewTime(7, 30, 0), NewTime(7, 45, 0), NewTime(8, 0, 0)}, demand.TimeLabels())
	assert.Equal(t, []NodeID{2, 6, 9}, demand.Centroids())
	assert.Equal(t, 0.0, demand.GetTotalNumTrips())

	assert.Error(t, demand.SetValue(NewTime(7, 15, 0), 2, 6, -1))
	assert.Error(t, demand.SetValue(NewTime(7, 10, 0), 2, 6, 1), "no slice ends at 07:10")
	_, err = demand.GetValue(NewTime(7, 15, 0), 2, 101)
	assert.Error(t, err, "road node is not a centroid")

	_, err = NewDemand(net, "Car", NewTime(8, 0, 0), NewTime(7, 0, 0), 15)
	assert.Error(t, err)
	_, err = NewDemand(net, "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 0)
	assert.Error(t, err)
	_, err = NewDemand(net, "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 7)
	assert.Error(t, err)
}

func TestReadCubeODTable(t *testing.T) {
	net := buildZones(t)
	fname := writeTempFile(t, "od.csv", "O,D,V\n2,6,1000\n")

	demand, err := ReadCubeODTable(net, fname, "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 60)
	require.NoError(t, err)
	value, err := demand.GetValue(NewTime(8, 0, 0), 2, 6)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, value)
	assert.Equal(t, 1000.0, demand.GetTotalNumTrips())

	// Values are trips per slice, stored as hourly rates
	quarter, err := ReadCubeODTable(net, fname, "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 15)
	require.NoError(t, err)
	for _, label := range quarter.TimeLabels() {
		value, err := quarter.GetValue(label, 2, 6)
		require.NoError(t, err)
		assert.Equal(t, 4000.0, value)
	}

	_, err = ReadCubeODTable(net, writeTempFile(t, "bad.csv", "2,101,5\n"), "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 60)
	assert.Error(t, err, "destination is not a centroid")
	_, err = ReadCubeODTable(net, writeTempFile(t, "short.csv", "2,6\n"), "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 60)
	assert.Error(t, err)
	_, err = ReadCubeODTable(net, filepath.Join(t.TempDir(), "missing.csv"), "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 60)
	assert.Error(t, err)
}

func TestIntrazonalDemandGoesToNearestCentroid(t *testing.T) {
	net := buildZones(t)
	fname := writeTempFile(t, "od.csv", "2,2,100\n")
	demand, err := ReadCubeODTable(net, fname, "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 60)
	require.NoError(t, err)

	label := NewTime(8, 0, 0)
	there, err := demand.GetValue(label, 2, 9)
	require.NoError(t, err)
	back, err := demand.GetValue(label, 9, 2)
	require.NoError(t, err)
	same, err := demand.GetValue(label, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 50.0, there)
	assert.Equal(t, 50.0, back)
	assert.Equal(t, 0.0, same)
	assert.Equal(t, 100.0, demand.GetTotalNumTrips())
}

func TestApplyTimeOfDayFactors(t *testing.T) {
	net := buildZones(t)
	demand, err := NewDemand(net, "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 60)
	require.NoError(t, err)
	require.NoError(t, demand.SetValue(NewTime(8, 0, 0), 2, 6, 1000))
	require.NoError(t, demand.SetValue(NewTime(8, 0, 0), 9, 6, 250))

	factors := []float64{0.1, 0.2, 0.3, 0.4}
	sliced, err := demand.ApplyTimeOfDayFactors(factors)
	require.NoError(t, err)
	assert.Equal(t, 4, sliced.GetNumSlices())
	assert.Equal(t, 900, sliced.TimeStepSec)
	assert.Equal(t, 15.0, sliced.TimeStepMinutes())
	assert.InDelta(t, demand.GetTotalNumTrips(), sliced.GetTotalNumTrips(), 1e-9)
	for k, label := range sliced.TimeLabels() {
		value, err := sliced.GetValue(label, 2, 6)
		require.NoError(t, err)
		assert.InDelta(t, factors[k]*4000, value, 1e-9)
	}

	_, err = demand.ApplyTimeOfDayFactors([]float64{0.5, 0.4})
	assert.Error(t, err, "factors must sum to 1")
	_, err = demand.ApplyTimeOfDayFactors([]float64{})
	assert.Error(t, err)
	_, err = demand.ApplyTimeOfDayFactors([]float64{0.2, 0.2, 0.2, 0.2, 0.1, 0.1, 0.0})
	assert.Error(t, err, "an hour can't be divided into 7 slices of whole seconds")
	_, err = sliced.ApplyTimeOfDayFactors(factors)
	assert.Error(t, err, "demand has several slices already")
}

func TestApplyTimeOfDayFactorsFractionalMinutes(t *testing.T) {
	net := buildZones(t)
	demand, err := NewDemand(net, "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 60)
	require.NoError(t, err)
	require.NoError(t, demand.SetValue(NewTime(8, 0, 0), 2, 6, 800))

	factors := make([]float64, 8)
	for i := range factors {
		factors[i] = 0.125
	}
	sliced, err := demand.ApplyTimeOfDayFactors(factors)
	require.NoError(t, err)
	assert.Equal(t, 8, sliced.GetNumSlices())
	assert.Equal(t, 450, sliced.TimeStepSec)
	assert.Equal(t, 7.5, sliced.TimeStepMinutes())
	labels := sliced.TimeLabels()
	assert.Equal(t, NewTime(7, 7, 30), labels[0])
	assert.Equal(t, NewTime(7, 15, 0), labels[1])
	assert.Equal(t, NewTime(8, 0, 0), labels[7])
	assert.InDelta(t, 800.0, sliced.GetTotalNumTrips(), 1e-9)
	for _, label := range labels {
		value, err := sliced.GetValue(label, 2, 6)
		require.NoError(t, err)
		assert.InDelta(t, 800.0, value, 1e-9)
	}

	fname := filepath.Join(t.TempDir(), "matrix.dqt")
	require.NoError(t, sliced.WriteDynameqDemand(fname))
	read, err := ReadDynameqDemand(net, fname)
	require.NoError(t, err)
	assert.Equal(t, 450, read.TimeStepSec)
	assert.Equal(t, labels, read.TimeLabels())
	assert.InDelta(t, 800.0, read.GetTotalNumTrips(), 1e-9)
}

func TestWriteDynameqDemandErrors(t *testing.T) {
	net := buildZones(t)
	demand, err := NewDemand(net, "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 60)
	require.NoError(t, err)
	assert.Error(t, demand.WriteDynameqDemand(filepath.Join(t.TempDir(), "missing", "matrix.dqt")))
}

func TestRemoveInvalidODPairs(t *testing.T) {
	net := buildZones(t)
	demand, err := NewDemand(net, "Car", NewTime(7, 0, 0), NewTime(8, 0, 0), 30)
	require.NoError(t, err)
	for _, label := range demand.TimeLabels() {
		require.NoError(t, demand.SetValue(label, 2, 6, 100))
		require.NoError(t, demand.SetValue(label, 9, 6, 100))
		require.NoError(t, demand.SetValue(label, 6, 2, 100))
		require.NoError(t, demand.SetValue(label, 2, 9, 100))
	}
	removed, err := demand.RemoveInvalidODPairs()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 200.0, demand.GetTotalNumTrips())
	for _, label := range demand.TimeLabels() {
		value, err := demand.GetValue(label, 6, 2)
		require.NoError(t, err)
		assert.Equal(t, 0.0, value)
		value, err = demand.GetValue(label, 2, 6)
		require.NoError(t, err)
		assert.Equal(t, 100.0, value)
	}
}

func TestDynameqDemandRoundTrip(t *testing.T) {
	net := buildZones(t)
	demand, err := NewDemand(net, "Truck", NewTime(6, 30, 0), NewTime(7, 30, 0), 30)
	require.NoError(t, err)
	require.NoError(t, demand.SetValue(NewTime(7, 0, 0), 2, 6, 12.5))
	require.NoError(t, demand.SetValue(NewTime(7, 30, 0), 9, 2, 3))

	fname := filepath.Join(t.TempDir(), "matrix.dqt")
	require.NoError(t, demand.WriteDynameqDemand(fname))
	read, err := ReadDynameqDemand(net, fname)
	require.NoError(t, err)

	assert.Equal(t, "Truck", read.VehicleClass)
	assert.Equal(t, demand.StartTime, read.StartTime)
	assert.Equal(t, demand.EndTime, read.EndTime)
	assert.Equal(t, 1800, read.TimeStepSec)
	assert.Equal(t, demand.TimeLabels(), read.TimeLabels())
	assert.Equal(t, demand.GetTotalNumTrips(), read.GetTotalNumTrips())
	for _, label := range demand.TimeLabels() {
		for _, o := range demand.Centroids() {
			for _, d := range demand.Centroids() {
				want, err := demand.GetValue(label, o, d)
				require.NoError(t, err)
				got, err := read.GetValue(label, o, d)
				require.NoError(t, err)
				assert.Equal(t, want, got, "%s: %d -> %d", label, o, d)
			}
		}
	}

	_, err = ReadDynameqDemand(net, writeTempFile(t, "broken.dqt", "FORMAT:full\nVEH_CLASS\nCar\nDATA\n07:00\n"))
	assert.Error(t, err)
}
