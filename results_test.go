package dtanet

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationWindow(t *testing.T) {
	_, net := buildGrid(t)
	assert.Error(t, net.SetSimulationWindow(0, 100, 15), "window is not divisible by step")
	assert.Error(t, net.SetSimulationWindow(0, 60, 0))
	assert.Error(t, net.SetSimulationWindow(60, 60, 15))
	require.NoError(t, net.SetSimulationWindow(420, 540, 15))
	start, end, step := net.SimulationWindow()
	assert.Equal(t, []int{420, 540, 15}, []int{start, end, step})
}

func TestMovementResultsAggregateOnLink(t *testing.T) {
	_, net := buildGrid(t)
	require.NoError(t, net.SetSimulationWindow(420, 540, 15))
	link := mustLink(t, net, 1, 5)
	thru := mustMovement(t, net, 1, 5, 4)
	left := mustMovement(t, net, 1, 5, 2)

	require.NoError(t, thru.SetSimOutVolume(420, 450, 100))
	require.NoError(t, thru.SetSimTT(420, 450, 2))
	require.NoError(t, left.SetSimOutVolume(420, 450, 300))
	require.NoError(t, left.SetSimTT(420, 450, 4))

	half, err := thru.GetSimOutVolume(420, 435)
	require.NoError(t, err)
	assert.Equal(t, 50.0, half)

	volume, err := link.GetSimOutVolume(420, 450)
	require.NoError(t, err)
	assert.Equal(t, 400.0, volume)
	tt, err := link.GetSimTT(420, 450)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, tt, 1e-9)
	speed, err := link.GetSimSpeed(420, 450)
	require.NoError(t, err)
	assert.InDelta(t, 100/(3.5/60), speed, 1e-9)

	tt, err = link.GetSimTT(450, 480)
	require.NoError(t, err)
	assert.Equal(t, 0.0, tt)
	speed, err = link.GetSimSpeed(450, 480)
	require.NoError(t, err)
	assert.Equal(t, 30.0, speed, "free flow speed without flow")

	assert.Error(t, thru.SetSimTT(450, 465, 2), "travel time without flow")
	assert.Error(t, thru.SetSimTT(420, 450, 0), "zero travel time with flow")
	assert.Error(t, thru.SetSimOutVolume(400, 420, 10), "outside of window")
	assert.Error(t, thru.SetSimOutVolume(420, 430, 10), "not a multiple of step")
	assert.Error(t, thru.SetSimOutVolume(420, 435, -1))
	_, err = link.GetSimOutVolume(420, 600)
	assert.Error(t, err)
}

func TestObservedCounts(t *testing.T) {
	_, net := buildGrid(t)
	require.NoError(t, net.SetSimulationWindow(420, 540, 15))
	link := mustLink(t, net, 1, 5)

	require.NoError(t, link.SetObsCount(420, 480, 500))
	assert.True(t, link.HasObsCount(420, 480))
	assert.False(t, link.HasObsCount(420, 450))
	count, err := link.GetObsCount(420, 480)
	require.NoError(t, err)
	assert.Equal(t, 500.0, count)
	_, err = link.GetObsCount(480, 540)
	assert.Error(t, err)
	assert.Error(t, link.SetObsCount(300, 480, 1))

	require.NoError(t, link.SetObsTT(435, 465, 1.5))
	assert.True(t, link.HasObsTT(435, 465))
}

func TestObservedValuesFollowSimulationSteps(t *testing.T) {
	_, net := buildGrid(t)
	require.NoError(t, net.SetSimulationWindow(0, 60, 15))
	link := mustLink(t, net, 1, 5)
	mov := mustMovement(t, net, 1, 5, 4)

	assert.Error(t, link.SetSimOutVolume(0, 10, 5))
	assert.Error(t, link.SetObsCount(0, 10, 5))
	assert.Error(t, link.SetObsTT(5, 20, 1))
	assert.Error(t, mov.SetObsCount(0, 10, 5))
	assert.Error(t, mov.SetObsTT(15, 40, 1))
	assert.False(t, link.HasObsCount(0, 10))

	require.NoError(t, link.SetObsCount(15, 45, 5))
	require.NoError(t, mov.SetObsCount(0, 60, 12))
	count, err := mov.GetObsCount(0, 60)
	require.NoError(t, err)
	assert.Equal(t, 12.0, count)
}

func TestResultsWithoutWindow(t *testing.T) {
	_, net := buildGrid(t)
	err := mustLink(t, net, 1, 5).SetObsCount(420, 480, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulation window is not set")
}

func TestReadResults(t *testing.T) {
	_, net := buildGrid(t)
	require.NoError(t, net.SetSimulationWindow(420, 540, 15))

	movFile := writeTempFile(t, "movements.txt", "* atnode inlink outlink start end flow tt\n5 15 54 07:00 07:30 100 2\n5 15 52 420 450 60 3\n")
	cnt, err := net.ReadSimulatedMovementResults(movFile)
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)
	thru := mustMovement(t, net, 1, 5, 4)
	inVolume, err := thru.GetSimInVolume(420, 450)
	require.NoError(t, err)
	assert.Equal(t, 100.0, inVolume)
	volume, err := mustLink(t, net, 1, 5).GetSimOutVolume(420, 450)
	require.NoError(t, err)
	assert.Equal(t, 160.0, volume)

	countsFile := writeTempFile(t, "counts.txt", "15 420 480 350\n")
	cnt, err = net.ReadObservedLinkCounts(countsFile)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	count, err := mustLink(t, net, 1, 5).GetObsCount(420, 480)
	require.NoError(t, err)
	assert.Equal(t, 350.0, count)

	movCountsFile := writeTempFile(t, "movement_counts.txt", "5 15 54 07:00 08:00 80\n")
	_, err = net.ReadObservedMovementCounts(movCountsFile)
	require.NoError(t, err)
	assert.True(t, thru.HasObsCount(420, 480))

	_, err = net.ReadSimulatedMovementResults(writeTempFile(t, "wrong_node.txt", "4 15 54 420 450 1 1\n"))
	assert.Error(t, err, "movement 15 -> 54 is at node 5")
	_, err = net.ReadObservedLinkCounts(writeTempFile(t, "short.txt", "15 420 480\n"))
	assert.Error(t, err)
	_, err = net.ReadSimulatedLinkResults(writeTempFile(t, "unknown.txt", "999 420 450 1 1\n"))
	assert.Error(t, err)
}

func TestLinkResultsCSV(t *testing.T) {
	net := buildZones(t)
	require.NoError(t, net.SetSimulationWindow(420, 540, 15))

	cnt, err := net.ReadSimulatedLinkResults(writeTempFile(t, "links.txt", "1 420 480 240 0.5\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	road, err := net.GetLinkForID(1)
	require.NoError(t, err)
	volume, err := road.GetSimOutVolume(420, 480)
	require.NoError(t, err)
	assert.Equal(t, 240.0, volume)
	tt, err := road.GetSimTT(420, 480)
	require.NoError(t, err)
	assert.Equal(t, 0.5, tt)
	require.NoError(t, road.SetObsCount(420, 480, 200))

	fname := filepath.Join(t.TempDir(), "link_results.csv")
	require.NoError(t, net.WriteLinkResultsCSV(fname, 420, 480))
	file, err := os.Open(fname)
	require.NoError(t, err)
	defer file.Close()
	reader := csv.NewReader(file)
	reader.Comma = ';'
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "geom", records[0][11])

	row := records[1]
	assert.Equal(t, "1", row[0])
	assert.Equal(t, "Main St", row[3])
	assert.Equal(t, "240.000000", row[7])
	assert.Equal(t, "0.500000", row[8])
	assert.Equal(t, "12000.000000", row[9])
	assert.Equal(t, "200.000000", row[10])
	assert.Contains(t, row[11], "LINESTRING")
	assert.Equal(t, "", records[2][10], "connector without counts")
}
