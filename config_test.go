package dtanet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadConfigFromFile(t *testing.T) {
	fname := writeTempFile(t, "dtanet.toml", `
lane_width = 3.5
length_units_per_coordinate_unit = 0.001
max_transit_path_nodes = 30
u_turns_allowed = true
sim_start_min = 420
sim_end_min = 540
`)
	cfg, err := LoadConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, 3.5, cfg.LaneWidth)
	assert.Equal(t, 0.001, cfg.LengthUnitsPerCoordinateUnit)
	assert.Equal(t, 30, cfg.MaxTransitPathNodes)
	assert.True(t, cfg.UTurnsAllowed)
	assert.Equal(t, 420, cfg.SimStartMin)
	assert.Equal(t, 15, cfg.SimStepMin, "defaults fill keys missing in file")
	assert.Equal(t, 0.86, cfg.OverlapThresholdDegrees)

	_, err = LoadConfig(writeTempFile(t, "bad.toml", "lane_width = -1\n"))
	assert.Error(t, err)
	assert.True(t, IsDtaError(err))
	_, err = LoadConfig(writeTempFile(t, "broken.toml", "lane_width = = 1\n"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.LabelCutoff = 1.5
	assert.Error(t, cfg.Validate())
	cfg = DefaultConfig()
	cfg.SimStepMin = 0
	assert.Error(t, cfg.Validate())
}

func TestNetworkOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UTurnsAllowed = true
	net := NewNetwork(testScenario(t), WithConfig(cfg), WithLaneWidth(10), WithLengthUnits(0.5))
	assert.Equal(t, 10.0, net.cfg.LaneWidth)
	assert.Equal(t, 0.5, net.cfg.LengthUnitsPerCoordinateUnit)
	assert.True(t, net.cfg.UTurnsAllowed)
}
