package dtanet

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds tunables of network preparation
type Config struct {
	// Lane width in coordinate units
	LaneWidth float64 `mapstructure:"lane_width"`
	// Distance (coordinate units) from centroid to generated virtual node
	VirtualNodeDistance float64 `mapstructure:"virtual_node_distance"`
	// Links meeting at a node with smaller angle (degrees) are treated as overlapping
	OverlapThresholdDegrees float64 `mapstructure:"overlap_threshold_degrees"`
	// Road links shorter than this (link length units) are never split for connectors
	MinSplitLinkLength float64 `mapstructure:"min_split_link_length"`
	// Conversion from coordinate units to link length units
	LengthUnitsPerCoordinateUnit float64 `mapstructure:"length_units_per_coordinate_unit"`
	// Virtual nodes are probed around by this distance when resolving conflicts. Zero disables
	MoveVirtualNodeDistance float64 `mapstructure:"move_virtual_node_distance"`
	// Transit lines with repaired paths longer than this are split into sublines
	MaxTransitPathNodes int     `mapstructure:"max_transit_path_nodes"`
	RandomSeed          int64   `mapstructure:"random_seed"`
	UTurnsAllowed       bool    `mapstructure:"u_turns_allowed"`
	LabelCutoff         float64 `mapstructure:"label_cutoff"`
	SimStartMin         int     `mapstructure:"sim_start_min"`
	SimEndMin           int     `mapstructure:"sim_end_min"`
	SimStepMin          int     `mapstructure:"sim_step_min"`
}

// DefaultConfig returns configuration with documented defaults
func DefaultConfig() Config {
	return Config{
		LaneWidth:                    12.0,
		VirtualNodeDistance:          0.0,
		OverlapThresholdDegrees:      0.86,
		MinSplitLinkLength:           0.009,
		LengthUnitsPerCoordinateUnit: 1.0 / 5280.0,
		MoveVirtualNodeDistance:      0.0,
		MaxTransitPathNodes:          15,
		RandomSeed:                   1,
		UTurnsAllowed:                false,
		LabelCutoff:                  0.8,
		SimStartMin:                  0,
		SimEndMin:                    0,
		SimStepMin:                   15,
	}
}

// SetDefaults registers default values for every configuration key
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("lane_width", def.LaneWidth)
	v.SetDefault("virtual_node_distance", def.VirtualNodeDistance)
	v.SetDefault("overlap_threshold_degrees", def.OverlapThresholdDegrees)
	v.SetDefault("min_split_link_length", def.MinSplitLinkLength)
	v.SetDefault("length_units_per_coordinate_unit", def.LengthUnitsPerCoordinateUnit)
	v.SetDefault("move_virtual_node_distance", def.MoveVirtualNodeDistance)
	v.SetDefault("max_transit_path_nodes", def.MaxTransitPathNodes)
	v.SetDefault("random_seed", def.RandomSeed)
	v.SetDefault("u_turns_allowed", def.UTurnsAllowed)
	v.SetDefault("label_cutoff", def.LabelCutoff)
	v.SetDefault("sim_start_min", def.SimStartMin)
	v.SetDefault("sim_end_min", def.SimEndMin)
	v.SetDefault("sim_step_min", def.SimStepMin)
}

// LoadConfig reads TOML configuration. Empty path means defaults plus DTA_* environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't read config file '%s'", configPath))
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "Can't unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration consistency
func (cfg *Config) Validate() error {
	if cfg.LaneWidth <= 0 {
		return dtaErrorf("lane width must be positive, got %f", cfg.LaneWidth)
	}
	if cfg.LengthUnitsPerCoordinateUnit <= 0 {
		return dtaErrorf("length units per coordinate unit must be positive, got %f", cfg.LengthUnitsPerCoordinateUnit)
	}
	if cfg.OverlapThresholdDegrees < 0 {
		return dtaErrorf("overlap threshold must be non-negative, got %f", cfg.OverlapThresholdDegrees)
	}
	if cfg.LabelCutoff <= 0 || cfg.LabelCutoff > 1 {
		return dtaErrorf("label cutoff must be in (0, 1], got %f", cfg.LabelCutoff)
	}
	if cfg.SimStepMin <= 0 {
		return dtaErrorf("simulation step must be positive, got %d", cfg.SimStepMin)
	}
	return nil
}

func (cfg Config) String() string {
	return fmt.Sprintf(`
Network preparation parameters:
	lane_width: %f
	virtual_node_distance: %f
	overlap_threshold_degrees: %f
	min_split_link_length: %f
	length_units_per_coordinate_unit: %f
	move_virtual_node_distance: %f
	max_transit_path_nodes: %d
	random_seed: %d
	u_turns_allowed: %t
	label_cutoff: %f
	simulation window: [%d, %d) step %d
	`,
		cfg.LaneWidth,
		cfg.VirtualNodeDistance,
		cfg.OverlapThresholdDegrees,
		cfg.MinSplitLinkLength,
		cfg.LengthUnitsPerCoordinateUnit,
		cfg.MoveVirtualNodeDistance,
		cfg.MaxTransitPathNodes,
		cfg.RandomSeed,
		cfg.UTurnsAllowed,
		cfg.LabelCutoff,
		cfg.SimStartMin, cfg.SimEndMin, cfg.SimStepMin,
	)
}
