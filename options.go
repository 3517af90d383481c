package dtanet

import (
	"math/rand"
)

// WithConfig replaces every tunable of the network with values from cfg
func WithConfig(cfg Config) func(*Network) {
	return func(net *Network) {
		net.cfg = cfg
		net.window.startMin = cfg.SimStartMin
		net.window.endMin = cfg.SimEndMin
		net.window.stepMin = cfg.SimStepMin
	}
}

func WithLaneWidth(laneWidth float64) func(*Network) {
	return func(net *Network) {
		net.cfg.LaneWidth = laneWidth
	}
}

// WithLengthUnits sets conversion from coordinate units to link length units
func WithLengthUnits(lengthUnitsPerCoordinateUnit float64) func(*Network) {
	return func(net *Network) {
		net.cfg.LengthUnitsPerCoordinateUnit = lengthUnitsPerCoordinateUnit
	}
}

func WithOverlapThreshold(degrees float64) func(*Network) {
	return func(net *Network) {
		net.cfg.OverlapThresholdDegrees = degrees
	}
}

// WithRandomSource sets random source used for jittering and probing. Tests pass seeded source
func WithRandomSource(rnd *rand.Rand) func(*Network) {
	return func(net *Network) {
		net.rnd = rnd
	}
}

func WithVirtualNodeDistance(distance float64) func(*Network) {
	return func(net *Network) {
		net.cfg.VirtualNodeDistance = distance
	}
}
