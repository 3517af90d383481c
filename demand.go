package dtanet

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
)

const timeOfDayFactorsTolerance = 1e-7

// Demand is a time-sliced OD matrix of one vehicle class. Values are hourly flow rates of the slice
type Demand struct {
	net          *Network
	VehicleClass string
	StartTime    Time
	EndTime      Time
	// Slice length in seconds
	TimeStepSec int

	timeLabels []Time
	centroids  []NodeID
	values     *LabeledArray
}

// NewDemand creates zero demand over centroids of network. Interval length must be divisible by time step
func NewDemand(net *Network, vehicleClass string, startTime, endTime Time, timeStepMin int) (*Demand, error) {
	if timeStepMin <= 0 {
		return nil, dtaErrorf("demand time step %d must be positive", timeStepMin)
	}
	return newDemand(net, vehicleClass, startTime, endTime, timeStepMin*60)
}

func newDemand(net *Network, vehicleClass string, startTime, endTime Time, timeStepSec int) (*Demand, error) {
	if startTime >= endTime {
		return nil, dtaErrorf("demand start time %s must be before end time %s", startTime, endTime)
	}
	if timeStepSec <= 0 {
		return nil, dtaErrorf("demand time step %d s must be positive", timeStepSec)
	}
	span := int(endTime - startTime)
	if span%timeStepSec != 0 {
		return nil, dtaErrorf("demand time step %d s does not divide interval %s - %s", timeStepSec, startTime, endTime)
	}
	labels := make([]Time, 0, span/timeStepSec)
	for t := startTime.AddSeconds(timeStepSec); t <= endTime; t = t.AddSeconds(timeStepSec) {
		labels = append(labels, t)
	}
	centroids := lo.Map(net.Centroids(), func(node *Node, _ int) NodeID { return node.ID })
	sort.Slice(centroids, func(i, j int) bool { return centroids[i] < centroids[j] })
	ids := lo.Map(centroids, func(id NodeID, _ int) int { return int(id) })
	values, err := NewLabeledArray(lo.Map(labels, func(t Time, _ int) int { return int(t) }), ids, ids)
	if err != nil {
		return nil, err
	}
	return &Demand{
		net:          net,
		VehicleClass: vehicleClass,
		StartTime:    startTime,
		EndTime:      endTime,
		TimeStepSec:  timeStepSec,
		timeLabels:   labels,
		centroids:    centroids,
		values:       values,
	}, nil
}

func (d *Demand) String() string {
	return fmt.Sprintf("demand %s %s-%s step %g min: %d slices, %d centroids, %f trips", d.VehicleClass, d.StartTime, d.EndTime, d.TimeStepMinutes(), len(d.timeLabels), len(d.centroids), d.GetTotalNumTrips())
}

// TimeStepMinutes returns slice length in minutes
func (d *Demand) TimeStepMinutes() float64 {
	return float64(d.TimeStepSec) / 60.0
}

func (d *Demand) stepHours() float64 {
	return float64(d.TimeStepSec) / 3600.0
}

// TimeLabels returns end times of slices in chronological order
func (d *Demand) TimeLabels() []Time {
	return append([]Time{}, d.timeLabels...)
}

// Centroids returns sorted centroid ids of both OD axes
func (d *Demand) Centroids() []NodeID {
	return append([]NodeID{}, d.centroids...)
}

func (d *Demand) GetNumSlices() int {
	return len(d.timeLabels)
}

// GetValue returns hourly rate of slice ending at timeLabel
func (d *Demand) GetValue(timeLabel Time, origin, destination NodeID) (float64, error) {
	return d.values.Get(int(timeLabel), int(origin), int(destination))
}

func (d *Demand) SetValue(timeLabel Time, origin, destination NodeID, value float64) error {
	if value < 0 {
		return dtaErrorf("demand value %f for %d -> %d is negative", value, origin, destination)
	}
	return d.values.Set(int(timeLabel), int(origin), int(destination), value)
}

func (d *Demand) AddValue(timeLabel Time, origin, destination NodeID, value float64) error {
	return d.values.Add(int(timeLabel), int(origin), int(destination), value)
}

// Slice returns live view of slice ending at timeLabel (origin x destination)
func (d *Demand) Slice(timeLabel Time) (*LabeledSlice, error) {
	return d.values.Slice(int(timeLabel))
}

// GetTotalNumTrips returns number of trips: sum of hourly rates times slice length in hours
func (d *Demand) GetTotalNumTrips() float64 {
	return d.values.Sum() * d.stepHours()
}

// addToAllSlices adds hourly rate to the OD cell of every slice
func (d *Demand) addToAllSlices(origin, destination NodeID, rate float64) error {
	for _, label := range d.timeLabels {
		if err := d.AddValue(label, origin, destination, rate); err != nil {
			return err
		}
	}
	return nil
}

// nearestOtherCentroid returns closest centroid to given one. Ties are broken randomly
func (d *Demand) nearestOtherCentroid(centroid *Node) (*Node, error) {
	best := math.Inf(1)
	ties := make([]*Node, 0, 1)
	for _, id := range d.centroids {
		if id == centroid.ID {
			continue
		}
		other := d.net.nodes[id]
		dist := findDistance(centroid.geom, other.geom)
		switch {
		case dist < best:
			best = dist
			ties = ties[:0]
			ties = append(ties, other)
		case dist == best:
			ties = append(ties, other)
		}
	}
	if len(ties) == 0 {
		return nil, dtaErrorf("there is no centroid other than %d", centroid.ID)
	}
	if len(ties) == 1 {
		return ties[0], nil
	}
	return ties[d.net.rnd.Intn(len(ties))], nil
}

// addIntrazonal splits intrazonal rate evenly between both directions to the nearest other centroid
func (d *Demand) addIntrazonal(centroid NodeID, rate float64) error {
	node, err := d.net.GetNodeForID(centroid)
	if err != nil {
		return err
	}
	nearest, err := d.nearestOtherCentroid(node)
	if err != nil {
		return err
	}
	if err := d.addToAllSlices(centroid, nearest.ID, rate/2); err != nil {
		return err
	}
	return d.addToAllSlices(nearest.ID, centroid, rate/2)
}

// ApplyTimeOfDayFactors expands single-slice demand into len(factors) slices of equal length. Slice k gets
// factors[k] * value * len(factors) so the total number of trips is preserved. Factors must sum to 1
func (d *Demand) ApplyTimeOfDayFactors(factors []float64) (*Demand, error) {
	if len(d.timeLabels) != 1 {
		return nil, dtaErrorf("time of day factors require demand with one slice, got %d", len(d.timeLabels))
	}
	if len(factors) == 0 {
		return nil, dtaErrorf("time of day factors are empty")
	}
	if sum := lo.Sum(factors); math.Abs(sum-1) > timeOfDayFactorsTolerance {
		return nil, dtaErrorf("time of day factors sum to %f, expected 1", sum)
	}
	n := len(factors)
	if d.TimeStepSec%n != 0 {
		return nil, dtaErrorf("time step %d s can't be divided into %d slices of whole seconds", d.TimeStepSec, n)
	}
	out, err := newDemand(d.net, d.VehicleClass, d.StartTime, d.EndTime, d.TimeStepSec/n)
	if err != nil {
		return nil, err
	}
	src, err := d.Slice(d.timeLabels[0])
	if err != nil {
		return nil, err
	}
	for k, label := range out.timeLabels {
		for _, o := range d.centroids {
			for _, dest := range d.centroids {
				v, err := src.Get(int(o), int(dest))
				if err != nil {
					return nil, err
				}
				if v == 0 {
					continue
				}
				if err := out.SetValue(label, o, dest, factors[k]*v*float64(n)); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// RemoveInvalidODPairs zeroes cells of OD pairs without directed path from origin to destination. Returns number
// of zeroed OD pairs having positive demand
func (d *Demand) RemoveInvalidODPairs() (int, error) {
	idx, err := NewReachabilityIndex(d.net)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, o := range d.centroids {
		origin := d.net.nodes[o]
		for _, dest := range d.centroids {
			if o == dest {
				continue
			}
			total := 0.0
			for _, label := range d.timeLabels {
				v, _ := d.GetValue(label, o, dest)
				total += v
			}
			if total == 0 {
				continue
			}
			if idx.HasPath(origin, d.net.nodes[dest]) {
				continue
			}
			for _, label := range d.timeLabels {
				if err := d.SetValue(label, o, dest, 0); err != nil {
					return removed, err
				}
			}
			removed++
			logger.Warnf("No path from centroid %d to centroid %d: %f trips removed", o, dest, total*d.stepHours())
		}
	}
	return removed, nil
}
